// Package mbtiles writes tiles into an MBTiles SQLite database: a
// tiles(zoom_level, tile_column, tile_row, tile_data) table in the TMS
// row scheme plus a metadata(name, value) table.
package mbtiles

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS metadata (name TEXT, value TEXT);
CREATE TABLE IF NOT EXISTS tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB);
CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (zoom_level, tile_column, tile_row);
CREATE UNIQUE INDEX IF NOT EXISTS name_index ON metadata (name);
`

// DB is an open MBTiles container.
type DB struct {
	db         *sql.DB
	insertTile *sql.Stmt
	insertMeta *sql.Stmt
}

// Open creates or opens an MBTiles file and prepares its schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "preparing schema of %s", path)
	}
	// bulk import: tolerate a crash losing the file, not corrupting it
	if _, err := db.Exec("PRAGMA synchronous=OFF"); err != nil {
		db.Close()
		return nil, err
	}
	insertTile, err := db.Prepare(
		"REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		db.Close()
		return nil, err
	}
	insertMeta, err := db.Prepare("REPLACE INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db, insertTile: insertTile, insertMeta: insertMeta}, nil
}

// WriteTile stores one tile. The XYZ row is flipped into the TMS
// scheme MBTiles uses.
func (m *DB) WriteTile(zoom uint8, x, y uint32, data []byte) error {
	tmsY := (uint32(1) << zoom) - 1 - y
	_, err := m.insertTile.Exec(int(zoom), int64(x), int64(tmsY), data)
	return errors.Wrapf(err, "writing tile %d/%d/%d", zoom, x, y)
}

// WriteMetadata stores one metadata row.
func (m *DB) WriteMetadata(name, value string) error {
	_, err := m.insertMeta.Exec(name, value)
	return errors.Wrapf(err, "writing metadata %s", name)
}

func (m *DB) Close() error {
	m.insertTile.Close()
	m.insertMeta.Close()
	return m.db.Close()
}
