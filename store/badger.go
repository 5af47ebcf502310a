package store

import (
	"encoding/binary"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"

	"github.com/tilemason/tilemason/element"
)

// badgerBatchSize is the number of buffered inserts flushed per
// transaction.
const badgerBatchSize = 8192

// BadgerNodeStore keeps node coordinates on disk for extracts whose
// node set does not fit in RAM. Keys are big-endian node IDs, values
// the two fixed-point coordinates. Inserts are buffered and flushed in
// batches; Get flushes pending inserts first.
type BadgerNodeStore struct {
	db      *badger.DB
	pending []nodeEntry
}

type nodeEntry struct {
	id    element.NodeID
	coord element.LatpLon
}

func NewBadgerNodeStore(path string) (*BadgerNodeStore, error) {
	opts := badger.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening node store at %s", path)
	}
	return &BadgerNodeStore{db: db}, nil
}

func nodeKey(id element.NodeID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func nodeValue(coord element.LatpLon) []byte {
	val := make([]byte, 8)
	binary.BigEndian.PutUint32(val[0:4], uint32(coord.Latp))
	binary.BigEndian.PutUint32(val[4:8], uint32(coord.Lon))
	return val
}

func decodeNodeValue(val []byte) (element.LatpLon, error) {
	if len(val) != 8 {
		return element.LatpLon{}, errors.Errorf("node value has %d bytes", len(val))
	}
	return element.LatpLon{
		Latp: int32(binary.BigEndian.Uint32(val[0:4])),
		Lon:  int32(binary.BigEndian.Uint32(val[4:8])),
	}, nil
}

func (s *BadgerNodeStore) Insert(id element.NodeID, coord element.LatpLon) error {
	s.pending = append(s.pending, nodeEntry{id, coord})
	if len(s.pending) >= badgerBatchSize {
		return s.Flush()
	}
	return nil
}

// Flush writes buffered inserts. A key that is already present keeps
// its stored value: overlapping extracts may carry the same node ID
// with different coordinates, and the first input wins like in the
// in-memory backends.
func (s *BadgerNodeStore) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	entries := s.pending
	s.pending = nil

	// setNew skips keys already in the store. Reads inside a write
	// transaction see its own pending writes, so duplicates within one
	// batch resolve to the first entry as well.
	setNew := func(txn *badger.Txn, e nodeEntry) error {
		key := nodeKey(e.id)
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, nodeValue(e.coord))
	}

	txn := s.db.NewTransaction(true)
	for _, e := range entries {
		err := setNew(txn, e)
		if err == badger.ErrTxnTooBig {
			if err = txn.Commit(); err != nil {
				return errors.Wrap(err, "flushing node store")
			}
			txn = s.db.NewTransaction(true)
			err = setNew(txn, e)
		}
		if err != nil {
			txn.Discard()
			return errors.Wrap(err, "flushing node store")
		}
	}
	if err := txn.Commit(); err != nil {
		return errors.Wrap(err, "flushing node store")
	}
	return nil
}

func (s *BadgerNodeStore) Get(id element.NodeID) (element.LatpLon, error) {
	if err := s.Flush(); err != nil {
		return element.LatpLon{}, err
	}
	var coord element.LatpLon
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			coord, err = decodeNodeValue(val)
			return err
		})
	})
	return coord, err
}

func (s *BadgerNodeStore) Contains(id element.NodeID) bool {
	_, err := s.Get(id)
	return err == nil
}

func (s *BadgerNodeStore) Clear() error {
	s.pending = nil
	return s.db.DropAll()
}

func (s *BadgerNodeStore) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.db.Close()
}
