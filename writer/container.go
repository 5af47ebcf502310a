package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// Container is where serialized tiles end up: a z/x/y file tree or an
// mbtiles database.
type Container interface {
	WriteTile(zoom uint8, x, y uint32, data []byte) error
	WriteMetadata(name, value string) error
	Close() error
}

// DirContainer lays tiles out as outputDir/zoom/x/y.pbf. Metadata pairs
// are gathered into a metadata.json next to the tiles.
type DirContainer struct {
	base     string
	metadata map[string]string
}

func NewDirContainer(base string) (*DirContainer, error) {
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %s", base)
	}
	return &DirContainer{base: base, metadata: make(map[string]string)}, nil
}

func (d *DirContainer) WriteTile(zoom uint8, x, y uint32, data []byte) error {
	dir := filepath.Join(d.base, fmt.Sprintf("%d", zoom), fmt.Sprintf("%d", x))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating tile directory %s", dir)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.pbf", y))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing tile %s", path)
	}
	return nil
}

func (d *DirContainer) WriteMetadata(name, value string) error {
	d.metadata[name] = value
	return nil
}

func (d *DirContainer) Close() error {
	if len(d.metadata) == 0 {
		return nil
	}
	keys := make([]string, 0, len(d.metadata))
	for k := range d.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]string, len(d.metadata))
	for _, k := range keys {
		ordered[k] = d.metadata[k]
	}
	data, err := json.MarshalIndent(ordered, "", "\t")
	if err != nil {
		return err
	}
	path := filepath.Join(d.base, "metadata.json")
	return errors.Wrapf(os.WriteFile(path, data, 0644), "writing %s", path)
}
