package tile

import (
	"sort"

	"github.com/tilemason/tilemason/output"
)

// Index buckets output objects by the tile they touch at one zoom
// level.
type Index map[ID][]output.Object

func NewIndex() Index {
	return make(Index)
}

// Add appends objects to a tile's bucket.
func (idx Index) Add(id ID, objs ...output.Object) {
	if len(objs) == 0 {
		return
	}
	idx[id] = append(idx[id], objs...)
}

// Normalize sorts and deduplicates every bucket.
func (idx Index) Normalize() {
	for id, objs := range idx {
		idx[id] = output.SortUnique(objs)
	}
}

// AtZoom derives the index for a coarser zoom by remapping every
// base-zoom tile to its parent. The result is normalized.
func (idx Index) AtZoom(base, zoom uint8) Index {
	if zoom > base {
		panic("tile: zoom above base zoom")
	}
	if zoom == base {
		idx.Normalize()
		return idx
	}
	delta := base - zoom
	derived := NewIndex()
	for id, objs := range idx {
		parent := id.Parent(delta)
		derived[parent] = append(derived[parent], objs...)
	}
	derived.Normalize()
	return derived
}

// IDs returns the bucket keys in deterministic order.
func (idx Index) IDs() []ID {
	ids := make([]ID, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
