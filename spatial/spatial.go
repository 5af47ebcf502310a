// Package spatial keeps the pre-cached geometries that external layer
// sources (e.g. shapefiles) contribute, along with optional per-layer
// R-tree indexes for the script's intersection queries. Loaders fill
// the registry before ingestion; afterwards it is read-only.
package spatial

import (
	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/tilemason/tilemason/geom"
)

type entry struct {
	geometry orb.Geometry
	name     string
	layer    string
}

// Registry owns the cached geometries. IDs index into the cached list
// and are carried by CachedPoint/CachedLinestring/CachedPolygon output
// records.
type Registry struct {
	entries []entry
	indexes map[string]*rtree.RTree
	byLayer map[string][]int
}

func NewRegistry() *Registry {
	return &Registry{
		indexes: make(map[string]*rtree.RTree),
		byLayer: make(map[string][]int),
	}
}

// CreateIndex enables the R-tree for a layer. Geometries added to the
// layer afterwards are indexed as well.
func (r *Registry) CreateIndex(layer string) {
	if _, ok := r.indexes[layer]; ok {
		return
	}
	tr := &rtree.RTree{}
	for _, id := range r.byLayer[layer] {
		b := r.entries[id].geometry.Bound()
		tr.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, id)
	}
	r.indexes[layer] = tr
}

// Add caches a geometry for a layer and returns its ID.
func (r *Registry) Add(layer string, g orb.Geometry, name string) uint64 {
	id := len(r.entries)
	r.entries = append(r.entries, entry{geometry: g, name: name, layer: layer})
	r.byLayer[layer] = append(r.byLayer[layer], id)
	if tr, ok := r.indexes[layer]; ok {
		b := g.Bound()
		tr.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, id)
	}
	return uint64(id)
}

// Geometry returns a cached geometry by ID.
func (r *Registry) Geometry(id uint64) (orb.Geometry, bool) {
	if id >= uint64(len(r.entries)) {
		return nil, false
	}
	return r.entries[id].geometry, true
}

// Name returns the optional name of a cached geometry.
func (r *Registry) Name(id uint64) string {
	if id >= uint64(len(r.entries)) {
		return ""
	}
	return r.entries[id].name
}

func (r *Registry) candidates(layer string, b orb.Bound) []int {
	if tr, ok := r.indexes[layer]; ok {
		var ids []int
		tr.Search(
			[2]float64{b.Min[0], b.Min[1]},
			[2]float64{b.Max[0], b.Max[1]},
			func(min, max [2]float64, data interface{}) bool {
				ids = append(ids, data.(int))
				return true
			},
		)
		return ids
	}
	return r.byLayer[layer]
}

// Intersects reports whether g intersects any cached geometry of the
// layer.
func (r *Registry) Intersects(layer string, g orb.Geometry) bool {
	if g == nil {
		return false
	}
	for _, id := range r.candidates(layer, g.Bound()) {
		if geom.Intersects(g, r.entries[id].geometry) {
			return true
		}
	}
	return false
}

// Intersecting returns the names of cached geometries of the layer
// that g intersects.
func (r *Registry) Intersecting(layer string, g orb.Geometry) []string {
	if g == nil {
		return nil
	}
	var names []string
	for _, id := range r.candidates(layer, g.Bound()) {
		if geom.Intersects(g, r.entries[id].geometry) {
			names = append(names, r.entries[id].name)
		}
	}
	return names
}
