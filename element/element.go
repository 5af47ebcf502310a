// Package element holds the basic OSM value types shared by all stages:
// IDs, fixed-point coordinates, tags and the encoded way sequences that
// describe multipolygon relations.
package element

import "fmt"

// WayID identifies an OSM way. Relation IDs are reused as pseudo-way IDs
// when a relation is stored as an assembled multipolygon.
type WayID uint32

// LatpLon is a projected coordinate pair at 1e7 fixed-point scale.
// Latp is the web-Mercator projected latitude (not the raw latitude),
// Lon is the raw longitude.
type LatpLon struct {
	Latp int32
	Lon  int32
}

func (ll LatpLon) String() string {
	return fmt.Sprintf("latp=%d lon=%d", ll.Latp, ll.Lon)
}

// DistSq returns the squared Euclidean distance to o in fixed-point units.
func (ll LatpLon) DistSq(o LatpLon) int64 {
	dLatp := int64(ll.Latp) - int64(o.Latp)
	dLon := int64(ll.Lon) - int64(o.Lon)
	return dLatp*dLatp + dLon*dLon
}

type Tags map[string]string

func (t Tags) Has(key string) bool {
	_, ok := t[key]
	return ok
}

func (t Tags) Find(key string) string {
	return t[key]
}
