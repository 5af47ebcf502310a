// Package output defines the records the user script emits: one object
// per (layer, geometry type, source element) with its attribute set.
// Objects are totally ordered so tile buckets can be deduplicated and
// adjacent same-attribute objects coalesced.
package output

import "sort"

// GeomType tags how an object's geometry is materialized at write time.
type GeomType uint8

const (
	Point GeomType = iota
	Linestring
	Polygon
	Centroid
	CachedPoint
	CachedLinestring
	CachedPolygon
)

func (t GeomType) String() string {
	switch t {
	case Point:
		return "point"
	case Linestring:
		return "linestring"
	case Polygon:
		return "polygon"
	case Centroid:
		return "centroid"
	case CachedPoint:
		return "cached point"
	case CachedLinestring:
		return "cached linestring"
	case CachedPolygon:
		return "cached polygon"
	}
	return "invalid"
}

// IsCached reports whether the geometry comes from the pre-cached
// registry instead of the OSM stores.
func (t GeomType) IsCached() bool {
	return t >= CachedPoint
}

// ValueKind discriminates attribute values.
type ValueKind uint8

const (
	StringValue ValueKind = iota
	FloatValue
	BoolValue
)

// Value is one attribute value.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

func String(s string) Value { return Value{Kind: StringValue, Str: s} }
func Float(f float64) Value { return Value{Kind: FloatValue, Num: f} }
func Boolean(b bool) Value  { return Value{Kind: BoolValue, Bool: b} }

// Interface returns the value as a plain Go value for serialization.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case FloatValue:
		return v.Num
	case BoolValue:
		return v.Bool
	}
	return v.Str
}

// Attribute is one key/value pair attached to an object.
type Attribute struct {
	Key   string
	Value Value
}

// SortAttributes puts an attribute list into its canonical key order.
// Emitters must canonicalize before records are compared; the order of
// the script's Attribute calls carries no meaning.
func SortAttributes(attrs []Attribute) {
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
}

// Object is one output record. Layer is an index into the configured
// layer list; ID is the source OSM element ID (node, way or relation
// pseudo-way, depending on Type). Attributes are held in canonical key
// order so that equal attribute sets compare equal regardless of the
// order they were emitted in.
type Object struct {
	Layer      int
	Type       GeomType
	ID         uint64
	Attributes []Attribute
}

func compareValue(a, b Value) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	switch a.Kind {
	case FloatValue:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	case BoolValue:
		switch {
		case !a.Bool && b.Bool:
			return -1
		case a.Bool && !b.Bool:
			return 1
		}
		return 0
	}
	switch {
	case a.Str < b.Str:
		return -1
	case a.Str > b.Str:
		return 1
	}
	return 0
}

func compareAttributes(a, b []Attribute) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].Key != b[i].Key {
			if a[i].Key < b[i].Key {
				return -1
			}
			return 1
		}
		if c := compareValue(a[i].Value, b[i].Value); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// Compare implements the total order: layer, then attributes, then
// geometry type, then source ID. Sorting a bucket this way makes
// duplicates adjacent and groups coalescing candidates.
func Compare(a, b Object) int {
	if a.Layer != b.Layer {
		return a.Layer - b.Layer
	}
	if c := compareAttributes(a.Attributes, b.Attributes); c != 0 {
		return c
	}
	if a.Type != b.Type {
		return int(a.Type) - int(b.Type)
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// SameAttributes reports whether two objects carry an identical
// attribute list.
func SameAttributes(a, b Object) bool {
	return compareAttributes(a.Attributes, b.Attributes) == 0
}

// SortUnique sorts objects into the total order and drops exact
// duplicates in place.
func SortUnique(objs []Object) []Object {
	sort.Slice(objs, func(i, j int) bool { return Compare(objs[i], objs[j]) < 0 })
	out := objs[:0]
	for i, o := range objs {
		if i > 0 && Compare(out[len(out)-1], o) == 0 {
			continue
		}
		out = append(out, o)
	}
	return out
}
