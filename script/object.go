package script

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/tilemason/tilemason/config"
	"github.com/tilemason/tilemason/element"
	"github.com/tilemason/tilemason/geom"
	"github.com/tilemason/tilemason/logging"
	"github.com/tilemason/tilemason/output"
	"github.com/tilemason/tilemason/proj"
	"github.com/tilemason/tilemason/spatial"
)

// Env bundles what script objects need to answer geometric queries and
// resolve layer names.
type Env struct {
	Conf    *config.Config
	Builder *geom.Builder
	Spatial *spatial.Registry
	Log     *logging.Logger

	// quiet builder for speculative queries, so Area() on a broken
	// relation does not repeat the assembly warnings
	quiet *geom.Builder
}

func NewEnv(conf *config.Config, builder *geom.Builder, registry *spatial.Registry, log *logging.Logger) *Env {
	if log == nil {
		log = logging.NewLogger("script")
	}
	return &Env{
		Conf:    conf,
		Builder: builder,
		Spatial: registry,
		Log:     log,
		quiet:   geom.NewBuilder(builder.Nodes, builder.Ways, logging.Discard()),
	}
}

type kind uint8

const (
	nodeKind kind = iota
	wayKind
	relationKind
)

// Object is the facade handed to the user script for each element. The
// script reads tags and geometry properties and emits output records
// through Layer/Attribute calls.
type Object struct {
	env  *Env
	kind kind
	id   uint64
	tags element.Tags

	coord element.LatpLon   // node
	refs  []element.NodeID  // way
	outer []element.WayID   // relation
	inner []element.WayID   // relation

	// Outputs are the records emitted so far for this element.
	Outputs []output.Object
}

func NewNodeObject(env *Env, id uint64, tags element.Tags, coord element.LatpLon) *Object {
	return &Object{env: env, kind: nodeKind, id: id, tags: tags, coord: coord}
}

func NewWayObject(env *Env, id uint64, tags element.Tags, refs []element.NodeID) *Object {
	return &Object{env: env, kind: wayKind, id: id, tags: tags, refs: refs}
}

func NewRelationObject(env *Env, id uint64, tags element.Tags, outer, inner []element.WayID) *Object {
	return &Object{env: env, kind: relationKind, id: id, tags: tags, outer: outer, inner: inner}
}

func (o *Object) ID() uint64 { return o.id }

// Empty reports whether the script emitted nothing for this element.
func (o *Object) Empty() bool { return len(o.Outputs) == 0 }

func (o *Object) Holds(key string) bool  { return o.tags.Has(key) }
func (o *Object) Find(key string) string { return o.tags.Find(key) }

// IsClosed reports whether a way ends where it starts. Relations count
// as closed, nodes do not.
func (o *Object) IsClosed() bool {
	switch o.kind {
	case wayKind:
		return len(o.refs) >= 2 && o.refs[0] == o.refs[len(o.refs)-1]
	case relationKind:
		return true
	}
	return false
}

// geometry materializes the element in the projected plane. Nodes
// become points, ways linestrings or polygons, relations
// multipolygons.
func (o *Object) geometry() orb.Geometry {
	switch o.kind {
	case nodeKind:
		lon, latp := proj.Degrees(o.coord)
		return orb.Point{lon, latp}
	case wayKind:
		if o.IsClosed() {
			p, err := o.env.quiet.Polygon(o.refs)
			if err != nil {
				return nil
			}
			return p
		}
		ls, err := o.env.quiet.Linestring(o.refs)
		if err != nil {
			return nil
		}
		return ls
	case relationKind:
		seq := o.env.quiet.AssembleMultiPolygon(element.WayID(o.id), o.outer, o.inner)
		mp, err := o.env.quiet.MultiPolygon(seq)
		if err != nil {
			return nil
		}
		return mp
	}
	return nil
}

// Area returns the enclosed area in projected square degrees.
func (o *Object) Area() float64 {
	g := o.geometry()
	if g == nil {
		return 0
	}
	return geom.Area(g)
}

// Length returns the length in projected degrees.
func (o *Object) Length() float64 {
	g := o.geometry()
	if g == nil {
		return 0
	}
	return geom.Length(g)
}

func (o *Object) refLatp() float64 {
	switch o.kind {
	case nodeKind:
		_, latp := proj.Degrees(o.coord)
		return latp
	case wayKind:
		if len(o.refs) > 0 {
			if ll, err := o.env.Builder.Nodes.Get(o.refs[0]); err == nil {
				_, latp := proj.Degrees(ll)
				return latp
			}
		}
	case relationKind:
		if g := o.geometry(); g != nil {
			return geom.Centroid(g)[1]
		}
	}
	return 0
}

// ScaleToMeter converts a length in projected degrees to meters at the
// element's latitude.
func (o *Object) ScaleToMeter(deg float64) float64 {
	latp := o.refLatp()
	return deg * metersPerDegree * math.Cos(proj.Latp2Lat(latp)*math.Pi/180)
}

// ScaleToKiloMeter is ScaleToMeter divided by a thousand.
func (o *Object) ScaleToKiloMeter(deg float64) float64 {
	return o.ScaleToMeter(deg) / 1000
}

const metersPerDegree = 111319.9

// Layer emits an output record into the named layer. For ways,
// asClosed forces polygon output, also for an unclosed way; without it
// the way is emitted as a linestring.
func (o *Object) Layer(name string, asClosed bool) error {
	idx, ok := o.env.Conf.LayerIndex(name)
	if !ok {
		return errUnknownLayer(name)
	}
	var t output.GeomType
	switch o.kind {
	case nodeKind:
		t = output.Point
	case wayKind:
		// winding correction closes the ring, so an unclosed way may
		// still be emitted as a polygon
		if asClosed {
			t = output.Polygon
		} else {
			t = output.Linestring
		}
	case relationKind:
		t = output.Polygon
	}
	o.Outputs = append(o.Outputs, output.Object{Layer: idx, Type: t, ID: o.id})
	return nil
}

// LayerAsCentroid emits a point record at the element's centroid.
func (o *Object) LayerAsCentroid(name string) error {
	idx, ok := o.env.Conf.LayerIndex(name)
	if !ok {
		return errUnknownLayer(name)
	}
	o.Outputs = append(o.Outputs, output.Object{Layer: idx, Type: output.Centroid, ID: o.id})
	return nil
}

func (o *Object) attribute(key string, v output.Value) {
	if len(o.Outputs) == 0 {
		o.env.Log.Warnf("element %d: Attribute(%q) before Layer, ignored", o.id, key)
		return
	}
	last := &o.Outputs[len(o.Outputs)-1]
	last.Attributes = append(last.Attributes, output.Attribute{Key: key, Value: v})
	// records compare by their attribute list, so the call order of the
	// script must not leak into it
	output.SortAttributes(last.Attributes)
}

func (o *Object) Attribute(key, value string) {
	o.attribute(key, output.String(value))
}

func (o *Object) AttributeNumeric(key string, value float64) {
	o.attribute(key, output.Float(value))
}

func (o *Object) AttributeBoolean(key string, value bool) {
	o.attribute(key, output.Boolean(value))
}

// Intersects reports whether the element touches any cached geometry
// of the named source layer.
func (o *Object) Intersects(layer string) bool {
	return o.env.Spatial.Intersects(layer, o.geometry())
}

// FindIntersecting lists the names of cached geometries the element
// touches.
func (o *Object) FindIntersecting(layer string) []string {
	return o.env.Spatial.Intersecting(layer, o.geometry())
}

type errUnknownLayer string

func (e errUnknownLayer) Error() string {
	return "unknown layer " + string(e)
}
