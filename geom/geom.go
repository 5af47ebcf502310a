// Package geom builds planar geometries from the stored OSM elements:
// linestrings and polygons from ways, multipolygons from assembled
// relation sequences. It also hosts the relation assembler that turns
// unordered outer/inner way bags into an encoded multipolygon
// sequence.
package geom

import (
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/tilemason/tilemason/element"
	"github.com/tilemason/tilemason/logging"
	"github.com/tilemason/tilemason/proj"
)

// NodeSource resolves node IDs to stored coordinates.
type NodeSource interface {
	Get(id element.NodeID) (element.LatpLon, error)
}

// WaySource resolves way IDs to their node lists.
type WaySource interface {
	Get(id element.WayID) ([]element.NodeID, error)
	Contains(id element.WayID) bool
}

// Builder constructs geometries against a node and way source.
// Recoverable assembly problems are reported on Log; construction
// failures are returned as errors.
type Builder struct {
	Nodes NodeSource
	Ways  WaySource
	Log   *logging.Logger
}

func NewBuilder(nodes NodeSource, ways WaySource, log *logging.Logger) *Builder {
	if log == nil {
		log = logging.Discard()
	}
	return &Builder{Nodes: nodes, Ways: ways, Log: log}
}

// FillPoints resolves refs and appends their projected points to sink,
// skipping points equal to the previously appended one (including the
// point already at the end of sink). It returns how many points were
// appended. With reverse set, exactly the appended points are reversed
// in place; earlier sink content is untouched.
func (b *Builder) FillPoints(sink *[]orb.Point, refs []element.NodeID, reverse bool) (int, error) {
	scratch := make([]orb.Point, 0, len(refs))
	for _, ref := range refs {
		ll, err := b.Nodes.Get(ref)
		if err != nil {
			return 0, errors.Wrapf(err, "node %d", ref)
		}
		lon, latp := proj.Degrees(ll)
		p := orb.Point{lon, latp}
		if n := len(scratch); n > 0 && scratch[n-1].Equal(p) {
			continue
		}
		scratch = append(scratch, p)
	}
	if reverse {
		for i, j := 0, len(scratch)-1; i < j; i, j = i+1, j-1 {
			scratch[i], scratch[j] = scratch[j], scratch[i]
		}
	}
	points := *sink
	appended := 0
	for _, p := range scratch {
		// after the in-way dedup above only the seam point can still
		// collide with the sink's tail
		if n := len(points); n > 0 && points[n-1].Equal(p) {
			continue
		}
		points = append(points, p)
		appended++
	}
	*sink = points
	return appended, nil
}

// Linestring builds an unclosed linestring from a node list.
func (b *Builder) Linestring(refs []element.NodeID) (orb.LineString, error) {
	ls := make(orb.LineString, 0, len(refs))
	if _, err := b.FillPoints((*[]orb.Point)(&ls), refs, false); err != nil {
		return nil, err
	}
	return ls, nil
}

// Polygon builds a single-ring polygon from a node list, closed and
// winding-corrected.
func (b *Builder) Polygon(refs []element.NodeID) (orb.Polygon, error) {
	ring := make(orb.Ring, 0, len(refs)+1)
	if _, err := b.FillPoints((*[]orb.Point)(&ring), refs, false); err != nil {
		return nil, err
	}
	return CorrectPolygon(orb.Polygon{ring}), nil
}

// WayLinestring builds a linestring for a stored way.
func (b *Builder) WayLinestring(id element.WayID) (orb.LineString, error) {
	refs, err := b.Ways.Get(id)
	if err != nil {
		return nil, errors.Wrapf(err, "way %d", id)
	}
	return b.Linestring(refs)
}

// WayPolygon builds a polygon for a stored way.
func (b *Builder) WayPolygon(id element.WayID) (orb.Polygon, error) {
	refs, err := b.Ways.Get(id)
	if err != nil {
		return nil, errors.Wrapf(err, "way %d", id)
	}
	return b.Polygon(refs)
}

// MultiPolygon reconstructs a multipolygon from an encoded way
// sequence. The first ring is an outer ring; OuterMark starts a new
// polygon, InnerMark a hole of the current polygon, and ReverseMark
// flips the traversal of the next way. The whole result is
// winding-corrected.
func (b *Builder) MultiPolygon(seq []element.SeqItem) (orb.MultiPolygon, error) {
	if len(seq) == 0 {
		return nil, nil
	}
	var mp orb.MultiPolygon
	ring := orb.Ring{}
	isOuter := true
	reverse := false

	closeRing := func() error {
		if isOuter {
			mp = append(mp, orb.Polygon{ring})
		} else {
			if len(mp) == 0 {
				return errors.New("inner ring before any outer ring")
			}
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
		}
		ring = orb.Ring{}
		return nil
	}

	for _, it := range seq {
		switch it.Mark {
		case element.MarkReverse:
			reverse = true
		case element.MarkWay:
			refs, err := b.Ways.Get(it.ID)
			if err != nil {
				return nil, errors.Wrapf(err, "way %d", it.ID)
			}
			if _, err := b.FillPoints((*[]orb.Point)(&ring), refs, reverse); err != nil {
				return nil, errors.Wrapf(err, "way %d", it.ID)
			}
			reverse = false
		case element.MarkOuter, element.MarkInner:
			if err := closeRing(); err != nil {
				return nil, err
			}
			isOuter = it.Mark == element.MarkOuter
		}
	}
	if err := closeRing(); err != nil {
		return nil, err
	}
	return CorrectMultiPolygon(mp), nil
}
