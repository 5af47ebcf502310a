package geom

import (
	"math"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// The planar operations the rest of the pipeline needs (winding
// correction, validity, containment, union, intersection tests) live in
// this file. Everything is expressed over orb types; polygol provides
// the boolean overlay that orb lacks.

// CloseRing appends the first point when the ring is not closed.
func CloseRing(r orb.Ring) orb.Ring {
	if len(r) >= 2 && !r[0].Equal(r[len(r)-1]) {
		r = append(r, r[0])
	}
	return r
}

// CorrectRing closes the ring and rewinds it to the wanted orientation.
func CorrectRing(r orb.Ring, orient orb.Orientation) orb.Ring {
	r = CloseRing(r)
	if len(r) >= 4 && r.Orientation() != orient {
		r.Reverse()
	}
	return r
}

// CorrectPolygon closes and rewinds all rings: counter-clockwise
// exterior, clockwise holes.
func CorrectPolygon(p orb.Polygon) orb.Polygon {
	for i, r := range p {
		if i == 0 {
			p[i] = CorrectRing(r, orb.CCW)
		} else {
			p[i] = CorrectRing(r, orb.CW)
		}
	}
	return p
}

// CorrectMultiPolygon applies CorrectPolygon to every polygon.
func CorrectMultiPolygon(mp orb.MultiPolygon) orb.MultiPolygon {
	for i, p := range mp {
		mp[i] = CorrectPolygon(p)
	}
	return mp
}

func segmentsIntersect(a, b, c, d orb.Point) bool {
	cross := func(o, p, q orb.Point) float64 {
		return (p[0]-o[0])*(q[1]-o[1]) - (p[1]-o[1])*(q[0]-o[0])
	}
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// ValidRing checks that a ring is closed, has at least three distinct
// points, encloses a non-zero area and does not self-intersect. The
// reason string is empty for valid rings.
func ValidRing(r orb.Ring) (bool, string) {
	if len(r) < 4 {
		return false, "too few points"
	}
	if !r[0].Equal(r[len(r)-1]) {
		return false, "not closed"
	}
	if math.Abs(planar.Area(r)) == 0 {
		return false, "zero area"
	}
	n := len(r) - 1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsIntersect(r[i], r[i+1], r[j], r[j+1]) {
				return false, "self-intersection"
			}
		}
	}
	if math.Abs(planar.Area(r)) == 0 {
		return false, "zero area"
	}
	return true, ""
}

// ValidMultiPolygon checks every ring and that no hole repeats its
// shell.
func ValidMultiPolygon(mp orb.MultiPolygon) (bool, string) {
	if len(mp) == 0 {
		return false, "empty"
	}
	for _, p := range mp {
		if len(p) == 0 {
			return false, "polygon without exterior ring"
		}
		for _, r := range p {
			if ok, reason := ValidRing(r); !ok {
				return false, reason
			}
		}
		for _, hole := range p[1:] {
			if RingsEqual(hole, p[0]) {
				return false, "interior ring equals exterior ring"
			}
		}
	}
	return true, ""
}

// RingsEqual reports whether two closed rings trace the same boundary,
// in either direction and from any starting point.
func RingsEqual(a, b orb.Ring) bool {
	if len(a) != len(b) || len(a) < 4 {
		return false
	}
	if !a.Bound().Equal(b.Bound()) {
		return false
	}
	n := len(a) - 1
	match := func(offset int, reverse bool) bool {
		for i := 0; i < n; i++ {
			j := (offset + i) % n
			if reverse {
				j = ((offset-i)%n + n) % n
			}
			if !a[i].Equal(b[j]) {
				return false
			}
		}
		return true
	}
	for off := 0; off < n; off++ {
		if !b[off].Equal(a[0]) {
			continue
		}
		if match(off, false) || match(off, true) {
			return true
		}
	}
	return false
}

// RingWithin reports whether inner lies within outer. Rings assembled
// from distinct OSM ways do not cross, so vertex containment decides;
// a ring never lies within its own duplicate.
func RingWithin(inner, outer orb.Ring) bool {
	if len(inner) == 0 || len(outer) < 4 {
		return false
	}
	if RingsEqual(inner, outer) {
		return false
	}
	if !outer.Bound().Contains(inner.Bound().Min) || !outer.Bound().Contains(inner.Bound().Max) {
		return false
	}
	for _, p := range inner {
		if !planar.RingContains(outer, p) {
			return false
		}
	}
	return true
}

func toPolygol(mp orb.MultiPolygon) polygol.Geom {
	g := make(polygol.Geom, 0, len(mp))
	for _, p := range mp {
		rings := make([][][]float64, 0, len(p))
		for _, r := range p {
			pts := make([][]float64, 0, len(r))
			for _, pt := range r {
				pts = append(pts, []float64{pt[0], pt[1]})
			}
			rings = append(rings, pts)
		}
		g = append(g, rings)
	}
	return g
}

func fromPolygol(g polygol.Geom) orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(g))
	for _, rings := range g {
		p := make(orb.Polygon, 0, len(rings))
		for _, pts := range rings {
			r := make(orb.Ring, 0, len(pts))
			for _, pt := range pts {
				r = append(r, orb.Point{pt[0], pt[1]})
			}
			p = append(p, r)
		}
		mp = append(mp, p)
	}
	return mp
}

// UnionMultiPolygons dissolves two multipolygons into one. On overlay
// failure the inputs are concatenated, which keeps disjoint features
// intact.
func UnionMultiPolygons(a, b orb.MultiPolygon) orb.MultiPolygon {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	res, err := polygol.Union(toPolygol(a), toPolygol(b))
	if err != nil || len(res) == 0 {
		return append(a, b...)
	}
	return CorrectMultiPolygon(fromPolygol(res))
}

// UnionMultiLineStrings merges two multilinestrings by concatenation;
// linear features have no interior to dissolve.
func UnionMultiLineStrings(a, b orb.MultiLineString) orb.MultiLineString {
	return append(a, b...)
}

// Centroid returns the centroid of a geometry in the projected plane.
func Centroid(g orb.Geometry) orb.Point {
	c, _ := planar.CentroidArea(g)
	return c
}

// Area returns the absolute area of a geometry in the projected plane.
func Area(g orb.Geometry) float64 {
	return math.Abs(planar.Area(g))
}

// Length returns the length of all linear parts of a geometry.
func Length(g orb.Geometry) float64 {
	return planar.Length(g)
}

func pointOnLine(pt orb.Point, ls orb.LineString) bool {
	const eps = 1e-12
	for i := 0; i+1 < len(ls); i++ {
		a, b := ls[i], ls[i+1]
		cross := (b[0]-a[0])*(pt[1]-a[1]) - (b[1]-a[1])*(pt[0]-a[0])
		if math.Abs(cross) > eps {
			continue
		}
		if pt[0] < math.Min(a[0], b[0])-eps || pt[0] > math.Max(a[0], b[0])+eps ||
			pt[1] < math.Min(a[1], b[1])-eps || pt[1] > math.Max(a[1], b[1])+eps {
			continue
		}
		return true
	}
	return false
}

func lineIntersectsRing(ls []orb.Point, r orb.Ring) bool {
	for i := 0; i+1 < len(ls); i++ {
		for j := 0; j+1 < len(r); j++ {
			if segmentsIntersect(ls[i], ls[i+1], r[j], r[j+1]) {
				return true
			}
		}
	}
	return false
}

func polygonCovers(p orb.Polygon, pt orb.Point) bool {
	return planar.PolygonContains(p, pt)
}

// Intersects is a planar intersection test between the geometry
// families the script queries use: points, linestrings and (multi)
// polygons.
func Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	switch ag := a.(type) {
	case orb.Point:
		switch bg := b.(type) {
		case orb.Point:
			return ag.Equal(bg)
		case orb.Polygon:
			return polygonCovers(bg, ag)
		case orb.MultiPolygon:
			return planar.MultiPolygonContains(bg, ag)
		case orb.LineString:
			return pointOnLine(ag, bg)
		case orb.MultiLineString:
			for _, ls := range bg {
				if pointOnLine(ag, ls) {
					return true
				}
			}
			return false
		}
		return true
	case orb.LineString:
		switch bg := b.(type) {
		case orb.Point:
			return Intersects(bg, ag)
		case orb.LineString:
			return lineIntersectsRing(ag, orb.Ring(bg))
		case orb.Polygon:
			if len(ag) > 0 && polygonCovers(bg, ag[0]) {
				return true
			}
			for _, r := range bg {
				if lineIntersectsRing(ag, r) {
					return true
				}
			}
			return false
		case orb.MultiPolygon:
			for _, p := range bg {
				if Intersects(ag, p) {
					return true
				}
			}
			return false
		}
		return true
	case orb.Polygon:
		switch bg := b.(type) {
		case orb.Point, orb.LineString:
			return Intersects(bg, ag)
		case orb.Polygon:
			if len(ag) > 0 && len(ag[0]) > 0 && polygonCovers(bg, ag[0][0]) {
				return true
			}
			if len(bg) > 0 && len(bg[0]) > 0 && polygonCovers(ag, bg[0][0]) {
				return true
			}
			for _, r := range ag {
				for _, s := range bg {
					if lineIntersectsRing(r, s) {
						return true
					}
				}
			}
			return false
		case orb.MultiPolygon:
			for _, p := range bg {
				if Intersects(ag, p) {
					return true
				}
			}
			return false
		}
		return true
	case orb.MultiPolygon:
		for _, p := range ag {
			if Intersects(p, b) {
				return true
			}
		}
		return false
	case orb.MultiLineString:
		for _, ls := range ag {
			if Intersects(ls, b) {
				return true
			}
		}
		return false
	case orb.Ring:
		return Intersects(orb.Polygon{ag}, b)
	}
	// unhandled combinations fall back to the bound test above
	return true
}
