package geom

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func square(x, y, size float64) orb.Ring {
	return orb.Ring{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}
}

func TestCorrectRing(t *testing.T) {
	open := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	r := CorrectRing(open, orb.CCW)
	if !r[0].Equal(r[len(r)-1]) {
		t.Fatal("ring not closed")
	}
	if r.Orientation() != orb.CCW {
		t.Fatal("ring not rewound")
	}
	cw := square(0, 0, 1)
	cw.Reverse()
	if CorrectRing(cw, orb.CCW).Orientation() != orb.CCW {
		t.Fatal("clockwise ring not rewound")
	}
}

func TestValidRing(t *testing.T) {
	if ok, _ := ValidRing(square(0, 0, 1)); !ok {
		t.Fatal("square should be valid")
	}
	if ok, reason := ValidRing(orb.Ring{{0, 0}, {1, 0}, {0, 0}}); ok || reason == "" {
		t.Fatal("degenerate ring accepted")
	}
	if ok, reason := ValidRing(orb.Ring{{0, 0}, {1, 0}, {1, 1}}); ok || reason != "not closed" {
		t.Fatal(reason)
	}
	bowtie := orb.Ring{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}
	if ok, reason := ValidRing(bowtie); ok || reason != "self-intersection" {
		t.Fatal(reason)
	}
}

func TestRingsEqual(t *testing.T) {
	a := square(0, 0, 1)
	// same boundary, rotated starting point
	b := orb.Ring{{1, 0}, {1, 1}, {0, 1}, {0, 0}, {1, 0}}
	if !RingsEqual(a, b) {
		t.Fatal("rotated ring not recognized")
	}
	c := square(0, 0, 1)
	c.Reverse()
	if !RingsEqual(a, c) {
		t.Fatal("reversed ring not recognized")
	}
	if RingsEqual(a, square(0, 0, 2)) {
		t.Fatal("different rings reported equal")
	}
}

func TestRingWithin(t *testing.T) {
	outer := square(0, 0, 10)
	inner := square(2, 2, 2)
	if !RingWithin(inner, outer) {
		t.Fatal("inner not within outer")
	}
	if RingWithin(outer, inner) {
		t.Fatal("outer within inner")
	}
	if RingWithin(square(0, 0, 10), outer) {
		t.Fatal("a ring must not be within its duplicate")
	}
	if RingWithin(square(20, 20, 2), outer) {
		t.Fatal("disjoint ring within outer")
	}
}

func TestUnionMultiPolygonsDisjoint(t *testing.T) {
	a := orb.MultiPolygon{{square(0, 0, 1)}}
	b := orb.MultiPolygon{{square(5, 5, 1)}}
	u := UnionMultiPolygons(a, b)
	if got := Area(u); math.Abs(got-2) > 1e-9 {
		t.Fatalf("area %v", got)
	}
}

func TestUnionMultiPolygonsOverlapping(t *testing.T) {
	a := orb.MultiPolygon{{square(0, 0, 2)}}
	b := orb.MultiPolygon{{square(1, 1, 2)}}
	u := UnionMultiPolygons(a, b)
	// 4 + 4 - 1 of overlap
	if got := Area(u); math.Abs(got-7) > 1e-6 {
		t.Fatalf("area %v", got)
	}
}

// Touching squares dissolve their shared edge; the covered area is the
// plain sum.
func TestUnionMultiPolygonsTouching(t *testing.T) {
	a := orb.MultiPolygon{{square(0, 0, 1)}}
	b := orb.MultiPolygon{{square(1, 0, 1)}}
	u := UnionMultiPolygons(a, b)
	if got := Area(u); math.Abs(got-2) > 1e-9 {
		t.Fatalf("area %v", got)
	}
}

func TestUnionMultiLineStrings(t *testing.T) {
	a := orb.MultiLineString{{{0, 0}, {1, 0}}}
	b := orb.MultiLineString{{{2, 0}, {3, 0}}}
	u := UnionMultiLineStrings(a, b)
	if len(u) != 2 {
		t.Fatal(u)
	}
	if got := Length(u); math.Abs(got-2) > 1e-9 {
		t.Fatal(got)
	}
}

func TestIntersects(t *testing.T) {
	poly := orb.Polygon{square(0, 0, 4)}
	if !Intersects(orb.Point{1, 1}, poly) {
		t.Fatal("point in polygon")
	}
	if Intersects(orb.Point{9, 9}, poly) {
		t.Fatal("point outside polygon")
	}
	crossing := orb.LineString{{-1, 2}, {5, 2}}
	if !Intersects(crossing, poly) {
		t.Fatal("crossing line")
	}
	inside := orb.LineString{{1, 1}, {2, 2}}
	if !Intersects(inside, poly) {
		t.Fatal("contained line")
	}
	outside := orb.LineString{{9, 9}, {10, 10}}
	if Intersects(outside, poly) {
		t.Fatal("distant line")
	}
	if !Intersects(orb.Polygon{square(3, 3, 4)}, poly) {
		t.Fatal("overlapping polygons")
	}
	if Intersects(orb.Polygon{square(30, 30, 4)}, poly) {
		t.Fatal("distant polygons")
	}
}

func TestValidMultiPolygon(t *testing.T) {
	mp := orb.MultiPolygon{{square(0, 0, 4), square(1, 1, 1)}}
	if ok, reason := ValidMultiPolygon(mp); !ok {
		t.Fatal(reason)
	}
	dup := orb.MultiPolygon{{square(0, 0, 4), square(0, 0, 4)}}
	if ok, _ := ValidMultiPolygon(dup); ok {
		t.Fatal("hole equal to shell accepted")
	}
	if ok, _ := ValidMultiPolygon(nil); ok {
		t.Fatal("empty multipolygon accepted")
	}
}
