package geom

import (
	"reflect"
	"testing"

	"github.com/tilemason/tilemason/element"
)

func seq(items ...element.SeqItem) []element.SeqItem { return items }

func TestAssembleClosedWay(t *testing.T) {
	nodes, ways := testStores(t)
	ways.Insert(10, []element.NodeID{1, 2, 3, 4, 1})
	b := testBuilder(nodes, ways)

	got := b.AssembleMultiPolygon(500, []element.WayID{10}, nil)
	if !reflect.DeepEqual(got, seq(element.Way(10))) {
		t.Fatal(got)
	}
	mp, err := b.MultiPolygon(got)
	if err != nil {
		t.Fatal(err)
	}
	if len(mp) != 1 || len(mp[0]) != 1 {
		t.Fatal(mp)
	}
}

func TestAssembleTwoFragments(t *testing.T) {
	nodes, ways := testStores(t)
	ways.Insert(10, []element.NodeID{1, 2, 3})
	ways.Insert(11, []element.NodeID{3, 4, 1})
	b := testBuilder(nodes, ways)

	got := b.AssembleMultiPolygon(500, []element.WayID{10, 11}, nil)
	if !reflect.DeepEqual(got, seq(element.Way(10), element.Way(11))) {
		t.Fatal(got)
	}
	mp, err := b.MultiPolygon(got)
	if err != nil {
		t.Fatal(err)
	}
	if len(mp) != 1 || len(mp[0]) != 1 {
		t.Fatal(mp)
	}
	// four distinct corners plus the closing point
	if len(mp[0][0]) != 5 {
		t.Fatal(mp[0][0])
	}
}

func TestAssembleReversedFragment(t *testing.T) {
	nodes, ways := testStores(t)
	ways.Insert(10, []element.NodeID{1, 2, 3})
	ways.Insert(14, []element.NodeID{1, 4, 3}) // runs against the loop direction
	b := testBuilder(nodes, ways)

	got := b.AssembleMultiPolygon(500, []element.WayID{10, 14}, nil)
	want := seq(element.Way(10), element.ReverseMark, element.Way(14))
	if !reflect.DeepEqual(got, want) {
		t.Fatal(got)
	}
	mp, err := b.MultiPolygon(got)
	if err != nil {
		t.Fatal(err)
	}
	if ok, reason := ValidMultiPolygon(mp); !ok {
		t.Fatal(reason)
	}
}

// Every fragment after the first runs against the walking direction, so
// each gets a reverse mark.
func TestAssembleAllFragmentsReversed(t *testing.T) {
	nodes, ways := testStores(t)
	ways.Insert(30, []element.NodeID{1, 2})
	ways.Insert(31, []element.NodeID{3, 2})
	ways.Insert(32, []element.NodeID{4, 3})
	ways.Insert(33, []element.NodeID{1, 4})
	b := testBuilder(nodes, ways)

	got := b.AssembleMultiPolygon(500, []element.WayID{30, 31, 32, 33}, nil)
	want := seq(
		element.Way(30),
		element.ReverseMark, element.Way(31),
		element.ReverseMark, element.Way(32),
		element.ReverseMark, element.Way(33),
	)
	if !reflect.DeepEqual(got, want) {
		t.Fatal(got)
	}
	mp, err := b.MultiPolygon(got)
	if err != nil {
		t.Fatal(err)
	}
	if ok, reason := ValidMultiPolygon(mp); !ok {
		t.Fatal(reason)
	}
}

func TestAssembleOuterAndInner(t *testing.T) {
	nodes, ways := testStores(t)
	nodes.Insert(5, deg(0.25, 0.25))
	nodes.Insert(6, deg(0.75, 0.25))
	nodes.Insert(7, deg(0.5, 0.75))
	ways.Insert(10, []element.NodeID{1, 2, 3, 4, 1})
	ways.Insert(20, []element.NodeID{5, 6, 7, 5})
	b := testBuilder(nodes, ways)

	got := b.AssembleMultiPolygon(500, []element.WayID{10}, []element.WayID{20})
	want := seq(element.Way(10), element.InnerMark, element.Way(20))
	if !reflect.DeepEqual(got, want) {
		t.Fatal(got)
	}
	mp, err := b.MultiPolygon(got)
	if err != nil {
		t.Fatal(err)
	}
	if len(mp) != 1 || len(mp[0]) != 2 {
		t.Fatal(mp)
	}
}

func TestAssembleInnerWithoutParent(t *testing.T) {
	nodes, ways := testStores(t)
	nodes.Insert(100, deg(5, 5))
	nodes.Insert(101, deg(6, 5))
	nodes.Insert(102, deg(5.5, 6))
	ways.Insert(10, []element.NodeID{1, 2, 3, 4, 1})
	ways.Insert(20, []element.NodeID{100, 101, 102, 100})
	b := testBuilder(nodes, ways)

	got := b.AssembleMultiPolygon(500, []element.WayID{10}, []element.WayID{20})
	if !reflect.DeepEqual(got, seq(element.Way(10))) {
		t.Fatal(got)
	}
	mp, err := b.MultiPolygon(got)
	if err != nil {
		t.Fatal(err)
	}
	if len(mp[0]) != 1 {
		t.Fatalf("inners = %d", len(mp[0])-1)
	}
}

func TestAssembleTwoPolygons(t *testing.T) {
	nodes, ways := testStores(t)
	nodes.Insert(21, deg(3, 3))
	nodes.Insert(22, deg(4, 3))
	nodes.Insert(23, deg(4, 4))
	nodes.Insert(24, deg(3, 4))
	ways.Insert(10, []element.NodeID{1, 2, 3, 4, 1})
	ways.Insert(11, []element.NodeID{21, 22, 23, 24, 21})
	b := testBuilder(nodes, ways)

	got := b.AssembleMultiPolygon(500, []element.WayID{10, 11}, nil)
	want := seq(element.Way(10), element.OuterMark, element.Way(11))
	if !reflect.DeepEqual(got, want) {
		t.Fatal(got)
	}
	mp, err := b.MultiPolygon(got)
	if err != nil {
		t.Fatal(err)
	}
	if len(mp) != 2 {
		t.Fatal(mp)
	}
}

func TestAssembleMissingAndEmptyWays(t *testing.T) {
	nodes, ways := testStores(t)
	ways.Insert(10, []element.NodeID{1, 2, 3, 4, 1})
	ways.Insert(12, nil)
	b := testBuilder(nodes, ways)

	// way 99 is absent, way 12 empty; both are skipped
	got := b.AssembleMultiPolygon(500, []element.WayID{99, 12, 10}, nil)
	if !reflect.DeepEqual(got, seq(element.Way(10))) {
		t.Fatal(got)
	}
}

func TestAssembleInnerEqualsOuter(t *testing.T) {
	nodes, ways := testStores(t)
	ways.Insert(10, []element.NodeID{1, 2, 3, 4, 1})
	ways.Insert(11, []element.NodeID{1, 2, 3, 4, 1})
	b := testBuilder(nodes, ways)

	got := b.AssembleMultiPolygon(500, []element.WayID{10}, []element.WayID{11})
	if !reflect.DeepEqual(got, seq(element.Way(10))) {
		t.Fatal(got)
	}
}

// Re-assembling the ways of a flattened sequence, re-split by role,
// yields the same ring structure.
func TestAssembleIdempotent(t *testing.T) {
	nodes, ways := testStores(t)
	nodes.Insert(5, deg(0.25, 0.25))
	nodes.Insert(6, deg(0.75, 0.25))
	nodes.Insert(7, deg(0.5, 0.75))
	ways.Insert(10, []element.NodeID{1, 2, 3})
	ways.Insert(11, []element.NodeID{3, 4, 1})
	ways.Insert(20, []element.NodeID{5, 6, 7, 5})
	b := testBuilder(nodes, ways)

	first := b.AssembleMultiPolygon(500, []element.WayID{10, 11}, []element.WayID{20})

	// split the flattened sequence back into roles
	var outer, inner []element.WayID
	isOuter := true
	for _, it := range first {
		switch it.Mark {
		case element.MarkOuter:
			isOuter = true
		case element.MarkInner:
			isOuter = false
		case element.MarkWay:
			if isOuter {
				outer = append(outer, it.ID)
			} else {
				inner = append(inner, it.ID)
			}
		}
	}
	second := b.AssembleMultiPolygon(500, outer, inner)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("first %v second %v", first, second)
	}
}
