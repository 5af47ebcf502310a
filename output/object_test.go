package output

import "testing"

func TestCompareOrder(t *testing.T) {
	a := Object{Layer: 0, Type: Polygon, ID: 5}
	b := Object{Layer: 1, Type: Point, ID: 1}
	if Compare(a, b) >= 0 {
		t.Fatal("layer should dominate")
	}
	c := Object{Layer: 0, Type: Polygon, ID: 5, Attributes: []Attribute{{Key: "a", Value: String("x")}}}
	if Compare(a, c) >= 0 {
		t.Fatal("fewer attributes sorts first")
	}
	d := Object{Layer: 0, Type: Linestring, ID: 9}
	e := Object{Layer: 0, Type: Polygon, ID: 1}
	if Compare(d, e) >= 0 {
		t.Fatal("geometry type should beat ID")
	}
}

func TestSortUnique(t *testing.T) {
	objs := []Object{
		{Layer: 1, Type: Point, ID: 3},
		{Layer: 0, Type: Polygon, ID: 7},
		{Layer: 1, Type: Point, ID: 3},
		{Layer: 0, Type: Polygon, ID: 7},
		{Layer: 0, Type: Polygon, ID: 2},
	}
	objs = SortUnique(objs)
	if len(objs) != 3 {
		t.Fatal(objs)
	}
	if objs[0].ID != 2 || objs[1].ID != 7 || objs[2].Layer != 1 {
		t.Fatal(objs)
	}
}

func TestSortAttributesCanonicalizes(t *testing.T) {
	a := []Attribute{{Key: "kind", Value: String("wood")}, {Key: "area", Value: Float(2)}}
	b := []Attribute{{Key: "area", Value: Float(2)}, {Key: "kind", Value: String("wood")}}
	SortAttributes(a)
	SortAttributes(b)
	x := Object{Attributes: a}
	y := Object{Attributes: b}
	if !SameAttributes(x, y) {
		t.Fatal("reordered but equal attribute sets differ")
	}
	if Compare(x, y) != 0 {
		t.Fatal("reordered but equal attribute sets do not compare equal")
	}

	objs := SortUnique([]Object{x, y})
	if len(objs) != 1 {
		t.Fatal(objs)
	}
}

func TestSameAttributes(t *testing.T) {
	a := Object{Attributes: []Attribute{{Key: "kind", Value: String("wood")}, {Key: "area", Value: Float(2)}}}
	b := Object{Attributes: []Attribute{{Key: "kind", Value: String("wood")}, {Key: "area", Value: Float(2)}}}
	if !SameAttributes(a, b) {
		t.Fatal("equal attributes not detected")
	}
	b.Attributes[1].Value = Float(3)
	if SameAttributes(a, b) {
		t.Fatal("different attributes not detected")
	}
	if SameAttributes(a, Object{}) {
		t.Fatal("length mismatch not detected")
	}
}
