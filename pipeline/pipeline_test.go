package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/osm"

	"github.com/tilemason/tilemason/config"
	"github.com/tilemason/tilemason/element"
	"github.com/tilemason/tilemason/output"
	"github.com/tilemason/tilemason/proj"
	"github.com/tilemason/tilemason/script"
	"github.com/tilemason/tilemason/spatial"
	"github.com/tilemason/tilemason/store"
	"github.com/tilemason/tilemason/tile"
)

// stubProc is a Processor without a Lua runtime.
type stubProc struct {
	keys   []string
	nodeFn func(*script.Object)
	wayFn  func(*script.Object)
}

func (s *stubProc) NodeKeys() []string { return s.keys }
func (s *stubProc) Init() error        { return nil }
func (s *stubProc) Exit() error        { return nil }

func (s *stubProc) Node(obj *script.Object) error {
	if s.nodeFn != nil {
		s.nodeFn(obj)
	}
	return nil
}

func (s *stubProc) Way(obj *script.Object) error {
	if s.wayFn != nil {
		s.wayFn(obj)
	}
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"settings": {"basezoom": 14, "minzoom": 0, "maxzoom": 14, "compress": "none"},
		"layers": {
			"poi": {"minzoom": 12, "maxzoom": 14},
			"roads": {"minzoom": 7, "maxzoom": 14},
			"landuse": {"minzoom": 8, "maxzoom": 14}
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	conf, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return conf
}

func testPipeline(t *testing.T, proc script.Processor) *Pipeline {
	t.Helper()
	return New(testConfig(t), proc,
		store.NewMapNodeStore(), store.NewMapWayStore(), store.NewMapRelationStore(),
		spatial.NewRegistry())
}

func TestHandleNode(t *testing.T) {
	visited := 0
	proc := &stubProc{
		keys: []string{"amenity"},
		nodeFn: func(obj *script.Object) {
			visited++
			obj.Layer("poi", false)
			obj.Attribute("kind", obj.Find("amenity"))
		},
	}
	p := testPipeline(t, proc)

	// untagged node: stored, script not invoked
	if err := p.handleNode(&osm.Node{ID: 1, Lat: 0.001, Lon: 0.001}); err != nil {
		t.Fatal(err)
	}
	// tagged but insignificant
	if err := p.handleNode(&osm.Node{ID: 2, Lat: 0.001, Lon: 0.001,
		Tags: osm.Tags{{Key: "name", Value: "x"}}}); err != nil {
		t.Fatal(err)
	}
	if visited != 0 {
		t.Fatal("script invoked for insignificant nodes")
	}
	// significant
	if err := p.handleNode(&osm.Node{ID: 3, Lat: 0.001, Lon: 0.001,
		Tags: osm.Tags{{Key: "amenity", Value: "cafe"}}}); err != nil {
		t.Fatal(err)
	}
	if visited != 1 {
		t.Fatal(visited)
	}

	for _, id := range []element.NodeID{1, 2, 3} {
		if !p.Nodes.Contains(id) {
			t.Fatalf("node %d not stored", id)
		}
	}
	if len(p.Index) != 1 {
		t.Fatal(p.Index)
	}
	at := tile.At(proj.FromDegrees(0.001, 0.001), 14)
	if objs := p.Index[at]; len(objs) != 1 || objs[0].Type != output.Point || objs[0].ID != 3 {
		t.Fatal(p.Index)
	}
}

// A single closed way within one base-zoom tile lands in exactly that
// tile's bucket.
func TestHandleWaySingleTile(t *testing.T) {
	proc := &stubProc{
		wayFn: func(obj *script.Object) {
			if obj.Find("building") != "" {
				obj.Layer("landuse", true)
			}
		},
	}
	p := testPipeline(t, proc)
	for i, c := range [][2]float64{{0.001, 0.001}, {0.010, 0.001}, {0.010, 0.010}, {0.001, 0.010}} {
		p.Nodes.Insert(element.NodeID(i+1), proj.FromDegrees(c[1], c[0]))
	}
	way := &osm.Way{ID: 100,
		Nodes: osm.WayNodes{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 1}},
		Tags:  osm.Tags{{Key: "building", Value: "yes"}}}
	if err := p.handleWay(way); err != nil {
		t.Fatal(err)
	}
	if len(p.Index) != 1 {
		t.Fatalf("tile count %d", len(p.Index))
	}
	if !p.Ways.Contains(100) {
		t.Fatal("emitting way not re-stored")
	}
}

// A linestring across three horizontally adjacent base-zoom tiles lands
// in three buckets; one zoom up the buckets collapse onto two parents.
func TestHandleWayCrossTile(t *testing.T) {
	proc := &stubProc{
		wayFn: func(obj *script.Object) {
			obj.Layer("roads", false)
		},
	}
	p := testPipeline(t, proc)
	p.Nodes.Insert(1, proj.FromDegrees(0.001, 0.001))
	p.Nodes.Insert(2, proj.FromDegrees(0.001, 0.050))

	way := &osm.Way{ID: 300, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}},
		Tags: osm.Tags{{Key: "highway", Value: "primary"}}}
	if err := p.handleWay(way); err != nil {
		t.Fatal(err)
	}
	if len(p.Index) != 3 {
		t.Fatalf("tile count %d, want 3", len(p.Index))
	}
	for id, objs := range p.Index {
		if len(objs) != 1 || objs[0].ID != 300 {
			t.Fatal(id, objs)
		}
	}

	parents := p.Index.AtZoom(14, 13)
	if len(parents) != 2 {
		t.Fatalf("parent tile count %d, want 2", len(parents))
	}
}

func TestHandleWayWithoutOutput(t *testing.T) {
	p := testPipeline(t, &stubProc{})
	p.Nodes.Insert(1, proj.FromDegrees(0.001, 0.001))
	p.Nodes.Insert(2, proj.FromDegrees(0.001, 0.002))
	way := &osm.Way{ID: 7, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}}}
	if err := p.handleWay(way); err != nil {
		t.Fatal(err)
	}
	if p.Ways.Contains(7) || len(p.Index) != 0 {
		t.Fatal("silent way stored or indexed")
	}
}

func TestHandleRelationAndMemberWay(t *testing.T) {
	proc := &stubProc{
		wayFn: func(obj *script.Object) {
			// only the relation emits; its member ways stay silent
			if obj.Find("landuse") == "forest" {
				obj.Layer("landuse", true)
				obj.Attribute("kind", "forest")
			}
		},
	}
	p := testPipeline(t, proc)
	for i, c := range [][2]float64{{0.001, 0.001}, {0.010, 0.001}, {0.010, 0.010}, {0.001, 0.010}} {
		p.Nodes.Insert(element.NodeID(i+1), proj.FromDegrees(c[1], c[0]))
	}
	// phase B stored the referenced way already
	p.Ways.Insert(10, []element.NodeID{1, 2, 3, 4, 1})

	rel := &osm.Relation{ID: 500,
		Tags: osm.Tags{{Key: "type", Value: "multipolygon"}, {Key: "landuse", Value: "forest"}},
		Members: osm.Members{
			{Type: osm.TypeWay, Ref: 10, Role: "outer"},
		}}
	if err := p.handleRelation(rel); err != nil {
		t.Fatal(err)
	}
	if !p.Rels.Contains(500) {
		t.Fatal("relation not stored")
	}
	if rels := p.WayRels[10]; len(rels) != 1 || rels[0] != 500 {
		t.Fatal(p.WayRels)
	}
	if len(p.RelOutputs[500]) != 1 {
		t.Fatal(p.RelOutputs)
	}

	// a non-multipolygon relation is ignored
	if err := p.handleRelation(&osm.Relation{ID: 501,
		Tags: osm.Tags{{Key: "type", Value: "route"}}}); err != nil {
		t.Fatal(err)
	}
	if p.Rels.Contains(501) {
		t.Fatal("route relation stored")
	}

	// phase B dropped the way store; phase C re-reads the member way,
	// which emits nothing itself but participates in the relation
	p.Ways.Clear()
	way := &osm.Way{ID: 10, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 1}}}
	if err := p.handleWay(way); err != nil {
		t.Fatal(err)
	}
	if !p.Ways.Contains(10) {
		t.Fatal("relation member way not re-stored")
	}
	if len(p.Index) != 1 {
		t.Fatal(p.Index)
	}
	for _, objs := range p.Index {
		if len(objs) != 1 || objs[0].ID != 500 {
			t.Fatal(objs)
		}
	}
}
