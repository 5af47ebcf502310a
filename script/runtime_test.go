package script

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tilemason/tilemason/config"
	"github.com/tilemason/tilemason/element"
	"github.com/tilemason/tilemason/geom"
	"github.com/tilemason/tilemason/output"
	"github.com/tilemason/tilemason/spatial"
	"github.com/tilemason/tilemason/store"
)

func deg(lon, latp float64) element.LatpLon {
	return element.LatpLon{Latp: int32(latp * 1e7), Lon: int32(lon * 1e7)}
}

func testEnv(t *testing.T) (*Env, *store.MapNodeStore, *store.MapWayStore) {
	t.Helper()
	confPath := filepath.Join(t.TempDir(), "config.json")
	confJSON := `{
		"settings": {"basezoom": 14, "minzoom": 0, "maxzoom": 14, "compress": "none"},
		"layers": {
			"poi": {"minzoom": 12, "maxzoom": 14},
			"landuse": {"minzoom": 8, "maxzoom": 14}
		}
	}`
	if err := os.WriteFile(confPath, []byte(confJSON), 0644); err != nil {
		t.Fatal(err)
	}
	conf, err := config.Load(confPath)
	if err != nil {
		t.Fatal(err)
	}
	nodes := store.NewMapNodeStore()
	ways := store.NewMapWayStore()
	builder := geom.NewBuilder(nodes, ways, nil)
	return NewEnv(conf, builder, spatial.NewRegistry(), nil), nodes, ways
}

const testScript = `
node_keys = { "amenity" }

function node_function(node)
	if node:Holds("amenity") then
		node:Layer("poi", false)
		node:Attribute("kind", node:Find("amenity"))
		node:AttributeNumeric("id_copy", node:Id())
	end
end

function way_function(way)
	if way:Find("landuse") == "forest" then
		way:Layer("landuse", true)
		way:AttributeBoolean("closed", way:IsClosed())
	end
end
`

func TestRuntimeNode(t *testing.T) {
	env, _, _ := testEnv(t)
	r, err := NewRuntimeFromString(testScript)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if keys := r.NodeKeys(); len(keys) != 1 || keys[0] != "amenity" {
		t.Fatal(keys)
	}
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}

	obj := NewNodeObject(env, 42, element.Tags{"amenity": "cafe"}, deg(1, 1))
	if err := r.Node(obj); err != nil {
		t.Fatal(err)
	}
	if len(obj.Outputs) != 1 {
		t.Fatal(obj.Outputs)
	}
	out := obj.Outputs[0]
	if out.Type != output.Point || out.ID != 42 {
		t.Fatal(out)
	}
	// attributes are kept in key order: id_copy before kind
	if len(out.Attributes) != 2 || out.Attributes[1].Value.Str != "cafe" {
		t.Fatal(out.Attributes)
	}
	if out.Attributes[0].Value.Num != 42 {
		t.Fatal(out.Attributes)
	}

	// untagged node emits nothing
	quiet := NewNodeObject(env, 43, element.Tags{}, deg(1, 1))
	if err := r.Node(quiet); err != nil {
		t.Fatal(err)
	}
	if !quiet.Empty() {
		t.Fatal(quiet.Outputs)
	}
	if err := r.Exit(); err != nil {
		t.Fatal(err)
	}
}

func TestRuntimeWay(t *testing.T) {
	env, nodes, _ := testEnv(t)
	nodes.Insert(1, deg(0, 0))
	nodes.Insert(2, deg(1, 0))
	nodes.Insert(3, deg(1, 1))

	r, err := NewRuntimeFromString(testScript)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	obj := NewWayObject(env, 100, element.Tags{"landuse": "forest"},
		[]element.NodeID{1, 2, 3, 1})
	if err := r.Way(obj); err != nil {
		t.Fatal(err)
	}
	if len(obj.Outputs) != 1 {
		t.Fatal(obj.Outputs)
	}
	out := obj.Outputs[0]
	if out.Type != output.Polygon {
		t.Fatal(out)
	}
	if len(out.Attributes) != 1 || !out.Attributes[0].Value.Bool {
		t.Fatal(out.Attributes)
	}
}

func TestRuntimeUnknownLayer(t *testing.T) {
	env, _, _ := testEnv(t)
	r, err := NewRuntimeFromString(`
node_keys = {}
function node_function(node) node:Layer("missing", false) end
function way_function(way) end
`)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	obj := NewNodeObject(env, 1, element.Tags{}, deg(0, 0))
	if err := r.Node(obj); err == nil {
		t.Fatal("unknown layer did not error")
	}
}

func TestRuntimeRequiresNodeKeys(t *testing.T) {
	if _, err := NewRuntimeFromString(`
function node_function(node) end
function way_function(way) end
`); err == nil {
		t.Fatal("missing node_keys accepted")
	}
}

func TestRuntimeRequiresCallbacks(t *testing.T) {
	if _, err := NewRuntimeFromString(`node_keys = {}`); err == nil {
		t.Fatal("missing callbacks accepted")
	}
}

func TestRuntimeInitExitOptional(t *testing.T) {
	r, err := NewRuntimeFromString(`
node_keys = {}
called = 0
function init_function() called = called + 1 end
function exit_function() called = called + 10 end
function node_function(node) end
function way_function(way) end
`)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}
	if err := r.Exit(); err != nil {
		t.Fatal(err)
	}
}

// Two script paths emitting the same attribute set in different call
// orders produce records that compare equal.
func TestObjectAttributeOrderIndependent(t *testing.T) {
	env, _, _ := testEnv(t)

	a := NewNodeObject(env, 1, element.Tags{}, deg(0, 0))
	a.Layer("poi", false)
	a.Attribute("kind", "cafe")
	a.AttributeNumeric("level", 2)

	b := NewNodeObject(env, 2, element.Tags{}, deg(0, 0))
	b.Layer("poi", false)
	b.AttributeNumeric("level", 2)
	b.Attribute("kind", "cafe")

	if !output.SameAttributes(a.Outputs[0], b.Outputs[0]) {
		t.Fatalf("attribute order leaked: %v vs %v", a.Outputs[0].Attributes, b.Outputs[0].Attributes)
	}
}

func TestObjectAttributeBeforeLayer(t *testing.T) {
	env, _, _ := testEnv(t)
	obj := NewNodeObject(env, 1, element.Tags{}, deg(0, 0))
	obj.Attribute("k", "v")
	if !obj.Empty() {
		t.Fatal(obj.Outputs)
	}
}
