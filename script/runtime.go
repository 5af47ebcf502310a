// Package script hosts the user's Lua processing script. The script
// declares the node tag keys it cares about and a pair of callbacks
// that decide, per element, which layers and attributes it contributes
// to:
//
//	node_keys = { "amenity", "shop" }
//	function init_function() end
//	function node_function(node) ... end
//	function way_function(way) ... end
//	function exit_function() end
//
// Inside the callbacks the element is queried and output emitted
// through the OSM object methods (Find, Holds, IsClosed, Area, Layer,
// Attribute, ...). Relations are delivered through way_function, like
// ways.
package script

import (
	"github.com/pkg/errors"
	lua "github.com/yuin/gopher-lua"

	"github.com/tilemason/tilemason/logging"
)

// Processor is the hook set the ingestion driver invokes. The Lua
// runtime is its production implementation; tests substitute their
// own.
type Processor interface {
	NodeKeys() []string
	Init() error
	Node(obj *Object) error
	Way(obj *Object) error
	Exit() error
}

// Runtime runs the user's Lua script.
type Runtime struct {
	L        *lua.LState
	osm      *lua.LTable
	current  *Object
	nodeKeys []string
	log      *logging.Logger
}

// NewRuntime loads a script file.
func NewRuntime(path string) (*Runtime, error) {
	r := newRuntime()
	if err := r.L.DoFile(path); err != nil {
		r.Close()
		return nil, errors.Wrapf(err, "loading script %s", path)
	}
	if err := r.finishLoad(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// NewRuntimeFromString loads script code directly; used by tests.
func NewRuntimeFromString(code string) (*Runtime, error) {
	r := newRuntime()
	if err := r.L.DoString(code); err != nil {
		r.Close()
		return nil, errors.Wrap(err, "loading script")
	}
	if err := r.finishLoad(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func newRuntime() *Runtime {
	r := &Runtime{
		L:   lua.NewState(),
		log: logging.NewLogger("script"),
	}
	r.registerAPI()
	return r
}

func (r *Runtime) Close() {
	r.L.Close()
}

func (r *Runtime) finishLoad() error {
	keys := r.L.GetGlobal("node_keys")
	tbl, ok := keys.(*lua.LTable)
	if !ok {
		return errors.New("script does not define the node_keys table")
	}
	tbl.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			r.nodeKeys = append(r.nodeKeys, string(s))
		}
	})
	for _, fn := range []string{"node_function", "way_function"} {
		if r.L.GetGlobal(fn).Type() != lua.LTFunction {
			return errors.Errorf("script does not define %s", fn)
		}
	}
	return nil
}

// NodeKeys lists the significant node tag keys the script declared.
func (r *Runtime) NodeKeys() []string {
	return r.nodeKeys
}

// Init calls init_function when the script defines it.
func (r *Runtime) Init() error {
	return r.callOptional("init_function")
}

// Exit calls exit_function when the script defines it.
func (r *Runtime) Exit() error {
	return r.callOptional("exit_function")
}

func (r *Runtime) callOptional(name string) error {
	fn := r.L.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil
	}
	if err := r.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
		return errors.Wrap(err, name)
	}
	return nil
}

// Node invokes node_function for a node object.
func (r *Runtime) Node(obj *Object) error {
	return r.call("node_function", obj)
}

// Way invokes way_function for a way or relation object.
func (r *Runtime) Way(obj *Object) error {
	return r.call("way_function", obj)
}

func (r *Runtime) call(name string, obj *Object) error {
	r.current = obj
	defer func() { r.current = nil }()
	fn := r.L.GetGlobal(name)
	if err := r.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, r.osm); err != nil {
		return errors.Wrapf(err, "%s for element %d", name, obj.ID())
	}
	return nil
}

// registerAPI builds the shared OSM object table whose methods read the
// element currently being processed.
func (r *Runtime) registerAPI() {
	L := r.L
	r.osm = L.NewTable()
	method := func(name string, fn lua.LGFunction) {
		L.SetField(r.osm, name, L.NewFunction(fn))
	}

	// with colon calls the object table itself is the first argument
	arg := func(L *lua.LState, i int) int {
		if L.Get(1) == r.osm {
			return i + 1
		}
		return i
	}
	obj := func(L *lua.LState) *Object {
		if r.current == nil {
			L.RaiseError("no element is being processed")
		}
		return r.current
	}

	method("Id", func(L *lua.LState) int {
		L.Push(lua.LNumber(obj(L).ID()))
		return 1
	})
	method("Holds", func(L *lua.LState) int {
		L.Push(lua.LBool(obj(L).Holds(L.CheckString(arg(L, 1)))))
		return 1
	})
	method("Find", func(L *lua.LState) int {
		L.Push(lua.LString(obj(L).Find(L.CheckString(arg(L, 1)))))
		return 1
	})
	method("IsClosed", func(L *lua.LState) int {
		L.Push(lua.LBool(obj(L).IsClosed()))
		return 1
	})
	method("Area", func(L *lua.LState) int {
		L.Push(lua.LNumber(obj(L).Area()))
		return 1
	})
	method("Length", func(L *lua.LState) int {
		L.Push(lua.LNumber(obj(L).Length()))
		return 1
	})
	method("ScaleToMeter", func(L *lua.LState) int {
		L.Push(lua.LNumber(obj(L).ScaleToMeter(float64(L.CheckNumber(arg(L, 1))))))
		return 1
	})
	method("ScaleToKiloMeter", func(L *lua.LState) int {
		L.Push(lua.LNumber(obj(L).ScaleToKiloMeter(float64(L.CheckNumber(arg(L, 1))))))
		return 1
	})
	method("Layer", func(L *lua.LState) int {
		name := L.CheckString(arg(L, 1))
		asClosed := lua.LVAsBool(L.Get(arg(L, 2)))
		if err := obj(L).Layer(name, asClosed); err != nil {
			L.RaiseError("%s", err)
		}
		return 0
	})
	method("LayerAsCentroid", func(L *lua.LState) int {
		if err := obj(L).LayerAsCentroid(L.CheckString(arg(L, 1))); err != nil {
			L.RaiseError("%s", err)
		}
		return 0
	})
	method("Attribute", func(L *lua.LState) int {
		obj(L).Attribute(L.CheckString(arg(L, 1)), L.CheckString(arg(L, 2)))
		return 0
	})
	method("AttributeNumeric", func(L *lua.LState) int {
		obj(L).AttributeNumeric(L.CheckString(arg(L, 1)), float64(L.CheckNumber(arg(L, 2))))
		return 0
	})
	method("AttributeBoolean", func(L *lua.LState) int {
		obj(L).AttributeBoolean(L.CheckString(arg(L, 1)), L.CheckBool(arg(L, 2)))
		return 0
	})
	method("Intersects", func(L *lua.LState) int {
		L.Push(lua.LBool(obj(L).Intersects(L.CheckString(arg(L, 1)))))
		return 1
	})
	method("FindIntersecting", func(L *lua.LState) int {
		names := obj(L).FindIntersecting(L.CheckString(arg(L, 1)))
		t := L.NewTable()
		for i, n := range names {
			t.RawSetInt(i+1, lua.LString(n))
		}
		L.Push(t)
		return 1
	})
}
