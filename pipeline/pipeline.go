// Package pipeline owns the shared state of a conversion run: the
// three element stores, the base-zoom tile index, the relation
// backlinks and the script processor. It drives the three-phase scan of
// each input file.
package pipeline

import (
	"github.com/tilemason/tilemason/config"
	"github.com/tilemason/tilemason/element"
	"github.com/tilemason/tilemason/geom"
	"github.com/tilemason/tilemason/logging"
	"github.com/tilemason/tilemason/output"
	"github.com/tilemason/tilemason/script"
	"github.com/tilemason/tilemason/spatial"
	"github.com/tilemason/tilemason/store"
	"github.com/tilemason/tilemason/tile"
)

// Pipeline carries everything the reader and the writer share. It is
// constructed in main and passed by reference; there is no package
// level state.
type Pipeline struct {
	Conf *config.Config
	Proc script.Processor
	Env  *script.Env

	Nodes store.NodeStore
	Ways  store.WayStore
	Rels  store.RelationStore

	Builder *geom.Builder
	Spatial *spatial.Registry

	// Index buckets output records by base-zoom tile.
	Index tile.Index
	// WayRels backlinks each way to the relations that need it.
	WayRels map[element.WayID][]element.WayID
	// RelOutputs stashes each relation's records until its member ways
	// are read in phase C.
	RelOutputs map[element.WayID][]output.Object

	Verbose bool

	nodeKeys map[string]struct{}
	log      *logging.Logger
}

func New(conf *config.Config, proc script.Processor, nodes store.NodeStore,
	ways store.WayStore, rels store.RelationStore, registry *spatial.Registry) *Pipeline {

	builder := geom.NewBuilder(nodes, ways, logging.NewLogger("assembler"))
	keys := make(map[string]struct{})
	for _, k := range proc.NodeKeys() {
		keys[k] = struct{}{}
	}
	return &Pipeline{
		Conf:       conf,
		Proc:       proc,
		Env:        script.NewEnv(conf, builder, registry, nil),
		Nodes:      nodes,
		Ways:       ways,
		Rels:       rels,
		Builder:    builder,
		Spatial:    registry,
		Index:      tile.NewIndex(),
		WayRels:    make(map[element.WayID][]element.WayID),
		RelOutputs: make(map[element.WayID][]output.Object),
		nodeKeys:   keys,
		log:        logging.NewLogger("reader"),
	}
}

// significant reports whether a node's tags intersect the script's
// declared node keys.
func (p *Pipeline) significant(keys []string) bool {
	for _, k := range keys {
		if _, ok := p.nodeKeys[k]; ok {
			return true
		}
	}
	return false
}
