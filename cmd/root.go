// Package cmd wires the command line: positional PBF inputs, the
// config and processing script paths, and the output target.
package cmd

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tilemason/tilemason/config"
	"github.com/tilemason/tilemason/logging"
	"github.com/tilemason/tilemason/mbtiles"
	"github.com/tilemason/tilemason/pipeline"
	"github.com/tilemason/tilemason/script"
	"github.com/tilemason/tilemason/spatial"
	"github.com/tilemason/tilemason/store"
	"github.com/tilemason/tilemason/writer"
)

var (
	outputPath  string
	configPath  string
	processPath string
	storeKind   string
	storeDir    string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "tilemason [flags] input.osm.pbf ...",
	Short: "Convert OpenStreetMap extracts into vector tiles",
	Long: `tilemason reads one or more .osm.pbf extracts and writes a vector
tile set, either as a directory tree of z/x/y.pbf files or as an
.mbtiles/.sqlite database. A Lua script decides which layers and
attributes each OSM element contributes to.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args)
	},
}

func init() {
	rootCmd.Flags().StringVar(&outputPath, "output", "", "target directory or .mbtiles/.sqlite file")
	rootCmd.Flags().StringVar(&configPath, "config", "config.json", "config JSON (or YAML) file")
	rootCmd.Flags().StringVar(&processPath, "process", "process.lua", "tag-processing Lua file")
	rootCmd.Flags().StringVar(&storeKind, "store", "map", "node store backend: map, sorted or badger")
	rootCmd.Flags().StringVar(&storeDir, "store-dir", "", "directory for the badger node store")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "verbose error output")
	rootCmd.MarkFlagRequired("output")
}

// Execute runs the CLI. A non-nil error has already been logged.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logging.NewLogger("tilemason").Errorf("%v", err)
	}
	return err
}

func newNodeStore() (store.NodeStore, error) {
	switch storeKind {
	case "map":
		return store.NewMapNodeStore(), nil
	case "sorted":
		return store.NewSortedNodeStore(), nil
	case "badger":
		if storeDir == "" {
			return nil, errors.New("--store=badger requires --store-dir")
		}
		return store.NewBadgerNodeStore(storeDir)
	}
	return nil, errors.Errorf("unknown node store backend %q", storeKind)
}

func newWayStore() store.WayStore {
	if storeKind == "sorted" {
		return store.NewSortedWayStore()
	}
	return store.NewMapWayStore()
}

func run(inputs []string) error {
	log := logging.NewLogger("tilemason")

	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}

	proc, err := script.NewRuntime(processPath)
	if err != nil {
		return err
	}
	defer proc.Close()

	nodes, err := newNodeStore()
	if err != nil {
		return err
	}
	defer nodes.Close()
	ways := newWayStore()
	rels := store.NewMapRelationStore()

	registry := spatial.NewRegistry()
	for _, l := range conf.Layers {
		if l.Index {
			registry.CreateIndex(l.Name)
		}
		if l.Source != "" {
			log.Infof("layer %s: external source %s is loaded by a separate tool", l.Name, l.Source)
		}
	}

	bounds := conf.Settings.BoundingBox
	if bounds == nil {
		b, err := pipeline.HeaderBounds(inputs[0])
		if err != nil {
			return err
		}
		bounds = b
	}

	var container writer.Container
	if strings.HasSuffix(outputPath, ".mbtiles") || strings.HasSuffix(outputPath, ".sqlite") {
		container, err = mbtiles.Open(outputPath)
	} else {
		container, err = writer.NewDirContainer(outputPath)
	}
	if err != nil {
		return err
	}
	defer container.Close()

	pipe := pipeline.New(conf, proc, nodes, ways, rels, registry)
	pipe.Verbose = verbose

	if err := proc.Init(); err != nil {
		return err
	}
	for _, input := range inputs {
		if err := pipe.ReadFile(input); err != nil {
			return err
		}
	}

	w := writer.New(conf, pipe.Builder, nodes, rels, registry, verbose)
	if err := w.WriteMetadata(container, bounds); err != nil {
		return err
	}
	if err := w.WriteTiles(pipe.Index, container); err != nil {
		return err
	}
	if err := proc.Exit(); err != nil {
		return err
	}

	log.Infof("filled the tileset at %s", outputPath)
	return nil
}
