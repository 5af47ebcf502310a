// Package config reads the project configuration: global settings and
// the ordered layer definitions. JSON is the native format; a
// .yml/.yaml file is accepted with the same structure. Layer order
// follows the document order of the layers object.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Compression selects how serialized tiles are compressed.
type Compression int

const (
	CompressGzip Compression = iota
	CompressDeflate
	CompressNone
)

const (
	defaultSimplifyLevel = 0.01
	defaultSimplifyRatio = 1.0
)

// Settings are the global options of a project.
type Settings struct {
	BaseZoom    uint8
	MinZoom     uint8
	MaxZoom     uint8
	IncludeIDs  bool
	Compress    Compression
	Name        string
	Version     string
	Description string
	// BoundingBox is [minLon, minLat, maxLon, maxLat]; when set it
	// overrides the bbox of the first input file.
	BoundingBox *[4]float64
	// Metadata is copied into the output container's metadata table.
	Metadata map[string]interface{}
}

// Layer is one output layer definition.
type Layer struct {
	Name           string
	MinZoom        uint8
	MaxZoom        uint8
	WriteTo        string
	SimplifyBelow  uint8
	SimplifyLevel  float64
	SimplifyLength float64
	SimplifyRatio  float64

	// pre-cached external source (loaded by a collaborator)
	Source        string
	SourceColumns []string
	Index         bool
	IndexColumn   string
}

// Config is a validated project configuration.
type Config struct {
	Settings Settings
	Layers   []*Layer

	byName map[string]int
	groups [][]int
}

type settingsRaw struct {
	BaseZoom    *uint8                 `json:"basezoom" yaml:"basezoom"`
	MinZoom     *uint8                 `json:"minzoom" yaml:"minzoom"`
	MaxZoom     *uint8                 `json:"maxzoom" yaml:"maxzoom"`
	IncludeIDs  bool                   `json:"include_ids" yaml:"include_ids"`
	Compress    *string                `json:"compress" yaml:"compress"`
	Name        string                 `json:"name" yaml:"name"`
	Version     string                 `json:"version" yaml:"version"`
	Description string                 `json:"description" yaml:"description"`
	BoundingBox []float64              `json:"bounding_box" yaml:"bounding_box"`
	Metadata    map[string]interface{} `json:"metadata" yaml:"metadata"`
}

type layerRaw struct {
	MinZoom        uint8    `json:"minzoom" yaml:"minzoom"`
	MaxZoom        uint8    `json:"maxzoom" yaml:"maxzoom"`
	WriteTo        string   `json:"write_to" yaml:"write_to"`
	SimplifyBelow  uint8    `json:"simplify_below" yaml:"simplify_below"`
	SimplifyLevel  *float64 `json:"simplify_level" yaml:"simplify_level"`
	SimplifyLength float64  `json:"simplify_length" yaml:"simplify_length"`
	SimplifyRatio  *float64 `json:"simplify_ratio" yaml:"simplify_ratio"`
	Source         string   `json:"source" yaml:"source"`
	SourceColumns  []string `json:"source_columns" yaml:"source_columns"`
	Index          bool     `json:"index" yaml:"index"`
	IndexColumn    string   `json:"index_column" yaml:"index_column"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return parseYAML(data)
	default:
		return parseJSON(data)
	}
}

func parseJSON(data []byte) (*Config, error) {
	var raw struct {
		Settings settingsRaw     `json:"settings"`
		Layers   json.RawMessage `json:"layers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "invalid JSON config")
	}
	conf := &Config{}
	if err := conf.applySettings(raw.Settings); err != nil {
		return nil, err
	}

	if len(raw.Layers) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw.Layers))
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "invalid layers object")
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return nil, errors.New("layers must be an object")
		}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, errors.Wrap(err, "invalid layers object")
			}
			name := keyTok.(string)
			var lr layerRaw
			if err := dec.Decode(&lr); err != nil {
				return nil, errors.Wrapf(err, "layer %s", name)
			}
			conf.addLayer(name, lr)
		}
	}
	return conf, conf.validate()
}

func parseYAML(data []byte) (*Config, error) {
	var raw struct {
		Settings settingsRaw   `yaml:"settings"`
		Layers   yaml.MapSlice `yaml:"layers"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "invalid YAML config")
	}
	conf := &Config{}
	if err := conf.applySettings(raw.Settings); err != nil {
		return nil, err
	}
	for _, item := range raw.Layers {
		name, ok := item.Key.(string)
		if !ok {
			return nil, errors.Errorf("layer name %v is not a string", item.Key)
		}
		enc, err := yaml.Marshal(item.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %s", name)
		}
		var lr layerRaw
		if err := yaml.Unmarshal(enc, &lr); err != nil {
			return nil, errors.Wrapf(err, "layer %s", name)
		}
		conf.addLayer(name, lr)
	}
	return conf, conf.validate()
}

func (c *Config) applySettings(raw settingsRaw) error {
	if raw.BaseZoom == nil || raw.MinZoom == nil || raw.MaxZoom == nil {
		return errors.New("settings.basezoom, settings.minzoom and settings.maxzoom are required")
	}
	s := Settings{
		BaseZoom:    *raw.BaseZoom,
		MinZoom:     *raw.MinZoom,
		MaxZoom:     *raw.MaxZoom,
		IncludeIDs:  raw.IncludeIDs,
		Name:        raw.Name,
		Version:     raw.Version,
		Description: raw.Description,
		Metadata:    raw.Metadata,
	}
	compress := "gzip"
	if raw.Compress != nil {
		compress = *raw.Compress
	}
	switch compress {
	case "gzip":
		s.Compress = CompressGzip
	case "deflate":
		s.Compress = CompressDeflate
	case "none":
		s.Compress = CompressNone
	default:
		return errors.Errorf("settings.compress must be gzip, deflate or none, got %q", compress)
	}
	if raw.BoundingBox != nil {
		if len(raw.BoundingBox) != 4 {
			return errors.New("settings.bounding_box must have four values")
		}
		var box [4]float64
		copy(box[:], raw.BoundingBox)
		s.BoundingBox = &box
	}
	c.Settings = s
	return nil
}

func (c *Config) addLayer(name string, raw layerRaw) {
	l := &Layer{
		Name:           name,
		MinZoom:        raw.MinZoom,
		MaxZoom:        raw.MaxZoom,
		WriteTo:        raw.WriteTo,
		SimplifyBelow:  raw.SimplifyBelow,
		SimplifyLevel:  defaultSimplifyLevel,
		SimplifyLength: raw.SimplifyLength,
		SimplifyRatio:  defaultSimplifyRatio,
		Source:         raw.Source,
		SourceColumns:  raw.SourceColumns,
		Index:          raw.Index,
		IndexColumn:    raw.IndexColumn,
	}
	if raw.SimplifyLevel != nil {
		l.SimplifyLevel = *raw.SimplifyLevel
	}
	if raw.SimplifyRatio != nil {
		l.SimplifyRatio = *raw.SimplifyRatio
	}
	if c.byName == nil {
		c.byName = make(map[string]int)
	}
	c.byName[name] = len(c.Layers)
	c.Layers = append(c.Layers, l)
}

const maxBaseZoom = 15 // the packed 16-bit tile coordinates end here

func (c *Config) validate() error {
	s := c.Settings
	if s.BaseZoom > maxBaseZoom {
		return errors.Errorf("settings.basezoom must not exceed %d", maxBaseZoom)
	}
	if s.MaxZoom > s.BaseZoom {
		return errors.New("settings.maxzoom must not exceed settings.basezoom")
	}
	if s.MinZoom > s.MaxZoom {
		return errors.New("settings.minzoom must not exceed settings.maxzoom")
	}
	if len(c.Layers) == 0 {
		return errors.New("no layers configured")
	}
	for _, l := range c.Layers {
		if l.WriteTo != "" {
			if _, ok := c.byName[l.WriteTo]; !ok {
				return errors.Errorf("layer %s writes to unknown layer %s", l.Name, l.WriteTo)
			}
		}
	}
	c.buildGroups()
	return nil
}

// buildGroups merges write_to layers into the group of their target, in
// declaration order. Each group becomes one wire layer named after its
// head.
func (c *Config) buildGroups() {
	groupOf := make(map[string]int)
	for i, l := range c.Layers {
		if l.WriteTo == "" {
			groupOf[l.Name] = len(c.groups)
			c.groups = append(c.groups, []int{i})
		}
	}
	for i, l := range c.Layers {
		if l.WriteTo == "" {
			continue
		}
		if g, ok := groupOf[l.WriteTo]; ok {
			c.groups[g] = append(c.groups[g], i)
		} else {
			// target itself is written elsewhere; start a fresh group
			groupOf[l.WriteTo] = len(c.groups)
			c.groups = append(c.groups, []int{i})
		}
	}
}

// LayerIndex returns the index of a named layer.
func (c *Config) LayerIndex(name string) (int, bool) {
	i, ok := c.byName[name]
	return i, ok
}

// LayerGroups returns the wire-layer groups as lists of layer indexes.
// The first index of each group names the wire layer.
func (c *Config) LayerGroups() [][]int {
	return c.groups
}
