// Package writer turns the base-zoom tile index into serialized vector
// tiles: it derives each requested zoom level, coalesces adjacent
// same-attribute features by geometric union, clips and simplifies
// against the tile box, and hands the encoded tile to a container.
package writer

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
	"github.com/pkg/errors"

	"github.com/tilemason/tilemason/config"
	"github.com/tilemason/tilemason/element"
	"github.com/tilemason/tilemason/geom"
	"github.com/tilemason/tilemason/logging"
	"github.com/tilemason/tilemason/output"
	"github.com/tilemason/tilemason/proj"
	"github.com/tilemason/tilemason/spatial"
	"github.com/tilemason/tilemason/store"
	"github.com/tilemason/tilemason/tile"
)

const tileExtent = 4096

// Writer emits tiles from the populated stores.
type Writer struct {
	Conf    *config.Config
	Nodes   store.NodeStore
	Rels    store.RelationStore
	Builder *geom.Builder
	Spatial *spatial.Registry
	Verbose bool

	log *logging.Logger
}

func New(conf *config.Config, builder *geom.Builder, nodes store.NodeStore,
	rels store.RelationStore, registry *spatial.Registry, verbose bool) *Writer {
	return &Writer{
		Conf:    conf,
		Nodes:   nodes,
		Rels:    rels,
		Builder: builder,
		Spatial: registry,
		Verbose: verbose,
		log:     logging.NewLogger("writer"),
	}
}

// WriteMetadata emits the container metadata rows: project fields,
// zoom range, bounds and the configured passthrough entries.
func (w *Writer) WriteMetadata(c Container, bounds *[4]float64) error {
	s := w.Conf.Settings
	pairs := [][2]string{
		{"name", s.Name},
		{"type", "baselayer"},
		{"version", s.Version},
		{"description", s.Description},
		{"format", "pbf"},
		{"minzoom", fmt.Sprintf("%d", s.MinZoom)},
		{"maxzoom", fmt.Sprintf("%d", s.MaxZoom)},
	}
	if s.BoundingBox != nil {
		bounds = s.BoundingBox
	}
	if bounds != nil {
		pairs = append(pairs, [2]string{"bounds", fmt.Sprintf("%v,%v,%v,%v",
			bounds[0], bounds[1], bounds[2], bounds[3])})
	}
	for _, p := range pairs {
		if err := c.WriteMetadata(p[0], p[1]); err != nil {
			return err
		}
	}
	for k, v := range s.Metadata {
		if str, ok := v.(string); ok {
			if err := c.WriteMetadata(k, str); err != nil {
				return err
			}
			continue
		}
		enc, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "metadata %s", k)
		}
		if err := c.WriteMetadata(k, string(enc)); err != nil {
			return err
		}
	}
	return nil
}

// WriteTiles derives and writes every zoom level from minzoom to
// maxzoom out of the base-zoom index.
func (w *Writer) WriteTiles(index tile.Index, c Container) error {
	s := w.Conf.Settings
	for zoom := s.MinZoom; zoom <= s.MaxZoom; zoom++ {
		zIndex := index.AtZoom(s.BaseZoom, zoom)
		ids := zIndex.IDs()
		step := w.log.StartStep(fmt.Sprintf("zoom %d: %d tiles", zoom, len(ids)))
		written := 0
		for _, id := range ids {
			if w.outsideBounds(id, zoom) {
				continue
			}
			data, err := w.buildTile(id, zoom, zIndex[id])
			if err != nil {
				return err
			}
			if data == nil {
				continue
			}
			data, err = compressTile(data, s.Compress)
			if err != nil {
				return err
			}
			if err := c.WriteTile(zoom, id.X(), id.Y(), data); err != nil {
				return err
			}
			written++
			if written%100 == 0 {
				w.log.Progress(fmt.Sprintf("zoom %d: %d/%d tiles", zoom, written, len(ids)))
			}
		}
		w.log.StopStep(step)
	}
	return nil
}

// outsideBounds skips tiles wholly outside the configured bounding box.
func (w *Writer) outsideBounds(id tile.ID, zoom uint8) bool {
	bb := w.Conf.Settings.BoundingBox
	if bb == nil {
		return false
	}
	box := tile.Box(id, zoom)
	minLatp := proj.Lat2Latp(bb[1])
	maxLatp := proj.Lat2Latp(bb[3])
	return bb[2] <= box.Min[0] || bb[0] >= box.Max[0] ||
		maxLatp <= box.Min[1] || minLatp >= box.Max[1]
}

// buildTile encodes one tile, or returns nil when no feature survives.
func (w *Writer) buildTile(id tile.ID, zoom uint8, objs []output.Object) ([]byte, error) {
	box := tile.Box(id, zoom)
	var layers mvt.Layers

	for _, group := range w.Conf.LayerGroups() {
		layer := &mvt.Layer{
			Name:    w.Conf.Layers[group[0]].Name,
			Version: 2,
			Extent:  tileExtent,
		}
		for _, li := range group {
			ld := w.Conf.Layers[li]
			if zoom < ld.MinZoom || zoom > ld.MaxZoom {
				continue
			}
			w.emitLayer(layer, ld, li, id, zoom, box, objs)
		}
		if len(layer.Features) > 0 {
			layers = append(layers, layer)
		}
	}
	if len(layers) == 0 {
		return nil, nil
	}
	data, err := mvt.Marshal(layers)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding tile %d/%s", zoom, id)
	}
	return data, nil
}

// simplifyLevel computes the simplification threshold for a layer on a
// tile row: zero at or above simplify_below, otherwise the configured
// level (or ground length converted at the tile's latitude), scaled by
// simplify_ratio per zoom step.
func simplifyLevel(ld *config.Layer, id tile.ID, zoom uint8) float64 {
	if ld.SimplifyBelow == 0 || zoom >= ld.SimplifyBelow {
		return 0
	}
	var level float64
	if ld.SimplifyLength > 0 {
		level = proj.Meter2Degp(ld.SimplifyLength, tile.CenterLatp(id, zoom))
	} else {
		level = ld.SimplifyLevel
	}
	return level * math.Pow(ld.SimplifyRatio, float64(ld.SimplifyBelow-1)-float64(zoom))
}

// emitLayer writes one configured layer's slice of a tile bucket into
// the wire layer.
func (w *Writer) emitLayer(layer *mvt.Layer, ld *config.Layer, li int,
	id tile.ID, zoom uint8, box orb.Bound, objs []output.Object) {

	level := simplifyLevel(ld, id, zoom)

	// objs are in the total order, so this layer's records form one
	// contiguous run
	for j := 0; j < len(objs); j++ {
		obj := objs[j]
		if obj.Layer != li {
			continue
		}
		switch obj.Type {
		case output.Point, output.Centroid, output.CachedPoint:
			w.emitPoint(layer, box, obj)
		default:
			// merge runs of same-type same-attribute features into one
			// geometry before clipping
			g, ok := w.buildGeometry(obj)
			if !ok {
				continue
			}
			for j+1 < len(objs) && objs[j+1].Layer == li &&
				objs[j+1].Type == obj.Type && output.SameAttributes(obj, objs[j+1]) {
				j++
				next, ok := w.buildGeometry(objs[j])
				if !ok {
					continue
				}
				g = unionGeometry(g, next)
			}
			w.emitGeometry(layer, box, level, obj, g)
		}
	}
}

func (w *Writer) emitPoint(layer *mvt.Layer, box orb.Bound, obj output.Object) {
	var pt orb.Point
	switch obj.Type {
	case output.Point:
		ll, err := w.Nodes.Get(element.NodeID(obj.ID))
		if err != nil {
			w.dumpFailure(obj, err)
			return
		}
		lon, latp := proj.Degrees(ll)
		pt = orb.Point{lon, latp}
	case output.Centroid:
		g, ok := w.buildPolygonal(obj)
		if !ok {
			return
		}
		pt = geom.Centroid(g)
	case output.CachedPoint:
		g, ok := w.Spatial.Geometry(obj.ID)
		if !ok {
			w.dumpFailure(obj, errors.Errorf("cached geometry %d missing", obj.ID))
			return
		}
		p, ok := g.(orb.Point)
		if !ok {
			return
		}
		pt = p
	}
	if !box.Contains(pt) {
		return
	}
	w.addFeature(layer, box, obj, pt)
}

// buildGeometry materializes a linear or areal record as a multi
// geometry so same-attribute neighbors can be merged into it.
func (w *Writer) buildGeometry(obj output.Object) (orb.Geometry, bool) {
	switch obj.Type {
	case output.Linestring:
		ls, err := w.Builder.WayLinestring(element.WayID(obj.ID))
		if err != nil {
			w.dumpFailure(obj, err)
			return nil, false
		}
		return orb.MultiLineString{ls}, true
	case output.Polygon:
		return w.buildPolygonal(obj)
	case output.CachedLinestring, output.CachedPolygon:
		g, ok := w.Spatial.Geometry(obj.ID)
		if !ok {
			w.dumpFailure(obj, errors.Errorf("cached geometry %d missing", obj.ID))
			return nil, false
		}
		switch t := g.(type) {
		case orb.LineString:
			return orb.MultiLineString{t}, true
		case orb.Polygon:
			return orb.MultiPolygon{t}, true
		default:
			return g, true
		}
	}
	return nil, false
}

// buildPolygonal builds the multipolygon of a way or of an assembled
// relation stored under the record's ID.
func (w *Writer) buildPolygonal(obj output.Object) (orb.MultiPolygon, bool) {
	id := element.WayID(obj.ID)
	if w.Rels.Contains(id) {
		seq, err := w.Rels.Get(id)
		if err == nil {
			mp, err := w.Builder.MultiPolygon(seq)
			if err != nil {
				w.dumpFailure(obj, err)
				return nil, false
			}
			return mp, true
		}
	}
	p, err := w.Builder.WayPolygon(id)
	if err != nil {
		w.dumpFailure(obj, err)
		return nil, false
	}
	return orb.MultiPolygon{p}, true
}

func unionGeometry(a, b orb.Geometry) orb.Geometry {
	switch ag := a.(type) {
	case orb.MultiPolygon:
		if bg, ok := b.(orb.MultiPolygon); ok {
			return geom.UnionMultiPolygons(ag, bg)
		}
	case orb.MultiLineString:
		if bg, ok := b.(orb.MultiLineString); ok {
			return geom.UnionMultiLineStrings(ag, bg)
		}
	}
	return a
}

// emitGeometry clips, simplifies and projects one merged geometry into
// the wire layer; empty results drop the feature.
func (w *Writer) emitGeometry(layer *mvt.Layer, box orb.Bound, level float64,
	obj output.Object, g orb.Geometry) {

	clipped := clip.Geometry(box, g)
	if clipped == nil || geometryEmpty(clipped) {
		return
	}
	if level > 0 {
		clipped = simplify.DouglasPeucker(level).Simplify(clipped)
		if clipped == nil || geometryEmpty(clipped) {
			return
		}
	}
	w.addFeature(layer, box, obj, clipped)
}

func (w *Writer) addFeature(layer *mvt.Layer, box orb.Bound, obj output.Object, g orb.Geometry) {
	feature := geojson.NewFeature(projectToTile(g, box))
	if len(obj.Attributes) > 0 {
		props := make(geojson.Properties, len(obj.Attributes))
		for _, a := range obj.Attributes {
			props[a.Key] = a.Value.Interface()
		}
		feature.Properties = props
	}
	if w.Conf.Settings.IncludeIDs {
		feature.ID = obj.ID
	}
	layer.Features = append(layer.Features, feature)
}

func geometryEmpty(g orb.Geometry) bool {
	switch t := g.(type) {
	case nil:
		return true
	case orb.Point:
		return false
	case orb.LineString:
		return len(t) < 2
	case orb.MultiLineString:
		for _, ls := range t {
			if len(ls) >= 2 {
				return false
			}
		}
		return true
	case orb.Ring:
		return len(t) < 4
	case orb.Polygon:
		return len(t) == 0 || len(t[0]) < 4
	case orb.MultiPolygon:
		for _, p := range t {
			if len(p) > 0 && len(p[0]) >= 4 {
				return false
			}
		}
		return true
	case orb.Collection:
		for _, sub := range t {
			if !geometryEmpty(sub) {
				return false
			}
		}
		return true
	}
	return false
}

// projectToTile maps projected-plane coordinates linearly into tile
// extent coordinates, y growing southward.
func projectToTile(g orb.Geometry, box orb.Bound) orb.Geometry {
	sx := tileExtent / (box.Max[0] - box.Min[0])
	sy := tileExtent / (box.Max[1] - box.Min[1])
	pt := func(p orb.Point) orb.Point {
		return orb.Point{
			(p[0] - box.Min[0]) * sx,
			(box.Max[1] - p[1]) * sy,
		}
	}
	var walk func(g orb.Geometry) orb.Geometry
	walk = func(g orb.Geometry) orb.Geometry {
		switch t := g.(type) {
		case orb.Point:
			return pt(t)
		case orb.LineString:
			out := make(orb.LineString, len(t))
			for i, p := range t {
				out[i] = pt(p)
			}
			return out
		case orb.MultiLineString:
			out := make(orb.MultiLineString, len(t))
			for i, ls := range t {
				out[i] = walk(ls).(orb.LineString)
			}
			return out
		case orb.Ring:
			out := make(orb.Ring, len(t))
			for i, p := range t {
				out[i] = pt(p)
			}
			return out
		case orb.Polygon:
			out := make(orb.Polygon, len(t))
			for i, r := range t {
				out[i] = walk(r).(orb.Ring)
			}
			return out
		case orb.MultiPolygon:
			out := make(orb.MultiPolygon, len(t))
			for i, p := range t {
				out[i] = walk(p).(orb.Polygon)
			}
			return out
		case orb.Collection:
			out := make(orb.Collection, len(t))
			for i, sub := range t {
				out[i] = walk(sub)
			}
			return out
		}
		return g
	}
	return walk(g)
}

// dumpFailure reports a failed feature; verbose mode names the missing
// constituent ways of a broken relation.
func (w *Writer) dumpFailure(obj output.Object, err error) {
	if !w.Verbose {
		w.log.Debugf("skipping %s %d: %v", obj.Type, obj.ID, err)
		return
	}
	w.log.Warnf("skipping %s %d: %v", obj.Type, obj.ID, err)
	id := element.WayID(obj.ID)
	if !obj.Type.IsCached() && w.Rels.Contains(id) {
		if seq, err := w.Rels.Get(id); err == nil {
			for _, wid := range element.SeqWays(seq) {
				if !w.Builder.Ways.Contains(wid) {
					w.log.Warnf(" - constituent way %d is missing", wid)
				}
			}
		}
	}
}

func compressTile(data []byte, c config.Compression) ([]byte, error) {
	var buf bytes.Buffer
	switch c {
	case config.CompressNone:
		return data, nil
	case config.CompressGzip:
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	case config.CompressDeflate:
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
