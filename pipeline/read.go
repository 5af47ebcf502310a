package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/pkg/errors"

	"github.com/tilemason/tilemason/element"
	"github.com/tilemason/tilemason/proj"
	"github.com/tilemason/tilemason/script"
	"github.com/tilemason/tilemason/tile"
)

// ReadFile runs the three ingestion phases over one input file:
//
//	A: store all node coordinates, run the script on significant nodes;
//	B: collect the ways referenced by relations, load their node lists,
//	   then process multipolygon relations and encode them;
//	C: run the script on every way, keep the ways that emitted output
//	   or participate in a relation, and index their records by tile.
//
// The file stays open throughout; each pass rewinds it and scans only
// the element types it needs, mirroring the rewind-to-way-offset scheme
// of streaming PBF readers.
func (p *Pipeline) ReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	p.log.Infof("reading %s", path)

	step := p.log.StartStep(fmt.Sprintf("%s: nodes", path))
	if err := p.readNodes(f); err != nil {
		return errors.Wrapf(err, "%s: nodes", path)
	}
	p.log.StopStep(step)

	step = p.log.StartStep(fmt.Sprintf("%s: relations", path))
	if err := p.loadRelationWays(f); err != nil {
		return errors.Wrapf(err, "%s: relation members", path)
	}
	if err := p.readRelations(f); err != nil {
		return errors.Wrapf(err, "%s: relations", path)
	}
	// the node lists gathered for relation assembly are no longer
	// needed; phase C re-stores the ways that matter
	if err := p.Ways.Clear(); err != nil {
		return err
	}
	p.log.StopStep(step)

	step = p.log.StartStep(fmt.Sprintf("%s: ways", path))
	if err := p.readWays(f); err != nil {
		return errors.Wrapf(err, "%s: ways", path)
	}
	p.log.StopStep(step)
	return nil
}

func (p *Pipeline) newScanner(f *os.File, nodes, ways, relations bool) (*osmpbf.Scanner, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "rewinding input")
	}
	scanner := osmpbf.New(context.Background(), f, 1)
	scanner.SkipNodes = !nodes
	scanner.SkipWays = !ways
	scanner.SkipRelations = !relations
	return scanner, nil
}

func tagsMap(tags osm.Tags) element.Tags {
	if len(tags) == 0 {
		return nil
	}
	m := make(element.Tags, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return m
}

// readNodes is phase A.
func (p *Pipeline) readNodes(f *os.File) error {
	scanner, err := p.newScanner(f, true, false, false)
	if err != nil {
		return err
	}
	defer scanner.Close()

	count := 0
	for scanner.Scan() {
		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if err := p.handleNode(node); err != nil {
			return err
		}
		count++
		if count%1000000 == 0 {
			p.log.Progress(fmt.Sprintf("%d nodes", count))
		}
	}
	return scanner.Err()
}

func (p *Pipeline) handleNode(node *osm.Node) error {
	coord := proj.FromDegrees(node.Lat, node.Lon)
	if err := p.Nodes.Insert(element.NodeID(node.ID), coord); err != nil {
		return err
	}
	if len(node.Tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(node.Tags))
	for _, t := range node.Tags {
		keys = append(keys, t.Key)
	}
	if !p.significant(keys) {
		return nil
	}
	obj := script.NewNodeObject(p.Env, uint64(node.ID), tagsMap(node.Tags), coord)
	if err := p.Proc.Node(obj); err != nil {
		return err
	}
	if !obj.Empty() {
		p.Index.Add(tile.At(coord, p.Conf.Settings.BaseZoom), obj.Outputs...)
	}
	return nil
}

// loadRelationWays is the first half of phase B: remember every way
// any relation references, then load their node lists. The reference
// set is scoped here so it is released before phase C.
func (p *Pipeline) loadRelationWays(f *os.File) error {
	wayRefs, err := p.collectRelationWayRefs(f)
	if err != nil {
		return err
	}
	return p.readReferencedWays(f, wayRefs)
}

// collectRelationWayRefs remembers every way any relation references.
func (p *Pipeline) collectRelationWayRefs(f *os.File) (map[element.WayID]struct{}, error) {
	scanner, err := p.newScanner(f, false, false, true)
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	refs := make(map[element.WayID]struct{})
	for scanner.Scan() {
		rel, ok := scanner.Object().(*osm.Relation)
		if !ok {
			continue
		}
		for _, m := range rel.Members {
			if m.Type != osm.TypeWay {
				continue
			}
			refs[element.WayID(m.Ref)] = struct{}{}
		}
	}
	return refs, scanner.Err()
}

// readReferencedWays loads the node lists of relation-referenced ways
// so the assembler can resolve them.
func (p *Pipeline) readReferencedWays(f *os.File, wayRefs map[element.WayID]struct{}) error {
	scanner, err := p.newScanner(f, false, true, false)
	if err != nil {
		return err
	}
	defer scanner.Close()

	for scanner.Scan() {
		way, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		id := element.WayID(way.ID)
		if _, ok := wayRefs[id]; !ok {
			continue
		}
		if err := p.Ways.Insert(id, wayNodeRefs(way)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func wayNodeRefs(way *osm.Way) []element.NodeID {
	refs := make([]element.NodeID, len(way.Nodes))
	for i, wn := range way.Nodes {
		refs[i] = element.NodeID(wn.ID)
	}
	return refs
}

// readRelations is the second half of phase B: run the script on
// multipolygon relations and store the assembled encoding of those
// that emitted output.
func (p *Pipeline) readRelations(f *os.File) error {
	scanner, err := p.newScanner(f, false, false, true)
	if err != nil {
		return err
	}
	defer scanner.Close()

	for scanner.Scan() {
		rel, ok := scanner.Object().(*osm.Relation)
		if !ok {
			continue
		}
		if err := p.handleRelation(rel); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (p *Pipeline) handleRelation(rel *osm.Relation) error {
	tags := tagsMap(rel.Tags)
	if tags.Find("type") != "multipolygon" {
		return nil
	}

	var outer, inner []element.WayID
	for _, m := range rel.Members {
		if m.Type != osm.TypeWay {
			continue
		}
		if m.Role == "inner" {
			inner = append(inner, element.WayID(m.Ref))
		} else {
			outer = append(outer, element.WayID(m.Ref))
		}
	}

	obj := script.NewRelationObject(p.Env, uint64(rel.ID), tags, outer, inner)
	if err := p.Proc.Way(obj); err != nil {
		return err
	}
	if obj.Empty() {
		return nil
	}

	relID := element.WayID(rel.ID)
	seq := p.Builder.AssembleMultiPolygon(relID, outer, inner)
	if err := p.Rels.Insert(relID, seq); err != nil {
		return err
	}
	for _, w := range outer {
		p.WayRels[w] = append(p.WayRels[w], relID)
	}
	for _, w := range inner {
		p.WayRels[w] = append(p.WayRels[w], relID)
	}
	p.RelOutputs[relID] = obj.Outputs
	return nil
}

// readWays is phase C.
func (p *Pipeline) readWays(f *os.File) error {
	scanner, err := p.newScanner(f, false, true, false)
	if err != nil {
		return err
	}
	defer scanner.Close()

	count := 0
	for scanner.Scan() {
		way, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if err := p.handleWay(way); err != nil {
			return err
		}
		count++
		if count%100000 == 0 {
			p.log.Progress(fmt.Sprintf("%d ways", count))
		}
	}
	return scanner.Err()
}

func (p *Pipeline) handleWay(way *osm.Way) error {
	refs := wayNodeRefs(way)
	obj := script.NewWayObject(p.Env, uint64(way.ID), tagsMap(way.Tags), refs)
	if err := p.Proc.Way(obj); err != nil {
		return err
	}

	id := element.WayID(way.ID)
	rels := p.WayRels[id]
	if obj.Empty() && len(rels) == 0 {
		return nil
	}
	// the way is needed again when tiles are written, either for its
	// own geometry or as part of a relation
	if err := p.Ways.Insert(id, refs); err != nil {
		return err
	}

	covered := p.coverTiles(id, refs, p.Conf.Settings.BaseZoom)
	for t := range covered {
		p.Index.Add(t, obj.Outputs...)
		for _, relID := range rels {
			p.Index.Add(t, p.RelOutputs[relID]...)
		}
	}
	return nil
}

// coverTiles rasterizes a way's polyline through base-zoom tile
// coordinates, synthesizing the tiles any segment crosses.
func (p *Pipeline) coverTiles(id element.WayID, refs []element.NodeID, zoom uint8) map[tile.ID]struct{} {
	covered := make(map[tile.ID]struct{})
	var prev element.LatpLon
	have := false
	for _, ref := range refs {
		ll, err := p.Nodes.Get(ref)
		if err != nil {
			p.log.Warnf("way %d: node %d is unresolved", id, ref)
			continue
		}
		covered[tile.At(ll, zoom)] = struct{}{}
		if have {
			tile.CoverSegment(covered, prev, ll, zoom)
		}
		prev, have = ll, true
	}
	return covered
}

// HeaderBounds reads the bounding box of a PBF file's header block, or
// nil when the header carries none.
func HeaderBounds(path string) (*[4]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	scanner := osmpbf.New(context.Background(), f, 1)
	defer scanner.Close()
	header, err := scanner.Header()
	if err != nil {
		return nil, errors.Wrapf(err, "reading header of %s", path)
	}
	if header.Bounds == nil {
		return nil, nil
	}
	b := header.Bounds
	return &[4]float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}, nil
}
