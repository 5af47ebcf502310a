package geom

import (
	"github.com/paulmach/orb"

	"github.com/tilemason/tilemason/element"
)

// ringBuild is one reconstructed ring together with the encoded way
// sequence that produced it.
type ringBuild struct {
	items []element.SeqItem
	ring  orb.Ring
}

// AssembleMultiPolygon connects the outer and inner way bags of a
// multipolygon relation into closed rings, parents each inner ring to
// its tightest enclosing outer ring, and flattens the result into the
// encoded sequence stored for the relation.
//
// The bags arrive in arbitrary order; ways may be missing, empty, or
// need reversing to connect. All such conditions are recoverable: they
// are logged and the best possible sequence is still returned.
func (b *Builder) AssembleMultiPolygon(relID element.WayID, outerWays, innerWays []element.WayID) []element.SeqItem {
	var outers, inners []ringBuild
	for _, isOuter := range []bool{true, false} {
		ways := outerWays
		if !isOuter {
			ways = innerWays
		}
		rings := b.buildRings(relID, ways, isOuter)
		if isOuter {
			outers = rings
		} else {
			inners = rings
		}
	}

	// parent each inner ring to the smallest outer ring enclosing it
	innersForOuter := make([][]element.SeqItem, len(outers))
	for _, in := range inners {
		parent := -1
		equalsOuter := false
		for j, out := range outers {
			if RingsEqual(in.ring, out.ring) {
				equalsOuter = true
				break
			}
			if !RingWithin(in.ring, out.ring) {
				continue
			}
			if parent == -1 || RingWithin(out.ring, outers[parent].ring) {
				parent = j
			}
		}
		if equalsOuter {
			b.Log.Warnf("relation %d: inner ring %v equals an outer ring, dropped",
				relID, element.SeqWays(in.items))
			continue
		}
		if parent == -1 {
			b.Log.Warnf("relation %d: inner ring %v is not in any outer ring, dropped",
				relID, element.SeqWays(in.items))
			continue
		}
		innersForOuter[parent] = append(innersForOuter[parent], element.InnerMark)
		innersForOuter[parent] = append(innersForOuter[parent], in.items...)
	}

	// flatten: outers in order, each followed by its inner rings
	var seq []element.SeqItem
	for j, out := range outers {
		if j > 0 {
			seq = append(seq, element.OuterMark)
		}
		seq = append(seq, out.items...)
		seq = append(seq, innersForOuter[j]...)
	}

	// self check; an invalid result is still returned, clipping may
	// salvage parts of it downstream
	if mp, err := b.MultiPolygon(seq); err != nil {
		b.Log.Warnf("relation %d: assembled sequence does not build: %v", relID, err)
	} else if len(seq) > 0 {
		if ok, reason := ValidMultiPolygon(mp); !ok {
			b.Log.Warnf("relation %d: assembled multipolygon is invalid: %s", relID, reason)
		}
	}
	return seq
}

// buildRings groups one bag of ways into closed rings by greedy
// endpoint matching.
func (b *Builder) buildRings(relID element.WayID, ways []element.WayID, isOuter bool) []ringBuild {
	role := "inner"
	if isOuter {
		role = "outer"
	}

	consumed := make([]bool, len(ways))
	type endpoints struct{ first, last element.LatpLon }
	ends := make([]endpoints, len(ways))

	for i, wid := range ways {
		refs, err := b.Ways.Get(wid)
		if err != nil {
			b.Log.Warnf("relation %d: %s way %d is unavailable", relID, role, wid)
			consumed[i] = true
			continue
		}
		if len(refs) == 0 {
			b.Log.Warnf("relation %d: %s way %d is empty", relID, role, wid)
			consumed[i] = true
			continue
		}
		first, err1 := b.Nodes.Get(refs[0])
		last, err2 := b.Nodes.Get(refs[len(refs)-1])
		if err1 != nil || err2 != nil {
			b.Log.Warnf("relation %d: %s way %d has unresolved end nodes", relID, role, wid)
			consumed[i] = true
			continue
		}
		ends[i] = endpoints{first, last}
	}

	var rings []ringBuild
	for startIdx := range ways {
		if consumed[startIdx] {
			continue
		}

		// walk greedily from the start way, always moving to the
		// unconsumed way whose nearer endpoint is closest, until the
		// best choice is the start way again (the loop closes)
		var items []element.SeqItem
		startCoord := ends[startIdx].first
		nextIdx := startIdx
		reverse := false
		for {
			consumed[nextIdx] = true
			if reverse {
				items = append(items, element.ReverseMark)
			}
			items = append(items, element.Way(ways[nextIdx]))
			current := ends[nextIdx].last
			if reverse {
				current = ends[nextIdx].first
			}

			minSqd := current.DistSq(startCoord)
			nextIdx = startIdx
			for i := range ways {
				if consumed[i] {
					continue
				}
				for _, isFirst := range []bool{true, false} {
					target := ends[i].first
					if !isFirst {
						target = ends[i].last
					}
					sqd := current.DistSq(target)
					if sqd < minSqd {
						minSqd = sqd
						nextIdx = i
						reverse = !isFirst
					} else if sqd == 0 {
						// minSqd is already zero: several ways meet here
						b.Log.Warnf("relation %d: more than two %s ways share endpoint %v (way %d)",
							relID, role, current, ways[i])
					}
				}
			}
			if minSqd > 0 {
				b.Log.Warnf("relation %d: no connected %s way at %v, using way %d at squared distance %d",
					relID, role, current, ways[nextIdx], minSqd)
			}
			if nextIdx == startIdx {
				break
			}
		}

		// materialize and validate the ring
		ring := orb.Ring{}
		rev := false
		ok := true
		for _, it := range items {
			if it.Mark == element.MarkReverse {
				rev = true
				continue
			}
			refs, err := b.Ways.Get(it.ID)
			if err != nil {
				ok = false
				break
			}
			if _, err := b.FillPoints((*[]orb.Point)(&ring), refs, rev); err != nil {
				ok = false
				break
			}
			rev = false
		}
		if !ok {
			b.Log.Warnf("relation %d: %s ring %v could not be materialized", relID, role, element.SeqWays(items))
			continue
		}
		ring = CorrectRing(ring, orb.CCW)
		if valid, reason := ValidRing(ring); !valid {
			b.Log.Warnf("relation %d: invalid %s ring %v: %s", relID, role, element.SeqWays(items), reason)
			continue
		}
		rings = append(rings, ringBuild{items: items, ring: ring})
	}
	return rings
}
