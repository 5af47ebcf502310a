package store

import "github.com/tilemason/tilemason/element"

// MapNodeStore is the default in-memory node store.
type MapNodeStore struct {
	coords map[element.NodeID]element.LatpLon
}

func NewMapNodeStore() *MapNodeStore {
	return &MapNodeStore{coords: make(map[element.NodeID]element.LatpLon)}
}

func (s *MapNodeStore) Insert(id element.NodeID, coord element.LatpLon) error {
	if _, ok := s.coords[id]; !ok {
		s.coords[id] = coord
	}
	return nil
}

func (s *MapNodeStore) Get(id element.NodeID) (element.LatpLon, error) {
	coord, ok := s.coords[id]
	if !ok {
		return element.LatpLon{}, ErrNotFound
	}
	return coord, nil
}

func (s *MapNodeStore) Contains(id element.NodeID) bool {
	_, ok := s.coords[id]
	return ok
}

func (s *MapNodeStore) Clear() error {
	s.coords = make(map[element.NodeID]element.LatpLon)
	return nil
}

func (s *MapNodeStore) Close() error { return nil }

// MapWayStore is the in-memory way store. The pipeline clears it after
// the relation phase to release the node lists of ways that are only
// referenced by relations.
type MapWayStore struct {
	refs map[element.WayID][]element.NodeID
}

func NewMapWayStore() *MapWayStore {
	return &MapWayStore{refs: make(map[element.WayID][]element.NodeID)}
}

func (s *MapWayStore) Insert(id element.WayID, refs []element.NodeID) error {
	if _, ok := s.refs[id]; !ok {
		s.refs[id] = refs
	}
	return nil
}

func (s *MapWayStore) Get(id element.WayID) ([]element.NodeID, error) {
	refs, ok := s.refs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return refs, nil
}

func (s *MapWayStore) Contains(id element.WayID) bool {
	_, ok := s.refs[id]
	return ok
}

func (s *MapWayStore) Clear() error {
	s.refs = make(map[element.WayID][]element.NodeID)
	return nil
}

// MapRelationStore maps relation pseudo-way IDs to encoded sequences.
type MapRelationStore struct {
	seqs map[element.WayID][]element.SeqItem
}

func NewMapRelationStore() *MapRelationStore {
	return &MapRelationStore{seqs: make(map[element.WayID][]element.SeqItem)}
}

func (s *MapRelationStore) Insert(id element.WayID, seq []element.SeqItem) error {
	if _, ok := s.seqs[id]; !ok {
		s.seqs[id] = seq
	}
	return nil
}

func (s *MapRelationStore) Get(id element.WayID) ([]element.SeqItem, error) {
	seq, ok := s.seqs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return seq, nil
}

func (s *MapRelationStore) Contains(id element.WayID) bool {
	_, ok := s.seqs[id]
	return ok
}

func (s *MapRelationStore) Clear() error {
	s.seqs = make(map[element.WayID][]element.SeqItem)
	return nil
}
