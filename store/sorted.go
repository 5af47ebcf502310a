package store

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/tilemason/tilemason/element"
)

// ErrUnsorted is returned when a sorted store receives a key that is
// not larger than the previously inserted one.
var ErrUnsorted = errors.New("sorted store: key not larger than previous key")

// SortedNodeStore keeps keys and coordinates in two parallel, sorted
// arrays. It needs roughly half the memory of the map store but
// requires ascending insertion order, which OSM extracts provide after
// renumbering.
type SortedNodeStore struct {
	ids    []element.NodeID
	coords []element.LatpLon
}

func NewSortedNodeStore() *SortedNodeStore {
	return &SortedNodeStore{}
}

func (s *SortedNodeStore) rank(id element.NodeID) (int, bool) {
	i := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
	return i, i < len(s.ids) && s.ids[i] == id
}

func (s *SortedNodeStore) Insert(id element.NodeID, coord element.LatpLon) error {
	if n := len(s.ids); n > 0 && id <= s.ids[n-1] {
		if id == s.ids[n-1] {
			return nil
		}
		return errors.Wrapf(ErrUnsorted, "node %d", id)
	}
	s.ids = append(s.ids, id)
	s.coords = append(s.coords, coord)
	return nil
}

func (s *SortedNodeStore) Get(id element.NodeID) (element.LatpLon, error) {
	i, ok := s.rank(id)
	if !ok {
		return element.LatpLon{}, ErrNotFound
	}
	return s.coords[i], nil
}

// Contains reports membership. (Count in the ancestor of this store
// returned the raw result of a binary search; the 0-or-1 intent is what
// is implemented here.)
func (s *SortedNodeStore) Contains(id element.NodeID) bool {
	_, ok := s.rank(id)
	return ok
}

func (s *SortedNodeStore) Clear() error {
	s.ids, s.coords = nil, nil
	return nil
}

func (s *SortedNodeStore) Close() error { return nil }

// SortedWayStore keeps all node refs in one flat array, with a rank
// index delimiting each way's span. Same ascending-key requirement as
// SortedNodeStore.
type SortedWayStore struct {
	ids     []element.WayID
	offsets []int
	refs    []element.NodeID
}

func NewSortedWayStore() *SortedWayStore {
	return &SortedWayStore{offsets: []int{0}}
}

func (s *SortedWayStore) rank(id element.WayID) (int, bool) {
	i := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
	return i, i < len(s.ids) && s.ids[i] == id
}

func (s *SortedWayStore) Insert(id element.WayID, refs []element.NodeID) error {
	if n := len(s.ids); n > 0 && id <= s.ids[n-1] {
		if id == s.ids[n-1] {
			return nil
		}
		return errors.Wrapf(ErrUnsorted, "way %d", id)
	}
	s.ids = append(s.ids, id)
	s.refs = append(s.refs, refs...)
	s.offsets = append(s.offsets, len(s.refs))
	return nil
}

func (s *SortedWayStore) Get(id element.WayID) ([]element.NodeID, error) {
	i, ok := s.rank(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s.refs[s.offsets[i]:s.offsets[i+1]], nil
}

func (s *SortedWayStore) Contains(id element.WayID) bool {
	_, ok := s.rank(id)
	return ok
}

func (s *SortedWayStore) Clear() error {
	s.ids, s.refs = nil, nil
	s.offsets = []int{0}
	return nil
}
