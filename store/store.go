// Package store holds the three keyed containers populated during
// ingestion: node coordinates, way node lists and encoded relation
// sequences. Stores are bulk-populated, read-hot while geometries are
// built, and dropped (or cleared in between) to keep memory bounded.
//
// Get returns slices borrowed from the store; callers must not mutate
// them and must not hold them across a mutating call.
package store

import (
	"github.com/pkg/errors"

	"github.com/tilemason/tilemason/element"
)

// ErrNotFound is returned when an ID is not in a store.
var ErrNotFound = errors.New("not found")

// NodeStore maps node IDs to projected fixed-point coordinates.
// Insert is first-write-wins; inserting an existing ID is a no-op.
type NodeStore interface {
	Insert(id element.NodeID, coord element.LatpLon) error
	Get(id element.NodeID) (element.LatpLon, error)
	Contains(id element.NodeID) bool
	Clear() error
	Close() error
}

// WayStore maps way IDs to their node ID sequence. The sequence is
// immutable once inserted; Insert is first-write-wins.
type WayStore interface {
	Insert(id element.WayID, refs []element.NodeID) error
	Get(id element.WayID) ([]element.NodeID, error)
	Contains(id element.WayID) bool
	Clear() error
}

// RelationStore maps a relation's pseudo-way ID to its encoded way
// sequence. Insert is first-write-wins.
type RelationStore interface {
	Insert(id element.WayID, seq []element.SeqItem) error
	Get(id element.WayID) ([]element.SeqItem, error)
	Contains(id element.WayID) bool
	Clear() error
}
