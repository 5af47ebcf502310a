//go:build compactnodes

package element

// NodeID identifies an OSM node, 32-bit compact variant.
type NodeID uint32
