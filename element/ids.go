//go:build !compactnodes

package element

// NodeID identifies an OSM node. Build with the compactnodes tag to use
// 32-bit IDs (requires renumbered input, e.g. from `osmium renumber`).
type NodeID uint64
