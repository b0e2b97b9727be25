// Package cluster models the server side of the client's world: nodes,
// per-node connection pools, partitions and the registry that maps a
// partition to the node currently owning it.
//
// The registry is deliberately passive. Topology discovery (tending) is an
// external concern; whoever runs it pushes node and partition-map updates
// into the Registry, and the async executor core only ever reads from it.
package cluster
