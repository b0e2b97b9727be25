package cluster

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimbuskv/nimbus/common"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrClusterEmpty is returned when routing is attempted against a registry
// with no active nodes. Operations fail immediately instead of hanging.
var ErrClusterEmpty = errors.New("cluster is empty: no active nodes")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IRegistry is the routing view consumed by the async executor core. The
// core asks which nodes exist and which node owns a partition; it never
// mutates membership itself.
type IRegistry interface {
	// Nodes returns the currently active nodes
	Nodes() []*Node

	// GetNodeForPartition returns the node owning the given partition
	GetNodeForPartition(p Partition) (*Node, error)
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Registry is the concrete node registry. Membership and partition-map
// updates are pushed in by the tending collaborator (or by tests); lookups
// are lock-free on the hot path.
type Registry struct {
	mu      sync.RWMutex
	ordered []*Node // dispatch order for cluster-wide operations

	byName     *xsync.MapOf[string, *Node]
	partitions *xsync.MapOf[string, *partitionTable]

	poolSize int
	timeout  time.Duration
}

// partitionTable holds the owner of every partition of one namespace.
// Owners are updated mid-flight by the tending collaborator, so the slots
// are atomic pointers. Slots without an explicit owner fall back to
// deterministic spreading over the active node list.
type partitionTable struct {
	owners [TotalPartitions]atomic.Pointer[Node]
}

// NewRegistry creates a registry seeded with the configured node addresses.
// Seed nodes are named by their address.
func NewRegistry(config common.ClientConfig) *Registry {
	r := &Registry{
		byName:     xsync.NewMapOf[string, *Node](),
		partitions: xsync.NewMapOf[string, *partitionTable](),
		poolSize:   config.ConnectionsPerNode,
		timeout:    time.Duration(config.TimeoutSecond) * time.Second,
	}
	for _, seed := range config.Seeds {
		r.AddNode(seed, seed)
	}
	return r
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IRegistry)
// --------------------------------------------------------------------------

func (r *Registry) Nodes() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]*Node, 0, len(r.ordered))
	for _, n := range r.ordered {
		if n.Active() {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (r *Registry) GetNodeForPartition(p Partition) (*Node, error) {
	if table, ok := r.partitions.Load(p.Namespace); ok {
		if node := table.owners[p.ID].Load(); node != nil && node.Active() {
			return node, nil
		}
	}

	// No explicit owner known: spread partitions deterministically over
	// the active node list so routing works before the first map update.
	nodes := r.Nodes()
	if len(nodes) == 0 {
		return nil, ErrClusterEmpty
	}
	return nodes[p.ID%len(nodes)], nil
}

// --------------------------------------------------------------------------
// Membership Updates (pushed by the tending collaborator)
// --------------------------------------------------------------------------

// AddNode registers a node and returns it. Adding an existing name returns
// the already-registered node.
func (r *Registry) AddNode(name, address string) *Node {
	if existing, ok := r.byName.Load(name); ok {
		return existing
	}

	node := NewNode(name, address, r.poolSize, r.timeout)
	r.byName.Store(name, node)

	r.mu.Lock()
	r.ordered = append(r.ordered, node)
	r.mu.Unlock()

	Logger.Infof("Added node %s", node)
	return node
}

// RemoveNode deactivates and drops a node.
func (r *Registry) RemoveNode(name string) {
	node, ok := r.byName.LoadAndDelete(name)
	if !ok {
		return
	}
	node.Close()

	r.mu.Lock()
	for i, n := range r.ordered {
		if n == node {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	Logger.Infof("Removed node %s", node)
}

// GetNode looks a node up by name.
func (r *Registry) GetNode(name string) (*Node, bool) {
	return r.byName.Load(name)
}

// SetPartitionOwner assigns one partition of a namespace to a node.
func (r *Registry) SetPartitionOwner(namespace string, partitionID int, node *Node) {
	table, _ := r.partitions.LoadOrStore(namespace, &partitionTable{})
	table.owners[partitionID].Store(node)
}

// UpdatePartitionMap replaces the whole ownership table of a namespace.
// The keys of owners are partition ids, the values node names.
func (r *Registry) UpdatePartitionMap(namespace string, owners map[int]string) {
	table := &partitionTable{}
	for id, name := range owners {
		if id < 0 || id >= TotalPartitions {
			continue
		}
		if node, ok := r.byName.Load(name); ok {
			table.owners[id].Store(node)
		}
	}
	r.partitions.Store(namespace, table)
}

// Close shuts down all nodes.
func (r *Registry) Close() {
	r.mu.Lock()
	nodes := r.ordered
	r.ordered = nil
	r.mu.Unlock()

	for _, n := range nodes {
		n.Close()
	}
	r.byName.Clear()
	r.partitions.Clear()
}
