package cluster

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("cluster")

// Node represents one database server. It owns a bounded pool of idle
// connections; commands check a connection out for the duration of one
// request/response exchange and check it back in afterwards.
type Node struct {
	name    string
	address string

	idle    chan *Connection
	timeout time.Duration
	active  atomic.Bool
	closed  atomic.Bool
}

// NewNode creates a node with an idle-connection pool of the given size.
// Connections are dialed lazily on first use.
func NewNode(name, address string, poolSize int, timeout time.Duration) *Node {
	if poolSize <= 0 {
		poolSize = 1
	}
	n := &Node{
		name:    name,
		address: address,
		idle:    make(chan *Connection, poolSize),
		timeout: timeout,
	}
	n.active.Store(true)
	return n
}

// Name returns the node's identity within the registry.
func (n *Node) Name() string {
	return n.name
}

// Address returns the node's dialable address.
func (n *Node) Address() string {
	return n.address
}

// Active reports whether the node is currently usable. The tending
// collaborator flips this when the node drops out of the cluster.
func (n *Node) Active() bool {
	return n.active.Load() && !n.closed.Load()
}

// SetActive marks the node usable or unusable.
func (n *Node) SetActive(active bool) {
	n.active.Store(active)
}

// GetConnection returns an idle pooled connection or dials a new one.
func (n *Node) GetConnection() (*Connection, error) {
	if !n.Active() {
		return nil, fmt.Errorf("node %s is not active", n.name)
	}
	select {
	case conn := <-n.idle:
		return conn, nil
	default:
	}
	conn, err := newConnection(n, n.timeout)
	if err != nil {
		Logger.Warningf("Failed to connect to node %s (%s): %v", n.name, n.address, err)
		return nil, err
	}
	return conn, nil
}

// PutConnection returns a connection to the idle pool. When the pool is
// full or the node is closed the connection is discarded.
func (n *Node) PutConnection(conn *Connection) {
	if n.closed.Load() {
		conn.Close()
		return
	}
	// clear any per-attempt deadline before pooling
	_ = conn.SetDeadline(0)
	select {
	case n.idle <- conn:
	default:
		conn.Close()
	}
}

// Close drops the node's pooled connections and marks it unusable.
func (n *Node) Close() {
	if !n.closed.CompareAndSwap(false, true) {
		return
	}
	n.active.Store(false)
	for {
		select {
		case conn := <-n.idle:
			conn.Close()
		default:
			return
		}
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("%s (%s)", n.name, n.address)
}
