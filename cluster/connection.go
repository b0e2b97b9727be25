package cluster

import (
	"fmt"
	"net"
	"time"

	"github.com/nimbuskv/nimbus/wire"
)

// Connection wraps one socket to a node. A connection is used by exactly
// one command attempt at a time; it is either returned to its node's idle
// pool afterwards or closed when the transport state is unknown.
type Connection struct {
	conn net.Conn
	node *Node
}

// newConnection dials the node's address with a connect timeout.
func newConnection(node *Node, timeout time.Duration) (*Connection, error) {
	conn, err := net.DialTimeout("tcp", node.Address(), timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", node.Address(), err)
	}
	return &Connection{conn: conn, node: node}, nil
}

// Node returns the node this connection belongs to.
func (c *Connection) Node() *Node {
	return c.node
}

// SetDeadline applies an absolute I/O deadline covering both the write and
// read side of one request/response exchange. A zero duration clears it.
func (c *Connection) SetDeadline(timeout time.Duration) error {
	if timeout <= 0 {
		return c.conn.SetDeadline(time.Time{})
	}
	return c.conn.SetDeadline(time.Now().Add(timeout))
}

// Write sends the whole buffer. net.Conn.Write loops over partial writes
// internally, re-arming until the full frame is transferred.
func (c *Connection) Write(buf []byte) error {
	_, err := c.conn.Write(buf)
	return err
}

// ReadFrame reads one response frame using buf as scratch space.
func (c *Connection) ReadFrame(buf []byte) (wire.Header, []byte, error) {
	return wire.ReadFrame(c.conn, buf)
}

// Close shuts the socket down.
func (c *Connection) Close() error {
	return c.conn.Close()
}
