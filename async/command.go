package async

import (
	"sync/atomic"
	"time"

	"github.com/nimbuskv/nimbus/cluster"
)

// --------------------------------------------------------------------------
// Command Contract
// --------------------------------------------------------------------------

// Command is one unit of work targeting one node. It knows how to write
// its request into a buffer, consume and parse its own response frames,
// and what to tell its listener on completion. The executor core treats
// both directions as opaque.
//
// A command is executed once per attempt; retries run on a fresh Clone
// carrying the same logical parameters, never on the used instance.
type Command interface {
	// Node returns the target node of this command
	Node() *cluster.Node

	// WriteRequest serializes the request frame into buf and returns the
	// number of bytes written. A *wire.ErrBufferOverflow return makes the
	// executor grow the buffer and re-encode; it is not a failure.
	WriteRequest(buf []byte) (int, error)

	// ReadResponse consumes the response frames from the connection,
	// using buf as scratch space, and parses them into the command's
	// result state. A decoded server error code is returned as a typed
	// *wire.ServerError.
	ReadResponse(conn *cluster.Connection, buf []byte) error

	// Clone returns a fresh command with the same logical parameters for
	// the next retry attempt
	Clone() Command

	// OnSuccess delivers the terminal success to the command's listener
	OnSuccess()

	// OnFailure delivers the terminal failure to the command's listener
	OnFailure(err error)

	// Stop requests cooperative cancellation; checked at the next
	// resumption point, in-flight socket operations are not aborted
	Stop()

	// Stopped reports whether Stop was called
	Stopped() bool
}

// --------------------------------------------------------------------------
// Base Command
// --------------------------------------------------------------------------

// BaseCommand carries the target node and the cooperative cancellation
// flag. Concrete commands embed it by pointer-receiver convention and
// implement the serialization and listener methods themselves.
type BaseCommand struct {
	node    *cluster.Node
	stopped atomic.Bool
}

// SetNode assigns the command's target node.
func (c *BaseCommand) SetNode(node *cluster.Node) {
	c.node = node
}

// Node returns the command's target node.
func (c *BaseCommand) Node() *cluster.Node {
	return c.node
}

// Stop flags the command for cooperative cancellation.
func (c *BaseCommand) Stop() {
	c.stopped.Store(true)
}

// Stopped reports whether the command was cancelled.
func (c *BaseCommand) Stopped() bool {
	return c.stopped.Load()
}

// --------------------------------------------------------------------------
// Policy
// --------------------------------------------------------------------------

// Policy bounds one command's attempts: a per-attempt deadline, the number
// of retries after the first failure and the delay between attempts.
type Policy struct {
	Timeout             time.Duration
	MaxRetries          int
	SleepBetweenRetries time.Duration
}

// DefaultPolicy returns the policy applied when callers pass none.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:             10 * time.Second,
		MaxRetries:          2,
		SleepBetweenRetries: 50 * time.Millisecond,
	}
}
