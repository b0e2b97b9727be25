package async

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/nimbuskv/nimbus/wire"
)

var (
	// ErrCommandRejected indicates that no event context was available
	// under the reject pool discipline. Not retried by this core.
	ErrCommandRejected = errors.New("command rejected: too many concurrent commands")
	// ErrCommandStopped indicates the command was cancelled cooperatively
	// while in flight.
	ErrCommandStopped = errors.New("command stopped")
	// ErrTimeout indicates that a command attempt exceeded its deadline.
	ErrTimeout = errors.New("command timed out")
	// ErrNodeUnreachable indicates that the command's target node could
	// not be used for the attempt.
	ErrNodeUnreachable = errors.New("node unreachable")
	// ErrPoolClosed indicates the context pool has been shut down.
	ErrPoolClosed = errors.New("context pool is closed")
)

// RetriesExhaustedError wraps the last transient failure after the retry
// budget ran out. Callers can distinguish it from a non-retryable failure
// to decide whether backing off and reissuing makes sense.
type RetriesExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsRetryable reports whether a failure class is worth a fresh attempt:
// timeouts, unreachable nodes and transport-level errors. Server-side
// logical errors and rejections are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrNodeUnreachable) {
		return true
	}
	if errors.Is(err, ErrCommandRejected) || errors.Is(err, ErrCommandStopped) {
		return false
	}
	var serverErr *wire.ServerError
	if errors.As(err, &serverErr) {
		// server gave up internally; the request may succeed elsewhere
		return serverErr.Code == wire.ResultServerTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// a peer closing mid-exchange surfaces as EOF on the read side
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsRoutingStale reports whether the server answered that it no longer
// owns the addressed partition. Triggers sub-command replacement in the
// multi-command executor rather than outright failure.
func IsRoutingStale(err error) bool {
	var serverErr *wire.ServerError
	return errors.As(err, &serverErr) && serverErr.Code == wire.ResultPartitionMoved
}
