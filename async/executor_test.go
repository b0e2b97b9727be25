package async

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nimbuskv/nimbus/cluster"
	"github.com/nimbuskv/nimbus/common"
	"github.com/nimbuskv/nimbus/wire"
)

// --------------------------------------------------------------------------
// Test Server
// --------------------------------------------------------------------------

// responseFunc decides how the test server answers one request frame.
// Returning false drops the connection without a reply.
type responseFunc func(conn net.Conn, h wire.Header, payload []byte) bool

// startTestServer runs a frame-speaking TCP server on a random port and
// returns its address. The server is stopped via t.Cleanup.
func startTestServer(t *testing.T, respond responseFunc) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				buf := make([]byte, 64*1024)
				for {
					h, payload, err := wire.ReadFrame(conn, buf)
					if err != nil {
						return
					}
					if !respond(conn, h, payload) {
						return
					}
				}
			}(conn)
		}
	}()

	return ln.Addr().String()
}

// respondOK answers every request with an empty success frame of the same
// message type.
func respondOK(conn net.Conn, h wire.Header, _ []byte) bool {
	return writeResponse(conn, h.Type, wire.ResultOK, nil)
}

func writeResponse(conn net.Conn, t wire.MessageType, result wire.ResultCode, payload []byte) bool {
	out := make([]byte, wire.HeaderSize+len(payload))
	wire.PutHeader(out, wire.Header{Type: t, Result: result, Flags: wire.FlagLastFrame, Length: uint32(len(payload))})
	copy(out[wire.HeaderSize:], payload)
	_, err := conn.Write(out)
	return err == nil
}

func newTestNode(addr string) *cluster.Node {
	return cluster.NewNode(addr, addr, 4, time.Second)
}

func newTestExecutor(mode common.PoolMode, size, bufSize int) (*Executor, ContextPool) {
	buffers := NewBufferPool(size, bufSize)
	pool := NewContextPool(mode, buffers, size)
	return NewExecutor(pool, buffers), pool
}

// --------------------------------------------------------------------------
// Test Command
// --------------------------------------------------------------------------

// testCommand is a minimal command: one request frame out, one response
// frame in. Terminal transitions land on channels; clones share them.
type testCommand struct {
	BaseCommand
	key      string
	value    []byte
	success  chan struct{}
	failure  chan error
	attempts *atomic.Int32
}

func newTestCommand(node *cluster.Node, key string) *testCommand {
	c := &testCommand{
		key:      key,
		success:  make(chan struct{}, 1),
		failure:  make(chan error, 1),
		attempts: &atomic.Int32{},
	}
	c.SetNode(node)
	return c
}

func (c *testCommand) WriteRequest(buf []byte) (int, error) {
	c.attempts.Add(1)
	req := wire.Request{Namespace: "test", Key: c.key, Value: c.value}
	return req.MarshalInto(buf, wire.MsgTGet)
}

func (c *testCommand) ReadResponse(conn *cluster.Connection, buf []byte) error {
	h, _, err := conn.ReadFrame(buf)
	if err != nil {
		return err
	}
	return wire.ResultToError(h.Result)
}

func (c *testCommand) Clone() Command {
	clone := &testCommand{
		key:      c.key,
		value:    c.value,
		success:  c.success,
		failure:  c.failure,
		attempts: c.attempts,
	}
	clone.SetNode(c.Node())
	return clone
}

func (c *testCommand) OnSuccess() {
	c.success <- struct{}{}
}

func (c *testCommand) OnFailure(err error) {
	c.failure <- err
}

func awaitSuccess(t *testing.T, cmd *testCommand) {
	t.Helper()
	select {
	case <-cmd.success:
	case err := <-cmd.failure:
		t.Fatalf("Command failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Command never completed")
	}
}

func awaitFailure(t *testing.T, cmd *testCommand) error {
	t.Helper()
	select {
	case <-cmd.success:
		t.Fatalf("Command succeeded, expected failure")
		return nil
	case err := <-cmd.failure:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("Command never completed")
		return nil
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestExecuteSuccess runs one command against a healthy server.
func TestExecuteSuccess(t *testing.T) {
	addr := startTestServer(t, respondOK)
	executor, pool := newTestExecutor(common.PoolModeBlock, 4, 1024)
	defer pool.Close()

	cmd := newTestCommand(newTestNode(addr), "k1")
	executor.Execute(cmd, DefaultPolicy())
	awaitSuccess(t, cmd)

	if got := cmd.attempts.Load(); got != 1 {
		t.Errorf("Expected 1 attempt, got %d", got)
	}
}

// TestExecuteServerErrorNotRetried verifies a definite server error is
// delivered without burning retry attempts.
func TestExecuteServerErrorNotRetried(t *testing.T) {
	addr := startTestServer(t, func(conn net.Conn, h wire.Header, _ []byte) bool {
		return writeResponse(conn, h.Type, wire.ResultKeyNotFound, nil)
	})
	executor, pool := newTestExecutor(common.PoolModeBlock, 4, 1024)
	defer pool.Close()

	cmd := newTestCommand(newTestNode(addr), "missing")
	executor.Execute(cmd, Policy{Timeout: time.Second, MaxRetries: 3})
	err := awaitFailure(t, cmd)

	var se *wire.ServerError
	if !errors.As(err, &se) || se.Code != wire.ResultKeyNotFound {
		t.Fatalf("Expected key-not-found server error, got %v", err)
	}
	if got := cmd.attempts.Load(); got != 1 {
		t.Errorf("Server error must not be retried, saw %d attempts", got)
	}
}

// TestExecuteRetriesOnDroppedConnection verifies retries run on fresh
// clones until the server behaves.
func TestExecuteRetriesOnDroppedConnection(t *testing.T) {
	var requests atomic.Int32
	addr := startTestServer(t, func(conn net.Conn, h wire.Header, _ []byte) bool {
		if requests.Add(1) <= 2 {
			return false // drop without replying
		}
		return writeResponse(conn, h.Type, wire.ResultOK, nil)
	})
	executor, pool := newTestExecutor(common.PoolModeBlock, 4, 1024)
	defer pool.Close()

	cmd := newTestCommand(newTestNode(addr), "k1")
	executor.Execute(cmd, Policy{Timeout: time.Second, MaxRetries: 3, SleepBetweenRetries: 5 * time.Millisecond})
	awaitSuccess(t, cmd)

	if got := cmd.attempts.Load(); got != 3 {
		t.Errorf("Expected 3 attempts (2 drops + 1 success), got %d", got)
	}
}

// TestExecuteRetriesExhausted verifies the aggregate error after the last
// failed attempt names the attempt count and the last cause.
func TestExecuteRetriesExhausted(t *testing.T) {
	addr := startTestServer(t, func(net.Conn, wire.Header, []byte) bool {
		return false // always drop
	})
	executor, pool := newTestExecutor(common.PoolModeBlock, 4, 1024)
	defer pool.Close()

	cmd := newTestCommand(newTestNode(addr), "k1")
	executor.Execute(cmd, Policy{Timeout: time.Second, MaxRetries: 2, SleepBetweenRetries: time.Millisecond})
	err := awaitFailure(t, cmd)

	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Expected RetriesExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Expected 3 attempts in error, got %d", exhausted.Attempts)
	}
	if got := cmd.attempts.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

// TestExecuteTimeout verifies a silent server surfaces the timeout
// sentinel.
func TestExecuteTimeout(t *testing.T) {
	addr := startTestServer(t, func(net.Conn, wire.Header, []byte) bool {
		time.Sleep(2 * time.Second)
		return false
	})
	executor, pool := newTestExecutor(common.PoolModeBlock, 4, 1024)
	defer pool.Close()

	cmd := newTestCommand(newTestNode(addr), "k1")
	executor.Execute(cmd, Policy{Timeout: 100 * time.Millisecond, MaxRetries: 0})
	err := awaitFailure(t, cmd)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
}

// TestExecuteInactiveNode verifies commands against an inactive node fail
// fast without dialing.
func TestExecuteInactiveNode(t *testing.T) {
	executor, pool := newTestExecutor(common.PoolModeBlock, 4, 1024)
	defer pool.Close()

	node := newTestNode("127.0.0.1:1") // never dialed
	node.SetActive(false)

	cmd := newTestCommand(node, "k1")
	executor.Execute(cmd, Policy{Timeout: time.Second, MaxRetries: 0})
	err := awaitFailure(t, cmd)

	if !errors.Is(err, ErrNodeUnreachable) {
		t.Fatalf("Expected ErrNodeUnreachable, got %v", err)
	}
}

// TestExecuteStopped verifies a stopped command reports cancellation
// instead of retrying.
func TestExecuteStopped(t *testing.T) {
	addr := startTestServer(t, func(net.Conn, wire.Header, []byte) bool {
		return false // drop, would normally retry
	})
	executor, pool := newTestExecutor(common.PoolModeBlock, 4, 1024)
	defer pool.Close()

	cmd := newTestCommand(newTestNode(addr), "k1")
	cmd.Stop()
	executor.Execute(cmd, Policy{Timeout: time.Second, MaxRetries: 5})
	err := awaitFailure(t, cmd)

	if !errors.Is(err, ErrCommandStopped) {
		t.Fatalf("Expected ErrCommandStopped, got %v", err)
	}
	if got := cmd.attempts.Load(); got != 1 {
		t.Errorf("Stopped command must not retry, saw %d attempts", got)
	}
}

// TestExecuteBufferRegrow verifies a request larger than the slot size
// grows the buffer transparently.
func TestExecuteBufferRegrow(t *testing.T) {
	addr := startTestServer(t, respondOK)
	buffers := NewBufferPool(2, 256)
	pool := NewContextPool(common.PoolModeBlock, buffers, 2)
	defer pool.Close()
	executor := NewExecutor(pool, buffers)

	cmd := newTestCommand(newTestNode(addr), "k1")
	cmd.value = make([]byte, 4096) // frame cannot fit in 256 bytes

	executor.Execute(cmd, DefaultPolicy())
	awaitSuccess(t, cmd)

	if buffers.SlotSize() < 4096 {
		t.Errorf("Expected slot size to grow past 4096, got %d", buffers.SlotSize())
	}
}

// TestExecutorConcurrentLoad drives many commands through a small pool and
// verifies all complete and the pool is intact afterwards.
func TestExecutorConcurrentLoad(t *testing.T) {
	addr := startTestServer(t, respondOK)
	executor, pool := newTestExecutor(common.PoolModeBlock, 8, 1024)
	defer pool.Close()

	node := newTestNode(addr)
	const commands = 200

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < commands; i++ {
		wg.Add(1)
		cmd := newTestCommand(node, "k")
		go func(cmd *testCommand) {
			defer wg.Done()
			executor.Execute(cmd, DefaultPolicy())
			select {
			case <-cmd.success:
			case <-cmd.failure:
				failures.Add(1)
			case <-time.After(10 * time.Second):
				failures.Add(1)
			}
		}(cmd)
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("%d of %d commands failed", failures.Load(), commands)
	}

	// every context must be back in the pool
	for i := 0; i < pool.Cap(); i++ {
		done := make(chan struct{})
		pool.Acquire(func(ctx *EventContext, err error) {
			if err != nil {
				t.Errorf("Pool not intact after load: %v", err)
			}
			close(done)
		})
		<-done
	}
}
