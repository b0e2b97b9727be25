package async

import (
	"errors"
	"fmt"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/nimbuskv/nimbus/wire"
)

var Logger = logger.GetLogger("async")

// commandState tracks a command attempt through its lifecycle. States only
// ever advance; a failed attempt restarts from stateCreated on a clone.
type commandState int

const (
	stateCreated commandState = iota
	stateBufferWritten
	stateSending
	stateReceiving
	stateParsing
)

func (s commandState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateBufferWritten:
		return "bufferWritten"
	case stateSending:
		return "sending"
	case stateReceiving:
		return "receiving"
	case stateParsing:
		return "parsing"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Executor
// --------------------------------------------------------------------------

// Executor drives single commands through their state machine: acquire
// context → acquire connection → write → send → receive → parse → release
// → listener. The context pool bounds how many commands run at once.
type Executor struct {
	pool    ContextPool
	buffers *BufferPool
}

// NewExecutor creates an executor on top of a context pool and its buffer
// arena.
func NewExecutor(pool ContextPool, buffers *BufferPool) *Executor {
	return &Executor{pool: pool, buffers: buffers}
}

// Pool returns the executor's context pool.
func (e *Executor) Pool() ContextPool {
	return e.pool
}

// Execute launches the command. Completion is observed only through the
// command's listener: exactly one of OnSuccess or OnFailure fires, never
// both, never zero times.
func (e *Executor) Execute(cmd Command, policy Policy) {
	e.execute(cmd, policy, 0)
}

// execute starts one attempt. attempt counts from zero; retries re-enter
// here with a cloned command and an incremented count.
func (e *Executor) execute(cmd Command, policy Policy, attempt int) {
	e.pool.Acquire(func(ctx *EventContext, err error) {
		if err != nil {
			metricCommandsFailed.Inc()
			cmd.OnFailure(err)
			return
		}
		go e.run(cmd, policy, attempt, ctx)
	})
}

// run performs one attempt and handles its outcome. Retryable failures
// re-drive a fresh clone of the command up to the policy's budget;
// everything else reaches the listener directly.
func (e *Executor) run(cmd Command, policy Policy, attempt int, ctx *EventContext) {
	err := e.runAttempt(cmd, policy, ctx)

	if err == nil {
		metricCommandsCompleted.Inc()
		cmd.OnSuccess()
		return
	}

	if cmd.Stopped() {
		// a stopped command still delivers one final completion, which
		// the owner is expected to ignore
		metricCommandsFailed.Inc()
		cmd.OnFailure(ErrCommandStopped)
		return
	}

	if IsRetryable(err) {
		if attempt < policy.MaxRetries {
			metricCommandRetries.Inc()
			Logger.Debugf("Command attempt %d/%d failed, retrying: %v", attempt+1, policy.MaxRetries+1, err)
			if policy.SleepBetweenRetries > 0 {
				time.Sleep(policy.SleepBetweenRetries)
			}
			e.execute(cmd.Clone(), policy, attempt+1)
			return
		}
		err = &RetriesExhaustedError{Attempts: attempt + 1, LastErr: err}
	}

	metricCommandsFailed.Inc()
	cmd.OnFailure(err)
}

// runAttempt drives one attempt through the state machine. The event
// context is released on every exit path before the outcome propagates.
func (e *Executor) runAttempt(cmd Command, policy Policy, ctx *EventContext) (err error) {
	defer e.pool.Release(ctx)

	state := stateCreated
	defer func() {
		if err != nil {
			Logger.Debugf("Command failed in state %s: %v", state, err)
		}
	}()

	node := cmd.Node()
	if node == nil || !node.Active() {
		return fmt.Errorf("%w: %v", ErrNodeUnreachable, node)
	}

	conn, err := node.GetConnection()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNodeUnreachable, err)
	}

	// the connection goes back to the node's pool only when the exchange
	// finished cleanly, otherwise its stream state is unknown
	reusable := false
	defer func() {
		if reusable {
			node.PutConnection(conn)
		} else {
			conn.Close()
		}
	}()

	// BufferWritten: serialize the request, growing the buffer once when
	// the encoder reports the frame does not fit
	buf := ctx.Buffer(e.buffers.SlotSize())
	n, err := cmd.WriteRequest(buf)
	var overflow *wire.ErrBufferOverflow
	if errors.As(err, &overflow) {
		buf = ctx.Buffer(overflow.Required)
		n, err = cmd.WriteRequest(buf)
	}
	if err != nil {
		reusable = true // nothing was written to the socket
		return err
	}
	state = stateBufferWritten

	if policy.Timeout > 0 {
		if err := conn.SetDeadline(policy.Timeout); err != nil {
			return err
		}
	}

	// Sending
	state = stateSending
	if err := conn.Write(buf[:n]); err != nil {
		return translateTransportError(err)
	}

	// Receiving / Parsing: the command consumes and decodes its own
	// response frames
	state = stateReceiving
	if err := cmd.ReadResponse(conn, buf); err != nil {
		var serverErr *wire.ServerError
		if errors.As(err, &serverErr) {
			// well-formed response, the stream is intact
			reusable = true
		}
		return translateTransportError(err)
	}

	state = stateParsing
	reusable = true
	return nil
}

// translateTransportError maps socket deadline errors onto the typed
// timeout sentinel so the retry classification stays uniform.
func translateTransportError(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
