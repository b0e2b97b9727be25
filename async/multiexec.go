package async

import (
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Multi-Command Executor
// --------------------------------------------------------------------------

// IndexedCommand pairs a replacement sub-command with the slot it takes in
// the executor's command array. A negative index appends instead, used
// when one stale sub-command has to be re-split across several nodes.
type IndexedCommand struct {
	Index   int
	Command Command
}

// MultiExecutor drives the per-node sub-commands of one logical multi-node
// operation (batch get, cluster-wide scan) with bounded concurrency and
// exactly-once aggregate completion.
//
// Dispatch follows array order; completion order is unconstrained. At most
// maxConcurrent sub-commands of this executor are in flight at once, the
// next one launching as an earlier one completes.
type MultiExecutor struct {
	executor *Executor
	policy   Policy

	// stopOnFailure selects aggregate semantics: the first failure stops
	// all siblings and fails the whole operation (batch/scan default), or
	// failures are remembered while siblings run to completion
	stopOnFailure bool

	// onComplete is the aggregate terminal callback, fired exactly once
	onComplete func(err error)

	// OnRoutingStale, when set, maps a sub-command that failed with a
	// stale-routing error to its replacements re-split against the
	// current partition map. slot is the failed sub-command's index; one
	// replacement must take it or the aggregate never completes.
	// Returning nil falls through to normal failure handling.
	OnRoutingStale func(failed Command, slot int) []IndexedCommand

	mu            sync.Mutex // guards commands against batch-retry swaps
	commands      []Command
	total         int64
	maxConcurrent int

	// dispatched is the window frontier: the number of command slots
	// handed to the executor so far. Each slot is dispatched exactly
	// once through here; batch-retry slot swaps re-dispatch directly.
	// Never advanced past total, so slots appended later by a batch
	// retry remain claimable by subsequent window slides.
	dispatched     atomic.Int64
	completedCount atomic.Int64
	done           atomic.Bool
	firstErr       atomic.Pointer[error]
	retryBudget    atomic.Int32
}

// NewMultiExecutor creates a multi-command executor. The aggregate outcome
// is delivered exactly once through onComplete; a nil error means every
// sub-command succeeded (or, in continue-on-failure mode, that no failure
// was recorded).
func NewMultiExecutor(executor *Executor, policy Policy, stopOnFailure bool, onComplete func(err error)) *MultiExecutor {
	m := &MultiExecutor{
		executor:      executor,
		policy:        policy,
		stopOnFailure: stopOnFailure,
		onComplete:    onComplete,
	}
	m.retryBudget.Store(int32(policy.MaxRetries))
	return m
}

// Execute launches min(maxConcurrent, len(commands)) sub-commands
// immediately; the rest start one-for-one as earlier ones complete.
// Completion is observed only via onComplete.
func (m *MultiExecutor) Execute(commands []Command, maxConcurrent int) {
	if len(commands) == 0 {
		if m.done.CompareAndSwap(false, true) {
			m.onComplete(nil)
		}
		return
	}
	if maxConcurrent <= 0 || maxConcurrent > len(commands) {
		maxConcurrent = len(commands)
	}

	m.mu.Lock()
	m.commands = commands
	m.mu.Unlock()
	atomic.StoreInt64(&m.total, int64(len(commands)))
	m.maxConcurrent = maxConcurrent
	m.dispatched.Store(0)

	for i := 0; i < maxConcurrent; i++ {
		m.dispatchNext()
	}
}

// dispatchNext claims the next undispatched slot and launches it. Called
// once per free window slot; with every slot dispatched it is a no-op
// that leaves the frontier at total, so a slot appended afterwards is
// still picked up by the next slide.
func (m *MultiExecutor) dispatchNext() {
	for {
		idx := m.dispatched.Load()
		if idx >= atomic.LoadInt64(&m.total) || m.done.Load() {
			return
		}
		if m.dispatched.CompareAndSwap(idx, idx+1) {
			m.launch(int(idx))
			return
		}
	}
}

// Reset zeroes the completion state so the whole set of sub-commands can
// be redispatched as one wave, reusing the executor instead of
// reallocating it.
func (m *MultiExecutor) Reset() {
	m.dispatched.Store(0)
	m.completedCount.Store(0)
	m.done.Store(false)
	m.firstErr.Store(nil)
}

// ExecuteBatchRetry swaps the given slots of the command array for their
// replacements and re-dispatches exactly those slots. Entries still
// executing are never touched and never re-dispatched. A replacement with
// a negative index is appended instead and starts once the sliding window
// reaches it, keeping the concurrency bound intact.
func (m *MultiExecutor) ExecuteBatchRetry(replacements []IndexedCommand) {
	m.mu.Lock()
	indexes := make([]int, 0, len(replacements))
	for _, r := range replacements {
		if r.Index < 0 {
			m.commands = append(m.commands, r.Command)
			atomic.AddInt64(&m.total, 1)
			continue
		}
		m.commands[r.Index] = r.Command
		indexes = append(indexes, r.Index)
	}
	m.mu.Unlock()

	for _, idx := range indexes {
		m.launch(idx)
	}
}

// ChildSuccess is called by a sub-command's terminal success transition.
func (m *MultiExecutor) ChildSuccess() {
	if m.done.Load() {
		return
	}
	m.childComplete()
}

// tryRedirect handles the batch-retry special case: a sub-command that
// failed because its routing went stale is replaced and redispatched
// instead of failing, transparently to the caller, until the retry budget
// runs out. Reports whether the failure was consumed.
func (m *MultiExecutor) tryRedirect(failed Command, slot int, err error) bool {
	if m.done.Load() || m.OnRoutingStale == nil || !IsRoutingStale(err) {
		return false
	}
	if m.retryBudget.Add(-1) < 0 {
		return false
	}
	replacements := m.OnRoutingStale(failed, slot)
	if len(replacements) == 0 {
		return false
	}
	Logger.Debugf("Redirecting %d sub-command(s) after stale routing", len(replacements))
	m.ExecuteBatchRetry(replacements)
	return true
}

// ChildFailure is called by a sub-command's terminal failure transition.
func (m *MultiExecutor) ChildFailure(err error) {
	if m.done.Load() {
		return
	}

	if m.stopOnFailure {
		// first failure wins the done race, stops the siblings and fires
		// the aggregate failure once
		if m.done.CompareAndSwap(false, true) {
			m.stopAll()
			m.onComplete(err)
		}
		return
	}

	// continue-on-failure: remember the first error, keep the window
	// moving and surface the error once everything finished
	m.firstErr.CompareAndSwap(nil, &err)
	m.childComplete()
}

// childComplete counts one finished sub-command, slides the window and
// fires the aggregate callback after the last one.
func (m *MultiExecutor) childComplete() {
	finished := m.completedCount.Add(1)
	total := atomic.LoadInt64(&m.total)

	if finished < total {
		m.dispatchNext()
		return
	}

	if finished == total && m.done.CompareAndSwap(false, true) {
		var err error
		if p := m.firstErr.Load(); p != nil {
			err = *p
		}
		m.onComplete(err)
	}
}

// launch hands one sub-command to the single-command executor, wrapped so
// its terminal transition reports back here.
func (m *MultiExecutor) launch(idx int) {
	m.mu.Lock()
	cmd := m.commands[idx]
	m.mu.Unlock()

	m.executor.Execute(&childCommand{Command: cmd, owner: m, idx: idx}, m.policy)
}

// stopAll signals cooperative cancellation to every sub-command.
// Best-effort: an in-flight sub-command may still deliver one final
// completion, which the done flag makes a no-op.
func (m *MultiExecutor) stopAll() {
	m.mu.Lock()
	commands := m.commands
	m.mu.Unlock()

	for _, cmd := range commands {
		cmd.Stop()
	}
}

// --------------------------------------------------------------------------
// Child Command Wrapper
// --------------------------------------------------------------------------

// childCommand forwards a sub-command's terminal transitions to its
// owning multi-executor. The wrapped command's own listener methods run
// first so per-node results are recorded before aggregate bookkeeping.
type childCommand struct {
	Command
	owner *MultiExecutor
	idx   int
}

func (c *childCommand) OnSuccess() {
	c.Command.OnSuccess()
	c.owner.ChildSuccess()
}

func (c *childCommand) OnFailure(err error) {
	if c.owner.tryRedirect(c.Command, c.idx, err) {
		return
	}
	c.Command.OnFailure(err)
	c.owner.ChildFailure(err)
}

func (c *childCommand) Clone() Command {
	return &childCommand{Command: c.Command.Clone(), owner: c.owner, idx: c.idx}
}
