package client

import (
	"time"

	"github.com/nimbuskv/nimbus/async"
)

// --------------------------------------------------------------------------
// Policies
// --------------------------------------------------------------------------

// BasePolicy bounds a single-key operation. The zero value selects the
// client defaults.
type BasePolicy struct {
	// Timeout is the per-attempt deadline covering connect, send and
	// receive. Zero selects the client default.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first failed attempt.
	// Negative means no retries; zero selects the client default.
	MaxRetries int

	// SleepBetweenRetries is the delay before each retry attempt
	SleepBetweenRetries time.Duration
}

// toAsync converts the policy into the executor's form, filling unset
// fields from the defaults.
func (p *BasePolicy) toAsync(defaults async.Policy) async.Policy {
	out := defaults
	if p == nil {
		return out
	}
	if p.Timeout > 0 {
		out.Timeout = p.Timeout
	}
	if p.MaxRetries > 0 {
		out.MaxRetries = p.MaxRetries
	} else if p.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	if p.SleepBetweenRetries > 0 {
		out.SleepBetweenRetries = p.SleepBetweenRetries
	}
	return out
}

// BatchPolicy bounds a batch read.
type BatchPolicy struct {
	BasePolicy

	// MaxConcurrentNodes caps how many per-node sub-commands run at once.
	// Zero or negative means all involved nodes in parallel.
	MaxConcurrentNodes int

	// ContinueOnFailure lets the remaining sub-commands run to completion
	// when one fails; failed keys then carry per-record error codes in
	// the delivered results. The zero value aborts the whole batch on the
	// first sub-command failure.
	ContinueOnFailure bool
}

// ScanPolicy bounds a full-namespace scan.
type ScanPolicy struct {
	BasePolicy

	// MaxConcurrentNodes caps how many nodes are scanned at once.
	// Zero or negative means all nodes in parallel.
	MaxConcurrentNodes int
}
