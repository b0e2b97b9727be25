package client

import (
	"github.com/nimbuskv/nimbus/cluster"
	"github.com/nimbuskv/nimbus/wire"
)

// --------------------------------------------------------------------------
// Listener Interfaces
// --------------------------------------------------------------------------

// The listener interfaces below are the completion surface of all
// asynchronous operations. Exactly one of the two methods fires per
// operation, from an executor goroutine, after the operation's pooled
// resources have been returned. Listener implementations must not block
// for long; they commonly hand the result to a channel.

// RecordListener receives the result of a single-record read.
type RecordListener interface {
	OnSuccess(key *Key, record *wire.Record)
	OnFailure(err error)
}

// WriteListener receives the result of a write or delete.
type WriteListener interface {
	OnSuccess(key *Key)
	OnFailure(err error)
}

// ExistsListener receives the result of an existence check.
type ExistsListener interface {
	OnSuccess(key *Key, exists bool)
	OnFailure(err error)
}

// BatchListener receives the result of a batch read. The records slice is
// index-aligned with the requested keys; entries whose individual read
// failed carry their per-record result code and a nil record.
type BatchListener interface {
	OnSuccess(records []wire.BatchRecord)
	OnFailure(err error)
}

// RecordSequenceListener receives scan results as they stream in.
// OnRecord is called once per record, possibly from multiple goroutines
// concurrently (one per scanned node). OnComplete fires exactly once
// after the last record.
type RecordSequenceListener interface {
	OnRecord(key *Key, record *wire.Record)
	OnComplete(err error)
}

// --------------------------------------------------------------------------
// Key
// --------------------------------------------------------------------------

// Key identifies one record. It is an alias re-exported from the cluster
// package so callers of the client API only import this package.
type Key = cluster.Key

// NewKey builds a key from its namespace, set and user key.
func NewKey(namespace, set, userKey string) *Key {
	return cluster.NewKey(namespace, set, userKey)
}
