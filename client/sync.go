package client

import (
	"github.com/nimbuskv/nimbus/wire"
)

// --------------------------------------------------------------------------
// Synchronous Wrappers
// --------------------------------------------------------------------------

// The wrappers below block the calling goroutine until the operation's
// listener fires. They share the async pool with all other operations, so
// the command limit and pool discipline apply to them too.

type recordResult struct {
	record *wire.Record
	err    error
}

type chanRecordListener chan recordResult

func (l chanRecordListener) OnSuccess(_ *Key, record *wire.Record) {
	l <- recordResult{record: record}
}

func (l chanRecordListener) OnFailure(err error) {
	l <- recordResult{err: err}
}

type chanWriteListener chan error

func (l chanWriteListener) OnSuccess(_ *Key) {
	l <- nil
}

func (l chanWriteListener) OnFailure(err error) {
	l <- err
}

type existsResult struct {
	exists bool
	err    error
}

type chanExistsListener chan existsResult

func (l chanExistsListener) OnSuccess(_ *Key, exists bool) {
	l <- existsResult{exists: exists}
}

func (l chanExistsListener) OnFailure(err error) {
	l <- existsResult{err: err}
}

type batchResult struct {
	records []wire.BatchRecord
	err     error
}

type chanBatchListener chan batchResult

func (l chanBatchListener) OnSuccess(records []wire.BatchRecord) {
	l <- batchResult{records: records}
}

func (l chanBatchListener) OnFailure(err error) {
	l <- batchResult{err: err}
}

// GetSync fetches one record, blocking until it arrives.
func (c *Client) GetSync(policy *BasePolicy, key *Key) (*wire.Record, error) {
	done := make(chanRecordListener, 1)
	c.Get(policy, done, key)
	res := <-done
	return res.record, res.err
}

// PutSync stores value under key, blocking until acknowledged.
func (c *Client) PutSync(policy *BasePolicy, key *Key, value []byte, ttl uint32) error {
	done := make(chanWriteListener, 1)
	c.Put(policy, done, key, value, ttl)
	return <-done
}

// DeleteSync removes the record stored under key, blocking until
// acknowledged.
func (c *Client) DeleteSync(policy *BasePolicy, key *Key) error {
	done := make(chanWriteListener, 1)
	c.Delete(policy, done, key)
	return <-done
}

// ExistsSync checks record existence, blocking until answered.
func (c *Client) ExistsSync(policy *BasePolicy, key *Key) (bool, error) {
	done := make(chanExistsListener, 1)
	c.Exists(policy, done, key)
	res := <-done
	return res.exists, res.err
}

// OperateSync runs bin operations on one record, blocking until the
// resulting record state arrives.
func (c *Client) OperateSync(policy *BasePolicy, key *Key, ops ...wire.Op) (*wire.Record, error) {
	done := make(chanRecordListener, 1)
	c.Operate(policy, done, key, ops...)
	res := <-done
	return res.record, res.err
}

// BatchGetSync fetches many keys, blocking until all per-node subsets
// completed. The result is index-aligned with keys.
func (c *Client) BatchGetSync(policy *BatchPolicy, namespace, set string, keys []string) ([]wire.BatchRecord, error) {
	done := make(chanBatchListener, 1)
	c.BatchGet(policy, done, namespace, set, keys)
	res := <-done
	return res.records, res.err
}

// ScanAllSync streams every record of a namespace through fn, blocking
// until the scan finished on all nodes. fn may be called from several
// goroutines concurrently.
func (c *Client) ScanAllSync(policy *ScanPolicy, namespace, set string, fn func(key *Key, record *wire.Record)) error {
	done := make(chan error, 1)
	c.ScanAll(policy, funcSequenceListener{onRecord: fn, onComplete: func(err error) { done <- err }}, namespace, set)
	return <-done
}

// funcSequenceListener adapts two funcs to the sequence listener
// interface.
type funcSequenceListener struct {
	onRecord   func(key *Key, record *wire.Record)
	onComplete func(err error)
}

func (l funcSequenceListener) OnRecord(key *Key, record *wire.Record) {
	l.onRecord(key, record)
}

func (l funcSequenceListener) OnComplete(err error) {
	l.onComplete(err)
}
