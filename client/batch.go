package client

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nimbuskv/nimbus/async"
	"github.com/nimbuskv/nimbus/cluster"
	"github.com/nimbuskv/nimbus/wire"
)

// --------------------------------------------------------------------------
// Batch Node Command
// --------------------------------------------------------------------------

// batchNodeCommand reads the subset of a batch's keys that route to one
// node. Results land in the batch-wide results slice, safely without
// locking because every sub-command owns a disjoint set of indexes.
type batchNodeCommand struct {
	async.BaseCommand
	namespace string
	set       string
	keys      []string
	offsets   []int // original batch positions, aligned with keys
	results   []wire.BatchRecord
}

func newBatchNodeCommand(node *cluster.Node, namespace, set string, keys []string, offsets []int, results []wire.BatchRecord) *batchNodeCommand {
	c := &batchNodeCommand{
		namespace: namespace,
		set:       set,
		keys:      keys,
		offsets:   offsets,
		results:   results,
	}
	c.SetNode(node)
	return c
}

func (c *batchNodeCommand) WriteRequest(buf []byte) (int, error) {
	req := wire.Request{
		Namespace: c.namespace,
		Set:       c.set,
		Keys:      c.keys,
	}
	return req.MarshalInto(buf, wire.MsgTBatchGet)
}

func (c *batchNodeCommand) ReadResponse(conn *cluster.Connection, buf []byte) error {
	h, payload, err := conn.ReadFrame(buf)
	if err != nil {
		return err
	}
	if h.Type != wire.MsgTBatchGet {
		return fmt.Errorf("unexpected response type: %s, expected %s", h.Type, wire.MsgTBatchGet)
	}
	if err := wire.ResultToError(h.Result); err != nil {
		return err
	}

	records, err := wire.DecodeBatchRecords(payload)
	if err != nil {
		return err
	}
	if len(records) != len(c.keys) {
		return fmt.Errorf("batch response carries %d records, expected %d", len(records), len(c.keys))
	}

	// remap sub-request positions to batch-wide positions
	for i, rec := range records {
		rec.Index = c.offsets[i]
		c.results[c.offsets[i]] = rec
	}
	return nil
}

func (c *batchNodeCommand) Clone() async.Command {
	return newBatchNodeCommand(c.Node(), c.namespace, c.set, c.keys, c.offsets, c.results)
}

// OnSuccess is a no-op: the aggregate listener fires from the owning
// multi-executor once all node subsets completed.
func (c *batchNodeCommand) OnSuccess() {}

// OnFailure marks this sub-command's slots with the failure so that, in
// continue-on-failure mode, the aggregate result still tells per key what
// happened. The aggregate listener fires from the owning multi-executor.
func (c *batchNodeCommand) OnFailure(err error) {
	// unwrap so a server code surviving a retry cycle is preserved
	code := wire.ResultServerError
	var se *wire.ServerError
	if errors.As(err, &se) {
		code = se.Code
	}
	for i, off := range c.offsets {
		c.results[off] = wire.BatchRecord{Index: off, Key: c.keys[i], Code: code}
	}
}

// --------------------------------------------------------------------------
// Scan Node Command
// --------------------------------------------------------------------------

// scanNodeCommand streams all records of a namespace that live on one
// node. The server sends a sequence of record frames, the last one marked
// with the last-frame flag; each decoded record is forwarded to the
// sequence listener as it arrives.
type scanNodeCommand struct {
	async.BaseCommand
	namespace string
	set       string
	listener  RecordSequenceListener
	seen      *atomic.Int64
}

func newScanNodeCommand(node *cluster.Node, namespace, set string, listener RecordSequenceListener, seen *atomic.Int64) *scanNodeCommand {
	c := &scanNodeCommand{
		namespace: namespace,
		set:       set,
		listener:  listener,
		seen:      seen,
	}
	c.SetNode(node)
	return c
}

func (c *scanNodeCommand) WriteRequest(buf []byte) (int, error) {
	req := wire.Request{
		Namespace: c.namespace,
		Set:       c.set,
	}
	return req.MarshalInto(buf, wire.MsgTScan)
}

func (c *scanNodeCommand) ReadResponse(conn *cluster.Connection, buf []byte) error {
	for {
		h, payload, err := conn.ReadFrame(buf)
		if err != nil {
			return err
		}
		if h.Type != wire.MsgTScan {
			return fmt.Errorf("unexpected response type: %s, expected %s", h.Type, wire.MsgTScan)
		}
		if err := wire.ResultToError(h.Result); err != nil {
			return err
		}

		// an empty final frame closes the stream without a record
		if len(payload) > 0 {
			userKey, record, err := decodeScanRecord(payload)
			if err != nil {
				return err
			}
			c.seen.Add(1)
			c.listener.OnRecord(cluster.NewKey(c.namespace, c.set, userKey), record)
		}

		if h.Flags&wire.FlagLastFrame != 0 {
			return nil
		}
		if c.Stopped() {
			// stop between frames; the connection still holds unread
			// frames and cannot be reused
			return async.ErrCommandStopped
		}
	}
}

func (c *scanNodeCommand) Clone() async.Command {
	return newScanNodeCommand(c.Node(), c.namespace, c.set, c.listener, c.seen)
}

func (c *scanNodeCommand) OnSuccess() {}

func (c *scanNodeCommand) OnFailure(err error) {}

// decodeScanRecord splits one scan frame payload into the record's user
// key and the record itself. Layout: [2B key length][key][record].
func decodeScanRecord(payload []byte) (string, *wire.Record, error) {
	if len(payload) < 2 {
		return "", nil, fmt.Errorf("scan frame too short: %d bytes", len(payload))
	}
	keyLen := int(payload[0])<<8 | int(payload[1])
	if len(payload) < 2+keyLen {
		return "", nil, fmt.Errorf("scan frame truncated: key length %d exceeds payload", keyLen)
	}
	userKey := string(payload[2 : 2+keyLen])

	record, err := wire.DecodeRecord(payload[2+keyLen:])
	if err != nil {
		return "", nil, err
	}
	return userKey, record, nil
}
