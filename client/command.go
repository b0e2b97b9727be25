package client

import (
	"fmt"

	"github.com/nimbuskv/nimbus/async"
	"github.com/nimbuskv/nimbus/cluster"
	"github.com/nimbuskv/nimbus/wire"
)

// --------------------------------------------------------------------------
// Single-Key Commands
// --------------------------------------------------------------------------

// singleCommand carries what all single-key command kinds share: the key,
// the encoded request and the message type. Concrete kinds differ only in
// the fields they fill and in how they parse the response payload.
type singleCommand struct {
	async.BaseCommand
	key     *Key
	msgType wire.MessageType
	request wire.Request
}

func newSingleCommand(node *cluster.Node, key *Key, msgType wire.MessageType) singleCommand {
	c := singleCommand{
		key:     key,
		msgType: msgType,
		request: wire.Request{
			Namespace: key.Namespace,
			Set:       key.Set,
			Key:       key.UserKey,
		},
	}
	c.SetNode(node)
	return c
}

func (c *singleCommand) WriteRequest(buf []byte) (int, error) {
	return c.request.MarshalInto(buf, c.msgType)
}

// readSingleFrame reads exactly one response frame and maps its result
// code to an error. Command kinds that accept some non-OK codes (read,
// exists) parse the header themselves instead.
func (c *singleCommand) readSingleFrame(conn *cluster.Connection, buf []byte) (wire.Header, []byte, error) {
	h, payload, err := conn.ReadFrame(buf)
	if err != nil {
		return h, nil, err
	}
	if h.Type != c.msgType {
		return h, nil, fmt.Errorf("unexpected response type: %s, expected %s", h.Type, c.msgType)
	}
	return h, payload, nil
}

// readCommand fetches one record.
type readCommand struct {
	singleCommand
	listener RecordListener
	record   *wire.Record
}

func newReadCommand(node *cluster.Node, key *Key, listener RecordListener) *readCommand {
	return &readCommand{
		singleCommand: newSingleCommand(node, key, wire.MsgTGet),
		listener:      listener,
	}
}

func (c *readCommand) ReadResponse(conn *cluster.Connection, buf []byte) error {
	h, payload, err := c.readSingleFrame(conn, buf)
	if err != nil {
		return err
	}
	if err := wire.ResultToError(h.Result); err != nil {
		return err
	}
	record, err := wire.DecodeRecord(payload)
	if err != nil {
		return err
	}
	c.record = record
	return nil
}

func (c *readCommand) Clone() async.Command {
	clone := newReadCommand(c.Node(), c.key, c.listener)
	return clone
}

func (c *readCommand) OnSuccess() {
	c.listener.OnSuccess(c.key, c.record)
}

func (c *readCommand) OnFailure(err error) {
	c.listener.OnFailure(err)
}

// writeCommand stores one record value.
type writeCommand struct {
	singleCommand
	listener WriteListener
}

func newWriteCommand(node *cluster.Node, key *Key, value []byte, ttl uint32, listener WriteListener) *writeCommand {
	c := &writeCommand{
		singleCommand: newSingleCommand(node, key, wire.MsgTPut),
		listener:      listener,
	}
	c.request.Value = value
	c.request.TTL = ttl
	return c
}

func (c *writeCommand) ReadResponse(conn *cluster.Connection, buf []byte) error {
	h, _, err := c.readSingleFrame(conn, buf)
	if err != nil {
		return err
	}
	return wire.ResultToError(h.Result)
}

func (c *writeCommand) Clone() async.Command {
	return newWriteCommand(c.Node(), c.key, c.request.Value, c.request.TTL, c.listener)
}

func (c *writeCommand) OnSuccess() {
	c.listener.OnSuccess(c.key)
}

func (c *writeCommand) OnFailure(err error) {
	c.listener.OnFailure(err)
}

// deleteCommand removes one record.
type deleteCommand struct {
	singleCommand
	listener WriteListener
}

func newDeleteCommand(node *cluster.Node, key *Key, listener WriteListener) *deleteCommand {
	return &deleteCommand{
		singleCommand: newSingleCommand(node, key, wire.MsgTDelete),
		listener:      listener,
	}
}

func (c *deleteCommand) ReadResponse(conn *cluster.Connection, buf []byte) error {
	h, _, err := c.readSingleFrame(conn, buf)
	if err != nil {
		return err
	}
	return wire.ResultToError(h.Result)
}

func (c *deleteCommand) Clone() async.Command {
	return newDeleteCommand(c.Node(), c.key, c.listener)
}

func (c *deleteCommand) OnSuccess() {
	c.listener.OnSuccess(c.key)
}

func (c *deleteCommand) OnFailure(err error) {
	c.listener.OnFailure(err)
}

// existsCommand checks record existence. A key-not-found result is a
// successful "false", not a failure.
type existsCommand struct {
	singleCommand
	listener ExistsListener
	exists   bool
}

func newExistsCommand(node *cluster.Node, key *Key, listener ExistsListener) *existsCommand {
	return &existsCommand{
		singleCommand: newSingleCommand(node, key, wire.MsgTExists),
		listener:      listener,
	}
}

func (c *existsCommand) ReadResponse(conn *cluster.Connection, buf []byte) error {
	h, _, err := c.readSingleFrame(conn, buf)
	if err != nil {
		return err
	}
	if h.Result == wire.ResultKeyNotFound {
		c.exists = false
		return nil
	}
	if err := wire.ResultToError(h.Result); err != nil {
		return err
	}
	c.exists = true
	return nil
}

func (c *existsCommand) Clone() async.Command {
	return newExistsCommand(c.Node(), c.key, c.listener)
}

func (c *existsCommand) OnSuccess() {
	c.listener.OnSuccess(c.key, c.exists)
}

func (c *existsCommand) OnFailure(err error) {
	c.listener.OnFailure(err)
}

// operateCommand runs a list of bin operations on one record and returns
// its state after the writes.
type operateCommand struct {
	singleCommand
	listener RecordListener
	record   *wire.Record
}

func newOperateCommand(node *cluster.Node, key *Key, ops []wire.Op, listener RecordListener) *operateCommand {
	c := &operateCommand{
		singleCommand: newSingleCommand(node, key, wire.MsgTOperate),
		listener:      listener,
	}
	c.request.Ops = ops
	return c
}

func (c *operateCommand) ReadResponse(conn *cluster.Connection, buf []byte) error {
	h, payload, err := c.readSingleFrame(conn, buf)
	if err != nil {
		return err
	}
	if err := wire.ResultToError(h.Result); err != nil {
		return err
	}
	record, err := wire.DecodeRecord(payload)
	if err != nil {
		return err
	}
	c.record = record
	return nil
}

func (c *operateCommand) Clone() async.Command {
	return newOperateCommand(c.Node(), c.key, c.request.Ops, c.listener)
}

func (c *operateCommand) OnSuccess() {
	c.listener.OnSuccess(c.key, c.record)
}

func (c *operateCommand) OnFailure(err error) {
	c.listener.OnFailure(err)
}
