package client

import (
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/nimbuskv/nimbus/async"
	"github.com/nimbuskv/nimbus/cluster"
	"github.com/nimbuskv/nimbus/common"
	"github.com/nimbuskv/nimbus/wire"
)

var Logger = logger.GetLogger("client")

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Client is the entry point to a nimbus cluster. It owns the node
// registry, the shared buffer arena and the command pool; all operations
// of one Client draw from the same pool, so the configured command limit
// bounds the whole process.
type Client struct {
	registry *cluster.Registry
	executor *async.Executor
	pool     async.ContextPool
	defaults async.Policy
	closed   atomic.Bool
}

// NewClient connects to the cluster described by the config and returns a
// ready client. The seed nodes are registered immediately; connections
// are dialed lazily on first use.
func NewClient(config common.ClientConfig) (*Client, error) {
	config = config.Normalize()
	common.InitLoggers(config)

	buffers := async.NewBufferPool(config.MaxCommands, config.BufferSize)
	pool := async.NewContextPool(config.PoolMode, buffers, config.MaxCommands)

	c := &Client{
		registry: cluster.NewRegistry(config),
		executor: async.NewExecutor(pool, buffers),
		pool:     pool,
		defaults: async.Policy{
			Timeout:             time.Duration(config.TimeoutSecond) * time.Second,
			MaxRetries:          config.MaxRetries,
			SleepBetweenRetries: time.Duration(config.SleepBetweenMs) * time.Millisecond,
		},
	}

	Logger.Infof("Client created (%d seed nodes, %d max commands, %s pool)",
		len(config.Seeds), config.MaxCommands, config.PoolMode)
	return c, nil
}

// Cluster returns the client's node registry, used to feed partition map
// updates and node membership changes into the client.
func (c *Client) Cluster() *cluster.Registry {
	return c.registry
}

// Close shuts the client down. It must not be called while operations are
// still in flight.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.pool.Close()
	c.registry.Close()
	Logger.Infof("Client closed")
}

// nodeForKey routes a key through the partition map.
func (c *Client) nodeForKey(key *Key) (*cluster.Node, error) {
	return c.registry.GetNodeForPartition(key.Partition())
}

// --------------------------------------------------------------------------
// Single-Key Operations (async)
// --------------------------------------------------------------------------

// Get fetches the record stored under key. The listener fires exactly
// once; a missing key is a failure carrying wire.ResultKeyNotFound.
func (c *Client) Get(policy *BasePolicy, listener RecordListener, key *Key) {
	node, err := c.nodeForKey(key)
	if err != nil {
		listener.OnFailure(err)
		return
	}
	c.executor.Execute(newReadCommand(node, key, listener), policy.toAsync(c.defaults))
}

// Put stores value under key. A ttl of zero means no expiration.
func (c *Client) Put(policy *BasePolicy, listener WriteListener, key *Key, value []byte, ttl uint32) {
	node, err := c.nodeForKey(key)
	if err != nil {
		listener.OnFailure(err)
		return
	}
	c.executor.Execute(newWriteCommand(node, key, value, ttl, listener), policy.toAsync(c.defaults))
}

// Delete removes the record stored under key.
func (c *Client) Delete(policy *BasePolicy, listener WriteListener, key *Key) {
	node, err := c.nodeForKey(key)
	if err != nil {
		listener.OnFailure(err)
		return
	}
	c.executor.Execute(newDeleteCommand(node, key, listener), policy.toAsync(c.defaults))
}

// Exists checks whether a record is stored under key.
func (c *Client) Exists(policy *BasePolicy, listener ExistsListener, key *Key) {
	node, err := c.nodeForKey(key)
	if err != nil {
		listener.OnFailure(err)
		return
	}
	c.executor.Execute(newExistsCommand(node, key, listener), policy.toAsync(c.defaults))
}

// Operate runs the given bin operations on one record atomically and
// delivers the record state after the writes.
func (c *Client) Operate(policy *BasePolicy, listener RecordListener, key *Key, ops ...wire.Op) {
	node, err := c.nodeForKey(key)
	if err != nil {
		listener.OnFailure(err)
		return
	}
	c.executor.Execute(newOperateCommand(node, key, ops, listener), policy.toAsync(c.defaults))
}

// --------------------------------------------------------------------------
// Multi-Node Operations (async)
// --------------------------------------------------------------------------

// BatchGet fetches many keys of one namespace and set in a single
// operation, fanning out one sub-command per involved node. The result
// slice is index-aligned with keys. Sub-commands that fail with a stale
// partition map are transparently re-split against the updated map.
//
// By default the first sub-command failure aborts the batch and fires
// OnFailure. With ContinueOnFailure set, OnSuccess always delivers the
// full result slice; keys of a failed sub-command carry that failure as
// their per-record code.
func (c *Client) BatchGet(policy *BatchPolicy, listener BatchListener, namespace, set string, keys []string) {
	if policy == nil {
		policy = &BatchPolicy{}
	}
	if len(keys) == 0 {
		listener.OnSuccess(nil)
		return
	}

	results := make([]wire.BatchRecord, len(keys))
	groups, err := c.groupKeysByNode(namespace, set, keys, results)
	if err != nil {
		listener.OnFailure(err)
		return
	}

	stopOnFailure := !policy.ContinueOnFailure
	multi := async.NewMultiExecutor(c.executor, policy.toAsync(c.defaults), stopOnFailure, func(err error) {
		if err != nil {
			if stopOnFailure {
				listener.OnFailure(err)
				return
			}
			// failed keys already carry their codes in the results
			Logger.Warningf("Batch completed with partial failures: %v", err)
		}
		listener.OnSuccess(results)
	})
	multi.OnRoutingStale = func(failed async.Command, slot int) []async.IndexedCommand {
		return c.resplitBatchCommand(failed, slot)
	}
	multi.Execute(groups, policy.MaxConcurrentNodes)
}

// ScanAll streams every record of a namespace (optionally narrowed to one
// set) from all cluster nodes. Records arrive through the sequence
// listener, unordered and possibly from several goroutines at once;
// OnComplete fires exactly once after the last record.
func (c *Client) ScanAll(policy *ScanPolicy, listener RecordSequenceListener, namespace, set string) {
	if policy == nil {
		policy = &ScanPolicy{}
	}
	nodes := c.registry.Nodes()
	if len(nodes) == 0 {
		listener.OnComplete(cluster.ErrClusterEmpty)
		return
	}

	var seen atomic.Int64
	commands := make([]async.Command, len(nodes))
	for i, node := range nodes {
		commands[i] = newScanNodeCommand(node, namespace, set, listener, &seen)
	}

	multi := async.NewMultiExecutor(c.executor, policy.toAsync(c.defaults), true, func(err error) {
		listener.OnComplete(err)
	})
	multi.Execute(commands, policy.MaxConcurrentNodes)
}

// --------------------------------------------------------------------------
// Batch Routing
// --------------------------------------------------------------------------

// groupKeysByNode splits the batch keys into per-node sub-commands by the
// current partition map, preserving each key's original position.
func (c *Client) groupKeysByNode(namespace, set string, keys []string, results []wire.BatchRecord) ([]async.Command, error) {
	type group struct {
		keys    []string
		offsets []int
	}
	groups := make(map[*cluster.Node]*group)
	order := make([]*cluster.Node, 0)

	for i, userKey := range keys {
		key := cluster.NewKey(namespace, set, userKey)
		node, err := c.registry.GetNodeForPartition(key.Partition())
		if err != nil {
			return nil, err
		}
		g, ok := groups[node]
		if !ok {
			g = &group{}
			groups[node] = g
			order = append(order, node)
		}
		g.keys = append(g.keys, userKey)
		g.offsets = append(g.offsets, i)
	}

	commands := make([]async.Command, 0, len(order))
	for _, node := range order {
		g := groups[node]
		commands = append(commands, newBatchNodeCommand(node, namespace, set, g.keys, g.offsets, results))
	}
	return commands, nil
}

// resplitBatchCommand regroups the keys of a failed batch sub-command by
// the current (updated) partition map. The first replacement takes the
// failed sub-command's slot, further ones are appended.
func (c *Client) resplitBatchCommand(failed async.Command, slot int) []async.IndexedCommand {
	b, ok := failed.(*batchNodeCommand)
	if !ok {
		return nil
	}

	regrouped, err := c.groupKeysByNode(b.namespace, b.set, b.keys, b.results)
	if err != nil {
		return nil
	}

	// remap offsets: regrouping indexed into b.keys, results want the
	// original batch positions
	replacements := make([]async.IndexedCommand, 0, len(regrouped))
	for i, cmd := range regrouped {
		sub := cmd.(*batchNodeCommand)
		for j, local := range sub.offsets {
			sub.offsets[j] = b.offsets[local]
		}
		idx := -1
		if i == 0 {
			idx = slot
		}
		replacements = append(replacements, async.IndexedCommand{Index: idx, Command: sub})
	}

	Logger.Warningf("Batch sub-command on node %s hit a stale partition map, re-split into %d group(s)",
		b.Node().Name(), len(replacements))
	return replacements
}
