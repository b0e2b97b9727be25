// Package async implements the asynchronous command execution core of the
// client: the machinery that multiplexes many concurrent database
// operations over a bounded pool of reusable I/O contexts and byte
// buffers, drives each command through its request/response state machine,
// and aggregates multi-node operations behind a single terminal callback.
//
// The package is built from four pieces:
//
//   - BufferPool: a contiguous byte arena sliced into fixed-size
//     per-command segments, replaced wholesale when a command needs a
//     larger buffer than currently provisioned.
//
//   - ContextPool: a bounded pool of EventContexts, each pairing one
//     buffer segment with one in-flight command. Three disciplines are
//     available for a full pool: block the caller, reject the command, or
//     queue it for cooperative resumption (see common.PoolMode).
//
//   - Executor: drives exactly one Command through acquire context →
//     acquire connection → write → send → receive → parse → release →
//     listener, with clone-per-attempt retries on transient failures.
//
//   - MultiExecutor: owns the per-node sub-commands of one logical
//     multi-node operation, bounds how many run concurrently with a
//     sliding window, and guarantees that exactly one aggregate success or
//     failure callback fires no matter how sub-commands interleave.
//
// The context pool is the sole concurrency throttle: no more command
// attempts run at once than the pool holds contexts.
package async
