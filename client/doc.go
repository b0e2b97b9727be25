// Package client is the public surface of the nimbus database client.
//
// A Client is created once per cluster with NewClient and is safe for
// concurrent use. Every database operation exists in two forms: an
// asynchronous one that takes a listener and returns immediately, and a
// synchronous convenience wrapper built on top of it. Both forms are
// driven by the same async executor, so the configured command limit and
// pool discipline apply uniformly.
//
// Multi-key operations (BatchGet, ScanAll) fan out one sub-command per
// involved node and aggregate the sub-results before the listener fires.
package client
