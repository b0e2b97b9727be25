// Package wire defines the on-wire contract between the client and the
// database nodes: the frame header, message types, result codes and the
// binary encoding of requests and records.
//
// The encoding is a compact custom binary format (flag byte plus
// length-prefixed fields) optimized for speed and efficiency. Commands
// serialize their own requests into a pooled buffer and parse their own
// responses from it; the executor core in the async package treats both
// directions as opaque byte payloads.
package wire
