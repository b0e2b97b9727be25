package wire

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the kind of request carried by a frame.
type MessageType uint8

const (
	MsgTUnknown MessageType = iota

	// Single-key operations

	MsgTGet     // Read a record by key
	MsgTPut     // Write a record
	MsgTDelete  // Delete a record
	MsgTExists  // Check whether a record exists
	MsgTOperate // Multiple bin operations on one record

	// Multi-node operations

	MsgTBatchGet // Read many records, one sub-request per node
	MsgTScan     // Stream all records of a node, multi-frame response
)

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTGet:
		return "get"
	case MsgTPut:
		return "put"
	case MsgTDelete:
		return "delete"
	case MsgTExists:
		return "exists"
	case MsgTOperate:
		return "operate"
	case MsgTBatchGet:
		return "batchGet"
	case MsgTScan:
		return "scan"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Result Code Definition
// --------------------------------------------------------------------------

// ResultCode is the server-side outcome of one request, carried in the
// response frame header.
type ResultCode uint8

const (
	ResultOK ResultCode = iota
	ResultKeyNotFound
	ResultGenerationErr  // Write rejected because of a generation mismatch
	ResultPartitionMoved // The addressed node no longer owns the partition
	ResultServerTimeout  // The server gave up on the request internally
	ResultServerError    // Unspecified server-side failure
)

// String returns the string representation of a ResultCode.
func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "ok"
	case ResultKeyNotFound:
		return "key not found"
	case ResultGenerationErr:
		return "generation mismatch"
	case ResultPartitionMoved:
		return "partition moved"
	case ResultServerTimeout:
		return "server timeout"
	case ResultServerError:
		return "server error"
	default:
		return fmt.Sprintf("unknown result code %d", uint8(c))
	}
}

// --------------------------------------------------------------------------
// Server Error Type
// --------------------------------------------------------------------------

// ServerError wraps a non-OK result code as a typed error. It represents a
// logical failure decoded from a well-formed response, not a transport
// failure, and is therefore never retried by the executor.
type ServerError struct {
	Code ResultCode
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %s", e.Code)
}

// ResultToError converts a response result code into a typed error.
// ResultOK yields nil.
func ResultToError(code ResultCode) error {
	if code == ResultOK {
		return nil
	}
	return &ServerError{Code: code}
}

// --------------------------------------------------------------------------
// Record Types
// --------------------------------------------------------------------------

// Record is one decoded database record.
type Record struct {
	// Generation is the server-side modification counter of the record
	Generation uint32
	// Bins maps bin names to their raw values
	Bins map[string][]byte
}

// BatchRecord pairs one key of a batch request with its individual outcome.
// In continue-on-failure batch mode every entry carries its own result,
// successful entries stay valid even when siblings fail.
type BatchRecord struct {
	Index  int        // Position of the key in the original batch request
	Key    string     // User key, echoed back by the server
	Code   ResultCode // Per-record outcome
	Record *Record    // Set when Code == ResultOK
}

// --------------------------------------------------------------------------
// Operation Types (for MsgTOperate)
// --------------------------------------------------------------------------

// OpKind defines the kind of a single bin operation.
type OpKind uint8

const (
	OpRead OpKind = iota
	OpWrite
	OpAppend
)

// Op is one bin operation inside an operate request.
type Op struct {
	Kind    OpKind
	BinName string
	Value   []byte // nil for OpRead
}

// GetOp returns a read operation for the named bin.
func GetOp(binName string) Op {
	return Op{Kind: OpRead, BinName: binName}
}

// PutOp returns a write operation for the named bin.
func PutOp(binName string, value []byte) Op {
	return Op{Kind: OpWrite, BinName: binName, Value: value}
}

// AppendOp returns an append operation for the named bin.
func AppendOp(binName string, value []byte) Op {
	return Op{Kind: OpAppend, BinName: binName, Value: value}
}
