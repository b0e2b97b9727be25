package wire

import (
	"bytes"
	"errors"
	"net"
	"testing"
)

// TestRequestRoundTrip verifies a fully populated request survives
// encoding and decoding.
func TestRequestRoundTrip(t *testing.T) {
	req := &Request{
		Namespace: "ns",
		Set:       "users",
		Key:       "user-1",
		Value:     []byte("hello"),
		TTL:       300,
		Ops: []Op{
			GetOp("a"),
			PutOp("b", []byte("x")),
			AppendOp("c", []byte("suffix")),
		},
		Keys: []string{"k1", "k2"},
	}

	buf := make([]byte, req.EncodedSize())
	n, err := req.MarshalInto(buf, MsgTOperate)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if n != req.EncodedSize() {
		t.Errorf("Wrote %d bytes, EncodedSize promised %d", n, req.EncodedSize())
	}

	h := ParseHeader(buf)
	if h.Type != MsgTOperate {
		t.Errorf("Expected type %s, got %s", MsgTOperate, h.Type)
	}
	if int(h.Length) != n-HeaderSize {
		t.Errorf("Header length %d does not match payload %d", h.Length, n-HeaderSize)
	}

	got, err := DecodeRequest(buf[HeaderSize:n])
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Namespace != req.Namespace || got.Set != req.Set || got.Key != req.Key {
		t.Errorf("Location fields mangled: %+v", got)
	}
	if !bytes.Equal(got.Value, req.Value) || got.TTL != req.TTL {
		t.Errorf("Value fields mangled: %+v", got)
	}
	if len(got.Ops) != 3 || got.Ops[2].BinName != "c" || !bytes.Equal(got.Ops[2].Value, []byte("suffix")) {
		t.Errorf("Ops mangled: %+v", got.Ops)
	}
	if len(got.Keys) != 2 || got.Keys[1] != "k2" {
		t.Errorf("Keys mangled: %+v", got.Keys)
	}
}

// TestMarshalOverflow verifies a too-small buffer yields the typed
// overflow error carrying the required size.
func TestMarshalOverflow(t *testing.T) {
	req := &Request{Namespace: "ns", Key: "k", Value: make([]byte, 1024)}

	small := make([]byte, 64)
	_, err := req.MarshalInto(small, MsgTPut)

	var overflow *ErrBufferOverflow
	if !errors.As(err, &overflow) {
		t.Fatalf("Expected ErrBufferOverflow, got %v", err)
	}
	if overflow.Required != req.EncodedSize() {
		t.Errorf("Overflow requires %d, EncodedSize is %d", overflow.Required, req.EncodedSize())
	}

	// retry with the demanded size must succeed
	buf := make([]byte, overflow.Required)
	if _, err := req.MarshalInto(buf, MsgTPut); err != nil {
		t.Fatalf("Marshal failed after regrow: %v", err)
	}
}

// TestBatchRecordsRoundTrip verifies per-key outcomes including failed
// entries survive the codec.
func TestBatchRecordsRoundTrip(t *testing.T) {
	in := []BatchRecord{
		{Index: 0, Key: "a", Code: ResultOK, Record: &Record{Generation: 3, Bins: map[string][]byte{"v": []byte("1")}}},
		{Index: 1, Key: "b", Code: ResultKeyNotFound},
		{Index: 2, Key: "c", Code: ResultOK, Record: &Record{Generation: 1, Bins: map[string][]byte{}}},
	}

	out, err := DecodeBatchRecords(MarshalBatchRecords(in))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(out))
	}
	if out[0].Record == nil || out[0].Record.Generation != 3 || !bytes.Equal(out[0].Record.Bins["v"], []byte("1")) {
		t.Errorf("Successful entry mangled: %+v", out[0])
	}
	if out[1].Code != ResultKeyNotFound || out[1].Record != nil {
		t.Errorf("Failed entry mangled: %+v", out[1])
	}
	if out[2].Index != 2 || out[2].Key != "c" {
		t.Errorf("Entry identity mangled: %+v", out[2])
	}
}

// TestReadFrameSmallBuffer verifies ReadFrame falls back to a temporary
// buffer when the provided one cannot hold the payload.
func TestReadFrameSmallBuffer(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	payload := bytes.Repeat([]byte{0xAB}, 500)
	frame := make([]byte, HeaderSize+len(payload))
	PutHeader(frame, Header{Type: MsgTGet, Result: ResultOK, Length: uint32(len(payload))})
	copy(frame[HeaderSize:], payload)

	go func() {
		server.Write(frame)
	}()

	h, got, err := ReadFrame(client, make([]byte, 16))
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if h.Type != MsgTGet || int(h.Length) != len(payload) {
		t.Errorf("Header mangled: %+v", h)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Payload mangled: %d bytes", len(got))
	}
}

// TestResultToError verifies the code-to-error mapping.
func TestResultToError(t *testing.T) {
	if err := ResultToError(ResultOK); err != nil {
		t.Errorf("ResultOK must map to nil, got %v", err)
	}

	err := ResultToError(ResultKeyNotFound)
	var se *ServerError
	if !errors.As(err, &se) || se.Code != ResultKeyNotFound {
		t.Errorf("Expected typed server error, got %v", err)
	}
}
