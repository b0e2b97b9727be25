package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// HeaderSize is the fixed size of a frame header in bytes.
const HeaderSize = 8

// Frame flags.
const (
	// FlagLastFrame marks the final frame of a multi-frame (scan) response
	FlagLastFrame byte = 1 << 0
)

// Header is the fixed-size prefix of every frame:
//   - 1 byte:  message type
//   - 1 byte:  result code (responses; zero on requests)
//   - 1 byte:  flags
//   - 1 byte:  reserved
//   - 4 bytes: payload length (uint32, big endian)
type Header struct {
	Type   MessageType
	Result ResultCode
	Flags  byte
	Length uint32
}

// PutHeader writes the header into buf, which must hold at least HeaderSize
// bytes.
func PutHeader(buf []byte, h Header) {
	buf[0] = byte(h.Type)
	buf[1] = byte(h.Result)
	buf[2] = h.Flags
	buf[3] = 0
	binary.BigEndian.PutUint32(buf[4:8], h.Length)
}

// ParseHeader decodes a header from buf.
func ParseHeader(buf []byte) Header {
	return Header{
		Type:   MessageType(buf[0]),
		Result: ResultCode(buf[1]),
		Flags:  buf[2],
		Length: binary.BigEndian.Uint32(buf[4:8]),
	}
}

// ReadFrame reads one frame from the connection using the provided buffer.
// If the buffer is too small for the payload a temporary buffer is
// allocated, so the returned slice is not guaranteed to alias buf.
func ReadFrame(conn net.Conn, buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		buf = make([]byte, HeaderSize)
	}

	if _, err := io.ReadFull(conn, buf[:HeaderSize]); err != nil {
		return Header{}, nil, err
	}
	h := ParseHeader(buf)

	if h.Length == 0 {
		return h, nil, nil
	}

	if len(buf) < int(h.Length) {
		buf = make([]byte, h.Length)
	}
	if _, err := io.ReadFull(conn, buf[:h.Length]); err != nil {
		return Header{}, nil, err
	}
	return h, buf[:h.Length], nil
}

// --------------------------------------------------------------------------
// Buffer Overflow Error
// --------------------------------------------------------------------------

// ErrBufferOverflow is returned by request encoders when the destination
// buffer is smaller than the encoded frame. The executor reacts by growing
// the command's buffer segment and re-encoding, it is not a command
// failure.
type ErrBufferOverflow struct {
	Required int
}

func (e *ErrBufferOverflow) Error() string {
	return fmt.Sprintf("buffer too small: %d bytes required", e.Required)
}

// --------------------------------------------------------------------------
// Request Encoding
// --------------------------------------------------------------------------

// Bit flags indicating which optional request fields are present.
const (
	hasSet   byte = 1 << 0
	hasKey   byte = 1 << 1
	hasValue byte = 1 << 2
	hasTTL   byte = 1 << 3
	hasOps   byte = 1 << 4
	hasKeys  byte = 1 << 5
)

// Request holds the fields of one request payload. Which fields are used
// depends on the message type.
type Request struct {
	Namespace string   // All requests
	Set       string   // All requests
	Key       string   // Single-key requests
	Value     []byte   // Put
	TTL       uint32   // Put
	Ops       []Op     // Operate
	Keys      []string // BatchGet
}

// EncodedSize returns the total frame size (header included) of the
// encoded request.
func (r *Request) EncodedSize() int {
	size := HeaderSize + 1 // header + flags byte
	size += 2 + len(r.Namespace)
	if r.Set != "" {
		size += 2 + len(r.Set)
	}
	if r.Key != "" {
		size += 2 + len(r.Key)
	}
	if r.Value != nil {
		size += 4 + len(r.Value)
	}
	if r.TTL > 0 {
		size += 4
	}
	if len(r.Ops) > 0 {
		size += 2
		for _, op := range r.Ops {
			size += 1 + 1 + len(op.BinName) + 4 + len(op.Value)
		}
	}
	if len(r.Keys) > 0 {
		size += 4
		for _, k := range r.Keys {
			size += 2 + len(k)
		}
	}
	return size
}

// MarshalInto encodes the full frame (header plus payload) into buf and
// returns the number of bytes written. When buf is too small an
// *ErrBufferOverflow carrying the required size is returned.
func (r *Request) MarshalInto(buf []byte, t MessageType) (int, error) {
	total := r.EncodedSize()
	if len(buf) < total {
		return 0, &ErrBufferOverflow{Required: total}
	}

	var flags byte
	pos := HeaderSize + 1 // payload starts after header, flags written last

	pos += putString16(buf, pos, r.Namespace)
	if r.Set != "" {
		flags |= hasSet
		pos += putString16(buf, pos, r.Set)
	}
	if r.Key != "" {
		flags |= hasKey
		pos += putString16(buf, pos, r.Key)
	}
	if r.Value != nil {
		flags |= hasValue
		binary.BigEndian.PutUint32(buf[pos:], uint32(len(r.Value)))
		pos += 4
		pos += copy(buf[pos:], r.Value)
	}
	if r.TTL > 0 {
		flags |= hasTTL
		binary.BigEndian.PutUint32(buf[pos:], r.TTL)
		pos += 4
	}
	if len(r.Ops) > 0 {
		flags |= hasOps
		binary.BigEndian.PutUint16(buf[pos:], uint16(len(r.Ops)))
		pos += 2
		for _, op := range r.Ops {
			buf[pos] = byte(op.Kind)
			pos++
			buf[pos] = byte(len(op.BinName))
			pos++
			pos += copy(buf[pos:], op.BinName)
			binary.BigEndian.PutUint32(buf[pos:], uint32(len(op.Value)))
			pos += 4
			pos += copy(buf[pos:], op.Value)
		}
	}
	if len(r.Keys) > 0 {
		flags |= hasKeys
		binary.BigEndian.PutUint32(buf[pos:], uint32(len(r.Keys)))
		pos += 4
		for _, k := range r.Keys {
			pos += putString16(buf, pos, k)
		}
	}

	PutHeader(buf[:HeaderSize], Header{Type: t, Length: uint32(pos - HeaderSize)})
	buf[HeaderSize] = flags
	return pos, nil
}

// DecodeRequest parses a request payload. Used by the server side of the
// protocol (and by test servers).
func DecodeRequest(payload []byte) (*Request, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("request payload too short")
	}
	flags := payload[0]
	pos := 1
	r := &Request{}

	var err error
	if r.Namespace, pos, err = getString16(payload, pos); err != nil {
		return nil, err
	}
	if flags&hasSet != 0 {
		if r.Set, pos, err = getString16(payload, pos); err != nil {
			return nil, err
		}
	}
	if flags&hasKey != 0 {
		if r.Key, pos, err = getString16(payload, pos); err != nil {
			return nil, err
		}
	}
	if flags&hasValue != 0 {
		if pos+4 > len(payload) {
			return nil, fmt.Errorf("truncated value length")
		}
		n := int(binary.BigEndian.Uint32(payload[pos:]))
		pos += 4
		if pos+n > len(payload) {
			return nil, fmt.Errorf("truncated value")
		}
		r.Value = append([]byte(nil), payload[pos:pos+n]...)
		pos += n
	}
	if flags&hasTTL != 0 {
		if pos+4 > len(payload) {
			return nil, fmt.Errorf("truncated ttl")
		}
		r.TTL = binary.BigEndian.Uint32(payload[pos:])
		pos += 4
	}
	if flags&hasOps != 0 {
		if pos+2 > len(payload) {
			return nil, fmt.Errorf("truncated op count")
		}
		count := int(binary.BigEndian.Uint16(payload[pos:]))
		pos += 2
		r.Ops = make([]Op, 0, count)
		for i := 0; i < count; i++ {
			if pos+2 > len(payload) {
				return nil, fmt.Errorf("truncated op header")
			}
			op := Op{Kind: OpKind(payload[pos])}
			nameLen := int(payload[pos+1])
			pos += 2
			if pos+nameLen+4 > len(payload) {
				return nil, fmt.Errorf("truncated op name")
			}
			op.BinName = string(payload[pos : pos+nameLen])
			pos += nameLen
			valLen := int(binary.BigEndian.Uint32(payload[pos:]))
			pos += 4
			if pos+valLen > len(payload) {
				return nil, fmt.Errorf("truncated op value")
			}
			if valLen > 0 {
				op.Value = append([]byte(nil), payload[pos:pos+valLen]...)
			}
			pos += valLen
			r.Ops = append(r.Ops, op)
		}
	}
	if flags&hasKeys != 0 {
		if pos+4 > len(payload) {
			return nil, fmt.Errorf("truncated key count")
		}
		count := int(binary.BigEndian.Uint32(payload[pos:]))
		pos += 4
		r.Keys = make([]string, 0, count)
		for i := 0; i < count; i++ {
			var k string
			if k, pos, err = getString16(payload, pos); err != nil {
				return nil, err
			}
			r.Keys = append(r.Keys, k)
		}
	}
	return r, nil
}

// --------------------------------------------------------------------------
// Record Encoding
// --------------------------------------------------------------------------

// Marshal encodes the record as a response payload.
func (r *Record) Marshal() []byte {
	size := 4 + 2
	for name, val := range r.Bins {
		size += 1 + len(name) + 4 + len(val)
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:], r.Generation)
	binary.BigEndian.PutUint16(buf[4:], uint16(len(r.Bins)))
	pos := 6
	for name, val := range r.Bins {
		buf[pos] = byte(len(name))
		pos++
		pos += copy(buf[pos:], name)
		binary.BigEndian.PutUint32(buf[pos:], uint32(len(val)))
		pos += 4
		pos += copy(buf[pos:], val)
	}
	return buf
}

// DecodeRecord parses a record from a response payload.
func DecodeRecord(payload []byte) (*Record, error) {
	rec, _, err := decodeRecordAt(payload, 0)
	return rec, err
}

func decodeRecordAt(payload []byte, pos int) (*Record, int, error) {
	if pos+6 > len(payload) {
		return nil, pos, fmt.Errorf("truncated record header")
	}
	rec := &Record{
		Generation: binary.BigEndian.Uint32(payload[pos:]),
		Bins:       make(map[string][]byte),
	}
	count := int(binary.BigEndian.Uint16(payload[pos+4:]))
	pos += 6
	for i := 0; i < count; i++ {
		if pos+1 > len(payload) {
			return nil, pos, fmt.Errorf("truncated bin name length")
		}
		nameLen := int(payload[pos])
		pos++
		if pos+nameLen+4 > len(payload) {
			return nil, pos, fmt.Errorf("truncated bin name")
		}
		name := string(payload[pos : pos+nameLen])
		pos += nameLen
		valLen := int(binary.BigEndian.Uint32(payload[pos:]))
		pos += 4
		if pos+valLen > len(payload) {
			return nil, pos, fmt.Errorf("truncated bin value")
		}
		rec.Bins[name] = append([]byte(nil), payload[pos:pos+valLen]...)
		pos += valLen
	}
	return rec, pos, nil
}

// --------------------------------------------------------------------------
// Batch Response Encoding
// --------------------------------------------------------------------------

// MarshalBatchRecords encodes per-key batch outcomes as a response payload.
func MarshalBatchRecords(records []BatchRecord) []byte {
	size := 4
	for _, br := range records {
		size += 4 + 1 + 2 + len(br.Key)
		if br.Code == ResultOK && br.Record != nil {
			size += len(br.Record.Marshal())
		}
	}
	buf := make([]byte, 0, size)
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(records)))
	buf = append(buf, tmp[:]...)
	for _, br := range records {
		binary.BigEndian.PutUint32(tmp[:], uint32(br.Index))
		buf = append(buf, tmp[:]...)
		buf = append(buf, byte(br.Code))
		binary.BigEndian.PutUint16(tmp[:2], uint16(len(br.Key)))
		buf = append(buf, tmp[:2]...)
		buf = append(buf, br.Key...)
		if br.Code == ResultOK && br.Record != nil {
			buf = append(buf, br.Record.Marshal()...)
		}
	}
	return buf
}

// DecodeBatchRecords parses per-key batch outcomes from a response payload.
func DecodeBatchRecords(payload []byte) ([]BatchRecord, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("truncated batch count")
	}
	count := int(binary.BigEndian.Uint32(payload))
	pos := 4
	records := make([]BatchRecord, 0, count)
	for i := 0; i < count; i++ {
		if pos+5 > len(payload) {
			return nil, fmt.Errorf("truncated batch entry")
		}
		br := BatchRecord{
			Index: int(binary.BigEndian.Uint32(payload[pos:])),
			Code:  ResultCode(payload[pos+4]),
		}
		pos += 5
		var err error
		if br.Key, pos, err = getString16(payload, pos); err != nil {
			return nil, err
		}
		if br.Code == ResultOK {
			if br.Record, pos, err = decodeRecordAt(payload, pos); err != nil {
				return nil, err
			}
		}
		records = append(records, br)
	}
	return records, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// putString16 writes a 2-byte length prefix followed by the string bytes.
func putString16(buf []byte, pos int, s string) int {
	binary.BigEndian.PutUint16(buf[pos:], uint16(len(s)))
	copy(buf[pos+2:], s)
	return 2 + len(s)
}

// getString16 reads a 2-byte length-prefixed string.
func getString16(payload []byte, pos int) (string, int, error) {
	if pos+2 > len(payload) {
		return "", pos, fmt.Errorf("truncated string length")
	}
	n := int(binary.BigEndian.Uint16(payload[pos:]))
	pos += 2
	if pos+n > len(payload) {
		return "", pos, fmt.Errorf("truncated string")
	}
	return string(payload[pos : pos+n]), pos + n, nil
}
