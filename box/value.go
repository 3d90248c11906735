package box

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Type is the one-byte tag that prefixes every serialized register value.
type Type byte

const (
	TypeInt       Type = 0x04
	TypeLong      Type = 0x05
	TypeBytes     Type = 0x0e
	TypeLongColl  Type = 0x15
	TypeBytesColl Type = 0x1a
	TypePair      Type = 0x3c
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeLong:
		return "Long"
	case TypeBytes:
		return "Coll[Byte]"
	case TypeLongColl:
		return "Coll[Long]"
	case TypeBytesColl:
		return "Coll[Coll[Byte]]"
	case TypePair:
		return "Pair"
	default:
		return fmt.Sprintf("Type(0x%02x)", byte(t))
	}
}

// Limits on decoded collections. Anything larger is treated as a malformed
// length rather than allocated.
const (
	MaxCollectionLen = 4096
	MaxBytesLen      = 64 * 1024
	maxPairDepth     = 4
)

// Value is a typed register value. The set of implementations is closed.
type Value interface {
	Type() Type
	appendTo(buf []byte) []byte
}

// Int is a 32-bit signed register value.
type Int int32

// Long is a 64-bit signed register value.
type Long int64

// Bytes is a byte collection.
type Bytes []byte

// LongColl is a collection of longs.
type LongColl []int64

// BytesColl is a collection of byte collections.
type BytesColl [][]byte

// Pair is a two-element tuple of register values.
type Pair struct {
	L, R Value
}

func (Int) Type() Type       { return TypeInt }
func (Long) Type() Type      { return TypeLong }
func (Bytes) Type() Type     { return TypeBytes }
func (LongColl) Type() Type  { return TypeLongColl }
func (BytesColl) Type() Type { return TypeBytesColl }
func (Pair) Type() Type      { return TypePair }

func (v Int) appendTo(buf []byte) []byte {
	buf = append(buf, byte(TypeInt))
	return binary.BigEndian.AppendUint32(buf, uint32(v))
}

func (v Long) appendTo(buf []byte) []byte {
	buf = append(buf, byte(TypeLong))
	return binary.BigEndian.AppendUint64(buf, uint64(v))
}

func (v Bytes) appendTo(buf []byte) []byte {
	buf = append(buf, byte(TypeBytes))
	return appendChunk(buf, v)
}

func (v LongColl) appendTo(buf []byte) []byte {
	buf = append(buf, byte(TypeLongColl))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
	for _, n := range v {
		buf = binary.BigEndian.AppendUint64(buf, uint64(n))
	}
	return buf
}

func (v BytesColl) appendTo(buf []byte) []byte {
	buf = append(buf, byte(TypeBytesColl))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
	for _, b := range v {
		buf = appendChunk(buf, b)
	}
	return buf
}

func (v Pair) appendTo(buf []byte) []byte {
	buf = append(buf, byte(TypePair))
	buf = v.L.appendTo(buf)
	return v.R.appendTo(buf)
}

func appendChunk(buf, b []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// Serialize returns the canonical encoding of v. Identical values always
// produce identical bytes.
func Serialize(v Value) []byte {
	return v.appendTo(nil)
}

// Parse decodes a serialized register value. reg names the register for
// error reporting. Every input byte must be consumed.
func Parse(reg string, data []byte) (Value, error) {
	r := &reader{reg: reg, data: data}
	v, err := r.value(0)
	if err != nil {
		return nil, err
	}
	if r.off != len(r.data) {
		return nil, NewDecodeError(CodeMalformedCollectionLength, reg,
			"%d trailing bytes after %s", len(r.data)-r.off, v.Type())
	}
	return v, nil
}

type reader struct {
	reg  string
	data []byte
	off  int
}

func (r *reader) need(n int, what string) ([]byte, error) {
	if n < 0 || len(r.data)-r.off < n {
		return nil, NewDecodeError(CodeMalformedCollectionLength, r.reg,
			"%s needs %d bytes, %d left", what, n, len(r.data)-r.off)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) length(limit int, what string) (int, error) {
	b, err := r.need(4, what+" length")
	if err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(b)
	if n > uint32(limit) {
		return 0, NewDecodeError(CodeMalformedCollectionLength, r.reg,
			"%s length %d exceeds limit %d", what, n, limit)
	}
	return int(n), nil
}

func (r *reader) chunk(what string) ([]byte, error) {
	n, err := r.length(MaxBytesLen, what)
	if err != nil {
		return nil, err
	}
	b, err := r.need(n, what)
	if err != nil || n == 0 {
		return nil, err
	}
	return bytes.Clone(b), nil
}

func (r *reader) value(depth int) (Value, error) {
	tag, err := r.need(1, "type tag")
	if err != nil {
		return nil, err
	}
	switch t := Type(tag[0]); t {
	case TypeInt:
		b, err := r.need(4, "Int")
		if err != nil {
			return nil, err
		}
		return Int(int32(binary.BigEndian.Uint32(b))), nil
	case TypeLong:
		b, err := r.need(8, "Long")
		if err != nil {
			return nil, err
		}
		return Long(int64(binary.BigEndian.Uint64(b))), nil
	case TypeBytes:
		b, err := r.chunk("Coll[Byte]")
		if err != nil {
			return nil, err
		}
		return Bytes(b), nil
	case TypeLongColl:
		n, err := r.length(MaxCollectionLen, "Coll[Long]")
		if err != nil {
			return nil, err
		}
		b, err := r.need(8*n, "Coll[Long]")
		if err != nil || n == 0 {
			return LongColl(nil), err
		}
		out := make(LongColl, n)
		for i := range out {
			out[i] = int64(binary.BigEndian.Uint64(b[8*i:]))
		}
		return out, nil
	case TypeBytesColl:
		n, err := r.length(MaxCollectionLen, "Coll[Coll[Byte]]")
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return BytesColl(nil), nil
		}
		out := make(BytesColl, n)
		for i := range out {
			if out[i], err = r.chunk("Coll[Coll[Byte]] element"); err != nil {
				return nil, err
			}
		}
		return out, nil
	case TypePair:
		if depth >= maxPairDepth {
			return nil, NewDecodeError(CodeMalformedCollectionLength, r.reg, "pair nesting deeper than %d", maxPairDepth)
		}
		l, err := r.value(depth + 1)
		if err != nil {
			return nil, err
		}
		rv, err := r.value(depth + 1)
		if err != nil {
			return nil, err
		}
		return Pair{L: l, R: rv}, nil
	default:
		return nil, NewDecodeError(CodeUnknownType, r.reg, "unknown type tag 0x%02x", byte(t))
	}
}
