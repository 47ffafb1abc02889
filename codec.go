// Copyright (C) 2007-2008 Barry Pederson <bp@barryp.org>
// Copyright (C) 2026 the amqp08 authors.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 2.1 of the License, or (at your option) any later version.

package amqp08

import (
	"encoding/binary"
	"time"
)

// Decimal represents the AMQP decimal field-table type: an unscaled
// 32-bit signed integer value together with a base-10 scale (number of
// digits right of the decimal point).
type Decimal struct {
	Scale uint8
	Value int32
}

// Table is a field table: an ordered-on-the-wire, unordered-in-memory set
// of name/value pairs. Decoded values are one of string, int32, Decimal,
// time.Time, or Table. Encoders additionally accept int and int64 (encoded
// as a signed long, truncated to 32 bits), []byte (as a long string) and
// nested Table/map[string]any values; other integer types are rejected.
type Table map[string]any

// Reader decodes AMQP primitive values from a byte buffer (spec.md §4.1).
//
// Bit reads are packed LSB-first into a single octet; any other Read* call
// resets the bit cursor, so a bit run must be fully consumed before the
// next typed field or the remaining bits of that octet are discarded, per
// the wire grammar (a field table or method arguments never interleave a
// partial bit run with a byte-aligned field).
type Reader struct {
	buf []byte
	pos int

	bitByte  byte
	bitsLeft uint8
}

// NewReader returns a Reader over buf. buf is not copied; it must not be
// mutated while the Reader is in use.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len reports the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

func (r *Reader) resetBits() {
	r.bitsLeft = 0
	r.bitByte = 0
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, newFrameFormatError("truncated: need %d bytes, have %d", n, len(r.buf)-r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadOctet reads an unsigned 8-bit integer.
func (r *Reader) ReadOctet() (byte, error) {
	r.resetBits()
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadShort reads a big-endian unsigned 16-bit integer.
func (r *Reader) ReadShort() (uint16, error) {
	r.resetBits()
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadLong reads a big-endian unsigned 32-bit integer.
func (r *Reader) ReadLong() (uint32, error) {
	r.resetBits()
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadLongLong reads a big-endian unsigned 64-bit integer.
func (r *Reader) ReadLongLong() (uint64, error) {
	r.resetBits()
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadBit reads a single bit, LSB-first out of the current octet. The
// octet is consumed from the stream the first time a bit is requested from
// it; subsequent ReadBit calls shift the same octet until it is exhausted.
func (r *Reader) ReadBit() (bool, error) {
	if r.bitsLeft == 0 {
		b, err := r.take(1)
		if err != nil {
			return false, err
		}
		r.bitByte = b[0]
		r.bitsLeft = 8
	}
	bit := r.bitByte&1 != 0
	r.bitByte >>= 1
	r.bitsLeft--
	return bit, nil
}

// ReadShortStr reads a length-prefixed (1-byte length) UTF-8 string.
func (r *Reader) ReadShortStr() (string, error) {
	r.resetBits()
	n, err := r.take(1)
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n[0]))
	if err != nil {
		return "", wrapFrameFormatError(err, "short string")
	}
	return string(b), nil
}

// ReadLongStr reads a length-prefixed (4-byte length) opaque byte string.
func (r *Reader) ReadLongStr() ([]byte, error) {
	r.resetBits()
	n, err := r.ReadLong()
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, wrapFrameFormatError(err, "long string")
	}
	return b, nil
}

// ReadTimestamp reads a 64-bit unsigned seconds-since-epoch value.
func (r *Reader) ReadTimestamp() (time.Time, error) {
	sec, err := r.ReadLongLong()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(sec), 0).UTC(), nil
}

// ReadTable reads a length-prefixed (4-byte length) field table.
func (r *Reader) ReadTable() (Table, error) {
	r.resetBits()
	n, err := r.ReadLong()
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, wrapFrameFormatError(err, "table")
	}
	sub := NewReader(b)
	t := Table{}
	for sub.Len() > 0 {
		key, err := sub.ReadShortStr()
		if err != nil {
			return nil, err
		}
		tag, err := sub.ReadOctet()
		if err != nil {
			return nil, err
		}
		v, err := sub.readTableValue(tag)
		if err != nil {
			return nil, err
		}
		t[key] = v
	}
	return t, nil
}

func (r *Reader) readTableValue(tag byte) (any, error) {
	switch tag {
	case 'S':
		b, err := r.ReadLongStr()
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case 'I':
		v, err := r.ReadLong()
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	case 'D':
		scale, err := r.ReadOctet()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadLong()
		if err != nil {
			return nil, err
		}
		return Decimal{Scale: scale, Value: int32(v)}, nil
	case 'T':
		return r.ReadTimestamp()
	case 'F':
		return r.ReadTable()
	default:
		return nil, newFrameFormatError("unknown field table type tag %q", tag)
	}
}

// Writer encodes AMQP primitive values into a growable byte buffer
// (spec.md §4.1). The bit writer buffers up to 8 bits and flushes them -
// padded with zero bits - on any non-bit write or an explicit FlushBits.
type Writer struct {
	buf []byte

	bitByte  byte
	bitCount uint8
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoded output. It implicitly flushes any
// buffered bits first.
func (w *Writer) Bytes() []byte {
	w.FlushBits()
	return w.buf
}

// FlushBits emits any buffered bits as a single octet, padding the
// remaining high bits with zero, and resets the bit buffer.
func (w *Writer) FlushBits() {
	if w.bitCount == 0 {
		return
	}
	w.buf = append(w.buf, w.bitByte)
	w.bitByte = 0
	w.bitCount = 0
}

// WriteOctet writes an unsigned 8-bit integer.
func (w *Writer) WriteOctet(v byte) {
	w.FlushBits()
	w.buf = append(w.buf, v)
}

// WriteShort writes a big-endian unsigned 16-bit integer.
func (w *Writer) WriteShort(v uint16) {
	w.FlushBits()
	w.buf = append(w.buf, byte(v>>8), byte(v))
}

// WriteLong writes a big-endian unsigned 32-bit integer.
func (w *Writer) WriteLong(v uint32) {
	w.FlushBits()
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteLongLong writes a big-endian unsigned 64-bit integer.
func (w *Writer) WriteLongLong(v uint64) {
	w.FlushBits()
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteBit buffers a single bit, LSB-first, flushing a full octet to the
// output once 8 bits have accumulated.
func (w *Writer) WriteBit(bit bool) {
	if bit {
		w.bitByte |= 1 << w.bitCount
	}
	w.bitCount++
	if w.bitCount == 8 {
		w.FlushBits()
	}
}

// WriteShortStr writes s as a length-prefixed (1-byte length) string. It
// returns ErrInvalidArgument if s is longer than 255 bytes.
func (w *Writer) WriteShortStr(s string) error {
	w.FlushBits()
	if len(s) > 255 {
		return ErrInvalidArgument
	}
	w.buf = append(w.buf, byte(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// WriteLongStr writes b as a length-prefixed (4-byte length) opaque byte
// string.
func (w *Writer) WriteLongStr(b []byte) {
	w.WriteLong(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteTimestamp writes t as 64-bit unsigned seconds since epoch.
func (w *Writer) WriteTimestamp(t time.Time) {
	w.WriteLongLong(uint64(t.Unix()))
}

// WriteTable writes t as a length-prefixed field table.
func (w *Writer) WriteTable(t Table) error {
	w.FlushBits()
	sub := NewWriter()
	for k, v := range t {
		if err := sub.WriteShortStr(k); err != nil {
			return err
		}
		if err := sub.writeTableValue(v); err != nil {
			return err
		}
	}
	body := sub.Bytes()
	w.WriteLong(uint32(len(body)))
	w.buf = append(w.buf, body...)
	return nil
}

func (w *Writer) writeTableValue(v any) error {
	switch x := v.(type) {
	case string:
		w.WriteOctet('S')
		w.WriteLongStr([]byte(x))
	case []byte:
		w.WriteOctet('S')
		w.WriteLongStr(x)
	case int:
		w.WriteOctet('I')
		w.WriteLong(uint32(int32(x)))
	case int32:
		w.WriteOctet('I')
		w.WriteLong(uint32(x))
	case int64:
		w.WriteOctet('I')
		w.WriteLong(uint32(int32(x)))
	case Decimal:
		w.WriteOctet('D')
		w.WriteOctet(x.Scale)
		w.WriteLong(uint32(x.Value))
	case time.Time:
		w.WriteOctet('T')
		w.WriteTimestamp(x)
	case Table:
		w.WriteOctet('F')
		return w.WriteTable(x)
	case map[string]any:
		w.WriteOctet('F')
		return w.WriteTable(Table(x))
	default:
		return newFrameFormatError("unsupported table value type %T", v)
	}
	return nil
}
