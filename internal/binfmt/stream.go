// Package binfmt implements the cursor-based byte stream used by the flag cache
// format and by the in-binary record decoders.
package binfmt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
	"golang.org/x/text/encoding/charmap"

	"fflagdump/internal/errcode"
)

var (
	ErrOutOfBounds = errors.New("stream: read past end of data")
	ErrEncoding    = errors.New("stream: invalid utf-8")
	ErrOverflow    = errors.New("stream: value too large for prefix")
)

// Order selects the byte order of a fixed-width field.
type Order int

const (
	LE Order = iota
	BE
)

func (o Order) byteOrder() binary.ByteOrder {
	if o == BE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Width is the size in bits of a string length prefix.
type Width int

const (
	W8  Width = 8
	W16 Width = 16
	W32 Width = 32
	W64 Width = 64
)

// Stream is a growable byte buffer with a read cursor. Reads consume from the
// cursor; writes always append at the end.
type Stream struct {
	data []byte
	pos  int
}

// NewStream creates a stream over a copy-free view of data.
func NewStream(data []byte) *Stream {
	return &Stream{data: data}
}

// NewStreamAt creates a stream over data[off:off+n], clamped to data.
func NewStreamAt(data []byte, off, n int) *Stream {
	if off > len(data) {
		off = len(data)
	}
	end := off + n
	if end > len(data) || end < off {
		end = len(data)
	}
	return &Stream{data: data[off:end:end]}
}

// Bytes returns the whole underlying buffer.
func (s *Stream) Bytes() []byte { return s.data }

// Len returns the total buffer length.
func (s *Stream) Len() int { return len(s.data) }

// Pos returns the read cursor.
func (s *Stream) Pos() int { return s.pos }

// SetPos moves the read cursor, clamped to the buffer.
func (s *Stream) SetPos(pos int) {
	switch {
	case pos < 0:
		pos = 0
	case pos > len(s.data):
		pos = len(s.data)
	}
	s.pos = pos
}

// Remaining returns the number of unread bytes.
func (s *Stream) Remaining() int { return len(s.data) - s.pos }

// Rest returns the unread bytes without consuming them.
func (s *Stream) Rest() []byte { return s.data[s.pos:] }

func (s *Stream) oob(n int) error {
	return errcode.Wrap(ErrOutOfBounds, errcode.OutOfBounds, "stream read out of bounds").
		WithContext("pos", s.pos).
		WithContext("want", n).
		WithContext("len", len(s.data))
}

// take returns the next n bytes and advances the cursor.
func (s *Stream) take(n int) ([]byte, error) {
	if n < 0 || n > len(s.data)-s.pos {
		return nil, s.oob(n)
	}
	b := s.data[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes.
func (s *Stream) Skip(n int) error {
	_, err := s.take(n)
	return err
}

// ReadByte reads a single byte.
func (s *Stream) ReadByte() (byte, error) {
	b, err := s.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBytes reads n bytes into a new slice.
func (s *Stream) ReadBytes(n int) ([]byte, error) {
	b, err := s.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadBool reads one byte; only 0x01 is true.
func (s *Stream) ReadBool() (bool, error) {
	b, err := s.ReadByte()
	return b == 0x01, err
}

func (s *Stream) ReadU8() (uint8, error) { return s.ReadByte() }

func (s *Stream) ReadI8() (int8, error) {
	b, err := s.ReadByte()
	return int8(b), err
}

func (s *Stream) readU16(o Order) (uint16, error) {
	b, err := s.take(2)
	if err != nil {
		return 0, err
	}
	return o.byteOrder().Uint16(b), nil
}

func (s *Stream) readU32(o Order) (uint32, error) {
	b, err := s.take(4)
	if err != nil {
		return 0, err
	}
	return o.byteOrder().Uint32(b), nil
}

func (s *Stream) readU64(o Order) (uint64, error) {
	b, err := s.take(8)
	if err != nil {
		return 0, err
	}
	return o.byteOrder().Uint64(b), nil
}

func (s *Stream) ReadU16LE() (uint16, error) { return s.readU16(LE) }
func (s *Stream) ReadU16BE() (uint16, error) { return s.readU16(BE) }
func (s *Stream) ReadU32LE() (uint32, error) { return s.readU32(LE) }
func (s *Stream) ReadU32BE() (uint32, error) { return s.readU32(BE) }
func (s *Stream) ReadU64LE() (uint64, error) { return s.readU64(LE) }
func (s *Stream) ReadU64BE() (uint64, error) { return s.readU64(BE) }

func (s *Stream) ReadI16LE() (int16, error) { v, err := s.readU16(LE); return int16(v), err }
func (s *Stream) ReadI16BE() (int16, error) { v, err := s.readU16(BE); return int16(v), err }
func (s *Stream) ReadI32LE() (int32, error) { v, err := s.readU32(LE); return int32(v), err }
func (s *Stream) ReadI32BE() (int32, error) { v, err := s.readU32(BE); return int32(v), err }
func (s *Stream) ReadI64LE() (int64, error) { v, err := s.readU64(LE); return int64(v), err }
func (s *Stream) ReadI64BE() (int64, error) { v, err := s.readU64(BE); return int64(v), err }

func (s *Stream) ReadF32LE() (float32, error) {
	v, err := s.readU32(LE)
	return math.Float32frombits(v), err
}

func (s *Stream) ReadF32BE() (float32, error) {
	v, err := s.readU32(BE)
	return math.Float32frombits(v), err
}

func (s *Stream) ReadF64LE() (float64, error) {
	v, err := s.readU64(LE)
	return math.Float64frombits(v), err
}

func (s *Stream) ReadF64BE() (float64, error) {
	v, err := s.readU64(BE)
	return math.Float64frombits(v), err
}

// ReadVarUint64 reads a little-endian base-128 varint (7 data bits per byte,
// continuation bit 0x80).
func (s *Stream) ReadVarUint64() (uint64, error) {
	start := s.pos
	var v uint64
	var shift uint
	for {
		b, err := s.ReadByte()
		if err != nil {
			s.pos = start
			return 0, err
		}
		if shift < 64 {
			v |= uint64(b&0x7f) << shift
		}
		shift += 7
		if b&0x80 == 0 {
			return v, nil
		}
	}
}

// ReadVarUint32 reads a varint truncated to 32 bits.
func (s *Stream) ReadVarUint32() (uint32, error) {
	v, err := s.ReadVarUint64()
	return uint32(v), err
}

// ReadVarInt64 reads a zig-zag encoded signed varint.
func (s *Stream) ReadVarInt64() (int64, error) {
	n, err := s.ReadVarUint64()
	if err != nil {
		return 0, err
	}
	return -int64(n&1) ^ int64(n>>1), nil
}

// ReadVarInt32 reads a zig-zag encoded signed varint truncated to 32 bits.
func (s *Stream) ReadVarInt32() (int32, error) {
	n, err := s.ReadVarUint32()
	if err != nil {
		return 0, err
	}
	return -int32(n&1) ^ int32(n>>1), nil
}

func (s *Stream) readLen(w Width, o Order) (int, error) {
	switch w {
	case W8:
		b, err := s.ReadByte()
		return int(b), err
	case W16:
		v, err := s.readU16(o)
		return int(v), err
	case W32:
		v, err := s.readU32(o)
		return int(v), err
	case W64:
		v, err := s.readU64(o)
		if v > math.MaxInt32 {
			return 0, s.oob(math.MaxInt32)
		}
		return int(v), err
	default:
		return 0, fmt.Errorf("stream: unsupported prefix width %d", w)
	}
}

// ReadString reads a string whose byte length precedes it as a w-bit integer.
// The cursor is restored if the body cannot be read.
func (s *Stream) ReadString(w Width, o Order) (string, error) {
	start := s.pos
	n, err := s.readLen(w, o)
	if err != nil {
		s.pos = start
		return "", err
	}
	str, err := s.ReadSizedString(n)
	if err != nil {
		s.pos = start
	}
	return str, err
}

// ReadSizedString reads n bytes as UTF-8.
func (s *Stream) ReadSizedString(n int) (string, error) {
	start := s.pos
	b, err := s.take(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		s.pos = start
		return "", errcode.Wrap(ErrEncoding, errcode.Encoding, "string is not valid utf-8").
			WithContext("pos", start).
			WithContext("len", n)
	}
	return string(b), nil
}

// ReadVarString64 reads a string prefixed by an unsigned varint length.
func (s *Stream) ReadVarString64() (string, error) {
	start := s.pos
	n, err := s.ReadVarUint64()
	if err != nil {
		return "", err
	}
	if n > uint64(s.Remaining()) {
		s.pos = start
		return "", s.oob(int(min(n, math.MaxInt32)))
	}
	str, err := s.ReadSizedString(int(n))
	if err != nil {
		s.pos = start
	}
	return str, err
}

// ReadVarString32 is ReadVarString64 with a 32-bit length.
func (s *Stream) ReadVarString32() (string, error) {
	start := s.pos
	n, err := s.ReadVarUint32()
	if err != nil {
		return "", err
	}
	str, err := s.ReadSizedString(int(n))
	if err != nil {
		s.pos = start
	}
	return str, err
}

// ReadCString reads a NUL-terminated string. Each byte maps to one rune
// (ISO-8859-1), so arbitrary bytes never fail to decode.
func (s *Stream) ReadCString() (string, error) {
	start := s.pos
	for i := s.pos; i < len(s.data); i++ {
		if s.data[i] == 0 {
			raw := s.data[start:i]
			s.pos = i + 1
			out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
			if err != nil {
				return "", errcode.Wrap(err, errcode.Encoding, "decode c string").WithContext("pos", start)
			}
			return string(out), nil
		}
	}
	return "", errcode.Wrap(ErrOutOfBounds, errcode.OutOfBounds, "unterminated string").
		WithContext("pos", start).
		WithContext("len", len(s.data))
}

// Write appends p; it never fails. Stream implements io.Writer so that the
// fixed-width writers can target it directly.
func (s *Stream) Write(p []byte) (int, error) {
	s.data = append(s.data, p...)
	return len(p), nil
}

func (s *Stream) w() *kaitai.Writer { return kaitai.NewWriter(s) }

func (s *Stream) WriteByte(b byte) error { return s.w().WriteU1(b) }

func (s *Stream) WriteBytes(b []byte) error { return s.w().WriteBytes(b) }

// WriteBool writes 0x01 or 0x00.
func (s *Stream) WriteBool(v bool) error {
	if v {
		return s.WriteByte(0x01)
	}
	return s.WriteByte(0x00)
}

func (s *Stream) WriteU8(v uint8) error     { return s.w().WriteU1(v) }
func (s *Stream) WriteI8(v int8) error      { return s.w().WriteS1(v) }
func (s *Stream) WriteU16LE(v uint16) error { return s.w().WriteU2le(v) }
func (s *Stream) WriteU16BE(v uint16) error { return s.w().WriteU2be(v) }
func (s *Stream) WriteU32LE(v uint32) error { return s.w().WriteU4le(v) }
func (s *Stream) WriteU32BE(v uint32) error { return s.w().WriteU4be(v) }
func (s *Stream) WriteU64LE(v uint64) error { return s.w().WriteU8le(v) }
func (s *Stream) WriteU64BE(v uint64) error { return s.w().WriteU8be(v) }
func (s *Stream) WriteI16LE(v int16) error  { return s.w().WriteS2le(v) }
func (s *Stream) WriteI16BE(v int16) error  { return s.w().WriteS2be(v) }
func (s *Stream) WriteI32LE(v int32) error  { return s.w().WriteS4le(v) }
func (s *Stream) WriteI32BE(v int32) error  { return s.w().WriteS4be(v) }
func (s *Stream) WriteI64LE(v int64) error  { return s.w().WriteS8le(v) }
func (s *Stream) WriteI64BE(v int64) error  { return s.w().WriteS8be(v) }

func (s *Stream) WriteF32LE(v float32) error { return s.w().WriteF4le(v) }
func (s *Stream) WriteF32BE(v float32) error { return s.w().WriteF4be(v) }
func (s *Stream) WriteF64LE(v float64) error { return s.w().WriteF8le(v) }
func (s *Stream) WriteF64BE(v float64) error { return s.w().WriteF8be(v) }

// WriteVarUint64 appends v as a base-128 varint.
func (s *Stream) WriteVarUint64(v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return s.WriteBytes(buf[:n])
}

func (s *Stream) WriteVarUint32(v uint32) error { return s.WriteVarUint64(uint64(v)) }

// WriteVarInt64 appends v zig-zag encoded.
func (s *Stream) WriteVarInt64(v int64) error {
	return s.WriteVarUint64(uint64(v<<1) ^ uint64(v>>63))
}

// WriteVarInt32 appends v zig-zag encoded.
func (s *Stream) WriteVarInt32(v int32) error {
	return s.WriteVarUint32(uint32(v<<1) ^ uint32(v>>31))
}

// WriteString appends str preceded by its byte length as a w-bit integer.
func (s *Stream) WriteString(str string, w Width, o Order) error {
	n := uint64(len(str))
	if w < W64 && n > (uint64(1)<<uint(w))-1 {
		return errcode.Wrap(ErrOverflow, errcode.Overflow, "string too long for length prefix").
			WithContext("len", n).
			WithContext("prefix_bits", int(w))
	}
	var err error
	switch w {
	case W8:
		err = s.WriteU8(uint8(n))
	case W16:
		err = s.writeU16(uint16(n), o)
	case W32:
		err = s.writeU32(uint32(n), o)
	case W64:
		err = s.writeU64(n, o)
	default:
		return fmt.Errorf("stream: unsupported prefix width %d", w)
	}
	if err != nil {
		return err
	}
	return s.WriteBytes([]byte(str))
}

// WriteVarString appends str preceded by a varint length.
func (s *Stream) WriteVarString(str string) error {
	if err := s.WriteVarUint64(uint64(len(str))); err != nil {
		return err
	}
	return s.WriteBytes([]byte(str))
}

func (s *Stream) writeU16(v uint16, o Order) error {
	if o == BE {
		return s.WriteU16BE(v)
	}
	return s.WriteU16LE(v)
}

func (s *Stream) writeU32(v uint32, o Order) error {
	if o == BE {
		return s.WriteU32BE(v)
	}
	return s.WriteU32LE(v)
}

func (s *Stream) writeU64(v uint64, o Order) error {
	if o == BE {
		return s.WriteU64BE(v)
	}
	return s.WriteU64LE(v)
}
