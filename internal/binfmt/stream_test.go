package binfmt

import (
	"errors"
	"math"
	"testing"

	"fflagdump/internal/errcode"
)

func TestFixedWidthRoundTrip(t *testing.T) {
	s := NewStream(nil)
	must(t, s.WriteU8(0xab))
	must(t, s.WriteU16LE(0x1234))
	must(t, s.WriteU16BE(0x1234))
	must(t, s.WriteU32LE(0xdeadbeef))
	must(t, s.WriteU32BE(0xdeadbeef))
	must(t, s.WriteU64LE(0x0102030405060708))
	must(t, s.WriteI32LE(-2))
	must(t, s.WriteI64BE(-3))
	must(t, s.WriteF32LE(1.5))
	must(t, s.WriteF64BE(math.Pi))

	want := []byte{0xab, 0x34, 0x12, 0x12, 0x34, 0xef, 0xbe, 0xad, 0xde, 0xde, 0xad, 0xbe, 0xef}
	for i, b := range want {
		if s.Bytes()[i] != b {
			t.Fatalf("byte %d = 0x%02x, want 0x%02x", i, s.Bytes()[i], b)
		}
	}

	if v, _ := s.ReadU8(); v != 0xab {
		t.Errorf("u8 = 0x%x", v)
	}
	if v, _ := s.ReadU16LE(); v != 0x1234 {
		t.Errorf("u16le = 0x%x", v)
	}
	if v, _ := s.ReadU16BE(); v != 0x1234 {
		t.Errorf("u16be = 0x%x", v)
	}
	if v, _ := s.ReadU32LE(); v != 0xdeadbeef {
		t.Errorf("u32le = 0x%x", v)
	}
	if v, _ := s.ReadU32BE(); v != 0xdeadbeef {
		t.Errorf("u32be = 0x%x", v)
	}
	if v, _ := s.ReadU64LE(); v != 0x0102030405060708 {
		t.Errorf("u64le = 0x%x", v)
	}
	if v, _ := s.ReadI32LE(); v != -2 {
		t.Errorf("i32le = %d", v)
	}
	if v, _ := s.ReadI64BE(); v != -3 {
		t.Errorf("i64be = %d", v)
	}
	if v, _ := s.ReadF32LE(); v != 1.5 {
		t.Errorf("f32le = %v", v)
	}
	if v, _ := s.ReadF64BE(); v != math.Pi {
		t.Errorf("f64be = %v", v)
	}
	if s.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", s.Remaining())
	}
}

func TestReadPastEnd(t *testing.T) {
	s := NewStream([]byte{1, 2, 3})
	_, err := s.ReadU32LE()
	if !errors.Is(err, ErrOutOfBounds) && !errcode.Has(err, errcode.OutOfBounds) {
		t.Fatalf("expected out of bounds, got %v", err)
	}
	if s.Pos() != 0 {
		t.Errorf("cursor moved on failed read: %d", s.Pos())
	}
	if err := s.Skip(4); err == nil {
		t.Error("skip past end should fail")
	}
	if _, err := s.ReadBytes(-1); err == nil {
		t.Error("negative read should fail")
	}
}

func TestReadBool(t *testing.T) {
	s := NewStream([]byte{0x01, 0x00, 0x02})
	for i, want := range []bool{true, false, false} {
		got, err := s.ReadBool()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("bool %d = %v, want %v", i, got, want)
		}
	}

	w := NewStream(nil)
	must(t, w.WriteBool(true))
	must(t, w.WriteBool(false))
	if w.Bytes()[0] != 0x01 || w.Bytes()[1] != 0x00 {
		t.Errorf("bool bytes = %v", w.Bytes())
	}
}

func TestVarUint(t *testing.T) {
	tests := []struct {
		in   []byte
		want uint64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xac, 0x02}, 300},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xffffffff},
	}
	for _, tt := range tests {
		s := NewStream(tt.in)
		got, err := s.ReadVarUint64()
		if err != nil {
			t.Errorf("ReadVarUint64(%v): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadVarUint64(%v) = %d, want %d", tt.in, got, tt.want)
		}

		w := NewStream(nil)
		must(t, w.WriteVarUint64(tt.want))
		if string(w.Bytes()) != string(tt.in) {
			t.Errorf("WriteVarUint64(%d) = %v, want %v", tt.want, w.Bytes(), tt.in)
		}
	}
}

func TestVarUintUnterminated(t *testing.T) {
	s := NewStream([]byte{0x80, 0x80})
	if _, err := s.ReadVarUint64(); err == nil {
		t.Fatal("expected error for unterminated varint")
	}
	if s.Pos() != 0 {
		t.Errorf("cursor = %d after failed varint", s.Pos())
	}
}

func TestVarIntZigZag(t *testing.T) {
	tests := []struct {
		in   byte
		want int64
	}{
		{0, 0},
		{1, -1},
		{2, 1},
		{3, -2},
		{4, 2},
	}
	for _, tt := range tests {
		got, err := NewStream([]byte{tt.in}).ReadVarInt64()
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("zigzag(%d) = %d, want %d", tt.in, got, tt.want)
		}
		got32, err := NewStream([]byte{tt.in}).ReadVarInt32()
		if err != nil {
			t.Fatal(err)
		}
		if int64(got32) != tt.want {
			t.Errorf("zigzag32(%d) = %d, want %d", tt.in, got32, tt.want)
		}
	}

	for _, v := range []int64{0, -1, 1, math.MinInt64, math.MaxInt64, -123456789} {
		s := NewStream(nil)
		must(t, s.WriteVarInt64(v))
		got, err := s.ReadVarInt64()
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Errorf("varint64 round trip %d -> %d", v, got)
		}
	}
	for _, v := range []int32{0, -1, 1, math.MinInt32, math.MaxInt32} {
		s := NewStream(nil)
		must(t, s.WriteVarInt32(v))
		got, err := s.ReadVarInt32()
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Errorf("varint32 round trip %d -> %d", v, got)
		}
	}
}

func TestPrefixedStrings(t *testing.T) {
	for _, w := range []Width{W8, W16, W32, W64} {
		for _, o := range []Order{LE, BE} {
			s := NewStream(nil)
			must(t, s.WriteString("héllo", w, o))
			if s.Len() != int(w)/8+len("héllo") {
				t.Errorf("w=%d len = %d", w, s.Len())
			}
			got, err := s.ReadString(w, o)
			if err != nil {
				t.Fatalf("w=%d: %v", w, err)
			}
			if got != "héllo" {
				t.Errorf("w=%d got %q", w, got)
			}
		}
	}
}

func TestStringPrefixOverflow(t *testing.T) {
	s := NewStream(nil)
	long := make([]byte, 256)
	err := s.WriteString(string(long), W8, LE)
	if !errcode.Has(err, errcode.Overflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("partial write of %d bytes", s.Len())
	}
}

func TestReadStringTruncated(t *testing.T) {
	s := NewStream([]byte{5, 'a', 'b'})
	if _, err := s.ReadString(W8, LE); err == nil {
		t.Fatal("expected error")
	}
	if s.Pos() != 0 {
		t.Errorf("cursor = %d, want 0", s.Pos())
	}
}

func TestReadStringInvalidUTF8(t *testing.T) {
	s := NewStream([]byte{2, 0xff, 0xfe})
	_, err := s.ReadString(W8, LE)
	if !errcode.Has(err, errcode.Encoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
}

func TestVarString(t *testing.T) {
	s := NewStream(nil)
	must(t, s.WriteVarString("network"))
	got, err := s.ReadVarString64()
	if err != nil {
		t.Fatal(err)
	}
	if got != "network" {
		t.Errorf("got %q", got)
	}

	s = NewStream([]byte{0x05, 'a'})
	if _, err := s.ReadVarString32(); err == nil {
		t.Error("expected error for short body")
	}
	if s.Pos() != 0 {
		t.Errorf("cursor = %d, want 0", s.Pos())
	}
}

func TestReadCString(t *testing.T) {
	s := NewStream([]byte{'F', 'o', 'o', 0, 0xe9, 0})
	got, err := s.ReadCString()
	if err != nil {
		t.Fatal(err)
	}
	if got != "Foo" {
		t.Errorf("got %q", got)
	}
	got, err = s.ReadCString()
	if err != nil {
		t.Fatal(err)
	}
	if got != "é" {
		t.Errorf("latin-1 byte decoded as %q", got)
	}

	_, err = NewStream([]byte{'x', 'y'}).ReadCString()
	if !errcode.Has(err, errcode.OutOfBounds) {
		t.Errorf("expected out of bounds for unterminated string, got %v", err)
	}
}

func TestRestDoesNotConsume(t *testing.T) {
	s := NewStream([]byte{1, 2, 3, 4})
	must(t, s.Skip(1))
	if got := s.Rest(); len(got) != 3 || got[0] != 2 {
		t.Fatalf("rest = %v", got)
	}
	if s.Pos() != 1 {
		t.Errorf("rest moved cursor to %d", s.Pos())
	}
}

func TestNewStreamAtClamps(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5}
	s := NewStreamAt(data, 4, 10)
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if b, _ := s.ReadByte(); b != 4 {
		t.Errorf("first byte = %d", b)
	}
	if NewStreamAt(data, 9, 2).Len() != 0 {
		t.Error("offset past end should give empty stream")
	}
}

func TestDiags(t *testing.T) {
	var d Diags
	d.Add(0x10, DiagUninit, "slot past .data")
	d.Addf(0x20, DiagTruncated, "window %d", 12)
	if d.Len() != 2 {
		t.Fatalf("len = %d", d.Len())
	}
	if got := d.Items()[1].String(); got != "[truncated] 0x20: window 12" {
		t.Errorf("String() = %q", got)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
