package fastvar

import (
	"strconv"

	"fflagdump/internal/binfmt"
)

// Value is a closed tagged union over the flag payload kinds. The zero Value
// is Invalid.
type Value struct {
	typ ValueType
	str string
	i   int32
	b   bool
}

func InvalidValue() Value { return Value{typ: TypeInvalid} }
func UninitValue() Value { return Value{typ: TypeUninit} }
func LogValue(v string) Value { return Value{typ: TypeLog, str: v} }
func StringValue(v string) Value { return Value{typ: TypeString, str: v} }
func IntValue(v int32) Value { return Value{typ: TypeInt, i: v} }
func FlagValue(v bool) Value { return Value{typ: TypeFlag, b: v} }
func (v Value) Type() ValueType { return v.typ }
func (v Value) Usable() bool { return v.typ.Usable() }
func (v Value) Equal(o Value) bool { return v == o }

func (v Value) AsInt() (int32, bool) { return v.i, v.typ == TypeInt }

func (v Value) AsFlag() (bool, bool) { return v.b, v.typ == TypeFlag }

func (v Value) AsString() (string, bool) { return v.str, v.typ == TypeString }

func (v Value) AsLog() (string, bool) { return v.str, v.typ == TypeLog }

// String renders the payload the way generated constants spell it.
func (v Value) String() string {
	switch v.typ {
	case TypeInt:
		return strconv.FormatInt(int64(v.i), 10)
	case TypeFlag:
		return strconv.FormatBool(v.b)
	case TypeString, TypeLog:
		return v.str
	case TypeUninit:
		return "VALUE NOT IN INITIALIZED MEMORY"
	default:
		return "INVALID VALUE TYPE"
	}
}

// Encode writes the value's type tag followed by its payload.
func (v Value) Encode(s *binfmt.Stream) error {
	if err := v.typ.Encode(s); err != nil {
		return err
	}
	switch v.typ {
	case TypeInt:
		return s.WriteI32LE(v.i)
	case TypeFlag:
		return s.WriteBool(v.b)
	case TypeString, TypeLog:
		return s.WriteString(v.str, binfmt.W32, binfmt.LE)
	default:
		return nil
	}
}

// Decode reads a tag and payload written by Encode. An unrecognized tag
// decodes to Invalid with no payload.
func (v *Value) Decode(s *binfmt.Stream) error {
	var typ ValueType
	if err := typ.Decode(s); err != nil {
		return err
	}
	var out Value
	switch typ {
	case TypeInt:
		i, err := s.ReadI32LE()
		if err != nil {
			return err
		}
		out = IntValue(i)
	case TypeFlag:
		b, err := s.ReadBool()
		if err != nil {
			return err
		}
		out = FlagValue(b)
	case TypeString, TypeLog:
		str, err := s.ReadString(binfmt.W32, binfmt.LE)
		if err != nil {
			return err
		}
		out = Value{typ: typ, str: str}
	case TypeUninit:
		out = UninitValue()
	default:
		out = InvalidValue()
	}
	*v = out
	return nil
}
