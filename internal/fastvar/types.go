// Package fastvar models decoded FastVar feature flags and their wire encoding.
package fastvar

import (
	"fmt"

	"fflagdump/internal/binfmt"
)

// VarType classifies where a flag comes from. Codes are the 32-bit values
// passed to the registration routine in the binary.
type VarType uint32

const (
	VarInvalid          VarType = 0x00
	VarStatic           VarType = 0x01
	VarDynamic          VarType = 0x02
	VarSync             VarType = 0x04
	VarABNewUsers       VarType = 0x05
	VarABNewStudioUsers VarType = 0x10
	VarABAllUsers       VarType = 0x20
	VarLocalLocked      VarType = 0x40
	VarAny              VarType = 0x7F
)

// ParseVarType maps a raw code to a VarType; unknown codes become VarInvalid.
func ParseVarType(code uint32) VarType {
	switch t := VarType(code); t {
	case VarStatic, VarDynamic, VarSync, VarABNewUsers, VarABNewStudioUsers,
		VarABAllUsers, VarLocalLocked, VarAny:
		return t
	default:
		return VarInvalid
	}
}

func (t VarType) String() string {
	switch t {
	case VarInvalid:
		return "Invalid"
	case VarStatic:
		return "Static"
	case VarDynamic:
		return "Dynamic"
	case VarSync:
		return "Sync"
	case VarABNewUsers:
		return "ABNewUsers"
	case VarABNewStudioUsers:
		return "ABNewStudioUsers"
	case VarABAllUsers:
		return "ABAllUsers"
	case VarLocalLocked:
		return "LocalLocked"
	case VarAny:
		return "Any"
	default:
		return fmt.Sprintf("Unknown(0x%x)", uint32(t))
	}
}

func (t VarType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t VarType) Encode(s *binfmt.Stream) error { return s.WriteU32LE(uint32(t)) }

func (t *VarType) Decode(s *binfmt.Stream) error {
	code, err := s.ReadU32LE()
	if err != nil {
		return err
	}
	*t = ParseVarType(code)
	return nil
}

// ValueType governs how a flag's value is interpreted.
type ValueType uint32

const (
	TypeInvalid ValueType = 0x00
	TypeLog     ValueType = 0x01
	TypeString  ValueType = 0x02
	TypeInt     ValueType = 0x03
	TypeFlag    ValueType = 0x04
	TypeUninit  ValueType = 0xFFFFFFFF
)

// ParseValueType maps a raw code to a ValueType; unknown codes become TypeInvalid.
func ParseValueType(code uint32) ValueType {
	switch t := ValueType(code); t {
	case TypeLog, TypeString, TypeInt, TypeFlag, TypeUninit:
		return t
	default:
		return TypeInvalid
	}
}

// ValueTypeFromWord maps the type word used in setting keys ("Flag", "Int",
// "String", "Log") to a ValueType.
func ValueTypeFromWord(word string) ValueType {
	switch word {
	case "Log":
		return TypeLog
	case "String":
		return TypeString
	case "Int":
		return TypeInt
	case "Flag":
		return TypeFlag
	default:
		return TypeInvalid
	}
}

func (t ValueType) String() string {
	switch t {
	case TypeInvalid:
		return "Invalid"
	case TypeLog:
		return "Log"
	case TypeString:
		return "String"
	case TypeInt:
		return "Int"
	case TypeFlag:
		return "Flag"
	case TypeUninit:
		return "Uninit"
	default:
		return fmt.Sprintf("Unknown(0x%x)", uint32(t))
	}
}

// Usable reports whether values of this type carry a payload.
func (t ValueType) Usable() bool {
	switch t {
	case TypeLog, TypeString, TypeInt, TypeFlag:
		return true
	default:
		return false
	}
}

func (t ValueType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t ValueType) Encode(s *binfmt.Stream) error { return s.WriteU32LE(uint32(t)) }

func (t *ValueType) Decode(s *binfmt.Stream) error {
	code, err := s.ReadU32LE()
	if err != nil {
		return err
	}
	*t = ParseValueType(code)
	return nil
}
