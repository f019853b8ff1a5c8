package fastvar

import (
	"fmt"

	"fflagdump/internal/binfmt"
)

// FastVar is one decoded feature flag. ValueType always equals Value.Type().
type FastVar struct {
	Name      string
	VarType   VarType
	ValueType ValueType
	Value     Value
}

// New builds a FastVar whose value type is taken from v.
func New(name string, varType VarType, v Value) FastVar {
	return FastVar{Name: name, VarType: varType, ValueType: v.Type(), Value: v}
}

// FullName returns the settings-key spelling of the flag: "DF" for dynamic
// flags or "F" otherwise, the value type word, then the name.
func (f FastVar) FullName() string {
	if !f.ValueType.Usable() {
		return f.Name
	}
	prefix := "F"
	if f.VarType == VarDynamic {
		prefix = "DF"
	}
	return prefix + f.ValueType.String() + f.Name
}

func (f FastVar) String() string {
	return fmt.Sprintf("%s %s %s = %s", f.VarType, f.ValueType, f.Name, f.Value)
}

// Encode writes name, var type, value type and value.
func (f FastVar) Encode(s *binfmt.Stream) error {
	if err := s.WriteString(f.Name, binfmt.W32, binfmt.LE); err != nil {
		return err
	}
	if err := s.Put(f.VarType); err != nil {
		return err
	}
	if err := s.Put(f.ValueType); err != nil {
		return err
	}
	return s.Put(f.Value)
}

// Decode is the inverse of Encode.
func (f *FastVar) Decode(s *binfmt.Stream) error {
	var out FastVar
	var err error
	if out.Name, err = s.ReadString(binfmt.W32, binfmt.LE); err != nil {
		return err
	}
	if err = s.Get(&out.VarType); err != nil {
		return err
	}
	if err = s.Get(&out.ValueType); err != nil {
		return err
	}
	if err = s.Get(&out.Value); err != nil {
		return err
	}
	// The value's own tag wins if a record disagrees with itself.
	out.ValueType = out.Value.Type()
	*f = out
	return nil
}
