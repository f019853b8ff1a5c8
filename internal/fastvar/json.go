package fastvar

import "encoding/json"

type jsonFastVar struct {
	Name      string `json:"name"`
	FullName  string `json:"full_name,omitempty"`
	VarType   string `json:"var_type"`
	ValueType string `json:"value_type"`
	Value     any    `json:"value"`
}

// MarshalJSON renders the value as a native JSON scalar; Invalid and Uninit
// values render as null.
func (f FastVar) MarshalJSON() ([]byte, error) {
	out := jsonFastVar{
		Name:      f.Name,
		VarType:   f.VarType.String(),
		ValueType: f.ValueType.String(),
	}
	if f.Value.Usable() {
		out.FullName = f.FullName()
	}
	switch f.Value.Type() {
	case TypeInt:
		out.Value, _ = f.Value.AsInt()
	case TypeFlag:
		out.Value, _ = f.Value.AsFlag()
	case TypeString, TypeLog:
		out.Value = f.Value.str
	}
	return json.Marshal(out)
}
