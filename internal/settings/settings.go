// Package settings decodes the dynamic application settings payload, whose
// keys encode a flag's kind and value type in their spelling
// (FFlagFooBar, DFIntBazQux, FStringUrl, FLogNetwork).
package settings

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"fflagdump/internal/errcode"
	"fflagdump/internal/fastvar"
)

// Payload is the JSON document served by the settings endpoint.
type Payload struct {
	ApplicationSettings map[string]string `json:"applicationSettings"`
}

// ParsePayload reads a settings document and returns its key/value map.
func ParsePayload(r io.Reader) (map[string]string, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, errcode.Wrap(err, errcode.Parse, "decode settings payload")
	}
	if p.ApplicationSettings == nil {
		return nil, errcode.New(errcode.Parse, "settings payload has no applicationSettings")
	}
	return p.ApplicationSettings, nil
}

// SplitWords splits key before every uppercase letter after the first
// character: "DFIntBazQux" -> D, F, Int, Baz, Qux.
func SplitWords(key string) []string {
	var words []string
	start := 0
	for i, r := range key {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, key[start:i])
			start = i
		}
	}
	if start < len(key) {
		words = append(words, key[start:])
	}
	return words
}

// DecodeEntry decodes one setting. ok is false when the key does not name a
// flag: it must start with the word F or D and leave a non-empty name after
// the value type word.
func DecodeEntry(key, value string) (fastvar.FastVar, bool) {
	words := SplitWords(key)
	if len(words) == 0 {
		return fastvar.FastVar{}, false
	}

	var typeIdx int
	switch words[0] {
	case "F":
		typeIdx = 1
	case "D":
		typeIdx = 2
	default:
		return fastvar.FastVar{}, false
	}
	if len(words) <= typeIdx+1 {
		return fastvar.FastVar{}, false
	}

	name := strings.Join(words[typeIdx+1:], "")
	typ := fastvar.ValueTypeFromWord(words[typeIdx])
	return fastvar.New(name, fastvar.VarDynamic, parseLoose(typ, value)), true
}

// Decode turns a settings map into a registry. Keys are visited in sorted
// order, so when two keys name the same flag the later key wins.
func Decode(raw map[string]string) fastvar.Registry {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	reg := make(fastvar.Registry, len(raw))
	for _, k := range keys {
		if f, ok := DecodeEntry(k, raw[k]); ok {
			reg[f.Name] = f
		}
	}
	return reg
}

// Lookup returns the raw setting for flag, trying its full settings key
// first and then its bare name.
func Lookup(raw map[string]string, flag fastvar.FastVar) (string, bool) {
	if v, ok := raw[flag.FullName()]; ok {
		return v, true
	}
	v, ok := raw[flag.Name]
	return v, ok
}

// Typed reads the setting for flag and parses it as flag's value type. A
// missing setting is NOT_FOUND and unparsable text is PARSE.
func Typed(raw map[string]string, flag fastvar.FastVar) (fastvar.FastVar, error) {
	if !flag.ValueType.Usable() {
		return fastvar.FastVar{}, errcode.New(errcode.Unusable, "flag has no usable value type").
			WithContext("flag", flag.Name).
			WithContext("value_type", flag.ValueType.String())
	}
	text, ok := Lookup(raw, flag)
	if !ok {
		return fastvar.FastVar{}, errcode.New(errcode.NotFound, "flag not in settings").
			WithContext("flag", flag.Name).
			WithContext("key", flag.FullName())
	}
	v, err := parseStrict(flag.ValueType, text)
	if err != nil {
		return fastvar.FastVar{}, errcode.Wrap(err, errcode.Parse, "setting does not match flag type").
			WithContext("flag", flag.Name).
			WithContext("value_type", flag.ValueType.String()).
			WithContext("text", text)
	}
	return fastvar.New(flag.Name, fastvar.VarDynamic, v), nil
}

// Bind resolves a mapping of flag names to output identifiers against the
// binary registry reg, reading each value from raw. Any missing or
// mistyped flag fails the whole bind.
func Bind(raw map[string]string, reg fastvar.Registry, want map[string]string) (map[string]fastvar.FastVar, error) {
	names := make([]string, 0, len(want))
	for name := range want {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]fastvar.FastVar, len(want))
	for _, name := range names {
		flag, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		v, err := Typed(raw, flag)
		if err != nil {
			return nil, err
		}
		out[want[name]] = v
	}
	return out, nil
}

// parseLoose interprets text as typ. Int text that does not parse becomes
// Uninit rather than an error.
func parseLoose(typ fastvar.ValueType, text string) fastvar.Value {
	v, err := parseStrict(typ, text)
	if err != nil {
		return fastvar.UninitValue()
	}
	return v
}

func parseStrict(typ fastvar.ValueType, text string) (fastvar.Value, error) {
	if i := strings.IndexByte(text, ';'); i >= 0 {
		text = text[:i]
	}
	switch typ {
	case fastvar.TypeString:
		return fastvar.StringValue(text), nil
	case fastvar.TypeFlag:
		return fastvar.FlagValue(text == "True"), nil
	case fastvar.TypeLog:
		return fastvar.LogValue(text), nil
	case fastvar.TypeInt:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return fastvar.Value{}, err
		}
		return fastvar.IntValue(int32(n)), nil
	default:
		return fastvar.InvalidValue(), nil
	}
}
