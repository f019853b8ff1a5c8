package settings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fflagdump/internal/errcode"
	"fflagdump/internal/fastvar"
)

func TestSplitWords(t *testing.T) {
	tests := []struct {
		key  string
		want []string
	}{
		{"FFlagFooBar", []string{"F", "Flag", "Foo", "Bar"}},
		{"DFIntBazQux", []string{"D", "F", "Int", "Baz", "Qux"}},
		{"FStringURL", []string{"F", "String", "U", "R", "L"}},
		{"lowercase", []string{"lowercase"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitWords(tt.key), "key %q", tt.key)
	}
}

func TestDecodeEntry(t *testing.T) {
	tests := []struct {
		key, value string
		want       fastvar.FastVar
	}{
		{"FFlagFooBar", "True;comment", fastvar.New("FooBar", fastvar.VarDynamic, fastvar.FlagValue(true))},
		{"FFlagFooBar", "true", fastvar.New("FooBar", fastvar.VarDynamic, fastvar.FlagValue(false))},
		{"DFIntBazQux", "42", fastvar.New("BazQux", fastvar.VarDynamic, fastvar.IntValue(42))},
		{"FIntNeg", "-5;x", fastvar.New("Neg", fastvar.VarDynamic, fastvar.IntValue(-5))},
		{"FIntBazQux", "notanumber", fastvar.New("BazQux", fastvar.VarDynamic, fastvar.UninitValue())},
		{"FIntHuge", "4294967296", fastvar.New("Huge", fastvar.VarDynamic, fastvar.UninitValue())},
		{"FStringUrl", "https://a;b", fastvar.New("Url", fastvar.VarDynamic, fastvar.StringValue("https://a"))},
		{"DFLogNetwork", "7", fastvar.New("Network", fastvar.VarDynamic, fastvar.LogValue("7"))},
		{"FFloatRatio", "0.5", fastvar.New("Ratio", fastvar.VarDynamic, fastvar.InvalidValue())},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, ok := DecodeEntry(tt.key, tt.value)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeEntryIgnored(t *testing.T) {
	for _, key := range []string{"SFlagX", "FooBar", "FFlag", "DFInt", "F", "", "FlagFoo", "dFIntX"} {
		_, ok := DecodeEntry(key, "1")
		assert.False(t, ok, "key %q", key)
	}
}

func TestDecode(t *testing.T) {
	reg := Decode(map[string]string{
		"FFlagFooBar":   "True",
		"DFIntBazQux":   "42",
		"SomethingElse": "ignored",
		"FIntBadNumber": "x",
	})
	require.Len(t, reg, 3)
	assert.Equal(t, fastvar.TypeUninit, reg["BadNumber"].ValueType)
	v, _ := reg["BazQux"].Value.AsInt()
	assert.Equal(t, int32(42), v)
}

func TestParsePayload(t *testing.T) {
	raw, err := ParsePayload(strings.NewReader(`{"applicationSettings":{"FFlagA":"True","DFIntB":"3"}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"FFlagA": "True", "DFIntB": "3"}, raw)

	_, err = ParsePayload(strings.NewReader(`{"other":{}}`))
	assert.Equal(t, errcode.Parse, errcode.Of(err))

	_, err = ParsePayload(strings.NewReader(`{`))
	assert.Equal(t, errcode.Parse, errcode.Of(err))
}

func TestLookupOrder(t *testing.T) {
	flag := fastvar.New("CooldownSec", fastvar.VarDynamic, fastvar.IntValue(1))

	v, ok := Lookup(map[string]string{"DFIntCooldownSec": "10", "CooldownSec": "20"}, flag)
	assert.True(t, ok)
	assert.Equal(t, "10", v)

	v, ok = Lookup(map[string]string{"CooldownSec": "20"}, flag)
	assert.True(t, ok)
	assert.Equal(t, "20", v)

	_, ok = Lookup(map[string]string{"FIntCooldownSec": "30"}, flag)
	assert.False(t, ok, "static spelling does not match a dynamic flag")
}

func TestBind(t *testing.T) {
	reg := fastvar.FromSlice([]fastvar.FastVar{
		fastvar.New("LuaGcStatsEphemeralCooldownSec", fastvar.VarDynamic, fastvar.IntValue(60)),
		fastvar.New("ReportUrl", fastvar.VarStatic, fastvar.StringValue("old")),
		fastvar.New("Late", fastvar.VarStatic, fastvar.UninitValue()),
	})
	raw := map[string]string{
		"DFIntLuaGcStatsEphemeralCooldownSec": "120",
		"ReportUrl":                           "https://new",
		"FIntBroken":                          "x",
	}

	got, err := Bind(raw, reg, map[string]string{
		"LuaGcStatsEphemeralCooldownSec": "LUA_GC_STATS_EPHEMERAL_COOLDOWN_SEC",
		"ReportUrl":                      "REPORT_URL",
	})
	require.NoError(t, err)
	v, _ := got["LUA_GC_STATS_EPHEMERAL_COOLDOWN_SEC"].Value.AsInt()
	assert.Equal(t, int32(120), v)
	s, _ := got["REPORT_URL"].Value.AsString()
	assert.Equal(t, "https://new", s)

	_, err = Bind(raw, reg, map[string]string{"Missing": "M"})
	assert.Equal(t, errcode.NotFound, errcode.Of(err))

	_, err = Bind(raw, reg, map[string]string{"Late": "L"})
	assert.Equal(t, errcode.Unusable, errcode.Of(err))

	badReg := fastvar.Registry{"Broken": fastvar.New("Broken", fastvar.VarStatic, fastvar.IntValue(0))}
	_, err = Bind(raw, badReg, map[string]string{"Broken": "B"})
	assert.Equal(t, errcode.Parse, errcode.Of(err))
}
