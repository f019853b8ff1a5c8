package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fflagdump/internal/errcode"
	"fflagdump/internal/pex"
	"fflagdump/internal/pex/pextest"
)

func TestParse(t *testing.T) {
	p, err := Parse("48 8d 0D ?? ? e9")
	require.NoError(t, err)
	assert.Equal(t, 6, p.Len())
	assert.Equal(t, "48 8D 0D ?? ?? E9", p.String())
	assert.True(t, p.Match(0x48, 0))
	assert.False(t, p.Match(0x49, 0))
	assert.True(t, p.Match(0x00, 3))
}

func TestParseErrors(t *testing.T) {
	for _, sig := range []string{"", "   ", "4", "GG", "123", "48 ?x", "-1"} {
		_, err := Parse(sig)
		require.Error(t, err, "sig %q", sig)
		assert.Equal(t, errcode.Pattern, errcode.Of(err), "sig %q", sig)
	}
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("zz") })
}

func TestScanBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		sig  string
		want []int
	}{
		{"literal", []byte{0xAA, 0xBB, 0xCC, 0xAA, 0xBB}, "AA BB", []int{0, 3}},
		{"overlap", []byte{0x00, 0x00, 0x00}, "00 00", []int{0, 1}},
		{"wildcard", []byte{0x41, 0x01, 0x42, 0x41, 0x02, 0x42}, "41 ?? 42", []int{0, 3}},
		{"all wildcard", []byte{1, 2, 3, 4}, "?? ??", []int{0, 1, 2}},
		{"window past end", []byte{0x41, 0xB8}, "41 B8 ??", nil},
		{"no match", []byte{1, 2, 3}, "04", nil},
		{"empty data", nil, "??", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScanBytes(tt.data, MustParse(tt.sig))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanSections(t *testing.T) {
	raw := pextest.Build(
		pextest.Section{Name: ".text", VA: 0x1000, Data: []byte{0x90, 0xE9, 0x00, 0xE9}},
		pextest.Section{Name: ".data", VA: 0x2000, Data: []byte{0xE9}},
	)
	img, err := pex.Load(raw)
	require.NoError(t, err)

	p := MustParse("E9")

	got, err := Scan(img, p, ".text")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, got)

	_, err = Scan(img, p, ".rdata")
	assert.Equal(t, errcode.SectionNotFound, errcode.Of(err))

	text, _ := img.Section(".text")
	data, _ := img.Section(".data")
	all := ScanAll(img, p)
	assert.Equal(t, []int{
		int(text.RawOffset) + 1,
		int(text.RawOffset) + 3,
		int(data.RawOffset),
	}, all)
}
