package pex

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fflagdump/internal/errcode"
	"fflagdump/internal/pex/pextest"
)

func sampleImage() []byte {
	return pextest.Build(
		pextest.Section{Name: ".text", VA: 0x1000, Data: bytes.Repeat([]byte{0xCC}, 0x40)},
		pextest.Section{Name: ".rdata", VA: 0x2000, Data: []byte("hello\x00world\x00")},
		pextest.Section{Name: ".data", VA: 0x3000, Data: []byte{1, 2, 3, 4}},
	)
}

func TestLoad(t *testing.T) {
	img, err := Load(sampleImage())
	require.NoError(t, err)

	assert.Equal(t, uint16(pextest.MachineAMD64), img.Machine)
	assert.Equal(t, uint64(pextest.ImageBase), img.ImageBase)
	require.Len(t, img.Sections(), 3)

	names := make([]string, 0, 3)
	for _, s := range img.Sections() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{".text", ".rdata", ".data"}, names)

	rdata, err := img.Section(".rdata")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x2000), rdata.VirtualAddress)
	assert.Equal(t, []byte("hello\x00world\x00"), rdata.Data)
	assert.Zero(t, rdata.RawOffset%pextest.FileAlignment)
}

func TestRequired(t *testing.T) {
	img, err := Load(sampleImage())
	require.NoError(t, err)

	text, rdata, data, err := img.Required()
	require.NoError(t, err)
	assert.Equal(t, ".text", text.Name)
	assert.Equal(t, ".rdata", rdata.Name)
	assert.Equal(t, ".data", data.Name)
}

func TestSectionNotFound(t *testing.T) {
	raw := pextest.Build(
		pextest.Section{Name: ".text", VA: 0x1000, Data: []byte{0x90}},
		pextest.Section{Name: ".rdata", VA: 0x2000, Data: []byte{0}},
	)
	img, err := Load(raw)
	require.NoError(t, err)

	_, _, _, err = img.Required()
	require.Error(t, err)
	assert.Equal(t, errcode.SectionNotFound, errcode.Of(err))

	_, err = img.Section(".TEXT")
	assert.True(t, errcode.Has(err, errcode.SectionNotFound), "lookup is case-sensitive")
}

func TestFirstSectionWins(t *testing.T) {
	raw := pextest.Build(
		pextest.Section{Name: ".data", VA: 0x1000, Data: []byte{0xAA}},
		pextest.Section{Name: ".data", VA: 0x2000, Data: []byte{0xBB}},
	)
	img, err := Load(raw)
	require.NoError(t, err)

	s, err := img.Section(".data")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), s.VirtualAddress)
}

func TestProbeErrors(t *testing.T) {
	good := sampleImage()

	noMZ := bytes.Clone(good)
	noMZ[0] = 'X'

	noPE := bytes.Clone(good)
	copy(noPE[0x40:], "NE\x00\x00")

	pe32 := pextest.BuildMagic(0x10B, pextest.Section{Name: ".text", VA: 0x1000, Data: []byte{0x90}})

	badLfanew := bytes.Clone(good)
	binary.LittleEndian.PutUint32(badLfanew[0x3C:], 0xFFFFFF00)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("MZ")},
		{"no MZ", noMZ},
		{"no PE signature", noPE},
		{"PE32", pe32},
		{"lfanew past end", badLfanew},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.data)
			require.Error(t, err)
			assert.Equal(t, errcode.Format, errcode.Of(err))
		})
	}
}

func TestProbeHeader(t *testing.T) {
	h, err := Probe(sampleImage())
	require.NoError(t, err)
	assert.Equal(t, uint32(0x40), h.Lfanew)
	assert.Equal(t, uint16(3), h.NumberOfSections)
	assert.Equal(t, uint16(0x20B), h.OptionalMagic)
}

func TestSectionSlice(t *testing.T) {
	s := &Section{Name: ".rdata", Data: []byte("abcdef")}

	b, err := s.Slice(2, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("cde"), b)

	b, err = s.Slice(6, 0)
	require.NoError(t, err)
	assert.Empty(t, b)

	for _, r := range [][2]int{{4, 3}, {-1, 1}, {7, 0}, {0, -1}} {
		_, err := s.Slice(r[0], r[1])
		assert.Equal(t, errcode.OutOfBounds, errcode.Of(err), "range %v", r)
	}
}

func TestSectionByRVA(t *testing.T) {
	img, err := Load(sampleImage())
	require.NoError(t, err)

	s, ok := img.SectionByRVA(0x2003)
	require.True(t, ok)
	assert.Equal(t, ".rdata", s.Name)

	_, ok = img.SectionByRVA(0x5000)
	assert.False(t, ok)
}
