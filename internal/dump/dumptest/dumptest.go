// Package dumptest builds PE32+ images containing synthetic flag
// registration sites, thunks, stubs and string initializers.
package dumptest

import (
	"encoding/binary"

	"fflagdump/internal/pex/pextest"
)

// Section virtual addresses of every built image.
const (
	TextVA  = 0x1000
	RDataVA = 0x80000
	DataVA  = 0x90000

	// OutOfDataSlot is the slot given to flags whose storage is not
	// present in the data section.
	OutOfDataSlot = 0x10000
)

const (
	siteStride   = 0x20
	stringStride = 0x20
	thunkStride  = 0x40
	stubStride   = 0x10
	filler       = 0xCC
	stringBias   = 12
)

// Flag describes one registration to synthesize.
type Flag struct {
	Name      string
	VarType   uint32
	ValueType uint32

	// Raw is stored at the flag's slot in the data section.
	Raw []byte

	// OutOfData places the slot past the end of the data section.
	OutOfData bool

	// String is the literal assigned by a string initializer. It is only
	// emitted when ValueType is String and NoInit is false.
	String string
	NoInit bool

	// Probed starts the thunk with the rex push rbx prologue.
	Probed bool
}

// Offsets records where the pieces of one flag were placed.
type Offsets struct {
	Site       int
	Thunk      int
	Stub       int
	StringSite int // -1 when no initializer was emitted
	Slot       uint32
	NameOff    uint32
	StrOff     uint32
}

// Fixture is a built image plus its layout.
type Fixture struct {
	Image   []byte
	Text    []byte
	RData   []byte
	Data    []byte
	Offsets []Offsets
}

const valueTypeString = 0x02

// Build lays out flags in a three-section image.
func Build(flags ...Flag) *Fixture {
	n := len(flags)
	stringBase := n * siteStride
	thunkBase := stringBase + n*stringStride
	stubBase := thunkBase + n*thunkStride

	text := make([]byte, stubBase+n*stubStride+16)
	for i := range text {
		text[i] = filler
	}
	var rdata, data []byte
	fx := &Fixture{Offsets: make([]Offsets, n)}

	for i, f := range flags {
		off := Offsets{
			Site:       i * siteStride,
			Thunk:      thunkBase + i*thunkStride,
			Stub:       stubBase + i*stubStride,
			StringSite: -1,
		}

		off.NameOff = uint32(len(rdata))
		rdata = append(rdata, f.Name...)
		rdata = append(rdata, 0)

		if f.OutOfData {
			off.Slot = OutOfDataSlot
		} else {
			off.Slot = uint32(len(data))
			raw := f.Raw
			if f.ValueType == valueTypeString && raw == nil {
				raw = make([]byte, 16)
			}
			data = append(data, raw...)
			for len(data)%8 != 0 {
				data = append(data, 0)
			}
		}

		if f.ValueType == valueTypeString && !f.NoInit {
			off.StrOff = uint32(len(rdata))
			rdata = append(rdata, f.String...)
			rdata = append(rdata, 0)
			off.StringSite = stringBase + i*stringStride
			putStringInit(text, off)
			le32(text[off.StringSite+28:], uint32(len(f.String)))
		}

		putSite(text, off, f.VarType)
		putThunk(text, off, f.Probed)
		le32(text[off.Stub+8:], f.ValueType)

		fx.Offsets[i] = off
	}

	if len(data) == 0 {
		data = make([]byte, 8)
	}
	fx.Text, fx.RData, fx.Data = text, rdata, data
	fx.Image = pextest.Build(
		pextest.Section{Name: ".text", VA: TextVA, Data: text},
		pextest.Section{Name: ".rdata", VA: RDataVA, Data: rdata},
		pextest.Section{Name: ".data", VA: DataVA, Data: data},
	)
	return fx
}

// Image is Build(flags...).Image.
func Image(flags ...Flag) []byte { return Build(flags...).Image }

// putSite writes mov r8d, type; lea rdx, [slot]; lea rcx, [name]; jmp thunk.
func putSite(text []byte, off Offsets, varType uint32) {
	d := off.Site
	w := text[d : d+25]
	copy(w[0:], []byte{0x41, 0xB8})
	le32(w[2:], varType)
	copy(w[6:], []byte{0x48, 0x8D, 0x15})
	le32(w[9:], rel(TextVA+uint32(d)+13, DataVA+off.Slot))
	copy(w[13:], []byte{0x48, 0x8D, 0x0D})
	le32(w[16:], rel(TextVA+uint32(d)+20, RDataVA+off.NameOff))
	w[20] = 0xE9
	le32(w[21:], rel(TextVA+uint32(d)+25, TextVA+uint32(off.Thunk)))
}

// putThunk writes a thunk whose jump displacement reaches the stub.
func putThunk(text []byte, off Offsets, probed bool) {
	t := off.Thunk
	dispAt := t + 17
	if probed {
		text[t], text[t+1] = 0x40, 0x53
		dispAt = t + 37
	} else {
		text[t], text[t+1] = 0x48, 0x89
	}
	le32(text[dispAt:], rel(TextVA+uint32(dispAt)+4, TextVA+uint32(off.Stub)))
}

// putStringInit writes sub rsp; mov ecx; call; movups xmm0, [str];
// mov qword [slot+bias], len.
func putStringInit(text []byte, off Offsets) {
	x := off.StringSite
	w := text[x : x+32]
	copy(w[0:], []byte{0x48, 0x83, 0xEC, 0x28, 0xB9, 0, 0, 0, 0, 0xE8, 0, 0, 0, 0, 0x0F, 0x10, 0x05})
	le32(w[17:], rel(TextVA+uint32(x)+21, RDataVA+off.StrOff))
	copy(w[21:], []byte{0x48, 0xC7, 0x05})
	le32(w[24:], rel(TextVA+uint32(x)+28, DataVA+off.Slot+stringBias))
}

// rel returns the displacement that makes an instruction ending at next
// address target.
func rel(next, target uint32) uint32 { return target - next }

func le32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
