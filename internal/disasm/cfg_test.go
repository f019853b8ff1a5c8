package disasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCFGDiamond(t *testing.T) {
	// 0x00: test eax, eax
	// 0x02: je 0x07
	// 0x04: nop
	// 0x05: jmp 0x08
	// 0x07: nop
	// 0x08: ret
	data := []byte{
		0x85, 0xC0,
		0x74, 0x03,
		0x90,
		0xEB, 0x01,
		0x90,
		0xC3,
	}
	insts := Disassemble(data, Options{})
	require.Len(t, insts, 6)

	cfg := BuildCFG("thunk", insts)
	require.Len(t, cfg.Blocks, 4)

	entry := cfg.Blocks[0]
	assert.True(t, entry.IsEntry)
	assert.Equal(t, []Succ{{BlockID: 2, Cond: "T"}, {BlockID: 1, Cond: "F"}}, entry.Succs)
	assert.Equal(t, []Succ{{BlockID: 3}}, cfg.Blocks[1].Succs)
	assert.Equal(t, []Succ{{BlockID: 3}}, cfg.Blocks[2].Succs)
	assert.True(t, cfg.Blocks[3].IsTerm)
}

func TestBuildCFGTailJump(t *testing.T) {
	// push rbx; jmp out of range
	data := []byte{0x53, 0xE9, 0x00, 0x10, 0x00, 0x00}
	cfg := BuildCFG("stub", Disassemble(data, Options{}))
	require.Len(t, cfg.Blocks, 1)
	assert.True(t, cfg.Blocks[0].IsTerm)
	assert.Empty(t, cfg.Blocks[0].Succs)
}

func TestBuildCFGEmpty(t *testing.T) {
	cfg := BuildCFG("empty", nil)
	assert.Equal(t, "empty", cfg.Name)
	assert.Empty(t, cfg.Blocks)
}
