package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fflagdump/internal/disasm"
	"fflagdump/internal/dump"
	"fflagdump/internal/errcode"
	"fflagdump/internal/fastvar"
)

func testRegistry() fastvar.Registry {
	return fastvar.FromSlice([]fastvar.FastVar{
		fastvar.New("TaskSchedulerThreads", fastvar.VarStatic, fastvar.IntValue(4)),
		fastvar.New("DebugGraphics", fastvar.VarDynamic, fastvar.FlagValue(true)),
	})
}

func TestWriteRegistryJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "flags.json")
	require.NoError(t, WriteRegistryJSON(path, testRegistry()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "DebugGraphics", got[0]["name"])
	assert.Equal(t, "TaskSchedulerThreads", got[1]["name"])
}

func TestEncodeRegistryJSONDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, EncodeRegistryJSON(&a, testRegistry()))
	require.NoError(t, EncodeRegistryJSON(&b, testRegistry()))
	assert.Equal(t, a.String(), b.String())
}

func TestWriteSitesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.json")
	sites := []dump.Site{{Match: 0x10, Name: "X", Thunk: 0x40, Stub: 0x80, VarType: fastvar.VarSync}}
	require.NoError(t, WriteSitesJSON(path, sites))

	var got []map[string]any
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "X", got[0]["name"])
	assert.Equal(t, "Sync", got[0]["var_type"])
	assert.EqualValues(t, 0x40, got[0]["thunk"])
}

func TestWriteDOT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g", "chains.dot")
	require.NoError(t, WriteDOT(path, "digraph g {}\n"))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "digraph g {}\n", string(raw))
}

func TestWriteASM(t *testing.T) {
	dir := t.TempDir()
	insts := disasm.Disassemble([]byte{0x90, 0xC3}, disasm.Options{BaseAddr: 0x1000})
	require.NoError(t, WriteASM(dir, "thunk_1000", insts, nil))

	raw, err := os.ReadFile(filepath.Join(dir, "asm", "thunk_1000.txt"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))
}

func TestWriteIntoFileFails(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := WriteDOT(filepath.Join(blocker, "x.dot"), "")
	require.Error(t, err)
	assert.True(t, errcode.Has(err, errcode.IO))
}
