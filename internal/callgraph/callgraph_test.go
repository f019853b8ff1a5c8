package callgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"fflagdump/internal/dump"
)

func TestBuildChainGraphSharedThunk(t *testing.T) {
	sites := []dump.Site{
		{Match: 0x100, Thunk: 0x400, Stub: 0x500},
		{Match: 0x119, Thunk: 0x400, Stub: 0x500},
		{Match: 0x132, Thunk: 0x600, Stub: 0x500},
	}
	g := BuildChainGraph(sites)

	assert.ElementsMatch(t, []string{
		"site_100", "site_119", "site_132",
		"thunk_400", "thunk_600", "stub_500",
	}, g.Nodes)
	assert.Len(t, g.Edges, 5)
	assert.Contains(t, g.Edges, lattice.Edge{Caller: "site_119", Callee: "thunk_400"})
	assert.Contains(t, g.Edges, lattice.Edge{Caller: "thunk_600", Callee: "stub_500"})

	assert.Contains(t, render.DOT(g, "chains"), "thunk_400")
}

func TestBuildChainGraphEmpty(t *testing.T) {
	g := BuildChainGraph(nil)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}

func TestNodeNames(t *testing.T) {
	assert.Equal(t, "site_1a", SiteNode(0x1a))
	assert.Equal(t, "thunk_ff", ThunkNode(0xff))
	assert.Equal(t, "stub_0", StubNode(0))
}
