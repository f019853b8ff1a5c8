// Package callgraph turns decoded registration sites and their
// disassembly into lattice graphs for DOT rendering.
package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"fflagdump/internal/dump"
)

// Node names. Offsets are code section offsets in hex.
func SiteNode(off int) string     { return fmt.Sprintf("site_%x", off) }
func ThunkNode(off uint32) string { return fmt.Sprintf("thunk_%x", off) }
func StubNode(off uint32) string  { return fmt.Sprintf("stub_%x", off) }

// BuildChainGraph constructs the site -> thunk -> stub graph. Many sites
// share a thunk, so nodes and edges are deduplicated.
func BuildChainGraph(sites []dump.Site) *lattice.Graph {
	g := &lattice.Graph{}
	seen := make(map[string]bool)
	for _, s := range sites {
		site, thunk, stub := SiteNode(s.Match), ThunkNode(s.Thunk), StubNode(s.Stub)
		for _, n := range []string{site, thunk, stub} {
			if !seen[n] {
				seen[n] = true
				g.Nodes = append(g.Nodes, n)
			}
		}
		g.Edges = append(g.Edges,
			lattice.Edge{Caller: site, Callee: thunk},
			lattice.Edge{Caller: thunk, Callee: stub},
		)
	}
	g.Dedup()
	return g
}
