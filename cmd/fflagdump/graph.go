package main

import (
	"path/filepath"
	"slices"

	"github.com/agilira/orpheus"
	"github.com/zboralski/lattice/render"

	"fflagdump/internal/callgraph"
	"fflagdump/internal/errcode"
	"fflagdump/internal/output"
)

func (c *cli) setupGraphCommand() {
	// graph <exe> --out=FILE [--cfg=DIR]
	cmd := withCommon(orpheus.NewCommand("graph", "Write the site -> thunk -> stub graph as DOT"))
	cmd.SetHandler(c.handleGraph)
	cmd.AddFlag("out", "o", "", "DOT output file")
	cmd.AddFlag("cfg", "", "", "also write one CFG DOT per thunk and stub under DIR")
	c.app.AddCommand(cmd)
}

func (c *cli) handleGraph(ctx *orpheus.Context) error {
	exe, err := requireArg(ctx, 0, "exe")
	if err != nil {
		return err
	}
	out := ctx.GetFlagString("out")
	if out == "" {
		return errcode.New(errcode.Config, "graph: --out is required")
	}
	d, err := c.decode(ctx, exe)
	if err != nil {
		return err
	}

	g := callgraph.BuildChainGraph(d.res.Sites)
	if err := output.WriteDOT(out, render.DOT(g, "fastvar registration chains")); err != nil {
		return err
	}
	d.env.log.Info("wrote chain graph", "path", out, "nodes", len(g.Nodes), "edges", len(g.Edges))

	cfgDir := ctx.GetFlagString("cfg")
	if cfgDir == "" {
		return nil
	}
	syms := d.symbols()
	targets := make(map[string]uint32)
	for _, s := range d.res.Sites {
		targets[callgraph.ThunkNode(s.Thunk)] = s.Thunk
		targets[callgraph.StubNode(s.Stub)] = s.Stub
	}
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		fn := callgraph.FuncInfo{Name: name, Insts: d.listing(targets[name], listingWindow, syms)}
		cg := callgraph.BuildCFG([]callgraph.FuncInfo{fn}, syms)
		if err := output.WriteDOT(filepath.Join(cfgDir, name+".dot"), render.DOTCFG(cg, name)); err != nil {
			return err
		}
	}
	d.env.log.Info("wrote CFGs", "dir", cfgDir, "count", len(names))
	return nil
}
