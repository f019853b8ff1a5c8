package main

import (
	"fmt"
	"path/filepath"

	"github.com/agilira/orpheus"

	"fflagdump/internal/callgraph"
	"fflagdump/internal/disasm"
	"fflagdump/internal/dump"
	"fflagdump/internal/extract"
	"fflagdump/internal/output"
	"fflagdump/internal/pex"
)

// listingWindow caps how far a thunk or stub listing reads when no
// terminator shows up.
const listingWindow = 0x80

func (c *cli) setupSitesCommand() {
	// sites <exe> [--limit=N] [--out=DIR]
	cmd := withCommon(orpheus.NewCommand("sites", "Disassemble each registration site with its thunk and stub"))
	cmd.SetHandler(c.handleSites)
	cmd.AddIntFlag("limit", "n", 20, "list at most N sites (0 = all)")
	cmd.AddFlag("out", "o", "", "write asm/<site>.txt and sites.json under DIR")
	c.app.AddCommand(cmd)
}

// decoded is one decode of a local executable with the pieces the
// listing commands need.
type decoded struct {
	env     *env
	img     *pex.Image
	text    *pex.Section
	res     *dump.Result
	siteLen int
}

func (c *cli) decode(ctx *orpheus.Context, exe string) (*decoded, error) {
	e, err := c.env(ctx)
	if err != nil {
		return nil, err
	}
	ex, err := e.extractor(exe, false)
	if err != nil {
		return nil, err
	}
	img, err := ex.Image(c.ctx, extract.Latest)
	if err != nil {
		return nil, err
	}
	res, err := ex.Decoder.Decode(img)
	if err != nil {
		return nil, err
	}
	text, err := img.Section(e.cfg.Sections.Code)
	if err != nil {
		return nil, err
	}
	return &decoded{env: e, img: img, text: text, res: res, siteLen: ex.Decoder.Patterns.FlagDef.Len()}, nil
}

// rva converts a code section offset to an RVA.
func (d *decoded) rva(off uint32) uint64 {
	return uint64(d.text.VirtualAddress) + uint64(off)
}

// symbols names every thunk and stub the decoded sites reach.
func (d *decoded) symbols() disasm.SymbolLookup {
	names := make(map[uint64]string)
	for _, s := range d.res.Sites {
		names[d.rva(s.Thunk)] = callgraph.ThunkNode(s.Thunk)
		names[d.rva(s.Stub)] = callgraph.StubNode(s.Stub)
	}
	return disasm.PlaceholderLookup(names)
}

// nameStrings maps the RVA of every flag name to the name.
func (d *decoded) nameStrings() map[uint64]string {
	out := make(map[uint64]string)
	rdata, err := d.img.Section(d.env.cfg.Sections.ROData)
	if err != nil {
		return out
	}
	for _, s := range d.res.Sites {
		out[uint64(rdata.VirtualAddress)+uint64(s.NameOff)] = s.Name
	}
	return out
}

// listing disassembles the code section from off until a terminator or
// the window ends.
func (d *decoded) listing(off uint32, window int, syms disasm.SymbolLookup) []disasm.Inst {
	if int(off) >= d.text.Size() {
		return nil
	}
	end := min(int(off)+window, d.text.Size())
	return disasm.Disassemble(d.text.Data[off:end], disasm.Options{
		BaseAddr:   d.rva(off),
		Symbols:    syms,
		StopAtTerm: true,
	})
}

func (c *cli) handleSites(ctx *orpheus.Context) error {
	exe, err := requireArg(ctx, 0, "exe")
	if err != nil {
		return err
	}
	d, err := c.decode(ctx, exe)
	if err != nil {
		return err
	}

	sites := d.res.Sites
	if n := ctx.GetFlagInt("limit"); n > 0 && n < len(sites) {
		sites = sites[:n]
	}
	outDir := ctx.GetFlagString("out")

	syms := d.symbols()
	anns := []disasm.Annotator{
		disasm.StringAnnotator(d.nameStrings()),
		disasm.SectionAnnotator(d.img),
	}
	for _, s := range sites {
		fmt.Fprintf(c.stdout, "%s  %s %s %s\n", callgraph.SiteNode(s.Match), s.VarType, s.ValueType, s.Name)

		site := d.listing(uint32(s.Match), d.siteLen, syms)
		thunk := d.listing(s.Thunk, listingWindow, syms)
		stub := d.listing(s.Stub, listingWindow, syms)
		text := disasm.Format(site, nil, anns...) +
			disasm.Format(thunk, syms, anns...) +
			disasm.Format(stub, syms, anns...)
		fmt.Fprintln(c.stdout, text)

		if outDir != "" {
			all := append(append(append([]disasm.Inst(nil), site...), thunk...), stub...)
			if err := output.WriteASM(outDir, callgraph.SiteNode(s.Match), all, syms, anns...); err != nil {
				return err
			}
		}
	}

	if outDir != "" {
		path := filepath.Join(outDir, "sites.json")
		if err := output.WriteSitesJSON(path, d.res.Sites); err != nil {
			return err
		}
		d.env.log.Info("wrote site listings", "dir", outDir, "sites", len(sites))
	}
	for _, diag := range d.res.Diags {
		d.env.log.Warn("decode diagnostic", "diag", diag.String())
	}
	return nil
}
