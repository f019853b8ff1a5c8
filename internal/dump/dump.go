// Package dump extracts FastVar definitions from the code section of a PE32+
// image by following the fixed byte layout of two compiler-generated code
// shapes: string initializers and flag registration thunks.
package dump

import (
	"log/slog"
	"strconv"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"fflagdump/internal/binfmt"
	"fflagdump/internal/fastvar"
	"fflagdump/internal/pex"
	"fflagdump/internal/scanner"
)

// Site is one decoded registration call site. Match, Thunk and Stub are
// code section offsets, Slot is a data section offset and NameOff a
// read-only data offset.
type Site struct {
	Match     int               `json:"match"`
	VarType   fastvar.VarType   `json:"var_type"`
	Slot      uint32            `json:"slot"`
	NameOff   uint32            `json:"name_off"`
	Name      string            `json:"name"`
	Thunk     uint32            `json:"thunk"`
	Probe     uint16            `json:"probe"`
	Stub      uint32            `json:"stub"`
	ValueType fastvar.ValueType `json:"value_type"`
}

// StringSite is one decoded string initializer. Slot already has the
// initializer bias applied and matches Site.Slot of the flag it fills.
type StringSite struct {
	Match int    `json:"match"`
	Str   uint32 `json:"str"`
	Len   uint32 `json:"len"`
	Slot  uint32 `json:"slot"`
}

// Result is the output of one decode.
type Result struct {
	Flags       []fastvar.FastVar
	Sites       []Site
	StringSites []StringSite
	Strings     map[uint32]string // data slot -> literal
	Diags       []binfmt.Diag
}

// Registry collects the decoded flags by name.
func (r *Result) Registry() fastvar.Registry { return fastvar.FromSlice(r.Flags) }

// Decoder turns a loaded image into FastVars. The zero value uses the
// built-in signatures and section names.
type Decoder struct {
	Patterns Patterns
	Sections SectionNames
	Logger   *slog.Logger
}

// layout is the trio of sections every pass reads from.
type layout struct {
	text, rdata, data *pex.Section
}

func (d *Decoder) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

func (d *Decoder) patterns() Patterns {
	p := d.Patterns
	if p.FlagDef.Len() == 0 {
		p.FlagDef = defaultPatterns.FlagDef
	}
	if p.StringInit.Len() == 0 {
		p.StringInit = defaultPatterns.StringInit
	}
	return p
}

func (d *Decoder) sections() SectionNames {
	s, def := d.Sections, DefaultSections()
	if s.Code == "" {
		s.Code = def.Code
	}
	if s.ROData == "" {
		s.ROData = def.ROData
	}
	if s.Data == "" {
		s.Data = def.Data
	}
	return s
}

// Decode runs both scan passes over img and resolves every flag value.
// Structural failures (headers, missing sections, out-of-range names,
// thunks or stubs) abort the decode; values backed by storage outside the
// data section become Uninit and are reported in Result.Diags.
func (d *Decoder) Decode(img *pex.Image) (*Result, error) {
	names := d.sections()
	text, rdata, data, err := img.RequiredNamed(names.Code, names.ROData, names.Data)
	if err != nil {
		return nil, err
	}
	lay := layout{text: text, rdata: rdata, data: data}
	pats := d.patterns()
	log := d.logger()

	var (
		strs      *stringTable
		sites     []Site
		g         errgroup.Group
		valueDiag binfmt.Diags
	)
	g.Go(func() error {
		var err error
		strs, err = stringPass(lay, pats.StringInit)
		return err
	})
	g.Go(func() error {
		var err error
		sites, err = sitePass(lay, pats.FlagDef)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debug("scan passes complete",
		"string_sites", len(strs.sites),
		"strings", len(strs.bySlot),
		"flag_sites", len(sites))

	res := &Result{
		Sites:       sites,
		StringSites: strs.sites,
		Strings:     strs.bySlot,
		Flags:       make([]fastvar.FastVar, 0, len(sites)),
	}
	for _, s := range sites {
		v := fetchValue(lay.data, s, strs.bySlot, &valueDiag)
		res.Flags = append(res.Flags, fastvar.New(s.Name, s.VarType, v))
	}
	res.Diags = append(append(res.Diags, strs.diags.Items()...), valueDiag.Items()...)

	log.Info("decoded flags", "count", len(res.Flags), "diags", len(res.Diags))
	return res, nil
}

// GetFFlags loads binary as a PE32+ image and returns every flag found with
// the built-in signatures.
func GetFFlags(binary []byte) ([]fastvar.FastVar, error) {
	img, err := pex.Load(binary)
	if err != nil {
		return nil, err
	}
	var d Decoder
	res, err := d.Decode(img)
	if err != nil {
		return nil, err
	}
	return res.Flags, nil
}

type stringTable struct {
	sites  []StringSite
	bySlot map[uint32]string
	diags  binfmt.Diags
}

// stringPass maps data slots to the literals their initializers store.
func stringPass(lay layout, p scanner.Pattern) (*stringTable, error) {
	textVA, rdataVA, dataVA := lay.text.VirtualAddress, lay.rdata.VirtualAddress, lay.data.VirtualAddress
	tab := &stringTable{bySlot: make(map[uint32]string)}

	for _, m := range scanner.ScanBytes(lay.text.Data, p) {
		window, err := lay.text.Slice(m, stringInitSize)
		if err != nil {
			return nil, err
		}
		s := binfmt.NewStream(window)

		if err := s.Skip(17); err != nil {
			return nil, err
		}
		strOff, err := resolveRel(s, m, textVA, rdataVA)
		if err != nil {
			return nil, err
		}
		if err := s.Skip(3); err != nil {
			return nil, err
		}
		slot, err := resolveRel(s, m, textVA, dataVA+stringSlotBias)
		if err != nil {
			return nil, err
		}
		size, err := s.ReadU32LE()
		if err != nil {
			return nil, err
		}

		raw, err := lay.rdata.Slice(int(strOff), int(size))
		if err != nil {
			return nil, err
		}
		str := string(raw)
		if !utf8.Valid(raw) {
			tab.diags.Addf(uint64(m), binfmt.DiagEncoding, "string literal at rdata+0x%x is not UTF-8", strOff)
			str = ""
		}

		tab.sites = append(tab.sites, StringSite{Match: m, Str: strOff, Len: size, Slot: slot})
		tab.bySlot[slot] = str
	}
	return tab, nil
}

// sitePass decodes every registration call site up to its value type.
func sitePass(lay layout, p scanner.Pattern) ([]Site, error) {
	var sites []Site
	for _, m := range scanner.ScanBytes(lay.text.Data, p) {
		site, err := decodeSite(lay, m)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func decodeSite(lay layout, m int) (Site, error) {
	textVA := lay.text.VirtualAddress
	site := Site{Match: m}

	window, err := lay.text.Slice(m, flagDefSize)
	if err != nil {
		return site, err
	}
	s := binfmt.NewStream(window)

	if err := s.Skip(2); err != nil {
		return site, err
	}
	if err := s.Get(&site.VarType); err != nil {
		return site, err
	}

	if err := s.Skip(3); err != nil {
		return site, err
	}
	if site.Slot, err = resolveRel(s, m, textVA, lay.data.VirtualAddress); err != nil {
		return site, err
	}

	if err := s.Skip(3); err != nil {
		return site, err
	}
	if site.NameOff, err = resolveRel(s, m, textVA, lay.rdata.VirtualAddress); err != nil {
		return site, err
	}
	if site.Name, err = readName(lay.rdata, site.NameOff); err != nil {
		return site, err
	}

	if err := s.Skip(1); err != nil {
		return site, err
	}
	if site.Thunk, err = resolveRel(s, m, textVA, textVA); err != nil {
		return site, err
	}

	thunk, err := lay.text.Slice(int(site.Thunk), thunkWindow)
	if err != nil {
		return site, err
	}
	ts := binfmt.NewStream(thunk)
	if site.Probe, err = ts.ReadU16BE(); err != nil {
		return site, err
	}
	skip := thunkSkipDefault
	if site.Probe == thunkProbe {
		skip = thunkSkipProbed
	}
	if err := ts.Skip(skip); err != nil {
		return site, err
	}
	if site.Stub, err = resolveRel(ts, int(site.Thunk), textVA, textVA); err != nil {
		return site, err
	}

	stub, err := lay.text.Slice(int(site.Stub), stubWindow)
	if err != nil {
		return site, err
	}
	ss := binfmt.NewStream(stub)
	if err := ss.Skip(stubTagOffset); err != nil {
		return site, err
	}
	if err := ss.Get(&site.ValueType); err != nil {
		return site, err
	}
	return site, nil
}

func readName(rdata *pex.Section, off uint32) (string, error) {
	if _, err := rdata.Slice(int(off), 0); err != nil {
		return "", err
	}
	return binfmt.NewStream(rdata.Data[off:]).ReadCString()
}

// fetchValue reads the payload for site from the data section. Storage that
// lies outside the section decodes to Uninit.
func fetchValue(data *pex.Section, site Site, strs map[uint32]string, diags *binfmt.Diags) fastvar.Value {
	slot := int(site.Slot)
	uninit := func(width int) fastvar.Value {
		diags.Addf(uint64(site.Match), binfmt.DiagUninit,
			"%s %s slot data+0x%x width %d outside %d-byte data section",
			site.Name, site.ValueType, site.Slot, width, data.Size())
		return fastvar.UninitValue()
	}

	switch site.ValueType {
	case fastvar.TypeInt:
		if !data.Contains(slot, 4) {
			return uninit(4)
		}
		v, _ := binfmt.NewStreamAt(data.Data, slot, 4).ReadI32LE()
		return fastvar.IntValue(v)
	case fastvar.TypeLog:
		if !data.Contains(slot, 2) {
			return uninit(2)
		}
		v, _ := binfmt.NewStreamAt(data.Data, slot, 2).ReadU16LE()
		return fastvar.LogValue(strconv.FormatUint(uint64(v), 10))
	case fastvar.TypeFlag:
		if !data.Contains(slot, 1) {
			return uninit(1)
		}
		return fastvar.FlagValue(data.Data[slot] == 0x01)
	case fastvar.TypeString:
		str, ok := strs[site.Slot]
		if !ok {
			diags.Addf(uint64(site.Match), binfmt.DiagUninit,
				"%s has no string initializer for slot data+0x%x", site.Name, site.Slot)
			return fastvar.UninitValue()
		}
		return fastvar.StringValue(str)
	default:
		return fastvar.InvalidValue()
	}
}
