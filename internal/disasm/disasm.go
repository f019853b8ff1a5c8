// Package disasm provides x86-64 disassembly for the registration code
// the flag decoder walks.
package disasm

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Inst is a decoded x86-64 instruction with address and raw bytes.
type Inst struct {
	Addr     uint64
	Raw      []byte
	Size     int
	Mnemonic string
	Operands string
	Text     string // full disassembly line
	Valid    bool
	X        x86asm.Inst
}

// Next is the address of the following instruction, the base of
// RIP-relative operands.
func (i Inst) Next() uint64 { return i.Addr + uint64(i.Size) }

// SymbolLookup resolves an address to a symbolic name. Returns ("", false) if unknown.
type SymbolLookup func(addr uint64) (name string, ok bool)

// Options controls disassembly behavior.
type Options struct {
	BaseAddr   uint64       // address of the first byte in Data
	MaxSteps   int          // maximum instructions to decode; 0 = 10M
	Symbols    SymbolLookup // optional symbol resolver for branch targets
	StopAtTerm bool         // stop after RET or an unconditional JMP
}

const defaultMaxSteps = 10_000_000

func (o Options) effectiveMax() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return defaultMaxSteps
}

// Disassemble decodes instructions from a byte region in 64-bit mode.
// Undecodable bytes are emitted one at a time as .byte lines.
func Disassemble(data []byte, opts Options) []Inst {
	maxSteps := opts.effectiveMax()
	var result []Inst
	for off := 0; off < len(data) && len(result) < maxSteps; {
		inst := decodeAt(data[off:], opts.BaseAddr+uint64(off), opts.Symbols)
		result = append(result, inst)
		off += inst.Size
		if opts.StopAtTerm {
			if bi := DecodeBranch(inst); bi != nil && !bi.Cond {
				break
			}
		}
	}
	return result
}

func decodeAt(src []byte, addr uint64, syms SymbolLookup) Inst {
	x, err := x86asm.Decode(src, 64)
	if err != nil || x.Len == 0 {
		return Inst{
			Addr:     addr,
			Raw:      src[:1],
			Size:     1,
			Mnemonic: ".byte",
			Operands: fmt.Sprintf("0x%02x", src[0]),
			Text:     fmt.Sprintf(".byte 0x%02x", src[0]),
		}
	}

	text := x86asm.IntelSyntax(x, addr, symbolizer(syms))
	mnemonic, operands, _ := strings.Cut(text, " ")
	return Inst{
		Addr:     addr,
		Raw:      src[:x.Len],
		Size:     x.Len,
		Mnemonic: mnemonic,
		Operands: operands,
		Text:     text,
		Valid:    true,
		X:        x,
	}
}

func symbolizer(syms SymbolLookup) x86asm.SymLookup {
	if syms == nil {
		return nil
	}
	return func(addr uint64) (string, uint64) {
		if name, ok := syms(addr); ok {
			return name, addr
		}
		return "", 0
	}
}

// Format renders a slice of instructions as stable text output.
// Each line: <addr>  <hex bytes>  <disasm>  ; <comments>
// Annotators are checked in order; first non-empty result is used.
func Format(insts []Inst, lookup SymbolLookup, annotators ...Annotator) string {
	width := 0
	for _, inst := range insts {
		width = max(width, inst.Size)
	}

	var b strings.Builder
	for _, inst := range insts {
		fmt.Fprintf(&b, "0x%08x  ", inst.Addr)
		for i := range width {
			if i < len(inst.Raw) {
				fmt.Fprintf(&b, "%02x ", inst.Raw[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteByte(' ')
		b.WriteString(inst.Text)

		commented := false
		if lookup != nil {
			if name, ok := lookup(inst.Addr); ok {
				fmt.Fprintf(&b, "  ; <%s>", name)
				commented = true
			}
		}
		if !commented {
			for _, ann := range annotators {
				if s := ann(inst); s != "" {
					fmt.Fprintf(&b, "  ; %s", s)
					break
				}
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// PlaceholderLookup returns a SymbolLookup over a fixed set of named addresses.
func PlaceholderLookup(names map[uint64]string) SymbolLookup {
	return func(addr uint64) (string, bool) {
		if name, ok := names[addr]; ok {
			return name, true
		}
		return "", false
	}
}
