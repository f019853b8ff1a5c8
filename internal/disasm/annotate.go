package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"fflagdump/internal/pex"
)

// Annotator returns an optional inline comment for an instruction.
// Empty string means no annotation.
type Annotator func(inst Inst) string

// RIPTarget returns the address a RIP-relative memory operand refers to.
func RIPTarget(inst Inst) (uint64, bool) {
	if !inst.Valid {
		return 0, false
	}
	for _, arg := range inst.X.Args {
		if arg == nil {
			break
		}
		if m, ok := arg.(x86asm.Mem); ok && m.Base == x86asm.RIP {
			return uint64(int64(inst.Next()) + m.Disp), true
		}
	}
	return 0, false
}

// SectionAnnotator names the section a RIP-relative operand or a direct
// branch lands in. Instruction addresses must be RVAs.
func SectionAnnotator(img *pex.Image) Annotator {
	return func(inst Inst) string {
		target, ok := RIPTarget(inst)
		if !ok {
			if target, ok = CallTarget(inst); !ok {
				bi := DecodeBranch(inst)
				if bi == nil || bi.IsRet || bi.Indirect {
					return ""
				}
				target = bi.Target
			}
		}
		if target > uint64(^uint32(0)) {
			return fmt.Sprintf("0x%x", target)
		}
		sec, ok := img.SectionByRVA(uint32(target))
		if !ok {
			return fmt.Sprintf("0x%x", target)
		}
		return fmt.Sprintf("%s+0x%x", sec.Name, uint32(target)-sec.VirtualAddress)
	}
}

// StringAnnotator annotates RIP-relative operands that land on a known
// string, keyed by address.
func StringAnnotator(strs map[uint64]string) Annotator {
	return func(inst Inst) string {
		target, ok := RIPTarget(inst)
		if !ok {
			return ""
		}
		s, ok := strs[target]
		if !ok {
			return ""
		}
		if len(s) > 50 {
			s = s[:47] + "..."
		}
		return fmt.Sprintf("%q", s)
	}
}
