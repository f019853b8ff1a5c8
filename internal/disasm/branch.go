package disasm

import "golang.org/x/arch/x86/x86asm"

// BranchInfo describes a decoded control-transfer instruction.
type BranchInfo struct {
	Target   uint64 // absolute target address (0 if RET or indirect)
	Cond     bool   // true if conditional (has fallthrough)
	IsRet    bool
	Indirect bool // target comes from a register or memory operand
}

var condJumps = map[x86asm.Op]bool{
	x86asm.JA: true, x86asm.JAE: true, x86asm.JB: true, x86asm.JBE: true,
	x86asm.JE: true, x86asm.JNE: true, x86asm.JG: true, x86asm.JGE: true,
	x86asm.JL: true, x86asm.JLE: true, x86asm.JO: true, x86asm.JNO: true,
	x86asm.JP: true, x86asm.JNP: true, x86asm.JS: true, x86asm.JNS: true,
	x86asm.JCXZ: true, x86asm.JECXZ: true, x86asm.JRCXZ: true,
	x86asm.LOOP: true, x86asm.LOOPE: true, x86asm.LOOPNE: true,
}

// DecodeBranch reports the branch an instruction performs, or nil if it is
// not a basic-block terminator. CALL is not a terminator.
func DecodeBranch(inst Inst) *BranchInfo {
	if !inst.Valid {
		return nil
	}
	switch op := inst.X.Op; {
	case op == x86asm.RET:
		return &BranchInfo{IsRet: true}
	case op == x86asm.JMP:
		return relTarget(inst, false)
	case condJumps[op]:
		return relTarget(inst, true)
	}
	return nil
}

// CallTarget returns the absolute target of a direct CALL.
func CallTarget(inst Inst) (uint64, bool) {
	if !inst.Valid || inst.X.Op != x86asm.CALL {
		return 0, false
	}
	rel, ok := inst.X.Args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	return uint64(int64(inst.Next()) + int64(rel)), true
}

func relTarget(inst Inst, cond bool) *BranchInfo {
	rel, ok := inst.X.Args[0].(x86asm.Rel)
	if !ok {
		return &BranchInfo{Cond: cond, Indirect: true}
	}
	return &BranchInfo{Target: uint64(int64(inst.Next()) + int64(rel)), Cond: cond}
}

// IsBranchTerminator returns true if the instruction terminates a basic block.
func IsBranchTerminator(inst Inst) bool {
	return DecodeBranch(inst) != nil
}
