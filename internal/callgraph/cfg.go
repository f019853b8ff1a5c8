package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"fflagdump/internal/disasm"
)

// FuncInfo holds one disassembled thunk or stub.
type FuncInfo struct {
	Name  string
	Insts []disasm.Inst
}

// BuildCFG constructs a lattice.CFGGraph from disassembled listings.
// Direct calls and jumps leaving the listing become call sites, named
// through lookup when it knows the target.
func BuildCFG(funcs []FuncInfo, lookup disasm.SymbolLookup) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		dcfg := disasm.BuildCFG(f.Name, f.Insts)
		cg.Funcs = append(cg.Funcs, convertFuncCFG(&dcfg, lookup))
	}
	return cg
}

// convertFuncCFG maps a disasm.FuncCFG to a lattice.FuncCFG.
func convertFuncCFG(dcfg *disasm.FuncCFG, lookup disasm.SymbolLookup) *lattice.FuncCFG {
	var start, end uint64
	if n := len(dcfg.Insts); n > 0 {
		start, end = dcfg.Insts[0].Addr, dcfg.Insts[n-1].Next()
	}

	lcfg := &lattice.FuncCFG{Name: dcfg.Name}
	for _, db := range dcfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    db.ID,
			Start: db.Start,
			End:   db.End,
			Term:  db.IsTerm,
		}
		for _, ds := range db.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: ds.BlockID,
				Cond:    ds.Cond,
			})
		}

		for idx := db.Start; idx < db.End && idx < len(dcfg.Insts); idx++ {
			target, ok := exitTarget(dcfg.Insts[idx], start, end)
			if !ok {
				continue
			}
			lb.Calls = append(lb.Calls, lattice.CallSite{
				Offset: idx,
				Callee: calleeName(target, lookup),
			})
		}

		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}

// exitTarget returns the target of a direct call, or of a direct jump that
// leaves [start, end).
func exitTarget(inst disasm.Inst, start, end uint64) (uint64, bool) {
	if target, ok := disasm.CallTarget(inst); ok {
		return target, true
	}
	bi := disasm.DecodeBranch(inst)
	if bi == nil || bi.IsRet || bi.Indirect {
		return 0, false
	}
	if bi.Target >= start && bi.Target < end {
		return 0, false
	}
	return bi.Target, true
}

func calleeName(target uint64, lookup disasm.SymbolLookup) string {
	if lookup != nil {
		if name, ok := lookup(target); ok {
			return name
		}
	}
	return fmt.Sprintf("0x%x", target)
}
