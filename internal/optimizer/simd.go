package optimizer

import (
	"aurorac/internal/cfg"
	"aurorac/internal/mir"
)

// LoopSIMD tags countable loops whose bodies contain no Store and no
// Call with a non-pure effect as candidates for a hypothetical
// downstream vectorizer. It changes no instructions — only records
// the loop headers in Function.SIMDLoops — matching "tagging slots"
// in spec.md §2's pass table.
type LoopSIMD struct{}

func (*LoopSIMD) Name() string { return "loop-simd-tagging" }

func (p *LoopSIMD) Run(fn *mir.Function) (bool, error) {
	c := cfg.Build(fn)
	dt := cfg.ComputeDominators(c)
	loops := cfg.FindLoops(c, dt)

	body := make(map[mir.BlockId]bool)
	changed := false
	for _, loop := range loops {
		if !isCountable(fn, loop) {
			continue
		}
		for _, b := range loop.Body {
			body[b] = true
		}
		if hasSideEffectingCall(fn, body) {
			for k := range body {
				delete(body, k)
			}
			continue
		}
		if !containsBlock(fn.SIMDLoops, loop.Header) {
			fn.SIMDLoops = append(fn.SIMDLoops, loop.Header)
			changed = true
		}
		for k := range body {
			delete(body, k)
		}
	}
	return changed, nil
}

// isCountable reports whether loop's header branches on an ordering
// comparison (<, <=, >, >=) that has a phi of the header as one of its
// operands — the hallmark of a simple counted loop. Where the other
// operand is defined is not checked.
func isCountable(fn *mir.Function, loop *cfg.Loop) bool {
	header := fn.Blocks[loop.Header]
	term := header.Terminator()
	branch, ok := term.(*mir.Branch)
	if !ok || !branch.Cond.IsValue {
		return false
	}
	var cmp *mir.BinOp
	for _, inst := range header.Instructions {
		if b, ok := inst.(*mir.BinOp); ok && b.Dest() == branch.Cond.Value {
			cmp = b
			break
		}
	}
	if cmp == nil {
		return false
	}
	switch cmp.Op {
	case mir.BLt, mir.BLe, mir.BGt, mir.BGe:
	default:
		return false
	}
	return (cmp.Lhs.IsValue && isPhiIn(fn, loop.Header, cmp.Lhs.Value)) ||
		(cmp.Rhs.IsValue && isPhiIn(fn, loop.Header, cmp.Rhs.Value))
}

func isPhiIn(fn *mir.Function, block mir.BlockId, v mir.ValueId) bool {
	return mir.FindPhi(fn, block, v) != nil
}

func hasSideEffectingCall(fn *mir.Function, body map[mir.BlockId]bool) bool {
	for b := range body {
		for _, inst := range fn.Blocks[b].Instructions {
			if call, ok := inst.(*mir.Call); ok && !call.Eff.IsPure() {
				return true
			}
			if _, ok := inst.(*mir.Store); ok {
				return true
			}
		}
	}
	return false
}

func containsBlock(s []mir.BlockId, v mir.BlockId) bool {
	for _, b := range s {
		if b == v {
			return true
		}
	}
	return false
}
