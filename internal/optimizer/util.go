package optimizer

import "aurorac/internal/mir"

// defMap indexes every value-producing instruction in fn by its
// destination, across all blocks, for single-function-scoped def-use
// queries. Rebuilt fresh per pass invocation since passes mutate the
// function between runs.
func defMap(fn *mir.Function) map[mir.ValueId]mir.Instruction {
	m := make(map[mir.ValueId]mir.Instruction)
	for _, id := range fn.BlockOrder {
		for _, inst := range fn.Blocks[id].Instructions {
			if inst.Dest() >= 0 {
				m[inst.Dest()] = inst
			}
		}
	}
	return m
}

// useCounts counts, per value, how many operand slots across the
// whole function reference it.
func useCounts(fn *mir.Function) map[mir.ValueId]int {
	counts := make(map[mir.ValueId]int)
	for _, id := range fn.BlockOrder {
		for _, inst := range fn.Blocks[id].Instructions {
			for _, op := range inst.Operands() {
				if op.IsValue {
					counts[op.Value]++
				}
			}
		}
	}
	return counts
}

// rewriteOperand returns op with any reference to from replaced by to,
// unchanged otherwise.
func rewriteOperand(op mir.Operand, from mir.ValueId, to mir.Operand) mir.Operand {
	if op.IsValue && op.Value == from {
		return to
	}
	return op
}

// substituteInPlace rewrites every operand slot across fn that
// references `from` to instead use `to`. Instruction structs are
// mutated through their concrete type since mir.Instruction exposes
// Operands() for reading but not for writing — each opcode knows its
// own operand fields.
func substituteInPlace(fn *mir.Function, from mir.ValueId, to mir.Operand) {
	for _, id := range fn.BlockOrder {
		for _, inst := range fn.Blocks[id].Instructions {
			substituteInst(inst, from, to)
		}
	}
}

func substituteInst(inst mir.Instruction, from mir.ValueId, to mir.Operand) {
	switch i := inst.(type) {
	case *mir.BinOp:
		i.Lhs = rewriteOperand(i.Lhs, from, to)
		i.Rhs = rewriteOperand(i.Rhs, from, to)
	case *mir.UnaryOp:
		i.Val = rewriteOperand(i.Val, from, to)
	case *mir.Assign:
		i.Src = rewriteOperand(i.Src, from, to)
	case *mir.Call:
		i.Callee = rewriteOperand(i.Callee, from, to)
		for idx := range i.Args {
			i.Args[idx] = rewriteOperand(i.Args[idx], from, to)
		}
	case *mir.Load:
		i.Addr = rewriteOperand(i.Addr, from, to)
	case *mir.Store:
		i.Addr = rewriteOperand(i.Addr, from, to)
		i.Val = rewriteOperand(i.Val, from, to)
	case *mir.Cast:
		i.Val = rewriteOperand(i.Val, from, to)
	case *mir.GetElement:
		i.BaseVal = rewriteOperand(i.BaseVal, from, to)
		i.Index = rewriteOperand(i.Index, from, to)
	case *mir.Phi:
		for idx := range i.Incoming {
			i.Incoming[idx].Value = rewriteOperand(i.Incoming[idx].Value, from, to)
		}
	case *mir.Branch:
		i.Cond = rewriteOperand(i.Cond, from, to)
	case *mir.Return:
		if i.HasVal {
			i.Val = rewriteOperand(i.Val, from, to)
		}
	}
}

// removeInstructions deletes every instruction in fn whose Dest()
// is in dead, preserving order, and reports whether it removed any.
func removeInstructions(fn *mir.Function, dead map[mir.ValueId]bool) bool {
	changed := false
	for _, id := range fn.BlockOrder {
		b := fn.Blocks[id]
		kept := b.Instructions[:0:0]
		for _, inst := range b.Instructions {
			if inst.Dest() >= 0 && dead[inst.Dest()] {
				changed = true
				continue
			}
			kept = append(kept, inst)
		}
		b.Instructions = kept
	}
	return changed
}

// hasSideEffect reports whether inst must be preserved even if its
// result is unused: Store, Call with any non-pure effect, and every
// terminator.
func hasSideEffect(inst mir.Instruction) bool {
	if inst.IsTerminator() {
		return true
	}
	switch i := inst.(type) {
	case *mir.Store:
		return true
	case *mir.Call:
		return !i.Eff.IsPure()
	default:
		return false
	}
}
