package optimizer

import "aurorac/internal/mir"

// ConstantFolding replaces a BinOp/UnaryOp whose operands are all
// constants with a plain Assign of the computed constant. It abstains
// (leaves the instruction untouched) on integer overflow and
// division/modulo by zero, per spec.md §4.3 — a folded program must
// behave identically to the unfolded one on every input, and silently
// folding a trap into a value would violate that.
type ConstantFolding struct{}

func (*ConstantFolding) Name() string { return "constant-folding" }

func (p *ConstantFolding) Run(fn *mir.Function) (bool, error) {
	changed := false
	for _, id := range fn.BlockOrder {
		b := fn.Blocks[id]
		for idx, inst := range b.Instructions {
			if uop, ok := inst.(*mir.UnaryOp); ok && !uop.Val.IsValue {
				v, c := uop.Val.Const, mir.Constant{}
				switch {
				case uop.Op == mir.UNeg && v.Kind == mir.ConstInt && (v.Int == 0 || v.Int != -v.Int):
					c = mir.Constant{Kind: mir.ConstInt, Int: -v.Int}
				case uop.Op == mir.UBitNot && v.Kind == mir.ConstInt:
					c = mir.Constant{Kind: mir.ConstInt, Int: ^v.Int}
				case uop.Op == mir.UNot && v.Kind == mir.ConstBool:
					c = mir.Constant{Kind: mir.ConstBool, Bool: !v.Bool}
				default:
					continue // includes negating math.MinInt64: overflow, abstain
				}
				b.Instructions[idx] = fn.MakeConstAssign(uop.Dest(), c, uop.Typ)
				changed = true
				continue
			}
			bop, ok := inst.(*mir.BinOp)
			if !ok {
				continue
			}
			c, ok := foldBinOp(bop)
			if !ok {
				continue
			}
			b.Instructions[idx] = fn.MakeConstAssign(bop.Dest(), c, bop.Typ)
			changed = true
		}
	}
	return changed, nil
}

// foldBinOp attempts constant evaluation of op(lhs, rhs). Returns
// ok=false when either operand is non-constant or the result would
// require abstaining (overflow, div/mod by zero).
func foldBinOp(i *mir.BinOp) (mir.Constant, bool) {
	if i.Lhs.IsValue || i.Rhs.IsValue {
		return mir.Constant{}, false
	}
	l, r := i.Lhs.Const, i.Rhs.Const

	if l.Kind == mir.ConstBool && r.Kind == mir.ConstBool {
		switch i.Op {
		case mir.BAnd:
			return mir.Constant{Kind: mir.ConstBool, Bool: l.Bool && r.Bool}, true
		case mir.BOr:
			return mir.Constant{Kind: mir.ConstBool, Bool: l.Bool || r.Bool}, true
		case mir.BXor:
			return mir.Constant{Kind: mir.ConstBool, Bool: l.Bool != r.Bool}, true
		case mir.BEq:
			return mir.Constant{Kind: mir.ConstBool, Bool: l.Bool == r.Bool}, true
		case mir.BNe:
			return mir.Constant{Kind: mir.ConstBool, Bool: l.Bool != r.Bool}, true
		}
		return mir.Constant{}, false
	}

	if l.Kind != mir.ConstInt || r.Kind != mir.ConstInt {
		return mir.Constant{}, false
	}
	a, b := l.Int, r.Int
	switch i.Op {
	case mir.BAdd:
		sum := a + b
		if (b > 0 && sum < a) || (b < 0 && sum > a) {
			return mir.Constant{}, false // overflow: abstain
		}
		return mir.Constant{Kind: mir.ConstInt, Int: sum}, true
	case mir.BSub:
		diff := a - b
		if (b < 0 && diff < a) || (b > 0 && diff > a) {
			return mir.Constant{}, false
		}
		return mir.Constant{Kind: mir.ConstInt, Int: diff}, true
	case mir.BMul:
		if a == 0 || b == 0 {
			return mir.Constant{Kind: mir.ConstInt, Int: 0}, true
		}
		prod := a * b
		if prod/b != a {
			return mir.Constant{}, false // overflow: abstain
		}
		return mir.Constant{Kind: mir.ConstInt, Int: prod}, true
	case mir.BDiv:
		if b == 0 {
			return mir.Constant{}, false
		}
		return mir.Constant{Kind: mir.ConstInt, Int: a / b}, true
	case mir.BMod:
		if b == 0 {
			return mir.Constant{}, false
		}
		return mir.Constant{Kind: mir.ConstInt, Int: a % b}, true
	case mir.BEq:
		return mir.Constant{Kind: mir.ConstBool, Bool: a == b}, true
	case mir.BNe:
		return mir.Constant{Kind: mir.ConstBool, Bool: a != b}, true
	case mir.BLt:
		return mir.Constant{Kind: mir.ConstBool, Bool: a < b}, true
	case mir.BLe:
		return mir.Constant{Kind: mir.ConstBool, Bool: a <= b}, true
	case mir.BGt:
		return mir.Constant{Kind: mir.ConstBool, Bool: a > b}, true
	case mir.BGe:
		return mir.Constant{Kind: mir.ConstBool, Bool: a >= b}, true
	case mir.BAnd:
		return mir.Constant{Kind: mir.ConstInt, Int: a & b}, true
	case mir.BOr:
		return mir.Constant{Kind: mir.ConstInt, Int: a | b}, true
	case mir.BXor:
		return mir.Constant{Kind: mir.ConstInt, Int: a ^ b}, true
	case mir.BShl:
		return mir.Constant{Kind: mir.ConstInt, Int: a << uint(b)}, true
	case mir.BShr:
		return mir.Constant{Kind: mir.ConstInt, Int: a >> uint(b)}, true
	default:
		return mir.Constant{}, false
	}
}
