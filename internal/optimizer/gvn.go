package optimizer

import (
	"fmt"

	"aurorac/internal/cfg"
	"aurorac/internal/mir"
)

// GlobalValueNumbering canonicalizes pure computations to a string key
// (operator plus operands, commutative operators with operands sorted
// into a stable order) and replaces a later redundant computation with
// the value of an earlier equivalent one, provided the earlier
// computation's block dominates the later one — otherwise the earlier
// value isn't guaranteed to be available on every path reaching the
// later use.
type GlobalValueNumbering struct{}

func (*GlobalValueNumbering) Name() string { return "global-value-numbering" }

type gvnEntry struct {
	value mir.ValueId
	block mir.BlockId
}

func (p *GlobalValueNumbering) Run(fn *mir.Function) (bool, error) {
	c := cfg.Build(fn)
	dt := cfg.ComputeDominators(c)

	available := make(map[string]gvnEntry)
	replace := make(map[mir.ValueId]mir.ValueId)

	for _, b := range c.RPO {
		for _, inst := range fn.Blocks[b].Instructions {
			key, ok := canonicalKey(inst)
			if !ok {
				continue
			}
			if entry, found := available[key]; found && dt.Dominates(entry.block, b) {
				replace[inst.Dest()] = entry.value
				continue
			}
			available[key] = gvnEntry{value: inst.Dest(), block: b}
		}
	}

	if len(replace) == 0 {
		return false, nil
	}
	// Only a substitution that rewrites a remaining use is a change; a
	// redundant instruction already left without uses (for DCE) is not.
	uses := useCounts(fn)
	changed := false
	for from, to := range replace {
		if uses[from] > 0 {
			changed = true
		}
		substituteInPlace(fn, from, mir.ValOperand(to))
	}
	return changed, nil
}

// canonicalKey returns a string uniquely identifying a pure
// computation's operator and operands, or ok=false for instructions
// GVN never deduplicates (anything with a side effect, or without a
// destination).
func canonicalKey(inst mir.Instruction) (string, bool) {
	if inst.Dest() < 0 || hasSideEffect(inst) {
		return "", false
	}
	switch i := inst.(type) {
	case *mir.BinOp:
		lhs, rhs := i.Lhs.String(), i.Rhs.String()
		if isCommutative(i.Op) && lhs > rhs {
			lhs, rhs = rhs, lhs
		}
		return fmt.Sprintf("bin:%s:%s:%s", i.Op, lhs, rhs), true
	case *mir.UnaryOp:
		return fmt.Sprintf("un:%s:%s", i.Op, i.Val), true
	case *mir.Cast:
		return fmt.Sprintf("cast:%s:%s", i.To.String(), i.Val), true
	case *mir.GetElement:
		return fmt.Sprintf("gep:%s:%s:%v", i.BaseVal, i.Index, i.IsConstIdx), true
	default:
		return "", false
	}
}

func isCommutative(op mir.BinOpKind) bool {
	switch op {
	case mir.BAdd, mir.BMul, mir.BEq, mir.BNe, mir.BAnd, mir.BOr, mir.BXor:
		return true
	default:
		return false
	}
}
