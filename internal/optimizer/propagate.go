package optimizer

import "aurorac/internal/mir"

// ConstantPropagation replaces every use of a value defined by an
// Assign-of-constant with that constant directly, so later passes
// (folding, GVN) see constants instead of one-hop copies.
type ConstantPropagation struct{}

func (*ConstantPropagation) Name() string { return "constant-propagation" }

func (p *ConstantPropagation) Run(fn *mir.Function) (bool, error) {
	defs := defMap(fn)
	changed := false
	for v, inst := range defs {
		asn, ok := inst.(*mir.Assign)
		if !ok || asn.Src.IsValue {
			continue
		}
		substituteInPlace(fn, v, asn.Src)
		changed = true
	}
	return changed, nil
}

// CopyPropagation replaces every use of a value defined by a plain
// Assign-of-another-value with that other value directly, chasing
// copy chains down to their ultimate source.
type CopyPropagation struct{}

func (*CopyPropagation) Name() string { return "copy-propagation" }

func (p *CopyPropagation) Run(fn *mir.Function) (bool, error) {
	defs := defMap(fn)
	changed := false
	for v, inst := range defs {
		asn, ok := inst.(*mir.Assign)
		if !ok || !asn.Src.IsValue {
			continue
		}
		root := resolveCopyChain(defs, asn.Src.Value)
		if root == v {
			continue // self-copy, e.g. a collapsed trivial phi; leave it
		}
		substituteInPlace(fn, v, mir.ValOperand(root))
		changed = true
	}
	return changed, nil
}

// resolveCopyChain follows a chain of Assign-of-value definitions to
// its ultimate non-copy source, bounded by the number of values in the
// function so a (theoretically impossible, but defensively guarded)
// cycle can't loop forever.
func resolveCopyChain(defs map[mir.ValueId]mir.Instruction, v mir.ValueId) mir.ValueId {
	seen := make(map[mir.ValueId]bool)
	for {
		if seen[v] {
			return v
		}
		seen[v] = true
		inst, ok := defs[v]
		if !ok {
			return v
		}
		asn, ok := inst.(*mir.Assign)
		if !ok || !asn.Src.IsValue {
			return v
		}
		v = asn.Src.Value
	}
}
