package optimizer

import "aurorac/internal/mir"

// Devirtualization resolves an indirect Call whose callee operand is a
// phi merging two or more branches that all carry the same
// compile-time-constant function name to a direct call on that
// function — the case plain constant propagation can't reach because
// the callee isn't a single Assign-of-constant, it's a join of
// several identical ones.
type Devirtualization struct{}

func (*Devirtualization) Name() string { return "devirtualization" }

func (p *Devirtualization) Run(fn *mir.Function) (bool, error) {
	defs := defMap(fn)
	changed := false
	for _, bid := range fn.BlockOrder {
		for _, inst := range fn.Blocks[bid].Instructions {
			call, ok := inst.(*mir.Call)
			if !ok || !call.Callee.IsValue {
				continue
			}
			phi, ok := defs[call.Callee.Value].(*mir.Phi)
			if !ok || len(phi.Incoming) == 0 {
				continue
			}
			name, uniform := uniformCalleeName(phi)
			if !uniform {
				continue
			}
			call.Callee = mir.ConstOperand(mir.Constant{Kind: mir.ConstString, Str: name})
			changed = true
		}
	}
	return changed, nil
}

func uniformCalleeName(phi *mir.Phi) (string, bool) {
	var name string
	for i, e := range phi.Incoming {
		if e.Value.IsValue || e.Value.Const.Kind != mir.ConstString {
			return "", false
		}
		if i == 0 {
			name = e.Value.Const.Str
			continue
		}
		if e.Value.Const.Str != name {
			return "", false
		}
	}
	return name, true
}
