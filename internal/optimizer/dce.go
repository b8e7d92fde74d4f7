package optimizer

import "aurorac/internal/mir"

// DeadCodeElimination removes any instruction whose result is never
// used and which has no side effect, per spec.md §4.3. Terminators,
// Store, and non-pure Call instructions are never removed regardless
// of whether their (absent or unused) result is live.
type DeadCodeElimination struct{}

func (*DeadCodeElimination) Name() string { return "dead-code-elimination" }

func (p *DeadCodeElimination) Run(fn *mir.Function) (bool, error) {
	uses := useCounts(fn)
	dead := make(map[mir.ValueId]bool)
	for _, id := range fn.BlockOrder {
		for _, inst := range fn.Blocks[id].Instructions {
			if inst.Dest() < 0 {
				continue
			}
			if hasSideEffect(inst) {
				continue
			}
			if uses[inst.Dest()] == 0 {
				dead[inst.Dest()] = true
			}
		}
	}
	if len(dead) == 0 {
		return false, nil
	}
	return removeInstructions(fn, dead), nil
}
