package optimizer

import "aurorac/internal/mir"

// NRVO recognizes the "tmp := ...; return tmp" pattern on a
// function's only return path and elides the temporary copy, so the
// returned value is produced directly rather than assigned into an
// intermediate SSA name first.
type NRVO struct{}

func (*NRVO) Name() string { return "named-return-value-optimization" }

func (p *NRVO) Run(fn *mir.Function) (bool, error) {
	var onlyReturn *mir.Return
	var onlyReturnBlock mir.BlockId
	count := 0
	for _, bid := range fn.BlockOrder {
		for _, inst := range fn.Blocks[bid].Instructions {
			if ret, ok := inst.(*mir.Return); ok {
				count++
				onlyReturn = ret
				onlyReturnBlock = bid
			}
		}
	}
	if count != 1 || onlyReturn == nil || !onlyReturn.HasVal || !onlyReturn.Val.IsValue {
		return false, nil
	}

	b := fn.Blocks[onlyReturnBlock]
	if len(b.Instructions) < 2 {
		return false, nil
	}
	prev := b.Instructions[len(b.Instructions)-2]
	asn, ok := prev.(*mir.Assign)
	if !ok || asn.Dest() != onlyReturn.Val.Value {
		return false, nil
	}
	if useCounts(fn)[asn.Dest()] != 1 {
		return false, nil // the temporary is used elsewhere too; not a pure NRVO candidate
	}

	onlyReturn.Val = asn.Src
	b.Instructions = append(b.Instructions[:len(b.Instructions)-2], b.Instructions[len(b.Instructions)-1])
	return true, nil
}
