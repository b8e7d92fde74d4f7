package optimizer

import (
	"aurorac/internal/mir"
	"aurorac/internal/types"
)

// SROA (scalar replacement of aggregates) splits an Alloca of a named
// aggregate type into one Alloca per field when every use of the
// aggregate's address is a GetElement with a compile-time-constant
// field index — never a direct load/store of the whole aggregate and
// never passed elsewhere as an opaque address — letting later passes
// treat each field as an independent scalar instead of one
// memory-backed aggregate.
type SROA struct{}

func (*SROA) Name() string { return "scalar-replacement-of-aggregates" }

func (p *SROA) Run(fn *mir.Function) (bool, error) {
	changed := false
	for _, bid := range fn.BlockOrder {
		for _, inst := range append([]mir.Instruction{}, fn.Blocks[bid].Instructions...) {
			alloca, ok := inst.(*mir.Alloca)
			if !ok {
				continue
			}
			named, ok := alloca.Elem.(*types.Named)
			if !ok || len(named.Fields) == 0 {
				continue
			}
			geps, splittable := splittableUses(fn, alloca.Dest())
			if !splittable {
				continue
			}
			splitAlloca(fn, bid, alloca, named, geps)
			changed = true
		}
	}
	return changed, nil
}

// splittableUses returns every GetElement that addresses allocaDest
// with a constant field index, and whether those are the *only* uses
// of allocaDest anywhere in the function.
func splittableUses(fn *mir.Function, allocaDest mir.ValueId) ([]*mir.GetElement, bool) {
	var geps []*mir.GetElement
	ok := true
	for _, bid := range fn.BlockOrder {
		for _, inst := range fn.Blocks[bid].Instructions {
			for _, op := range inst.Operands() {
				if !op.IsValue || op.Value != allocaDest {
					continue
				}
				gep, isGep := inst.(*mir.GetElement)
				if !isGep || !gep.IsConstIdx || gep.Index.IsValue || gep.Index.Const.Kind != mir.ConstInt {
					ok = false
					continue
				}
				geps = append(geps, gep)
			}
		}
	}
	return geps, ok && len(geps) > 0
}

func splitAlloca(fn *mir.Function, bid mir.BlockId, alloca *mir.Alloca, named *types.Named, geps []*mir.GetElement) {
	fieldAllocas := make(map[int64]mir.ValueId)
	for _, gep := range geps {
		idx := gep.Index.Const.Int
		addr, ok := fieldAllocas[idx]
		if !ok {
			fieldType := named.Fields[idx].Type
			// Place the field alloca right after the aggregate's own
			// alloca: the block is already terminated, and the new
			// address must be defined before the uses it replaces.
			blk := fn.Blocks[bid]
			pos := 0
			for pos < len(blk.Instructions) && blk.Instructions[pos] != alloca {
				pos++
			}
			rest := append([]mir.Instruction{}, blk.Instructions[pos+1:]...)
			blk.Instructions = blk.Instructions[:pos+1]
			addr = fn.BuildAlloca(bid, fieldType)
			blk.Instructions = append(blk.Instructions, rest...)
			fieldAllocas[idx] = addr
		}
		substituteInPlace(fn, gep.Dest(), mir.ValOperand(addr))
	}
	dead := map[mir.ValueId]bool{alloca.Dest(): true}
	for _, gep := range geps {
		dead[gep.Dest()] = true
	}
	removeInstructions(fn, dead)
}
