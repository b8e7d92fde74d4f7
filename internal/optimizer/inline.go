package optimizer

import (
	"aurorac/internal/mir"
	"aurorac/internal/types"
)

// Inlining substitutes a direct call's callee body into the caller,
// renaming every value and block into the caller's namespace and
// splicing the callee's blocks in place of the call instruction. It
// refuses to inline a function into itself (direct self-recursion)
// and refuses across an effect mismatch where the callee requires
// EffectUnsafe but the caller doesn't already carry it, per spec.md
// §4.3. Budget counts callee instructions; a callee larger than
// Budget is left uninlined.
type Inlining struct {
	Budget int
	Lookup func(name string) *mir.Function
}

func (*Inlining) Name() string { return "inlining" }

func (p *Inlining) Run(fn *mir.Function) (bool, error) {
	if p.Lookup == nil {
		return false, nil
	}
	for _, bid := range fn.BlockOrder {
		b := fn.Blocks[bid]
		for idx, inst := range b.Instructions {
			call, ok := inst.(*mir.Call)
			if !ok || call.Callee.IsValue || call.Callee.Const.Kind != mir.ConstString {
				continue
			}
			callee := p.Lookup(call.Callee.Const.Str)
			if callee == nil || !p.eligible(fn, callee) {
				continue
			}
			inlineCall(fn, bid, idx, call, callee)
			return true, nil // structure changed; let the fixed point re-scan
		}
	}
	return false, nil
}

func (p *Inlining) eligible(caller, callee *mir.Function) bool {
	if callee.Name == caller.Name {
		return false // self-recursion
	}
	if instructionCount(callee) > p.Budget {
		return false
	}
	if callee.Effects.Has(types.EffectUnsafe) && !caller.Effects.Has(types.EffectUnsafe) {
		return false
	}
	return true
}

func instructionCount(fn *mir.Function) int {
	n := 0
	for _, id := range fn.BlockOrder {
		n += len(fn.Blocks[id].Instructions)
	}
	return n
}

// inlineCall splices callee into caller at (bid, idx): it splits bid
// at idx into a head (everything up to the call) and a continuation
// block holding everything after the call (including bid's original
// terminator), remaps every callee value/block into freshly allocated
// caller IDs via the usual Build* constructors, binds callee
// parameters directly to the call's argument operands, rewrites every
// callee Return into a jump to the continuation (joined by a phi when
// the callee returns from more than one block), and rewires the call
// site's former uses of the call's result to that phi (or the sole
// return value).
func inlineCall(caller *mir.Function, bid mir.BlockId, idx int, call *mir.Call, callee *mir.Function) {
	head := caller.Blocks[bid]
	before := append([]mir.Instruction{}, head.Instructions[:idx]...)
	after := append([]mir.Instruction{}, head.Instructions[idx+1:]...)

	cont := caller.NewBlock()
	caller.Blocks[cont].Instructions = after
	head.Instructions = before

	blockMap := make(map[mir.BlockId]mir.BlockId, len(callee.BlockOrder))
	for _, cb := range callee.BlockOrder {
		blockMap[cb] = caller.NewBlock()
	}
	valueMap := make(map[mir.ValueId]mir.Operand, len(callee.ValueTypes))
	for i, p := range callee.Params {
		if i < len(call.Args) {
			valueMap[p] = call.Args[i]
		}
	}
	rm := func(op mir.Operand) mir.Operand { return remapOperand(op, valueMap) }

	var returnPhiEdges []mir.PhiEdge
	for _, cb := range callee.BlockOrder {
		nb := blockMap[cb]
		for _, inst := range callee.Blocks[cb].Instructions {
			switch i := inst.(type) {
			case *mir.Return:
				caller.BuildJump(nb, cont)
				if i.HasVal {
					returnPhiEdges = append(returnPhiEdges, mir.PhiEdge{Block: nb, Value: rm(i.Val)})
				}
			case *mir.BinOp:
				d := caller.BuildBinOp(nb, i.Op, rm(i.Lhs), rm(i.Rhs), i.Typ)
				valueMap[i.Dest()] = mir.ValOperand(d)
			case *mir.UnaryOp:
				d := caller.BuildUnaryOp(nb, i.Op, rm(i.Val), i.Typ)
				valueMap[i.Dest()] = mir.ValOperand(d)
			case *mir.Assign:
				d := caller.BuildAssign(nb, rm(i.Src), i.Typ)
				valueMap[i.Dest()] = mir.ValOperand(d)
			case *mir.Call:
				args := make([]mir.Operand, len(i.Args))
				for ai, a := range i.Args {
					args[ai] = rm(a)
				}
				d := caller.BuildCall(nb, rm(i.Callee), args, i.Typ, i.Eff)
				if d >= 0 {
					valueMap[i.Dest()] = mir.ValOperand(d)
				}
			case *mir.Load:
				d := caller.BuildLoad(nb, rm(i.Addr), i.Typ)
				valueMap[i.Dest()] = mir.ValOperand(d)
			case *mir.Store:
				caller.BuildStore(nb, rm(i.Addr), rm(i.Val))
			case *mir.Alloca:
				d := caller.BuildAlloca(nb, i.Elem)
				valueMap[i.Dest()] = mir.ValOperand(d)
			case *mir.Cast:
				d := caller.BuildCast(nb, rm(i.Val), i.To)
				valueMap[i.Dest()] = mir.ValOperand(d)
			case *mir.GetElement:
				d := caller.BuildGetElement(nb, rm(i.BaseVal), rm(i.Index), i.IsConstIdx, i.Typ)
				valueMap[i.Dest()] = mir.ValOperand(d)
			case *mir.Phi:
				edges := make([]mir.PhiEdge, len(i.Incoming))
				for ei, e := range i.Incoming {
					edges[ei] = mir.PhiEdge{Block: blockMap[e.Block], Value: rm(e.Value)}
				}
				d := caller.PrependPhi(nb, i.Typ, nil)
				p := mir.FindPhi(caller, nb, d)
				p.Incoming = edges
				valueMap[i.Dest()] = mir.ValOperand(d)
			case *mir.Jump:
				caller.BuildJump(nb, blockMap[i.Target])
			case *mir.Branch:
				caller.BuildBranch(nb, rm(i.Cond), blockMap[i.Then], blockMap[i.Else])
			}
		}
	}

	caller.BuildJump(bid, blockMap[callee.Entry])

	if call.Dest() >= 0 {
		if len(returnPhiEdges) == 1 {
			substituteInPlace(caller, call.Dest(), returnPhiEdges[0].Value)
		} else if len(returnPhiEdges) > 1 {
			phiVal := caller.PrependPhi(cont, call.Typ, returnPhiEdges)
			substituteInPlace(caller, call.Dest(), mir.ValOperand(phiVal))
		}
	}
}

func remapOperand(op mir.Operand, valueMap map[mir.ValueId]mir.Operand) mir.Operand {
	if !op.IsValue {
		return op
	}
	if mapped, ok := valueMap[op.Value]; ok {
		return mapped
	}
	return op
}
