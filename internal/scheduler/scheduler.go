// Package scheduler reorders each basic block's instructions with a
// latency-aware list scheduler, grounded on original_source/crates/
// aurora_air/src/schedule.rs: compute per-instruction RAW/WAR/WAW
// register dependencies, then repeatedly pick the highest-latency
// ready instruction so long-latency operations issue as early as
// their dependencies allow.
package scheduler

import "aurorac/internal/air"

// CPUProfile names a target's per-opcode latency table. The three
// profiles mirror the Rust original's Skylake/Zen/Generic split,
// renamed to match spec.md §6's generic/falcon/harrier target names.
type CPUProfile struct {
	Name      string
	latencies map[air.Opcode]uint32
}

func Generic() CPUProfile {
	return CPUProfile{Name: "generic", latencies: map[air.Opcode]uint32{
		air.OpMov: 1, air.OpAdd: 1, air.OpSub: 1, air.OpImul: 3, air.OpIdiv: 20,
		air.OpAnd: 1, air.OpOr: 1, air.OpXor: 1, air.OpShl: 1, air.OpShr: 1, air.OpSar: 1,
		air.OpLea: 1, air.OpCmp: 1, air.OpTest: 1, air.OpCall: 4,
	}}
}

// Falcon is a Skylake-like profile: fast integer ALU ops, cheaper
// multiply than Harrier, expensive divide.
func Falcon() CPUProfile {
	return CPUProfile{Name: "falcon", latencies: map[air.Opcode]uint32{
		air.OpMov: 1, air.OpAdd: 1, air.OpSub: 1, air.OpImul: 3, air.OpIdiv: 20,
		air.OpAnd: 1, air.OpOr: 1, air.OpXor: 1, air.OpShl: 1, air.OpShr: 1, air.OpSar: 1,
		air.OpLea: 1, air.OpCmp: 1, air.OpTest: 1, air.OpCall: 2,
	}}
}

// Harrier is a Zen-like profile: slightly higher multiply/divide
// latency than Falcon.
func Harrier() CPUProfile {
	return CPUProfile{Name: "harrier", latencies: map[air.Opcode]uint32{
		air.OpMov: 1, air.OpAdd: 1, air.OpSub: 1, air.OpImul: 4, air.OpIdiv: 24,
		air.OpAnd: 1, air.OpOr: 1, air.OpXor: 1, air.OpShl: 1, air.OpShr: 1, air.OpSar: 1,
		air.OpLea: 1, air.OpCmp: 1, air.OpTest: 1, air.OpCall: 2,
	}}
}

func ProfileByName(name string) CPUProfile {
	switch name {
	case "falcon":
		return Falcon()
	case "harrier":
		return Harrier()
	default:
		return Generic()
	}
}

func (p CPUProfile) latency(op air.Opcode) uint32 {
	if l, ok := p.latencies[op]; ok {
		return l
	}
	return 1
}

// Scheduler reorders AIR instructions block by block.
type Scheduler struct {
	Profile        CPUProfile
	scheduledCount int
}

func New(profile CPUProfile) *Scheduler { return &Scheduler{Profile: profile} }

func (s *Scheduler) ScheduledCount() int { return s.scheduledCount }

// Schedule rewrites fn.Instructions in place, reordering each
// straight-line run between block boundaries (labels, jumps, calls,
// returns — boundaries themselves are never reordered or moved).
func (s *Scheduler) Schedule(fn *air.Function) {
	var out []air.Instr
	var run []air.Instr
	flush := func() {
		if len(run) > 0 {
			out = append(out, s.scheduleBlock(run)...)
			run = nil
		}
	}
	for _, ins := range fn.Instructions {
		if isBoundary(ins) {
			flush()
			out = append(out, ins)
			continue
		}
		run = append(run, ins)
	}
	flush()
	fn.Instructions = out
}

func isBoundary(ins air.Instr) bool {
	switch ins.Op {
	case air.OpLabelDecl, air.OpCall, air.OpRet:
		return true
	default:
		return ins.Op.IsJump()
	}
}

type deps struct {
	reads, writes map[air.Register]bool
	latency       uint32
}

func (s *Scheduler) scheduleBlock(block []air.Instr) []air.Instr {
	if len(block) <= 1 {
		s.scheduledCount += len(block)
		return block
	}

	info := make([]deps, len(block))
	for i, ins := range block {
		info[i] = deps{reads: readsOf(ins), writes: writesOf(ins), latency: s.Profile.latency(ins.Op)}
	}

	dependsOn := make([][]int, len(block))
	for i := range block {
		for j := 0; j < i; j++ {
			if hasDependency(info[j], info[i]) {
				dependsOn[i] = append(dependsOn[i], j)
			}
		}
	}

	completed := make([]bool, len(block))
	var ready []int
	for i := range block {
		if len(dependsOn[i]) == 0 {
			ready = append(ready, i)
		}
	}

	var scheduled []air.Instr
	for len(ready) > 0 {
		bestPos := 0
		var bestScore int32 = -1
		for pos, idx := range ready {
			score := int32(info[idx].latency)
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}
		chosen := ready[bestPos]
		ready = append(ready[:bestPos], ready[bestPos+1:]...)

		scheduled = append(scheduled, block[chosen])
		completed[chosen] = true
		s.scheduledCount++

		for i := range block {
			if completed[i] || contains(ready, i) {
				continue
			}
			allDone := true
			for _, d := range dependsOn[i] {
				if !completed[d] {
					allDone = false
					break
				}
			}
			if allDone {
				ready = append(ready, i)
			}
		}
	}
	return scheduled
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func hasDependency(earlier, later deps) bool {
	for w := range earlier.writes {
		if later.reads[w] {
			return true // RAW
		}
	}
	for r := range earlier.reads {
		if later.writes[r] {
			return true // WAR
		}
	}
	for w := range earlier.writes {
		if later.writes[w] {
			return true // WAW
		}
	}
	return false
}

func regOf(op air.Operand) (air.Register, bool) {
	switch op.Kind {
	case air.OpReg:
		return op.Reg, true
	case air.OpMem:
		return op.Base, true
	default:
		return 0, false
	}
}

func readsOf(ins air.Instr) map[air.Register]bool {
	reads := map[air.Register]bool{}
	add := func(op air.Operand, has bool) {
		if !has {
			return
		}
		if r, ok := regOf(op); ok {
			reads[r] = true
		}
		if op.Kind == air.OpMem && op.HasIndex {
			reads[op.Index] = true
		}
	}
	switch ins.Op {
	case air.OpMov, air.OpMovzx, air.OpMovsx, air.OpLea:
		add(ins.Src, ins.HasSrc)
	case air.OpIdiv:
		reads[air.RAX] = true
		reads[air.RDX] = true
		add(ins.Dst, ins.HasDst)
	case air.OpCmp, air.OpTest:
		add(ins.Dst, ins.HasDst)
		add(ins.Src, ins.HasSrc)
	case air.OpPush:
		add(ins.Dst, ins.HasDst)
	default:
		// Two-address arithmetic/logic ops read both operands.
		add(ins.Dst, ins.HasDst)
		add(ins.Src, ins.HasSrc)
	}
	return reads
}

func writesOf(ins air.Instr) map[air.Register]bool {
	writes := map[air.Register]bool{}
	switch ins.Op {
	case air.OpMov, air.OpLea, air.OpMovzx, air.OpMovsx,
		air.OpAdd, air.OpSub, air.OpImul, air.OpAnd, air.OpOr, air.OpXor,
		air.OpShl, air.OpShr, air.OpSar:
		if ins.HasDst {
			if r, ok := regOf(ins.Dst); ok {
				writes[r] = true
			}
		}
	case air.OpIdiv:
		writes[air.RAX] = true
		writes[air.RDX] = true
	case air.OpPop:
		if ins.HasDst {
			if r, ok := regOf(ins.Dst); ok {
				writes[r] = true
			}
		}
	}
	return writes
}
