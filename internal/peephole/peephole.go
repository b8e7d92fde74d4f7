// Package peephole runs local, window-based rewrites over an already
// register-allocated AIR instruction stream: dead move elimination,
// move-chain propagation, LEA folding, algebraic simplification,
// strength reduction, redundant load/store removal, branch
// simplification, and NOP cleanup. Grounded on original_source/crates/
// aurora_air/src/peephole.rs's pattern set, generalized past that
// source's hardcoded-register operand equality to the Go Operand
// value type.
package peephole

import "aurorac/internal/air"

// MaxPasses bounds the fixed-point loop the same way the Rust
// original does: re-run the full rewrite catalog until nothing more
// changes or the cap is hit.
const MaxPasses = 5

// Optimizer tracks how many rewrites were applied, mirroring the
// original's optimizations_applied counter (useful for -emit-stats
// style diagnostics, not load-bearing for correctness).
type Optimizer struct {
	applied int
}

// Optimize rewrites fn.Instructions in place.
func (o *Optimizer) Optimize(fn *air.Function) {
	passes := 0
	for passes < MaxPasses {
		before := o.applied
		o.deadMovElimination(fn)
		o.movPropagation(fn)
		o.leaPatterns(fn)
		o.algebraicSimplifications(fn)
		o.strengthReduction(fn)
		o.redundantLoadStore(fn)
		o.branchSimplification(fn)
		o.removeNops(fn)
		passes++
		if o.applied == before {
			break
		}
	}
}

func (o *Optimizer) OptimizationsApplied() int { return o.applied }

func operandEqual(a, b air.Operand) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case air.OpReg:
		return a.Reg == b.Reg
	case air.OpImm, air.OpVReg:
		return a.Imm == b.Imm
	case air.OpMem, air.OpMemVReg:
		return a.Base == b.Base && a.Offset == b.Offset && a.Index == b.Index && a.HasIndex == b.HasIndex && a.Scale == b.Scale && a.Imm == b.Imm
	case air.OpLabel:
		return a.Label == b.Label
	default:
		return false
	}
}

func isImm(op air.Operand, v int64) bool { return op.Kind == air.OpImm && op.Imm == v }

func removeIndices(instrs []air.Instr, idxs []int) []air.Instr {
	if len(idxs) == 0 {
		return instrs
	}
	drop := make(map[int]bool, len(idxs))
	for _, i := range idxs {
		drop[i] = true
	}
	out := instrs[:0:0]
	for i, ins := range instrs {
		if !drop[i] {
			out = append(out, ins)
		}
	}
	return out
}

// deadMovElimination removes `mov X, X`.
func (o *Optimizer) deadMovElimination(fn *air.Function) {
	var remove []int
	for i, ins := range fn.Instructions {
		if ins.Op == air.OpMov && ins.HasDst && ins.HasSrc && operandEqual(ins.Dst, ins.Src) {
			remove = append(remove, i)
			o.applied++
		}
	}
	fn.Instructions = removeIndices(fn.Instructions, remove)
}

// movPropagation rewrites `mov d1, s1; mov d2, d1` into
// `mov d1, s1; mov d2, s1` when s1 is a register and s1 != d2, so a
// later dead-move pass or the scheduler has one less dependency edge
// to respect.
func (o *Optimizer) movPropagation(fn *air.Function) {
	for i := 0; i+1 < len(fn.Instructions); i++ {
		a, b := fn.Instructions[i], fn.Instructions[i+1]
		if a.Op != air.OpMov || b.Op != air.OpMov {
			continue
		}
		if !operandEqual(b.Src, a.Dst) {
			continue
		}
		if operandEqual(a.Src, b.Dst) {
			continue
		}
		if a.Src.Kind != air.OpReg {
			continue
		}
		fn.Instructions[i+1].Src = a.Src
		o.applied++
	}
}

// leaPatterns folds `mov d, base; add d, imm` into `lea d, [base+imm]`
// and combines consecutive `add d, imm1; add d, imm2` into one add.
func (o *Optimizer) leaPatterns(fn *air.Function) {
	var out []air.Instr
	i := 0
	for i < len(fn.Instructions) {
		if i+1 < len(fn.Instructions) {
			a, b := fn.Instructions[i], fn.Instructions[i+1]
			if a.Op == air.OpMov && b.Op == air.OpAdd && operandEqual(a.Dst, b.Dst) &&
				a.Dst.Kind == air.OpReg && a.Src.Kind == air.OpReg && b.Src.Kind == air.OpImm {
				out = append(out, air.Instr{Op: air.OpLea, Dst: a.Dst, Src: air.Mem(a.Src.Reg, b.Src.Imm), HasDst: true, HasSrc: true})
				o.applied++
				i += 2
				continue
			}
			if a.Op == air.OpAdd && b.Op == air.OpAdd && operandEqual(a.Dst, b.Dst) &&
				a.Src.Kind == air.OpImm && b.Src.Kind == air.OpImm {
				out = append(out, air.Instr{Op: air.OpAdd, Dst: a.Dst, Src: air.Imm(a.Src.Imm + b.Src.Imm), HasDst: true, HasSrc: true})
				o.applied++
				i += 2
				continue
			}
		}
		out = append(out, fn.Instructions[i])
		i++
	}
	fn.Instructions = out
}

// algebraicSimplifications removes identity operations (add/sub 0,
// imul 1, or 0, and -1, shl/shr 0) and rewrites `imul d, 0` into a
// zeroing xor.
func (o *Optimizer) algebraicSimplifications(fn *air.Function) {
	var remove []int
	for i, ins := range fn.Instructions {
		isIdentity := false
		switch ins.Op {
		case air.OpAdd, air.OpSub, air.OpOr, air.OpXor, air.OpShl, air.OpShr:
			isIdentity = isImm(ins.Src, 0)
		case air.OpImul:
			isIdentity = isImm(ins.Src, 1)
		case air.OpAnd:
			isIdentity = isImm(ins.Src, -1)
		}
		if isIdentity {
			remove = append(remove, i)
			o.applied++
		}
	}
	fn.Instructions = removeIndices(fn.Instructions, remove)

	for i, ins := range fn.Instructions {
		if ins.Op == air.OpImul && isImm(ins.Src, 0) {
			fn.Instructions[i] = air.Instr{Op: air.OpXor, Dst: ins.Dst, Src: ins.Dst, HasDst: true, HasSrc: true}
			o.applied++
		}
	}
}

// strengthReduction rewrites `imul d, 2` into `add d, d` and
// `imul d, 2^k` into `shl d, k`.
func (o *Optimizer) strengthReduction(fn *air.Function) {
	for i, ins := range fn.Instructions {
		if ins.Op != air.OpImul || ins.Src.Kind != air.OpImm {
			continue
		}
		n := ins.Src.Imm
		if n == 2 {
			fn.Instructions[i] = air.Instr{Op: air.OpAdd, Dst: ins.Dst, Src: ins.Dst, HasDst: true, HasSrc: true}
			o.applied++
			continue
		}
		if n > 0 && n&(n-1) == 0 {
			shift := trailingZeros(n)
			fn.Instructions[i] = air.Instr{Op: air.OpShl, Dst: ins.Dst, Src: air.Imm(shift), HasDst: true, HasSrc: true}
			o.applied++
		}
	}
}

func trailingZeros(n int64) int64 {
	var count int64
	for n&1 == 0 {
		n >>= 1
		count++
	}
	return count
}

// redundantLoadStore removes `mov [mem], r; mov r, [mem]` pairs —
// the reload is provably the value just stored.
func (o *Optimizer) redundantLoadStore(fn *air.Function) {
	var remove []int
	for i := 0; i+1 < len(fn.Instructions); i++ {
		a, b := fn.Instructions[i], fn.Instructions[i+1]
		if a.Op != air.OpMov || b.Op != air.OpMov {
			continue
		}
		if a.Dst.Kind != air.OpMem || a.Src.Kind != air.OpReg {
			continue
		}
		if b.Dst.Kind != air.OpReg || b.Src.Kind != air.OpMem {
			continue
		}
		if a.Src.Reg == b.Dst.Reg {
			remove = append(remove, i+1)
			o.applied++
		}
	}
	fn.Instructions = removeIndices(fn.Instructions, remove)
}

// branchSimplification collapses `test x, x; jne L; jmp L` (both
// branches target the same label) into an unconditional jump.
func (o *Optimizer) branchSimplification(fn *air.Function) {
	var remove []int
	for i := 0; i+2 < len(fn.Instructions); i++ {
		test, jne, jmp := fn.Instructions[i], fn.Instructions[i+1], fn.Instructions[i+2]
		if test.Op == air.OpTest && jne.Op == air.OpJne && jmp.Op == air.OpJmp && jne.Label == jmp.Label {
			remove = append(remove, i, i+1)
			o.applied++
		}
	}
	fn.Instructions = removeIndices(fn.Instructions, remove)
}

// removeNops drops every OpNop.
func (o *Optimizer) removeNops(fn *air.Function) {
	before := len(fn.Instructions)
	var kept []air.Instr
	for _, ins := range fn.Instructions {
		if ins.Op != air.OpNop {
			kept = append(kept, ins)
		}
	}
	o.applied += before - len(kept)
	fn.Instructions = kept
}
