package optimizer

import (
	"testing"

	"aurorac/internal/cfg"
	"aurorac/internal/mir"
	"aurorac/internal/types"
)

func constI(v int64) mir.Operand {
	return mir.ConstOperand(mir.Constant{Kind: mir.ConstInt, Int: v})
}

func TestConstantFoldingAddsKnownOperands(t *testing.T) {
	fn := mir.NewFunction("f", types.I64, types.Pure)
	d := fn.BuildBinOp(fn.Entry, mir.BAdd, constI(2), constI(3), types.I64)
	fn.BuildReturn(fn.Entry, mir.ValOperand(d), true)

	pass := &ConstantFolding{}
	changed, err := pass.Run(fn)
	if err != nil || !changed {
		t.Fatalf("expected fold to change the function, err=%v changed=%v", err, changed)
	}
	inst := fn.Blocks[fn.Entry].Instructions[0]
	asn, ok := inst.(*mir.Assign)
	if !ok {
		t.Fatalf("expected folded instruction to become an Assign, got %T", inst)
	}
	if asn.Src.Const.Int != 5 {
		t.Errorf("expected folded value 5, got %d", asn.Src.Const.Int)
	}
}

func TestConstantFoldingAbstainsOnOverflow(t *testing.T) {
	fn := mir.NewFunction("f", types.I64, types.Pure)
	maxInt := mir.ConstOperand(mir.Constant{Kind: mir.ConstInt, Int: 9223372036854775807})
	d := fn.BuildBinOp(fn.Entry, mir.BAdd, maxInt, constI(1), types.I64)
	fn.BuildReturn(fn.Entry, mir.ValOperand(d), true)

	pass := &ConstantFolding{}
	changed, _ := pass.Run(fn)
	if changed {
		t.Error("constant folding should abstain on overflow, not fold it")
	}
}

func TestConstantFoldingAbstainsOnDivByZero(t *testing.T) {
	fn := mir.NewFunction("f", types.I64, types.Pure)
	d := fn.BuildBinOp(fn.Entry, mir.BDiv, constI(10), constI(0), types.I64)
	fn.BuildReturn(fn.Entry, mir.ValOperand(d), true)

	pass := &ConstantFolding{}
	changed, _ := pass.Run(fn)
	if changed {
		t.Error("constant folding should abstain on division by zero")
	}
}

func TestDeadCodeEliminationRemovesUnusedPureValue(t *testing.T) {
	fn := mir.NewFunction("f", types.Unit, types.Pure)
	fn.BuildBinOp(fn.Entry, mir.BAdd, constI(1), constI(2), types.I64) // unused result
	fn.BuildReturn(fn.Entry, mir.Operand{}, false)

	before := len(fn.Blocks[fn.Entry].Instructions)
	pass := &DeadCodeElimination{}
	changed, err := pass.Run(fn)
	if err != nil || !changed {
		t.Fatalf("expected DCE to remove the dead BinOp, err=%v changed=%v", err, changed)
	}
	after := len(fn.Blocks[fn.Entry].Instructions)
	if after != before-1 {
		t.Errorf("expected one instruction removed, before=%d after=%d", before, after)
	}
}

func TestDeadCodeEliminationKeepsStore(t *testing.T) {
	fn := mir.NewFunction("f", types.Unit, types.Pure)
	addr := fn.BuildAlloca(fn.Entry, types.I64)
	fn.BuildStore(fn.Entry, mir.ValOperand(addr), constI(1))
	fn.BuildReturn(fn.Entry, mir.Operand{}, false)

	pass := &DeadCodeElimination{}
	_, _ = pass.Run(fn)
	for _, inst := range fn.Blocks[fn.Entry].Instructions {
		if _, ok := inst.(*mir.Store); ok {
			return
		}
	}
	t.Error("DCE must never remove a Store even when its address is otherwise unused")
}

func TestGlobalValueNumberingDeduplicatesRedundantComputation(t *testing.T) {
	fn := mir.NewFunction("f", types.I64, types.Pure)
	a := fn.BuildBinOp(fn.Entry, mir.BAdd, constI(1), constI(2), types.I64)
	b := fn.BuildBinOp(fn.Entry, mir.BAdd, constI(1), constI(2), types.I64)
	sum := fn.BuildBinOp(fn.Entry, mir.BAdd, mir.ValOperand(a), mir.ValOperand(b), types.I64)
	fn.BuildReturn(fn.Entry, mir.ValOperand(sum), true)

	pass := &GlobalValueNumbering{}
	changed, err := pass.Run(fn)
	if err != nil || !changed {
		t.Fatalf("expected GVN to find the redundant computation, err=%v changed=%v", err, changed)
	}
	sumInst := fn.Blocks[fn.Entry].Instructions[2].(*mir.BinOp)
	if sumInst.Lhs.Value != sumInst.Rhs.Value {
		t.Error("expected both operands of the sum to resolve to the same value after GVN")
	}
}

// A second GVN run over already-numbered code must find nothing left
// to do.
func TestGlobalValueNumberingIsIdempotent(t *testing.T) {
	fn := mir.NewFunction("f", types.I64, types.Pure)
	a := fn.BuildBinOp(fn.Entry, mir.BAdd, constI(1), constI(2), types.I64)
	b := fn.BuildBinOp(fn.Entry, mir.BAdd, constI(1), constI(2), types.I64)
	sum := fn.BuildBinOp(fn.Entry, mir.BAdd, mir.ValOperand(a), mir.ValOperand(b), types.I64)
	fn.BuildReturn(fn.Entry, mir.ValOperand(sum), true)

	pass := &GlobalValueNumbering{}
	if _, err := pass.Run(fn); err != nil {
		t.Fatalf("first run: %v", err)
	}
	changed, err := pass.Run(fn)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if changed {
		t.Error("expected GVN to be a no-op on its own output")
	}
}

// A pure computation over only loop-external operands must be hoisted
// into a synthesized preheader, and (spec.md §8 property 8) every
// operand of the hoisted instruction must be defined in a block that
// dominates the loop's preheader.
func TestLoopInvariantCodeMotionHoistsInvariantComputation(t *testing.T) {
	fn := mir.NewFunction("loopy", types.Unit, types.Pure)
	header := fn.NewBlock()
	body := fn.NewBlock()
	exit := fn.NewBlock()

	a := fn.BuildBinOp(fn.Entry, mir.BAdd, constI(1), constI(2), types.I64)
	fn.BuildJump(fn.Entry, header)

	cond := mir.ConstOperand(mir.Constant{Kind: mir.ConstBool, Bool: true})
	fn.BuildBranch(header, cond, body, exit)
	invariant := fn.BuildBinOp(body, mir.BMul, mir.ValOperand(a), constI(10), types.I64)
	fn.BuildJump(body, header)
	fn.BuildReturn(exit, mir.Operand{}, false)

	pass := &LoopInvariantCodeMotion{}
	changed, err := pass.Run(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected the loop-invariant multiply to be hoisted")
	}

	c := cfg.Build(fn)
	dt := cfg.ComputeDominators(c)

	var hoistedBlock mir.BlockId
	found := false
	for _, bid := range fn.BlockOrder {
		for _, inst := range fn.Blocks[bid].Instructions {
			if inst.Dest() == invariant {
				hoistedBlock = bid
				found = true
			}
		}
	}
	if !found {
		t.Fatal("hoisted instruction not found anywhere in the function after LICM")
	}
	if hoistedBlock == body {
		t.Error("expected the invariant instruction to move out of the loop body")
	}
	if !dt.Dominates(fn.Entry, hoistedBlock) {
		t.Errorf("expected entry (which defines the hoisted instruction's operand) to dominate its new block b%d", hoistedBlock)
	}
}

// NewPipeline's per-level pass composition must match spec.md §4.3's
// table exactly: O1 is fold/const-prop/DCE only; O2 adds copy-prop,
// GVN, LICM, and the inliner; O3 adds SROA, NRVO, devirtualization,
// and loop SIMD (and widens the inliner's budget, checked separately).
func TestPipelineComposesPassesPerOptLevel(t *testing.T) {
	names := func(p *Pipeline) map[string]bool {
		out := make(map[string]bool, len(p.Passes))
		for _, pass := range p.Passes {
			out[pass.Name()] = true
		}
		return out
	}

	o0 := NewPipeline(O0)
	if len(o0.Passes) != 0 {
		t.Errorf("expected O0 to run no passes, got %v", o0.Passes)
	}

	o1 := names(NewPipeline(O1))
	for _, want := range []string{"constant-folding", "constant-propagation", "dead-code-elimination"} {
		if !o1[want] {
			t.Errorf("expected O1 to include %q, got %v", want, o1)
		}
	}
	for _, unwanted := range []string{"copy-propagation", "global-value-numbering", "loop-invariant-code-motion", "inlining", "scalar-replacement-of-aggregates", "named-return-value-optimization", "devirtualization", "loop-simd-tagging"} {
		if o1[unwanted] {
			t.Errorf("expected O1 to exclude %q, got %v", unwanted, o1)
		}
	}

	o2 := names(NewPipeline(O2))
	for _, want := range []string{"constant-folding", "constant-propagation", "dead-code-elimination", "copy-propagation", "global-value-numbering", "loop-invariant-code-motion", "inlining"} {
		if !o2[want] {
			t.Errorf("expected O2 to include %q, got %v", want, o2)
		}
	}
	for _, unwanted := range []string{"scalar-replacement-of-aggregates", "named-return-value-optimization", "devirtualization", "loop-simd-tagging"} {
		if o2[unwanted] {
			t.Errorf("expected O2 to exclude %q, got %v", unwanted, o2)
		}
	}

	o3 := names(NewPipeline(O3))
	for _, want := range []string{"copy-propagation", "global-value-numbering", "loop-invariant-code-motion", "inlining", "scalar-replacement-of-aggregates", "named-return-value-optimization", "devirtualization", "loop-simd-tagging"} {
		if !o3[want] {
			t.Errorf("expected O3 to include %q, got %v", want, o3)
		}
	}

	if inlineBudget(O2) >= inlineBudget(O3) {
		t.Errorf("expected O3's inliner budget (%d) to exceed O2's (%d)", inlineBudget(O3), inlineBudget(O2))
	}
}

func TestPipelineRunsToFixedPoint(t *testing.T) {
	fn := mir.NewFunction("f", types.I64, types.Pure)
	d := fn.BuildBinOp(fn.Entry, mir.BAdd, constI(2), constI(3), types.I64)
	unused := fn.BuildBinOp(fn.Entry, mir.BMul, mir.ValOperand(d), constI(0), types.I64)
	_ = unused
	fn.BuildReturn(fn.Entry, mir.ValOperand(d), true)

	pipeline := NewPipeline(O2)
	results := pipeline.Run(fn)
	if len(results) == 0 {
		t.Fatal("expected at least one pass result")
	}
}
