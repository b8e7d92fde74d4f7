package mir

import (
	"testing"

	"aurorac/internal/cfg"
	"aurorac/internal/hir"
	"aurorac/internal/types"
)

// assertSSA checks spec-level SSA preservation: every ValueId has
// exactly one defining instruction, and that instruction's block
// dominates every block that uses the value.
func assertSSA(t *testing.T, mf *Function) {
	t.Helper()
	c := cfg.Build(mf)
	dt := cfg.ComputeDominators(c)

	defBlock := make(map[ValueId]BlockId)
	for _, bid := range mf.BlockOrder {
		for _, inst := range mf.Blocks[bid].Instructions {
			if d := inst.Dest(); d >= 0 {
				if prev, ok := defBlock[d]; ok {
					t.Errorf("value %d defined twice, in b%d and b%d", d, prev, bid)
				}
				defBlock[d] = bid
			}
		}
	}

	checkUse := func(useBlock BlockId, op Operand) {
		if !op.IsValue {
			return
		}
		db, ok := defBlock[op.Value]
		if !ok {
			t.Errorf("value %d used in b%d has no defining instruction", op.Value, useBlock)
			return
		}
		if !dt.Dominates(db, useBlock) && db != useBlock {
			t.Errorf("value %d defined in b%d does not dominate use in b%d", op.Value, db, useBlock)
		}
	}

	for _, bid := range mf.BlockOrder {
		for _, inst := range mf.Blocks[bid].Instructions {
			// A phi's dominance obligation is per incoming edge (the
			// definition must dominate the predecessor it flows from),
			// not the join block itself, which in general neither
			// predecessor dominates.
			if phi, ok := inst.(*Phi); ok {
				for _, e := range phi.Incoming {
					checkUse(e.Block, e.Value)
				}
				continue
			}
			for _, op := range inst.Operands() {
				checkUse(bid, op)
			}
		}
	}
}

func TestBuildFunctionPreservesSSAForBranchyFunction(t *testing.T) {
	xb := &hir.Binding{ID: 1, Name: "x", Type: types.I64}
	fn := &hir.Function{
		Name: "branchy_ssa",
		Ret:  types.I64,
		Body: []hir.Stmt{
			&hir.LetStmt{Binding: xb, Value: intLit(0)},
			&hir.IfStmt{
				Cond: &hir.BoolLit{Value: true},
				Then: []hir.Stmt{&hir.AssignStmt{Target: &hir.NameExpr{Binding: xb}, Value: intLit(1)}},
				Else: []hir.Stmt{&hir.AssignStmt{Target: &hir.NameExpr{Binding: xb}, Value: intLit(2)}},
			},
			&hir.ReturnStmt{Value: &hir.NameExpr{Binding: xb}},
		},
	}
	assertSSA(t, BuildFunction(fn))
}

func TestBuildFunctionPreservesSSAForLoopingFunction(t *testing.T) {
	xb := &hir.Binding{ID: 1, Name: "i", Type: types.I64}
	fn := &hir.Function{
		Name: "loopy_ssa",
		Ret:  types.Unit,
		Body: []hir.Stmt{
			&hir.ForStmt{
				Binding: xb,
				Low:     intLit(0),
				High:    intLit(10),
				Body:    []hir.Stmt{&hir.ExprStmt{Value: &hir.NameExpr{Binding: xb}}},
			},
			&hir.ReturnStmt{},
		},
	}
	assertSSA(t, BuildFunction(fn))
}

func intLit(v int64) *hir.IntLit { return &hir.IntLit{Value: v, Type: types.I64} }

func TestBuildFunctionStraightLine(t *testing.T) {
	xb := &hir.Binding{ID: 1, Name: "x", Type: types.I64}
	fn := &hir.Function{
		Name: "straight",
		Ret:  types.I64,
		Body: []hir.Stmt{
			&hir.LetStmt{Binding: xb, Value: intLit(2)},
			&hir.ReturnStmt{Value: &hir.NameExpr{Binding: xb}},
		},
	}
	mf := BuildFunction(fn)
	entry := mf.Blocks[mf.Entry]
	term := entry.Terminator()
	if term == nil {
		t.Fatal("entry block not terminated")
	}
	ret, ok := term.(*Return)
	if !ok {
		t.Fatalf("expected Return terminator, got %T", term)
	}
	if !ret.HasVal || !ret.Val.IsValue {
		t.Fatal("expected return to carry a value operand")
	}
}

func TestBuildFunctionIfJoinsWithPhi(t *testing.T) {
	xb := &hir.Binding{ID: 1, Name: "x", Type: types.I64}
	fn := &hir.Function{
		Name: "branchy",
		Ret:  types.I64,
		Body: []hir.Stmt{
			&hir.LetStmt{Binding: xb, Value: intLit(0)},
			&hir.IfStmt{
				Cond: &hir.BoolLit{Value: true},
				Then: []hir.Stmt{&hir.AssignStmt{Target: &hir.NameExpr{Binding: xb}, Value: intLit(1)}},
				Else: []hir.Stmt{&hir.AssignStmt{Target: &hir.NameExpr{Binding: xb}, Value: intLit(2)}},
			},
			&hir.ReturnStmt{Value: &hir.NameExpr{Binding: xb}},
		},
	}
	mf := BuildFunction(fn)
	foundPhi := false
	for _, id := range mf.BlockOrder {
		for _, inst := range mf.Blocks[id].Instructions {
			if _, ok := inst.(*Phi); ok {
				foundPhi = true
			}
		}
	}
	if !foundPhi {
		t.Error("expected a phi at the if-join block")
	}
}

func TestBuildFunctionEveryBlockTerminated(t *testing.T) {
	xb := &hir.Binding{ID: 1, Name: "i", Type: types.I64}
	fn := &hir.Function{
		Name: "loopy",
		Ret:  types.Unit,
		Body: []hir.Stmt{
			&hir.ForStmt{
				Binding: xb,
				Low:     intLit(0),
				High:    intLit(10),
				Body:    []hir.Stmt{&hir.ExprStmt{Value: &hir.NameExpr{Binding: xb}}},
			},
			&hir.ReturnStmt{},
		},
	}
	mf := BuildFunction(fn)
	for _, id := range mf.BlockOrder {
		if mf.Blocks[id].Terminator() == nil {
			t.Errorf("block b%d is unterminated", id)
		}
	}
}

func TestShortCircuitAndAndSkipsRHSBlock(t *testing.T) {
	a := &hir.Binding{ID: 1, Name: "a", Type: types.Bool}
	fn := &hir.Function{
		Name: "sc",
		Ret:  types.Bool,
		Params: []*hir.Binding{a},
		Body: []hir.Stmt{
			&hir.ReturnStmt{Value: &hir.BinaryExpr{
				Op:   hir.OpAndAnd,
				Lhs:  &hir.NameExpr{Binding: a},
				Rhs:  &hir.BoolLit{Value: true},
				Type: types.Bool,
			}},
		},
	}
	mf := BuildFunction(fn)
	if len(mf.BlockOrder) < 3 {
		t.Errorf("expected at least 3 blocks for short-circuit lowering, got %d", len(mf.BlockOrder))
	}
	entryTerm := mf.Blocks[mf.Entry].Terminator()
	if _, ok := entryTerm.(*Branch); !ok {
		t.Fatalf("expected entry to end in a branch, got %T", entryTerm)
	}
}
