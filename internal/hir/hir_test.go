package hir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aurorac/internal/types"
)

func TestLiteralTypes(t *testing.T) {
	assert.Equal(t, types.Bool, (&BoolLit{Value: true}).ExprType())
	assert.Equal(t, types.Unit, (&UnitLit{}).ExprType())
	assert.Equal(t, types.I32, (&IntLit{Value: 7, Type: types.I32}).ExprType())
}

func TestNameExprUsesBindingType(t *testing.T) {
	b := &Binding{ID: 1, Name: "x", Type: types.I64}
	n := &NameExpr{Binding: b}
	assert.True(t, types.Equal(types.I64, n.ExprType()))
}

func TestShortCircuitOperatorsAreDistinctFromBitwise(t *testing.T) {
	assert.NotEqual(t, OpAndAnd, OpBitAnd)
	assert.NotEqual(t, OpOrOr, OpBitOr)
}

func TestStmtKindsImplementStmt(t *testing.T) {
	var stmts []Stmt = []Stmt{
		&LetStmt{},
		&AssignStmt{},
		&ExprStmt{},
		&ReturnStmt{},
		&BreakStmt{},
		&ContinueStmt{},
		&IfStmt{},
		&WhileStmt{},
		&ForStmt{},
		&LoopStmt{},
		&MatchStmt{},
		&DeferStmt{},
	}
	assert.Len(t, stmts, 12)
}

func TestExprKindsImplementExpr(t *testing.T) {
	var exprs []Expr = []Expr{
		&IntLit{Type: types.I32},
		&BoolLit{},
		&StringLit{},
		&FloatLit{Type: types.F64},
		&UnitLit{},
		&NameExpr{Binding: &Binding{Type: types.Unit}},
		&BinaryExpr{Type: types.Bool},
		&UnaryExpr{Type: types.I32},
		&CallExpr{Type: types.Unit},
		&FieldExpr{Type: types.I32},
		&IndexExpr{Type: types.I32},
		&CastExpr{To: types.I64},
		&DerefExpr{Type: types.I32},
		&RefExpr{Type: types.I32},
	}
	assert.Len(t, exprs, 14)
}

func TestMatchArmWildcard(t *testing.T) {
	arm := MatchArm{Value: nil, Body: nil}
	assert.Nil(t, arm.Value)
}
