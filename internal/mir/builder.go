package mir

import (
	"fmt"

	"aurorac/internal/hir"
	"aurorac/internal/types"
)

// Builder lowers a single hir.Function into SSA-form MIR using the
// Braun/Buchwald sealed-blocks + incomplete-phis algorithm: a
// per-block value stack keyed by source binding, deferred phi
// operands for blocks whose predecessor set isn't known yet, and a
// seal step that backfills them once it is.
type Builder struct {
	fn *Function

	// currentDef[bindingID][block] is the reaching SSA value for a
	// binding at the end of block, mirroring the teacher's
	// variableStack (kept per-block here instead of as a stack, since
	// MIR blocks are never revisited after sealing).
	currentDef map[int]map[BlockId]Operand

	// incompletePhis holds phis awaiting predecessor backfill, keyed
	// by the block they live in then by binding ID.
	incompletePhis map[BlockId]map[int]ValueId

	sealedBlocks map[BlockId]bool

	// preds is populated incrementally as blocks are wired together;
	// this is the builder's own bookkeeping, not the cached
	// predecessor list the Open Question resolution forbids on
	// BasicBlock itself (internal/cfg recomputes independently).
	preds map[BlockId][]BlockId

	loopStack []loopCtx

	// deferredBodies accumulates statement lists registered by defer,
	// innermost scope last, to be spliced onto every exit from this
	// function (spec.md §4.1: "materializes as duplicated cleanup
	// blocks on every exit edge").
	deferredBodies [][]hir.Stmt
}

type loopCtx struct {
	continueTarget BlockId
	breakTarget    BlockId
}

// BuildFunction lowers fn into a fresh SSA mir.Function.
func BuildFunction(fn *hir.Function) *Function {
	mf := NewFunction(fn.Name, fn.Ret, fn.Effects)
	b := &Builder{
		fn:             mf,
		currentDef:     make(map[int]map[BlockId]Operand),
		incompletePhis: make(map[BlockId]map[int]ValueId),
		sealedBlocks:   make(map[BlockId]bool),
		preds:          make(map[BlockId][]BlockId),
	}

	for _, p := range fn.Params {
		v := mf.NewValue(p.Type)
		mf.Params = append(mf.Params, v)
		mf.ParamTypes = append(mf.ParamTypes, p.Type)
		b.writeVariable(p.ID, mf.Entry, ValOperand(v))
	}
	b.sealBlock(mf.Entry)

	exit := b.buildStmts(mf.Entry, fn.Body)
	if exit >= 0 && mf.Blocks[exit].Terminator() == nil {
		b.emitImplicitReturn(exit, fn.Ret)
	}

	for _, id := range mf.BlockOrder {
		if !b.sealedBlocks[id] {
			b.sealBlock(id)
		}
	}
	return mf
}

// runDeferred splices every registered defer body, in reverse
// (last-registered-runs-first) order, onto block and returns the
// block control falls through to afterward.
func (b *Builder) runDeferred(block BlockId) BlockId {
	cur := block
	for i := len(b.deferredBodies) - 1; i >= 0; i-- {
		next := b.buildStmts(cur, b.deferredBodies[i])
		if next < 0 {
			return -1
		}
		cur = next
	}
	return cur
}

func (b *Builder) emitImplicitReturn(block BlockId, ret types.Type) {
	block = b.runDeferred(block)
	if block < 0 {
		return
	}
	if types.Equal(ret, types.Unit) {
		b.fn.BuildReturn(block, Operand{}, false)
		return
	}
	// A well-typed function with a non-unit return always terminates
	// every path explicitly; reaching here means the HIR was
	// ill-formed upstream of this boundary.
	panic("mir: missing return on a path of non-unit function " + b.fn.Name)
}

// newBlock allocates a fresh block and registers it unsealed.
func (b *Builder) newBlock() BlockId {
	id := b.fn.NewBlock()
	return id
}

func (b *Builder) addEdge(from, to BlockId) {
	b.preds[to] = append(b.preds[to], from)
}

func (b *Builder) writeVariable(bindingID int, block BlockId, val Operand) {
	m, ok := b.currentDef[bindingID]
	if !ok {
		m = make(map[BlockId]Operand)
		b.currentDef[bindingID] = m
	}
	m[block] = val
}

func (b *Builder) readVariable(bindingID int, block BlockId, t types.Type) Operand {
	if m, ok := b.currentDef[bindingID]; ok {
		if v, ok := m[block]; ok {
			return v
		}
	}
	return b.readVariableRecursive(bindingID, block, t)
}

func (b *Builder) readVariableRecursive(bindingID int, block BlockId, t types.Type) Operand {
	var val Operand
	if !b.sealedBlocks[block] {
		// Block not yet sealed: emit an incomplete phi, to be filled
		// in once sealBlock runs.
		phiVal := b.fn.BuildPhi(block, t)
		if _, ok := b.incompletePhis[block]; !ok {
			b.incompletePhis[block] = make(map[int]ValueId)
		}
		b.incompletePhis[block][bindingID] = phiVal
		val = ValOperand(phiVal)
	} else if preds := b.preds[block]; len(preds) == 1 {
		// Single predecessor: no phi needed, just chase the reaching
		// definition there.
		val = b.readVariable(bindingID, preds[0], t)
	} else {
		phiVal := b.fn.BuildPhi(block, t)
		b.writeVariable(bindingID, block, ValOperand(phiVal))
		val = b.addPhiOperands(bindingID, block, phiVal, t)
	}
	b.writeVariable(bindingID, block, val)
	return val
}

func (b *Builder) addPhiOperands(bindingID int, block BlockId, phiVal ValueId, t types.Type) Operand {
	phi := FindPhi(b.fn, block, phiVal)
	for _, pred := range b.preds[block] {
		v := b.readVariable(bindingID, pred, t)
		phi.Incoming = append(phi.Incoming, PhiEdge{Block: pred, Value: v})
	}
	return tryRemoveTrivialPhi(b, phi, t)
}

// tryRemoveTrivialPhi detects a phi whose operands are all the same
// value (or the phi itself), per the standard Braun/Buchwald cleanup
// step. Returns the operand callers should use in place of the phi's
// own value.
func tryRemoveTrivialPhi(b *Builder, phi *Phi, t types.Type) Operand {
	var same *Operand
	for _, e := range phi.Incoming {
		if e.Value.IsValue && e.Value.Value == phi.Dest() {
			continue // self-reference, ignore
		}
		if same != nil && !operandsEqual(*same, e.Value) {
			return ValOperand(phi.Dest()) // more than one distinct source: real phi
		}
		v := e.Value
		same = &v
	}
	if same == nil {
		// Completely undefined (unreachable block): leave it, it
		// represents an unreachable-code placeholder.
		return ValOperand(phi.Dest())
	}
	// The phi itself stays in the block (every operand equals `same`),
	// so any use that already refers to it remains valid; new reads get
	// `same` directly.
	return *same
}

func operandsEqual(a, b Operand) bool {
	if a.IsValue != b.IsValue {
		return false
	}
	if a.IsValue {
		return a.Value == b.Value
	}
	return a.Const == b.Const
}

func (b *Builder) sealBlock(block BlockId) {
	for bindingID, phiVal := range b.incompletePhis[block] {
		phi := FindPhi(b.fn, block, phiVal)
		for _, pred := range b.preds[block] {
			v := b.readVariable(bindingID, pred, phi.Typ)
			phi.Incoming = append(phi.Incoming, PhiEdge{Block: pred, Value: v})
		}
	}
	delete(b.incompletePhis, block)
	b.sealedBlocks[block] = true
}

// buildStmts lowers a statement list starting at block, returning the
// ID of the block control falls through to after the last statement,
// or -1 if every path through the list already terminated (e.g. it
// ends in return/break/continue).
func (b *Builder) buildStmts(block BlockId, stmts []hir.Stmt) BlockId {
	cur := block
	for _, s := range stmts {
		if cur < 0 {
			// Unreachable: prior statement already terminated the
			// block. The remaining statements are not lowered.
			break
		}
		cur = b.buildStmt(cur, s)
	}
	return cur
}

func (b *Builder) buildStmt(block BlockId, s hir.Stmt) BlockId {
	switch st := s.(type) {
	case *hir.LetStmt:
		v := b.buildExpr(block, st.Value)
		b.writeVariable(st.Binding.ID, block, v)
		return block

	case *hir.AssignStmt:
		v := b.buildExpr(block, st.Value)
		if name, ok := st.Target.(*hir.NameExpr); ok {
			b.writeVariable(name.Binding.ID, block, v)
			return block
		}
		// Place expression (field/index/deref): lower target to an
		// address and store.
		addr := b.buildAddress(block, st.Target)
		b.fn.BuildStore(block, addr, v)
		return block

	case *hir.ExprStmt:
		b.buildExpr(block, st.Value)
		return block

	case *hir.ReturnStmt:
		if st.Value == nil {
			block = b.runDeferred(block)
			b.fn.BuildReturn(block, Operand{}, false)
		} else {
			v := b.buildExpr(block, st.Value)
			block = b.runDeferred(block)
			b.fn.BuildReturn(block, v, true)
		}
		return -1

	case *hir.BreakStmt:
		if len(b.loopStack) == 0 {
			panic("mir: break outside loop in " + b.fn.Name)
		}
		target := b.loopStack[len(b.loopStack)-1].breakTarget
		b.fn.BuildJump(block, target)
		b.addEdge(block, target)
		return -1

	case *hir.ContinueStmt:
		if len(b.loopStack) == 0 {
			panic("mir: continue outside loop in " + b.fn.Name)
		}
		target := b.loopStack[len(b.loopStack)-1].continueTarget
		b.fn.BuildJump(block, target)
		b.addEdge(block, target)
		return -1

	case *hir.IfStmt:
		return b.buildIf(block, st)

	case *hir.WhileStmt:
		return b.buildWhile(block, st)

	case *hir.ForStmt:
		return b.buildFor(block, st)

	case *hir.LoopStmt:
		return b.buildLoop(block, st)

	case *hir.MatchStmt:
		return b.buildMatch(block, st)

	case *hir.DeferStmt:
		// Deferred cleanup has no effect at the point it's declared;
		// the body is recorded and runDeferred splices it in before
		// every Return this builder emits afterwards.
		return b.buildDeferScope(block, st)

	default:
		panic(fmt.Sprintf("mir: unhandled hir statement %T", s))
	}
}

// buildDeferScope registers a defer's body in deferredBodies. Nothing
// is emitted here: every later explicit return and the implicit
// return at the end of the function go through runDeferred, which
// lowers all registered bodies (last registered first) in front of
// the Return. Registrations last for the rest of the function; they
// are not dropped when the enclosing block ends, and break/continue
// edges do not run them.
func (b *Builder) buildDeferScope(block BlockId, st *hir.DeferStmt) BlockId {
	b.deferredBodies = append(b.deferredBodies, st.Body)
	return block
}

func (b *Builder) buildIf(block BlockId, st *hir.IfStmt) BlockId {
	cond := b.buildExpr(block, st.Cond)
	thenB := b.newBlock()
	elseB := b.newBlock()
	b.fn.BuildBranch(block, cond, thenB, elseB)
	b.addEdge(block, thenB)
	b.addEdge(block, elseB)
	b.sealBlock(thenB)
	b.sealBlock(elseB)

	thenExit := b.buildStmts(thenB, st.Then)
	elseExit := b.buildStmts(elseB, st.Else)

	if thenExit < 0 && elseExit < 0 {
		return -1
	}
	joinB := b.newBlock()
	if thenExit >= 0 {
		b.fn.BuildJump(thenExit, joinB)
		b.addEdge(thenExit, joinB)
	}
	if elseExit >= 0 {
		b.fn.BuildJump(elseExit, joinB)
		b.addEdge(elseExit, joinB)
	}
	b.sealBlock(joinB)
	return joinB
}

func (b *Builder) buildWhile(block BlockId, st *hir.WhileStmt) BlockId {
	headerB := b.newBlock()
	b.fn.BuildJump(block, headerB)
	b.addEdge(block, headerB)

	bodyB := b.newBlock()
	exitB := b.newBlock()

	cond := b.buildExpr(headerB, st.Cond)
	b.fn.BuildBranch(headerB, cond, bodyB, exitB)
	b.addEdge(headerB, bodyB)
	b.addEdge(headerB, exitB)
	b.sealBlock(bodyB)

	b.loopStack = append(b.loopStack, loopCtx{continueTarget: headerB, breakTarget: exitB})
	bodyExit := b.buildStmts(bodyB, st.Body)
	b.loopStack = b.loopStack[:len(b.loopStack)-1]

	if bodyExit >= 0 {
		b.fn.BuildJump(bodyExit, headerB)
		b.addEdge(bodyExit, headerB)
	}
	// The header has two predecessors (the preheader and the body's
	// back edge) and is sealed only now that both are known.
	b.sealBlock(headerB)
	b.sealBlock(exitB)
	return exitB
}

func (b *Builder) buildFor(block BlockId, st *hir.ForStmt) BlockId {
	low := b.buildExpr(block, st.Low)
	b.writeVariable(st.Binding.ID, block, low)

	headerB := b.newBlock()
	b.fn.BuildJump(block, headerB)
	b.addEdge(block, headerB)

	bodyB := b.newBlock()
	exitB := b.newBlock()
	latchB := b.newBlock()

	high := b.buildExpr(headerB, st.High)
	cur := b.readVariable(st.Binding.ID, headerB, st.Binding.Type)
	cond := b.fn.BuildBinOp(headerB, BLt, cur, high, types.Bool)
	b.fn.BuildBranch(headerB, ValOperand(cond), bodyB, exitB)
	b.addEdge(headerB, bodyB)
	b.addEdge(headerB, exitB)
	b.sealBlock(bodyB)

	b.loopStack = append(b.loopStack, loopCtx{continueTarget: latchB, breakTarget: exitB})
	bodyExit := b.buildStmts(bodyB, st.Body)
	b.loopStack = b.loopStack[:len(b.loopStack)-1]

	if bodyExit >= 0 {
		b.fn.BuildJump(bodyExit, latchB)
		b.addEdge(bodyExit, latchB)
	}
	b.sealBlock(latchB)

	one := ConstOperand(Constant{Kind: ConstInt, Int: 1})
	curLatch := b.readVariable(st.Binding.ID, latchB, st.Binding.Type)
	next := b.fn.BuildBinOp(latchB, BAdd, curLatch, one, st.Binding.Type)
	b.writeVariable(st.Binding.ID, latchB, ValOperand(next))
	b.fn.BuildJump(latchB, headerB)
	b.addEdge(latchB, headerB)

	b.sealBlock(headerB)
	b.sealBlock(exitB)
	return exitB
}

func (b *Builder) buildLoop(block BlockId, st *hir.LoopStmt) BlockId {
	headerB := b.newBlock()
	b.fn.BuildJump(block, headerB)
	b.addEdge(block, headerB)

	exitB := b.newBlock()
	b.loopStack = append(b.loopStack, loopCtx{continueTarget: headerB, breakTarget: exitB})
	bodyExit := b.buildStmts(headerB, st.Body)
	b.loopStack = b.loopStack[:len(b.loopStack)-1]

	if bodyExit >= 0 {
		b.fn.BuildJump(bodyExit, headerB)
		b.addEdge(bodyExit, headerB)
	}
	b.sealBlock(headerB)
	b.sealBlock(exitB)
	return exitB
}

func (b *Builder) buildMatch(block BlockId, st *hir.MatchStmt) BlockId {
	scrutinee := b.buildExpr(block, st.Scrutinee)

	var arms []BlockId
	var exits []BlockId
	cur := block
	for i, arm := range st.Arms {
		last := i == len(st.Arms)-1
		armB := b.newBlock()
		arms = append(arms, armB)
		if arm.Value == nil || last {
			// Wildcard, or the last arm when the front end omits an
			// explicit wildcard for an exhaustive match: unconditional.
			b.fn.BuildJump(cur, armB)
			b.addEdge(cur, armB)
			b.sealBlock(armB)
			exit := b.buildStmts(armB, arm.Body)
			if exit >= 0 {
				exits = append(exits, exit)
			}
			cur = -1
			break
		}
		val := b.buildExpr(cur, arm.Value)
		eq := b.fn.BuildBinOp(cur, BEq, scrutinee, val, types.Bool)
		nextB := b.newBlock()
		b.fn.BuildBranch(cur, ValOperand(eq), armB, nextB)
		b.addEdge(cur, armB)
		b.addEdge(cur, nextB)
		b.sealBlock(armB)
		b.sealBlock(nextB)
		exit := b.buildStmts(armB, arm.Body)
		if exit >= 0 {
			exits = append(exits, exit)
		}
		cur = nextB
	}

	if cur >= 0 {
		// Only reached for a match with no arms at all (the last arm
		// always ends the loop above with cur = -1); the block still
		// needs a terminator to keep the function well-formed.
		b.fn.BuildReturn(cur, Operand{}, false)
	}

	if len(exits) == 0 {
		return -1
	}
	joinB := b.newBlock()
	for _, e := range exits {
		b.fn.BuildJump(e, joinB)
		b.addEdge(e, joinB)
	}
	b.sealBlock(joinB)
	return joinB
}

// buildAddress lowers a place expression (field/index/deref/name) to
// a pointer-like operand suitable for Load/Store, rather than loading
// its current value.
func (b *Builder) buildAddress(block BlockId, e hir.Expr) Operand {
	switch ex := e.(type) {
	case *hir.FieldExpr:
		base := b.buildAddress(block, ex.Base)
		idx := b.fn.BuildGetElement(block, base, ConstOperand(Constant{Kind: ConstInt, Int: int64(ex.Index)}), true, &types.Reference{Kind: types.RefMut, Elem: ex.Type})
		return ValOperand(idx)
	case *hir.IndexExpr:
		base := b.buildAddress(block, ex.Base)
		index := b.buildExpr(block, ex.Index)
		idx := b.fn.BuildGetElement(block, base, index, false, &types.Reference{Kind: types.RefMut, Elem: ex.Type})
		return ValOperand(idx)
	case *hir.DerefExpr:
		return b.buildExpr(block, ex.Value)
	default:
		// A bare name as an assignment target is handled directly in
		// buildStmt (no address needed: writeVariable suffices); this
		// path only covers nested place expressions.
		return b.buildExpr(block, e)
	}
}

func (b *Builder) buildExpr(block BlockId, e hir.Expr) Operand {
	switch ex := e.(type) {
	case *hir.IntLit:
		return ConstOperand(Constant{Kind: ConstInt, Int: ex.Value})
	case *hir.BoolLit:
		return ConstOperand(Constant{Kind: ConstBool, Bool: ex.Value})
	case *hir.StringLit:
		return ConstOperand(Constant{Kind: ConstString, Str: ex.Value})
	case *hir.FloatLit:
		return ConstOperand(Constant{Kind: ConstFloat, Flt: ex.Value})
	case *hir.UnitLit:
		return ConstOperand(Constant{Kind: ConstUnit})
	case *hir.NameExpr:
		return b.readVariable(ex.Binding.ID, block, ex.Binding.Type)

	case *hir.FuncRefExpr:
		return ConstOperand(Constant{Kind: ConstString, Str: ex.Name})

	case *hir.BinaryExpr:
		return b.buildBinary(block, ex)

	case *hir.UnaryExpr:
		v := b.buildExpr(block, ex.Value)
		op := map[hir.UnaryOp]UnOpKind{hir.OpNeg: UNeg, hir.OpNot: UNot, hir.OpBitNot: UBitNot}[ex.Op]
		return ValOperand(b.fn.BuildUnaryOp(block, op, v, ex.Type))

	case *hir.CallExpr:
		callee := b.buildExpr(block, ex.Callee)
		args := make([]Operand, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = b.buildExpr(block, a)
		}
		dest := b.fn.BuildCall(block, callee, args, ex.Type, ex.Effects)
		if dest < 0 {
			return ConstOperand(Constant{Kind: ConstUnit})
		}
		return ValOperand(dest)

	case *hir.FieldExpr:
		addr := b.buildAddress(block, ex)
		return ValOperand(b.fn.BuildLoad(block, addr, ex.Type))

	case *hir.IndexExpr:
		addr := b.buildAddress(block, ex)
		return ValOperand(b.fn.BuildLoad(block, addr, ex.Type))

	case *hir.CastExpr:
		v := b.buildExpr(block, ex.Value)
		return ValOperand(b.fn.BuildCast(block, v, ex.To))

	case *hir.DerefExpr:
		v := b.buildExpr(block, ex.Value)
		return ValOperand(b.fn.BuildLoad(block, v, ex.Type))

	case *hir.RefExpr:
		return b.buildAddress(block, ex.Value)

	default:
		panic(fmt.Sprintf("mir: unhandled hir expression %T", e))
	}
}

// buildBinary lowers a BinaryExpr. The two short-circuit logical
// operators are lowered to explicit branches with a phi join per
// spec.md §4.1, never to an eager BinOp — the right-hand side must
// not execute when the left-hand side already decides the result.
func (b *Builder) buildBinary(block BlockId, ex *hir.BinaryExpr) Operand {
	switch ex.Op {
	case hir.OpAndAnd, hir.OpOrOr:
		return b.buildShortCircuit(block, ex)
	}
	lhs := b.buildExpr(block, ex.Lhs)
	rhs := b.buildExpr(block, ex.Rhs)
	op := map[hir.BinaryOp]BinOpKind{
		hir.OpAdd: BAdd, hir.OpSub: BSub, hir.OpMul: BMul, hir.OpDiv: BDiv, hir.OpMod: BMod,
		hir.OpEq: BEq, hir.OpNe: BNe, hir.OpLt: BLt, hir.OpLe: BLe, hir.OpGt: BGt, hir.OpGe: BGe,
		hir.OpBitAnd: BAnd, hir.OpBitOr: BOr, hir.OpBitXor: BXor, hir.OpShl: BShl, hir.OpShr: BShr,
	}[ex.Op]
	return ValOperand(b.fn.BuildBinOp(block, op, lhs, rhs, ex.Type))
}

func (b *Builder) buildShortCircuit(block BlockId, ex *hir.BinaryExpr) Operand {
	lhs := b.buildExpr(block, ex.Lhs)
	rhsB := b.newBlock()
	joinB := b.newBlock()

	var thenTarget, elseTarget BlockId
	if ex.Op == hir.OpAndAnd {
		thenTarget, elseTarget = rhsB, joinB
	} else {
		thenTarget, elseTarget = joinB, rhsB
	}
	b.fn.BuildBranch(block, lhs, thenTarget, elseTarget)
	b.addEdge(block, thenTarget)
	b.addEdge(block, elseTarget)
	b.sealBlock(rhsB)

	rhs := b.buildExpr(rhsB, ex.Rhs)
	b.fn.BuildJump(rhsB, joinB)
	b.addEdge(rhsB, joinB)
	b.sealBlock(joinB)

	phi := b.fn.BuildPhi(joinB, types.Bool)
	phiInst := FindPhi(b.fn, joinB, phi)
	phiInst.Incoming = append(phiInst.Incoming, PhiEdge{Block: rhsB, Value: rhs})
	phiInst.Incoming = append(phiInst.Incoming, PhiEdge{Block: block, Value: lhs})
	return ValOperand(phi)
}
