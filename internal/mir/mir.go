// Package mir implements the mid-level, SSA-form intermediate
// representation: the core this repository exists to optimize. A
// mir.Function is always in SSA form once its builder finishes: every
// Value is assigned exactly once, and every use is dominated by its
// definition.
package mir

import (
	"fmt"
	"strings"

	"aurorac/internal/types"
)

// ValueId names an SSA value. Dense per-function, starting at 0.
type ValueId int

// BlockId names a basic block. Dense per-function, starting at 0.
type BlockId int

// Constant is a compile-time-known operand.
type Constant struct {
	Kind ConstKind
	Int  int64
	Bool bool
	Str  string
	Flt  float64
}

type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstBool
	ConstString
	ConstFloat
	ConstUnit
)

func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return fmt.Sprintf("%d", c.Int)
	case ConstBool:
		return fmt.Sprintf("%t", c.Bool)
	case ConstString:
		return fmt.Sprintf("%q", c.Str)
	case ConstFloat:
		return fmt.Sprintf("%g", c.Flt)
	default:
		return "()"
	}
}

// Operand is either a reference to another Value or an inline
// Constant: IsValue selects Value, otherwise Const is the operand.
type Operand struct {
	IsValue bool
	Value   ValueId
	Const   Constant
}

func ValOperand(v ValueId) Operand  { return Operand{IsValue: true, Value: v} }
func ConstOperand(c Constant) Operand { return Operand{Const: c} }

func (o Operand) String() string {
	if o.IsValue {
		return fmt.Sprintf("%%%d", o.Value)
	}
	return o.Const.String()
}

// Value is one SSA definition: an instruction result (a phi being a
// Phi instruction) or a function parameter.
type Value struct {
	ID   ValueId
	Type types.Type
	Name string // optional, for readability in dumps; empty is fine
}

// Instruction is implemented by every MIR opcode in the closed set.
// Every instruction that produces a value embeds a Value-returning
// Dest; pure control instructions (Jump, Branch, Return) have no
// destination and return -1.
type Instruction interface {
	ID() int
	Dest() ValueId // -1 if the instruction defines no value
	Operands() []Operand
	IsTerminator() bool
	Effects() types.EffectSet
	String() string
}

// base carries bookkeeping fields shared by every instruction kind.
type base struct {
	id   int
	dest ValueId
	pos  string // human-readable source position, informational only
}

func (b *base) ID() int      { return b.id }
func (b *base) Dest() ValueId { return b.dest }

// BinOpKind enumerates MIR-level binary arithmetic/comparison/bitwise
// operators. Short-circuit && and || never appear here — the builder
// lowers them to explicit branches before a BinOp could be emitted.
type BinOpKind int

const (
	BAdd BinOpKind = iota
	BSub
	BMul
	BDiv
	BMod
	BEq
	BNe
	BLt
	BLe
	BGt
	BGe
	BAnd
	BOr
	BXor
	BShl
	BShr
)

func (k BinOpKind) String() string {
	names := [...]string{"add", "sub", "mul", "div", "mod", "eq", "ne", "lt", "le", "gt", "ge", "and", "or", "xor", "shl", "shr"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

type BinOp struct {
	base
	Op   BinOpKind
	Lhs  Operand
	Rhs  Operand
	Typ  types.Type
}

func (i *BinOp) Operands() []Operand { return []Operand{i.Lhs, i.Rhs} }
func (i *BinOp) IsTerminator() bool  { return false }
func (i *BinOp) Effects() types.EffectSet {
	if i.Op == BDiv || i.Op == BMod {
		return types.Pure // may trap, but traps are not a tracked effect
	}
	return types.Pure
}
func (i *BinOp) String() string {
	return fmt.Sprintf("%%%d = %s %s, %s", i.dest, i.Op, i.Lhs, i.Rhs)
}

type UnOpKind int

const (
	UNeg UnOpKind = iota
	UNot
	UBitNot
)

func (k UnOpKind) String() string {
	names := [...]string{"neg", "not", "bitnot"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

type UnaryOp struct {
	base
	Op  UnOpKind
	Val Operand
	Typ types.Type
}

func (i *UnaryOp) Operands() []Operand      { return []Operand{i.Val} }
func (i *UnaryOp) IsTerminator() bool       { return false }
func (i *UnaryOp) Effects() types.EffectSet { return types.Pure }
func (i *UnaryOp) String() string {
	return fmt.Sprintf("%%%d = %s %s", i.dest, i.Op, i.Val)
}

// Assign is a plain SSA copy, e.g. the join-free single-predecessor
// case of a let-binding, or the result of copy propagation before DCE
// removes it.
type Assign struct {
	base
	Src Operand
	Typ types.Type
}

func (i *Assign) Operands() []Operand      { return []Operand{i.Src} }
func (i *Assign) IsTerminator() bool       { return false }
func (i *Assign) Effects() types.EffectSet { return types.Pure }
func (i *Assign) String() string           { return fmt.Sprintf("%%%d = %s", i.dest, i.Src) }

// Call invokes Callee with Args. A Call's destination is -1 when the
// callee returns Unit.
type Call struct {
	base
	Callee  Operand
	Args    []Operand
	Typ     types.Type
	Eff     types.EffectSet
}

func (i *Call) Operands() []Operand {
	ops := make([]Operand, 0, len(i.Args)+1)
	ops = append(ops, i.Callee)
	ops = append(ops, i.Args...)
	return ops
}
func (i *Call) IsTerminator() bool       { return false }
func (i *Call) Effects() types.EffectSet { return i.Eff }
func (i *Call) String() string {
	parts := make([]string, len(i.Args))
	for idx, a := range i.Args {
		parts[idx] = a.String()
	}
	prefix := ""
	if i.dest >= 0 {
		prefix = fmt.Sprintf("%%%d = ", i.dest)
	}
	return fmt.Sprintf("%scall %s(%s)", prefix, i.Callee, strings.Join(parts, ", "))
}

// Load reads through a pointer-like operand (an Alloca result or a
// reference).
type Load struct {
	base
	Addr Operand
	Typ  types.Type
}

func (i *Load) Operands() []Operand      { return []Operand{i.Addr} }
func (i *Load) IsTerminator() bool       { return false }
func (i *Load) Effects() types.EffectSet { return types.Pure }
func (i *Load) String() string           { return fmt.Sprintf("%%%d = load %s", i.dest, i.Addr) }

// Store writes Val to Addr. Stores define no value.
type Store struct {
	base
	Addr Operand
	Val  Operand
}

func (i *Store) Operands() []Operand      { return []Operand{i.Addr, i.Val} }
func (i *Store) IsTerminator() bool       { return false }
func (i *Store) Effects() types.EffectSet { return types.Pure.With(types.EffectAlloc) }
func (i *Store) String() string           { return fmt.Sprintf("store %s, %s", i.Val, i.Addr) }

// Alloca reserves stack storage for a value of type Elem (not a
// pointer type itself — Load/Store treat its Dest as the address).
type Alloca struct {
	base
	Elem types.Type
}

func (i *Alloca) Operands() []Operand      { return nil }
func (i *Alloca) IsTerminator() bool       { return false }
func (i *Alloca) Effects() types.EffectSet { return types.Pure.With(types.EffectAlloc) }
func (i *Alloca) String() string           { return fmt.Sprintf("%%%d = alloca %s", i.dest, i.Elem.String()) }

// Cast converts Val to type To.
type Cast struct {
	base
	Val Operand
	To  types.Type
}

func (i *Cast) Operands() []Operand      { return []Operand{i.Val} }
func (i *Cast) IsTerminator() bool       { return false }
func (i *Cast) Effects() types.EffectSet { return types.Pure }
func (i *Cast) String() string {
	return fmt.Sprintf("%%%d = cast %s to %s", i.dest, i.Val, i.To.String())
}

// GetElement computes the address of a field (Index into a Named
// aggregate) or array element (non-constant Index, IsArray set) of
// Base, which must be an Alloca result or another pointer-like value.
type GetElement struct {
	base
	BaseVal    Operand
	Index      Operand // ConstOperand for a known field/element index
	IsConstIdx bool
	Typ        types.Type
}

func (i *GetElement) Operands() []Operand      { return []Operand{i.BaseVal, i.Index} }
func (i *GetElement) IsTerminator() bool       { return false }
func (i *GetElement) Effects() types.EffectSet { return types.Pure }
func (i *GetElement) String() string {
	return fmt.Sprintf("%%%d = getelement %s, %s", i.dest, i.BaseVal, i.Index)
}

// Phi is the classic SSA join instruction: one incoming Operand per
// predecessor block, in the order CFG predecessors are discovered.
type Phi struct {
	base
	Incoming []PhiEdge
	Typ      types.Type
}

// PhiEdge pairs an incoming value with the predecessor block it flows
// from.
type PhiEdge struct {
	Block BlockId
	Value Operand
}

func (i *Phi) Operands() []Operand {
	ops := make([]Operand, len(i.Incoming))
	for idx, e := range i.Incoming {
		ops[idx] = e.Value
	}
	return ops
}
func (i *Phi) IsTerminator() bool       { return false }
func (i *Phi) Effects() types.EffectSet { return types.Pure }
func (i *Phi) String() string {
	parts := make([]string, len(i.Incoming))
	for idx, e := range i.Incoming {
		parts[idx] = fmt.Sprintf("[%s, b%d]", e.Value, e.Block)
	}
	return fmt.Sprintf("%%%d = phi %s", i.dest, strings.Join(parts, ", "))
}

// Terminators.

// Jump is an unconditional branch to Target.
type Jump struct {
	base
	Target BlockId
}

func (i *Jump) Operands() []Operand      { return nil }
func (i *Jump) IsTerminator() bool       { return true }
func (i *Jump) Effects() types.EffectSet { return types.Pure }
func (i *Jump) String() string           { return fmt.Sprintf("jump b%d", i.Target) }

// Branch is a conditional branch.
type Branch struct {
	base
	Cond  Operand
	Then  BlockId
	Else  BlockId
}

func (i *Branch) Operands() []Operand      { return []Operand{i.Cond} }
func (i *Branch) IsTerminator() bool       { return true }
func (i *Branch) Effects() types.EffectSet { return types.Pure }
func (i *Branch) String() string {
	return fmt.Sprintf("branch %s, b%d, b%d", i.Cond, i.Then, i.Else)
}

// Return exits the function, optionally carrying a value.
type Return struct {
	base
	Val    Operand
	HasVal bool
}

func (i *Return) Operands() []Operand {
	if i.HasVal {
		return []Operand{i.Val}
	}
	return nil
}
func (i *Return) IsTerminator() bool       { return true }
func (i *Return) Effects() types.EffectSet { return types.Pure }
func (i *Return) String() string {
	if i.HasVal {
		return fmt.Sprintf("return %s", i.Val)
	}
	return "return"
}

// BasicBlock is a maximal straight-line instruction sequence ending in
// exactly one terminator. Per the predecessor-invariant decision
// (DESIGN.md), it carries no predecessor or successor list of its
// own — internal/cfg derives both fresh from terminators whenever it
// runs.
type BasicBlock struct {
	ID           BlockId
	Instructions []Instruction
}

// Terminator returns the block's terminating instruction, or nil if
// the block is (transiently, mid-construction) unterminated.
func (b *BasicBlock) Terminator() Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	last := b.Instructions[len(b.Instructions)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

// Function is one MIR function: SSA values, basic blocks, and the
// counters that hand out fresh IDs. Counters are fields, never
// package-level state, so concurrent compilation of independent
// functions (internal/driver) never races on ID assignment.
type Function struct {
	Name      string
	Params    []ValueId
	ParamTypes []types.Type
	RetType   types.Type
	Effects   types.EffectSet
	Entry     BlockId
	Blocks    map[BlockId]*BasicBlock
	BlockOrder []BlockId // order blocks were created in; stable iteration
	ValueTypes map[ValueId]types.Type
	SIMDLoops  []BlockId

	nextValueID ValueId
	nextBlockID BlockId
	nextInstID  int
}

// NewFunction creates an empty function with one (empty, unterminated)
// entry block.
func NewFunction(name string, retType types.Type, effects types.EffectSet) *Function {
	f := &Function{
		Name:       name,
		RetType:    retType,
		Effects:    effects,
		Blocks:     make(map[BlockId]*BasicBlock),
		ValueTypes: make(map[ValueId]types.Type),
	}
	f.Entry = f.NewBlock()
	return f
}

// NewBlock allocates a fresh, empty basic block.
func (f *Function) NewBlock() BlockId {
	id := f.nextBlockID
	f.nextBlockID++
	f.Blocks[id] = &BasicBlock{ID: id}
	f.BlockOrder = append(f.BlockOrder, id)
	return id
}

// NewValue allocates a fresh SSA value of the given type.
func (f *Function) NewValue(t types.Type) ValueId {
	id := f.nextValueID
	f.nextValueID++
	f.ValueTypes[id] = t
	return id
}

// Emit appends inst to the named block. It is an error (panicked, an
// ICE per §7's E0xxx taxonomy) to emit after that block's terminator.
func (f *Function) Emit(block BlockId, inst Instruction) {
	b, ok := f.Blocks[block]
	if !ok {
		panic(fmt.Sprintf("mir: emit into unknown block b%d", block))
	}
	if b.Terminator() != nil {
		panic(fmt.Sprintf("mir: emit into already-terminated block b%d", block))
	}
	b.Instructions = append(b.Instructions, inst)
}

// newInstID hands out instruction identity for diagnostics; distinct
// from ValueId since not every instruction defines a value. Kept as a
// per-function counter field, like nextValueID/nextBlockID, so
// concurrent compilation of independent functions never races.
func (f *Function) newInstID() int {
	f.nextInstID++
	return f.nextInstID
}

func (f *Function) newBase(dest ValueId) base {
	return base{id: f.newInstID(), dest: dest}
}

// BuildBinOp appends a BinOp instruction and returns its result value.
func (f *Function) BuildBinOp(block BlockId, op BinOpKind, lhs, rhs Operand, t types.Type) ValueId {
	dest := f.NewValue(t)
	f.Emit(block, &BinOp{base: f.newBase(dest), Op: op, Lhs: lhs, Rhs: rhs, Typ: t})
	return dest
}

// BuildUnaryOp appends a UnaryOp instruction.
func (f *Function) BuildUnaryOp(block BlockId, op UnOpKind, val Operand, t types.Type) ValueId {
	dest := f.NewValue(t)
	f.Emit(block, &UnaryOp{base: f.newBase(dest), Op: op, Val: val, Typ: t})
	return dest
}

// BuildAssign appends a plain copy.
func (f *Function) BuildAssign(block BlockId, src Operand, t types.Type) ValueId {
	dest := f.NewValue(t)
	f.Emit(block, &Assign{base: f.newBase(dest), Src: src, Typ: t})
	return dest
}

// BuildCall appends a Call. If t is types.Unit the returned ValueId is
// -1 (the call defines no usable value).
func (f *Function) BuildCall(block BlockId, callee Operand, args []Operand, t types.Type, eff types.EffectSet) ValueId {
	dest := ValueId(-1)
	if !types.Equal(t, types.Unit) {
		dest = f.NewValue(t)
	}
	f.Emit(block, &Call{base: f.newBase(dest), Callee: callee, Args: args, Typ: t, Eff: eff})
	return dest
}

// BuildLoad appends a Load.
func (f *Function) BuildLoad(block BlockId, addr Operand, t types.Type) ValueId {
	dest := f.NewValue(t)
	f.Emit(block, &Load{base: f.newBase(dest), Addr: addr, Typ: t})
	return dest
}

// BuildStore appends a Store (no result value).
func (f *Function) BuildStore(block BlockId, addr, val Operand) {
	f.Emit(block, &Store{base: f.newBase(-1), Addr: addr, Val: val})
}

// BuildAlloca appends an Alloca and returns the address value.
func (f *Function) BuildAlloca(block BlockId, elem types.Type) ValueId {
	dest := f.NewValue(&types.Reference{Kind: types.RefMut, Elem: elem})
	f.Emit(block, &Alloca{base: f.newBase(dest), Elem: elem})
	return dest
}

// BuildCast appends a Cast.
func (f *Function) BuildCast(block BlockId, val Operand, to types.Type) ValueId {
	dest := f.NewValue(to)
	f.Emit(block, &Cast{base: f.newBase(dest), Val: val, To: to})
	return dest
}

// BuildGetElement appends a GetElement.
func (f *Function) BuildGetElement(block BlockId, baseVal, index Operand, constIdx bool, t types.Type) ValueId {
	dest := f.NewValue(t)
	f.Emit(block, &GetElement{base: f.newBase(dest), BaseVal: baseVal, Index: index, IsConstIdx: constIdx, Typ: t})
	return dest
}

// BuildPhi appends a Phi with no incoming edges yet (the builder fills
// them in once the block's predecessors are known).
func (f *Function) BuildPhi(block BlockId, t types.Type) ValueId {
	dest := f.NewValue(t)
	f.Emit(block, &Phi{base: f.newBase(dest), Typ: t})
	return dest
}

// BuildJump terminates block with an unconditional jump.
func (f *Function) BuildJump(block BlockId, target BlockId) {
	f.Emit(block, &Jump{base: f.newBase(-1), Target: target})
}

// BuildBranch terminates block with a conditional branch.
func (f *Function) BuildBranch(block BlockId, cond Operand, thenB, elseB BlockId) {
	f.Emit(block, &Branch{base: f.newBase(-1), Cond: cond, Then: thenB, Else: elseB})
}

// BuildReturn terminates block with a return.
func (f *Function) BuildReturn(block BlockId, val Operand, hasVal bool) {
	f.Emit(block, &Return{base: f.newBase(-1), Val: val, HasVal: hasVal})
}

// PrependPhi inserts a brand-new Phi at the front of block's
// instruction list, ahead of any existing instructions (including its
// terminator). Used by the inliner to join a callee's several return
// sites after the block already holds the caller's post-call
// instructions and terminator.
func (f *Function) PrependPhi(block BlockId, t types.Type, incoming []PhiEdge) ValueId {
	dest := f.NewValue(t)
	phi := &Phi{base: f.newBase(dest), Typ: t, Incoming: incoming}
	b := f.Blocks[block]
	b.Instructions = append([]Instruction{phi}, b.Instructions...)
	return dest
}

// MakeConstAssign constructs a fresh Assign instruction carrying an
// existing destination value ID. Optimizer passes use this to replace
// a computed instruction (e.g. a foldable BinOp) with its constant
// result while every other instruction's reference to that ValueId
// keeps resolving correctly — Operand references a ValueId, never an
// instruction identity, so no further substitution is required.
func (f *Function) MakeConstAssign(dest ValueId, c Constant, t types.Type) *Assign {
	return &Assign{base: f.newBase(dest), Src: ConstOperand(c), Typ: t}
}

// Module is a compilation unit: a set of functions sharing a global
// namespace of imported externs.
type Module struct {
	Name      string
	Functions []*Function
}

// FindPhi returns the Phi instruction that defines v in block, or nil.
func FindPhi(f *Function, block BlockId, v ValueId) *Phi {
	b, ok := f.Blocks[block]
	if !ok {
		return nil
	}
	for _, inst := range b.Instructions {
		if p, ok := inst.(*Phi); ok && p.Dest() == v {
			return p
		}
	}
	return nil
}

// String renders a function in a debug-readable textual form (not the
// AIR text grammar — see internal/airtext for that format).
func (f *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fn %s() -> %s {\n", f.Name, f.RetType.String())
	for _, id := range f.BlockOrder {
		b := f.Blocks[id]
		fmt.Fprintf(&sb, "b%d:\n", id)
		for _, inst := range b.Instructions {
			fmt.Fprintf(&sb, "  %s\n", inst.String())
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
