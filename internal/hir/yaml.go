package hir

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"aurorac/internal/types"
)

// yamlDoc is the on-disk shape of a compile input (spec.md §6's "typed
// module description"): a module plus whatever config: keys
// internal/config.Load also reads out of the same file.
type yamlDoc struct {
	Module yamlModule `yaml:"module"`
}

type yamlModule struct {
	Name      string         `yaml:"name"`
	Functions []yamlFunction `yaml:"functions"`
}

type yamlFunction struct {
	Name   string       `yaml:"name"`
	Ret    string       `yaml:"ret"`
	Params []yamlParam  `yaml:"params"`
	Body   []yamlStmt   `yaml:"body"`
}

type yamlParam struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// yamlStmt and yamlExpr are flat structs carrying the fields of every
// variant, since Go has no sum-type YAML mapping: a `kind` field
// picks which variant's fields are meaningful, the same discriminator
// idiom the grammar package uses via alternation in struct tags, just
// resolved by hand here instead of by a parser combinator.
type yamlStmt struct {
	Kind  string     `yaml:"kind"`
	Name  string     `yaml:"name"`
	Value *yamlExpr  `yaml:"value"`
	Cond  *yamlExpr  `yaml:"cond"`
	Then  []yamlStmt `yaml:"then"`
	Else  []yamlStmt `yaml:"else"`
	Body  []yamlStmt `yaml:"body"`
}

type yamlExpr struct {
	Kind  string     `yaml:"kind"`
	Value int64      `yaml:"value"`
	Bool  bool       `yaml:"bool"`
	Str   string     `yaml:"str"`
	Type  string     `yaml:"type"`
	Name  string     `yaml:"name"`
	Op    string     `yaml:"op"`
	Lhs   *yamlExpr  `yaml:"lhs"`
	Rhs   *yamlExpr  `yaml:"rhs"`
	Callee *yamlExpr `yaml:"callee"`
	Args  []yamlExpr `yaml:"args"`
}

var primitiveNames = map[string]types.Type{
	"i8": types.I8, "i16": types.I16, "i32": types.I32, "i64": types.I64,
	"u8": types.U8, "u16": types.U16, "u32": types.U32, "u64": types.U64,
	"bool": types.Bool, "f32": types.F32, "f64": types.F64, "unit": types.Unit,
}

func resolveType(name string) (types.Type, error) {
	t, ok := primitiveNames[name]
	if !ok {
		return nil, fmt.Errorf("hir: unknown type name %q", name)
	}
	return t, nil
}

var binaryOps = map[string]BinaryOp{
	"add": OpAdd, "sub": OpSub, "mul": OpMul, "div": OpDiv, "mod": OpMod,
	"eq": OpEq, "ne": OpNe, "lt": OpLt, "le": OpLe, "gt": OpGt, "ge": OpGe,
	"bitand": OpBitAnd, "bitor": OpBitOr, "bitxor": OpBitXor,
	"shl": OpShl, "shr": OpShr, "andand": OpAndAnd, "oror": OpOrOr,
}

// scope tracks bindings declared by a function's params and let
// statements, by name, so later NameExpr references resolve to the
// same hir.Binding identity the builder keys SSA values on.
type scope struct {
	names  map[string]*Binding
	nextID int
}

func newScope() *scope { return &scope{names: make(map[string]*Binding)} }

func (s *scope) declare(name string, t types.Type) *Binding {
	s.nextID++
	b := &Binding{ID: s.nextID, Name: name, Type: t}
	s.names[name] = b
	return b
}

func (s *scope) lookup(name string) (*Binding, error) {
	b, ok := s.names[name]
	if !ok {
		return nil, fmt.Errorf("hir: undeclared name %q", name)
	}
	return b, nil
}

// LoadModule reads a YAML file's module: section into an hir.Module.
// Supported statement kinds: let, assign, return, expr, if, while.
// Supported expression kinds: int, bool, str, name, binary, call,
// funcref; unary expressions have no kind here and are not decoded.
// This covers a useful subset of the source language's surface
// — enough to drive the MIR/AIR pipeline end to end from a plain text
// file without a full front-end parser, which is out of scope here
// (spec.md's Non-goals: "no new parser/typechecker").
func LoadModule(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading module %s: %w", path, err)
	}
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing module %s: %w", path, err)
	}

	mod := &Module{Name: doc.Module.Name}
	for _, f := range doc.Module.Functions {
		fn, err := decodeFunction(f)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Name, err)
		}
		mod.Functions = append(mod.Functions, fn)
	}
	return mod, nil
}

func decodeFunction(yf yamlFunction) (*Function, error) {
	ret, err := resolveType(yf.Ret)
	if err != nil {
		return nil, err
	}
	sc := newScope()
	fn := &Function{Name: yf.Name, Ret: ret}
	for _, p := range yf.Params {
		pt, err := resolveType(p.Type)
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, sc.declare(p.Name, pt))
	}
	body, err := decodeStmts(sc, yf.Body)
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

func decodeStmts(sc *scope, ys []yamlStmt) ([]Stmt, error) {
	var out []Stmt
	for _, ys := range ys {
		s, err := decodeStmt(sc, ys)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeStmt(sc *scope, ys yamlStmt) (Stmt, error) {
	switch ys.Kind {
	case "let":
		val, err := decodeExpr(sc, ys.Value)
		if err != nil {
			return nil, err
		}
		b := sc.declare(ys.Name, val.ExprType())
		return &LetStmt{Binding: b, Value: val}, nil

	case "assign":
		b, err := sc.lookup(ys.Name)
		if err != nil {
			return nil, err
		}
		val, err := decodeExpr(sc, ys.Value)
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Target: &NameExpr{Binding: b}, Value: val}, nil

	case "return":
		if ys.Value == nil {
			return &ReturnStmt{}, nil
		}
		val, err := decodeExpr(sc, ys.Value)
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{Value: val}, nil

	case "expr":
		val, err := decodeExpr(sc, ys.Value)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Value: val}, nil

	case "if":
		cond, err := decodeExpr(sc, ys.Cond)
		if err != nil {
			return nil, err
		}
		then, err := decodeStmts(sc, ys.Then)
		if err != nil {
			return nil, err
		}
		els, err := decodeStmts(sc, ys.Else)
		if err != nil {
			return nil, err
		}
		return &IfStmt{Cond: cond, Then: then, Else: els}, nil

	case "while":
		cond, err := decodeExpr(sc, ys.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeStmts(sc, ys.Body)
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Cond: cond, Body: body}, nil

	default:
		return nil, fmt.Errorf("hir: unknown statement kind %q", ys.Kind)
	}
}

func decodeExpr(sc *scope, ye *yamlExpr) (Expr, error) {
	if ye == nil {
		return nil, fmt.Errorf("hir: missing expression")
	}
	switch ye.Kind {
	case "int":
		t := types.Type(types.I64)
		if ye.Type != "" {
			var err error
			t, err = resolveType(ye.Type)
			if err != nil {
				return nil, err
			}
		}
		return &IntLit{Value: ye.Value, Type: t}, nil

	case "bool":
		return &BoolLit{Value: ye.Bool}, nil

	case "str":
		return &StringLit{Value: ye.Str}, nil

	case "name":
		b, err := sc.lookup(ye.Name)
		if err != nil {
			return nil, err
		}
		return &NameExpr{Binding: b}, nil

	case "binary":
		op, ok := binaryOps[ye.Op]
		if !ok {
			return nil, fmt.Errorf("hir: unknown binary operator %q", ye.Op)
		}
		lhs, err := decodeExpr(sc, ye.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeExpr(sc, ye.Rhs)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, Lhs: lhs, Rhs: rhs, Type: lhs.ExprType()}, nil

	case "call":
		callee, err := decodeExpr(sc, ye.Callee)
		if err != nil {
			return nil, err
		}
		args := make([]Expr, len(ye.Args))
		for i := range ye.Args {
			a, err := decodeExpr(sc, &ye.Args[i])
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		retType := types.Type(types.Unit)
		if ye.Type != "" {
			retType, err = resolveType(ye.Type)
			if err != nil {
				return nil, err
			}
		}
		return &CallExpr{Callee: callee, Args: args, Type: retType}, nil

	case "funcref":
		return &FuncRefExpr{Name: ye.Name, Type: &types.Function{}}, nil

	default:
		return nil, fmt.Errorf("hir: unknown expression kind %q", ye.Kind)
	}
}
