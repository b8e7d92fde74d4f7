package airtext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"

	"aurorac/internal/air"
	"aurorac/internal/diagnostics"
)

var parser = participle.MustBuild[File](
	participle.Lexer(Lexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

// Parse reads one AIR module back out of its textual form. Round-trip
// is identity modulo OpComment instructions, which the lexer elides as
// comments rather than threading back through the grammar.
func Parse(src string) (*air.Module, error) {
	f, err := parser.ParseString("", src)
	if err != nil {
		if pe, ok := err.(participle.Error); ok {
			return nil, diagnostics.CompilerError{
				Level:   diagnostics.Error,
				Code:    diagnostics.ErrMalformedAirText,
				Message: pe.Message(),
			}
		}
		return nil, err
	}
	return build(f)
}

func build(f *File) (*air.Module, error) {
	mod := &air.Module{Name: f.Module}
	for _, d := range f.DataDecls {
		data, err := buildData(d)
		if err != nil {
			return nil, err
		}
		mod.Data = append(mod.Data, data)
	}
	for _, fd := range f.Functions {
		fn, err := buildFunction(fd)
		if err != nil {
			return nil, err
		}
		mod.Functions = append(mod.Functions, fn)
	}
	return mod, nil
}

func buildData(d *DataDecl) (air.Data, error) {
	switch {
	case d.StrVal != nil:
		return air.Data{Label: d.Label, Kind: air.DataString, Str: unquote(*d.StrVal)}, nil
	case len(d.ByteVals) > 0:
		bytes := make([]byte, 0, len(d.ByteVals))
		for _, b := range d.ByteVals {
			v, err := strconv.ParseInt(b, 0, 16)
			if err != nil {
				return air.Data{}, err
			}
			bytes = append(bytes, byte(v))
		}
		return air.Data{Label: d.Label, Kind: air.DataBytes, Bytes: bytes}, nil
	case d.WordVal != nil:
		v, err := strconv.ParseInt(*d.WordVal, 0, 64)
		if err != nil {
			return air.Data{}, err
		}
		return air.Data{Label: d.Label, Kind: air.DataWord, Word: v}, nil
	default:
		return air.Data{Label: d.Label}, nil
	}
}

func buildFunction(fd *FuncDecl) (*air.Function, error) {
	frame, err := strconv.ParseInt(fd.Frame, 10, 64)
	if err != nil {
		return nil, err
	}
	fn := &air.Function{Name: fd.Name, FrameSize: frame}
	for _, r := range fd.CalleeSaved {
		reg, ok := registerByName(strings.TrimPrefix(r, "%"))
		if !ok {
			return nil, fmt.Errorf("unknown callee-saved register %q", r)
		}
		fn.CalleeSaved = append(fn.CalleeSaved, reg)
	}
	for _, line := range fd.Lines {
		ins, err := buildLine(line)
		if err != nil {
			return nil, err
		}
		fn.Instructions = append(fn.Instructions, ins)
	}
	return fn, nil
}

func buildLine(l *Line) (air.Instr, error) {
	if l.LabelDecl != nil {
		return air.Instr{Op: air.OpLabelDecl, Label: *l.LabelDecl}, nil
	}
	return buildInstr(l.Instr)
}

var mnemonics = map[string]air.Opcode{
	"mov": air.OpMov, "add": air.OpAdd, "sub": air.OpSub, "imul": air.OpImul,
	"idiv": air.OpIdiv, "and": air.OpAnd, "or": air.OpOr, "xor": air.OpXor,
	"not": air.OpNot, "shl": air.OpShl, "shr": air.OpShr, "sar": air.OpSar,
	"cmp": air.OpCmp, "test": air.OpTest, "lea": air.OpLea,
	"movzx": air.OpMovzx, "movsx": air.OpMovsx,
	"jmp": air.OpJmp, "je": air.OpJe, "jne": air.OpJne, "jl": air.OpJl,
	"jle": air.OpJle, "jg": air.OpJg, "jge": air.OpJge,
	"call": air.OpCall, "ret": air.OpRet, "push": air.OpPush, "pop": air.OpPop,
	"nop": air.OpNop,
}

func buildInstr(i *Instr) (air.Instr, error) {
	op, ok := mnemonics[i.Mnemonic]
	if !ok {
		return air.Instr{}, fmt.Errorf("unknown mnemonic %q", i.Mnemonic)
	}
	ins := air.Instr{Op: op}
	switch {
	case op.IsJump() || op == air.OpCall:
		if len(i.Operands) != 1 || i.Operands[0].Label == "" {
			return air.Instr{}, fmt.Errorf("%s expects a single label target", i.Mnemonic)
		}
		ins.Label = i.Operands[0].Label
	case op == air.OpRet || op == air.OpNop:
		// no operands
	case len(i.Operands) == 2:
		// text order is src, dst (AT&T); air.Instr also stores src/dst
		// in that order.
		src, err := buildOperand(i.Operands[0])
		if err != nil {
			return air.Instr{}, err
		}
		dst, err := buildOperand(i.Operands[1])
		if err != nil {
			return air.Instr{}, err
		}
		ins.Src, ins.HasSrc = src, true
		ins.Dst, ins.HasDst = dst, true
	case len(i.Operands) == 1:
		dst, err := buildOperand(i.Operands[0])
		if err != nil {
			return air.Instr{}, err
		}
		ins.Dst, ins.HasDst = dst, true
	}
	return ins, nil
}

func buildOperand(o *Operand) (air.Operand, error) {
	switch {
	case o.Mem != nil:
		return buildMem(o.Mem)
	case o.Reg != "":
		reg, ok := registerByName(strings.TrimPrefix(o.Reg, "%"))
		if !ok {
			return air.Operand{}, fmt.Errorf("unknown register %q", o.Reg)
		}
		return air.Reg(reg), nil
	case o.VReg != "":
		id, err := strconv.Atoi(strings.TrimPrefix(o.VReg, "%v"))
		if err != nil {
			return air.Operand{}, err
		}
		return air.VReg(id), nil
	case o.Imm != "":
		v, err := strconv.ParseInt(o.Imm, 0, 64)
		if err != nil {
			return air.Operand{}, err
		}
		return air.Imm(v), nil
	default:
		return air.Lbl(o.Label), nil
	}
}

func buildMem(m *MemOperand) (air.Operand, error) {
	offset, err := strconv.ParseInt(m.Offset, 10, 64)
	if err != nil {
		return air.Operand{}, err
	}
	if strings.HasPrefix(m.Base, "%v") {
		id, err := strconv.Atoi(strings.TrimPrefix(m.Base, "%v"))
		if err != nil {
			return air.Operand{}, err
		}
		return air.MemVReg(id, offset), nil
	}
	base, ok := registerByName(strings.TrimPrefix(m.Base, "%"))
	if !ok {
		return air.Operand{}, fmt.Errorf("unknown base register %q", m.Base)
	}
	if m.Index == "" {
		return air.Mem(base, offset), nil
	}
	index, ok := registerByName(strings.TrimPrefix(m.Index, "%"))
	if !ok {
		return air.Operand{}, fmt.Errorf("unknown index register %q", m.Index)
	}
	scale := 1
	if m.Scale != "" {
		s, err := strconv.Atoi(m.Scale)
		if err != nil {
			return air.Operand{}, err
		}
		scale = s
	}
	return air.MemIndexed(base, index, scale, offset), nil
}

var registerNames = map[string]air.Register{
	"rax": air.RAX, "rcx": air.RCX, "rdx": air.RDX, "rbx": air.RBX,
	"rsi": air.RSI, "rdi": air.RDI, "r8": air.R8, "r9": air.R9,
	"r10": air.R10, "r11": air.R11, "r12": air.R12, "r13": air.R13,
	"r14": air.R14, "r15": air.R15, "rbp": air.RBP, "rsp": air.RSP,
}

func registerByName(name string) (air.Register, bool) {
	r, ok := registerNames[name]
	return r, ok
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.Replace(s, `\"`, `"`, -1)
}
