package airtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurorac/internal/air"
)

func sampleModule() *air.Module {
	return &air.Module{
		Name: "m",
		Data: []air.Data{
			{Label: ".str0", Kind: air.DataString, Str: "hi"},
		},
		Functions: []*air.Function{
			{
				Name:        "add_one",
				FrameSize:   16,
				CalleeSaved: []air.Register{air.RBX},
				Instructions: []air.Instr{
					{Op: air.OpLabelDecl, Label: "entry"},
					{Op: air.OpMov, Src: air.Imm(1), Dst: air.Reg(air.RAX), HasSrc: true, HasDst: true},
					{Op: air.OpAdd, Src: air.Reg(air.RBX), Dst: air.Reg(air.RAX), HasSrc: true, HasDst: true},
					{Op: air.OpLea, Src: air.Mem(air.RBP, -8), Dst: air.Reg(air.RCX), HasSrc: true, HasDst: true},
					{Op: air.OpJmp, Label: "entry"},
					{Op: air.OpRet},
				},
			},
		},
	}
}

func TestPrintFunctionRendersLabelsAndInstructions(t *testing.T) {
	out := PrintFunction(sampleModule().Functions[0])
	assert.Contains(t, out, "function add_one frame 16 callee [%rbx]")
	assert.Contains(t, out, "entry:")
	assert.Contains(t, out, "mov $1, %rax")
	assert.Contains(t, out, "jmp entry")
	assert.Contains(t, out, "ret")
	assert.Contains(t, out, "endfunction")
}

func TestParseRoundTripsModuleStructure(t *testing.T) {
	mod := sampleModule()
	text := Print(mod)

	parsed, err := Parse(text)
	require.NoError(t, err)

	require.Len(t, parsed.Functions, 1)
	fn := parsed.Functions[0]
	assert.Equal(t, "add_one", fn.Name)
	assert.Equal(t, int64(16), fn.FrameSize)
	require.Len(t, fn.CalleeSaved, 1)
	assert.Equal(t, air.RBX, fn.CalleeSaved[0])

	require.Len(t, parsed.Data, 1)
	assert.Equal(t, "hi", parsed.Data[0].Str)
}

func TestParseRoundTripsOperandKinds(t *testing.T) {
	mod := sampleModule()
	parsed, err := Parse(Print(mod))
	require.NoError(t, err)

	fn := parsed.Functions[0]
	var movInstr, leaInstr air.Instr
	for _, ins := range fn.Instructions {
		if ins.Op == air.OpMov {
			movInstr = ins
		}
		if ins.Op == air.OpLea {
			leaInstr = ins
		}
	}

	assert.Equal(t, air.OpImm, movInstr.Src.Kind)
	assert.Equal(t, int64(1), movInstr.Src.Imm)
	assert.Equal(t, air.OpReg, movInstr.Dst.Kind)
	assert.Equal(t, air.RAX, movInstr.Dst.Reg)

	assert.Equal(t, air.OpMem, leaInstr.Src.Kind)
	assert.Equal(t, air.RBP, leaInstr.Src.Base)
	assert.Equal(t, int64(-8), leaInstr.Src.Offset)
}

// Round-tripping a module through Print/Parse is identity modulo
// comments: an OpComment instruction prints as a `#`-led line, which
// the lexer elides entirely, so it never reappears on parse-back while
// every other instruction survives unchanged.
func TestRoundTripIsIdentityModuloComments(t *testing.T) {
	mod := sampleModule()
	fn := mod.Functions[0]
	fn.Instructions = append([]air.Instr{
		{Op: air.OpComment, Comment: "entry point"},
	}, fn.Instructions...)

	text := Print(mod)
	require.Contains(t, text, "# entry point")

	parsed, err := Parse(text)
	require.NoError(t, err)

	var comments int
	for _, ins := range parsed.Functions[0].Instructions {
		if ins.Op == air.OpComment {
			comments++
		}
	}
	assert.Equal(t, 0, comments, "expected the comment instruction to be dropped on round-trip")

	nonComment := make([]air.Instr, 0, len(fn.Instructions))
	for _, ins := range fn.Instructions {
		if ins.Op != air.OpComment {
			nonComment = append(nonComment, ins)
		}
	}
	require.Len(t, parsed.Functions[0].Instructions, len(nonComment))
	for i, ins := range nonComment {
		assert.Equal(t, ins.Op, parsed.Functions[0].Instructions[i].Op)
	}
}

func TestParseRejectsUnknownMnemonic(t *testing.T) {
	_, err := Parse("module m\nfunction f frame 0\n  bogus %rax\nendfunction\n")
	assert.Error(t, err)
}

func TestParseAcceptsVRegPlaceholders(t *testing.T) {
	src := "module m\nfunction f frame 0\n  add %v2, %v1\nendfunction\n"
	mod, err := Parse(src)
	require.NoError(t, err)
	ins := mod.Functions[0].Instructions[0]
	assert.Equal(t, air.OpVReg, ins.Src.Kind)
	assert.Equal(t, int64(2), ins.Src.Imm)
	assert.Equal(t, air.OpVReg, ins.Dst.Kind)
	assert.Equal(t, int64(1), ins.Dst.Imm)
}
