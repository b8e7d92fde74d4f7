package airtext

import (
	"fmt"
	"strings"

	"aurorac/internal/air"
)

// Print renders a whole module as text: the data section (if any
// constants were interned) followed by every function in order.
// Grounded on kanso/grammar's Program.String/StringWithIndent
// recursive-builder style.
func Print(mod *air.Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s\n\n", mod.Name)
	if len(mod.Data) > 0 {
		b.WriteString("data\n")
		for _, d := range mod.Data {
			b.WriteString(printData(d))
		}
		b.WriteString("enddata\n\n")
	}
	for _, fn := range mod.Functions {
		b.WriteString(PrintFunction(fn))
		b.WriteString("\n")
	}
	return b.String()
}

func printData(d air.Data) string {
	switch d.Kind {
	case air.DataString:
		return fmt.Sprintf("  %s: string %q\n", d.Label, d.Str)
	case air.DataBytes:
		var parts []string
		for _, byt := range d.Bytes {
			parts = append(parts, fmt.Sprintf("0x%02x", byt))
		}
		return fmt.Sprintf("  %s: bytes %s\n", d.Label, strings.Join(parts, " "))
	case air.DataWord:
		return fmt.Sprintf("  %s: word %d\n", d.Label, d.Word)
	default:
		return ""
	}
}

// PrintFunction renders one function's frame metadata, callee-saved
// set, and instruction stream.
func PrintFunction(fn *air.Function) string {
	var b strings.Builder
	fmt.Fprintf(&b, "function %s frame %d", fn.Name, fn.FrameSize)
	if len(fn.CalleeSaved) > 0 {
		var regs []string
		for _, r := range fn.CalleeSaved {
			regs = append(regs, "%"+r.String())
		}
		fmt.Fprintf(&b, " callee [%s]", strings.Join(regs, ", "))
	}
	b.WriteString("\n")
	for _, ins := range fn.Instructions {
		b.WriteString(printInstr(ins))
	}
	b.WriteString("endfunction\n")
	return b.String()
}

func printInstr(ins air.Instr) string {
	switch ins.Op {
	case air.OpLabelDecl:
		return "  " + ins.Label + ":\n"
	case air.OpComment:
		return "  # " + ins.Comment + "\n"
	case air.OpNop:
		return "  nop\n"
	case air.OpRet:
		return "  ret\n"
	}
	if ins.Op.IsJump() || ins.Op == air.OpCall {
		return fmt.Sprintf("  %s %s\n", ins.Op, ins.Label)
	}
	if ins.HasDst && ins.HasSrc {
		return fmt.Sprintf("  %s %s, %s\n", ins.Op, ins.Src, ins.Dst)
	}
	if ins.HasDst {
		return fmt.Sprintf("  %s %s\n", ins.Op, ins.Dst)
	}
	return "  " + ins.Op.String() + "\n"
}
