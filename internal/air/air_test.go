package air

import "testing"

func TestRegisterStringAndSaveClass(t *testing.T) {
	if RAX.String() != "rax" {
		t.Errorf("expected rax, got %s", RAX.String())
	}
	if !RBX.IsCalleeSaved() {
		t.Error("rbx should be callee-saved")
	}
	if RAX.IsCalleeSaved() {
		t.Error("rax should not be callee-saved")
	}
}

func TestAllocatableOrderPutsCallerSavedFirst(t *testing.T) {
	if AllocatableOrder[0] != RAX {
		t.Errorf("expected rax first in allocation order, got %s", AllocatableOrder[0])
	}
	if AllocatableOrder[len(AllocatableOrder)-1] != R15 {
		t.Errorf("expected r15 last, got %s", AllocatableOrder[len(AllocatableOrder)-1])
	}
}

func TestOperandStrings(t *testing.T) {
	if Reg(RDI).String() != "%rdi" {
		t.Errorf("unexpected reg operand string: %s", Reg(RDI).String())
	}
	if Imm(42).String() != "$42" {
		t.Errorf("unexpected imm operand string: %s", Imm(42).String())
	}
	if Mem(RBX, -8).String() != "-8(%rbx)" {
		t.Errorf("unexpected mem operand string: %s", Mem(RBX, -8).String())
	}
	if VReg(3).String() != "%v3" {
		t.Errorf("unexpected vreg operand string: %s", VReg(3).String())
	}
}

func TestInstrString(t *testing.T) {
	i := Instr{Op: OpMov, Dst: Reg(RAX), Src: Imm(1), HasDst: true, HasSrc: true}
	want := "  mov $1, %rax"
	if i.String() != want {
		t.Errorf("expected %q, got %q", want, i.String())
	}
}

func TestOpcodeIsJump(t *testing.T) {
	if !OpJe.IsJump() {
		t.Error("je should be a jump")
	}
	if OpMov.IsJump() {
		t.Error("mov should not be a jump")
	}
}
