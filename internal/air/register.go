// Package air implements the two-address, assembly-like instruction
// set the AIR emitter (internal/emitter) targets and the register
// allocator (internal/regalloc), peephole rewriter (internal/peephole)
// and scheduler (internal/scheduler) all operate over.
package air

// Register is a closed enum over a 14-entry x86-64-style
// general-purpose register pool, split into caller-saved and
// callee-saved sets per the System V calling convention spec.md §4.4
// names. RSP/RBP are not modeled as allocatable registers — frame
// management is the emitter's job, not the allocator's.
type Register int

const (
	RAX Register = iota
	RCX
	RDX
	RBX
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	// RBP and RSP are named for operand rendering (frame-relative
	// addressing, stack pointer adjustment) but are never handed out
	// by the allocator — they're absent from AllocatableOrder.
	RBP
	RSP
)

func (r Register) String() string {
	names := [...]string{
		"rax", "rcx", "rdx", "rbx", "rsi", "rdi", "r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
		"rbp", "rsp",
	}
	if int(r) < len(names) {
		return names[r]
	}
	return "unknown"
}

// ArgRegisters is the System V integer argument-passing order.
var ArgRegisters = []Register{RDI, RSI, RDX, RCX, R8, R9}

// CallerSaved lists registers a callee may clobber; a caller must
// assume their contents are destroyed across any Call.
var CallerSaved = []Register{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11}

// CalleeSaved lists registers a callee must restore before returning
// if it uses them.
var CalleeSaved = []Register{RBX, R12, R13, R14, R15}

// AllocatableOrder is the preference order the register allocator
// assigns from: caller-saved first (cheaper — no save/restore
// obligation for leaf-ish functions), callee-saved last, matching
// original_source/aurora_air/src/regalloc.rs's available_regs order.
var AllocatableOrder = append(append([]Register{}, CallerSaved...), CalleeSaved...)

func (r Register) IsCalleeSaved() bool {
	for _, c := range CalleeSaved {
		if c == r {
			return true
		}
	}
	return false
}
