package regalloc

import (
	"sort"
	"testing"

	"aurorac/internal/air"
)

func TestAllocateAssignsPhysicalRegisterToSingleVReg(t *testing.T) {
	fn := &air.Function{
		Name: "f",
		Instructions: []air.Instr{
			{Op: air.OpMov, Dst: air.VReg(0), Src: air.Imm(42), HasDst: true, HasSrc: true},
			{Op: air.OpMov, Dst: air.Reg(air.RAX), Src: air.VReg(0), HasDst: true, HasSrc: true},
			{Op: air.OpRet},
		},
	}
	Allocate(fn)
	for _, ins := range fn.Instructions {
		if ins.HasDst && ins.Dst.Kind == air.OpVReg {
			t.Fatalf("expected no remaining vreg destinations, found one: %s", ins.Dst)
		}
		if ins.HasSrc && ins.Src.Kind == air.OpVReg {
			t.Fatalf("expected no remaining vreg sources, found one: %s", ins.Src)
		}
	}
}

func TestAllocateSpillsWhenMoreLiveValuesThanRegisters(t *testing.T) {
	fn := &air.Function{Name: "f"}
	n := len(air.AllocatableOrder) + 4
	for i := 0; i < n; i++ {
		fn.Instructions = append(fn.Instructions, air.Instr{
			Op: air.OpMov, Dst: air.VReg(i), Src: air.Imm(int64(i)), HasDst: true, HasSrc: true,
		})
	}
	// Use every value at the end so they're all simultaneously live.
	acc := air.VReg(n)
	fn.Instructions = append(fn.Instructions, air.Instr{Op: air.OpMov, Dst: acc, Src: air.Imm(0), HasDst: true, HasSrc: true})
	for i := 0; i < n; i++ {
		fn.Instructions = append(fn.Instructions, air.Instr{Op: air.OpAdd, Dst: acc, Src: air.VReg(i), HasDst: true, HasSrc: true})
	}
	fn.Instructions = append(fn.Instructions, air.Instr{Op: air.OpRet})

	result := Allocate(fn)
	if result.SpillBytes == 0 {
		t.Error("expected at least one spilled value given more concurrently live values than registers")
	}
}

func TestAllocateTracksCalleeSavedRegistersUsed(t *testing.T) {
	fn := &air.Function{Name: "f"}
	n := len(air.AllocatableOrder)
	for i := 0; i < n; i++ {
		fn.Instructions = append(fn.Instructions, air.Instr{
			Op: air.OpMov, Dst: air.VReg(i), Src: air.Imm(int64(i)), HasDst: true, HasSrc: true,
		})
	}
	acc := air.VReg(n)
	fn.Instructions = append(fn.Instructions, air.Instr{Op: air.OpMov, Dst: acc, Src: air.Imm(0), HasDst: true, HasSrc: true})
	for i := 0; i < n; i++ {
		fn.Instructions = append(fn.Instructions, air.Instr{Op: air.OpAdd, Dst: acc, Src: air.VReg(i), HasDst: true, HasSrc: true})
	}
	fn.Instructions = append(fn.Instructions, air.Instr{Op: air.OpRet})

	result := Allocate(fn)
	if len(result.CalleeSaved) == 0 {
		t.Error("expected some callee-saved registers to be used once every caller-saved slot is exhausted")
	}
}

// Reproduces the traced collision: a short-lived interval (A) expires
// out of the active set before a longer-lived one (B) does, and the
// next interval allocated afterward (C) must not land on B's register
// just because the active set's length happens to match B's old
// index. A[0,1], B[0,10], C[2,3]: once A expires only B is active, so
// a length-indexed allocator hands C the slot at index 1 — B's
// register — even though B is still live across C's whole range.
func TestAllocateDoesNotReuseRegisterOfStillLiveIntervalAfterEarlierExpiry(t *testing.T) {
	a := &Allocator{
		allocation:  make(map[int]air.Register),
		spillOffset: make(map[int]int64),
		calleeSaved: make(map[air.Register]bool),
	}
	intervals := []liveInterval{
		{vreg: 0, start: 0, end: 1},  // A: expires early
		{vreg: 1, start: 0, end: 10}, // B: stays live throughout
		{vreg: 2, start: 2, end: 3},  // C: allocated after A expires, while B is still active
	}
	a.linearScan(intervals)

	regA, okA := a.allocation[0]
	regB, okB := a.allocation[1]
	regC, okC := a.allocation[2]
	if !okA || !okB || !okC {
		t.Fatalf("expected all three vregs to receive registers, got A=%v(%v) B=%v(%v) C=%v(%v)", regA, okA, regB, okB, regC, okC)
	}
	if regC == regB {
		t.Errorf("C [2,3] must not reuse B's register %s while B [0,10] is still live", regB)
	}
}

// Two vregs assigned the same physical register must never have
// overlapping live ranges — the allocator's core safety property.
func TestAllocateNeverAssignsOverlappingIntervalsToSameRegister(t *testing.T) {
	fn := &air.Function{Name: "f"}
	n := len(air.AllocatableOrder) + 3
	for i := 0; i < n; i++ {
		fn.Instructions = append(fn.Instructions, air.Instr{
			Op: air.OpMov, Dst: air.VReg(i), Src: air.Imm(int64(i)), HasDst: true, HasSrc: true,
		})
	}
	acc := air.VReg(n)
	fn.Instructions = append(fn.Instructions, air.Instr{Op: air.OpMov, Dst: acc, Src: air.Imm(0), HasDst: true, HasSrc: true})
	for i := 0; i < n; i++ {
		fn.Instructions = append(fn.Instructions, air.Instr{Op: air.OpAdd, Dst: acc, Src: air.VReg(i), HasDst: true, HasSrc: true})
	}
	fn.Instructions = append(fn.Instructions, air.Instr{Op: air.OpRet})

	a := &Allocator{
		allocation:  make(map[int]air.Register),
		spillOffset: make(map[int]int64),
		calleeSaved: make(map[air.Register]bool),
	}
	intervals := a.computeLiveIntervals(fn)
	byVReg := make(map[int]liveInterval, len(intervals))
	for _, iv := range intervals {
		byVReg[iv.vreg] = iv
	}

	sort.Slice(intervals, func(i, j int) bool { return intervals[i].start < intervals[j].start })
	a.linearScan(intervals)

	byReg := make(map[air.Register][]int)
	for vreg, reg := range a.allocation {
		byReg[reg] = append(byReg[reg], vreg)
	}
	for reg, vregs := range byReg {
		for i := 0; i < len(vregs); i++ {
			for j := i + 1; j < len(vregs); j++ {
				ivA, ivB := byVReg[vregs[i]], byVReg[vregs[j]]
				if ivA.start <= ivB.end && ivB.start <= ivA.end {
					t.Errorf("register %s: intervals for v%d [%d,%d] and v%d [%d,%d] overlap",
						reg, ivA.vreg, ivA.start, ivA.end, ivB.vreg, ivB.start, ivB.end)
				}
			}
		}
	}
}
