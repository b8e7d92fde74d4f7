package diagnostics

// Error codes for the backend. Ranges follow spec.md §7's taxonomy:
//
// E0001-E0099: internal compiler errors (ICE) — invariant violations
// E0100-E0199: pass precondition failures
// E0200-E0299: budget/resource exhaustion
// E0300-E0399: emission/encoding failures

const (
	// E0001: an optimizer or backend pass observed a MIR/AIR invariant
	// it assumed always held (e.g. a block with no terminator).
	ErrInvariantViolation = "E0001"

	// E0002: an instruction referenced a ValueId or BlockId that does
	// not exist in the function being processed.
	ErrDanglingReference = "E0002"

	// E0100: a pass's precondition failed (e.g. SROA asked to split an
	// alloca that has a non-constant-index use).
	ErrPassPrecondition = "E0100"

	// E0101: a pass was asked to run on a function already outside SSA
	// form (multiply-defined ValueId).
	ErrNotSSA = "E0101"

	// E0200: the optimizer's fixed-point iteration cap was hit without
	// convergence.
	ErrIterationBudgetExceeded = "E0200"

	// E0201: the inliner's per-callee instruction budget was exceeded.
	ErrInlineBudgetExceeded = "E0201"

	// E0300: the AIR emitter produced an operand the register allocator
	// could not resolve (a vreg with no live interval).
	ErrUnresolvedVReg = "E0300"

	// E0301: the AIR-text parser rejected malformed input.
	ErrMalformedAirText = "E0301"
)
