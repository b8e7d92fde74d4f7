package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatIncludesLevelCodeAndMessage(t *testing.T) {
	e := CompilerError{
		Level:   Error,
		Code:    ErrInvariantViolation,
		Message: "block b3 has no terminator",
		Pos:     Position{Function: "add_one", Block: 3, Inst: 2},
	}
	out := Format(e)
	assert.Contains(t, out, "error["+ErrInvariantViolation+"]")
	assert.Contains(t, out, "block b3 has no terminator")
	assert.Contains(t, out, "add_one:b3:#2")
}

func TestFormatIncludesNotesAndHelp(t *testing.T) {
	e := CompilerError{
		Level:    Warning,
		Code:     ErrInlineBudgetExceeded,
		Message:  "callee exceeds inline budget",
		Pos:      Position{Function: "f", Block: 0, Inst: 0},
		Notes:    []string{"budget was 50 instructions"},
		HelpText: "raise the inline budget or mark the callee #[noinline]",
	}
	out := Format(e)
	assert.Contains(t, out, "note:")
	assert.Contains(t, out, "budget was 50 instructions")
	assert.Contains(t, out, "help:")
}

func TestReporterHasErrorsOnlyCountsErrorLevel(t *testing.T) {
	r := NewReporter()
	r.Report(CompilerError{Level: Warning, Code: ErrIterationBudgetExceeded, Message: "w"})
	assert.False(t, r.HasErrors())

	r.Report(CompilerError{Level: Error, Code: ErrDanglingReference, Message: "e"})
	assert.True(t, r.HasErrors())
	assert.Len(t, r.Errors(), 2)
}

func TestFormatAllRendersEveryReportedError(t *testing.T) {
	r := NewReporter()
	r.Report(CompilerError{Level: Error, Code: ErrUnresolvedVReg, Message: "first"})
	r.Report(CompilerError{Level: Error, Code: ErrMalformedAirText, Message: "second"})
	out := r.FormatAll()
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
}
