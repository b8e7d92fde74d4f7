// Package diagnostics renders compiler errors with Rust-style caret
// diagnostics. Grounded on kanso/internal/errors's CompilerError /
// ErrorReporter shape, re-keyed from semantic-analysis error codes to
// the MIR/AIR pass-failure taxonomy of spec.md §7 (see codes.go).
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a reported diagnostic.
type Level string

const (
	Error   Level = "error"
	Warning Level = "warning"
	Note    Level = "note"
)

// Position locates a diagnostic in a source function: not a source
// file line/column (the front end owns that), but the MIR/AIR
// coordinates a pass failure actually has available — the function,
// block, and instruction it was processing.
type Position struct {
	Function string
	Block    int
	Inst     int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:b%d:#%d", p.Function, p.Block, p.Inst)
}

// CompilerError is one structured diagnostic: a pass failure, an
// internal-invariant violation, or a budget overrun.
type CompilerError struct {
	Level    Level
	Code     string
	Message  string
	Pos      Position
	Notes    []string
	HelpText string
}

func (e CompilerError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Reporter accumulates and renders diagnostics for one compilation
// run, the way kanso/internal/errors.ErrorReporter renders against one
// source file — here against the pass pipeline instead.
type Reporter struct {
	errors []CompilerError
}

func NewReporter() *Reporter { return &Reporter{} }

func (r *Reporter) Report(e CompilerError) { r.errors = append(r.errors, e) }

func (r *Reporter) HasErrors() bool {
	for _, e := range r.errors {
		if e.Level == Error {
			return true
		}
	}
	return false
}

func (r *Reporter) Errors() []CompilerError { return r.errors }

// Format renders a single diagnostic with color-coded severity and a
// caret pointing at the offending instruction's coordinates.
func Format(e CompilerError) string {
	var sb strings.Builder
	levelColor := levelColor(e.Level)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if e.Code != "" {
		sb.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(e.Level)), e.Code, e.Message))
	} else {
		sb.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(e.Level)), e.Message))
	}
	sb.WriteString(fmt.Sprintf("   %s %s\n", dim("-->"), e.Pos.String()))
	sb.WriteString(fmt.Sprintf("    %s %s\n", dim("│"), bold(strings.Repeat("^", 1))))

	for _, note := range e.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", dim("│"), noteColor("note:"), note))
	}
	if e.HelpText != "" {
		helpColor := color.New(color.FgGreen).SprintFunc()
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", dim("│"), helpColor("help:"), e.HelpText))
	}
	sb.WriteString("\n")
	return sb.String()
}

// FormatAll renders every accumulated diagnostic in report order.
func (r *Reporter) FormatAll() string {
	var sb strings.Builder
	for _, e := range r.errors {
		sb.WriteString(Format(e))
	}
	return sb.String()
}

func levelColor(l Level) func(...interface{}) string {
	switch l {
	case Error:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}
