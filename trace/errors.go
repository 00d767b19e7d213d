package trace

import (
	"errors"
	"fmt"
)

// Standard error variables for the trace error taxonomy.
var (
	// ErrFormat marks malformed or invariant-violating input data.
	ErrFormat = errors.New("trace format violation")
	// ErrPrecondition marks a producer emitting lines out of contract.
	// It is a programming error in the caller, fatal for the writer instance.
	ErrPrecondition = errors.New("trace precondition violation")
	// ErrConfig marks invalid generator or reader configuration.
	ErrConfig = errors.New("invalid configuration")
	// ErrCompression marks a failure in the compressed transport.
	ErrCompression = errors.New("compression failure")
)

// Invariant names reported by FormatError.
const (
	InvariantHeaderFirst     = "header-first"
	InvariantFooterLast      = "footer-last"
	InvariantUniqueID        = "unique-id"
	InvariantParentOrder     = "parent-before-child"
	InvariantNoForwardRef    = "no-forward-reference"
	InvariantMonotonicClk    = "monotonic-clk"
	InvariantSingleRecordEnd = "single-record-end"
	InvariantWellFormedLine  = "well-formed-line"
)

// FormatError reports an invariant violation at a specific line of a trace.
type FormatError struct {
	Line      int    // 1-based line number in the trace
	Invariant string // one of the Invariant* constants
	Detail    string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Invariant, e.Detail)
}

// Unwrap classifies every FormatError under ErrFormat.
func (e *FormatError) Unwrap() error { return ErrFormat }

func formatErrorf(line int, invariant, format string, args ...interface{}) *FormatError {
	return &FormatError{Line: line, Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}
