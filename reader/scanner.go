package reader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jetstrace/jets/internal/metrics"
	"github.com/jetstrace/jets/trace"
)

// Scanner is the pure-streaming backend core: it reads one line at a time,
// decodes it and validates every invariant at the line boundary, keeping
// only the validation state in memory. The tree-building parser and any
// no-retention consumer are both built on it.
type Scanner struct {
	r         *bufio.Reader
	validator *trace.Validator
	m         *metrics.Metrics
	line      int // physical line number, blank lines included
	done      bool
}

// NewScanner wraps r. The stream must already be decompressed; use Open or
// ParseFile for transparent container handling.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{
		r:         bufio.NewReader(r),
		validator: trace.NewValidator(),
	}
}

// Line returns the physical line number of the last line returned by Next.
func (s *Scanner) Line() int { return s.line }

// Next returns the next validated line. It returns io.EOF at the end of the
// stream and a *trace.FormatError on malformed or invariant-violating
// input; after an error the scanner stays stopped.
func (s *Scanner) Next() (trace.Line, error) {
	if s.done {
		return nil, io.EOF
	}

	for {
		raw, err := s.r.ReadBytes('\n')
		if len(raw) == 0 && err != nil {
			s.done = true
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read line %d: %w", s.line+1, err)
		}
		s.line++

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			if err == io.EOF {
				s.done = true
				return nil, io.EOF
			}
			continue
		}

		l, decErr := trace.Unmarshal(trimmed)
		if decErr != nil {
			s.done = true
			s.m.Violation()
			return nil, &trace.FormatError{
				Line:      s.line,
				Invariant: trace.InvariantWellFormedLine,
				Detail:    decErr.Error(),
			}
		}

		if admitErr := s.validator.Admit(l); admitErr != nil {
			s.done = true
			s.m.Violation()
			var fe *trace.FormatError
			if errors.As(admitErr, &fe) {
				// Restamp with the physical line number: the validator only
				// counts admitted lines and never sees blanks.
				fe.Line = s.line
				return nil, fe
			}
			return nil, admitErr
		}

		s.m.ParsedLine(string(l.Kind()))
		if err == io.EOF {
			s.done = true
		}
		return l, nil
	}
}
