package trace

// Validator decides line admissibility one line at a time. It keeps only
// the set of record ids seen so far, which ids were ended, and the last
// clk, so memory stays proportional to the record count, never the line
// count.
//
// Both sides of the format share it: the writer treats a rejection as a
// precondition violation, the parser as a format violation.
type Validator struct {
	seen    map[RecordID]struct{}
	ended   map[RecordID]struct{}
	lastClk int64
	hasClk  bool
	line    int
	header  bool
	footer  bool
}

// NewValidator returns a Validator positioned before the first line.
func NewValidator() *Validator {
	return &Validator{
		seen:  make(map[RecordID]struct{}),
		ended: make(map[RecordID]struct{}),
	}
}

// Line returns the number of lines admitted so far.
func (v *Validator) Line() int { return v.line }

// LastClk returns the highest clk admitted so far.
func (v *Validator) LastClk() (int64, bool) { return v.lastClk, v.hasClk }

// Seen reports whether a record line for id was admitted.
func (v *Validator) Seen(id RecordID) bool {
	_, ok := v.seen[id]
	return ok
}

// Admit checks l against the file-level invariants and, when it passes,
// folds it into the validation state. On failure it returns a *FormatError
// naming the violated invariant, and the state is left unchanged.
func (v *Validator) Admit(l Line) error {
	n := v.line + 1

	if v.footer {
		return formatErrorf(n, InvariantFooterLast, "%s line after footer", l.Kind())
	}
	if n == 1 && l.Kind() != KindHeader {
		return formatErrorf(n, InvariantHeaderFirst, "first line is %s, want header", l.Kind())
	}

	switch t := l.(type) {
	case Header:
		if v.header {
			return formatErrorf(n, InvariantHeaderFirst, "duplicate header")
		}
		v.header = true
	case Record:
		if _, dup := v.seen[t.ID]; dup {
			return formatErrorf(n, InvariantUniqueID, "duplicate record id %d", t.ID)
		}
		if t.ParentID != nil {
			if _, ok := v.seen[*t.ParentID]; !ok {
				return formatErrorf(n, InvariantParentOrder, "record %d references unseen parent %d", t.ID, *t.ParentID)
			}
		}
		if err := v.checkClk(n, t.Clk); err != nil {
			return err
		}
		v.seen[t.ID] = struct{}{}
		v.setClk(t.Clk)
	case RecordEnd:
		if _, ok := v.seen[t.RecordID]; !ok {
			return formatErrorf(n, InvariantNoForwardRef, "record_end references unknown record %d", t.RecordID)
		}
		if _, done := v.ended[t.RecordID]; done {
			return formatErrorf(n, InvariantSingleRecordEnd, "record %d already ended", t.RecordID)
		}
		if err := v.checkClk(n, t.Clk); err != nil {
			return err
		}
		v.ended[t.RecordID] = struct{}{}
		v.setClk(t.Clk)
	case Annotation:
		if _, ok := v.seen[t.RecordID]; !ok {
			return formatErrorf(n, InvariantNoForwardRef, "annotation references unknown record %d", t.RecordID)
		}
	case Event:
		if _, ok := v.seen[t.RecordID]; !ok {
			return formatErrorf(n, InvariantNoForwardRef, "event references unknown record %d", t.RecordID)
		}
		if err := v.checkClk(n, t.Clk); err != nil {
			return err
		}
		v.setClk(t.Clk)
	case Footer:
		v.footer = true
	default:
		return formatErrorf(n, InvariantWellFormedLine, "unknown line type %T", l)
	}

	v.line = n
	return nil
}

func (v *Validator) checkClk(line int, clk int64) error {
	if v.hasClk && clk < v.lastClk {
		return formatErrorf(line, InvariantMonotonicClk, "clk %d precedes previous clk %d", clk, v.lastClk)
	}
	return nil
}

func (v *Validator) setClk(clk int64) {
	v.lastClk = clk
	v.hasClk = true
}
