package trace

// RecordID identifies a record within one trace file.
type RecordID uint64

// Kind discriminates the six trace line kinds. It is the value of the
// "type" field on the wire.
type Kind string

const (
	KindHeader     Kind = "header"
	KindRecord     Kind = "record"
	KindRecordEnd  Kind = "record_end"
	KindAnnotation Kind = "annotation"
	KindEvent      Kind = "event"
	KindFooter     Kind = "footer"
)

// Line is one trace line. Exactly the six concrete types in this package
// implement it.
type Line interface {
	Kind() Kind
}

// Header is the mandatory first line of a trace.
type Header struct {
	Version  string
	Metadata Attrs
}

// Record opens a node in the record forest. A nil ParentID makes it a root.
type Record struct {
	Clk         int64
	Name        string
	RecordType  string
	ID          RecordID
	ParentID    *RecordID
	Description string
	Data        Attrs // optional
}

// RecordEnd closes a previously opened record.
type RecordEnd struct {
	Clk      int64
	RecordID RecordID
}

// Annotation attaches untimed metadata to a record.
type Annotation struct {
	Name        string
	RecordID    RecordID
	Description string
	Data        Attrs
}

// Event attaches a timed occurrence to a record.
type Event struct {
	Clk         int64
	Name        string
	RecordID    RecordID
	Description string
	Data        Attrs // optional
}

// Footer is the optional last line, carrying run totals. Extra holds any
// additional footer fields in their original order.
type Footer struct {
	CaptureEndClk    *int64
	TotalRecords     *int
	TotalAnnotations *int
	TotalEvents      *int
	Extra            Attrs
}

func (Header) Kind() Kind     { return KindHeader }
func (Record) Kind() Kind     { return KindRecord }
func (RecordEnd) Kind() Kind  { return KindRecordEnd }
func (Annotation) Kind() Kind { return KindAnnotation }
func (Event) Kind() Kind      { return KindEvent }
func (Footer) Kind() Kind     { return KindFooter }

// ParentRef builds the ParentID value for a child of parent.
func ParentRef(parent RecordID) *RecordID {
	p := parent
	return &p
}
