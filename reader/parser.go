package reader

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jetstrace/jets/internal/metrics"
	"github.com/jetstrace/jets/internal/stream"
	"github.com/jetstrace/jets/trace"
)

// Option configures a parse session.
type Option func(*parseOptions)

type parseOptions struct {
	reg prometheus.Registerer
}

// WithMetrics registers parse counters on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *parseOptions) { o.reg = reg }
}

// JETSReader reads native JSON Lines traces. It implements TraceReader.
type JETSReader struct {
	opts []Option
}

// NewJETSReader returns a reader for the native format.
func NewJETSReader(opts ...Option) *JETSReader {
	return &JETSReader{opts: opts}
}

// Read opens and parses path, decompressing transparently.
func (r *JETSReader) Read(path string) (TraceData, error) {
	data, err := ParseFile(path, r.opts...)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// arena node: the record line plus everything attached to it during the
// single pass over the file.
type jetsRecord struct {
	rec         trace.Record
	endClk      *int64
	children    []int // arena indices, insertion order
	events      []trace.Event
	annotations []trace.Annotation
}

// JETSData is the default in-memory backend. It retains the full parsed
// forest as a flat arena indexed by id, trading memory for O(1) lookup;
// consumers that cannot afford that use Scanner directly.
type JETSData struct {
	header  trace.Header
	footer  *trace.Footer
	records []jetsRecord
	byID    map[trace.RecordID]int
	roots   []int
	minClk  int64
	maxClk  int64
}

// ParseFile parses the trace at path, sniffing the compressed container.
func ParseFile(path string, opts ...Option) (*JETSData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	src, _, err := stream.NewReader(f)
	if err != nil {
		return nil, err
	}
	return Parse(src, opts...)
}

// Parse consumes r incrementally. On a format violation it returns the
// *trace.FormatError together with the data parsed from the valid prefix,
// so the caller decides between aborting and keeping the truncated trace.
func Parse(r io.Reader, opts ...Option) (*JETSData, error) {
	o := &parseOptions{}
	for _, opt := range opts {
		opt(o)
	}

	scanner := NewScanner(r)
	if o.reg != nil {
		scanner.m = metrics.New(o.reg)
	}

	d := &JETSData{byID: make(map[trace.RecordID]int)}
	headerSeen := false

	var scanErr error
	for {
		l, err := scanner.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			scanErr = err
			break
		}

		switch t := l.(type) {
		case trace.Header:
			d.header = t
			headerSeen = true
		case trace.Record:
			idx := len(d.records)
			d.records = append(d.records, jetsRecord{rec: t})
			d.byID[t.ID] = idx
			if t.ParentID == nil {
				d.roots = append(d.roots, idx)
			} else {
				parent := d.byID[*t.ParentID] // validated: parent precedes child
				d.records[parent].children = append(d.records[parent].children, idx)
			}
		case trace.RecordEnd:
			idx := d.byID[t.RecordID]
			clk := t.Clk
			d.records[idx].endClk = &clk
		case trace.Annotation:
			idx := d.byID[t.RecordID]
			d.records[idx].annotations = append(d.records[idx].annotations, t)
		case trace.Event:
			idx := d.byID[t.RecordID]
			d.records[idx].events = append(d.records[idx].events, t)
		case trace.Footer:
			footer := t
			d.footer = &footer
		}
	}

	if scanErr == nil && !headerSeen {
		scanErr = &trace.FormatError{
			Line:      scanner.Line(),
			Invariant: trace.InvariantHeaderFirst,
			Detail:    "missing header line",
		}
	}

	d.finalize()
	if scanErr != nil {
		return d, scanErr
	}
	scanner.m.ParsedTrace()
	return d, nil
}

// finalize sorts each record's events by clk (stable, emission order breaks
// ties) and computes the trace extent.
func (d *JETSData) finalize() {
	d.minClk, d.maxClk = 0, 1000 // extent of an empty trace
	first := true
	for i := range d.records {
		rec := &d.records[i]
		sort.SliceStable(rec.events, func(a, b int) bool {
			return rec.events[a].Clk < rec.events[b].Clk
		})

		lo := rec.rec.Clk
		hi := rec.rec.Clk
		if rec.endClk != nil {
			hi = *rec.endClk
		}
		if first {
			d.minClk, d.maxClk = lo, hi
			first = false
			continue
		}
		if lo < d.minClk {
			d.minClk = lo
		}
		if hi > d.maxClk {
			d.maxClk = hi
		}
	}
}

// Metadata implements TraceData.
func (d *JETSData) Metadata() Metadata { return jetsMetadata{d} }

// RootIDs implements TraceData.
func (d *JETSData) RootIDs() []trace.RecordID {
	ids := make([]trace.RecordID, 0, len(d.roots))
	for _, idx := range d.roots {
		ids = append(ids, d.records[idx].rec.ID)
	}
	return ids
}

// Record implements TraceData.
func (d *JETSData) Record(id trace.RecordID) (TraceRecord, bool) {
	idx, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return jetsRecordView{d: d, idx: idx}, true
}

// Header returns the parsed header line.
func (d *JETSData) Header() trace.Header { return d.header }

// Footer returns the parsed footer line, if the trace had one.
func (d *JETSData) Footer() (trace.Footer, bool) {
	if d.footer == nil {
		return trace.Footer{}, false
	}
	return *d.footer, true
}

type jetsMetadata struct {
	d *JETSData
}

func (m jetsMetadata) Version() string         { return m.d.header.Version }
func (m jetsMetadata) HeaderData() trace.Attrs { return m.d.header.Metadata }
func (m jetsMetadata) Extent() (int64, int64)  { return m.d.minClk, m.d.maxClk }

func (m jetsMetadata) CaptureEndClk() (int64, bool) {
	if m.d.footer == nil || m.d.footer.CaptureEndClk == nil {
		return 0, false
	}
	return *m.d.footer.CaptureEndClk, true
}

func (m jetsMetadata) TotalRecords() (int, bool) {
	return optInt(m.d.footer, func(f *trace.Footer) *int { return f.TotalRecords })
}

func (m jetsMetadata) TotalAnnotations() (int, bool) {
	return optInt(m.d.footer, func(f *trace.Footer) *int { return f.TotalAnnotations })
}

func (m jetsMetadata) TotalEvents() (int, bool) {
	return optInt(m.d.footer, func(f *trace.Footer) *int { return f.TotalEvents })
}

func optInt(f *trace.Footer, get func(*trace.Footer) *int) (int, bool) {
	if f == nil {
		return 0, false
	}
	p := get(f)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// jetsRecordView is a cheap handle into the arena.
type jetsRecordView struct {
	d   *JETSData
	idx int
}

func (v jetsRecordView) node() *jetsRecord { return &v.d.records[v.idx] }

func (v jetsRecordView) Clk() int64          { return v.node().rec.Clk }
func (v jetsRecordView) Name() string        { return v.node().rec.Name }
func (v jetsRecordView) ID() trace.RecordID  { return v.node().rec.ID }
func (v jetsRecordView) Description() string { return v.node().rec.Description }

// RecordType returns the record_type field, not part of the generic trait
// surface but useful to native-format consumers.
func (v jetsRecordView) RecordType() string { return v.node().rec.RecordType }

func (v jetsRecordView) EndClk() (int64, bool) {
	if v.node().endClk == nil {
		return 0, false
	}
	return *v.node().endClk, true
}

func (v jetsRecordView) Duration() (int64, bool) {
	end, ok := v.EndClk()
	if !ok {
		return 0, false
	}
	return end - v.Clk(), true
}

func (v jetsRecordView) ParentID() (trace.RecordID, bool) {
	if v.node().rec.ParentID == nil {
		return 0, false
	}
	return *v.node().rec.ParentID, true
}

func (v jetsRecordView) NumChildren() int { return len(v.node().children) }

func (v jetsRecordView) ChildAt(i int) (TraceRecord, bool) {
	children := v.node().children
	if i < 0 || i >= len(children) {
		return nil, false
	}
	return jetsRecordView{d: v.d, idx: children[i]}, true
}

func (v jetsRecordView) NumEvents() int { return len(v.node().events) }

func (v jetsRecordView) EventAt(i int) (TraceEvent, bool) {
	events := v.node().events
	if i < 0 || i >= len(events) {
		return nil, false
	}
	return eventView{e: &events[i]}, true
}

func (v jetsRecordView) NumAnnotations() int { return len(v.node().annotations) }

func (v jetsRecordView) AnnotationAt(i int) (trace.Annotation, bool) {
	annotations := v.node().annotations
	if i < 0 || i >= len(annotations) {
		return trace.Annotation{}, false
	}
	return annotations[i], true
}

func (v jetsRecordView) SubtreeDepth() int {
	children := v.node().children
	if len(children) == 0 {
		return 0
	}
	max := 0
	for _, idx := range children {
		if d := (jetsRecordView{d: v.d, idx: idx}).SubtreeDepth(); d > max {
			max = d
		}
	}
	return max + 1
}

// Attribute view: the record's own data fields first, in wire order, then
// its annotations merged in by name.

func (v jetsRecordView) AttrCount() int {
	return v.node().rec.Data.Len() + len(v.node().annotations)
}

func (v jetsRecordView) Attr(key string) (json.RawMessage, bool) {
	// Annotations take precedence in the merged view.
	for _, ann := range v.node().annotations {
		if ann.Name == key {
			raw, err := ann.Data.MarshalJSON()
			if err != nil {
				return nil, false
			}
			return raw, true
		}
	}
	return v.node().rec.Data.Get(key)
}

func (v jetsRecordView) AttrAt(i int) (string, json.RawMessage, bool) {
	data := v.node().rec.Data
	if i < data.Len() {
		return data.At(i)
	}
	i -= data.Len()
	annotations := v.node().annotations
	if i < 0 || i >= len(annotations) {
		return "", nil, false
	}
	raw, err := annotations[i].Data.MarshalJSON()
	if err != nil {
		return "", nil, false
	}
	return annotations[i].Name, raw, true
}

func (v jetsRecordView) Attrs() trace.Attrs {
	out := make(trace.Attrs, 0, v.AttrCount())
	out = append(out, v.node().rec.Data...)
	for _, ann := range v.node().annotations {
		raw, err := ann.Data.MarshalJSON()
		if err != nil {
			continue
		}
		out = append(out, trace.Attr{Key: ann.Name, Value: raw})
	}
	return out
}

var _ TraceData = (*JETSData)(nil)
var _ TraceRecord = jetsRecordView{}
