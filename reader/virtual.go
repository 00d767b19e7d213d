package reader

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jetstrace/jets/internal/rng"
	"github.com/jetstrace/jets/trace"
)

const (
	defaultVirtualDepth    = 5
	defaultVirtualChildren = 10
	defaultVirtualSeed     = 42
)

// VirtualReader synthesizes a trace in memory without touching storage. It
// satisfies the same trait surface as the file-backed readers, which makes
// it the test double of choice for consumers.
type VirtualReader struct {
	MaxDepth    int
	MaxChildren int
	Seed        uint64
}

// NewVirtualReader returns a reader with the default shape and seed.
func NewVirtualReader() *VirtualReader {
	return &VirtualReader{
		MaxDepth:    defaultVirtualDepth,
		MaxChildren: defaultVirtualChildren,
		Seed:        defaultVirtualSeed,
	}
}

// Read generates the synthetic trace. The path argument is ignored.
func (r *VirtualReader) Read(_ string) (TraceData, error) {
	gen := rng.New(r.Seed)

	d := &virtualData{byID: make(map[trace.RecordID]*virtualRecord)}
	nextID := trace.RecordID(1)

	numRoots := gen.IntN(1, 6)
	for i := 0; i < numRoots; i++ {
		root := d.generate(gen, &nextID, nil, 0, 0, r.MaxDepth, r.MaxChildren)
		d.roots = append(d.roots, root)
	}
	d.computeExtent()
	return d, nil
}

type virtualRecord struct {
	id          trace.RecordID
	parentID    *trace.RecordID
	name        string
	description string
	clk         int64
	endClk      int64
	data        trace.Attrs
	children    []*virtualRecord
	events      []trace.Event
}

type virtualData struct {
	roots  []*virtualRecord
	byID   map[trace.RecordID]*virtualRecord
	events int
	minClk int64
	maxClk int64
}

// generate builds one record and its subtree. IDs are assigned in
// depth-first order; clk values nest inside the parent span.
func (d *virtualData) generate(gen *rng.Rand, nextID *trace.RecordID, parent *trace.RecordID, parentClk int64, depth, maxDepth, maxChildren int) *virtualRecord {
	id := *nextID
	*nextID = id + 1

	clk := parentClk + gen.Int64N(10, 100)
	end := clk + gen.Int64N(50, 500)

	rec := &virtualRecord{
		id:          id,
		parentID:    parent,
		name:        recordName(id),
		description: recordDescription(id),
		clk:         clk,
		endClk:      end,
	}

	numFields := gen.IntN(3, 8)
	for i := 0; i < numFields; i++ {
		rec.data = rec.data.Set(fieldName("field", i), gen.IntN(0, 1000))
	}

	numEvents := gen.IntN(0, 6)
	for i := 0; i < numEvents; i++ {
		eventClk := clk + gen.Int64N(0, end-clk)
		var data trace.Attrs
		numEventFields := gen.IntN(1, 4)
		for j := 0; j < numEventFields; j++ {
			data = data.Set(fieldName("event_field", j), gen.IntN(0, 100))
		}
		rec.events = append(rec.events, trace.Event{
			Clk:         eventClk,
			Name:        eventName(i),
			RecordID:    id,
			Description: eventDescription(i, id),
			Data:        data,
		})
		d.events++
	}
	// Event clks are drawn independently; the trait surface promises them
	// in clk order, like every other backend.
	sort.SliceStable(rec.events, func(a, b int) bool {
		return rec.events[a].Clk < rec.events[b].Clk
	})

	if depth < maxDepth {
		limit := maxChildren
		if limit > 5 {
			limit = 5
		}
		numChildren := gen.IntN(0, limit+1)
		for i := 0; i < numChildren; i++ {
			child := d.generate(gen, nextID, trace.ParentRef(id), end, depth+1, maxDepth, maxChildren)
			rec.children = append(rec.children, child)
		}
	}

	d.byID[id] = rec
	return rec
}

func (d *virtualData) computeExtent() {
	d.minClk, d.maxClk = 0, 1000
	first := true
	for _, rec := range d.byID {
		if first {
			d.minClk, d.maxClk = rec.clk, rec.endClk
			first = false
			continue
		}
		if rec.clk < d.minClk {
			d.minClk = rec.clk
		}
		if rec.endClk > d.maxClk {
			d.maxClk = rec.endClk
		}
	}
}

// Metadata implements TraceData.
func (d *virtualData) Metadata() Metadata { return virtualMetadata{d} }

// RootIDs implements TraceData.
func (d *virtualData) RootIDs() []trace.RecordID {
	ids := make([]trace.RecordID, 0, len(d.roots))
	for _, root := range d.roots {
		ids = append(ids, root.id)
	}
	return ids
}

// Record implements TraceData.
func (d *virtualData) Record(id trace.RecordID) (TraceRecord, bool) {
	rec, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return virtualRecordView{rec}, true
}

type virtualMetadata struct {
	d *virtualData
}

var virtualHeaderData = trace.Attrs{}.
	Set("generator", "VirtualReader").
	Set("description", "synthetic trace data for testing")

func (m virtualMetadata) Version() string         { return "virtual-1.0" }
func (m virtualMetadata) HeaderData() trace.Attrs { return virtualHeaderData }
func (m virtualMetadata) Extent() (int64, int64)  { return m.d.minClk, m.d.maxClk }

func (m virtualMetadata) CaptureEndClk() (int64, bool) { return m.d.maxClk, true }
func (m virtualMetadata) TotalRecords() (int, bool)    { return len(m.d.byID), true }
func (m virtualMetadata) TotalAnnotations() (int, bool) {
	return 0, true
}
func (m virtualMetadata) TotalEvents() (int, bool) { return m.d.events, true }

type virtualRecordView struct {
	rec *virtualRecord
}

func (v virtualRecordView) Clk() int64            { return v.rec.clk }
func (v virtualRecordView) EndClk() (int64, bool) { return v.rec.endClk, true }
func (v virtualRecordView) Name() string          { return v.rec.name }
func (v virtualRecordView) ID() trace.RecordID    { return v.rec.id }
func (v virtualRecordView) Description() string   { return v.rec.description }
func (v virtualRecordView) NumChildren() int      { return len(v.rec.children) }
func (v virtualRecordView) NumEvents() int        { return len(v.rec.events) }
func (v virtualRecordView) NumAnnotations() int   { return 0 }
func (v virtualRecordView) AttrCount() int        { return v.rec.data.Len() }
func (v virtualRecordView) Attrs() trace.Attrs    { return v.rec.data }

func (v virtualRecordView) Duration() (int64, bool) {
	return v.rec.endClk - v.rec.clk, true
}

func (v virtualRecordView) ParentID() (trace.RecordID, bool) {
	if v.rec.parentID == nil {
		return 0, false
	}
	return *v.rec.parentID, true
}

func (v virtualRecordView) ChildAt(i int) (TraceRecord, bool) {
	if i < 0 || i >= len(v.rec.children) {
		return nil, false
	}
	return virtualRecordView{v.rec.children[i]}, true
}

func (v virtualRecordView) EventAt(i int) (TraceEvent, bool) {
	if i < 0 || i >= len(v.rec.events) {
		return nil, false
	}
	return eventView{e: &v.rec.events[i]}, true
}

func (v virtualRecordView) AnnotationAt(i int) (trace.Annotation, bool) {
	return trace.Annotation{}, false
}

func (v virtualRecordView) SubtreeDepth() int {
	if len(v.rec.children) == 0 {
		return 0
	}
	max := 0
	for _, child := range v.rec.children {
		if d := (virtualRecordView{child}).SubtreeDepth(); d > max {
			max = d
		}
	}
	return max + 1
}

func (v virtualRecordView) Attr(key string) (json.RawMessage, bool) {
	return v.rec.data.Get(key)
}

func (v virtualRecordView) AttrAt(i int) (string, json.RawMessage, bool) {
	return v.rec.data.At(i)
}

var _ TraceData = (*virtualData)(nil)
var _ TraceReader = (*VirtualReader)(nil)
var _ TraceReader = (*JETSReader)(nil)
var _ TraceReader = (*PipetraceReader)(nil)

func recordName(id trace.RecordID) string        { return fmt.Sprintf("Record_%d", id) }
func recordDescription(id trace.RecordID) string { return fmt.Sprintf("Virtual record %d", id) }
func eventName(i int) string                     { return fmt.Sprintf("Event_%d", i) }

func eventDescription(i int, id trace.RecordID) string {
	return fmt.Sprintf("Virtual event %d for record %d", i, id)
}

func fieldName(prefix string, i int) string { return fmt.Sprintf("%s_%d", prefix, i) }
