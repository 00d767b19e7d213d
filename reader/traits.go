// Package reader consumes trace streams incrementally and exposes them
// through a capability-based surface, so the native JSONL format, the
// legacy pipetrace format, and a fully synthetic trace all look the same to
// downstream consumers.
package reader

import (
	"encoding/json"

	"github.com/jetstrace/jets/trace"
)

// AttributeAccessor exposes a data payload as an ordered mapping. Keys keep
// their original insertion order; no implicit sorting happens anywhere.
type AttributeAccessor interface {
	// AttrCount returns the total number of attributes.
	AttrCount() int
	// Attr returns the raw value for key.
	Attr(key string) (json.RawMessage, bool)
	// AttrAt returns the pair at index i in insertion order.
	AttrAt(i int) (string, json.RawMessage, bool)
	// Attrs returns all pairs in insertion order.
	Attrs() trace.Attrs
}

// TraceReader opens a source and returns a TraceData handle.
type TraceReader interface {
	Read(path string) (TraceData, error)
}

// Metadata exposes header and footer information for a trace.
type Metadata interface {
	Version() string
	HeaderData() trace.Attrs
	CaptureEndClk() (int64, bool)
	TotalRecords() (int, bool)
	TotalAnnotations() (int, bool)
	TotalEvents() (int, bool)
	// Extent returns the (min, max) clk across all records.
	Extent() (int64, int64)
}

// TraceData is a handle over one parsed or synthesized trace.
type TraceData interface {
	Metadata() Metadata
	// RootIDs returns the ids of the root records in insertion order.
	RootIDs() []trace.RecordID
	// Record looks up any record by id.
	Record(id trace.RecordID) (TraceRecord, bool)
}

// TraceRecord is one node of the record forest. Children are surfaced in
// insertion order, events in clk order.
type TraceRecord interface {
	AttributeAccessor

	Clk() int64
	EndClk() (int64, bool)
	// Duration returns EndClk - Clk when the record was ended.
	Duration() (int64, bool)
	Name() string
	ID() trace.RecordID
	ParentID() (trace.RecordID, bool)
	Description() string

	NumChildren() int
	ChildAt(i int) (TraceRecord, bool)
	NumEvents() int
	EventAt(i int) (TraceEvent, bool)
	NumAnnotations() int
	AnnotationAt(i int) (trace.Annotation, bool)

	// SubtreeDepth returns 0 for leaves and max child depth + 1 otherwise.
	SubtreeDepth() int
}

// TraceEvent is a timed occurrence attached to one record.
type TraceEvent interface {
	AttributeAccessor

	Clk() int64
	Name() string
	RecordID() trace.RecordID
	Description() string
}

// eventView adapts a trace.Event to the TraceEvent capability. Every
// backend stores events in this shape, so one adapter serves all three.
type eventView struct {
	e *trace.Event
}

func (v eventView) Clk() int64               { return v.e.Clk }
func (v eventView) Name() string             { return v.e.Name }
func (v eventView) RecordID() trace.RecordID { return v.e.RecordID }
func (v eventView) Description() string      { return v.e.Description }
func (v eventView) AttrCount() int           { return v.e.Data.Len() }
func (v eventView) Attrs() trace.Attrs       { return v.e.Data }

func (v eventView) Attr(key string) (json.RawMessage, bool) {
	return v.e.Data.Get(key)
}

func (v eventView) AttrAt(i int) (string, json.RawMessage, bool) {
	return v.e.Data.At(i)
}
