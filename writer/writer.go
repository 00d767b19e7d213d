// Package writer serializes trace lines to a sink, one line at a time, in
// exactly the order given by the caller. The caller fully controls
// ordering, so invariant violations are precondition failures that poison
// the writer rather than recoverable errors.
package writer

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jetstrace/jets/internal/metrics"
	"github.com/jetstrace/jets/internal/stream"
	"github.com/jetstrace/jets/trace"
)

// Writer appends validated trace lines to an output sink and tracks the
// per-run counters used to populate the closing footer. It exclusively owns
// its sink; it is not safe for concurrent use.
type Writer struct {
	file      *os.File // nil when writing to a caller-supplied sink
	buf       *bufio.Writer
	transport io.WriteCloser

	validator *trace.Validator
	m         *metrics.Metrics

	records     int
	annotations int
	events      int
	maxClk      int64
	hasClk      bool

	headerWritten bool
	footerWritten bool
	noFooter      bool
	failed        error
	closed        bool
}

// Option configures a Writer.
type Option func(*options)

type options struct {
	codec    stream.Codec
	codecSet bool
	noFooter bool
	reg      prometheus.Registerer
}

// WithCompression forces the transport codec instead of deriving it from
// the output filename.
func WithCompression(c stream.Codec) Option {
	return func(o *options) {
		o.codec = c
		o.codecSet = true
	}
}

// WithoutFooter disables the automatic footer on Close.
func WithoutFooter() Option {
	return func(o *options) { o.noFooter = true }
}

// WithMetrics registers line counters on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// New creates a Writer targeting path. A ".gz" or ".zst" suffix selects the
// compressed container; the line content is identical either way.
func New(path string, opts ...Option) (*Writer, error) {
	o := applyOptions(opts)
	if !o.codecSet {
		o.codec = stream.ByExtension(path)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	w, err := newWriter(f, o)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewFromWriter creates a Writer over a caller-supplied sink. The sink is
// not closed by Close; flushing still happens.
func NewFromWriter(sink io.Writer, opts ...Option) (*Writer, error) {
	return newWriter(sink, applyOptions(opts))
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newWriter(sink io.Writer, o *options) (*Writer, error) {
	buf := bufio.NewWriter(sink)
	transport, err := stream.NewWriter(buf, o.codec)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		buf:       buf,
		transport: transport,
		validator: trace.NewValidator(),
		noFooter:  o.noFooter,
	}
	if o.reg != nil {
		w.m = metrics.New(o.reg)
	}
	return w, nil
}

// WriteHeader emits the mandatory first line.
func (w *Writer) WriteHeader(version string, metadata trace.Attrs) error {
	if err := w.writeLine(trace.Header{Version: version, Metadata: metadata}); err != nil {
		return err
	}
	w.headerWritten = true
	return nil
}

// WriteRecord emits a record line.
func (w *Writer) WriteRecord(r trace.Record) error {
	if err := w.writeLine(r); err != nil {
		return err
	}
	w.records++
	w.noteClk(r.Clk)
	return nil
}

// WriteRecordEnd closes the record with the given id at clk.
func (w *Writer) WriteRecordEnd(id trace.RecordID, clk int64) error {
	if err := w.writeLine(trace.RecordEnd{Clk: clk, RecordID: id}); err != nil {
		return err
	}
	w.noteClk(clk)
	return nil
}

// WriteAnnotation emits an annotation line.
func (w *Writer) WriteAnnotation(a trace.Annotation) error {
	if err := w.writeLine(a); err != nil {
		return err
	}
	w.annotations++
	return nil
}

// WriteEvent emits an event line.
func (w *Writer) WriteEvent(e trace.Event) error {
	if err := w.writeLine(e); err != nil {
		return err
	}
	w.events++
	w.noteClk(e.Clk)
	return nil
}

// WriteFooter emits the footer populated from the running counters. Close
// calls it automatically unless the writer was built WithoutFooter.
func (w *Writer) WriteFooter() error {
	footer := trace.Footer{
		TotalRecords:     intPtr(w.records),
		TotalAnnotations: intPtr(w.annotations),
		TotalEvents:      intPtr(w.events),
	}
	if w.hasClk {
		clk := w.maxClk
		footer.CaptureEndClk = &clk
	}
	if err := w.writeLine(footer); err != nil {
		return err
	}
	w.footerWritten = true
	return nil
}

// Close emits the footer when appropriate, flushes every layer of the sink
// and releases the file, attempting all steps even when an earlier one
// fails. After Close the already-written bytes are a valid trace prefix.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	var firstErr error
	if !w.footerWritten && !w.noFooter && w.headerWritten && w.failed == nil {
		if err := w.WriteFooter(); err != nil {
			firstErr = err
		}
	}
	w.closed = true
	if err := w.transport.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: %v", trace.ErrCompression, err)
	}
	if err := w.buf.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Counts returns the running totals: records, annotations, events.
func (w *Writer) Counts() (records, annotations, events int) {
	return w.records, w.annotations, w.events
}

func (w *Writer) writeLine(l trace.Line) error {
	if w.failed != nil {
		return w.failed
	}
	if w.closed {
		return fmt.Errorf("%w: write on closed writer", trace.ErrPrecondition)
	}

	if err := w.validator.Admit(l); err != nil {
		// The producer broke the contract; refuse everything from now on.
		w.failed = fmt.Errorf("%w: %v", trace.ErrPrecondition, err)
		return w.failed
	}

	data, err := trace.Marshal(l)
	if err != nil {
		w.failed = fmt.Errorf("%w: %v", trace.ErrPrecondition, err)
		return w.failed
	}
	if _, err := w.transport.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	w.m.WroteLine(string(l.Kind()))
	return nil
}

func (w *Writer) noteClk(clk int64) {
	if !w.hasClk || clk > w.maxClk {
		w.maxClk = clk
		w.hasClk = true
	}
}

func intPtr(v int) *int { return &v }
