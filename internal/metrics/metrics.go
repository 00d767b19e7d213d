// Package metrics holds optional Prometheus instrumentation for the trace
// engine. Nothing in the core requires it; callers that want counters pass
// a prometheus.Registerer into the writer or reader options.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the trace engine counters.
type Metrics struct {
	LinesWritten *prometheus.CounterVec
	LinesParsed  *prometheus.CounterVec
	Violations   prometheus.Counter
	TracesParsed prometheus.Counter
}

// New registers the counters on reg. Registering a second instance on the
// same registry reuses the existing collectors, so several writers or
// parse sessions can share one registry.
func New(reg prometheus.Registerer) *Metrics {
	linesWritten := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jets_lines_written_total",
			Help: "Total trace lines written, by line kind",
		},
		[]string{"kind"},
	)
	linesParsed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jets_lines_parsed_total",
			Help: "Total trace lines parsed, by line kind",
		},
		[]string{"kind"},
	)
	violations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jets_format_violations_total",
			Help: "Total format violations rejected by the parser",
		},
	)
	tracesParsed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jets_traces_parsed_total",
			Help: "Total traces parsed to completion",
		},
	)

	return &Metrics{
		LinesWritten: registerVec(reg, linesWritten),
		LinesParsed:  registerVec(reg, linesParsed),
		Violations:   registerCounter(reg, violations),
		TracesParsed: registerCounter(reg, tracesParsed),
	}
}

func registerVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if ok := asAlreadyRegistered(err, &are); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if ok := asAlreadyRegistered(err, &are); ok {
			return are.ExistingCollector.(prometheus.Counter)
		}
		panic(err)
	}
	return c
}

func asAlreadyRegistered(err error, target *prometheus.AlreadyRegisteredError) bool {
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		*target = are
		return true
	}
	return false
}

// WroteLine records one written line of the given kind. Nil-safe.
func (m *Metrics) WroteLine(kind string) {
	if m == nil {
		return
	}
	m.LinesWritten.WithLabelValues(kind).Inc()
}

// ParsedLine records one parsed line of the given kind. Nil-safe.
func (m *Metrics) ParsedLine(kind string) {
	if m == nil {
		return
	}
	m.LinesParsed.WithLabelValues(kind).Inc()
}

// Violation records one rejected line. Nil-safe.
func (m *Metrics) Violation() {
	if m == nil {
		return
	}
	m.Violations.Inc()
}

// ParsedTrace records one fully parsed trace. Nil-safe.
func (m *Metrics) ParsedTrace() {
	if m == nil {
		return
	}
	m.TracesParsed.Inc()
}
