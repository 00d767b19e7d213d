package reader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jetstrace/jets/internal/stream"
	"github.com/jetstrace/jets/trace"
)

// Legacy single-level pipeline-trace format: one instruction per line,
// tab-separated.
//
//	seq<TAB>pc<TAB>disassembly<TAB>stage@clk[,stage@clk...]
//
// '#' starts a comment line, blank lines are skipped. The adapter maps each
// instruction onto a root record with one event per stage; it introduces no
// invariants of its own.

// PipetraceReader reads legacy pipetrace files. It implements TraceReader.
type PipetraceReader struct{}

// NewPipetraceReader returns a reader for the legacy format.
func NewPipetraceReader() *PipetraceReader { return &PipetraceReader{} }

// Read opens and adapts path, decompressing transparently.
func (r *PipetraceReader) Read(path string) (TraceData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	src, _, err := stream.NewReader(f)
	if err != nil {
		return nil, err
	}
	return ParsePipetrace(src)
}

// ParsePipetrace adapts a legacy pipetrace stream into the same in-memory
// shape the native backend produces, so every consumer sees one surface.
func ParsePipetrace(r io.Reader) (*JETSData, error) {
	d := &JETSData{
		header: trace.Header{
			Version:  "pipetrace-1.0",
			Metadata: trace.Attrs{}.Set("source_format", "pipetrace"),
		},
		byID: make(map[trace.RecordID]int),
	}

	br := bufio.NewReader(r)
	lineNo := 0
	events := 0
	for {
		raw, err := br.ReadBytes('\n')
		if len(raw) == 0 && err != nil {
			if err == io.EOF {
				break
			}
			return d, fmt.Errorf("read line %d: %w", lineNo+1, err)
		}
		lineNo++

		line := string(bytes.TrimSpace(raw))
		if line == "" || strings.HasPrefix(line, "#") {
			if err == io.EOF {
				break
			}
			continue
		}

		n, perr := d.addPipetraceLine(line, lineNo)
		if perr != nil {
			d.finalize()
			return d, perr
		}
		events += n

		if err == io.EOF {
			break
		}
	}

	d.finalize()
	records := len(d.records)
	d.footer = &trace.Footer{
		TotalRecords:     &records,
		TotalAnnotations: new(int),
		TotalEvents:      &events,
	}
	if records > 0 {
		end := d.maxClk
		d.footer.CaptureEndClk = &end
	}
	return d, nil
}

// addPipetraceLine parses one instruction line and appends its record and
// stage events. It returns the number of events added.
func (d *JETSData) addPipetraceLine(line string, lineNo int) (int, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 4 {
		return 0, formatErr(lineNo, "want 4 tab-separated fields, got %d", len(fields))
	}

	seq, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return 0, formatErr(lineNo, "bad sequence number %q", fields[0])
	}
	id := trace.RecordID(seq)
	if _, dup := d.byID[id]; dup {
		return 0, &trace.FormatError{
			Line:      lineNo,
			Invariant: trace.InvariantUniqueID,
			Detail:    fmt.Sprintf("duplicate sequence number %d", seq),
		}
	}

	pcField := strings.TrimSpace(fields[1])
	pc, err := strconv.ParseUint(strings.TrimPrefix(pcField, "0x"), 16, 64)
	if err != nil {
		return 0, formatErr(lineNo, "bad pc %q", fields[1])
	}

	disasm := strings.TrimSpace(fields[2])
	tokens := strings.Fields(disasm)
	if len(tokens) == 0 {
		return 0, formatErr(lineNo, "instruction %d has empty disassembly", seq)
	}
	opcode := strings.ToUpper(tokens[0])

	stages := strings.Split(strings.TrimSpace(fields[3]), ",")
	if len(stages) == 0 || stages[0] == "" {
		return 0, formatErr(lineNo, "instruction %d has no stages", seq)
	}

	recEvents := make([]trace.Event, 0, len(stages))
	lastClk := int64(0)
	for i, s := range stages {
		name, clkStr, ok := strings.Cut(strings.TrimSpace(s), "@")
		if !ok {
			return 0, formatErr(lineNo, "bad stage %q", s)
		}
		clk, err := strconv.ParseInt(clkStr, 10, 64)
		if err != nil {
			return 0, formatErr(lineNo, "bad stage clk %q", clkStr)
		}
		if i > 0 && clk < lastClk {
			return 0, &trace.FormatError{
				Line:      lineNo,
				Invariant: trace.InvariantMonotonicClk,
				Detail:    fmt.Sprintf("stage %s clk %d precedes %d", name, clk, lastClk),
			}
		}
		lastClk = clk
		recEvents = append(recEvents, trace.Event{
			Clk:      clk,
			Name:     name,
			RecordID: id,
		})
	}

	startClk := recEvents[0].Clk
	endClk := lastClk
	rec := trace.Record{
		Clk:         startClk,
		Name:        fmt.Sprintf("0x%016X-%s", pc, opcode),
		RecordType:  "Instruction",
		ID:          id,
		Description: disasm,
		Data: trace.Attrs{}.
			Set("pc", fmt.Sprintf("0x%016X", pc)).
			Set("opcode", opcode).
			Set("disassembly", disasm),
	}

	idx := len(d.records)
	d.records = append(d.records, jetsRecord{rec: rec, endClk: &endClk, events: recEvents})
	d.byID[id] = idx
	d.roots = append(d.roots, idx)
	return len(recEvents), nil
}

func formatErr(line int, format string, args ...interface{}) *trace.FormatError {
	return &trace.FormatError{
		Line:      line,
		Invariant: trace.InvariantWellFormedLine,
		Detail:    fmt.Sprintf(format, args...),
	}
}
