package tracegen

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jetstrace/jets/internal/logging"
	"github.com/jetstrace/jets/internal/rng"
	"github.com/jetstrace/jets/trace"
	"github.com/jetstrace/jets/writer"
)

// Format version written into the trace header.
const formatVersion = "2.0"

// Base clock cycle of the first instruction and base program counter of the
// synthetic address space.
const (
	baseClk = int64(1000)
	basePC  = uint64(0xFFFFFFFF00000000)
)

// Per-thread PC strides keep addresses unique and structurally meaningful
// without a real memory model.
const (
	clusterStride = 0x100000
	coreStride    = 0x10000
	threadStride  = 0x1000
)

// Generator drives a writer with a deterministic pipelined workload.
type Generator struct {
	cfg Config
	log *logging.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log *logging.Logger) Option {
	return func(g *Generator) { g.log = log }
}

// New validates cfg and returns a Generator. Invalid configuration fails
// here, before any I/O.
func New(cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{cfg: cfg, log: logging.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate creates the configured output file (compressed when the path or
// the Compression setting says so) and writes the full trace into it.
func (g *Generator) Generate() error {
	var opts []writer.Option
	if g.cfg.Compression != "" {
		codec, _ := g.cfg.codec() // validated in New
		opts = append(opts, writer.WithCompression(codec))
	}
	w, err := writer.New(g.cfg.Output, opts...)
	if err != nil {
		return err
	}
	if runErr := g.Run(w); runErr != nil {
		w.Close()
		return runErr
	}
	return w.Close()
}

// item is one buffered line with its sort key.
type item struct {
	clk  int64
	line trace.Line
}

// Run writes the trace to w. The caller owns w and closes it; the footer is
// emitted by the writer on Close.
//
// All randomness comes from one LCG stream seeded by the configuration, so
// output bytes depend on nothing but cfg.
func (g *Generator) Run(w *writer.Writer) error {
	gen := rng.New(g.cfg.Seed())
	g.log.Info("generating trace",
		zap.Int("clusters", g.cfg.Clusters),
		zap.Int("cores", g.cfg.Cores),
		zap.Int("threads", g.cfg.Threads),
		zap.Int("instr_min", g.cfg.InstrMin),
		zap.Int("instr_max", g.cfg.InstrMax),
		zap.Uint64("seed", g.cfg.Seed()),
	)

	metadata := trace.Attrs{}.
		Set("hardware_model", "RISC-V SoC").
		Set("architecture", "RISC-V Pipeline").
		Set("clock_frequency_mhz", 1000).
		Set("tool", "jets-tracegen").
		Set("num_clusters", g.cfg.Clusters).
		Set("num_cores", g.cfg.Cores).
		Set("num_threads", g.cfg.Threads)
	if err := w.WriteHeader(formatVersion, metadata); err != nil {
		return err
	}

	// The cursor is the global emission clock. Container records take the
	// cursor at open time, which equals the minimum clk of their first
	// child, and container ends take it after their children finish, so
	// direct (unbuffered) container emission stays monotone.
	cursor := baseClk
	nextID := trace.RecordID(1)

	for cluster := 0; cluster < g.cfg.Clusters; cluster++ {
		clusterID := nextID
		nextID++
		err := w.WriteRecord(trace.Record{
			Clk:         cursor,
			Name:        fmt.Sprintf("cluster_%d", cluster),
			RecordType:  "Cluster",
			ID:          clusterID,
			Description: fmt.Sprintf("Cluster %d", cluster),
		})
		if err != nil {
			return err
		}

		for core := 0; core < g.cfg.Cores; core++ {
			coreID := nextID
			nextID++
			err := w.WriteRecord(trace.Record{
				Clk:         cursor,
				Name:        fmt.Sprintf("core_%d", core),
				RecordType:  "Core",
				ID:          coreID,
				ParentID:    trace.ParentRef(clusterID),
				Description: fmt.Sprintf("Core %d", core),
			})
			if err != nil {
				return err
			}

			for thread := 0; thread < g.cfg.Threads; thread++ {
				threadID := nextID
				nextID++
				end, err := g.emitThread(w, gen, threadPos{
					cluster: cluster, core: core, thread: thread,
					coreID: coreID, threadID: threadID,
					startClk: cursor, nextID: nextID,
				})
				if err != nil {
					return err
				}
				nextID = end.nextID
				cursor = end.clk
			}

			if err := w.WriteRecordEnd(coreID, cursor); err != nil {
				return err
			}
		}

		if err := w.WriteRecordEnd(clusterID, cursor); err != nil {
			return err
		}
	}

	records, annotations, events := w.Counts()
	g.log.Info("trace generated",
		zap.Int("records", records),
		zap.Int("annotations", annotations),
		zap.Int("events", events),
		zap.Int64("capture_end_clk", cursor),
	)
	return nil
}

type threadPos struct {
	cluster, core, thread int
	coreID, threadID      trace.RecordID
	startClk              int64
	nextID                trace.RecordID
}

type threadEnd struct {
	clk    int64
	nextID trace.RecordID
}

// emitThread generates one thread's whole execution into a buffer, stably
// sorts it by clk and flushes it. Instructions overlap in time within the
// thread, so this buffer is exactly where out-of-order completion gets
// reordered into a monotone stream; memory stays bounded by one thread's
// instruction count.
func (g *Generator) emitThread(w *writer.Writer, gen *rng.Rand, pos threadPos) (threadEnd, error) {
	numInstr := g.cfg.InstrMin
	if g.cfg.InstrMin != g.cfg.InstrMax {
		numInstr = gen.IntN(g.cfg.InstrMin, g.cfg.InstrMax+1)
	}

	items := make([]item, 0, numInstr*14+2)
	items = append(items, item{pos.startClk, trace.Record{
		Clk:         pos.startClk,
		Name:        fmt.Sprintf("thread_%d", pos.thread),
		RecordType:  "Thread",
		ID:          pos.threadID,
		ParentID:    trace.ParentRef(pos.coreID),
		Description: fmt.Sprintf("Thread %d", pos.thread),
	}})

	pc := basePC + uint64(pos.cluster*clusterStride+pos.core*coreStride+pos.thread*threadStride)
	nextID := pos.nextID
	startClk := pos.startClk

	for i := 0; i < numInstr; i++ {
		instrID := nextID
		nextID++
		items = g.emitInstruction(items, gen, instrID, pos.threadID, pc, startClk)
		pc += 4
		// Pipelined: the next instruction starts 1-2 cycles later, so many
		// instructions are in flight at once.
		startClk += gen.Int64N(1, 3)
	}

	endClk := pos.startClk
	for _, it := range items {
		if it.clk > endClk {
			endClk = it.clk
		}
	}
	endClk++
	items = append(items, item{endClk, trace.RecordEnd{Clk: endClk, RecordID: pos.threadID}})

	// Stable by clk: ties keep generation order, so a record always
	// precedes its own events and end.
	sort.SliceStable(items, func(a, b int) bool { return items[a].clk < items[b].clk })

	for _, it := range items {
		var err error
		switch l := it.line.(type) {
		case trace.Record:
			err = w.WriteRecord(l)
		case trace.Event:
			err = w.WriteEvent(l)
		case trace.RecordEnd:
			err = w.WriteRecordEnd(l.RecordID, l.Clk)
		}
		if err != nil {
			return threadEnd{}, err
		}
	}

	g.log.Debug("thread flushed",
		zap.Int("cluster", pos.cluster),
		zap.Int("core", pos.core),
		zap.Int("thread", pos.thread),
		zap.Int("instructions", numInstr),
		zap.Int64("end_clk", endClk),
	)
	return threadEnd{clk: endClk, nextID: nextID}, nil
}

// emitInstruction buffers one instruction record, its stage events and its
// record_end. The record spans Fetch1 through Commit.
func (g *Generator) emitInstruction(items []item, gen *rng.Rand, id, threadID trace.RecordID, pc uint64, startClk int64) []item {
	tpl, disasm := pickInstruction(gen)

	items = append(items, item{startClk, trace.Record{
		Clk:         startClk,
		Name:        fmt.Sprintf("0x%016X-%s", pc, tpl.mnemonic),
		RecordType:  "Instruction",
		ID:          id,
		ParentID:    trace.ParentRef(threadID),
		Description: disasm,
		Data: trace.Attrs{}.
			Set("pc", fmt.Sprintf("0x%016X", pc)).
			Set("opcode", tpl.mnemonic).
			Set("disassembly", disasm),
	}})

	event := func(s stage, clk int64) item {
		return item{clk, trace.Event{
			Clk:         clk,
			Name:        s.name,
			RecordID:    id,
			Description: s.description,
		}}
	}

	clk := startClk
	items = append(items, event(stageFetch1, clk))
	clk++
	items = append(items, event(stageFetch2, clk))
	clk++
	items = append(items, event(stageDecode, clk))
	clk++
	items = append(items, event(stageRename, clk))
	clk++
	items = append(items, event(stageDispatch, clk))
	clk++

	// Issue stalls on 20% of instructions for 1-3 extra cycles.
	if gen.IntN(0, 10) < 2 {
		clk += gen.Int64N(1, 4)
	}
	items = append(items, event(stageIssue, clk))
	clk++
	items = append(items, event(stageRegRead, clk))
	clk++

	items = append(items, event(stageExecute, clk))
	clk += gen.Int64N(1, 3)

	if tpl.isMem {
		items = append(items, event(stageMemory, clk))
		clk += gen.Int64N(2, 6)
	}

	items = append(items, event(stageWriteback, clk))
	clk++
	items = append(items, event(stageCommit, clk))

	items = append(items, item{clk, trace.RecordEnd{Clk: clk, RecordID: id}})
	return items
}
