package tracegen

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetstrace/jets/reader"
	"github.com/jetstrace/jets/trace"
	"github.com/jetstrace/jets/writer"
)

func generateToBuffer(t *testing.T, cfg Config) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := writer.NewFromWriter(&buf)
	require.NoError(t, err)

	g, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, g.Run(w))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// TestGeneratorDeterministic checks that the same configuration produces
// byte-identical output.
func TestGeneratorDeterministic(t *testing.T) {
	cfg := Default()
	cfg.Clusters, cfg.Cores, cfg.Threads = 2, 2, 2
	cfg.InstrMin, cfg.InstrMax = 5, 20

	first := generateToBuffer(t, cfg)
	second := generateToBuffer(t, cfg)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

// TestGeneratorStreamIsValid parses generated output through the validating
// reader: any ordering, reference or clock violation fails here.
func TestGeneratorStreamIsValid(t *testing.T) {
	cfg := Default()
	cfg.Clusters, cfg.Cores, cfg.Threads = 2, 2, 2
	cfg.InstrMin, cfg.InstrMax = 1, 10

	out := generateToBuffer(t, cfg)
	d, err := reader.Parse(bytes.NewReader(out))
	require.NoError(t, err)

	// 2 clusters, 4 cores, 8 threads.
	assert.Len(t, d.RootIDs(), 2)

	model, ok := d.Metadata().HeaderData().String("hardware_model")
	require.True(t, ok)
	assert.Equal(t, "RISC-V SoC", model)
	assert.Equal(t, "2.0", d.Metadata().Version())

	end, ok := d.Metadata().CaptureEndClk()
	require.True(t, ok)
	_, hi := d.Metadata().Extent()
	assert.Equal(t, hi, end)
}

// TestGeneratorHierarchy checks the shape and content of a minimal run.
func TestGeneratorHierarchy(t *testing.T) {
	cfg := Default()
	cfg.InstrMin, cfg.InstrMax = 3, 3

	out := generateToBuffer(t, cfg)
	d, err := reader.Parse(bytes.NewReader(out))
	require.NoError(t, err)

	// cluster + core + thread + 3 instructions
	n, ok := d.Metadata().TotalRecords()
	require.True(t, ok)
	assert.Equal(t, 6, n)
	n, ok = d.Metadata().TotalAnnotations()
	require.True(t, ok)
	assert.Zero(t, n)

	roots := d.RootIDs()
	require.Len(t, roots, 1)
	cluster, ok := d.Record(roots[0])
	require.True(t, ok)
	assert.Equal(t, "cluster_0", cluster.Name())
	assert.Equal(t, int64(1000), cluster.Clk())
	assert.Equal(t, 2, cluster.SubtreeDepth())

	require.Equal(t, 1, cluster.NumChildren())
	core, _ := cluster.ChildAt(0)
	assert.Equal(t, "core_0", core.Name())

	require.Equal(t, 1, core.NumChildren())
	thread, _ := core.ChildAt(0)
	assert.Equal(t, "thread_0", thread.Name())
	assert.Equal(t, int64(1000), thread.Clk())
	require.Equal(t, 3, thread.NumChildren())

	// The thread ends one cycle past its last item; core and cluster close
	// at or after that.
	tEnd, ok := thread.EndClk()
	require.True(t, ok)
	coreEnd, ok := core.EndClk()
	require.True(t, ok)
	clusterEnd, ok := cluster.EndClk()
	require.True(t, ok)
	assert.GreaterOrEqual(t, coreEnd, tEnd)
	assert.GreaterOrEqual(t, clusterEnd, coreEnd)

	for i := 0; i < thread.NumChildren(); i++ {
		instr, _ := thread.ChildAt(i)
		checkInstruction(t, instr)

		// Instructions live strictly inside the thread span.
		assert.GreaterOrEqual(t, instr.Clk(), thread.Clk())
		instrEnd, ok := instr.EndClk()
		require.True(t, ok)
		assert.Less(t, instrEnd, tEnd)
	}
}

// checkInstruction verifies one instruction record: naming, payload, stage
// events, and the memory stage appearing only on loads and stores.
func checkInstruction(t *testing.T, instr reader.TraceRecord) {
	t.Helper()

	opcode, ok := instr.Attrs().String("opcode")
	require.True(t, ok)
	pc, ok := instr.Attrs().String("pc")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(pc, "0x"))
	assert.Equal(t, pc+"-"+opcode, instr.Name())

	disasm, ok := instr.Attrs().String("disassembly")
	require.True(t, ok)
	assert.Equal(t, disasm, instr.Description())
	assert.True(t, strings.HasPrefix(strings.ToUpper(disasm), opcode+" "), "disasm: %s", disasm)

	end, ok := instr.EndClk()
	require.True(t, ok)
	assert.Greater(t, end, instr.Clk())

	names := make([]string, 0, instr.NumEvents())
	for i := 0; i < instr.NumEvents(); i++ {
		ev, ok := instr.EventAt(i)
		require.True(t, ok)
		names = append(names, ev.Name())
	}

	isMem := opcode == "LW" || opcode == "SW"
	want := []string{"F1", "F2", "D", "RN", "DS", "IS", "RR", "EX", "WB", "C"}
	if isMem {
		want = []string{"F1", "F2", "D", "RN", "DS", "IS", "RR", "EX", "M", "WB", "C"}
	}
	assert.Equal(t, want, names, "opcode: %s", opcode)

	// First stage coincides with the record start, last with its end.
	first, _ := instr.EventAt(0)
	assert.Equal(t, instr.Clk(), first.Clk())
	last, _ := instr.EventAt(instr.NumEvents() - 1)
	assert.Equal(t, end, last.Clk())
}

// TestGeneratorSiblingThreadBoundary checks that a thread opens only after
// its predecessor on the same core has fully finished.
func TestGeneratorSiblingThreadBoundary(t *testing.T) {
	cfg := Default()
	cfg.Threads = 2
	cfg.InstrMin, cfg.InstrMax = 2, 2

	out := generateToBuffer(t, cfg)
	d, err := reader.Parse(bytes.NewReader(out))
	require.NoError(t, err)

	roots := d.RootIDs()
	require.Len(t, roots, 1)
	cluster, _ := d.Record(roots[0])
	core, _ := cluster.ChildAt(0)
	require.Equal(t, 2, core.NumChildren())

	first, _ := core.ChildAt(0)
	second, _ := core.ChildAt(1)
	firstEnd, ok := first.EndClk()
	require.True(t, ok)
	assert.GreaterOrEqual(t, second.Clk(), firstEnd)
}

// TestGeneratorZeroInstructions keeps empty threads well-formed.
func TestGeneratorZeroInstructions(t *testing.T) {
	cfg := Default()
	cfg.InstrMin, cfg.InstrMax = 0, 0

	out := generateToBuffer(t, cfg)
	d, err := reader.Parse(bytes.NewReader(out))
	require.NoError(t, err)

	n, ok := d.Metadata().TotalRecords()
	require.True(t, ok)
	assert.Equal(t, 3, n)
	n, ok = d.Metadata().TotalEvents()
	require.True(t, ok)
	assert.Zero(t, n)
}

// TestGeneratorConfigValidation rejects bad configurations before any
// output exists.
func TestGeneratorConfigValidation(t *testing.T) {
	bad := []Config{
		{Clusters: 0, Cores: 1, Threads: 1, InstrMax: 1, Output: "t"},
		{Clusters: 1, Cores: 0, Threads: 1, InstrMax: 1, Output: "t"},
		{Clusters: 1, Cores: 1, Threads: 0, InstrMax: 1, Output: "t"},
		{Clusters: 1, Cores: 1, Threads: 1, InstrMin: -1, InstrMax: 1, Output: "t"},
		{Clusters: 1, Cores: 1, Threads: 1, InstrMin: 5, InstrMax: 1, Output: "t"},
		{Clusters: 1, Cores: 1, Threads: 1, InstrMax: 1, Output: ""},
		{Clusters: 1, Cores: 1, Threads: 1, InstrMax: 1, Output: "t", Compression: "brotli"},
	}
	for _, cfg := range bad {
		_, err := New(cfg)
		require.Error(t, err, "config: %+v", cfg)
		assert.True(t, errors.Is(err, trace.ErrConfig))
	}
}

// TestGenerateWritesCompressedFile runs end to end through the file layer.
func TestGenerateWritesCompressedFile(t *testing.T) {
	cfg := Default()
	cfg.InstrMin, cfg.InstrMax = 2, 2
	cfg.Output = filepath.Join(t.TempDir(), "trace.jets.zst")

	g, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, g.Generate())

	d, err := reader.Open(cfg.Output)
	require.NoError(t, err)
	n, ok := d.Metadata().TotalRecords()
	require.True(t, ok)
	assert.Equal(t, 5, n)

	// Forced codec, plain extension: the reader sniffs it all the same.
	cfg.Output = filepath.Join(t.TempDir(), "trace.jets")
	cfg.Compression = "gzip"
	g, err = New(cfg)
	require.NoError(t, err)
	require.NoError(t, g.Generate())

	d, err = reader.Open(cfg.Output)
	require.NoError(t, err)
	n, ok = d.Metadata().TotalRecords()
	require.True(t, ok)
	assert.Equal(t, 5, n)
}

// TestSeedFormula pins the seed derivation.
func TestSeedFormula(t *testing.T) {
	cfg := Config{Clusters: 2, Cores: 3, Threads: 4, InstrMin: 5, InstrMax: 9}
	assert.Equal(t, uint64(2345), cfg.Seed())
}
