package reader

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetstrace/jets/trace"
)

const smallPipetrace = `# pipeline capture
# seq	pc	disasm	stages

1	0x0000000000001000	ADD x1, x2, x3	F@100,D@101,EX@102,C@104
2	0x1004	lw x5, 8(x2)	F@101,D@102,EX@103,M@105,C@108
`

// TestParsePipetraceAdaptsRecords checks the mapping of legacy lines onto
// the native in-memory shape.
func TestParsePipetraceAdaptsRecords(t *testing.T) {
	d, err := ParsePipetrace(strings.NewReader(smallPipetrace))
	require.NoError(t, err)

	assert.Equal(t, "pipetrace-1.0", d.Metadata().Version())
	format, ok := d.Metadata().HeaderData().String("source_format")
	require.True(t, ok)
	assert.Equal(t, "pipetrace", format)

	assert.Equal(t, []trace.RecordID{1, 2}, d.RootIDs())

	rec, ok := d.Record(1)
	require.True(t, ok)
	assert.Equal(t, "0x0000000000001000-ADD", rec.Name())
	assert.Equal(t, "ADD x1, x2, x3", rec.Description())
	assert.Equal(t, int64(100), rec.Clk())
	end, ok := rec.EndClk()
	require.True(t, ok)
	assert.Equal(t, int64(104), end)
	assert.Equal(t, 0, rec.NumChildren())

	require.Equal(t, 4, rec.NumEvents())
	ev, ok := rec.EventAt(2)
	require.True(t, ok)
	assert.Equal(t, "EX", ev.Name())
	assert.Equal(t, int64(102), ev.Clk())

	// Opcode is uppercased, pc normalized to 16 hex digits.
	second, ok := d.Record(2)
	require.True(t, ok)
	assert.Equal(t, "0x0000000000001004-LW", second.Name())
	opcode, ok := second.Attr("opcode")
	require.True(t, ok)
	assert.Equal(t, `"LW"`, string(opcode))

	// Footer is synthesized from what was read.
	n, ok := d.Metadata().TotalRecords()
	require.True(t, ok)
	assert.Equal(t, 2, n)
	events, ok := d.Metadata().TotalEvents()
	require.True(t, ok)
	assert.Equal(t, 9, events)
	endClk, ok := d.Metadata().CaptureEndClk()
	require.True(t, ok)
	assert.Equal(t, int64(108), endClk)

	lo, hi := d.Metadata().Extent()
	assert.Equal(t, int64(100), lo)
	assert.Equal(t, int64(108), hi)
}

// TestParsePipetraceEmpty synthesizes an empty trace with no capture end.
func TestParsePipetraceEmpty(t *testing.T) {
	d, err := ParsePipetrace(strings.NewReader("# nothing here\n"))
	require.NoError(t, err)

	assert.Empty(t, d.RootIDs())
	n, ok := d.Metadata().TotalRecords()
	require.True(t, ok)
	assert.Equal(t, 0, n)
	_, ok = d.Metadata().CaptureEndClk()
	assert.False(t, ok)
}

// TestParsePipetraceRejections checks per-line failure modes and their
// line numbers.
func TestParsePipetraceRejections(t *testing.T) {
	cases := []struct {
		name      string
		input     string
		invariant string
		line      int
	}{
		{
			name:      "wrong field count",
			input:     "1\t0x1000\tADD x1, x2, x3\n",
			invariant: trace.InvariantWellFormedLine,
			line:      1,
		},
		{
			name:      "duplicate sequence",
			input:     "1\t0x1000\tADD x1\tF@1\n1\t0x1004\tSUB x2\tF@2\n",
			invariant: trace.InvariantUniqueID,
			line:      2,
		},
		{
			name:      "bad pc",
			input:     "1\t0xZZ\tADD x1\tF@1\n",
			invariant: trace.InvariantWellFormedLine,
			line:      1,
		},
		{
			name:      "empty disassembly",
			input:     "1\t0x1000\t \tF@1\n",
			invariant: trace.InvariantWellFormedLine,
			line:      1,
		},
		{
			name:      "bad stage",
			input:     "1\t0x1000\tADD x1\tF=1\n",
			invariant: trace.InvariantWellFormedLine,
			line:      1,
		},
		{
			name:      "stage clk regression",
			input:     "# header\n1\t0x1000\tADD x1\tF@10,D@9\n",
			invariant: trace.InvariantMonotonicClk,
			line:      2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePipetrace(strings.NewReader(tc.input))
			require.Error(t, err)
			var fe *trace.FormatError
			require.True(t, errors.As(err, &fe), "error: %v", err)
			assert.Equal(t, tc.invariant, fe.Invariant)
			assert.Equal(t, tc.line, fe.Line)
		})
	}
}

// TestParsePipetraceKeepsPrefixOnError checks the valid-prefix contract of
// the legacy backend.
func TestParsePipetraceKeepsPrefixOnError(t *testing.T) {
	in := "1\t0x1000\tADD x1\tF@1,C@2\nbroken line\n"
	d, err := ParsePipetrace(strings.NewReader(in))
	require.Error(t, err)
	require.NotNil(t, d)
	assert.Equal(t, []trace.RecordID{1}, d.RootIDs())
}
