package stream

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestByExtension maps filenames to codecs.
func TestByExtension(t *testing.T) {
	assert.Equal(t, Gzip, ByExtension("trace.jets.gz"))
	assert.Equal(t, Zstd, ByExtension("trace.jets.zst"))
	assert.Equal(t, None, ByExtension("trace.jets"))
	assert.Equal(t, None, ByExtension("trace.gzip")) // suffix must match exactly
}

// TestRoundTripAllCodecs writes through each codec and reads the bytes back
// through the sniffing reader.
func TestRoundTripAllCodecs(t *testing.T) {
	payload := strings.Repeat(`{"clk":1,"type":"record"}`+"\n", 200)

	for _, codec := range []Codec{None, Gzip, Zstd} {
		t.Run(codec.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, codec)
			require.NoError(t, err)
			_, err = io.WriteString(w, payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, detected, err := NewReader(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, codec, detected)

			out, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, string(out))
		})
	}
}

// TestReaderShortInput checks that inputs shorter than the sniff window
// pass through unharmed.
func TestReaderShortInput(t *testing.T) {
	for _, in := range []string{"", "{", "{}\n"} {
		r, codec, err := NewReader(strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, None, codec)
		out, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, in, string(out))
	}
}

// TestWriterCloseLeavesSinkOpen checks that closing the transport flushes
// the frame without touching the sink.
func TestWriterCloseLeavesSinkOpen(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Gzip)
	require.NoError(t, err)
	_, err = io.WriteString(w, "hello")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// Sink is still writable after transport close.
	buf.WriteByte('x')
	assert.True(t, bytes.HasPrefix(buf.Bytes(), gzipMagic))
}
