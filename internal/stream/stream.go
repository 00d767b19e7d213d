// Package stream provides the optional compressed transport around a trace
// byte stream. Compression never changes line content, only the container:
// the writer picks a codec from the output filename, the reader sniffs
// magic bytes and decompresses transparently.
package stream

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/jetstrace/jets/trace"
)

// Codec selects the transport encoding.
type Codec int

const (
	None Codec = iota
	Gzip
	Zstd
)

// String returns the codec name.
func (c Codec) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}

// ByExtension maps an output path to a codec: ".gz" and ".zst" select
// compression, anything else is plain text.
func ByExtension(path string) Codec {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return Gzip
	case strings.HasSuffix(path, ".zst"):
		return Zstd
	default:
		return None
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with the chosen codec. The returned WriteCloser must be
// closed to flush the compressor frame; closing it does not close w.
func NewWriter(w io.Writer, c Codec) (io.WriteCloser, error) {
	switch c {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", trace.ErrCompression, err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %d", trace.ErrCompression, c)
	}
}

// Magic prefixes of the supported containers.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// NewReader sniffs the leading bytes of r and returns a transparently
// decompressing reader plus the detected codec. Unrecognized prefixes pass
// through as plain text.
func NewReader(r io.Reader) (io.Reader, Codec, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, None, err
	}

	switch {
	case len(head) >= 2 && head[0] == gzipMagic[0] && head[1] == gzipMagic[1]:
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, Gzip, fmt.Errorf("%w: %v", trace.ErrCompression, err)
		}
		return gr, Gzip, nil
	case len(head) >= 4 && head[0] == zstdMagic[0] && head[1] == zstdMagic[1] &&
		head[2] == zstdMagic[2] && head[3] == zstdMagic[3]:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, Zstd, fmt.Errorf("%w: %v", trace.ErrCompression, err)
		}
		return zr.IOReadCloser(), Zstd, nil
	default:
		return br, None, nil
	}
}
