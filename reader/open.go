package reader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/jetstrace/jets/internal/stream"
)

// Open reads the trace at path, auto-detecting both the compressed
// container (by magic bytes) and the physical format: JSON Lines traces
// start with '{', anything else is treated as a legacy pipetrace. The
// returned handle hides which backend produced it.
func Open(path string, opts ...Option) (TraceData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	src, _, err := stream.NewReader(f)
	if err != nil {
		return nil, err
	}

	first, rest, err := sniffFirstByte(src)
	if err != nil {
		return nil, fmt.Errorf("sniff %s: %w", path, err)
	}

	if first == '{' {
		return Parse(rest, opts...)
	}
	return ParsePipetrace(rest)
}

// sniffFirstByte scans past leading whitespace one byte at a time and
// reports the first meaningful byte. The scanned prefix is stitched back in
// front of the returned reader, so downstream line numbers stay physical.
func sniffFirstByte(src io.Reader) (byte, io.Reader, error) {
	br := bufio.NewReader(src)
	var prefix []byte
	for {
		c, err := br.ReadByte()
		if err != nil {
			return 0, nil, err
		}
		switch c {
		case ' ', '\t', '\r', '\n':
			prefix = append(prefix, c)
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, nil, err
		}
		if len(prefix) == 0 {
			return c, br, nil
		}
		return c, io.MultiReader(bytes.NewReader(prefix), br), nil
	}
}
