// Package trace defines the JETS trace line model shared by the writer,
// the reader, and the generator.
//
// A trace is a sequence of UTF-8 JSON objects, one per line. Six line
// kinds exist:
//   - header: first line, carries the format version and capture metadata
//   - record: a node in the hierarchical record forest
//   - record_end: closes a previously opened record (at most once per id)
//   - annotation: untimed metadata attached to a record
//   - event: a timed occurrence attached to a record
//   - footer: optional last line with run totals
//
// Validator enforces the file-level invariants (header first, unique ids,
// parent-before-child, no forward references, non-decreasing clk, single
// record_end, footer last) one line at a time, so producers and consumers
// can agree on the format without buffering a whole trace.
package trace
