// Package gridio reads and writes small job files from the primary node
// of a grid: free-form text, namelist groups, and big-endian binary
// records. Constructors gate on the grid's primary node; everywhere else
// the methods are no-ops, and spreading the data to the other nodes is
// the caller's business.
package gridio

import (
	"bufio"
	"fmt"
	"os"

	"github.com/notargets/latgrid/layout"
)

// TextWriter writes whitespace-separated values to a file on the
// primary node and swallows writes on every other node.
type TextWriter struct {
	f *os.File
	w *bufio.Writer
}

// NewTextWriter creates path on the primary node of g. On other nodes
// it returns a writer whose methods do nothing.
func NewTextWriter(g *layout.Grid, path string) (*TextWriter, error) {
	if g == nil {
		panic("gridio: nil grid")
	}
	if !g.IsPrimary() {
		return &TextWriter{}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("gridio: %w", err)
	}
	return &TextWriter{f: f, w: bufio.NewWriter(f)}, nil
}

// Write prints the values space-separated on one line.
func (t *TextWriter) Write(values ...any) error {
	if t.f == nil {
		return nil
	}
	for i, v := range values {
		if i > 0 {
			if _, err := t.w.WriteRune(' '); err != nil {
				return fmt.Errorf("gridio: %w", err)
			}
		}
		if _, err := fmt.Fprint(t.w, v); err != nil {
			return fmt.Errorf("gridio: %w", err)
		}
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	return nil
}

// Close flushes and closes the file on the primary node.
func (t *TextWriter) Close() error {
	if t.f == nil {
		return nil
	}
	if err := t.w.Flush(); err != nil {
		t.f.Close()
		return fmt.Errorf("gridio: %w", err)
	}
	if err := t.f.Close(); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	return nil
}

// TextReader scans whitespace-separated values from a file on the
// primary node. On other nodes Read leaves its destinations untouched;
// the caller is expected to spread the values itself.
type TextReader struct {
	f *os.File
	r *bufio.Reader
}

// NewTextReader opens path on the primary node of g.
func NewTextReader(g *layout.Grid, path string) (*TextReader, error) {
	if g == nil {
		panic("gridio: nil grid")
	}
	if !g.IsPrimary() {
		return &TextReader{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gridio: %w", err)
	}
	return &TextReader{f: f, r: bufio.NewReader(f)}, nil
}

// Read scans the next values into the given pointers.
func (t *TextReader) Read(dest ...any) error {
	if t.f == nil {
		return nil
	}
	if _, err := fmt.Fscan(t.r, dest...); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	return nil
}

// Close closes the file on the primary node.
func (t *TextReader) Close() error {
	if t.f == nil {
		return nil
	}
	if err := t.f.Close(); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	return nil
}
