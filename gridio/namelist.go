package gridio

import (
	"bufio"
	"fmt"
	"os"

	"github.com/notargets/latgrid/layout"
)

// NamelistWriter writes named groups of values in namelist form on the
// primary node:
//
//	&group
//	 name value value
//	&end
//
// Groups nest by pushing before popping.
type NamelistWriter struct {
	f     *os.File
	w     *bufio.Writer
	depth int
}

// NewNamelistWriter creates path on the primary node of g. On other
// nodes it returns a writer whose methods do nothing.
func NewNamelistWriter(g *layout.Grid, path string) (*NamelistWriter, error) {
	if g == nil {
		panic("gridio: nil grid")
	}
	if !g.IsPrimary() {
		return &NamelistWriter{}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("gridio: %w", err)
	}
	return &NamelistWriter{f: f, w: bufio.NewWriter(f)}, nil
}

// Push opens a named group.
func (n *NamelistWriter) Push(group string) error {
	if n.f == nil {
		return nil
	}
	n.depth++
	if _, err := fmt.Fprintf(n.w, "&%s\n", group); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	return nil
}

// Pop closes the innermost open group.
func (n *NamelistWriter) Pop() error {
	if n.f == nil {
		return nil
	}
	if n.depth == 0 {
		return fmt.Errorf("gridio: pop without a matching push")
	}
	n.depth--
	if _, err := fmt.Fprint(n.w, "&end\n"); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	return nil
}

// Write emits one named entry inside the current group.
func (n *NamelistWriter) Write(name string, values ...any) error {
	if n.f == nil {
		return nil
	}
	if _, err := fmt.Fprintf(n.w, " %s", name); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	for _, v := range values {
		if _, err := fmt.Fprintf(n.w, " %v", v); err != nil {
			return fmt.Errorf("gridio: %w", err)
		}
	}
	if err := n.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	return nil
}

// Close flushes and closes the file. Every pushed group must have been
// popped.
func (n *NamelistWriter) Close() error {
	if n.f == nil {
		return nil
	}
	if n.depth != 0 {
		n.f.Close()
		return fmt.Errorf("gridio: %d groups still open", n.depth)
	}
	if err := n.w.Flush(); err != nil {
		n.f.Close()
		return fmt.Errorf("gridio: %w", err)
	}
	if err := n.f.Close(); err != nil {
		return fmt.Errorf("gridio: %w", err)
	}
	return nil
}
