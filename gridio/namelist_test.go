package gridio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNamelistFormat(t *testing.T) {
	g := primaryGrid(t)
	path := filepath.Join(t.TempDir(), "run.nml")

	w, err := NewNamelistWriter(g, path)
	if err != nil {
		t.Fatal(err)
	}
	steps := []struct {
		name string
		op   func() error
	}{
		{"push lattice", func() error { return w.Push("lattice") }},
		{"write extent", func() error { return w.Write("extent", 4, 4) }},
		{"push solver", func() error { return w.Push("solver") }},
		{"write steps", func() error { return w.Write("steps", 100) }},
		{"pop solver", w.Pop},
		{"pop lattice", w.Pop},
		{"close", w.Close},
	}
	for _, s := range steps {
		if err := s.op(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "&lattice\n extent 4 4\n&solver\n steps 100\n&end\n&end\n"
	if string(data) != want {
		t.Fatalf("file = %q, want %q", data, want)
	}
}

func TestNamelistBalance(t *testing.T) {
	g := primaryGrid(t)

	w, err := NewNamelistWriter(g, filepath.Join(t.TempDir(), "open.nml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Push("dangling"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err == nil {
		t.Error("Close accepted an unclosed group")
	}

	w, err = NewNamelistWriter(g, filepath.Join(t.TempDir(), "flat.nml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Pop(); err == nil {
		t.Error("Pop accepted an empty group stack")
	}
	w.Close()
}

func TestNamelistOffPrimary(t *testing.T) {
	g := secondaryGrid(t)
	path := filepath.Join(t.TempDir(), "ghost.nml")
	w, err := NewNamelistWriter(g, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Push("group"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file appeared off the primary node: %v", err)
	}
}
