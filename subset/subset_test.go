package subset

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/notargets/latgrid/layout"
	"github.com/notargets/latgrid/transport"
)

func singleNodeGrid(t *testing.T, extent []int) *layout.Grid {
	t.Helper()
	g, err := layout.Create(transport.NewMesh(1).Node(0), extent)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestAll(t *testing.T) {
	g := singleNodeGrid(t, []int{4, 4})
	set, err := NewSet(g, All())
	if err != nil {
		t.Fatal(err)
	}
	if set.NumSubsets() != 1 {
		t.Fatalf("NumSubsets = %d, want 1", set.NumSubsets())
	}
	sub := set.Subset(0)
	if sub.Len() != 16 {
		t.Fatalf("Len = %d, want 16", sub.Len())
	}
	for i, site := range sub.Sites() {
		if site != i {
			t.Fatalf("Sites()[%d] = %d", i, site)
		}
	}
}

func TestEvenOdd(t *testing.T) {
	g := singleNodeGrid(t, []int{4, 4})
	set, err := NewSet(g, EvenOdd())
	if err != nil {
		t.Fatal(err)
	}
	if set.NumSubsets() != 2 {
		t.Fatalf("NumSubsets = %d, want 2", set.NumSubsets())
	}
	for color := 0; color < 2; color++ {
		sub := set.Subset(color)
		if sub.Len() != 8 {
			t.Errorf("color %d: Len = %d, want 8", color, sub.Len())
		}
		for _, site := range sub.Sites() {
			c := g.SiteCoords(site)
			if (c[0]+c[1])%2 != color {
				t.Errorf("color %d holds site %d at %v", color, site, c)
			}
		}
	}
}

func TestEvenOddDistributed(t *testing.T) {
	err := transport.RunNodes(2, func(tr transport.Transport) error {
		g, err := layout.Create(tr, []int{8})
		if err != nil {
			return err
		}
		set, err := NewSet(g, EvenOdd())
		if err != nil {
			return err
		}
		// Both blocks start on an even global coordinate, so parity
		// follows the local index on every node.
		if got := set.Subset(0).Sites(); !slices.Equal(got, []int{0, 2}) {
			return fmt.Errorf("node %d: even sites = %v", g.NodeNumber(), got)
		}
		if got := set.Subset(1).Sites(); !slices.Equal(got, []int{1, 3}) {
			return fmt.Errorf("node %d: odd sites = %v", g.NodeNumber(), got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// axisColoring colors a site by one coordinate component.
type axisColoring struct {
	axis int
	n    int
}

func (a axisColoring) Color(coord []int) int { return coord[a.axis] }
func (a axisColoring) NumColors() int        { return a.n }

func TestUnionCoversEverySiteOnce(t *testing.T) {
	g := singleNodeGrid(t, []int{4, 4})
	colorings := []struct {
		name string
		c    Coloring
	}{
		{name: "all", c: All()},
		{name: "even odd", c: EvenOdd()},
		{name: "axis stripes", c: axisColoring{axis: 1, n: 4}},
	}
	for _, tc := range colorings {
		t.Run(tc.name, func(t *testing.T) {
			set, err := NewSet(g, tc.c)
			if err != nil {
				t.Fatal(err)
			}
			var union []int
			for i := 0; i < set.NumSubsets(); i++ {
				union = append(union, set.Subset(i).Sites()...)
			}
			slices.Sort(union)
			if len(union) != g.SubgridVolume() {
				t.Fatalf("union has %d sites, want %d", len(union), g.SubgridVolume())
			}
			for i, site := range union {
				if site != i {
					t.Fatalf("union[%d] = %d", i, site)
				}
			}
		})
	}
}

func TestRebuildDeterminism(t *testing.T) {
	g := singleNodeGrid(t, []int{4, 4})
	a, err := NewSet(g, EvenOdd())
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSet(g, EvenOdd())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < a.NumSubsets(); i++ {
		if !slices.Equal(a.Subset(i).Sites(), b.Subset(i).Sites()) {
			t.Fatalf("color %d differs across rebuilds", i)
		}
	}
}

// gapColoring leaves one coordinate out of range.
type gapColoring struct{}

func (gapColoring) Color(coord []int) int {
	if coord[0] == 0 {
		return -1
	}
	return 0
}
func (gapColoring) NumColors() int { return 1 }

// overflowColoring returns its color count as a color.
type overflowColoring struct{}

func (overflowColoring) Color(coord []int) int { return coord[0] }
func (overflowColoring) NumColors() int        { return 2 }

func TestIncompleteColoring(t *testing.T) {
	g := singleNodeGrid(t, []int{4, 4})
	cases := []struct {
		name string
		c    Coloring
	}{
		{name: "negative color", c: gapColoring{}},
		{name: "color past range", c: overflowColoring{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSet(g, tc.c); !errors.Is(err, ErrIncompleteColoring) {
				t.Fatalf("err = %v, want ErrIncompleteColoring", err)
			}
		})
	}
}

// skewedIndexer misattributes every site's owner by one rank.
type skewedIndexer struct{ layout.Lexicographic }

func (skewedIndexer) OwnerNode(g *layout.Grid, coord []int) int {
	return (layout.Lexicographic{}.OwnerNode(g, coord) + 1) % g.NumNodes()
}

func TestNonLocalSite(t *testing.T) {
	g, err := layout.Create(transport.NewMesh(2).Node(0), []int{8},
		layout.WithIndexer(skewedIndexer{}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewSet(g, All()); !errors.Is(err, ErrNonLocalSite) {
		t.Fatalf("err = %v, want ErrNonLocalSite", err)
	}
}
