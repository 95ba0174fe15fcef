// Package subset partitions a node's local sites by a total coloring of
// the global lattice. Every node evaluates the same coloring over its own
// block, so the subsets of a color across all nodes tile the lattice
// without communication.
package subset

import (
	"errors"
	"fmt"

	"github.com/notargets/latgrid/layout"
)

var (
	// ErrNonLocalSite reports a site whose owner, recomputed from its
	// coordinate, is not the node enumerating it. It means the grid's
	// indexer is not a bijection.
	ErrNonLocalSite = errors.New("subset: coloring visited a non-local site")

	// ErrIncompleteColoring reports a color outside [0, NumColors).
	ErrIncompleteColoring = errors.New("subset: coloring left sites without a valid color")
)

// Coloring assigns every global coordinate a color in [0, NumColors).
// A coloring must be total and identical on every node.
type Coloring interface {
	Color(coord []int) int
	NumColors() int
}

// Set is the partition of one node's sites under a coloring, one Subset
// per color. A Set is immutable once built and rebuilding it from the
// same grid and coloring yields identical tables.
type Set struct {
	grid    *layout.Grid
	subsets []Subset
}

// Subset holds the local sites of one color in ascending linear order.
type Subset struct {
	color int
	sites []int
}

// NewSet colors every local site of g and materializes the per-color
// site tables. It fails when a site's recomputed owner is not this node
// or when any site receives a color outside [0, NumColors).
func NewSet(g *layout.Grid, c Coloring) (*Set, error) {
	if g == nil {
		panic("subset: nil grid")
	}
	if c == nil {
		panic("subset: nil coloring")
	}
	n := c.NumColors()
	if n < 1 {
		return nil, fmt.Errorf("subset: coloring declares %d colors: %w", n, ErrIncompleteColoring)
	}
	me := g.NodeNumber()
	colors := make([]int, g.SubgridVolume())
	for linear := range colors {
		coord := g.SiteCoords(linear)
		if node := g.OwnerNode(coord); node != me {
			return nil, fmt.Errorf("subset: site %d at %v maps to node %d on node %d: %w",
				linear, coord, node, me, ErrNonLocalSite)
		}
		colors[linear] = c.Color(coord)
	}
	counts := make([]int, n)
	for linear, col := range colors {
		if col < 0 || col >= n {
			return nil, fmt.Errorf("subset: site %d colored %d of %d: %w",
				linear, col, n, ErrIncompleteColoring)
		}
		counts[col]++
	}
	subsets := make([]Subset, n)
	for col := range subsets {
		subsets[col] = Subset{color: col, sites: make([]int, 0, counts[col])}
	}
	for linear, col := range colors {
		subsets[col].sites = append(subsets[col].sites, linear)
	}
	return &Set{grid: g, subsets: subsets}, nil
}

// Grid returns the grid the set was built over.
func (s *Set) Grid() *layout.Grid { return s.grid }

// NumSubsets returns the number of colors.
func (s *Set) NumSubsets() int { return len(s.subsets) }

// Subset returns the subset of one color.
func (s *Set) Subset(color int) *Subset { return &s.subsets[color] }

// Color returns the color the subset collects.
func (s *Subset) Color() int { return s.color }

// Len returns the number of local sites in the subset.
func (s *Subset) Len() int { return len(s.sites) }

// Sites returns the subset's local linear indices in ascending order.
// The slice is shared with the Set; callers must not modify it.
func (s *Subset) Sites() []int { return s.sites }

// All colors every site alike, giving a single subset holding every
// local site.
func All() Coloring { return allColoring{} }

type allColoring struct{}

func (allColoring) Color([]int) int { return 0 }
func (allColoring) NumColors() int  { return 1 }

// EvenOdd colors sites by coordinate-sum parity, the checkerboard pair.
func EvenOdd() Coloring { return evenOddColoring{} }

type evenOddColoring struct{}

func (evenOddColoring) Color(coord []int) int {
	sum := 0
	for _, c := range coord {
		sum += c
	}
	return sum & 1
}

func (evenOddColoring) NumColors() int { return 2 }
