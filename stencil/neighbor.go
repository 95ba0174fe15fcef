package stencil

import (
	"github.com/notargets/latgrid/layout"
)

// Direction orients a nearest neighbor step along an axis.
type Direction int

const (
	Backward Direction = iota
	Forward
)

// NeighborMap holds, per axis and direction, the local linear index of
// every site's periodic nearest neighbor. For a neighbor living on an
// adjacent node the entry is the index its value occupies after a face
// exchange along that axis, which is the same mod-subgrid reduction.
type NeighborMap struct {
	grid *layout.Grid
	// tables[axis][direction][linear]
	tables [][2][]int
}

// NewNeighborMap scans the global lattice once, keeps the sites owned by
// this node, and records both axis neighbors of each with periodic
// wraparound.
func NewNeighborMap(g *layout.Grid) *NeighborMap {
	if g == nil {
		panic("stencil: nil grid")
	}
	nd := g.NumDims()
	extent := g.GlobalExtent()
	me := g.NodeNumber()

	tables := make([][2][]int, nd)
	for m := range tables {
		tables[m][Backward] = make([]int, g.SubgridVolume())
		tables[m][Forward] = make([]int, g.SubgridVolume())
	}
	for site := 0; site < g.Volume(); site++ {
		coord := layout.CoordOf(site, extent)
		if g.OwnerNode(coord) != me {
			continue
		}
		linear := g.LocalIndex(coord)
		for m := 0; m < nd; m++ {
			at := coord[m]
			coord[m] = (at + 1) % extent[m]
			tables[m][Forward][linear] = g.LocalIndex(coord)
			coord[m] = (at - 1 + extent[m]) % extent[m]
			tables[m][Backward][linear] = g.LocalIndex(coord)
			coord[m] = at
		}
	}
	return &NeighborMap{grid: g, tables: tables}
}

// Grid returns the grid the map was built over.
func (nm *NeighborMap) Grid() *layout.Grid { return nm.grid }

// Neighbor returns the local index holding site linear's neighbor one
// step along axis in the given direction.
func (nm *NeighborMap) Neighbor(axis int, dir Direction, linear int) int {
	return nm.tables[axis][dir][linear]
}

// Forward returns the forward neighbor index along axis.
func (nm *NeighborMap) Forward(axis, linear int) int {
	return nm.tables[axis][Forward][linear]
}

// Backward returns the backward neighbor index along axis.
func (nm *NeighborMap) Backward(axis, linear int) int {
	return nm.tables[axis][Backward][linear]
}
