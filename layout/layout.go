// Package layout partitions a regular multi-dimensional grid across the
// nodes of a transport and fixes the bijection between global coordinates
// and (node, local index) pairs. A Grid is immutable once created; every
// node of a job builds an identical one from identical arguments without
// communicating.
package layout

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/notargets/latgrid/transport"
)

// MaxVolume caps the global site count so linear site indices stay within
// a 32-bit int, the widest the serial index tables assume.
const MaxVolume = math.MaxInt32

var (
	// ErrNotStarted reports a Create over a transport whose message
	// passing layer is not up.
	ErrNotStarted = errors.New("layout: transport not started")

	// ErrDimension reports an extent, hint or coordinate whose rank or
	// entries are unusable.
	ErrDimension = errors.New("layout: dimension mismatch")

	// ErrNotDivisible reports a node grid that does not divide the
	// lattice extent evenly.
	ErrNotDivisible = errors.New("layout: node grid does not divide the lattice extent")

	// ErrVolume reports a lattice larger than MaxVolume sites.
	ErrVolume = errors.New("layout: lattice volume exceeds capacity")
)

// Grid is one node's view of a lattice partitioned over a node grid:
// the global extent, this node's block, and the index bijection. All
// methods are read-only and any returned slice is the caller's to keep.
type Grid struct {
	extent    []int
	nodeGrid  []int
	subgrid   []int
	nodeCoord []int
	volume    int
	subVolume int
	node      int
	numNodes  int
	indexer   Indexer
}

type options struct {
	indexer  Indexer
	topology []int
}

// Option adjusts Create.
type Option func(*options)

// WithIndexer substitutes the site ordering strategy. The default is
// Lexicographic.
func WithIndexer(ix Indexer) Option {
	return func(o *options) { o.indexer = ix }
}

// WithTopology fixes the node grid shape instead of letting the transport
// choose one. The product of the hint must equal the node count.
func WithTopology(hint []int) Option {
	return func(o *options) { o.topology = slices.Clone(hint) }
}

// Create partitions a lattice of the given global extent over the
// transport's nodes. It declares the logical topology on the transport,
// verifies that the resulting node grid divides the extent evenly, and
// returns this node's view. Every node must call Create with identical
// arguments.
func Create(tr transport.Transport, globalExtent []int, opts ...Option) (*Grid, error) {
	if tr == nil {
		panic("layout: nil transport")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if !tr.Started() {
		return nil, ErrNotStarted
	}
	nd := len(globalExtent)
	if nd == 0 {
		return nil, fmt.Errorf("layout: empty lattice extent: %w", ErrDimension)
	}
	for i, e := range globalExtent {
		if e < 1 {
			return nil, fmt.Errorf("layout: extent[%d] = %d is not positive: %w", i, e, ErrDimension)
		}
	}
	if o.topology != nil && len(o.topology) != nd {
		return nil, fmt.Errorf("layout: topology hint %v for a %d-dim lattice: %w",
			o.topology, nd, ErrDimension)
	}
	vol := Volume(globalExtent)
	if vol > MaxVolume {
		return nil, fmt.Errorf("layout: volume %d exceeds %d: %w", vol, MaxVolume, ErrVolume)
	}
	if err := tr.LayoutGrid(globalExtent, o.topology); err != nil {
		return nil, fmt.Errorf("layout: declaring the logical topology: %w", err)
	}
	g := &Grid{
		extent:    slices.Clone(globalExtent),
		nodeGrid:  tr.LogicalSize(),
		nodeCoord: tr.LogicalCoord(),
		subgrid:   tr.SubgridSize(),
		subVolume: tr.SubgridVolume(),
		volume:    vol,
		node:      tr.NodeNumber(),
		numNodes:  tr.NumNodes(),
		indexer:   o.indexer,
	}
	if g.indexer == nil {
		g.indexer = Lexicographic{}
	}
	if len(g.nodeGrid) != nd || len(g.subgrid) != nd {
		return nil, fmt.Errorf("layout: transport reported a %d-axis topology for a %d-dim lattice: %w",
			len(g.nodeGrid), nd, ErrDimension)
	}
	for i := range globalExtent {
		if g.nodeGrid[i] < 1 || globalExtent[i]%g.nodeGrid[i] != 0 {
			return nil, fmt.Errorf("layout: node grid %v over extent %v fails on axis %d: %w",
				g.nodeGrid, globalExtent, i, ErrNotDivisible)
		}
		if g.subgrid[i] != globalExtent[i]/g.nodeGrid[i] {
			return nil, fmt.Errorf("layout: transport subgrid %v disagrees with extent %v over node grid %v: %w",
				g.subgrid, globalExtent, g.nodeGrid, ErrNotDivisible)
		}
	}
	g.logCreate()
	return g, nil
}

// GlobalExtent returns the lattice extent per axis.
func (g *Grid) GlobalExtent() []int { return slices.Clone(g.extent) }

// SubgridExtent returns the per-node block extent per axis.
func (g *Grid) SubgridExtent() []int { return slices.Clone(g.subgrid) }

// NodeGrid returns the logical node grid shape.
func (g *Grid) NodeGrid() []int { return slices.Clone(g.nodeGrid) }

// NodeCoord returns this node's coordinate in the node grid.
func (g *Grid) NodeCoord() []int { return slices.Clone(g.nodeCoord) }

// NumDims returns the lattice dimensionality.
func (g *Grid) NumDims() int { return len(g.extent) }

// Volume returns the global site count.
func (g *Grid) Volume() int { return g.volume }

// SubgridVolume returns this node's site count.
func (g *Grid) SubgridVolume() int { return g.subVolume }

// NodeNumber returns this node's rank.
func (g *Grid) NodeNumber() int { return g.node }

// NumNodes returns the node count.
func (g *Grid) NumNodes() int { return g.numNodes }

// IsPrimary reports whether this node is rank 0.
func (g *Grid) IsPrimary() bool { return g.node == 0 }

// LocalIndex returns the linear index of a global coordinate within its
// owning node's block.
func (g *Grid) LocalIndex(coord []int) int {
	g.checkCoord(coord)
	return g.indexer.LocalIndex(g, coord)
}

// OwnerNode returns the rank of the node owning a global coordinate.
func (g *Grid) OwnerNode(coord []int) int {
	g.checkCoord(coord)
	return g.indexer.OwnerNode(g, coord)
}

// SiteCoords returns the global coordinate of a linear index on this
// node.
func (g *Grid) SiteCoords(linear int) []int {
	return g.indexer.SiteCoords(g, g.node, linear)
}

// SiteCoordsOn returns the global coordinate of a linear index on an
// arbitrary node.
func (g *Grid) SiteCoordsOn(node, linear int) []int {
	return g.indexer.SiteCoords(g, node, linear)
}

func (g *Grid) checkCoord(coord []int) {
	if len(coord) != len(g.extent) {
		panic(fmt.Sprintf("layout: %d-dim coordinate on a %d-dim lattice", len(coord), len(g.extent)))
	}
}

// logCreate emits the one-time creation diagnostic from the primary node.
func (g *Grid) logCreate() {
	if !g.IsPrimary() {
		return
	}
	slog.Info("lattice initialized",
		"extent", g.extent,
		"node_grid", g.nodeGrid,
		"subgrid", g.subgrid,
		"nodes", g.numNodes,
		"volume", g.volume,
		"subgrid_volume", g.subVolume)
}
