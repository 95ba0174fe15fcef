package layout

// Indexer is a Grid's site ordering strategy: how global coordinates map
// to an owning node and a linear index within that node's block, and
// back. Implementations must be bijective over the full lattice and
// communication-free.
type Indexer interface {
	// LocalIndex returns the linear index of coord within its owning
	// node's block.
	LocalIndex(g *Grid, coord []int) int

	// OwnerNode returns the rank of the node owning coord.
	OwnerNode(g *Grid, coord []int) int

	// SiteCoords returns the global coordinate of a linear index on the
	// given node.
	SiteCoords(g *Grid, node, linear int) []int
}

// Lexicographic orders each node's block row-major with axis 0 varying
// fastest, and the nodes the same way over the node grid. It is the
// default Indexer.
type Lexicographic struct{}

func (Lexicographic) LocalIndex(g *Grid, coord []int) int {
	local := make([]int, len(coord))
	for i := range coord {
		local[i] = coord[i] % g.subgrid[i]
	}
	return IndexOf(local, g.subgrid)
}

func (Lexicographic) OwnerNode(g *Grid, coord []int) int {
	node := make([]int, len(coord))
	for i := range coord {
		node[i] = coord[i] / g.subgrid[i]
	}
	return IndexOf(node, g.nodeGrid)
}

func (Lexicographic) SiteCoords(g *Grid, node, linear int) []int {
	origin := CoordOf(node, g.nodeGrid)
	coord := CoordOf(linear, g.subgrid)
	for i := range coord {
		coord[i] += origin[i] * g.subgrid[i]
	}
	return coord
}
