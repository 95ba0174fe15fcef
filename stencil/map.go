// Package stencil builds the index tables that connect lattice sites:
// nearest neighbor tables per axis, and general permutation maps with the
// send and receive schedules their cross-node exchanges need. Everything
// is computed from the grid alone, without communication, so every node
// arrives at schedules the others agree with.
package stencil

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/notargets/latgrid/layout"
)

var (
	// ErrPermRange reports a permutation image off the lattice.
	ErrPermRange = errors.New("stencil: permutation image outside the lattice")

	// ErrPermInverse reports forward and backward images that do not
	// invert each other.
	ErrPermInverse = errors.New("stencil: forward and backward images disagree")
)

// PermFunc maps a global coordinate to another under a permutation of the
// lattice. Sign +1 gives the site a value is pulled from, sign -1 the
// site that pulls this one's value; the two orientations must invert each
// other. The function receives a private copy of the coordinate and may
// return it modified.
type PermFunc func(coord []int, sign int) []int

// Map ties every local site to the site it reads under a permutation,
// with per-partner schedules for the cross-node traffic. Both ends of an
// exchange derive the same ordering locally: a sender lines its outgoing
// sites up by the slot they land in on the receiver, and a receiver
// unpacks into its sites in ascending order.
type Map struct {
	grid *layout.Grid

	srcNode  []int // per site, rank owning its source value
	srcIndex []int // per site, the source's linear index on that rank
	dstNode  []int // per site, rank that pulls this site's value

	srcNodes  []int // partners received from, this node first
	dstNodes  []int // partners sent to, this node first
	recvSites map[int][]int
	sendSites map[int][]int
	offNode   bool
}

// NewMap evaluates both orientations of perm over this node's sites and
// builds the source tables and exchange schedules. The permutation must
// keep every image on the lattice; whether the orientations truly invert
// each other is the caller's contract, checkable with CheckInverses.
func NewMap(g *layout.Grid, perm PermFunc) (*Map, error) {
	if g == nil {
		panic("stencil: nil grid")
	}
	if perm == nil {
		panic("stencil: nil permutation")
	}
	extent := g.GlobalExtent()
	subVol := g.SubgridVolume()
	me := g.NodeNumber()

	m := &Map{
		grid:      g,
		srcNode:   make([]int, subVol),
		srcIndex:  make([]int, subVol),
		dstNode:   make([]int, subVol),
		recvSites: make(map[int][]int),
		sendSites: make(map[int][]int),
	}
	// Slot each outgoing site fills on its receiver, used only to order
	// the send schedules.
	recvSlot := make([]int, subVol)

	for linear := 0; linear < subVol; linear++ {
		coord := g.SiteCoords(linear)
		src, err := permImage(perm, coord, +1, extent)
		if err != nil {
			return nil, err
		}
		dst, err := permImage(perm, coord, -1, extent)
		if err != nil {
			return nil, err
		}
		m.srcNode[linear] = g.OwnerNode(src)
		m.srcIndex[linear] = g.LocalIndex(src)
		m.dstNode[linear] = g.OwnerNode(dst)
		recvSlot[linear] = g.LocalIndex(dst)
	}

	m.srcNodes = partnerList(m.srcNode, me)
	m.dstNodes = partnerList(m.dstNode, me)
	for linear, node := range m.srcNode {
		m.recvSites[node] = append(m.recvSites[node], linear)
	}
	for linear, node := range m.dstNode {
		m.sendSites[node] = append(m.sendSites[node], linear)
	}
	for _, sites := range m.sendSites {
		slices.SortFunc(sites, func(a, b int) int {
			return cmp.Compare(recvSlot[a], recvSlot[b])
		})
	}
	m.offNode = len(m.srcNodes) > 1 || len(m.dstNodes) > 1

	slog.Debug("permutation map built",
		"node", me,
		"recv_partners", len(m.srcNodes)-1,
		"send_partners", len(m.dstNodes)-1,
		"off_node", m.offNode)
	return m, nil
}

// Grid returns the grid the map was built over.
func (m *Map) Grid() *layout.Grid { return m.grid }

// SrcNode returns the rank owning the value site linear reads.
func (m *Map) SrcNode(linear int) int { return m.srcNode[linear] }

// SrcIndex returns the source value's linear index on its owning rank.
func (m *Map) SrcIndex(linear int) int { return m.srcIndex[linear] }

// DstNode returns the rank that pulls site linear's value.
func (m *Map) DstNode(linear int) int { return m.dstNode[linear] }

// OffNode reports whether any traffic crosses nodes.
func (m *Map) OffNode() bool { return m.offNode }

// SrcNodes returns the ranks this node receives from, itself first and
// the rest in order of first appearance over the site scan. The slice is
// shared with the Map; callers must not modify it.
func (m *Map) SrcNodes() []int { return m.srcNodes }

// DstNodes returns the ranks this node sends to, ordered like SrcNodes.
// The slice is shared with the Map; callers must not modify it.
func (m *Map) DstNodes() []int { return m.dstNodes }

// SendSites returns the local sites whose values go to node, in the
// order the receiver unpacks them. The slice is shared with the Map;
// callers must not modify it.
func (m *Map) SendSites(node int) []int { return m.sendSites[node] }

// RecvSites returns the local sites filled from node, ascending. The
// slice is shared with the Map; callers must not modify it.
func (m *Map) RecvSites(node int) []int { return m.recvSites[node] }

// CheckInverses verifies over the whole lattice that the two orientations
// of perm invert each other. It is an O(volume) diagnostic for setup
// paths and tests, not a build-time requirement.
func CheckInverses(g *layout.Grid, perm PermFunc) error {
	extent := g.GlobalExtent()
	for site := 0; site < g.Volume(); site++ {
		coord := layout.CoordOf(site, extent)
		fwd, err := permImage(perm, coord, +1, extent)
		if err != nil {
			return err
		}
		back, err := permImage(perm, fwd, -1, extent)
		if err != nil {
			return err
		}
		if !slices.Equal(back, coord) {
			return fmt.Errorf("stencil: backward of forward of %v is %v: %w", coord, back, ErrPermInverse)
		}
		bwd, err := permImage(perm, coord, -1, extent)
		if err != nil {
			return err
		}
		fore, err := permImage(perm, bwd, +1, extent)
		if err != nil {
			return err
		}
		if !slices.Equal(fore, coord) {
			return fmt.Errorf("stencil: forward of backward of %v is %v: %w", coord, fore, ErrPermInverse)
		}
	}
	return nil
}

// permImage applies one orientation of perm to a private copy of coord
// and validates the image stays on the lattice.
func permImage(perm PermFunc, coord []int, sign int, extent []int) ([]int, error) {
	img := perm(slices.Clone(coord), sign)
	if len(img) != len(extent) {
		return nil, fmt.Errorf("stencil: permutation of %v gave %d coordinates on a %d-dim lattice: %w",
			coord, len(img), len(extent), ErrPermRange)
	}
	for i, x := range img {
		if x < 0 || x >= extent[i] {
			return nil, fmt.Errorf("stencil: permutation sent %v to %v, off the lattice: %w",
				coord, img, ErrPermRange)
		}
	}
	return img, nil
}

// partnerList returns the unique entries of a per-site node table, me
// first and the rest in order of first appearance.
func partnerList(nodes []int, me int) []int {
	list := []int{me}
	seen := map[int]bool{me: true}
	for _, n := range nodes {
		if !seen[n] {
			seen[n] = true
			list = append(list, n)
		}
	}
	return list
}
