package field

import (
	"fmt"

	"github.com/notargets/latgrid/comm"
	"github.com/notargets/latgrid/layout"
	"github.com/notargets/latgrid/stencil"
	"github.com/notargets/latgrid/utils"
)

// Shift returns the field stepped along an axis: the result at each site
// is f's value one site over in the direction of sign, with periodic
// wraparound. When the node grid spans the axis the wrapping face
// arrives from the neighboring node through one paired exchange;
// otherwise no communication happens.
func Shift(f *Real, ch *comm.Channel, nm *stencil.NeighborMap, axis, sign int) (*Real, error) {
	g := f.grid
	if ch == nil {
		panic("field: nil channel")
	}
	if nm.Grid() != g {
		panic("field: neighbor map built over a different grid")
	}
	if axis < 0 || axis >= g.NumDims() {
		panic(fmt.Sprintf("field: axis %d out of range on a %d-dim lattice", axis, g.NumDims()))
	}
	s := 1
	dir := stencil.Forward
	if sign < 0 {
		s = -1
		dir = stencil.Backward
	}

	// Every site first takes its neighbor's slot from the table. Slots
	// fed from the adjacent node come out wrong here and are overwritten
	// with the received face below.
	out := NewReal(g)
	for x := range out.data {
		out.data[x] = f.data[nm.Neighbor(axis, dir, x)]
	}
	if g.NodeGrid()[axis] == 1 {
		return out, nil
	}

	// The face whose neighbors live s steps over refills from there; the
	// opposite face feeds the neighbor the other way. Both ends pack in
	// ascending site order.
	sub := g.SubgridExtent()
	sendAt, recvAt := 0, sub[axis]-1
	if s < 0 {
		sendAt, recvAt = recvAt, sendAt
	}
	var sendSites, recvSites []int
	for i := 0; i < g.SubgridVolume(); i++ {
		c := layout.CoordOf(i, sub)
		if c[axis] == sendAt {
			sendSites = append(sendSites, i)
		}
		if c[axis] == recvAt {
			recvSites = append(recvSites, i)
		}
	}
	sendBuf := make([]float64, len(sendSites))
	for k, site := range sendSites {
		sendBuf[k] = f.data[site]
	}
	recvRaw := make([]byte, 8*len(recvSites))
	if err := ch.SendRecv(utils.Float64Bytes(sendBuf), recvRaw, axis, s); err != nil {
		return nil, fmt.Errorf("field: shifting along axis %d: %w", axis, err)
	}
	for k, v := range utils.BytesFloat64(recvRaw) {
		out.data[recvSites[k]] = v
	}
	return out, nil
}

// Permute returns the field rearranged under a permutation map: the
// result at each site is f's value at the site the map reads. Local
// values copy directly; cross-node values move through per-partner
// transfers in the map's schedule order, sends before receives.
func Permute(f *Real, ch *comm.Channel, m *stencil.Map) (*Real, error) {
	g := f.grid
	if ch == nil {
		panic("field: nil channel")
	}
	if m.Grid() != g {
		panic("field: map built over a different grid")
	}
	me := g.NodeNumber()

	out := NewReal(g)
	for _, x := range m.RecvSites(me) {
		out.data[x] = f.data[m.SrcIndex(x)]
	}
	if !m.OffNode() {
		return out, nil
	}

	for _, d := range m.DstNodes() {
		if d == me {
			continue
		}
		sites := m.SendSites(d)
		buf := make([]float64, len(sites))
		for k, site := range sites {
			buf[k] = f.data[site]
		}
		if err := ch.SendTo(d, utils.Float64Bytes(buf)); err != nil {
			return nil, fmt.Errorf("field: sending %d sites to node %d: %w", len(sites), d, err)
		}
	}
	for _, src := range m.SrcNodes() {
		if src == me {
			continue
		}
		sites := m.RecvSites(src)
		raw := make([]byte, 8*len(sites))
		if err := ch.RecvFrom(src, raw); err != nil {
			return nil, fmt.Errorf("field: receiving %d sites from node %d: %w", len(sites), src, err)
		}
		for k, v := range utils.BytesFloat64(raw) {
			out.data[sites[k]] = v
		}
	}
	return out, nil
}
