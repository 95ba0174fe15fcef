package stencil

import (
	"errors"
	"slices"
	"testing"

	"github.com/notargets/latgrid/layout"
	"github.com/notargets/latgrid/transport"
)

// translate steps a coordinate dist sites along axis, periodically.
func translate(extent []int, axis, dist int) PermFunc {
	return func(coord []int, sign int) []int {
		e := extent[axis]
		coord[axis] = ((coord[axis]+sign*dist)%e + e) % e
		return coord
	}
}

func TestMapIdentity(t *testing.T) {
	g := singleNodeGrid(t, []int{4, 4})
	mp, err := NewMap(g, func(coord []int, sign int) []int { return coord })
	if err != nil {
		t.Fatal(err)
	}
	if mp.OffNode() {
		t.Error("identity map reports off-node traffic")
	}
	if got := mp.SrcNodes(); !slices.Equal(got, []int{0}) {
		t.Errorf("SrcNodes = %v, want [0]", got)
	}
	for x := 0; x < g.SubgridVolume(); x++ {
		if mp.SrcNode(x) != 0 || mp.SrcIndex(x) != x {
			t.Fatalf("site %d reads node %d site %d", x, mp.SrcNode(x), mp.SrcIndex(x))
		}
	}
}

func TestMapTranslationTwoNodes(t *testing.T) {
	g, err := layout.Create(transport.NewMesh(2).Node(0), []int{8})
	if err != nil {
		t.Fatal(err)
	}
	mp, err := NewMap(g, translate([]int{8}, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if !mp.OffNode() {
		t.Error("cross-block translation reports no off-node traffic")
	}
	wantSrcNode := []int{0, 0, 0, 1}
	wantSrcIndex := []int{1, 2, 3, 0}
	wantDstNode := []int{1, 0, 0, 0}
	for x := 0; x < 4; x++ {
		if mp.SrcNode(x) != wantSrcNode[x] {
			t.Errorf("SrcNode(%d) = %d, want %d", x, mp.SrcNode(x), wantSrcNode[x])
		}
		if mp.SrcIndex(x) != wantSrcIndex[x] {
			t.Errorf("SrcIndex(%d) = %d, want %d", x, mp.SrcIndex(x), wantSrcIndex[x])
		}
		if mp.DstNode(x) != wantDstNode[x] {
			t.Errorf("DstNode(%d) = %d, want %d", x, mp.DstNode(x), wantDstNode[x])
		}
	}
	if got := mp.SrcNodes(); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("SrcNodes = %v, want [0 1]", got)
	}
	if got := mp.DstNodes(); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("DstNodes = %v, want [0 1]", got)
	}
	if got := mp.RecvSites(1); !slices.Equal(got, []int{3}) {
		t.Errorf("RecvSites(1) = %v, want [3]", got)
	}
	if got := mp.SendSites(1); !slices.Equal(got, []int{0}) {
		t.Errorf("SendSites(1) = %v, want [0]", got)
	}
	if got := mp.RecvSites(0); !slices.Equal(got, []int{0, 1, 2}) {
		t.Errorf("RecvSites(0) = %v, want [0 1 2]", got)
	}
	if got := mp.SendSites(0); !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("SendSites(0) = %v, want [1 2 3]", got)
	}
}

func TestMapSchedulesAgreeAcrossNodes(t *testing.T) {
	const nodes = 4
	extent := []int{4, 4}
	perm := translate(extent, 1, 1)
	mesh := transport.NewMesh(nodes)
	grids := make([]*layout.Grid, nodes)
	maps := make([]*Map, nodes)
	for r := 0; r < nodes; r++ {
		g, err := layout.Create(mesh.Node(r), extent)
		if err != nil {
			t.Fatal(err)
		}
		mp, err := NewMap(g, perm)
		if err != nil {
			t.Fatal(err)
		}
		grids[r], maps[r] = g, mp
	}
	if err := CheckInverses(grids[0], perm); err != nil {
		t.Fatal(err)
	}

	// Every global site is read exactly once across all nodes.
	seen := make([]int, grids[0].Volume())
	for r := 0; r < nodes; r++ {
		for x := 0; x < grids[r].SubgridVolume(); x++ {
			src := grids[r].SiteCoordsOn(maps[r].SrcNode(x), maps[r].SrcIndex(x))
			seen[layout.IndexOf(src, extent)]++
		}
	}
	for site, n := range seen {
		if n != 1 {
			t.Fatalf("global site %d read %d times", site, n)
		}
	}

	// A sender's schedule lines up entry for entry with the matching
	// receiver's: same length, and the k-th packed site is exactly the
	// source the receiver expects in its k-th slot.
	for r := 0; r < nodes; r++ {
		for _, d := range maps[r].DstNodes() {
			send := maps[r].SendSites(d)
			recv := maps[d].RecvSites(r)
			if len(send) != len(recv) {
				t.Fatalf("%d->%d: send %d sites, receive %d", r, d, len(send), len(recv))
			}
			for k := range send {
				x := recv[k]
				if maps[d].SrcNode(x) != r || maps[d].SrcIndex(x) != send[k] {
					t.Fatalf("%d->%d slot %d: sender packs site %d, receiver expects node %d site %d",
						r, d, k, send[k], maps[d].SrcNode(x), maps[d].SrcIndex(x))
				}
			}
		}
	}
}

func TestMapSelfInverseSwap(t *testing.T) {
	g := singleNodeGrid(t, []int{4, 4})
	swap := func(coord []int, sign int) []int {
		coord[0] ^= 1
		return coord
	}
	if err := CheckInverses(g, swap); err != nil {
		t.Fatal(err)
	}
	mp, err := NewMap(g, swap)
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < g.SubgridVolume(); x++ {
		if got := mp.SrcIndex(mp.SrcIndex(x)); got != x {
			t.Fatalf("swap applied twice moved site %d to %d", x, got)
		}
	}
}

func TestMapPermRange(t *testing.T) {
	g := singleNodeGrid(t, []int{4})
	cases := []struct {
		name string
		perm PermFunc
	}{
		{name: "escapes the extent", perm: func(coord []int, sign int) []int {
			coord[0] += 10
			return coord
		}},
		{name: "wrong dimension", perm: func(coord []int, sign int) []int {
			return append(coord, 0)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewMap(g, tc.perm); !errors.Is(err, ErrPermRange) {
				t.Fatalf("err = %v, want ErrPermRange", err)
			}
		})
	}
}

func TestCheckInversesRejectsOneWayShift(t *testing.T) {
	g := singleNodeGrid(t, []int{4})
	oneWay := func(coord []int, sign int) []int {
		coord[0] = (coord[0] + 1) % 4
		return coord
	}
	if err := CheckInverses(g, oneWay); !errors.Is(err, ErrPermInverse) {
		t.Fatalf("err = %v, want ErrPermInverse", err)
	}
}
