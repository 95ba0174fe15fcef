package field

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/latgrid/comm"
	"github.com/notargets/latgrid/layout"
	"github.com/notargets/latgrid/stencil"
	"github.com/notargets/latgrid/transport"
)

func TestShiftSingleNode(t *testing.T) {
	tr := transport.NewMesh(1).Node(0)
	g, err := layout.Create(tr, []int{4})
	require.NoError(t, err)
	ch := comm.NewChannel(tr)
	nm := stencil.NewNeighborMap(g)

	f := Coordinate(g, 0)
	fwd, err := Shift(f, ch, nm, 0, +1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 0}, fwd.Data())

	bwd, err := Shift(f, ch, nm, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0, 1, 2}, bwd.Data())
}

func TestShiftAcrossNodes(t *testing.T) {
	err := transport.RunNodes(2, func(tr transport.Transport) error {
		g, err := layout.Create(tr, []int{8})
		if err != nil {
			return err
		}
		ch := comm.NewChannel(tr)
		nm := stencil.NewNeighborMap(g)
		f := Coordinate(g, 0)

		fwd, err := Shift(f, ch, nm, 0, +1)
		if err != nil {
			return err
		}
		for x := 0; x < g.SubgridVolume(); x++ {
			want := float64((g.SiteCoords(x)[0] + 1) % 8)
			if fwd.At(x) != want {
				return fmt.Errorf("node %d: fwd(%d) = %v, want %v", g.NodeNumber(), x, fwd.At(x), want)
			}
		}

		// Stepping back restores the field.
		back, err := Shift(fwd, ch, nm, 0, -1)
		if err != nil {
			return err
		}
		for x := 0; x < g.SubgridVolume(); x++ {
			if back.At(x) != f.At(x) {
				return fmt.Errorf("node %d: round trip moved site %d from %v to %v",
					g.NodeNumber(), x, f.At(x), back.At(x))
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestShiftTwoDim(t *testing.T) {
	err := transport.RunNodes(4, func(tr transport.Transport) error {
		g, err := layout.Create(tr, []int{4, 4})
		if err != nil {
			return err
		}
		ch := comm.NewChannel(tr)
		nm := stencil.NewNeighborMap(g)
		extent := g.GlobalExtent()

		for axis := 0; axis < 2; axis++ {
			for _, sign := range []int{+1, -1} {
				f := Coordinate(g, axis)
				shifted, err := Shift(f, ch, nm, axis, sign)
				if err != nil {
					return err
				}
				for x := 0; x < g.SubgridVolume(); x++ {
					c := g.SiteCoords(x)
					want := float64(((c[axis]+sign)%extent[axis] + extent[axis]) % extent[axis])
					if shifted.At(x) != want {
						return fmt.Errorf("node %d axis %d sign %+d: site %v = %v, want %v",
							g.NodeNumber(), axis, sign, c, shifted.At(x), want)
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPermuteMatchesShift(t *testing.T) {
	err := transport.RunNodes(2, func(tr transport.Transport) error {
		g, err := layout.Create(tr, []int{8})
		if err != nil {
			return err
		}
		ch := comm.NewChannel(tr)
		nm := stencil.NewNeighborMap(g)
		translate := func(coord []int, sign int) []int {
			coord[0] = ((coord[0]+sign)%8 + 8) % 8
			return coord
		}
		mp, err := stencil.NewMap(g, translate)
		if err != nil {
			return err
		}

		f := Coordinate(g, 0)
		bySchedule, err := Permute(f, ch, mp)
		if err != nil {
			return err
		}
		byFace, err := Shift(f, ch, nm, 0, +1)
		if err != nil {
			return err
		}
		for x := 0; x < g.SubgridVolume(); x++ {
			if bySchedule.At(x) != byFace.At(x) {
				return fmt.Errorf("node %d: permute(%d) = %v, shift = %v",
					g.NodeNumber(), x, bySchedule.At(x), byFace.At(x))
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPermuteLocalSwap(t *testing.T) {
	tr := transport.NewMesh(1).Node(0)
	g, err := layout.Create(tr, []int{4, 4})
	require.NoError(t, err)
	ch := comm.NewChannel(tr)
	swap := func(coord []int, sign int) []int {
		coord[0] ^= 1
		return coord
	}
	mp, err := stencil.NewMap(g, swap)
	require.NoError(t, err)

	f := Coordinate(g, 0)
	out, err := Permute(f, ch, mp)
	require.NoError(t, err)
	for x := 0; x < g.SubgridVolume(); x++ {
		c := g.SiteCoords(x)
		want := float64(c[0] ^ 1)
		assert.Equal(t, want, out.At(x), "site %v", c)
	}
}
