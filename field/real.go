// Package field provides per-site data over a grid and the shift
// operations that move it: locally through neighbor tables, across nodes
// through a communication channel.
package field

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/latgrid/layout"
	"github.com/notargets/latgrid/subset"
)

// Real is one float64 per local site of a grid, stored in linear site
// order.
type Real struct {
	grid *layout.Grid
	data []float64
}

// NewReal allocates a zeroed field over g.
func NewReal(g *layout.Grid) *Real {
	if g == nil {
		panic("field: nil grid")
	}
	return &Real{grid: g, data: make([]float64, g.SubgridVolume())}
}

// Coordinate returns a field holding component mu of every site's global
// coordinate.
func Coordinate(g *layout.Grid, mu int) *Real {
	if mu < 0 || mu >= g.NumDims() {
		panic(fmt.Sprintf("field: axis %d out of range on a %d-dim lattice", mu, g.NumDims()))
	}
	f := NewReal(g)
	for i := range f.data {
		f.data[i] = float64(g.SiteCoords(i)[mu])
	}
	return f
}

// Grid returns the grid the field lives on.
func (f *Real) Grid() *layout.Grid { return f.grid }

// Data returns the backing store in linear site order; writes through it
// are writes to the field.
func (f *Real) Data() []float64 { return f.data }

// At returns the value at a local site.
func (f *Real) At(i int) float64 { return f.data[i] }

// Set assigns the value at a local site.
func (f *Real) Set(i int, v float64) { f.data[i] = v }

// Clone returns an independent copy of the field.
func (f *Real) Clone() *Real {
	out := NewReal(f.grid)
	copy(out.data, f.data)
	return out
}

// Fill sets every site to v.
func (f *Real) Fill(v float64) {
	for i := range f.data {
		f.data[i] = v
	}
}

// FillOn sets the sites of one subset to v.
func (f *Real) FillOn(sub *subset.Subset, v float64) {
	for _, site := range sub.Sites() {
		f.data[site] = v
	}
}

// Add accumulates g into f site-wise.
func (f *Real) Add(g *Real) {
	f.checkSame(g)
	floats.Add(f.data, g.data)
}

// Sub subtracts g from f site-wise.
func (f *Real) Sub(g *Real) {
	f.checkSame(g)
	floats.Sub(f.data, g.data)
}

// Scale multiplies every site by a.
func (f *Real) Scale(a float64) {
	floats.Scale(a, f.data)
}

// Dot returns the inner product with g over this node's sites.
func (f *Real) Dot(g *Real) float64 {
	f.checkSame(g)
	return floats.Dot(f.data, g.data)
}

// Norm returns the Euclidean norm over this node's sites.
func (f *Real) Norm() float64 {
	return floats.Norm(f.data, 2)
}

// Sum returns the sum over this node's sites.
func (f *Real) Sum() float64 {
	return floats.Sum(f.data)
}

func (f *Real) checkSame(g *Real) {
	if f.grid != g.grid {
		panic("field: fields live on different grids")
	}
}
