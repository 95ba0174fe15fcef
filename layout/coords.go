package layout

// IndexOf linearizes a coordinate against an extent in row-major order
// with axis 0 varying fastest. It is the inverse of CoordOf.
func IndexOf(coord, extent []int) int {
	order := 0
	for i := len(extent) - 1; i >= 0; i-- {
		order = order*extent[i] + coord[i]
	}
	return order
}

// CoordOf decodes a linear index into a coordinate against an extent,
// axis 0 varying fastest.
func CoordOf(index int, extent []int) []int {
	coord := make([]int, len(extent))
	for i, e := range extent {
		coord[i] = index % e
		index /= e
	}
	return coord
}

// Volume returns the site count of an extent.
func Volume(extent []int) int {
	v := 1
	for _, e := range extent {
		v *= e
	}
	return v
}
