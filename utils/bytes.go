// Package utils holds small helpers shared by the runtime packages.
package utils

import "unsafe"

// Float64Bytes reinterprets a float64 slice as its backing bytes in
// native order, without copying. The view aliases v and is valid for as
// long as v is.
func Float64Bytes(v []float64) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), 8*len(v))
}

// BytesFloat64 reinterprets a byte slice as the float64s it backs, in
// native order and without copying. The length must be a multiple of 8.
func BytesFloat64(b []byte) []float64 {
	if len(b) == 0 {
		return nil
	}
	if len(b)%8 != 0 {
		panic("utils: byte length not a multiple of 8")
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&b[0])), len(b)/8)
}
