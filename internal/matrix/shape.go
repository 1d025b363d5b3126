package matrix

import "fmt"

// MajorOrder is the memory layout of a freshly allocated matrix.
type MajorOrder int

// Layouts.
const (
	RowMajor MajorOrder = iota // last dimension varies fastest
	ColMajor                   // first dimension varies fastest
)

// String returns the serialized layout name.
func (o MajorOrder) String() string {
	if o == ColMajor {
		return "col_major"
	}
	return "row_major"
}

// Flip returns the other layout.
func (o MajorOrder) Flip() MajorOrder {
	if o == ColMajor {
		return RowMajor
	}
	return ColMajor
}

// Shape represents the dimensions of a matrix.
type Shape []int

// NumElements returns the product of the dimensions. A shape with a zero
// dimension has no elements.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that the shape has rank >= 1 and no negative dimension.
func (s Shape) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("matrix needs at least one dimension")
	}
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides returns the compact strides of the shape in the given order.
func (s Shape) ComputeStrides(order MajorOrder) []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}
	acc := 1
	if order == ColMajor {
		for i := range s {
			strides[i] = acc
			acc *= max(s[i], 1)
		}
		return strides
	}
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= max(s[i], 1)
	}
	return strides
}
