package tensor

import "fmt"

// Unknown marks a dimension whose size is not known yet (e.g. the batch
// dimension of a symbolic input shape).
const Unknown = -1

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("%w: dimension at index %d is %d (must be > 0)", ErrInvalidShape, i, dim)
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
	if s == nil {
		return nil
	}
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Last returns the trailing dimension, or Unknown for a scalar shape.
func (s Shape) Last() int {
	if len(s) == 0 {
		return Unknown
	}
	return s[len(s)-1]
}

// IsFullyDefined reports whether every dimension is known and positive.
func (s Shape) IsFullyDefined() bool {
	for _, dim := range s {
		if dim <= 0 {
			return false
		}
	}
	return true
}

// WithLast returns a copy of s with the trailing dimension replaced by dim.
func (s Shape) WithLast(dim int) Shape {
	out := s.Clone()
	if len(out) > 0 {
		out[len(out)-1] = dim
	}
	return out
}

// String formats the shape the way Python tuples print, with unknown
// dimensions shown as None.
func (s Shape) String() string {
	buf := make([]byte, 0, 4*len(s)+2)
	buf = append(buf, '(')
	for i, dim := range s {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		if dim == Unknown {
			buf = append(buf, "None"...)
		} else {
			buf = fmt.Appendf(buf, "%d", dim)
		}
	}
	if len(s) == 1 {
		buf = append(buf, ',')
	}
	buf = append(buf, ')')
	return string(buf)
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Rules:
// 1. Compare shapes element-wise from right to left
// 2. Dimensions are compatible if:
//   - They are equal, OR
//   - One of them is 1
//
// 3. Missing dimensions are treated as 1
//
// Returns the broadcasted shape, a flag indicating if broadcasting is needed, and an error if incompatible.
//
// Examples:
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(1, 5) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → nil, false, Error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := len(a) != len(b)

	for i := 0; i < maxLen; i++ {
		aIdx := len(a) - 1 - i
		bIdx := len(b) - 1 - i

		aDim := 1
		if aIdx >= 0 {
			aDim = a[aIdx]
		}

		bDim := 1
		if bIdx >= 0 {
			bDim = b[bIdx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, fmt.Errorf("%w: shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				ErrShapeMismatch, a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}
