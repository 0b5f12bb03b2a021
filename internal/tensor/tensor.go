// Package tensor provides the dense float64 tensor used by the CBFD layer.
//
// Tensors are row-major and own their backing slice. Operations never mutate
// their operands; every op returns a freshly allocated tensor.
package tensor

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrInvalidShape  = errors.New("invalid shape")
)

// Tensor is a dense, row-major, float64 N-d array.
//
// Example:
//
//	x, err := tensor.FromSlice([]float64{1, -1}, tensor.Shape{1, 2})
//	w := tensor.Zeros(tensor.Shape{2, 4})
//	z, err := tensor.MatMul(x, w) // shape (1, 4)
type Tensor struct {
	data  []float64
	shape Shape
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the backing slice. Writes through it modify the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{data: data, shape: t.shape.Clone()}
}

// Reshape returns a tensor sharing t's data with a new shape.
func (t *Tensor) Reshape(dims ...int) (*Tensor, error) {
	shape := Shape(dims)
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(t.data) {
		return nil, fmt.Errorf("%w: cannot reshape %v (%d elements) to %v",
			ErrShapeMismatch, t.shape, len(t.data), shape)
	}
	return &Tensor{data: t.data, shape: shape}, nil
}

// At returns the element at the given indices.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.offset(indices)]
}

// Set sets the element at the given indices.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.offset(indices)] = value
}

func (t *Tensor) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.shape), len(indices)))
	}
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of bounds for dimension %d (shape: %v)", indices[i], i, t.shape))
		}
		idx += indices[i] * stride
		stride *= t.shape[i]
	}
	return idx
}

// AllFinite reports whether no element is NaN or ±Inf.
func (t *Tensor) AllFinite() bool {
	for _, v := range t.data {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v%v", t.shape, t.data)
}
