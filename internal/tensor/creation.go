package tensor

import "fmt"

// New allocates a zero-filled tensor with the given dimensions.
func New(dims ...int) (*Tensor, error) {
	shape := Shape(dims).Clone()
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Tensor{
		data:  make([]float64, shape.NumElements()),
		shape: shape,
	}, nil
}

// Zeros creates a zero-filled tensor. It panics on an invalid shape and is
// meant for shapes already validated by the caller.
func Zeros(shape Shape) *Tensor {
	t, err := New(shape...)
	if err != nil {
		panic(err)
	}
	return t
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Scalar creates a rank-0 tensor.
func Scalar(value float64) *Tensor {
	return &Tensor{data: []float64{value}, shape: Shape{}}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("%w: shape %v requires %d elements, but got %d",
			ErrShapeMismatch, shape, shape.NumElements(), len(data))
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	return &Tensor{data: buf, shape: shape.Clone()}, nil
}

// Vector creates a rank-1 tensor from values.
func Vector(values ...float64) *Tensor {
	buf := make([]float64, len(values))
	copy(buf, values)
	return &Tensor{data: buf, shape: Shape{len(values)}}
}

// FromRows creates a rank-2 tensor from equally sized rows.
func FromRows(rows [][]float64) (*Tensor, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidShape)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), cols)
		}
		data = append(data, row...)
	}
	return FromSlice(data, Shape{len(rows), cols})
}
