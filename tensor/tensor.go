// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/cbfd/internal/tensor"
)

// Tensor is a dense, row-major float64 N-d array.
type Tensor = tensor.Tensor

// Shape represents the dimensions of a tensor.
// Example: Shape{Unknown, 4} is a batch of 4-dimensional samples.
type Shape = tensor.Shape

// Unknown marks a dimension whose size is not known yet.
const Unknown = tensor.Unknown

// Common errors.
var (
	ErrShapeMismatch = tensor.ErrShapeMismatch
	ErrInvalidShape  = tensor.ErrInvalidShape
)

// New creates a zero tensor with the given dimensions.
func New(dims ...int) (*Tensor, error) {
	return tensor.New(dims...)
}

// Zeros creates a tensor filled with zeros. It panics on an invalid shape.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	return tensor.Full(shape, value)
}

// Scalar creates a rank-0 tensor.
func Scalar(value float64) *Tensor {
	return tensor.Scalar(value)
}

// Vector creates a rank-1 tensor holding values.
func Vector(values ...float64) *Tensor {
	return tensor.Vector(values...)
}

// FromSlice wraps data in a tensor of the given shape.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// FromRows creates a rank-2 tensor from equally sized rows.
func FromRows(rows [][]float64) (*Tensor, error) {
	return tensor.FromRows(rows)
}

// MatMul contracts the last axis of a with the first axis of the rank-2 w.
func MatMul(a, w *Tensor) (*Tensor, error) {
	return tensor.MatMul(a, w)
}

// BroadcastShapes returns the broadcast shape of a and b.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
