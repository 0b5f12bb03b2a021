// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API of the dense float64 tensors
// CBFD layers consume and produce.
//
// Tensors are row-major N-d arrays. Shapes may carry Unknown dimensions
// while describing layer inputs (typically the batch dimension), but a
// materialized tensor always has a fully defined shape.
//
// Example:
//
//	x, err := tensor.FromRows([][]float64{{1, -1}, {0.5, 2}})
//	w := tensor.Full(tensor.Shape{2, 3}, 0.1)
//	z, err := tensor.MatMul(x, w) // shape (2, 3)
package tensor
