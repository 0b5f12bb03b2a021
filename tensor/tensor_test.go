// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cbfd/tensor"
)

func TestPublicAPI(t *testing.T) {
	x, err := tensor.FromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)

	z, err := tensor.MatMul(x, tensor.Full(tensor.Shape{2, 3}, 1))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, z.Shape())
	assert.Equal(t, []float64{3, 3, 3, 7, 7, 7}, z.Data())

	_, err = tensor.MatMul(x, tensor.Zeros(tensor.Shape{3, 1}))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	shape, _, err := tensor.BroadcastShapes(tensor.Shape{2, 1}, tensor.Shape{3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, shape)
}
