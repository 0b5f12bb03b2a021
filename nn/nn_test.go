// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cbfd/nn"
	"github.com/born-ml/cbfd/tensor"
)

// TestLayerInterface verifies that concrete types implement Layer.
func TestLayerInterface(_ *testing.T) {
	var _ nn.Layer = (*nn.CBFD)(nil)
	var _ nn.Layer = (*nn.Dense)(nil)
}

func TestCBFD_PublicAPI(t *testing.T) {
	layer, err := nn.NewCBFD(2, tensor.Vector(0, 0), tensor.Vector(1, 1),
		nn.WithKernelInitializer(nn.Identity{Gain: 1}),
	)
	require.NoError(t, err)

	x, err := tensor.FromRows([][]float64{{1, -1}})
	require.NoError(t, err)
	b, loss, err := layer.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 0.5}, b.Data())
	assert.Equal(t, []float64{-2248999, -248999}, loss.Data())
}

func TestSequential_PublicAPI(t *testing.T) {
	dense, err := nn.NewDense(4, nn.WithActivation("tanh"), nn.WithInputShape(3), nn.WithSeed(1))
	require.NoError(t, err)
	codes, err := nn.NewCBFD(2, tensor.Scalar(0.1), tensor.Scalar(0.9),
		nn.WithKernelRegularizer(nn.L2(0.01)),
		nn.WithSeed(2),
	)
	require.NoError(t, err)

	model := nn.NewSequential(dense, codes)
	x := tensor.Full(tensor.Shape{5, 3}, 0.3)
	out, losses, err := model.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{5, 2}, out.Shape())
	assert.Len(t, losses.Auxiliary, 1)
	assert.Len(t, losses.Kernel, 1)
}

func TestPersistence_PublicAPI(t *testing.T) {
	layer, err := nn.NewCBFD(3, tensor.Scalar(0), tensor.Scalar(1), nn.WithInputShape(4), nn.WithSeed(9))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, nn.EncodeCBFD(&buf, layer, nn.SaveOptions{IncludeReferences: true}))
	restored, err := nn.DecodeCBFD(buf.Bytes(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, layer.Kernel().Tensor().Data(), restored.Kernel().Tensor().Data())

	cfg, err := nn.ParseConfigYAML([]byte("units: 3\nactivation: sigmoid\n"))
	require.NoError(t, err)
	fresh, err := nn.FromConfig(cfg, tensor.Scalar(0), tensor.Scalar(1))
	require.NoError(t, err)
	assert.Equal(t, "sigmoid", fresh.Activation().Name())
	assert.False(t, fresh.Built())
}
