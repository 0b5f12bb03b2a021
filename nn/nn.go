// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/cbfd/internal/nn"
	"github.com/born-ml/cbfd/internal/tensor"
)

// Common errors.
var (
	ErrInvalidConfig   = nn.ErrInvalidConfig
	ErrShape           = nn.ErrShape
	ErrUnknownStrategy = nn.ErrUnknownStrategy
	ErrNotBuilt        = nn.ErrNotBuilt
)

// Layer is the contract every layer exposes to its host.
type Layer = nn.Layer

// Parameter is a named weight with its regularizer and constraint.
type Parameter = nn.Parameter

// NewParameter creates a trainable parameter with the given name and tensor.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Layers

// CBFD is the binarizing projection layer.
type CBFD = nn.CBFD

// NewCBFD creates a CBFD layer with the given number of code units.
//
// mw and mb are the within-class and between-class references. Each is a
// scalar or an array whose leading dimensions are 1 and whose last
// dimension is 1 or units.
//
// Example:
//
//	layer, err := nn.NewCBFD(4, tensor.Vector(0), tensor.Vector(1), nn.WithSeed(7))
func NewCBFD(units int, mw, mb *tensor.Tensor, opts ...Option) (*CBFD, error) {
	return nn.NewCBFD(units, mw, mb, opts...)
}

// Dense is a fully connected layer: act(x·W + b).
type Dense = nn.Dense

// NewDense creates a dense layer with the given number of output units.
//
// Example:
//
//	dense, err := nn.NewDense(32, nn.WithActivation("relu"), nn.WithInputShape(784))
func NewDense(units int, opts ...Option) (*Dense, error) {
	return nn.NewDense(units, opts...)
}

// Containers

// Sequential chains layers and collects their losses.
type Sequential = nn.Sequential

// Losses groups the losses gathered by Sequential.Forward.
type Losses = nn.Losses

// NewSequential creates a sequential container of layers.
//
// Example:
//
//	model := nn.NewSequential(dense, codes)
func NewSequential(layers ...Layer) *Sequential {
	return nn.NewSequential(layers...)
}

// Options

// Option configures a layer at construction.
type Option = nn.Option

// WithActivation sets the activation applied before binarization.
func WithActivation(id any) Option { return nn.WithActivation(id) }

// WithKernelInitializer sets how the kernel is filled at build time.
func WithKernelInitializer(id any) Option { return nn.WithKernelInitializer(id) }

// WithKernelRegularizer attaches a regularizer to the kernel.
func WithKernelRegularizer(id any) Option { return nn.WithKernelRegularizer(id) }

// WithActivityRegularizer sets a regularizer applied to the layer output.
func WithActivityRegularizer(id any) Option { return nn.WithActivityRegularizer(id) }

// WithKernelConstraint attaches a constraint to the kernel.
func WithKernelConstraint(id any) Option { return nn.WithKernelConstraint(id) }

// WithUseBias toggles the bias vector of layers that have one.
func WithUseBias(useBias bool) Option { return nn.WithUseBias(useBias) }

// WithName overrides the generated layer name.
func WithName(name string) Option { return nn.WithName(name) }

// WithTrainable marks the layer weights as trainable or frozen.
func WithTrainable(trainable bool) Option { return nn.WithTrainable(trainable) }

// WithInputShape declares the per-sample input shape and builds the layer.
func WithInputShape(dims ...int) Option { return nn.WithInputShape(dims...) }

// WithBatchInputShape declares the full input shape and builds the layer.
func WithBatchInputShape(dims ...int) Option { return nn.WithBatchInputShape(dims...) }

// WithInputDim is the legacy spelling of WithInputShape(n).
func WithInputDim(n int) Option { return nn.WithInputDim(n) }

// WithSeed makes kernel initialization reproducible.
func WithSeed(seed uint64) Option { return nn.WithSeed(seed) }
