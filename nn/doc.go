// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the CBFD layer and the host-side building blocks it
// plugs into.
//
// # Overview
//
// This package contains:
//   - CBFD: projects inputs, binarizes them into codes and returns an
//     auxiliary class-separation loss
//   - Dense: fully connected layer for feeding CBFD from a model
//   - Sequential: chains layers and collects auxiliary, activity and
//     kernel losses
//   - Strategies: activations, initializers, regularizers and
//     constraints, resolvable by name or Identifier
//   - Persistence: Config records (JSON/YAML) and .cbfd weight files
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/cbfd/nn"
//	    "github.com/born-ml/cbfd/tensor"
//	)
//
//	func main() {
//	    layer, err := nn.NewCBFD(8, tensor.Vector(0.2), tensor.Vector(0.8),
//	        nn.WithActivation("tanh"),
//	        nn.WithInputShape(16),
//	    )
//
//	    // b holds codes in {0.5, 1, 1.5}; loss has the same shape.
//	    b, loss, err := layer.Forward(x)
//	}
//
// # Losses
//
// Forward returns the auxiliary loss explicitly. Inside a Sequential the
// losses of every layer are gathered into a Losses value:
//
//	model := nn.NewSequential(dense, codes)
//	out, losses, err := model.Forward(x)
//	total := losses.Total()
//
// # Persistence
//
// Config exports a layer's construction arguments; FromConfig rebuilds it
// given the m_w and m_b references. SaveCBFD and LoadCBFD store config
// and weights together in a checksummed .cbfd file:
//
//	err := nn.SaveCBFD("codes.cbfd", layer, nn.SaveOptions{IncludeReferences: true})
//	restored, err := nn.LoadCBFD("codes.cbfd", nil, nil)
package nn
