// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"io"

	"github.com/born-ml/cbfd/internal/nn"
	"github.com/born-ml/cbfd/internal/tensor"
)

// Config is the serializable configuration of a CBFD layer.
type Config = nn.Config

// DType is the element type CBFD layers compute in.
const DType = nn.DType

// LayerTypeCBFD is the layer type recorded in .cbfd files.
const LayerTypeCBFD = nn.LayerTypeCBFD

// SaveOptions controls what SaveCBFD stores besides config and kernel.
type SaveOptions = nn.SaveOptions

// DefaultConfig returns the configuration a new layer starts from.
func DefaultConfig() Config { return nn.DefaultConfig() }

// FromConfig rebuilds a layer from its configuration and references.
func FromConfig(cfg Config, mw, mb *tensor.Tensor) (*CBFD, error) {
	return nn.FromConfig(cfg, mw, mb)
}

// ParseConfigJSON decodes a JSON configuration on top of DefaultConfig.
func ParseConfigJSON(data []byte) (Config, error) { return nn.ParseConfigJSON(data) }

// ParseConfigYAML decodes a YAML configuration on top of DefaultConfig.
func ParseConfigYAML(data []byte) (Config, error) { return nn.ParseConfigYAML(data) }

// SaveCBFD writes the layer configuration and weights to a .cbfd file.
func SaveCBFD(path string, layer *CBFD, opts SaveOptions) error {
	return nn.SaveCBFD(path, layer, opts)
}

// EncodeCBFD writes the .cbfd image of layer to out.
func EncodeCBFD(out io.Writer, layer *CBFD, opts SaveOptions) error {
	return nn.EncodeCBFD(out, layer, opts)
}

// LoadCBFD restores a layer written by SaveCBFD. Nil references fall back
// to the ones stored in the file.
func LoadCBFD(path string, mw, mb *tensor.Tensor) (*CBFD, error) {
	return nn.LoadCBFD(path, mw, mb)
}

// DecodeCBFD restores a layer from an in-memory .cbfd image.
func DecodeCBFD(data []byte, mw, mb *tensor.Tensor) (*CBFD, error) {
	return nn.DecodeCBFD(data, mw, mb)
}
