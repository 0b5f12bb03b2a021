package nn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/born-ml/cbfd/internal/serialization"
	"github.com/born-ml/cbfd/internal/tensor"
)

// LayerTypeCBFD is the layer_type recorded in .cbfd headers.
const LayerTypeCBFD = "CBFD"

// Tensor names of the stored references.
const (
	refMW = "m_w"
	refMB = "m_b"
)

// SaveOptions controls what SaveCBFD stores besides config and kernel.
type SaveOptions struct {
	// IncludeReferences stores m_w and m_b as tensors, so LoadCBFD can
	// rebuild the layer without the caller resupplying them.
	IncludeReferences bool

	// Metadata is copied into the file header.
	Metadata map[string]string
}

// SaveCBFD writes the layer configuration and weights to a .cbfd file.
//
// Example:
//
//	err := nn.SaveCBFD("layer.cbfd", layer, nn.SaveOptions{IncludeReferences: true})
//	restored, err := nn.LoadCBFD("layer.cbfd", nil, nil)
func SaveCBFD(path string, layer *CBFD, opts SaveOptions) error {
	w, err := serialization.NewWriter(path)
	if err != nil {
		return err
	}
	if err := writeCBFD(w.WriteStateDict, layer, opts); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// EncodeCBFD writes the .cbfd image of layer to out.
func EncodeCBFD(out io.Writer, layer *CBFD, opts SaveOptions) error {
	return writeCBFD(func(state map[string]*tensor.Tensor, h serialization.Header) error {
		return serialization.Encode(out, state, h)
	}, layer, opts)
}

func writeCBFD(write func(map[string]*tensor.Tensor, serialization.Header) error, layer *CBFD, opts SaveOptions) error {
	cfg, err := json.Marshal(layer.Config())
	if err != nil {
		return fmt.Errorf("marshal %s config: %w", layer.Name(), err)
	}

	state := layer.StateDict()
	if opts.IncludeReferences {
		state[refMW] = layer.MW()
		state[refMB] = layer.MB()
	}

	return write(state, serialization.Header{
		LayerType:  LayerTypeCBFD,
		Config:     cfg,
		References: opts.IncludeReferences,
		Metadata:   opts.Metadata,
	})
}

// LoadCBFD restores a layer written by SaveCBFD.
//
// mw and mb override the stored references; pass nil to use the ones in
// the file. Loading fails with ErrInvalidConfig when neither is available.
func LoadCBFD(path string, mw, mb *tensor.Tensor) (*CBFD, error) {
	r, err := serialization.NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadCBFD(r, mw, mb)
}

// DecodeCBFD restores a layer from an in-memory .cbfd image.
func DecodeCBFD(data []byte, mw, mb *tensor.Tensor) (*CBFD, error) {
	r, err := serialization.Decode(bytes.Clone(data), serialization.ReaderOptions{})
	if err != nil {
		return nil, err
	}
	return ReadCBFD(r, mw, mb)
}

// ReadCBFD restores a layer from an open reader.
func ReadCBFD(r *serialization.Reader, mw, mb *tensor.Tensor) (*CBFD, error) {
	h := r.Header()
	if h.LayerType != LayerTypeCBFD {
		return nil, fmt.Errorf("%w: file holds a %q layer", ErrInvalidConfig, h.LayerType)
	}
	cfg, err := ParseConfigJSON(h.Config)
	if err != nil {
		return nil, err
	}

	state, err := r.ReadStateDict()
	if err != nil {
		return nil, err
	}
	if mw == nil {
		mw = state[refMW]
	}
	if mb == nil {
		mb = state[refMB]
	}
	if mw == nil || mb == nil {
		return nil, fmt.Errorf("%w: m_w and m_b are not stored in the file and must be supplied", ErrInvalidConfig)
	}
	delete(state, refMW)
	delete(state, refMB)

	layer, err := FromConfig(cfg, mw, mb)
	if err != nil {
		return nil, err
	}
	if len(state) > 0 {
		if err := layer.LoadStateDict(state); err != nil {
			return nil, err
		}
	}
	return layer, nil
}
