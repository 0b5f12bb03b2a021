package nn

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/cbfd/internal/tensor"
)

// DType is the only element type CBFD layers compute in.
const DType = "float64"

// Config is the serializable configuration of a CBFD layer.
//
// It does not include m_w and m_b: those are runtime references the caller
// resupplies to FromConfig (or stores alongside the weights, see SaveCBFD).
type Config struct {
	Name            string       `json:"name" yaml:"name"`
	Trainable       bool         `json:"trainable" yaml:"trainable"`
	DType           string       `json:"dtype" yaml:"dtype"`
	BatchInputShape tensor.Shape `json:"batch_input_shape,omitempty" yaml:"batch_input_shape,omitempty"`

	Units               int         `json:"units" yaml:"units"`
	Activation          string      `json:"activation" yaml:"activation"`
	KernelInitializer   *Identifier `json:"kernel_initializer" yaml:"kernel_initializer"`
	KernelRegularizer   *Identifier `json:"kernel_regularizer" yaml:"kernel_regularizer"`
	ActivityRegularizer *Identifier `json:"activity_regularizer" yaml:"activity_regularizer"`
	KernelConstraint    *Identifier `json:"kernel_constraint" yaml:"kernel_constraint"`
}

// DefaultConfig returns the configuration fields a new layer starts from.
// Decoding a partial document into it leaves the defaults in place. A nil
// KernelInitializer means "glorot_uniform".
func DefaultConfig() Config {
	return Config{
		Trainable:  true,
		DType:      DType,
		Activation: "linear",
	}
}

// Config exports the layer configuration.
func (c *CBFD) Config() Config {
	return Config{
		Name:                c.name,
		Trainable:           c.trainable,
		DType:               DType,
		BatchInputShape:     c.batchInputShape.Clone(),
		Units:               c.units,
		Activation:          SerializeActivation(c.activation),
		KernelInitializer:   SerializeInitializer(c.kernelInitializer),
		KernelRegularizer:   SerializeRegularizer(c.kernelRegularizer),
		ActivityRegularizer: SerializeRegularizer(c.activityRegularizer),
		KernelConstraint:    SerializeConstraint(c.kernelConstraint),
	}
}

// FromConfig reconstructs a layer from its configuration and the two
// reference arrays. Weights are not part of the configuration; load them
// with LoadStateDict.
func FromConfig(cfg Config, mw, mb *tensor.Tensor) (*CBFD, error) {
	switch cfg.DType {
	case "", DType, "float32":
	default:
		return nil, fmt.Errorf("%w: unsupported dtype %q", ErrInvalidConfig, cfg.DType)
	}

	opts := []Option{
		WithTrainable(cfg.Trainable),
		WithKernelRegularizer(cfg.KernelRegularizer),
		WithActivityRegularizer(cfg.ActivityRegularizer),
		WithKernelConstraint(cfg.KernelConstraint),
	}
	if cfg.Name != "" {
		opts = append(opts, WithName(cfg.Name))
	}
	if cfg.Activation != "" {
		opts = append(opts, WithActivation(cfg.Activation))
	}
	if cfg.KernelInitializer != nil {
		opts = append(opts, WithKernelInitializer(*cfg.KernelInitializer))
	}
	if cfg.BatchInputShape != nil {
		opts = append(opts, WithBatchInputShape(cfg.BatchInputShape...))
	}
	return NewCBFD(cfg.Units, mw, mb, opts...)
}

// ParseConfigJSON decodes a JSON configuration on top of DefaultConfig.
func ParseConfigJSON(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// ParseConfigYAML decodes a YAML configuration on top of DefaultConfig.
func ParseConfigYAML(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}
