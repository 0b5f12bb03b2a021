package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/cbfd/internal/tensor"
)

// Dense implements a fully connected layer.
//
// Performs the transformation: y = activation(x · W + b)
// where:
//   - x has shape (batch, ..., input_dim)
//   - W is the kernel with shape (input_dim, units)
//   - b is the bias vector with shape (units,), initialized to zeros
//
// Dense contributes no auxiliary loss. It is typically placed in front of
// a CBFD layer inside a Sequential.
//
// Example:
//
//	dense, err := nn.NewDense(16, nn.WithActivation("relu"), nn.WithInputDim(8))
//	y, _, err := dense.Forward(x) // shape (batch, 16)
type Dense struct {
	name      string
	units     int
	useBias   bool
	trainable bool

	activation          Activation
	kernelInitializer   Initializer
	kernelRegularizer   Regularizer
	activityRegularizer Regularizer
	kernelConstraint    Constraint
	src                 rand.Source

	inputDim int
	kernel   *Parameter // (input_dim, units)
	bias     *Parameter // (units,), nil when useBias is false
}

// NewDense creates a Dense layer. Strategy options behave as for NewCBFD.
func NewDense(units int, opts ...Option) (*Dense, error) {
	if units <= 0 {
		return nil, fmt.Errorf("%w: units must be positive, got %d", ErrInvalidConfig, units)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s, err := o.resolve()
	if err != nil {
		return nil, err
	}

	d := &Dense{
		name:                o.name,
		units:               units,
		useBias:             o.useBias,
		trainable:           o.trainable,
		activation:          s.activation,
		kernelInitializer:   s.kernelInitializer,
		kernelRegularizer:   s.kernelRegularizer,
		activityRegularizer: s.activityRegularizer,
		kernelConstraint:    s.kernelConstraint,
	}
	if d.name == "" {
		d.name = uniqueName("dense")
	}
	if o.seed != nil {
		d.src = rand.NewPCG(*o.seed, *o.seed)
	}
	if shape := o.resolvedBatchShape(); shape != nil {
		if err := d.Build(shape); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Name returns the layer name.
func (d *Dense) Name() string {
	return d.name
}

// Build allocates the kernel and bias for an input of shape (batch, ..., input_dim).
func (d *Dense) Build(inputShape tensor.Shape) error {
	if inputShape.Rank() < 2 || inputShape.Last() <= 0 {
		return fmt.Errorf("%w: %s needs rank >= 2 with a known last dimension, got %v", ErrShape, d.name, inputShape)
	}
	inputDim := inputShape.Last()
	if d.kernel != nil {
		if inputDim != d.inputDim {
			return fmt.Errorf("%w: %s was built for input dimension %d, got %d", ErrShape, d.name, d.inputDim, inputDim)
		}
		return nil
	}

	w, err := d.kernelInitializer.Initialize(tensor.Shape{inputDim, d.units}, d.src)
	if err != nil {
		return fmt.Errorf("initialize %s kernel: %w", d.name, err)
	}
	d.kernel = NewParameter("kernel", w)
	d.kernel.SetTrainable(d.trainable)
	d.kernel.SetRegularizer(d.kernelRegularizer)
	d.kernel.SetConstraint(d.kernelConstraint)
	if d.useBias {
		d.bias = NewParameter("bias", tensor.Zeros(tensor.Shape{d.units}))
		d.bias.SetTrainable(d.trainable)
	}
	d.inputDim = inputDim
	return nil
}

// Forward computes activation(x · W + b). The loss result is always nil.
func (d *Dense) Forward(x *tensor.Tensor) (output, loss *tensor.Tensor, err error) {
	if x == nil {
		return nil, nil, fmt.Errorf("%w: %s got a nil input", ErrShape, d.name)
	}
	if err := d.Build(x.Shape()); err != nil {
		return nil, nil, err
	}

	z, err := tensor.MatMul(x, d.kernel.Tensor())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrShape, d.name, err)
	}
	if d.bias != nil {
		if z, err = tensor.Add(z, d.bias.Tensor()); err != nil {
			return nil, nil, err
		}
	}
	return d.activation.Apply(z), nil, nil
}

// ComputeOutputShape replaces the trailing dimension with units.
func (d *Dense) ComputeOutputShape(inputShape tensor.Shape) (tensor.Shape, error) {
	if inputShape.Rank() < 2 || inputShape.Last() <= 0 {
		return nil, fmt.Errorf("%w: %s needs rank >= 2 with a known last dimension, got %v", ErrShape, d.name, inputShape)
	}
	return inputShape.WithLast(d.units), nil
}

// Parameters returns the kernel and, when enabled, the bias.
func (d *Dense) Parameters() []*Parameter {
	if d.kernel == nil {
		return nil
	}
	if d.bias == nil {
		return []*Parameter{d.kernel}
	}
	return []*Parameter{d.kernel, d.bias}
}

// ActivityPenalty applies the activity regularizer to an output of Forward.
func (d *Dense) ActivityPenalty(output *tensor.Tensor) float64 {
	if d.activityRegularizer == nil || output == nil {
		return 0
	}
	return d.activityRegularizer.Penalty(output)
}

// StateDict returns copies of the weights keyed "kernel" and "bias".
func (d *Dense) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor)
	for _, p := range d.Parameters() {
		state[p.Name()] = p.Tensor().Clone()
	}
	return state
}

// LoadStateDict loads weights from a state dictionary. The layer must be
// built and every weight must be present with a matching shape.
func (d *Dense) LoadStateDict(state map[string]*tensor.Tensor) error {
	if d.kernel == nil {
		return fmt.Errorf("%w: %s", ErrNotBuilt, d.name)
	}
	for _, p := range d.Parameters() {
		t, ok := state[p.Name()]
		if !ok {
			return fmt.Errorf("%w: missing %s in state dict for %s", ErrInvalidConfig, p.Name(), d.name)
		}
		if err := p.SetTensor(t.Clone()); err != nil {
			return err
		}
	}
	return nil
}
