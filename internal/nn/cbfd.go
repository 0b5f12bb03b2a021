package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/cbfd/internal/tensor"
)

// Weights of the auxiliary loss terms.
const (
	reconstructionWeight = 1e3
	offsetWeight         = 1e3
	separationWeight     = 1e6
)

// CBFD is a binarizing projection layer with a class-separation loss.
//
// Forward projects the input through the kernel, applies the activation,
// binarizes the result by sign and returns it together with an auxiliary
// per-element loss:
//
//	z  = x · W
//	y  = activation(z)
//	b  = 0.5*sign(y) + 1                         // values in {0.5, 1, 1.5}
//	F  = (b-m_w) - (b-m_b)
//	   + 1e3*((b-0.5) - y)² + 1e3*(b-0.5)²
//	   - 1e6*(b - mean_last(y))²
//
// m_w and m_b are the within-class and between-class references fixed at
// construction. The kernel W has shape (input_dim, units) and is created
// on the first Build.
//
// Example:
//
//	mw := tensor.Vector(0, 0)
//	mb := tensor.Vector(1, 1)
//	layer, err := nn.NewCBFD(2, mw, mb, nn.WithActivation("tanh"))
//	b, f, err := layer.Forward(x)
type CBFD struct {
	name      string
	units     int
	mw, mb    *tensor.Tensor // (units,)
	trainable bool

	activation          Activation
	kernelInitializer   Initializer
	kernelRegularizer   Regularizer
	activityRegularizer Regularizer
	kernelConstraint    Constraint

	batchInputShape tensor.Shape
	src             rand.Source

	inputDim int
	kernel   *Parameter // nil until built
}

// NewCBFD creates a CBFD layer with the given number of output units.
//
// mw and mb must broadcast to (units,). Strategy lookups that fail are
// returned unchanged. When an input shape is supplied through
// WithInputShape, WithBatchInputShape or WithInputDim, the layer is built
// before NewCBFD returns.
func NewCBFD(units int, mw, mb *tensor.Tensor, opts ...Option) (*CBFD, error) {
	if units <= 0 {
		return nil, fmt.Errorf("%w: units must be positive, got %d", ErrInvalidConfig, units)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	mwVec, err := expandReference("m_w", mw, units)
	if err != nil {
		return nil, err
	}
	mbVec, err := expandReference("m_b", mb, units)
	if err != nil {
		return nil, err
	}

	s, err := o.resolve()
	if err != nil {
		return nil, err
	}

	c := &CBFD{
		name:                o.name,
		units:               units,
		mw:                  mwVec,
		mb:                  mbVec,
		trainable:           o.trainable,
		activation:          s.activation,
		kernelInitializer:   s.kernelInitializer,
		kernelRegularizer:   s.kernelRegularizer,
		activityRegularizer: s.activityRegularizer,
		kernelConstraint:    s.kernelConstraint,
		batchInputShape:     o.resolvedBatchShape(),
	}
	if c.name == "" {
		c.name = uniqueName("cbfd")
	}
	if o.seed != nil {
		c.src = rand.NewPCG(*o.seed, *o.seed)
	}

	if c.batchInputShape != nil {
		if err := c.Build(c.batchInputShape); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// expandReference copies ref into a (units,) vector. Every dimension but
// the last must be 1; the last must be 1 or units.
func expandReference(label string, ref *tensor.Tensor, units int) (*tensor.Tensor, error) {
	if ref == nil {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidConfig, label)
	}
	shape := ref.Shape()
	for i, dim := range shape {
		if i < len(shape)-1 && dim != 1 {
			return nil, fmt.Errorf("%w: %s of shape %v does not broadcast to (%d,)", ErrInvalidConfig, label, shape, units)
		}
	}
	last := 1
	if len(shape) > 0 {
		last = shape.Last()
	}
	if last != 1 && last != units {
		return nil, fmt.Errorf("%w: %s of shape %v does not broadcast to (%d,)", ErrInvalidConfig, label, shape, units)
	}

	data := ref.Data()
	out := tensor.Zeros(tensor.Shape{units})
	vec := out.Data()
	for i := range vec {
		if last == 1 {
			vec[i] = data[0]
		} else {
			vec[i] = data[i]
		}
	}
	return out, nil
}

// Name returns the layer name.
func (c *CBFD) Name() string {
	return c.name
}

// Units returns the output dimension.
func (c *CBFD) Units() int {
	return c.units
}

// InputDim returns the trailing input dimension, or 0 before Build.
func (c *CBFD) InputDim() int {
	return c.inputDim
}

// Built reports whether the kernel exists.
func (c *CBFD) Built() bool {
	return c.kernel != nil
}

// Trainable reports whether the kernel is trainable.
func (c *CBFD) Trainable() bool {
	return c.trainable
}

// Activation returns the configured activation.
func (c *CBFD) Activation() Activation {
	return c.activation
}

// MW returns a copy of the within-class reference, shape (units,).
func (c *CBFD) MW() *tensor.Tensor {
	return c.mw.Clone()
}

// MB returns a copy of the between-class reference, shape (units,).
func (c *CBFD) MB() *tensor.Tensor {
	return c.mb.Clone()
}

// Kernel returns the kernel parameter, or nil before Build.
func (c *CBFD) Kernel() *Parameter {
	return c.kernel
}

// Build allocates the kernel for an input of shape (batch, ..., input_dim).
func (c *CBFD) Build(inputShape tensor.Shape) error {
	if inputShape.Rank() < 2 {
		return fmt.Errorf("%w: %s expects rank >= 2, got %v", ErrShape, c.name, inputShape)
	}
	inputDim := inputShape.Last()
	if inputDim <= 0 {
		return fmt.Errorf("%w: %s needs a known last dimension, got %v", ErrShape, c.name, inputShape)
	}
	return c.EnsureBuilt(inputDim)
}

// EnsureBuilt creates the kernel on the first call. Later calls with the
// same inputDim are no-ops; a different inputDim is a shape error.
func (c *CBFD) EnsureBuilt(inputDim int) error {
	if inputDim <= 0 {
		return fmt.Errorf("%w: %s input dimension must be positive, got %d", ErrShape, c.name, inputDim)
	}
	if c.kernel != nil {
		if inputDim != c.inputDim {
			return fmt.Errorf("%w: %s was built for input dimension %d, got %d", ErrShape, c.name, c.inputDim, inputDim)
		}
		return nil
	}

	shape := tensor.Shape{inputDim, c.units}
	w, err := c.kernelInitializer.Initialize(shape, c.src)
	if err != nil {
		return fmt.Errorf("initialize %s kernel: %w", c.name, err)
	}
	c.setKernel(inputDim, w)
	return nil
}

func (c *CBFD) setKernel(inputDim int, w *tensor.Tensor) {
	kernel := NewParameter("kernel", w)
	kernel.SetTrainable(c.trainable)
	kernel.SetRegularizer(c.kernelRegularizer)
	kernel.SetConstraint(c.kernelConstraint)
	c.kernel = kernel
	c.inputDim = inputDim
}

// Forward binarizes x and returns the binary code b together with the
// auxiliary loss F of the same shape. An unbuilt layer is built from x.
func (c *CBFD) Forward(x *tensor.Tensor) (b, f *tensor.Tensor, err error) {
	if x == nil {
		return nil, nil, fmt.Errorf("%w: %s got a nil input", ErrShape, c.name)
	}
	shape := x.Shape()
	if shape.Rank() < 2 {
		return nil, nil, fmt.Errorf("%w: %s expects rank >= 2, got %v", ErrShape, c.name, shape)
	}
	if err := c.EnsureBuilt(shape.Last()); err != nil {
		return nil, nil, err
	}

	z, err := tensor.MatMul(x, c.kernel.Tensor())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrShape, c.name, err)
	}
	y := c.activation.Apply(z)
	if y == nil || !y.Shape().Equal(z.Shape()) {
		return nil, nil, fmt.Errorf("%w: activation %q changed shape %v", ErrShape, c.activation.Name(), z.Shape())
	}

	b = y.Sign().Scale(0.5).AddScalar(1)
	f, err = c.auxiliaryLoss(b, y)
	if err != nil {
		return nil, nil, err
	}
	return b, f, nil
}

// auxiliaryLoss evaluates F for a binary code b and its pre-binarization y.
func (c *CBFD) auxiliaryLoss(b, y *tensor.Tensor) (*tensor.Tensor, error) {
	sw, err := tensor.Sub(b, c.mw)
	if err != nil {
		return nil, err
	}
	sb, err := tensor.Sub(b, c.mb)
	if err != nil {
		return nil, err
	}
	separation, err := tensor.Sub(sw, sb)
	if err != nil {
		return nil, err
	}

	centered := b.AddScalar(-0.5)
	residual, err := tensor.Sub(centered, y)
	if err != nil {
		return nil, err
	}
	reconstruction := residual.Square().Scale(reconstructionWeight)
	offset := centered.Square().Scale(offsetWeight)

	mean, err := y.MeanLastAxis()
	if err != nil {
		return nil, err
	}
	spread, err := tensor.Sub(b, mean)
	if err != nil {
		return nil, err
	}
	balance := spread.Square().Scale(separationWeight)

	f, err := tensor.Add(separation, reconstruction)
	if err != nil {
		return nil, err
	}
	if f, err = tensor.Add(f, offset); err != nil {
		return nil, err
	}
	return tensor.Sub(f, balance)
}

// ComputeOutputShape replaces the trailing dimension with units.
func (c *CBFD) ComputeOutputShape(inputShape tensor.Shape) (tensor.Shape, error) {
	if inputShape.Rank() < 2 {
		return nil, fmt.Errorf("%w: %s expects rank >= 2, got %v", ErrShape, c.name, inputShape)
	}
	if inputShape.Last() <= 0 {
		return nil, fmt.Errorf("%w: %s needs a known last dimension, got %v", ErrShape, c.name, inputShape)
	}
	return inputShape.WithLast(c.units), nil
}

// ComputeMask passes an input mask through unchanged.
func (c *CBFD) ComputeMask(_ *tensor.Tensor, mask *tensor.Tensor) *tensor.Tensor {
	return mask
}

// Parameters returns the kernel once built.
func (c *CBFD) Parameters() []*Parameter {
	if c.kernel == nil {
		return nil
	}
	return []*Parameter{c.kernel}
}

// ActivityPenalty applies the activity regularizer to an output of Forward.
func (c *CBFD) ActivityPenalty(output *tensor.Tensor) float64 {
	if c.activityRegularizer == nil || output == nil {
		return 0
	}
	return c.activityRegularizer.Penalty(output)
}

// ApplyConstraints projects the kernel through its constraint.
func (c *CBFD) ApplyConstraints() error {
	if c.kernel == nil {
		return nil
	}
	return c.kernel.ApplyConstraint()
}

// StateDict returns a copy of the kernel under "kernel". Empty before Build.
func (c *CBFD) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor)
	if c.kernel != nil {
		state["kernel"] = c.kernel.Tensor().Clone()
	}
	return state
}

// LoadStateDict replaces the kernel. An unbuilt layer is built from the
// kernel's shape.
func (c *CBFD) LoadStateDict(state map[string]*tensor.Tensor) error {
	for key := range state {
		if key != "kernel" {
			return fmt.Errorf("%w: unexpected weight %q for %s", ErrInvalidConfig, key, c.name)
		}
	}
	w, ok := state["kernel"]
	if !ok {
		return fmt.Errorf("%w: missing kernel in state dict for %s", ErrInvalidConfig, c.name)
	}

	shape := w.Shape()
	if shape.Rank() != 2 || shape[1] != c.units {
		return fmt.Errorf("%w: %s kernel must be (input_dim, %d), got %v", ErrShape, c.name, c.units, shape)
	}
	if c.kernel == nil {
		c.setKernel(shape[0], w.Clone())
		return nil
	}
	return c.kernel.SetTensor(w.Clone())
}
