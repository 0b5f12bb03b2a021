package nn

import (
	"github.com/born-ml/cbfd/internal/tensor"
)

// Option configures a layer at construction.
type Option func(*options)

type options struct {
	activation          any
	kernelInitializer   any
	kernelRegularizer   any
	activityRegularizer any
	kernelConstraint    any
	useBias             bool

	name            string
	trainable       bool
	inputShape      tensor.Shape
	batchInputShape tensor.Shape
	inputDim        int
	seed            *uint64
}

func defaultOptions() options {
	return options{
		kernelInitializer: "glorot_uniform",
		useBias:           true,
		trainable:         true,
	}
}

// WithActivation sets the activation applied before binarization.
// Accepts a name, an Identifier, or an Activation value.
func WithActivation(id any) Option {
	return func(o *options) { o.activation = id }
}

// WithKernelInitializer sets how the kernel is filled at build time.
// The default is "glorot_uniform".
func WithKernelInitializer(id any) Option {
	return func(o *options) { o.kernelInitializer = id }
}

// WithKernelRegularizer attaches a regularizer to the kernel parameter.
func WithKernelRegularizer(id any) Option {
	return func(o *options) { o.kernelRegularizer = id }
}

// WithActivityRegularizer sets a regularizer applied to the layer output.
func WithActivityRegularizer(id any) Option {
	return func(o *options) { o.activityRegularizer = id }
}

// WithKernelConstraint attaches a constraint to the kernel parameter.
func WithKernelConstraint(id any) Option {
	return func(o *options) { o.kernelConstraint = id }
}

// WithUseBias toggles the bias vector of layers that have one.
func WithUseBias(useBias bool) Option {
	return func(o *options) { o.useBias = useBias }
}

// WithName overrides the generated layer name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithTrainable marks the layer weights as trainable or frozen.
func WithTrainable(trainable bool) Option {
	return func(o *options) { o.trainable = trainable }
}

// WithInputShape declares the per-sample input shape; the batch
// dimension is left unknown. The layer is built immediately.
func WithInputShape(dims ...int) Option {
	return func(o *options) { o.inputShape = append(tensor.Shape{}, dims...) }
}

// WithBatchInputShape declares the full input shape including the batch
// dimension (tensor.Unknown when variable). The layer is built immediately.
func WithBatchInputShape(dims ...int) Option {
	return func(o *options) { o.batchInputShape = append(tensor.Shape{}, dims...) }
}

// WithInputDim is the legacy spelling of WithInputShape(n). It is ignored
// when an input shape is also given.
func WithInputDim(n int) Option {
	return func(o *options) { o.inputDim = n }
}

// WithSeed makes kernel initialization reproducible. Initializers that
// carry their own seed take precedence.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = &seed }
}

// resolvedBatchShape folds the input shape options into one batch shape,
// or nil when none was given.
func (o *options) resolvedBatchShape() tensor.Shape {
	switch {
	case o.batchInputShape != nil:
		return o.batchInputShape.Clone()
	case o.inputShape != nil:
		return append(tensor.Shape{tensor.Unknown}, o.inputShape...)
	case o.inputDim != 0:
		return tensor.Shape{tensor.Unknown, o.inputDim}
	default:
		return nil
	}
}

// strategies is the resolved set of pluggable behaviors shared by layers.
type strategies struct {
	activation          Activation
	kernelInitializer   Initializer
	kernelRegularizer   Regularizer
	activityRegularizer Regularizer
	kernelConstraint    Constraint
}

// resolve looks every strategy up. Lookup errors are returned unmodified.
func (o *options) resolve() (strategies, error) {
	var (
		s   strategies
		err error
	)
	if s.activation, err = GetActivation(o.activation); err != nil {
		return s, err
	}
	if o.kernelInitializer == nil {
		o.kernelInitializer = "glorot_uniform"
	}
	if s.kernelInitializer, err = GetInitializer(o.kernelInitializer); err != nil {
		return s, err
	}
	if s.kernelRegularizer, err = GetRegularizer(o.kernelRegularizer); err != nil {
		return s, err
	}
	if s.activityRegularizer, err = GetRegularizer(o.activityRegularizer); err != nil {
		return s, err
	}
	if s.kernelConstraint, err = GetConstraint(o.kernelConstraint); err != nil {
		return s, err
	}
	return s, nil
}
