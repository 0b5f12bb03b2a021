package nn

import (
	"fmt"

	"github.com/born-ml/cbfd/internal/tensor"
)

// Parameter represents a trainable weight of a layer.
//
// Besides the tensor, a parameter carries the regularizer and constraint the
// layer was configured with. The host adds Penalty to its objective and calls
// ApplyConstraint after each optimizer step.
//
// Example:
//
//	kernel := nn.NewParameter("kernel", w)
//	kernel.SetRegularizer(nn.L2(0.01))
//	loss += kernel.Penalty()
type Parameter struct {
	name        string
	tensor      *tensor.Tensor
	trainable   bool
	regularizer Regularizer
	constraint  Constraint
}

// NewParameter creates a trainable parameter without regularizer or constraint.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{name: name, tensor: t, trainable: true}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// SetTensor replaces the parameter value. The shape must not change.
func (p *Parameter) SetTensor(t *tensor.Tensor) error {
	if !t.Shape().Equal(p.tensor.Shape()) {
		return fmt.Errorf("%w: parameter %q has shape %v, got %v", ErrShape, p.name, p.tensor.Shape(), t.Shape())
	}
	p.tensor = t
	return nil
}

// Trainable reports whether the host optimizer may update this parameter.
func (p *Parameter) Trainable() bool {
	return p.trainable
}

// SetTrainable freezes or unfreezes the parameter.
func (p *Parameter) SetTrainable(trainable bool) {
	p.trainable = trainable
}

// Regularizer returns the attached regularizer, or nil.
func (p *Parameter) Regularizer() Regularizer {
	return p.regularizer
}

// SetRegularizer attaches r; nil removes it.
func (p *Parameter) SetRegularizer(r Regularizer) {
	p.regularizer = r
}

// Constraint returns the attached constraint, or nil.
func (p *Parameter) Constraint() Constraint {
	return p.constraint
}

// SetConstraint attaches c; nil removes it.
func (p *Parameter) SetConstraint(c Constraint) {
	p.constraint = c
}

// Penalty returns the regularization term of the current value, or 0.
func (p *Parameter) Penalty() float64 {
	if p.regularizer == nil {
		return 0
	}
	return p.regularizer.Penalty(p.tensor)
}

// ApplyConstraint projects the current value through the constraint.
// It is a no-op when no constraint is attached.
func (p *Parameter) ApplyConstraint() error {
	if p.constraint == nil {
		return nil
	}
	projected, err := p.constraint.Apply(p.tensor)
	if err != nil {
		return fmt.Errorf("constraint on %q: %w", p.name, err)
	}
	return p.SetTensor(projected)
}
