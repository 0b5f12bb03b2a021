package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/cbfd/internal/tensor"
)

// Constraint projects a weight tensor back onto an admissible set. The host
// calls it after every optimizer update.
type Constraint interface {
	Apply(w *tensor.Tensor) (*tensor.Tensor, error)
	Identifier() Identifier
}

// ConstraintFunc is the signature of a custom constraint callable.
type ConstraintFunc func(w *tensor.Tensor) (*tensor.Tensor, error)

// epsilon guards norm divisions.
const epsilon = 1e-7

// MaxNorm rescales slices along Axis whose L2 norm exceeds MaxValue.
type MaxNorm struct {
	MaxValue float64
	Axis     int
}

// Apply implements Constraint.
func (c MaxNorm) Apply(w *tensor.Tensor) (*tensor.Tensor, error) {
	return rescaleNorms(w, c.Axis, func(norm float64) float64 {
		return math.Min(math.Max(norm, 0), c.MaxValue)
	})
}

// Identifier implements Constraint.
func (c MaxNorm) Identifier() Identifier {
	return Identifier{ClassName: "MaxNorm", Config: map[string]any{"max_value": c.MaxValue, "axis": c.Axis}}
}

// NonNeg zeroes negative weights.
type NonNeg struct{}

// Apply implements Constraint.
func (NonNeg) Apply(w *tensor.Tensor) (*tensor.Tensor, error) {
	return w.Apply(func(v float64) float64 {
		if v >= 0 {
			return v
		}
		return 0
	}), nil
}

// Identifier implements Constraint.
func (NonNeg) Identifier() Identifier {
	return Identifier{ClassName: "NonNeg", Config: map[string]any{}}
}

// UnitNorm rescales slices along Axis to unit L2 norm.
type UnitNorm struct {
	Axis int
}

// Apply implements Constraint.
func (c UnitNorm) Apply(w *tensor.Tensor) (*tensor.Tensor, error) {
	return rescaleNorms(w, c.Axis, func(float64) float64 { return 1 })
}

// Identifier implements Constraint.
func (c UnitNorm) Identifier() Identifier {
	return Identifier{ClassName: "UnitNorm", Config: map[string]any{"axis": c.Axis}}
}

// MinMaxNorm moves slice norms along Axis into [MinValue, MaxValue]. Rate
// in (0, 1] controls how far: 1 enforces the bounds strictly.
type MinMaxNorm struct {
	MinValue float64
	MaxValue float64
	Rate     float64
	Axis     int
}

// Apply implements Constraint.
func (c MinMaxNorm) Apply(w *tensor.Tensor) (*tensor.Tensor, error) {
	return rescaleNorms(w, c.Axis, func(norm float64) float64 {
		clipped := math.Min(math.Max(norm, c.MinValue), c.MaxValue)
		return c.Rate*clipped + (1-c.Rate)*norm
	})
}

// Identifier implements Constraint.
func (c MinMaxNorm) Identifier() Identifier {
	return Identifier{ClassName: "MinMaxNorm", Config: map[string]any{
		"min_value": c.MinValue, "max_value": c.MaxValue, "rate": c.Rate, "axis": c.Axis,
	}}
}

// rescaleNorms computes the L2 norm of every slice along axis and scales
// each slice by desired(norm) / (epsilon + norm).
func rescaleNorms(w *tensor.Tensor, axis int, desired func(norm float64) float64) (*tensor.Tensor, error) {
	shape := w.Shape()
	if axis < 0 {
		axis += len(shape)
	}
	if axis < 0 || axis >= len(shape) {
		return nil, fmt.Errorf("%w: constraint axis %d out of range for shape %v", ErrShape, axis, shape)
	}

	stride := shape.ComputeStrides()[axis]
	span := stride * shape[axis]
	group := func(i int) int { return (i/span)*stride + i%stride }

	data := w.Data()
	sums := make([]float64, len(data)/shape[axis])
	for i, v := range data {
		sums[group(i)] += v * v
	}
	scales := make([]float64, len(sums))
	for g, s := range sums {
		norm := math.Sqrt(s)
		scales[g] = desired(norm) / (epsilon + norm)
	}

	out := w.Clone()
	outData := out.Data()
	for i := range outData {
		outData[i] *= scales[group(i)]
	}
	return out, nil
}

type customConstraint struct {
	name string
	fn   ConstraintFunc
}

func (c customConstraint) Apply(w *tensor.Tensor) (*tensor.Tensor, error) { return c.fn(w) }

func (c customConstraint) Identifier() Identifier { return Custom(c.name) }

// CustomConstraint wraps fn as a named constraint.
func CustomConstraint(name string, fn ConstraintFunc) Constraint {
	return customConstraint{name: name, fn: fn}
}

var customConstraints = newRegistry[ConstraintFunc]("constraint")

// RegisterConstraint makes a custom constraint resolvable by name.
func RegisterConstraint(name string, fn ConstraintFunc) error {
	return customConstraints.register(name, fn, isBuiltinConstraint)
}

var constraintFactories = map[string]func(cfg map[string]any) (Constraint, error){
	"maxnorm": func(cfg map[string]any) (Constraint, error) {
		maxValue, err := configFloat(cfg, "max_value", 2)
		if err != nil {
			return nil, err
		}
		axis, err := configInt(cfg, "axis", 0)
		return MaxNorm{MaxValue: maxValue, Axis: axis}, err
	},
	"nonneg": func(map[string]any) (Constraint, error) { return NonNeg{}, nil },
	"unitnorm": func(cfg map[string]any) (Constraint, error) {
		axis, err := configInt(cfg, "axis", 0)
		return UnitNorm{Axis: axis}, err
	},
	"minmaxnorm": func(cfg map[string]any) (Constraint, error) {
		c := MinMaxNorm{}
		var err error
		if c.MinValue, err = configFloat(cfg, "min_value", 0); err != nil {
			return nil, err
		}
		if c.MaxValue, err = configFloat(cfg, "max_value", 1); err != nil {
			return nil, err
		}
		if c.Rate, err = configFloat(cfg, "rate", 1); err != nil {
			return nil, err
		}
		c.Axis, err = configInt(cfg, "axis", 0)
		return c, err
	},
}

func isBuiltinConstraint(key string) bool {
	_, ok := constraintFactories[key]
	return ok
}

// GetConstraint resolves a constraint identifier. nil means unconstrained
// and yields a nil Constraint.
func GetConstraint(id any) (Constraint, error) {
	if id == nil {
		return nil, nil
	}
	if c, ok := id.(Constraint); ok {
		return c, nil
	}

	ident, ok, err := identifierFrom(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		if ptr, isPtr := id.(*Identifier); isPtr && ptr == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: cannot interpret %T as a constraint", ErrUnknownStrategy, id)
	}

	name := ident.ClassName
	if ident.IsCustom() {
		if name, err = customName(ident); err != nil {
			return nil, err
		}
	} else if factory, ok := constraintFactories[canonicalKey(name)]; ok {
		return factory(ident.Config)
	}

	fn, err := customConstraints.lookup(name)
	if err != nil {
		return nil, err
	}
	return CustomConstraint(name, fn), nil
}

// SerializeConstraint returns the config form of c; nil when unconstrained.
func SerializeConstraint(c Constraint) *Identifier {
	if c == nil {
		return nil
	}
	id := c.Identifier()
	return &id
}
