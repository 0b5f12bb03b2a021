package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/cbfd/internal/tensor"
)

// Regularizer turns a weight or activity tensor into a scalar penalty that
// the host adds to its training objective.
type Regularizer interface {
	Penalty(t *tensor.Tensor) float64
	Identifier() Identifier
}

// RegularizerFunc is the signature of a custom regularizer callable.
type RegularizerFunc func(t *tensor.Tensor) float64

// defaultRegularization is the factor used by the "l1", "l2" and "l1_l2" names.
const defaultRegularization = 0.01

// L1L2 penalizes L1 * sum(|t|) + L2 * sum(t²).
type L1L2 struct {
	L1 float64
	L2 float64

	class string // "L1", "L2" or "L1L2"
}

// L1 returns an L1-only regularizer.
func L1(l1 float64) L1L2 { return L1L2{L1: l1, class: "L1"} }

// L2 returns an L2-only regularizer.
func L2(l2 float64) L1L2 { return L1L2{L2: l2, class: "L2"} }

// NewL1L2 returns a combined regularizer.
func NewL1L2(l1, l2 float64) L1L2 { return L1L2{L1: l1, L2: l2, class: "L1L2"} }

// Penalty implements Regularizer.
func (r L1L2) Penalty(t *tensor.Tensor) float64 {
	data := t.Data()
	var penalty float64
	if r.L1 != 0 {
		penalty += r.L1 * floats.Norm(data, 1)
	}
	if r.L2 != 0 {
		penalty += r.L2 * floats.Dot(data, data)
	}
	return penalty
}

// Identifier implements Regularizer.
func (r L1L2) Identifier() Identifier {
	switch r.class {
	case "L1":
		return Identifier{ClassName: "L1", Config: map[string]any{"l1": r.L1}}
	case "L2":
		return Identifier{ClassName: "L2", Config: map[string]any{"l2": r.L2}}
	default:
		return Identifier{ClassName: "L1L2", Config: map[string]any{"l1": r.L1, "l2": r.L2}}
	}
}

type customRegularizer struct {
	name string
	fn   RegularizerFunc
}

func (c customRegularizer) Penalty(t *tensor.Tensor) float64 { return c.fn(t) }

func (c customRegularizer) Identifier() Identifier { return Custom(c.name) }

// CustomRegularizer wraps fn as a named regularizer.
func CustomRegularizer(name string, fn RegularizerFunc) Regularizer {
	return customRegularizer{name: name, fn: fn}
}

var customRegularizers = newRegistry[RegularizerFunc]("regularizer")

// RegisterRegularizer makes a custom regularizer resolvable by name.
func RegisterRegularizer(name string, fn RegularizerFunc) error {
	return customRegularizers.register(name, fn, isBuiltinRegularizer)
}

var regularizerFactories = map[string]func(cfg map[string]any) (Regularizer, error){
	"l1": func(cfg map[string]any) (Regularizer, error) {
		l1, err := configFloat(cfg, "l1", defaultRegularization)
		return L1(l1), err
	},
	"l2": func(cfg map[string]any) (Regularizer, error) {
		l2, err := configFloat(cfg, "l2", defaultRegularization)
		return L2(l2), err
	},
	"l1l2": func(cfg map[string]any) (Regularizer, error) {
		l1, err := configFloat(cfg, "l1", defaultRegularization)
		if err != nil {
			return nil, err
		}
		l2, err := configFloat(cfg, "l2", defaultRegularization)
		return NewL1L2(l1, l2), err
	},
}

func isBuiltinRegularizer(key string) bool {
	_, ok := regularizerFactories[key]
	return ok
}

// GetRegularizer resolves a regularizer identifier. nil means no
// regularization and yields a nil Regularizer.
func GetRegularizer(id any) (Regularizer, error) {
	if id == nil {
		return nil, nil
	}
	if r, ok := id.(Regularizer); ok {
		return r, nil
	}

	ident, ok, err := identifierFrom(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		if ptr, isPtr := id.(*Identifier); isPtr && ptr == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: cannot interpret %T as a regularizer", ErrUnknownStrategy, id)
	}

	name := ident.ClassName
	if ident.IsCustom() {
		if name, err = customName(ident); err != nil {
			return nil, err
		}
	} else if factory, ok := regularizerFactories[canonicalKey(name)]; ok {
		return factory(ident.Config)
	}

	fn, err := customRegularizers.lookup(name)
	if err != nil {
		return nil, err
	}
	return CustomRegularizer(name, fn), nil
}

// SerializeRegularizer returns the config form of r; nil for no regularizer.
func SerializeRegularizer(r Regularizer) *Identifier {
	if r == nil {
		return nil
	}
	id := r.Identifier()
	return &id
}
