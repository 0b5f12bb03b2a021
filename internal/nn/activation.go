package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/cbfd/internal/tensor"
)

// Activation is an elementwise (or last-axis) nonlinearity applied to the
// projected input before binarization.
type Activation interface {
	// Name is the serialized form of the activation.
	Name() string

	// Apply returns the activated tensor; the input is not modified.
	Apply(x *tensor.Tensor) *tensor.Tensor
}

// ActivationFunc is the signature of a custom activation callable.
type ActivationFunc func(x *tensor.Tensor) *tensor.Tensor

// elementwise is a built-in activation defined per element.
type elementwise struct {
	name string
	fn   func(float64) float64
}

func (e elementwise) Name() string { return e.name }

func (e elementwise) Apply(x *tensor.Tensor) *tensor.Tensor { return x.Apply(e.fn) }

// softmax normalizes over the last axis.
type softmax struct{}

func (softmax) Name() string { return "softmax" }

func (softmax) Apply(x *tensor.Tensor) *tensor.Tensor {
	out := x.Clone()
	if x.Rank() == 0 {
		out.Data()[0] = 1
		return out
	}
	data := out.Data()
	n := x.Shape().Last()
	for start := 0; start < len(data); start += n {
		row := data[start : start+n]
		maxV := math.Inf(-1)
		for _, v := range row {
			maxV = math.Max(maxV, v)
		}
		var sum float64
		for i, v := range row {
			row[i] = math.Exp(v - maxV)
			sum += row[i]
		}
		for i := range row {
			row[i] /= sum
		}
	}
	return out
}

// customActivation wraps a user callable under a registered name.
type customActivation struct {
	name string
	fn   ActivationFunc
}

func (c customActivation) Name() string { return c.name }

func (c customActivation) Apply(x *tensor.Tensor) *tensor.Tensor { return c.fn(x) }

// SELU constants.
const (
	seluAlpha = 1.6732632423543772848170429916717
	seluScale = 1.0507009873554804934193349852946
)

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

var builtinActivations = map[string]Activation{
	"linear":      elementwise{"linear", func(x float64) float64 { return x }},
	"relu":        elementwise{"relu", func(x float64) float64 { return math.Max(0, x) }},
	"sigmoid":     elementwise{"sigmoid", sigmoid},
	"hardsigmoid": elementwise{"hard_sigmoid", func(x float64) float64 { return math.Min(1, math.Max(0, 0.2*x+0.5)) }},
	"tanh":        elementwise{"tanh", math.Tanh},
	"softmax":     softmax{},
	"softplus": elementwise{"softplus", func(x float64) float64 {
		if x > 30 {
			return x
		}
		return math.Log1p(math.Exp(x))
	}},
	"softsign": elementwise{"softsign", func(x float64) float64 { return x / (1 + math.Abs(x)) }},
	"elu": elementwise{"elu", func(x float64) float64 {
		if x > 0 {
			return x
		}
		return math.Expm1(x)
	}},
	"selu": elementwise{"selu", func(x float64) float64 {
		if x > 0 {
			return seluScale * x
		}
		return seluScale * seluAlpha * math.Expm1(x)
	}},
	"exponential": elementwise{"exponential", math.Exp},
	"swish":       elementwise{"swish", func(x float64) float64 { return x * sigmoid(x) }},
	"gelu":        elementwise{"gelu", func(x float64) float64 { return 0.5 * x * (1 + math.Erf(x/math.Sqrt2)) }},
}

var customActivations = newRegistry[ActivationFunc]("activation")

func isBuiltinActivation(key string) bool {
	_, ok := builtinActivations[key]
	return ok
}

// Linear returns the identity activation.
func Linear() Activation {
	return builtinActivations["linear"]
}

// CustomActivation wraps fn as a named activation. The name is what gets
// serialized; reloading requires RegisterActivation with the same name.
func CustomActivation(name string, fn ActivationFunc) Activation {
	return customActivation{name: name, fn: fn}
}

// RegisterActivation makes a custom activation resolvable by name.
func RegisterActivation(name string, fn ActivationFunc) error {
	return customActivations.register(name, fn, isBuiltinActivation)
}

// GetActivation resolves an activation identifier.
//
// Accepted forms: nil (identity), a name such as "relu", an Identifier or
// identifier record, or an Activation value.
func GetActivation(id any) (Activation, error) {
	if id == nil {
		return Linear(), nil
	}
	if a, ok := id.(Activation); ok {
		return a, nil
	}

	ident, ok, err := identifierFrom(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cannot interpret %T as an activation", ErrUnknownStrategy, id)
	}
	if ident.IsCustom() {
		name, err := customName(ident)
		if err != nil {
			return nil, err
		}
		return lookupCustomActivation(name)
	}
	if a, ok := builtinActivations[canonicalKey(ident.ClassName)]; ok {
		return a, nil
	}
	return lookupCustomActivation(ident.ClassName)
}

func lookupCustomActivation(name string) (Activation, error) {
	fn, err := customActivations.lookup(name)
	if err != nil {
		return nil, err
	}
	return CustomActivation(name, fn), nil
}

// SerializeActivation returns the name stored in configs.
func SerializeActivation(a Activation) string {
	if a == nil {
		return "linear"
	}
	return a.Name()
}
