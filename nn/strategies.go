// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/cbfd/internal/nn"
)

// Identifier is the serialized form of a strategy.
type Identifier = nn.Identifier

// CustomClassName marks an Identifier of a registered custom strategy.
const CustomClassName = nn.CustomClassName

// Custom returns the Identifier of a registered custom strategy.
func Custom(name string) Identifier { return nn.Custom(name) }

// Activations

// Activation is an elementwise (or last-axis) transform.
type Activation = nn.Activation

// ActivationFunc is the signature of custom activations.
type ActivationFunc = nn.ActivationFunc

// Linear returns the identity activation.
func Linear() Activation { return nn.Linear() }

// CustomActivation wraps fn as a named activation.
func CustomActivation(name string, fn ActivationFunc) Activation {
	return nn.CustomActivation(name, fn)
}

// RegisterActivation makes fn resolvable by name.
func RegisterActivation(name string, fn ActivationFunc) error {
	return nn.RegisterActivation(name, fn)
}

// GetActivation resolves a name, Identifier or Activation.
func GetActivation(id any) (Activation, error) { return nn.GetActivation(id) }

// SerializeActivation returns the name an activation is stored under.
func SerializeActivation(a Activation) string { return nn.SerializeActivation(a) }

// Initializers

type (
	// Initializer fills a new weight tensor.
	Initializer = nn.Initializer
	// InitializerFunc is the signature of custom initializers.
	InitializerFunc = nn.InitializerFunc

	Zeros           = nn.Zeros
	Ones            = nn.Ones
	Constant        = nn.Constant
	RandomUniform   = nn.RandomUniform
	RandomNormal    = nn.RandomNormal
	TruncatedNormal = nn.TruncatedNormal
	VarianceScaling = nn.VarianceScaling
	Orthogonal      = nn.Orthogonal
	Identity        = nn.Identity
)

// Variance scaling modes and distributions.
const (
	FanIn  = nn.FanIn
	FanOut = nn.FanOut
	FanAvg = nn.FanAvg

	DistNormal            = nn.DistNormal
	DistUntruncatedNormal = nn.DistUntruncatedNormal
	DistTruncatedNormal   = nn.DistTruncatedNormal
	DistUniform           = nn.DistUniform
)

// GlorotUniform returns the Glorot uniform initializer.
func GlorotUniform(seed *uint64) VarianceScaling { return nn.GlorotUniform(seed) }

// GlorotNormal returns the Glorot normal initializer.
func GlorotNormal(seed *uint64) VarianceScaling { return nn.GlorotNormal(seed) }

// HeUniform returns the He uniform initializer.
func HeUniform(seed *uint64) VarianceScaling { return nn.HeUniform(seed) }

// HeNormal returns the He normal initializer.
func HeNormal(seed *uint64) VarianceScaling { return nn.HeNormal(seed) }

// LecunUniform returns the LeCun uniform initializer.
func LecunUniform(seed *uint64) VarianceScaling { return nn.LecunUniform(seed) }

// LecunNormal returns the LeCun normal initializer.
func LecunNormal(seed *uint64) VarianceScaling { return nn.LecunNormal(seed) }

// CustomInitializer wraps fn as a named initializer.
func CustomInitializer(name string, fn InitializerFunc) Initializer {
	return nn.CustomInitializer(name, fn)
}

// RegisterInitializer makes fn resolvable by name.
func RegisterInitializer(name string, fn InitializerFunc) error {
	return nn.RegisterInitializer(name, fn)
}

// GetInitializer resolves a name, Identifier or Initializer.
func GetInitializer(id any) (Initializer, error) { return nn.GetInitializer(id) }

// SerializeInitializer returns the Identifier of an initializer.
func SerializeInitializer(i Initializer) *Identifier { return nn.SerializeInitializer(i) }

// Regularizers

type (
	// Regularizer maps a tensor to a scalar penalty.
	Regularizer = nn.Regularizer
	// RegularizerFunc is the signature of custom regularizers.
	RegularizerFunc = nn.RegularizerFunc
	// L1L2 is the combined L1 and L2 penalty.
	L1L2 = nn.L1L2
)

// L1 returns an L1 regularizer.
func L1(l1 float64) L1L2 { return nn.L1(l1) }

// L2 returns an L2 regularizer.
func L2(l2 float64) L1L2 { return nn.L2(l2) }

// NewL1L2 returns a combined L1 and L2 regularizer.
func NewL1L2(l1, l2 float64) L1L2 { return nn.NewL1L2(l1, l2) }

// CustomRegularizer wraps fn as a named regularizer.
func CustomRegularizer(name string, fn RegularizerFunc) Regularizer {
	return nn.CustomRegularizer(name, fn)
}

// RegisterRegularizer makes fn resolvable by name.
func RegisterRegularizer(name string, fn RegularizerFunc) error {
	return nn.RegisterRegularizer(name, fn)
}

// GetRegularizer resolves a name, Identifier or Regularizer. nil resolves
// to no regularizer.
func GetRegularizer(id any) (Regularizer, error) { return nn.GetRegularizer(id) }

// SerializeRegularizer returns the Identifier of a regularizer.
func SerializeRegularizer(r Regularizer) *Identifier { return nn.SerializeRegularizer(r) }

// Constraints

type (
	// Constraint projects a weight tensor after an update.
	Constraint = nn.Constraint
	// ConstraintFunc is the signature of custom constraints.
	ConstraintFunc = nn.ConstraintFunc

	MaxNorm    = nn.MaxNorm
	NonNeg     = nn.NonNeg
	UnitNorm   = nn.UnitNorm
	MinMaxNorm = nn.MinMaxNorm
)

// CustomConstraint wraps fn as a named constraint.
func CustomConstraint(name string, fn ConstraintFunc) Constraint {
	return nn.CustomConstraint(name, fn)
}

// RegisterConstraint makes fn resolvable by name.
func RegisterConstraint(name string, fn ConstraintFunc) error {
	return nn.RegisterConstraint(name, fn)
}

// GetConstraint resolves a name, Identifier or Constraint. nil resolves to
// no constraint.
func GetConstraint(id any) (Constraint, error) { return nn.GetConstraint(id) }

// SerializeConstraint returns the Identifier of a constraint.
func SerializeConstraint(c Constraint) *Identifier { return nn.SerializeConstraint(c) }
