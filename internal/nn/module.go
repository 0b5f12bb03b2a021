// Package nn implements the CBFD layer and the host-side pieces it plugs into.
//
// This package provides:
//   - Layer interface: build / forward / shape inference contract
//   - Parameter: named weights carrying their regularizer and constraint
//   - CBFD: binarizing projection layer with an auxiliary class-separation loss
//   - Strategies: activations, initializers, regularizers, constraints,
//     resolvable by name and serializable back to an Identifier
//   - Sequential: container that chains layers and collects their losses
//
// Unlike frameworks that accumulate auxiliary losses in hidden layer state,
// Forward returns the loss tensor explicitly and the caller owns the sum.
package nn

import (
	"errors"
	"fmt"
	"sync"

	"github.com/born-ml/cbfd/internal/tensor"
)

// Common errors.
var (
	// ErrInvalidConfig is returned for invalid construction arguments.
	ErrInvalidConfig = errors.New("invalid layer configuration")
	// ErrShape is returned when an input shape cannot be accepted.
	ErrShape = errors.New("invalid input shape")
	// ErrUnknownStrategy is returned when a strategy identifier cannot be resolved.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrNotBuilt is returned when weights are requested before the layer is built.
	ErrNotBuilt = errors.New("layer is not built")
)

// Layer is the contract every layer exposes to its host.
//
// The lifecycle is two-state: a layer starts unbuilt and becomes built on
// the first Build call (explicit, or implicit from Forward). Built layers
// never return to the unbuilt state.
type Layer interface {
	// Name returns the unique layer name.
	Name() string

	// Build allocates weights for the given input shape.
	Build(inputShape tensor.Shape) error

	// Forward computes the output of the layer and its auxiliary loss.
	//
	// The loss is nil for layers that do not contribute one.
	Forward(input *tensor.Tensor) (output, loss *tensor.Tensor, err error)

	// ComputeOutputShape infers the output shape without side effects.
	ComputeOutputShape(inputShape tensor.Shape) (tensor.Shape, error)

	// Parameters returns all weights of this layer. Empty before Build.
	Parameters() []*Parameter

	// ActivityPenalty returns the activity regularization term for an output
	// produced by Forward, or 0 when the layer has no activity regularizer.
	ActivityPenalty(output *tensor.Tensor) float64

	// StateDict returns the weights keyed by parameter name.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict replaces weights from a state dictionary.
	LoadStateDict(state map[string]*tensor.Tensor) error
}

// uids hands out per-prefix counters for default layer names.
var uids = struct {
	sync.Mutex
	next map[string]int
}{next: make(map[string]int)}

// uniqueName returns prefix for the first request, then prefix_1, prefix_2...
func uniqueName(prefix string) string {
	uids.Lock()
	defer uids.Unlock()

	n := uids.next[prefix]
	uids.next[prefix] = n + 1
	if n == 0 {
		return prefix
	}
	return fmt.Sprintf("%s_%d", prefix, n)
}
