package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/cbfd/internal/tensor"
)

// Losses collects everything a forward pass adds to the training objective.
//
// Layers return their auxiliary loss explicitly; Sequential gathers those
// tensors here together with the regularization terms so that the caller
// decides how to reduce and weight them.
type Losses struct {
	// Auxiliary holds the per-element loss tensor of every layer that
	// returned one, in layer order.
	Auxiliary []*tensor.Tensor

	// Activity holds the activity regularization term of every layer.
	Activity []float64

	// Kernel holds the weight regularization term of every parameter
	// that has a regularizer.
	Kernel []float64
}

// Total sums all auxiliary loss elements and regularization terms.
func (l Losses) Total() float64 {
	var total float64
	for _, t := range l.Auxiliary {
		total += t.Sum()
	}
	for _, v := range l.Activity {
		total += v
	}
	for _, v := range l.Kernel {
		total += v
	}
	return total
}

// Sequential is a container that chains layers together.
//
// Each layer's output becomes the next layer's input. Auxiliary losses are
// not kept in layer state: Forward returns them alongside the output.
//
// Example:
//
//	model := nn.NewSequential(dense, cbfd)
//	out, losses, err := model.Forward(x)
//	objective := losses.Total()
type Sequential struct {
	layers []Layer
}

// NewSequential creates a new Sequential container.
func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{layers: layers}
}

// Add appends a layer to the sequence.
func (s *Sequential) Add(layer Layer) {
	s.layers = append(s.layers, layer)
}

// Len returns the number of layers in the sequence.
func (s *Sequential) Len() int {
	return len(s.layers)
}

// Layer returns the layer at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential) Layer(index int) Layer {
	if index < 0 || index >= len(s.layers) {
		panic("Sequential.Layer: index out of bounds")
	}
	return s.layers[index]
}

// Build builds every layer, threading the inferred shapes through.
func (s *Sequential) Build(inputShape tensor.Shape) error {
	shape := inputShape
	for i, layer := range s.layers {
		if err := layer.Build(shape); err != nil {
			return fmt.Errorf("build layer %d (%s): %w", i, layer.Name(), err)
		}
		next, err := layer.ComputeOutputShape(shape)
		if err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, layer.Name(), err)
		}
		shape = next
	}
	return nil
}

// Forward applies all layers in sequence and collects their losses.
func (s *Sequential) Forward(input *tensor.Tensor) (*tensor.Tensor, Losses, error) {
	var losses Losses
	output := input

	for i, layer := range s.layers {
		out, loss, err := layer.Forward(output)
		if err != nil {
			return nil, Losses{}, fmt.Errorf("layer %d (%s): %w", i, layer.Name(), err)
		}
		if loss != nil {
			losses.Auxiliary = append(losses.Auxiliary, loss)
		}
		losses.Activity = append(losses.Activity, layer.ActivityPenalty(out))
		output = out
	}

	for _, p := range s.Parameters() {
		if p.Regularizer() != nil {
			losses.Kernel = append(losses.Kernel, p.Penalty())
		}
	}
	return output, losses, nil
}

// ComputeOutputShape chains shape inference through every layer.
func (s *Sequential) ComputeOutputShape(inputShape tensor.Shape) (tensor.Shape, error) {
	shape := inputShape
	for i, layer := range s.layers {
		next, err := layer.ComputeOutputShape(shape)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, layer.Name(), err)
		}
		shape = next
	}
	return shape, nil
}

// Parameters returns all weights from all layers.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, layer := range s.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// ApplyConstraints projects every constrained parameter. The host calls it
// after each optimizer step.
func (s *Sequential) ApplyConstraints() error {
	for _, p := range s.Parameters() {
		if err := p.ApplyConstraint(); err != nil {
			return err
		}
	}
	return nil
}

// StateDict returns a map of weight names to tensors.
//
// Weights are prefixed with their layer index (e.g., "0.kernel", "0.bias",
// "1.kernel") to avoid name collisions.
func (s *Sequential) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor)
	for i, layer := range s.layers {
		for name, t := range layer.StateDict() {
			state[fmt.Sprintf("%d.%s", i, name)] = t
		}
	}
	return state
}

// LoadStateDict loads weights from a state dictionary keyed as StateDict
// produces them.
func (s *Sequential) LoadStateDict(state map[string]*tensor.Tensor) error {
	for i, layer := range s.layers {
		prefix := fmt.Sprintf("%d.", i)
		layerState := make(map[string]*tensor.Tensor)
		for key, t := range state {
			if name, ok := strings.CutPrefix(key, prefix); ok && name != "" {
				layerState[name] = t
			}
		}

		// Layers without weights have nothing to load.
		if len(layerState) > 0 {
			if err := layer.LoadStateDict(layerState); err != nil {
				return fmt.Errorf("failed to load layer %d: %w", i, err)
			}
		}
	}
	return nil
}
