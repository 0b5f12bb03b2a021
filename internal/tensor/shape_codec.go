package tensor

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Shapes serialize as lists with null for unknown dimensions:
//
//	[null, 4]

func (s Shape) dims() []*int {
	out := make([]*int, len(s))
	for i, dim := range s {
		if dim != Unknown {
			d := dim
			out[i] = &d
		}
	}
	return out
}

func shapeFromDims(dims []*int) Shape {
	if dims == nil {
		return nil
	}
	out := make(Shape, len(dims))
	for i, d := range dims {
		if d == nil {
			out[i] = Unknown
		} else {
			out[i] = *d
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (s Shape) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.dims())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Shape) UnmarshalJSON(data []byte) error {
	var dims []*int
	if err := json.Unmarshal(data, &dims); err != nil {
		return err
	}
	*s = shapeFromDims(dims)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Shape) MarshalYAML() (any, error) {
	if s == nil {
		return nil, nil
	}
	return s.dims(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Shape) UnmarshalYAML(node *yaml.Node) error {
	var dims []*int
	if err := node.Decode(&dims); err != nil {
		return err
	}
	*s = shapeFromDims(dims)
	return nil
}
