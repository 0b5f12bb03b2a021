package nn

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// CustomClassName marks an Identifier that refers to a registered custom
// callable rather than a built-in strategy.
const CustomClassName = "Custom"

// Identifier is the serialized form of a strategy: a class name plus its
// configuration. It is what Config records store and what the strategy
// lookups accept.
//
// Example:
//
//	{"class_name": "VarianceScaling", "config": {"scale": 2, "mode": "fan_in"}}
type Identifier struct {
	ClassName string         `json:"class_name" yaml:"class_name"`
	Config    map[string]any `json:"config" yaml:"config"`
}

// Custom returns the Identifier of a registered custom strategy.
func Custom(name string) Identifier {
	return Identifier{ClassName: CustomClassName, Config: map[string]any{"name": name}}
}

// IsCustom reports whether id refers to a custom strategy.
func (id Identifier) IsCustom() bool {
	return id.ClassName == CustomClassName
}

// identifierRecord has Identifier's fields without its decoding methods.
type identifierRecord Identifier

// UnmarshalJSON accepts a bare name ("l2") as well as a full record.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*id = Identifier{ClassName: name}
		return nil
	}
	var r identifierRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*id = Identifier(r)
	return nil
}

// UnmarshalYAML accepts a bare name as well as a full record.
func (id *Identifier) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}
		*id = Identifier{ClassName: name}
		return nil
	}
	var r identifierRecord
	if err := node.Decode(&r); err != nil {
		return err
	}
	*id = Identifier(r)
	return nil
}

// identifierFrom normalizes the accepted identifier forms. It reports
// ok=false when v is not an identifier form at all.
func identifierFrom(v any) (Identifier, bool, error) {
	switch id := v.(type) {
	case string:
		return Identifier{ClassName: id}, true, nil
	case Identifier:
		return id, true, nil
	case *Identifier:
		if id == nil {
			return Identifier{}, false, nil
		}
		return *id, true, nil
	case map[string]any:
		name, ok := id["class_name"].(string)
		if !ok {
			return Identifier{}, true, fmt.Errorf("%w: identifier record without class_name: %v", ErrUnknownStrategy, id)
		}
		cfg, _ := id["config"].(map[string]any)
		return Identifier{ClassName: name, Config: cfg}, true, nil
	default:
		return Identifier{}, false, nil
	}
}

// canonicalKey folds "GlorotUniform", "glorot_uniform" and "glorotuniform"
// onto one registry key.
func canonicalKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

// customName extracts the callable name from a Custom identifier.
func customName(id Identifier) (string, error) {
	name, ok := id.Config["name"].(string)
	if !ok || name == "" {
		return "", fmt.Errorf("%w: custom identifier without a name", ErrUnknownStrategy)
	}
	return name, nil
}

// registry holds custom callables of one strategy kind.
type registry[T any] struct {
	mu    sync.RWMutex
	kind  string
	items map[string]T
}

func newRegistry[T any](kind string) *registry[T] {
	return &registry[T]{kind: kind, items: make(map[string]T)}
}

func (r *registry[T]) register(name string, v T, builtin func(string) bool) error {
	if name == "" {
		return fmt.Errorf("%w: empty %s name", ErrInvalidConfig, r.kind)
	}
	if builtin(canonicalKey(name)) {
		return fmt.Errorf("%w: %s %q shadows a built-in", ErrInvalidConfig, r.kind, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[name] = v
	return nil
}

func (r *registry[T]) lookup(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[name]
	if !ok {
		return v, fmt.Errorf("%w: %s %q", ErrUnknownStrategy, r.kind, name)
	}
	return v, nil
}

func (r *registry[T]) unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, name)
}

// Config value accessors. JSON decodes numbers as float64 while YAML
// decodes integers as int, so both are accepted.

func configFloat(cfg map[string]any, key string, def float64) (float64, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("%w: config %q is %T, want a number", ErrInvalidConfig, key, v)
	}
}

func configInt(cfg map[string]any, key string, def int) (int, error) {
	f, err := configFloat(cfg, key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: config %q is %v, want an integer", ErrInvalidConfig, key, f)
	}
	return int(f), nil
}

func configString(cfg map[string]any, key, def string) (string, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: config %q is %T, want a string", ErrInvalidConfig, key, v)
	}
	return s, nil
}

// configSeed returns nil when no seed is configured.
func configSeed(cfg map[string]any) (*uint64, error) {
	if v, ok := cfg["seed"]; !ok || v == nil {
		return nil, nil
	}
	n, err := configInt(cfg, "seed", 0)
	if err != nil {
		return nil, err
	}
	seed := uint64(n)
	return &seed, nil
}

// seedValue is the serialized form of an optional seed.
func seedValue(seed *uint64) any {
	if seed == nil {
		return nil
	}
	return *seed
}
