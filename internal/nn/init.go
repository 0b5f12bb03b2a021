package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/cbfd/internal/tensor"
)

// Initializer produces the initial value of a weight tensor.
type Initializer interface {
	// Initialize returns a tensor of the given, fully defined shape. src is
	// used unless the initializer carries its own seed.
	Initialize(shape tensor.Shape, src rand.Source) (*tensor.Tensor, error)

	// Identifier returns the serialized form of the initializer.
	Identifier() Identifier
}

// InitializerFunc is the signature of a custom initializer callable.
type InitializerFunc func(shape tensor.Shape, src rand.Source) (*tensor.Tensor, error)

// Zeros initializes every weight to 0.
type Zeros struct{}

// Initialize implements Initializer.
func (Zeros) Initialize(shape tensor.Shape, _ rand.Source) (*tensor.Tensor, error) {
	return tensor.New(shape...)
}

// Identifier implements Initializer.
func (Zeros) Identifier() Identifier {
	return Identifier{ClassName: "Zeros", Config: map[string]any{}}
}

// Ones initializes every weight to 1.
type Ones struct{}

// Initialize implements Initializer.
func (Ones) Initialize(shape tensor.Shape, _ rand.Source) (*tensor.Tensor, error) {
	return Constant{Value: 1}.Initialize(shape, nil)
}

// Identifier implements Initializer.
func (Ones) Identifier() Identifier {
	return Identifier{ClassName: "Ones", Config: map[string]any{}}
}

// Constant initializes every weight to Value.
type Constant struct {
	Value float64
}

// Initialize implements Initializer.
func (c Constant) Initialize(shape tensor.Shape, _ rand.Source) (*tensor.Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return tensor.Full(shape, c.Value), nil
}

// Identifier implements Initializer.
func (c Constant) Identifier() Identifier {
	return Identifier{ClassName: "Constant", Config: map[string]any{"value": c.Value}}
}

// RandomUniform draws weights from U(MinVal, MaxVal).
type RandomUniform struct {
	MinVal float64
	MaxVal float64
	Seed   *uint64
}

// Initialize implements Initializer.
func (r RandomUniform) Initialize(shape tensor.Shape, src rand.Source) (*tensor.Tensor, error) {
	if r.MaxVal < r.MinVal {
		return nil, fmt.Errorf("%w: random_uniform maxval %v < minval %v", ErrInvalidConfig, r.MaxVal, r.MinVal)
	}
	dist := distuv.Uniform{Min: r.MinVal, Max: r.MaxVal, Src: pickSource(r.Seed, src)}
	return sample(shape, dist.Rand)
}

// Identifier implements Initializer.
func (r RandomUniform) Identifier() Identifier {
	return Identifier{ClassName: "RandomUniform", Config: map[string]any{
		"minval": r.MinVal, "maxval": r.MaxVal, "seed": seedValue(r.Seed),
	}}
}

// RandomNormal draws weights from N(Mean, Stddev²).
type RandomNormal struct {
	Mean   float64
	Stddev float64
	Seed   *uint64
}

// Initialize implements Initializer.
func (r RandomNormal) Initialize(shape tensor.Shape, src rand.Source) (*tensor.Tensor, error) {
	if r.Stddev < 0 {
		return nil, fmt.Errorf("%w: random_normal stddev %v < 0", ErrInvalidConfig, r.Stddev)
	}
	dist := distuv.Normal{Mu: r.Mean, Sigma: r.Stddev, Src: pickSource(r.Seed, src)}
	return sample(shape, dist.Rand)
}

// Identifier implements Initializer.
func (r RandomNormal) Identifier() Identifier {
	return Identifier{ClassName: "RandomNormal", Config: map[string]any{
		"mean": r.Mean, "stddev": r.Stddev, "seed": seedValue(r.Seed),
	}}
}

// TruncatedNormal draws from N(Mean, Stddev²), redrawing values more than
// two standard deviations from the mean.
type TruncatedNormal struct {
	Mean   float64
	Stddev float64
	Seed   *uint64
}

// Initialize implements Initializer.
func (r TruncatedNormal) Initialize(shape tensor.Shape, src rand.Source) (*tensor.Tensor, error) {
	if r.Stddev < 0 {
		return nil, fmt.Errorf("%w: truncated_normal stddev %v < 0", ErrInvalidConfig, r.Stddev)
	}
	return sample(shape, truncatedNormal(r.Mean, r.Stddev, pickSource(r.Seed, src)))
}

// Identifier implements Initializer.
func (r TruncatedNormal) Identifier() Identifier {
	return Identifier{ClassName: "TruncatedNormal", Config: map[string]any{
		"mean": r.Mean, "stddev": r.Stddev, "seed": seedValue(r.Seed),
	}}
}

// Variance scaling modes and distributions.
const (
	FanIn  = "fan_in"
	FanOut = "fan_out"
	FanAvg = "fan_avg"

	DistNormal            = "normal"
	DistUntruncatedNormal = "untruncated_normal"
	DistTruncatedNormal   = "truncated_normal"
	DistUniform           = "uniform"
)

// truncatedStddevCorrection is the stddev of a unit normal truncated to
// (-2, 2); dividing by it restores the requested variance.
const truncatedStddevCorrection = 0.87962566103423978

// VarianceScaling adapts its scale to the fan of the weight tensor.
//
// With Distribution "truncated_normal" (alias "normal") or
// "untruncated_normal" samples are
// drawn with stddev = sqrt(Scale / n); with "uniform" they are drawn from
// U(-limit, limit) with limit = sqrt(3 * Scale / n), where n is fan_in,
// fan_out or their average depending on Mode.
//
// The Glorot, He and LeCun initializers are VarianceScaling presets.
type VarianceScaling struct {
	Scale        float64
	Mode         string
	Distribution string
	Seed         *uint64

	preset string // class name of a named preset, e.g. "GlorotUniform"
}

// GlorotUniform returns the Xavier/Glorot uniform initializer:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func GlorotUniform(seed *uint64) VarianceScaling {
	return VarianceScaling{Scale: 1, Mode: FanAvg, Distribution: DistUniform, Seed: seed, preset: "GlorotUniform"}
}

// GlorotNormal returns the Xavier/Glorot truncated normal initializer.
func GlorotNormal(seed *uint64) VarianceScaling {
	return VarianceScaling{Scale: 1, Mode: FanAvg, Distribution: DistTruncatedNormal, Seed: seed, preset: "GlorotNormal"}
}

// HeUniform returns the He uniform initializer.
func HeUniform(seed *uint64) VarianceScaling {
	return VarianceScaling{Scale: 2, Mode: FanIn, Distribution: DistUniform, Seed: seed, preset: "HeUniform"}
}

// HeNormal returns the He truncated normal initializer.
func HeNormal(seed *uint64) VarianceScaling {
	return VarianceScaling{Scale: 2, Mode: FanIn, Distribution: DistTruncatedNormal, Seed: seed, preset: "HeNormal"}
}

// LecunUniform returns the LeCun uniform initializer.
func LecunUniform(seed *uint64) VarianceScaling {
	return VarianceScaling{Scale: 1, Mode: FanIn, Distribution: DistUniform, Seed: seed, preset: "LecunUniform"}
}

// LecunNormal returns the LeCun truncated normal initializer.
func LecunNormal(seed *uint64) VarianceScaling {
	return VarianceScaling{Scale: 1, Mode: FanIn, Distribution: DistTruncatedNormal, Seed: seed, preset: "LecunNormal"}
}

func (v VarianceScaling) validate() error {
	if v.Scale <= 0 {
		return fmt.Errorf("%w: variance_scaling scale must be positive, got %v", ErrInvalidConfig, v.Scale)
	}
	switch v.Mode {
	case FanIn, FanOut, FanAvg:
	default:
		return fmt.Errorf("%w: variance_scaling mode %q", ErrInvalidConfig, v.Mode)
	}
	switch v.Distribution {
	case DistNormal, DistUntruncatedNormal, DistTruncatedNormal, DistUniform:
	default:
		return fmt.Errorf("%w: variance_scaling distribution %q", ErrInvalidConfig, v.Distribution)
	}
	return nil
}

// Initialize implements Initializer.
func (v VarianceScaling) Initialize(shape tensor.Shape, src rand.Source) (*tensor.Tensor, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}

	fanIn, fanOut := computeFans(shape)
	scale := v.Scale
	switch v.Mode {
	case FanIn:
		scale /= math.Max(1, fanIn)
	case FanOut:
		scale /= math.Max(1, fanOut)
	default:
		scale /= math.Max(1, (fanIn+fanOut)/2)
	}

	src = pickSource(v.Seed, src)
	switch v.Distribution {
	case DistTruncatedNormal, DistNormal:
		return sample(shape, truncatedNormal(0, math.Sqrt(scale)/truncatedStddevCorrection, src))
	case DistUniform:
		limit := math.Sqrt(3 * scale)
		return sample(shape, distuv.Uniform{Min: -limit, Max: limit, Src: src}.Rand)
	default:
		return sample(shape, distuv.Normal{Mu: 0, Sigma: math.Sqrt(scale), Src: src}.Rand)
	}
}

// Identifier implements Initializer. Presets serialize under their own
// class name with only the seed as configuration.
func (v VarianceScaling) Identifier() Identifier {
	if v.preset != "" {
		return Identifier{ClassName: v.preset, Config: map[string]any{"seed": seedValue(v.Seed)}}
	}
	return Identifier{ClassName: "VarianceScaling", Config: map[string]any{
		"scale": v.Scale, "mode": v.Mode, "distribution": v.Distribution, "seed": seedValue(v.Seed),
	}}
}

// Orthogonal produces a (semi-)orthogonal matrix over the flattened shape
// (prod(shape[:-1]), shape[-1]), scaled by Gain.
type Orthogonal struct {
	Gain float64
	Seed *uint64
}

// Initialize implements Initializer.
func (o Orthogonal) Initialize(shape tensor.Shape, src rand.Source) (*tensor.Tensor, error) {
	if len(shape) < 2 {
		return nil, fmt.Errorf("%w: orthogonal initializer needs at least 2 dimensions, got %v", ErrShape, shape)
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}

	numCols := shape.Last()
	numRows := shape.NumElements() / numCols
	rows, cols := max(numRows, numCols), min(numRows, numCols)

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: pickSource(o.Seed, src)}
	a := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			a.Set(i, j, normal.Rand())
		}
	}

	var qr mat.QR
	qr.Factorize(a)
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	// Thin Q with columns sign-corrected by diag(R) for a uniform distribution.
	thin := mat.DenseCopyOf(q.Slice(0, rows, 0, cols))
	for j := 0; j < cols; j++ {
		if r.At(j, j) < 0 {
			for i := 0; i < rows; i++ {
				thin.Set(i, j, -thin.At(i, j))
			}
		}
	}

	out := tensor.Zeros(shape)
	data := out.Data()
	for i := 0; i < numRows; i++ {
		for j := 0; j < numCols; j++ {
			var v float64
			if numRows < numCols {
				v = thin.At(j, i)
			} else {
				v = thin.At(i, j)
			}
			data[i*numCols+j] = o.Gain * v
		}
	}
	return out, nil
}

// Identifier implements Initializer.
func (o Orthogonal) Identifier() Identifier {
	return Identifier{ClassName: "Orthogonal", Config: map[string]any{"gain": o.Gain, "seed": seedValue(o.Seed)}}
}

// Identity produces Gain times the identity matrix; 2-D shapes only.
type Identity struct {
	Gain float64
}

// Initialize implements Initializer.
func (id Identity) Initialize(shape tensor.Shape, _ rand.Source) (*tensor.Tensor, error) {
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: identity initializer needs a 2-D shape, got %v", ErrShape, shape)
	}
	out, err := tensor.New(shape...)
	if err != nil {
		return nil, err
	}
	for i := 0; i < min(shape[0], shape[1]); i++ {
		out.Set(id.Gain, i, i)
	}
	return out, nil
}

// Identifier implements Initializer.
func (id Identity) Identifier() Identifier {
	return Identifier{ClassName: "Identity", Config: map[string]any{"gain": id.Gain}}
}

// customInitializer wraps a user callable under a registered name.
type customInitializer struct {
	name string
	fn   InitializerFunc
}

func (c customInitializer) Initialize(shape tensor.Shape, src rand.Source) (*tensor.Tensor, error) {
	t, err := c.fn(shape, src)
	if err != nil {
		return nil, err
	}
	if !t.Shape().Equal(shape) {
		return nil, fmt.Errorf("%w: initializer %q returned shape %v, want %v", ErrShape, c.name, t.Shape(), shape)
	}
	return t, nil
}

func (c customInitializer) Identifier() Identifier { return Custom(c.name) }

// CustomInitializer wraps fn as a named initializer.
func CustomInitializer(name string, fn InitializerFunc) Initializer {
	return customInitializer{name: name, fn: fn}
}

var customInitializers = newRegistry[InitializerFunc]("initializer")

// RegisterInitializer makes a custom initializer resolvable by name.
func RegisterInitializer(name string, fn InitializerFunc) error {
	return customInitializers.register(name, fn, isBuiltinInitializer)
}

// initializerFactories maps canonical keys (see canonicalKey) to
// constructors reading an identifier config.
var initializerFactories = map[string]func(cfg map[string]any) (Initializer, error){
	"zeros": func(map[string]any) (Initializer, error) { return Zeros{}, nil },
	"ones":  func(map[string]any) (Initializer, error) { return Ones{}, nil },
	"constant": func(cfg map[string]any) (Initializer, error) {
		v, err := configFloat(cfg, "value", 0)
		return Constant{Value: v}, err
	},
	"randomuniform": func(cfg map[string]any) (Initializer, error) {
		r := RandomUniform{}
		var err error
		if r.MinVal, err = configFloat(cfg, "minval", -0.05); err != nil {
			return nil, err
		}
		if r.MaxVal, err = configFloat(cfg, "maxval", 0.05); err != nil {
			return nil, err
		}
		r.Seed, err = configSeed(cfg)
		return r, err
	},
	"randomnormal": func(cfg map[string]any) (Initializer, error) {
		mean, stddev, seed, err := normalConfig(cfg)
		return RandomNormal{Mean: mean, Stddev: stddev, Seed: seed}, err
	},
	"truncatednormal": func(cfg map[string]any) (Initializer, error) {
		mean, stddev, seed, err := normalConfig(cfg)
		return TruncatedNormal{Mean: mean, Stddev: stddev, Seed: seed}, err
	},
	"variancescaling": func(cfg map[string]any) (Initializer, error) {
		v := VarianceScaling{}
		var err error
		if v.Scale, err = configFloat(cfg, "scale", 1); err != nil {
			return nil, err
		}
		if v.Mode, err = configString(cfg, "mode", FanIn); err != nil {
			return nil, err
		}
		if v.Distribution, err = configString(cfg, "distribution", DistTruncatedNormal); err != nil {
			return nil, err
		}
		if v.Seed, err = configSeed(cfg); err != nil {
			return nil, err
		}
		return v, v.validate()
	},
	"glorotuniform": seededPreset(GlorotUniform),
	"glorotnormal":  seededPreset(GlorotNormal),
	"heuniform":     seededPreset(HeUniform),
	"henormal":      seededPreset(HeNormal),
	"lecununiform":  seededPreset(LecunUniform),
	"lecunnormal":   seededPreset(LecunNormal),
	"orthogonal": func(cfg map[string]any) (Initializer, error) {
		gain, err := configFloat(cfg, "gain", 1)
		if err != nil {
			return nil, err
		}
		seed, err := configSeed(cfg)
		return Orthogonal{Gain: gain, Seed: seed}, err
	},
	"identity": func(cfg map[string]any) (Initializer, error) {
		gain, err := configFloat(cfg, "gain", 1)
		return Identity{Gain: gain}, err
	},
}

func init() {
	// Short aliases accepted by name lookups.
	initializerFactories["uniform"] = initializerFactories["randomuniform"]
	initializerFactories["normal"] = initializerFactories["randomnormal"]
	initializerFactories["one"] = initializerFactories["ones"]
	initializerFactories["zero"] = initializerFactories["zeros"]
}

func isBuiltinInitializer(key string) bool {
	_, ok := initializerFactories[key]
	return ok
}

func seededPreset(preset func(*uint64) VarianceScaling) func(map[string]any) (Initializer, error) {
	return func(cfg map[string]any) (Initializer, error) {
		seed, err := configSeed(cfg)
		if err != nil {
			return nil, err
		}
		return preset(seed), nil
	}
}

func normalConfig(cfg map[string]any) (mean, stddev float64, seed *uint64, err error) {
	if mean, err = configFloat(cfg, "mean", 0); err != nil {
		return
	}
	if stddev, err = configFloat(cfg, "stddev", 0.05); err != nil {
		return
	}
	seed, err = configSeed(cfg)
	return
}

// GetInitializer resolves an initializer identifier.
//
// Accepted forms: a name such as "glorot_uniform" or "GlorotUniform", an
// Identifier or identifier record, or an Initializer value. nil is an error:
// callers supply their own default.
func GetInitializer(id any) (Initializer, error) {
	if ini, ok := id.(Initializer); ok {
		return ini, nil
	}

	ident, ok, err := identifierFrom(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cannot interpret %T as an initializer", ErrUnknownStrategy, id)
	}

	name := ident.ClassName
	if ident.IsCustom() {
		if name, err = customName(ident); err != nil {
			return nil, err
		}
	} else if factory, ok := initializerFactories[canonicalKey(name)]; ok {
		return factory(ident.Config)
	}

	fn, err := customInitializers.lookup(name)
	if err != nil {
		return nil, err
	}
	return CustomInitializer(name, fn), nil
}

// SerializeInitializer returns the config form of an initializer.
func SerializeInitializer(i Initializer) *Identifier {
	id := i.Identifier()
	return &id
}

// computeFans returns (fan_in, fan_out) for a weight shape. Kernels of
// rank > 2 multiply in the receptive field size.
func computeFans(shape tensor.Shape) (fanIn, fanOut float64) {
	switch len(shape) {
	case 0:
		return 1, 1
	case 1:
		return float64(shape[0]), float64(shape[0])
	case 2:
		return float64(shape[0]), float64(shape[1])
	default:
		receptive := 1
		for _, d := range shape[:len(shape)-2] {
			receptive *= d
		}
		return float64(shape[len(shape)-2] * receptive), float64(shape[len(shape)-1] * receptive)
	}
}

// pickSource prefers an initializer's own seed over the caller's source.
func pickSource(seed *uint64, src rand.Source) rand.Source {
	if seed != nil {
		return rand.NewPCG(*seed, *seed)
	}
	if src == nil {
		return rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return src
}

// sample fills a tensor of the given shape with draws from next.
func sample(shape tensor.Shape, next func() float64) (*tensor.Tensor, error) {
	out, err := tensor.New(shape...)
	if err != nil {
		return nil, err
	}
	data := out.Data()
	for i := range data {
		data[i] = next()
	}
	return out, nil
}

// truncatedNormal returns a sampler rejecting draws beyond two stddevs.
func truncatedNormal(mean, stddev float64, src rand.Source) func() float64 {
	dist := distuv.Normal{Mu: mean, Sigma: stddev, Src: src}
	return func() float64 {
		if stddev == 0 {
			return mean
		}
		for {
			v := dist.Rand()
			if math.Abs(v-mean) <= 2*stddev {
				return v
			}
		}
	}
}
