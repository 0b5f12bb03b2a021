package nn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cbfd/internal/tensor"
)

func mustRows(t *testing.T, rows [][]float64) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromRows(rows)
	require.NoError(t, err)
	return x
}

func randomInput(t *testing.T, seed uint64, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, seed))
	data := make([]float64, shape.NumElements())
	for i := range data {
		data[i] = r.NormFloat64()
	}
	x, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	return x
}

func newTestCBFD(t *testing.T, units int, opts ...Option) *CBFD {
	t.Helper()
	mw := tensor.Full(tensor.Shape{units}, 0.25)
	mb := tensor.Full(tensor.Shape{units}, 0.75)
	layer, err := NewCBFD(units, mw, mb, opts...)
	require.NoError(t, err)
	return layer
}

// TestCBFDForward_WorkedExample checks the hand-computed case
// units=2, m_w=[0,0], m_b=[1,1], x=[[1,-1]], W=I.
func TestCBFDForward_WorkedExample(t *testing.T) {
	layer, err := NewCBFD(2, tensor.Vector(0, 0), tensor.Vector(1, 1), WithKernelInitializer("identity"))
	require.NoError(t, err)

	b, f, err := layer.Forward(mustRows(t, [][]float64{{1, -1}}))
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{1, 2}, b.Shape())
	assert.Equal(t, []float64{1.5, 0.5}, b.Data())
	assert.Equal(t, tensor.Shape{1, 2}, f.Shape())
	assert.InDeltaSlice(t, []float64{-2248999, -248999}, f.Data(), 1e-6)

	sw, err := tensor.Sub(b, layer.MW())
	require.NoError(t, err)
	sb, err := tensor.Sub(b, layer.MB())
	require.NoError(t, err)
	diff, err := tensor.Sub(sw, sb)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, diff.Data())
}

// TestCBFDForward_MatchesFormula recomputes b and F element by element.
func TestCBFDForward_MatchesFormula(t *testing.T) {
	const units, inputDim = 4, 3
	layer := newTestCBFD(t, units, WithSeed(11))
	x := randomInput(t, 5, tensor.Shape{2, 5, inputDim})

	b, f, err := layer.Forward(x)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, 5, units}, b.Shape())
	require.Equal(t, b.Shape(), f.Shape())

	w := layer.Kernel().Tensor()
	rows := x.NumElements() / inputDim
	for r := 0; r < rows; r++ {
		y := make([]float64, units)
		var mean float64
		for u := 0; u < units; u++ {
			for k := 0; k < inputDim; k++ {
				y[u] += x.Data()[r*inputDim+k] * w.At(k, u)
			}
			mean += y[u] / units
		}
		for u := 0; u < units; u++ {
			wantB := 0.5*sign(y[u]) + 1
			wantF := (wantB - 0.25) - (wantB - 0.75) +
				1e3*math.Pow(wantB-0.5-y[u], 2) +
				1e3*math.Pow(wantB-0.5, 2) -
				1e6*math.Pow(wantB-mean, 2)

			assert.Equal(t, wantB, b.Data()[r*units+u])
			assert.InDelta(t, wantF, f.Data()[r*units+u], 1e-6*math.Max(1, math.Abs(wantF)))
		}
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// TestCBFDForward_BinaryCodes checks b takes only the three code values and F is finite.
func TestCBFDForward_BinaryCodes(t *testing.T) {
	for _, activation := range []string{"linear", "tanh", "relu", "softmax", "gelu"} {
		t.Run(activation, func(t *testing.T) {
			layer := newTestCBFD(t, 8, WithActivation(activation), WithSeed(3))
			b, f, err := layer.Forward(randomInput(t, 9, tensor.Shape{16, 6}))
			require.NoError(t, err)

			for _, v := range b.Data() {
				assert.Contains(t, []float64{0.5, 1, 1.5}, v)
			}
			assert.True(t, f.AllFinite())
		})
	}
}

// TestCBFDForward_ZeroProjection covers sign(0) = 0, i.e. b = 1.
func TestCBFDForward_ZeroProjection(t *testing.T) {
	layer, err := NewCBFD(3, tensor.Vector(0.1, 0.2, 0.3), tensor.Vector(1), WithKernelInitializer("zeros"))
	require.NoError(t, err)

	b, f, err := layer.Forward(mustRows(t, [][]float64{{1, 2}, {3, 4}}))
	require.NoError(t, err)

	for _, v := range b.Data() {
		assert.Equal(t, 1.0, v)
	}
	// (m_b - m_w) + 1e3*0.25 + 1e3*0.25 - 1e6*1
	want := []float64{0.9 - 999500, 0.8 - 999500, 0.7 - 999500}
	assert.InDeltaSlice(t, append(want, want...), f.Data(), 1e-6)
}

func TestNewCBFD_InvalidUnits(t *testing.T) {
	for _, units := range []int{0, -1} {
		_, err := NewCBFD(units, tensor.Vector(0), tensor.Vector(1))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}

func TestNewCBFD_References(t *testing.T) {
	scalar := tensor.Scalar(0.5)
	row, err := tensor.FromSlice([]float64{1, 2, 3}, tensor.Shape{1, 3})
	require.NoError(t, err)

	layer, err := NewCBFD(3, scalar, row)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, layer.MW().Data())
	assert.Equal(t, []float64{1, 2, 3}, layer.MB().Data())

	// The layer keeps its own copy.
	row.Set(100, 0, 0)
	assert.Equal(t, []float64{1, 2, 3}, layer.MB().Data())

	wrongBatch, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mw, mb *tensor.Tensor
	}{
		{"nil m_w", nil, tensor.Vector(1)},
		{"nil m_b", tensor.Vector(1), nil},
		{"wrong length", tensor.Vector(1, 2), tensor.Vector(1)},
		{"leading dim not 1", wrongBatch, tensor.Vector(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCBFD(3, tt.mw, tt.mb)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewCBFD_UnknownStrategy(t *testing.T) {
	opts := []Option{
		WithActivation("no_such_activation"),
		WithKernelInitializer("no_such_initializer"),
		WithKernelRegularizer("no_such_regularizer"),
		WithActivityRegularizer(Identifier{ClassName: "Nope"}),
		WithKernelConstraint("no_such_constraint"),
	}
	for _, opt := range opts {
		_, err := NewCBFD(2, tensor.Vector(0), tensor.Vector(1), opt)
		assert.ErrorIs(t, err, ErrUnknownStrategy)
	}
}

func TestCBFDBuild(t *testing.T) {
	layer := newTestCBFD(t, 4)
	assert.False(t, layer.Built())
	assert.Empty(t, layer.Parameters())

	assert.ErrorIs(t, layer.Build(tensor.Shape{5}), ErrShape)
	assert.ErrorIs(t, layer.Build(tensor.Shape{tensor.Unknown, tensor.Unknown}), ErrShape)
	assert.False(t, layer.Built())

	require.NoError(t, layer.Build(tensor.Shape{tensor.Unknown, 6}))
	assert.True(t, layer.Built())
	assert.Equal(t, 6, layer.InputDim())
	kernel := layer.Kernel().Tensor()
	assert.Equal(t, tensor.Shape{6, 4}, kernel.Shape())

	// Same input dim: no-op, kernel untouched.
	require.NoError(t, layer.EnsureBuilt(6))
	require.NoError(t, layer.Build(tensor.Shape{32, 10, 6}))
	assert.Same(t, kernel, layer.Kernel().Tensor())

	assert.ErrorIs(t, layer.EnsureBuilt(7), ErrShape)
	assert.ErrorIs(t, layer.EnsureBuilt(0), ErrShape)

	_, _, err := layer.Forward(randomInput(t, 1, tensor.Shape{2, 7}))
	assert.ErrorIs(t, err, ErrShape)
	_, _, err = layer.Forward(tensor.Vector(1, 2, 3, 4, 5, 6))
	assert.ErrorIs(t, err, ErrShape)
	_, _, err = layer.Forward(nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestCBFDBuild_FromInputShapeOptions(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		wantDim   int
		wantShape tensor.Shape
	}{
		{"input dim", []Option{WithInputDim(3)}, 3, tensor.Shape{tensor.Unknown, 3}},
		{"input shape", []Option{WithInputShape(7, 5)}, 5, tensor.Shape{tensor.Unknown, 7, 5}},
		{"batch input shape", []Option{WithBatchInputShape(8, 2)}, 2, tensor.Shape{8, 2}},
		{"input shape wins over input dim", []Option{WithInputDim(3), WithInputShape(4)}, 4, tensor.Shape{tensor.Unknown, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layer := newTestCBFD(t, 2, tt.opts...)
			assert.True(t, layer.Built())
			assert.Equal(t, tt.wantDim, layer.InputDim())
			assert.Equal(t, tt.wantShape, layer.Config().BatchInputShape)
		})
	}

	_, err := NewCBFD(2, tensor.Vector(0), tensor.Vector(1), WithInputShape())
	assert.ErrorIs(t, err, ErrShape)
}

func TestCBFDComputeOutputShape(t *testing.T) {
	layer := newTestCBFD(t, 5)

	out, err := layer.ComputeOutputShape(tensor.Shape{tensor.Unknown, 7, 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{tensor.Unknown, 7, 5}, out)

	again, err := layer.ComputeOutputShape(tensor.Shape{tensor.Unknown, 7, 3})
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.False(t, layer.Built(), "shape inference must not build")

	for _, bad := range []tensor.Shape{nil, {3}, {4, tensor.Unknown}} {
		_, err := layer.ComputeOutputShape(bad)
		assert.ErrorIs(t, err, ErrShape, "shape %v", bad)
	}
}

func TestCBFD_SeedIsReproducible(t *testing.T) {
	a := newTestCBFD(t, 3, WithSeed(42), WithInputDim(4))
	b := newTestCBFD(t, 3, WithSeed(42), WithInputDim(4))
	c := newTestCBFD(t, 3, WithSeed(43), WithInputDim(4))

	assert.Equal(t, a.Kernel().Tensor().Data(), b.Kernel().Tensor().Data())
	assert.NotEqual(t, a.Kernel().Tensor().Data(), c.Kernel().Tensor().Data())
}

func TestCBFD_DefaultNamesAreUnique(t *testing.T) {
	a := newTestCBFD(t, 1)
	b := newTestCBFD(t, 1)
	assert.NotEqual(t, a.Name(), b.Name())
	assert.Equal(t, "custom", newTestCBFD(t, 1, WithName("custom")).Name())
}

func TestCBFD_HostFacingExtras(t *testing.T) {
	layer := newTestCBFD(t, 3,
		WithInputDim(2),
		WithKernelInitializer(Constant{Value: -1}),
		WithKernelRegularizer("l2"),
		WithActivityRegularizer(L1(0.5)),
		WithKernelConstraint("non_neg"),
		WithTrainable(false),
	)

	params := layer.Parameters()
	require.Len(t, params, 1)
	kernel := params[0]
	assert.Equal(t, "kernel", kernel.Name())
	assert.False(t, kernel.Trainable())
	assert.InDelta(t, 0.01*6, kernel.Penalty(), 1e-12)

	b, _, err := layer.Forward(mustRows(t, [][]float64{{1, 1}}))
	require.NoError(t, err)
	assert.InDelta(t, 0.5*3*0.5, layer.ActivityPenalty(b), 1e-12)

	require.NoError(t, layer.ApplyConstraints())
	for _, v := range layer.Kernel().Tensor().Data() {
		assert.Zero(t, v)
	}

	mask := tensor.Vector(1, 0)
	assert.Same(t, mask, layer.ComputeMask(nil, mask))
	assert.Zero(t, newTestCBFD(t, 2).ActivityPenalty(b))
}

func TestCBFDStateDict(t *testing.T) {
	src := newTestCBFD(t, 2, WithInputDim(3), WithSeed(1))
	state := src.StateDict()
	require.Contains(t, state, "kernel")

	// Copies, not aliases.
	state["kernel"].Data()[0] = 99
	assert.NotEqual(t, 99.0, src.Kernel().Tensor().Data()[0])

	dst := newTestCBFD(t, 2)
	assert.Empty(t, dst.StateDict())
	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.True(t, dst.Built())
	assert.Equal(t, 3, dst.InputDim())
	assert.Equal(t, src.Kernel().Tensor().Data(), dst.Kernel().Tensor().Data())

	assert.ErrorIs(t, dst.LoadStateDict(map[string]*tensor.Tensor{}), ErrInvalidConfig)
	assert.ErrorIs(t, dst.LoadStateDict(map[string]*tensor.Tensor{
		"kernel": src.Kernel().Tensor(), "bias": tensor.Vector(1, 2),
	}), ErrInvalidConfig)
	assert.ErrorIs(t, dst.LoadStateDict(map[string]*tensor.Tensor{"kernel": tensor.Zeros(tensor.Shape{3, 5})}), ErrShape)
	assert.ErrorIs(t, dst.LoadStateDict(map[string]*tensor.Tensor{"kernel": tensor.Zeros(tensor.Shape{4, 2})}), ErrShape)
}
