package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_Basics(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, 3, s.Rank())
	assert.Equal(t, 4, s.Last())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.True(t, s.Equal(Shape{2, 3, 4}))
	assert.False(t, s.Equal(Shape{2, 3}))
	assert.Equal(t, Shape{2, 3, 7}, s.WithLast(7))
	assert.Equal(t, Shape{2, 3, 4}, s, "WithLast must not modify the receiver")

	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, Unknown, Shape{}.Last())
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, Shape{1, 2}.Validate())

	err := Shape{2, 0}.Validate()
	require.ErrorIs(t, err, ErrInvalidShape)

	err = Shape{Unknown, 3}.Validate()
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestShape_IsFullyDefined(t *testing.T) {
	assert.True(t, Shape{4, 5}.IsFullyDefined())
	assert.False(t, Shape{Unknown, 5}.IsFullyDefined())
}

func TestShape_String(t *testing.T) {
	assert.Equal(t, "(None, 3)", Shape{Unknown, 3}.String())
	assert.Equal(t, "(4,)", Shape{4}.String())
	assert.Equal(t, "()", Shape{}.String())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{1, 5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{Shape{5}, Shape{2, 3, 5}, Shape{2, 3, 5}, true, false},
		{Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		got, broadcast, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrShapeMismatch)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v + %v", tt.a, tt.b)
		assert.Equal(t, tt.broadcast, broadcast, "%v + %v", tt.a, tt.b)
	}
}

func TestFromSlice(t *testing.T) {
	src := []float64{1, 2, 3, 4, 5, 6}
	x, err := FromSlice(src, Shape{2, 3})
	require.NoError(t, err)

	src[0] = 100
	assert.Equal(t, 1.0, x.At(0, 0), "FromSlice must copy its input")
	assert.Equal(t, 6.0, x.At(1, 2))

	_, err = FromSlice(src, Shape{4, 2})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestFromRows(t *testing.T) {
	x, err := FromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 2}, x.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4}, x.Data())

	_, err = FromRows([][]float64{{1, 2}, {3}})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestReshape(t *testing.T) {
	x := Vector(1, 2, 3, 4, 5, 6)
	y, err := x.Reshape(3, 2)
	require.NoError(t, err)
	assert.Equal(t, 4.0, y.At(1, 1))

	_, err = x.Reshape(4, 2)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSetAt(t *testing.T) {
	x := Zeros(Shape{2, 2, 2})
	x.Set(7, 1, 0, 1)
	assert.Equal(t, 7.0, x.Data()[5])
	assert.Panics(t, func() { x.At(2, 0, 0) })
}

func TestAdd_Broadcast(t *testing.T) {
	x, err := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)

	row := Vector(10, 20, 30)
	got, err := Add(x, row)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 22, 33, 14, 25, 36}, got.Data())

	col, err := FromSlice([]float64{100, 200}, Shape{2, 1})
	require.NoError(t, err)
	got, err = Sub(x, col)
	require.NoError(t, err)
	assert.Equal(t, []float64{-99, -98, -97, -196, -195, -194}, got.Data())

	_, err = Add(x, Vector(1, 2))
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMul_Scalar(t *testing.T) {
	x := Vector(1, 2, 3)
	got, err := Mul(x, Scalar(2))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 6}, got.Data())
}

func TestElementwise(t *testing.T) {
	x := Vector(-2, 0, 3)

	assert.Equal(t, []float64{-1, 0, 1}, x.Sign().Data())
	assert.Equal(t, []float64{4, 0, 9}, x.Square().Data())
	assert.Equal(t, []float64{-1, 1, 4}, x.AddScalar(1).Data())
	assert.Equal(t, []float64{-1, 0, 1.5}, x.Scale(0.5).Data())
	assert.Equal(t, 1.0, x.Sum())
	assert.Equal(t, []float64{-2, 0, 3}, x.Data(), "ops must not mutate their operand")

	assert.True(t, math.IsNaN(Vector(math.NaN()).Sign().Data()[0]))
}

func TestMeanLastAxis(t *testing.T) {
	x, err := FromRows([][]float64{{1, 2, 3}, {4, 4, 4}})
	require.NoError(t, err)

	m, err := x.MeanLastAxis()
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 1}, m.Shape())
	assert.Equal(t, []float64{2, 4}, m.Data())

	_, err = Scalar(1).MeanLastAxis()
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestMatMul(t *testing.T) {
	x, err := FromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	w, err := FromRows([][]float64{{1, 0, 1}, {0, 1, 1}})
	require.NoError(t, err)

	z, err := MatMul(x, w)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3}, z.Shape())
	assert.Equal(t, []float64{1, 2, 3, 3, 4, 7}, z.Data())
}

func TestMatMul_Batched(t *testing.T) {
	x, err := FromSlice([]float64{1, 2, 3, 4, 5, 6, 7, 8}, Shape{2, 2, 2})
	require.NoError(t, err)
	w, err := FromRows([][]float64{{1}, {1}})
	require.NoError(t, err)

	z, err := MatMul(x, w)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 2, 1}, z.Shape())
	assert.Equal(t, []float64{3, 7, 11, 15}, z.Data())
}

func TestMatMul_Mismatch(t *testing.T) {
	x := Zeros(Shape{2, 3})
	w := Zeros(Shape{2, 3})
	_, err := MatMul(x, w)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestTranspose(t *testing.T) {
	x, err := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	y, err := x.Transpose()
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, y.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, y.Data())
}

func TestAllFinite(t *testing.T) {
	assert.True(t, Vector(1, 2).AllFinite())
	assert.False(t, Vector(1, math.Inf(1)).AllFinite())
	assert.False(t, Vector(math.NaN()).AllFinite())
}

func TestKernels_LargeTensors(t *testing.T) {
	n := 3 * kernelConfig.MinChunkSize
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i%7) - 3
	}
	x, err := FromSlice(data, Shape{n / 4, 4})
	require.NoError(t, err)

	sq := x.Square()
	diff, err := Sub(sq, x)
	require.NoError(t, err)
	mean, err := x.MeanLastAxis()
	require.NoError(t, err)
	require.Equal(t, Shape{n / 4, 1}, mean.Shape())

	for i, v := range data {
		assert.Equal(t, v*v, sq.Data()[i])
		assert.Equal(t, v*v-v, diff.Data()[i])
	}
	for r := 0; r < n/4; r++ {
		row := data[r*4 : r*4+4]
		assert.InDelta(t, (row[0]+row[1]+row[2]+row[3])/4, mean.Data()[r], 1e-12)
	}
}
