package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/cbfd/internal/parallel"
)

// kernelConfig splits large elementwise kernels across CPUs.
var kernelConfig = parallel.DefaultConfig()

// Add returns a + b with NumPy broadcasting.
func Add(a, b *Tensor) (*Tensor, error) {
	return broadcastBinary(a, b, func(x, y float64) float64 { return x + y })
}

// Sub returns a - b with NumPy broadcasting.
func Sub(a, b *Tensor) (*Tensor, error) {
	return broadcastBinary(a, b, func(x, y float64) float64 { return x - y })
}

// Mul returns the elementwise product a * b with NumPy broadcasting.
func Mul(a, b *Tensor) (*Tensor, error) {
	return broadcastBinary(a, b, func(x, y float64) float64 { return x * y })
}

// Apply returns fn applied to every element of t.
func (t *Tensor) Apply(fn func(float64) float64) *Tensor {
	out := &Tensor{data: make([]float64, len(t.data)), shape: t.shape.Clone()}
	parallel.Range(len(t.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = fn(t.data[i])
		}
	}, kernelConfig)
	return out
}

// Scale returns alpha * t.
func (t *Tensor) Scale(alpha float64) *Tensor {
	out := t.Clone()
	floats.Scale(alpha, out.data)
	return out
}

// AddScalar returns t + c.
func (t *Tensor) AddScalar(c float64) *Tensor {
	out := t.Clone()
	floats.AddConst(c, out.data)
	return out
}

// Square returns t². Elementwise.
func (t *Tensor) Square() *Tensor {
	return t.Apply(func(v float64) float64 { return v * v })
}

// Sign returns -1, 0 or 1 per element. NaN stays NaN.
func (t *Tensor) Sign() *Tensor {
	return t.Apply(sign)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return v // 0, -0 or NaN
	}
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 {
	return floats.Sum(t.data)
}

// MeanLastAxis averages over the trailing axis and keeps it as a size-1
// axis, so the result broadcasts back against t.
func (t *Tensor) MeanLastAxis() (*Tensor, error) {
	if len(t.shape) == 0 {
		return nil, fmt.Errorf("%w: mean over last axis of a scalar", ErrInvalidShape)
	}
	n := t.shape.Last()
	rows := t.shape[:len(t.shape)-1].NumElements()
	out := &Tensor{data: make([]float64, rows), shape: t.shape.WithLast(1)}
	parallel.For(rows, func(r int) {
		out.data[r] = floats.Sum(t.data[r*n:(r+1)*n]) / float64(n)
	}, kernelConfig)
	return out, nil
}

// MatMul contracts the last axis of a with the first axis of the 2-D
// matrix w: (..., k) · (k, n) → (..., n). Leading axes of a are treated
// as a batch.
func MatMul(a, w *Tensor) (*Tensor, error) {
	if len(a.shape) < 1 || len(w.shape) != 2 {
		return nil, fmt.Errorf("%w: matmul expects (..., k) · (k, n), got %v · %v", ErrShapeMismatch, a.shape, w.shape)
	}
	k := a.shape.Last()
	if k != w.shape[0] {
		return nil, fmt.Errorf("%w: matmul inner dimensions differ: %v · %v", ErrShapeMismatch, a.shape, w.shape)
	}
	n := w.shape[1]
	rows := a.shape[:len(a.shape)-1].NumElements()

	out := &Tensor{data: make([]float64, rows*n), shape: a.shape.WithLast(n)}
	if rows == 0 || n == 0 || k == 0 {
		return out, nil // gonum rejects empty matrices
	}
	dst := mat.NewDense(rows, n, out.data)
	dst.Mul(mat.NewDense(rows, k, a.data), mat.NewDense(k, n, w.data))
	return out, nil
}

// Transpose returns the transpose of a 2-D tensor.
func (t *Tensor) Transpose() (*Tensor, error) {
	if len(t.shape) != 2 {
		return nil, fmt.Errorf("%w: transpose expects 2-D, got %v", ErrInvalidShape, t.shape)
	}
	r, c := t.shape[0], t.shape[1]
	out := &Tensor{data: make([]float64, len(t.data)), shape: Shape{c, r}}
	dst := mat.NewDense(c, r, out.data)
	dst.Copy(mat.NewDense(r, c, t.data).T())
	return out, nil
}

// broadcastBinary applies fn elementwise over the broadcast of a and b.
func broadcastBinary(a, b *Tensor, fn func(x, y float64) float64) (*Tensor, error) {
	shape, needsBroadcast, err := BroadcastShapes(a.shape, b.shape)
	if err != nil {
		return nil, err
	}

	out := &Tensor{data: make([]float64, shape.NumElements()), shape: shape}
	if !needsBroadcast {
		parallel.Range(len(out.data), func(start, end int) {
			for i := start; i < end; i++ {
				out.data[i] = fn(a.data[i], b.data[i])
			}
		}, kernelConfig)
		return out, nil
	}

	aStrides := broadcastStrides(a.shape, shape)
	bStrides := broadcastStrides(b.shape, shape)
	index := make([]int, len(shape))
	var aOff, bOff int
	for i := range out.data {
		out.data[i] = fn(a.data[aOff], b.data[bOff])

		// Advance the multi-index, carrying from the innermost axis.
		for d := len(shape) - 1; d >= 0; d-- {
			index[d]++
			aOff += aStrides[d]
			bOff += bStrides[d]
			if index[d] < shape[d] {
				break
			}
			aOff -= aStrides[d] * shape[d]
			bOff -= bStrides[d] * shape[d]
			index[d] = 0
		}
	}
	return out, nil
}

// broadcastStrides returns strides of src aligned to the rank of dst, with
// zero strides on broadcast axes.
func broadcastStrides(src, dst Shape) []int {
	strides := make([]int, len(dst))
	srcStrides := src.ComputeStrides()
	offset := len(dst) - len(src)
	for i := range src {
		if src[i] != 1 || dst[offset+i] == 1 {
			strides[offset+i] = srcStrides[i]
		}
	}
	return strides
}

// isFinite reports whether v is neither NaN nor ±Inf.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
