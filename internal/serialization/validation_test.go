package serialization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationType(t *testing.T, err error) string {
	t.Helper()
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected *ValidationError, got %T: %v", err, err)
	return vErr.Type
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantType string
	}{
		{
			name: "adjacent regions",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 64},
				{Name: "b", Offset: 64, Size: 32},
			},
			dataSize: 96,
		},
		{
			name: "overlap by one byte",
			tensors: []TensorMeta{
				{Name: "b", Offset: 63, Size: 8},
				{Name: "a", Offset: 0, Size: 64},
			},
			dataSize: 128,
			wantType: "offset_overlap",
		},
		{
			name:     "past the data section",
			tensors:  []TensorMeta{{Name: "a", Offset: 8, Size: 64}},
			dataSize: 64,
			wantType: "out_of_bounds",
		},
		{
			name:     "negative offset",
			tensors:  []TensorMeta{{Name: "a", Offset: -8, Size: 8}},
			dataSize: 64,
			wantType: "negative_offset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantType, validationType(t, err))
		})
	}
}

func TestValidateTensorOffsets_TooManyTensors(t *testing.T) {
	tensors := make([]TensorMeta, MaxTensorCount+1)
	err := ValidateTensorOffsets(tensors, 0)
	assert.Equal(t, "too_many_tensors", validationType(t, err))
}

func TestValidateTensorName(t *testing.T) {
	for _, name := range []string{"kernel", "0.kernel", "m_w", "layer_1.bias"} {
		assert.NoError(t, ValidateTensorName(name), name)
	}

	bad := map[string]string{
		"":               "invalid_name",
		"../etc/passwd":  "invalid_name",
		"a/b":            "invalid_name",
		`a\b`:            "invalid_name",
		"kernel\x00.bin": "invalid_name",
		string(make([]byte, MaxTensorNameLen+1)): "name_too_long",
	}
	for name, want := range bad {
		assert.Equal(t, want, validationType(t, ValidateTensorName(name)))
	}
}

func TestValidateTensorMeta(t *testing.T) {
	ok := TensorMeta{Name: "kernel", DType: DTypeFloat64, Shape: []int{3, 2}, Size: 48}
	require.NoError(t, ValidateTensorMeta(ok))

	wrongDType := ok
	wrongDType.DType = "float32"
	assert.Equal(t, "unsupported_dtype", validationType(t, ValidateTensorMeta(wrongDType)))

	wrongSize := ok
	wrongSize.Size = 40
	assert.Equal(t, "size_mismatch", validationType(t, ValidateTensorMeta(wrongSize)))

	zeroDim := ok
	zeroDim.Shape = []int{0, 2}
	assert.Equal(t, "invalid_shape", validationType(t, ValidateTensorMeta(zeroDim)))
}

func TestValidateHeader_Levels(t *testing.T) {
	h := &Header{Tensors: []TensorMeta{
		{Name: "a", DType: DTypeFloat64, Shape: []int{2}, Offset: 0, Size: 16},
		{Name: "b", DType: DTypeFloat64, Shape: []int{2}, Offset: 8, Size: 16},
	}}

	assert.Equal(t, "offset_overlap", validationType(t, ValidateHeader(h, 32, ValidationStrict)))
	assert.NoError(t, ValidateHeader(h, 32, ValidationNormal))
	assert.NoError(t, ValidateHeader(h, 32, ValidationNone))

	dup := &Header{Tensors: []TensorMeta{
		{Name: "a", DType: DTypeFloat64, Shape: []int{1}, Offset: 0, Size: 8},
		{Name: "a", DType: DTypeFloat64, Shape: []int{1}, Offset: 8, Size: 8},
	}}
	assert.Equal(t, "duplicate_name", validationType(t, ValidateHeader(dup, 16, ValidationNormal)))
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, `offset_overlap: tensors "a" and "b": x`,
		(&ValidationError{Type: "offset_overlap", Tensor: "a", Tensor2: "b", Details: "x"}).Error())
	assert.Equal(t, `invalid_name: tensor "a": x`,
		(&ValidationError{Type: "invalid_name", Tensor: "a", Details: "x"}).Error())
	assert.Equal(t, "too_many_tensors: x",
		(&ValidationError{Type: "too_many_tensors", Details: "x"}).Error())
}
