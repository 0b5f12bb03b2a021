package nn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cbfd/internal/tensor"
)

func TestL1L2Penalty(t *testing.T) {
	w := tensor.Vector(1, -2, 3)

	assert.InDelta(t, 0.6, L1(0.1).Penalty(w), 1e-12)
	assert.InDelta(t, 1.4, L2(0.1).Penalty(w), 1e-12)
	assert.InDelta(t, 0.6+1.4, NewL1L2(0.1, 0.1).Penalty(w), 1e-12)
	assert.Zero(t, NewL1L2(0, 0).Penalty(w))
}

func TestGetRegularizer_Defaults(t *testing.T) {
	w := tensor.Vector(1, -1)

	tests := map[string]float64{
		"l1":    0.01 * 2,
		"L2":    0.01 * 2,
		"l1_l2": 0.01*2 + 0.01*2,
	}
	for name, want := range tests {
		r, err := GetRegularizer(name)
		require.NoError(t, err, name)
		assert.InDelta(t, want, r.Penalty(w), 1e-12, name)
	}

	r, err := GetRegularizer(nil)
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Nil(t, SerializeRegularizer(nil))

	var none *Identifier
	r, err = GetRegularizer(none)
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = GetRegularizer("l3")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestRegularizer_IdentifierRoundTrip(t *testing.T) {
	for _, r := range []Regularizer{L1(0.3), L2(0.2), NewL1L2(0.1, 0.05)} {
		data, err := json.Marshal(SerializeRegularizer(r))
		require.NoError(t, err)

		var record map[string]any
		require.NoError(t, json.Unmarshal(data, &record))
		restored, err := GetRegularizer(record)
		require.NoError(t, err)
		assert.Equal(t, r, restored)
	}
}

func TestCustomRegularizer(t *testing.T) {
	count := func(t *tensor.Tensor) float64 { return float64(t.NumElements()) }
	require.NoError(t, RegisterRegularizer("count", count))
	t.Cleanup(func() { customRegularizers.unregister("count") })

	r, err := GetRegularizer(Custom("count"))
	require.NoError(t, err)
	assert.Equal(t, 3.0, r.Penalty(tensor.Vector(1, 2, 3)))
	assert.Equal(t, &Identifier{ClassName: CustomClassName, Config: map[string]any{"name": "count"}}, SerializeRegularizer(r))

	assert.ErrorIs(t, RegisterRegularizer("l1_l2", count), ErrInvalidConfig)
}
