package params_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Centaurus99/Spearmint/internal/params"
)

var testBounds = params.Bounds{
	params.Bandwidth:   {Min: 1, Max: 200},
	params.Delay:       {Min: 0, Max: 150},
	params.UplinkQueue: {Min: 1, Max: 1000},
	params.UplinkLoss:  {Min: 0, Max: 0.1},
}

func TestDenormalizeMidpoint(t *testing.T) {
	p, entropy := params.Denormalize(params.Vector{0.5, 0.5, 0.5, 0.5}, testBounds)

	assert.InDelta(t, 100.5, p.Bandwidth, 1e-9)
	assert.Equal(t, 75, p.Delay)
	assert.Equal(t, 501, p.UplinkQueue)
	assert.InDelta(t, 1e-4*(math.Pow(1001, 0.5)-1), p.UplinkLoss, 1e-12)
	assert.Equal(t, 0.0, entropy)
}

func TestDenormalizeCeilsIntegers(t *testing.T) {
	p, _ := params.Denormalize(params.Vector{0.5, 0.123, 0.0421, 0.5}, testBounds)
	assert.Equal(t, 19, p.Delay, "18.45 ms rounds up")
	assert.Equal(t, 44, p.UplinkQueue, "43.06 packets rounds up")
}

func TestLinearRoundTrip(t *testing.T) {
	for _, unit := range []float64{0.05, 0.1, 0.25, 0.333, 0.5, 0.77, 0.9, 0.95} {
		for _, d := range []params.Dim{params.Bandwidth, params.Delay, params.UplinkQueue} {
			b := testBounds[d]
			assert.InDelta(t, unit, b.Normalize(b.Scale(unit)), 1e-12, "%s unit=%v", d, unit)
		}
		p, _ := params.Denormalize(params.Vector{unit, 0.5, 0.5, 0.5}, testBounds)
		assert.InDelta(t, unit, testBounds[params.Bandwidth].Normalize(p.Bandwidth), 1e-12)
	}
}

func TestLossEndpoints(t *testing.T) {
	p, _ := params.Denormalize(params.Vector{0.5, 0.5, 0.5, 0}, testBounds)
	assert.Equal(t, 0.0, p.UplinkLoss)

	p, _ = params.Denormalize(params.Vector{0.5, 0.5, 0.5, 1}, testBounds)
	assert.Less(t, p.UplinkLoss, testBounds[params.UplinkLoss].Max)
	assert.InDelta(t, testBounds[params.UplinkLoss].Max, p.UplinkLoss, 1e-3)
}

func TestLossClampedToProbability(t *testing.T) {
	b := testBounds
	b[params.UplinkLoss] = params.Bound{Min: 0, Max: 5}
	p, _ := params.Denormalize(params.Vector{0.5, 0.5, 0.5, 1}, b)
	assert.Equal(t, 1.0, p.UplinkLoss)
}

func TestEntropyZeroInsideMargin(t *testing.T) {
	for _, unit := range []float64{1.0 / 32, 0.1, 0.5, 0.9, 31.0 / 32} {
		_, entropy := params.Denormalize(params.Vector{unit, unit, unit, unit}, testBounds)
		assert.Equal(t, 0.0, entropy, "unit=%v", unit)
	}
	// The loss dimension has no lower-face penalty.
	_, entropy := params.Denormalize(params.Vector{0.5, 0.5, 0.5, 0}, testBounds)
	assert.Equal(t, 0.0, entropy)
}

func TestEntropyGrowsTowardsFaces(t *testing.T) {
	low := []float64{0.03, 0.01, 0.001, 1e-4, 0}
	high := []float64{0.97, 0.99, 0.999, 0.9999, 1}

	for _, d := range []params.Dim{params.Bandwidth, params.Delay, params.UplinkQueue} {
		prev := 0.0
		for _, unit := range low {
			v := params.Vector{0.5, 0.5, 0.5, 0.5}
			v[d] = unit
			_, entropy := params.Denormalize(v, testBounds)
			assert.Greater(t, entropy, prev, "%s unit=%v", d, unit)
			prev = entropy
		}
	}
	for d := params.Dim(0); d < params.NumDims; d++ {
		prev := 0.0
		for _, unit := range high {
			v := params.Vector{0.5, 0.5, 0.5, 0.5}
			v[d] = unit
			_, entropy := params.Denormalize(v, testBounds)
			assert.Greater(t, entropy, prev, "%s unit=%v", d, unit)
			prev = entropy
		}
	}
}

func TestEntropyAtExactFaceIsFinite(t *testing.T) {
	_, entropy := params.Denormalize(params.Vector{0, 1, 0.5, 1}, testBounds)
	// Each clamped face contributes -10*(5 + log2(2^-15)) = 100.
	assert.InDelta(t, 300, entropy, 1e-9)
}

func TestPhysicalString(t *testing.T) {
	p := params.Physical{Bandwidth: 12.345, Delay: 30, UplinkQueue: 250, UplinkLoss: 0.00123}
	assert.Equal(t, "bandwidth=12.3,delay=30,uplink_queue=250,uplink_loss=0.0012", p.String())
}

func TestFromSpearmint(t *testing.T) {
	v, err := params.FromSpearmint(map[string][]float64{
		"bandwidth":    {0.1},
		"delay":        {0.2},
		"uplink_queue": {0.3},
		"uplink_loss":  {0.4},
	})
	require.NoError(t, err)
	assert.Equal(t, params.Vector{0.1, 0.2, 0.3, 0.4}, v)

	_, err = params.FromSpearmint(map[string][]float64{"bandwidth": {0.1}})
	assert.Error(t, err)
}

func TestValidateRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name string
		v    params.Vector
		ok   bool
	}{
		{"midpoint", params.Vector{0.5, 0.5, 0.5, 0.5}, true},
		{"outside cube", params.Vector{-3, 2, 0, 1}, true},
		{"nan bandwidth", params.Vector{math.NaN(), 0.5, 0.5, 0.5}, false},
		{"inf delay", params.Vector{0.5, math.Inf(1), 0.5, 0.5}, false},
		{"negative inf loss", params.Vector{0.5, 0.5, 0.5, math.Inf(-1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, params.ErrNonFinite)
		})
	}
}

func TestFromSpearmintRejectsNaN(t *testing.T) {
	_, err := params.FromSpearmint(map[string][]float64{
		"bandwidth":    {math.NaN()},
		"delay":        {0.2},
		"uplink_queue": {0.3},
		"uplink_loss":  {0.4},
	})
	assert.ErrorIs(t, err, params.ErrNonFinite)
}
