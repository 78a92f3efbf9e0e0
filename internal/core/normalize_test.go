package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampedLinear_LowerIsBetter(t *testing.T) {
	slope := DefaultThresholds().Slope

	tests := []struct {
		raw  float64
		want float64
	}{
		{raw: 0, want: 1},
		{raw: 5, want: 1},
		{raw: 12.5, want: 0.5},
		{raw: 20, want: 0},
		{raw: 45, want: 0},
		{raw: math.NaN(), want: 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, slope.Normalize(tt.raw), 1e-12, "raw=%v", tt.raw)
	}
}

func TestClampedLinear_HigherIsBetter(t *testing.T) {
	c := ClampedLinear{Best: 10, Worst: 0}

	assert.Equal(t, 1.0, c.Normalize(12))
	assert.Equal(t, 1.0, c.Normalize(10))
	assert.InDelta(t, 0.5, c.Normalize(5), 1e-12)
	assert.Equal(t, 0.0, c.Normalize(0))
	assert.Equal(t, 0.0, c.Normalize(-3))
}

func TestClampedLinear_Monotonic(t *testing.T) {
	road := DefaultThresholds().Road

	prev := road.Normalize(0)
	for d := 50.0; d <= 2500; d += 50 {
		cur := road.Normalize(d)
		assert.LessOrEqual(t, cur, prev, "distance %v", d)
		assert.GreaterOrEqual(t, cur, 0.0)
		assert.LessOrEqual(t, cur, 1.0)
		prev = cur
	}
}

func TestClampedLinear_Score(t *testing.T) {
	grid := DefaultThresholds().Grid
	s := grid.Score(FeatureGrid, 2750, 0.1)

	assert.Equal(t, FeatureGrid, s.Name)
	assert.Equal(t, 2750.0, s.RawValue)
	assert.InDelta(t, 0.5, s.Normalized, 1e-12)
	assert.InDelta(t, 0.05, s.Contribution, 1e-12)
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())

	bad := DefaultThresholds()
	bad.Road = ClampedLinear{Best: 100, Worst: 100}
	assert.ErrorContains(t, bad.Validate(), "road")

	bad = DefaultThresholds()
	bad.Cloud = ClampedLinear{Best: 0, Worst: math.Inf(1)}
	assert.ErrorContains(t, bad.Validate(), "cloud")
}
