package anomaly

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAnomaly(t *testing.T) {
	s := NewScorer(DefaultThreshold)

	cases := []struct {
		name          string
		value, liters float64
		want          bool
	}{
		{"normal gasoline price", 250.00, 40.0, false},
		{"way above threshold", 600.00, 20.0, true},
		{"exactly at threshold", 8.12, 1.0, false},
		{"exactly at threshold scaled", 16.24, 2.0, false},
		{"just above threshold", 8.13, 1.0, true},
		{"zero liters", 250.00, 0, false},
		{"zero liters huge value", 1e9, 0, false},
		{"negative value", -100, 10, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s.IsAnomaly(tc.value, tc.liters))
		})
	}
}

func TestScore(t *testing.T) {
	s := NewScorer(DefaultThreshold)

	assert.InDelta(t, 0.385, s.Score(250.00, 40.0), 0.001)
	assert.Equal(t, 1.0, s.Score(600.00, 20.0))
	assert.Equal(t, 0.5, s.Score(8.12, 1.0))
	assert.Equal(t, 0.5, s.Score(16.24, 2.0))
	assert.Equal(t, 0.0, s.Score(0, 10))
	assert.InDelta(t, 0.75, s.Score(8.12*1.5, 1.0), 1e-9)
}

func TestScore_ZeroLitersIsZeroRegardlessOfValue(t *testing.T) {
	s := NewScorer(DefaultThreshold)
	for _, value := range []float64{0, 1, 250, 1e12, -5} {
		assert.Equal(t, 0.0, s.Score(value, 0), "value=%v", value)
		assert.False(t, s.IsAnomaly(value, 0), "value=%v", value)
	}
}

func TestScore_StaysWithinUnitInterval(t *testing.T) {
	s := NewScorer(DefaultThreshold)
	for value := 0.0; value <= 5000; value += 7.3 {
		score := s.Score(value, 20)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestScore_MonotonicInValue(t *testing.T) {
	s := NewScorer(DefaultThreshold)
	for _, liters := range []float64{0.5, 1, 20, 40, 333.3} {
		prev := -1.0
		for value := 0.0; value <= 10000; value += 3.7 {
			score := s.Score(value, liters)
			assert.GreaterOrEqual(t, score, prev, "liters=%v value=%v", liters, value)
			prev = score
		}
	}
}

func TestScore_NegativeInputsDoNotPanic(t *testing.T) {
	s := NewScorer(DefaultThreshold)
	assert.NotPanics(t, func() {
		_ = s.Score(-100, 10)
		_ = s.Score(100, -10)
		_ = s.IsAnomaly(-100, -10)
	})
	assert.InDelta(t, (-10/DefaultThreshold)*0.5, s.Score(-100, 10), 1e-12)
}

func TestScorer_IsPure(t *testing.T) {
	s := NewScorer(DefaultThreshold)
	for i := 0; i < 3; i++ {
		assert.Equal(t, s.Score(333.33, 41.7), s.Score(333.33, 41.7))
		assert.Equal(t, s.IsAnomaly(333.33, 41.7), s.IsAnomaly(333.33, 41.7))
	}
}

func TestNewScorer_CustomAndInvalidThresholds(t *testing.T) {
	custom := NewScorer(5.0)
	assert.Equal(t, 5.0, custom.Threshold())
	assert.True(t, custom.IsAnomaly(250, 40))
	assert.Equal(t, 0.5, custom.Score(5, 1))

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.Equal(t, DefaultThreshold, NewScorer(bad).Threshold())
	}
}

func TestAssess(t *testing.T) {
	s := NewScorer(DefaultThreshold)

	a := s.Assess(600, 20)
	assert.Equal(t, 30.0, a.PricePerLiter)
	assert.Equal(t, 1.0, a.Score)
	assert.True(t, a.IsAnomaly)

	zero := s.Assess(600, 0)
	assert.Equal(t, Assessment{}, zero)
}
