// Package anomaly classifies refill pricing as normal or anomalous.
//
// The rule is a fixed threshold on price per liter. A refill is anomalous when
// value/liters is strictly greater than the threshold. The score maps the
// normal range onto [0, 0.5] and the anomalous range onto (0.5, 1.0], so it is
// continuous at the threshold and non-decreasing in price per liter.
package anomaly

import "math"

// DefaultThreshold is the calibrated limit in currency units per liter:
// a baseline of ~6.50 inflated by 25%.
const DefaultThreshold = 8.12

// Scorer is safe for concurrent use; it holds no mutable state.
type Scorer struct {
	threshold float64
}

// Assessment bundles every value derived from a single refill.
type Assessment struct {
	PricePerLiter float64 `json:"price_per_liter"`
	Score         float64 `json:"score"`
	IsAnomaly     bool    `json:"is_anomaly"`
}

// NewScorer builds a Scorer. Non-positive, NaN or infinite thresholds fall
// back to DefaultThreshold.
func NewScorer(threshold float64) *Scorer {
	if !(threshold > 0) || math.IsInf(threshold, 0) {
		threshold = DefaultThreshold
	}
	return &Scorer{threshold: threshold}
}

// Threshold returns the configured price-per-liter limit.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// IsAnomaly reports whether value/liters exceeds the threshold.
// Zero liters is never anomalous.
func (s *Scorer) IsAnomaly(value, liters float64) bool {
	if liters == 0 {
		return false
	}
	return value/liters > s.threshold
}

// Score returns the anomaly severity in [0, 1]. Zero liters scores 0.
func (s *Scorer) Score(value, liters float64) float64 {
	if liters == 0 {
		return 0
	}

	ppl := value / liters
	if ppl <= s.threshold {
		return (ppl / s.threshold) * 0.5
	}

	return math.Min(0.5+((ppl-s.threshold)/s.threshold)*0.5, 1.0)
}

// Assess computes price per liter, score and classification in one call.
func (s *Scorer) Assess(value, liters float64) Assessment {
	a := Assessment{
		Score:     s.Score(value, liters),
		IsAnomaly: s.IsAnomaly(value, liters),
	}
	if liters != 0 {
		a.PricePerLiter = value / liters
	}
	return a
}
