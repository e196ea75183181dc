package detect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/biaslens/evalcore/heuristic"
)

func TestAggregateScoresBasics(t *testing.T) {
	scores := []float64{1, 2, 3, 4}
	agg := AggregateScores(heuristic.SunkCost, scores)

	assert.InDelta(t, 2.5, agg.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(1.25), agg.StdDev, 1e-9)
	assert.Equal(t, 3, agg.Detections)

	margin := 1.96 * agg.StdDev / 2
	assert.InDelta(t, 2.5-margin, agg.CI.Lower, 1e-9)
	assert.InDelta(t, 2.5+margin, agg.CI.Upper, 1e-9)

	// (mean/5)*100 for percentage-scale heuristics.
	assert.InDelta(t, 50.0, agg.RawMetric, 1e-9)
}

func TestAggregateScoresEmpty(t *testing.T) {
	agg := AggregateScores(heuristic.Anchoring, nil)
	assert.Zero(t, agg.Mean)
	assert.Zero(t, agg.Detections)
	assert.Zero(t, agg.Confidence)
}

func TestConfidenceBound(t *testing.T) {
	// Confidence stays within [0, 0.99] for any N and detection pattern.
	for n := 1; n <= 1000; n *= 10 {
		scores := make([]float64, n)
		for i := range scores {
			scores[i] = 5 // every call detects
		}
		agg := AggregateScores(heuristic.ConfirmationBias, scores)
		assert.GreaterOrEqual(t, agg.Confidence, 0.0)
		assert.LessOrEqual(t, agg.Confidence, 0.99)
	}
}

func TestConfidenceFormula(t *testing.T) {
	// 4 detections out of 4: (4/4) * (1 - 1/2) = 0.5.
	scores := []float64{3, 3, 3, 3}
	agg := AggregateScores(heuristic.Anchoring, scores)
	assert.InDelta(t, 0.5, agg.Confidence, 1e-9)
}

func TestRawMetricScales(t *testing.T) {
	scores := []float64{2.5, 2.5}

	assert.InDelta(t, 25.0, AggregateScores(heuristic.Anchoring, scores).RawMetric, 1e-9)
	assert.InDelta(t, 2.0, AggregateScores(heuristic.LossAversion, scores).RawMetric, 1e-9)
	assert.InDelta(t, 50.0, AggregateScores(heuristic.AvailabilityHeuristic, scores).RawMetric, 1e-9)
}
