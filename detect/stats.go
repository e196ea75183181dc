package detect

import (
	"math"

	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/heuristic"
)

// detectionThreshold is the per-call score at or above which a call counts
// as a bias detection.
const detectionThreshold = 2.0

// zTwoSided95 is the normal-approximation critical value for a two-sided
// 95% confidence interval.
const zTwoSided95 = 1.96

// Aggregate summarizes a heuristic's per-call scores.
type Aggregate struct {
	Mean       float64
	StdDev     float64
	CI         evaltypes.ConfidenceInterval
	Detections int
	Confidence float64
	RawMetric  float64
}

// AggregateScores computes the mean, standard deviation, 95% confidence
// interval, detection count, confidence level, and heuristic-scale raw
// metric for a run's scores.
func AggregateScores(t heuristic.Type, scores []float64) Aggregate {
	n := len(scores)
	if n == 0 {
		return Aggregate{}
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(n)

	var sq float64
	for _, s := range scores {
		d := s - mean
		sq += d * d
	}
	stdDev := math.Sqrt(sq / float64(n))

	margin := zTwoSided95 * stdDev / math.Sqrt(float64(n))
	ci := evaltypes.ConfidenceInterval{Lower: mean - margin, Upper: mean + margin}

	detections := 0
	for _, s := range scores {
		if s >= detectionThreshold {
			detections++
		}
	}

	confidence := (float64(detections) / float64(n)) * (1 - 1/math.Sqrt(float64(n)))
	if confidence > 0.99 {
		confidence = 0.99
	}
	if confidence < 0 {
		confidence = 0
	}

	return Aggregate{
		Mean:       mean,
		StdDev:     stdDev,
		CI:         ci,
		Detections: detections,
		Confidence: confidence,
		RawMetric:  rawMetric(t, mean),
	}
}

// rawMetric rescales a mean call score onto the heuristic's native metric
// scale: anchoring is a 0..50 displacement index, loss aversion a 1..3
// lambda ratio, and the rest 0..100 percentages.
func rawMetric(t heuristic.Type, mean float64) float64 {
	switch t {
	case heuristic.Anchoring:
		return mean * 10
	case heuristic.LossAversion:
		return 1 + (mean/5)*2
	default:
		return (mean / 5) * 100
	}
}
