package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	got, err := Parse("loss_aversion")
	require.NoError(t, err)
	assert.Equal(t, LossAversion, got)

	_, err = Parse("recency_bias")
	assert.Error(t, err)
}

func TestAllAreValid(t *testing.T) {
	for _, h := range All() {
		assert.True(t, h.IsValid(), h.String())
	}
}

func TestZoneForScoreBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Zone
	}{
		{0, ZoneGreen},
		{80, ZoneGreen},
		{80.01, ZoneYellow},
		{90, ZoneYellow},
		{90.01, ZoneRed},
		{100, ZoneRed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ZoneForScore(tt.score), "score %v", tt.score)
	}
}

func TestScoreSeverityBands(t *testing.T) {
	// anchoring thresholds: critical 50, high 40, medium 20, low 10.
	score, sev := ScoreSeverity(Anchoring, 50)
	assert.Equal(t, SeverityCritical, sev)
	assert.Equal(t, 75.0, score)

	score, sev = ScoreSeverity(Anchoring, 40)
	assert.Equal(t, SeverityHigh, sev)
	assert.Equal(t, 50.0, score)

	score, sev = ScoreSeverity(Anchoring, 20)
	assert.Equal(t, SeverityMedium, sev)
	assert.Equal(t, 25.0, score)

	score, sev = ScoreSeverity(Anchoring, 10)
	assert.Equal(t, SeverityLow, sev)
	assert.Equal(t, 12.5, score)

	// Overshoot clamps to 100.
	score, _ = ScoreSeverity(Anchoring, 1000)
	assert.Equal(t, 100.0, score)
}

func TestScoreSeverityMonotonic(t *testing.T) {
	// Holding the heuristic fixed, severityScore must be non-decreasing in
	// the raw metric.
	for _, h := range All() {
		prev := -1.0
		th := ThresholdsFor(h)
		step := th.Critical / 200
		for raw := 0.0; raw <= th.Critical*2; raw += step {
			score, _ := ScoreSeverity(h, raw)
			assert.GreaterOrEqual(t, score, prev, "heuristic %s at raw %v", h, raw)
			prev = score
		}
	}
}
