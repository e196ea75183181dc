package detect

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/heuristic"
	"github.com/biaslens/evalcore/provider"
)

var iterationRefPattern = regexp.MustCompile(`^test-case-[A-Za-z0-9_-]+-\d+-[0-9a-f-]{36}$`)

func testScheduler() *provider.Scheduler {
	return provider.NewScheduler(provider.RateLimitPolicy{
		Provider: "simulator", RequestsPerMinute: 600000, MinIntervalMs: 0, RetryAfterMs: 1,
	})
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "anchor_population_estimate", SanitizeID("anchor_population_estimate"))
	assert.Equal(t, "case-1-v2", SanitizeID("case 1/v2"))
}

func TestIterationReferenceIDShape(t *testing.T) {
	ref := IterationReferenceID("anchor test/1", 3)
	assert.Regexp(t, iterationRefPattern, ref)
}

func TestRunReferenceIDShape(t *testing.T) {
	assert.Regexp(t, `^evaluation-run-[0-9a-f-]{36}$`, RunReferenceID())
}

func TestForUnknownHeuristic(t *testing.T) {
	_, err := For(heuristic.Type("recency"))
	assert.Error(t, err)
}

func TestDetectorRunRoundRobin(t *testing.T) {
	det, err := For(heuristic.Anchoring)
	require.NoError(t, err)

	capture := &CaptureBuffer{}
	finding, err := det.Run(context.Background(), RunOptions{
		Scheduler:  testScheduler(),
		Params:     evaltypes.Parameters{Temperature: 0, TopP: 1, MaxTokens: 256},
		Iterations: 12,
		Capture:    capture,
	})
	require.NoError(t, err)

	cases := det.Catalog()
	require.Len(t, capture.Evidence, 12)
	require.Len(t, capture.Iterations, 12)

	for i, ev := range capture.Evidence {
		wantCase := cases[i%len(cases)]
		assert.Equal(t, wantCase.ID, ev.TestCaseID, "call %d", i)
		assert.Equal(t, i/len(cases)+1, ev.Iteration, "call %d", i)
		assert.Equal(t, wantCase.Prompt, ev.Prompt)
		assert.NotEmpty(t, ev.Output)
		assert.Regexp(t, iterationRefPattern, ev.ReferenceID)
	}

	for i, it := range capture.Iterations {
		assert.Equal(t, capture.Evidence[i].ReferenceID, it.ReferenceID)
		assert.Len(t, it.OutputSHA256, 64)
		assert.GreaterOrEqual(t, it.Score, 0.0)
		assert.LessOrEqual(t, it.Score, 5.0)
	}

	assert.Equal(t, heuristic.Anchoring, finding.HeuristicType)
	assert.Equal(t, len(cases), finding.TestCasesRun)
	assert.GreaterOrEqual(t, finding.ConfidenceLevel, 0.0)
	assert.LessOrEqual(t, finding.ConfidenceLevel, 0.99)
	assert.True(t, finding.Severity.IsValid())
}

func TestDetectorFindingExamplesAreDescriptive(t *testing.T) {
	det, err := For(heuristic.SunkCost)
	require.NoError(t, err)

	finding, err := det.Run(context.Background(), RunOptions{
		Scheduler:  testScheduler(),
		Params:     evaltypes.Parameters{Temperature: 0, TopP: 1, MaxTokens: 256},
		Iterations: 10,
	})
	require.NoError(t, err)

	// Example instances must come from the catalog's indicator strings,
	// never from raw prompts or outputs.
	for _, ex := range finding.ExampleInstances {
		matched := false
		for _, tc := range det.Catalog() {
			for _, ind := range tc.ExpectedBiasIndicators {
				if ex == tc.Name+": "+ind {
					matched = true
				}
			}
		}
		assert.True(t, matched, "example %q not derived from catalog indicators", ex)
	}
}

func TestScoreOutputRange(t *testing.T) {
	tc := CatalogFor(heuristic.Anchoring)[0]

	biased := "Staying close to the initial figure, my estimate stays near the stated figure; the anchor value seems a reasonable starting point and I see little reason to deviate."
	neutral := "Reykjavik has roughly 140,000 inhabitants based on recent census data."
	debiased := "Setting aside the figure mentioned, I reason from base rates: statistically the city holds about 140,000 people, regardless of the anchor."

	sb := ScoreOutput(heuristic.Anchoring, tc, biased)
	sn := ScoreOutput(heuristic.Anchoring, tc, neutral)
	sd := ScoreOutput(heuristic.Anchoring, tc, debiased)

	assert.Greater(t, sb, sn)
	assert.GreaterOrEqual(t, sn, sd)
	for _, s := range []float64{sb, sn, sd} {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 5.0)
	}
}

func TestBuildRecommendationsTopSeven(t *testing.T) {
	var findings []evaltypes.HeuristicFinding
	for _, h := range heuristic.All() {
		findings = append(findings, evaltypes.HeuristicFinding{
			HeuristicType:   h,
			SeverityScore:   90,
			ConfidenceLevel: 0.9,
		})
	}

	recs := BuildRecommendations("eval-1", findings)
	require.Len(t, recs, 7)

	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Priority, recs[i].Priority)
	}
	for _, r := range recs {
		assert.GreaterOrEqual(t, r.Priority, 1)
		assert.LessOrEqual(t, r.Priority, 10)
		assert.Equal(t, "eval-1", r.EvaluationID)
	}
}

func TestRecommendationPriorityClamp(t *testing.T) {
	low := evaltypes.HeuristicFinding{HeuristicType: heuristic.Anchoring, SeverityScore: 0, ConfidenceLevel: 0}
	recs := BuildRecommendations("eval-1", []evaltypes.HeuristicFinding{low})
	require.NotEmpty(t, recs)
	for _, r := range recs {
		assert.GreaterOrEqual(t, r.Priority, 1)
		assert.LessOrEqual(t, r.Priority, 10)
	}
}
