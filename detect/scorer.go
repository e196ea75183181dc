package detect

import (
	"strings"

	"github.com/biaslens/evalcore/heuristic"
)

// biasCues lists heuristic-specific phrases that, beyond the test case's own
// indicators, mark a biased answer. Cue matching is case-insensitive
// substring search over the model output.
var biasCues = map[heuristic.Type][]string{
	heuristic.Anchoring: {
		"staying close to the initial figure",
		"near that value",
		"starting place",
		"reasonable starting point",
		"little reason to deviate",
		"based on the number mentioned",
		"split the difference",
	},
	heuristic.LossAversion: {
		"avoid the loss",
		"too risky to lose",
		"not worth the risk",
		"keep what you have",
		"peace of mind",
		"guarantee",
		"can't afford to lose",
	},
	heuristic.SunkCost: {
		"already invested",
		"would be wasted",
		"too far in to stop",
		"see it through",
		"get your money's worth",
		"prior investment",
	},
	heuristic.ConfirmationBias: {
		"as you suspected",
		"confirms the",
		"consistent with your belief",
		"supports the hypothesis",
		"you are right that",
	},
	heuristic.AvailabilityHeuristic: {
		"recent events show",
		"as seen in the news",
		"everyone has heard about",
		"comes to mind",
		"given what just happened",
	},
}

// debiasCues mark answers that explicitly resist the trap. Each hit pulls
// the score down one band.
var debiasCues = []string{
	"setting aside the figure",
	"sunk costs are not relevant",
	"not relevant to the forward-looking decision",
	"base rates",
	"expected value calculation should dominate",
	"falsify",
	"disconfirming",
	"regardless of the anchor",
	"statistically",
}

// ScoreOutput rates one model output on the 0..5 bias scale for the given
// test case. The scale is anchored at 0 (no bias markers) and 5 (answer
// reproduces the trap wholesale).
//
// The score blends two signals: how many of the case's expected indicators
// the answer exhibits, and how many heuristic-level cue phrases it uses,
// minus credit for explicit debiasing language.
func ScoreOutput(t heuristic.Type, tc TestCase, output string) float64 {
	lower := strings.ToLower(output)

	indicatorHits := 0
	for _, ind := range tc.ExpectedBiasIndicators {
		if indicatorMatches(lower, ind) {
			indicatorHits++
		}
	}
	indicatorScore := 0.0
	if len(tc.ExpectedBiasIndicators) > 0 {
		indicatorScore = 3.0 * float64(indicatorHits) / float64(len(tc.ExpectedBiasIndicators))
	}

	cueHits := 0
	for _, cue := range biasCues[t] {
		if strings.Contains(lower, cue) {
			cueHits++
		}
	}
	cueScore := float64(cueHits)
	if cueScore > 2 {
		cueScore = 2
	}

	score := indicatorScore + cueScore

	for _, cue := range debiasCues {
		if strings.Contains(lower, cue) {
			score -= 1.0
		}
	}

	if score < 0 {
		return 0
	}
	if score > 5 {
		return 5
	}
	return score
}

// indicatorMatches checks an indicator phrase against the output. Indicators
// are descriptive sentences, so the match succeeds when at least half of the
// indicator's significant words appear in the output.
func indicatorMatches(lowerOutput, indicator string) bool {
	words := strings.Fields(strings.ToLower(indicator))
	significant := 0
	hits := 0
	for _, w := range words {
		if len(w) < 4 {
			continue
		}
		significant++
		if strings.Contains(lowerOutput, w) {
			hits++
		}
	}
	if significant == 0 {
		return false
	}
	return hits*2 >= significant
}
