package detect

import (
	"math"
	"sort"

	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/heuristic"
)

// recommendationTemplate is the static, human-authored mitigation text for
// one heuristic. The pipeline only selects and prioritizes templates; it
// never generates recommendation prose.
type recommendationTemplate struct {
	ActionTitle           string
	TechnicalDescription  string
	SimplifiedDescription string
	EstimatedImpact       evaltypes.ImpactLevel
	Difficulty            evaltypes.Difficulty
}

var recommendationTemplates = map[heuristic.Type][]recommendationTemplate{
	heuristic.Anchoring: {
		{
			ActionTitle:           "Strip numeric anchors from prompts before inference",
			TechnicalDescription:  "Insert a preprocessing step that detects and masks third-party numeric estimates in user prompts, then re-injects them only after the model has produced an independent estimate for comparison.",
			SimplifiedDescription: "Hide suggested numbers from the model until it has formed its own answer.",
			EstimatedImpact:       evaltypes.ImpactHigh,
			Difficulty:            evaltypes.DifficultyModerate,
		},
		{
			ActionTitle:           "Add a counter-anchor self-check instruction",
			TechnicalDescription:  "Append a system instruction requiring the model to state what its estimate would be absent any referenced figure, and to justify any residual proximity to the referenced figure.",
			SimplifiedDescription: "Make the model explain what it would answer if no number had been suggested.",
			EstimatedImpact:       evaltypes.ImpactMedium,
			Difficulty:            evaltypes.DifficultyEasy,
		},
	},
	heuristic.LossAversion: {
		{
			ActionTitle:           "Require expected-value framing in decision outputs",
			TechnicalDescription:  "Constrain decision-support outputs to present expected value and variance for every option before qualitative framing, so symmetric gambles are not rejected on loss salience alone.",
			SimplifiedDescription: "Always show the math for each option before giving gut-feel advice.",
			EstimatedImpact:       evaltypes.ImpactHigh,
			Difficulty:            evaltypes.DifficultyModerate,
		},
		{
			ActionTitle:           "Dual-frame risky choices before answering",
			TechnicalDescription:  "Prompt the model to restate each risky choice in both gain and loss framing and to flag when its recommendation flips between the framings.",
			SimplifiedDescription: "Describe each choice both as a potential gain and a potential loss, and check the advice stays the same.",
			EstimatedImpact:       evaltypes.ImpactMedium,
			Difficulty:            evaltypes.DifficultyEasy,
		},
	},
	heuristic.SunkCost: {
		{
			ActionTitle:           "Exclude prior spend from forward-looking comparisons",
			TechnicalDescription:  "Add an instruction that cost-benefit comparisons enumerate only future costs and future benefits, relegating historical expenditure to a separate non-decision context block.",
			SimplifiedDescription: "Judge what to do next using only future costs and benefits, not money already spent.",
			EstimatedImpact:       evaltypes.ImpactHigh,
			Difficulty:            evaltypes.DifficultyEasy,
		},
		{
			ActionTitle:           "Add a fresh-start reframe to continuation decisions",
			TechnicalDescription:  "For continue/abandon questions, require the model to also answer the equivalent fresh-start question ('would you start this today?') and reconcile any divergence.",
			SimplifiedDescription: "Ask: would we start this project today if we hadn't already? If not, reconsider continuing.",
			EstimatedImpact:       evaltypes.ImpactMedium,
			Difficulty:            evaltypes.DifficultyEasy,
		},
	},
	heuristic.ConfirmationBias: {
		{
			ActionTitle:           "Mandate disconfirming evidence in research answers",
			TechnicalDescription:  "Require answers to hypothesis-shaped questions to include at least one disconfirming source or test, and to propose a falsification before endorsing the hypothesis.",
			SimplifiedDescription: "Always include evidence against the idea, not just for it.",
			EstimatedImpact:       evaltypes.ImpactHigh,
			Difficulty:            evaltypes.DifficultyModerate,
		},
		{
			ActionTitle:           "Separate premise restatement from evaluation",
			TechnicalDescription:  "Structure outputs so the user's stated belief is restated as a claim under test, then evaluated against evidence for and against, preventing the premise from leaking into the conclusion.",
			SimplifiedDescription: "Treat the user's belief as a question to examine, not a fact to support.",
			EstimatedImpact:       evaltypes.ImpactMedium,
			Difficulty:            evaltypes.DifficultyModerate,
		},
	},
	heuristic.AvailabilityHeuristic: {
		{
			ActionTitle:           "Ground frequency judgments in base-rate lookups",
			TechnicalDescription:  "Route frequency and risk questions through a retrieval step that fetches statistical base rates, and require the answer to cite the fetched rate before any anecdotal material.",
			SimplifiedDescription: "Look up the real statistics before reasoning from memorable examples.",
			EstimatedImpact:       evaltypes.ImpactHigh,
			Difficulty:            evaltypes.DifficultyComplex,
		},
		{
			ActionTitle:           "Flag recency-driven risk rankings",
			TechnicalDescription:  "Add a post-processing check that flags answers ranking a recently mentioned event category above its statistical base rate, prompting a revision pass.",
			SimplifiedDescription: "Warn when advice is driven by whatever happened most recently.",
			EstimatedImpact:       evaltypes.ImpactMedium,
			Difficulty:            evaltypes.DifficultyModerate,
		},
	},
}

// maxRecommendations caps how many recommendations an evaluation retains.
const maxRecommendations = 7

// BuildRecommendations selects the static templates for each finding's
// heuristic, computes priorities, and returns at most the top seven sorted
// by descending priority.
//
// Priority is floor((0.6*severityScore + 30*confidence + 0.1*impact)/100*9)+1
// clamped to [1,10].
func BuildRecommendations(evaluationID string, findings []evaltypes.HeuristicFinding) []evaltypes.Recommendation {
	var recs []evaltypes.Recommendation
	for _, f := range findings {
		for _, tpl := range recommendationTemplates[f.HeuristicType] {
			recs = append(recs, evaltypes.Recommendation{
				EvaluationID:             evaluationID,
				HeuristicType:            f.HeuristicType,
				Priority:                 recommendationPriority(f, tpl),
				ActionTitle:              tpl.ActionTitle,
				TechnicalDescription:     tpl.TechnicalDescription,
				SimplifiedDescription:    tpl.SimplifiedDescription,
				EstimatedImpact:          tpl.EstimatedImpact,
				ImplementationDifficulty: tpl.Difficulty,
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Priority > recs[j].Priority })
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func recommendationPriority(f evaltypes.HeuristicFinding, tpl recommendationTemplate) int {
	raw := 0.6*f.SeverityScore + 30*f.ConfidenceLevel + 0.1*tpl.EstimatedImpact.Weight()
	p := int(math.Floor(raw/100*9)) + 1
	if p < 1 {
		p = 1
	}
	if p > 10 {
		p = 10
	}
	return p
}
