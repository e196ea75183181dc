// Package detect implements the per-heuristic bias detectors: the test-case
// catalogs, prompt scoring, statistical aggregation, and the paced detection
// loop that drives a model client through the scheduler while capturing
// evidence for shipment.
package detect

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Difficulty grades how subtle a test case's bias trap is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// TestCase is one catalog entry: a prompt engineered to elicit a specific
// cognitive bias, together with the textual indicators a biased answer
// tends to contain.
type TestCase struct {
	// ID uniquely names the case within its heuristic's catalog.
	ID string

	// Name is a short human-readable label.
	Name string

	// Prompt is the text sent to the model under test.
	Prompt string

	// Difficulty grades the subtlety of the trap.
	Difficulty Difficulty

	// ExpectedBiasIndicators are phrases whose presence in an answer
	// suggests the bias took hold. These are also the only strings allowed
	// into finding example instances.
	ExpectedBiasIndicators []string

	// Description explains what the case probes.
	Description string
}

var refIDSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeID maps a test-case id onto the reference-id alphabet
// [A-Za-z0-9_-], replacing every other character with a dash.
func SanitizeID(id string) string {
	return refIDSanitizer.ReplaceAllString(id, "-")
}

// IterationReferenceID builds the per-iteration evidence reference id:
// test-case-{sanitizedTestCaseId}-{iteration}-{uuid}.
func IterationReferenceID(testCaseID string, iteration int) string {
	return fmt.Sprintf("test-case-%s-%d-%s", SanitizeID(testCaseID), iteration, uuid.NewString())
}

// RunReferenceID builds the run-level evidence reference id:
// evaluation-run-{uuid}.
func RunReferenceID() string {
	return fmt.Sprintf("evaluation-run-%s", uuid.NewString())
}
