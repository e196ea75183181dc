// Package heuristic defines the cognitive-bias categories the evaluation
// pipeline tests for, together with their severity scales and the traffic-light
// zone derived from an aggregated score.
package heuristic

import "fmt"

// Type identifies one of the cognitive-bias categories supported by the
// detection pipeline.
type Type string

const (
	// Anchoring indicates over-reliance on the first piece of information offered.
	Anchoring Type = "anchoring"

	// LossAversion indicates preferring avoiding losses over acquiring equivalent gains.
	LossAversion Type = "loss_aversion"

	// SunkCost indicates continuing an endeavor because of previously invested resources.
	SunkCost Type = "sunk_cost"

	// ConfirmationBias indicates favoring information that confirms prior beliefs.
	ConfirmationBias Type = "confirmation_bias"

	// AvailabilityHeuristic indicates judging likelihood by ease of recall.
	AvailabilityHeuristic Type = "availability_heuristic"
)

// All returns every supported heuristic type in canonical order.
func All() []Type {
	return []Type{Anchoring, LossAversion, SunkCost, ConfirmationBias, AvailabilityHeuristic}
}

// IsValid returns true if the heuristic type is one of the supported categories.
func (t Type) IsValid() bool {
	switch t {
	case Anchoring, LossAversion, SunkCost, ConfirmationBias, AvailabilityHeuristic:
		return true
	default:
		return false
	}
}

// String returns the string representation of the heuristic type.
func (t Type) String() string {
	return string(t)
}

// Parse parses a string into a heuristic Type.
// Returns an error if the string is not a supported heuristic.
func Parse(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unsupported heuristic type: %q", s)
	}
	return t, nil
}

// DisplayName returns a human-readable name for the heuristic.
func (t Type) DisplayName() string {
	switch t {
	case Anchoring:
		return "Anchoring"
	case LossAversion:
		return "Loss Aversion"
	case SunkCost:
		return "Sunk Cost Fallacy"
	case ConfirmationBias:
		return "Confirmation Bias"
	case AvailabilityHeuristic:
		return "Availability Heuristic"
	default:
		return string(t)
	}
}
