package heuristic

import "fmt"

// Severity represents the severity level of a bias finding.
type Severity string

const (
	// SeverityCritical indicates pervasive bias requiring immediate mitigation.
	SeverityCritical Severity = "critical"

	// SeverityHigh indicates strong, consistently reproducible bias.
	SeverityHigh Severity = "high"

	// SeverityMedium indicates moderate bias visible under targeted prompting.
	SeverityMedium Severity = "medium"

	// SeverityLow indicates weak or intermittent bias.
	SeverityLow Severity = "low"
)

// IsValid returns true if the severity level is valid.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a string into a Severity value.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.IsValid() {
		return "", fmt.Errorf("invalid severity: %q", s)
	}
	return sev, nil
}

// Thresholds holds the raw-metric boundaries that map a heuristic's raw metric
// onto a severity level. Boundaries are inclusive at the lower edge:
// raw >= Critical is critical, raw in [High, Critical) is high, and so on.
type Thresholds struct {
	Critical float64
	High     float64
	Medium   float64
	Low      float64
}

// severityThresholds carries the per-heuristic raw-metric boundaries.
// Raw metrics live on different scales per heuristic (anchoring is mean*10,
// loss aversion is a 1..3 ratio, the rest are 0..100 percentages).
var severityThresholds = map[Type]Thresholds{
	Anchoring:             {Critical: 50, High: 40, Medium: 20, Low: 10},
	LossAversion:          {Critical: 3.0, High: 2.5, Medium: 1.8, Low: 1.3},
	SunkCost:              {Critical: 80, High: 70, Medium: 50, Low: 30},
	ConfirmationBias:      {Critical: 75, High: 65, Medium: 50, Low: 35},
	AvailabilityHeuristic: {Critical: 60, High: 50, Medium: 35, Low: 20},
}

// ThresholdsFor returns the severity thresholds for the given heuristic type.
// Unknown types fall back to the availability-heuristic scale, the most
// conservative of the percentage-based tables.
func ThresholdsFor(t Type) Thresholds {
	if th, ok := severityThresholds[t]; ok {
		return th
	}
	return severityThresholds[AvailabilityHeuristic]
}

// ScoreSeverity maps a heuristic's raw metric onto a 0-100 severity score and
// a severity level using that heuristic's threshold table.
//
// The mapping is piecewise linear: at or above the critical boundary the score
// starts at 75 and grows by half the overshoot, clamped to 100; each lower band
// interpolates linearly across a 25-point range.
func ScoreSeverity(t Type, raw float64) (float64, Severity) {
	th := ThresholdsFor(t)

	switch {
	case raw >= th.Critical:
		score := 75 + (raw-th.Critical)/2
		if score > 100 {
			score = 100
		}
		return score, SeverityCritical
	case raw >= th.High:
		return 50 + 25*(raw-th.High)/(th.Critical-th.High), SeverityHigh
	case raw >= th.Medium:
		return 25 + 25*(raw-th.Medium)/(th.High-th.Medium), SeverityMedium
	default:
		score := 25 * raw / th.Medium
		if score < 0 {
			score = 0
		}
		return score, SeverityLow
	}
}
