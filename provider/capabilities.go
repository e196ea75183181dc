// Package provider holds the static model-provider capability registry, the
// achieved-determinism resolver, and the per-provider rate-limited call
// scheduler that paces model invocations.
package provider

import (
	"fmt"
	"strings"

	"github.com/biaslens/evalcore/evaltypes"
)

// SeedSupport describes how faithfully a provider honors a sampling seed.
type SeedSupport string

const (
	// SeedFull means the provider reproduces outputs bit-for-bit for a seed.
	SeedFull SeedSupport = "full"

	// SeedPartial means the provider accepts a seed on a best-effort basis.
	SeedPartial SeedSupport = "partial"

	// SeedNone means the provider ignores or rejects seeds.
	SeedNone SeedSupport = "none"
)

// DecodingSupport describes which decoding parameters a provider exposes.
type DecodingSupport string

const (
	// DecodingTemperatureOnly means only temperature can be set.
	DecodingTemperatureOnly DecodingSupport = "temperature-only"

	// DecodingTopP means temperature and top_p can be set.
	DecodingTopP DecodingSupport = "top-p"

	// DecodingTopPTopK means temperature, top_p, and top_k can be set.
	DecodingTopPTopK DecodingSupport = "top-p-top-k"
)

// Capabilities is one provider's entry in the static registry.
type Capabilities struct {
	// SeedSupport is the provider's seed fidelity.
	SeedSupport SeedSupport

	// MinTemperature is the lowest temperature the provider accepts.
	MinTemperature float64

	// DecodingSupport lists which decoding knobs exist.
	DecodingSupport DecodingSupport

	// Guidance is a human-readable note surfaced in error messages when a
	// determinism request cannot be honored.
	Guidance string
}

// capabilityTable is the static registry. Unknown providers fall back to
// partial seed support with top-p decoding.
var capabilityTable = map[string]Capabilities{
	"openai": {
		SeedSupport:     SeedFull,
		MinTemperature:  0,
		DecodingSupport: DecodingTopP,
		Guidance:        "seed parameter is honored; identical requests return identical outputs for most models",
	},
	"anthropic": {
		SeedSupport:     SeedPartial,
		MinTemperature:  0,
		DecodingSupport: DecodingTopPTopK,
		Guidance:        "no seed parameter; near-determinism via temperature 0 and fixed top_p/top_k",
	},
	"bedrock": {
		SeedSupport:     SeedPartial,
		MinTemperature:  0,
		DecodingSupport: DecodingTopPTopK,
		Guidance:        "seed support varies by hosted model family; treat as best effort",
	},
	"google": {
		SeedSupport:     SeedPartial,
		MinTemperature:  0,
		DecodingSupport: DecodingTopPTopK,
		Guidance:        "seed accepted on recent models only; older models ignore it",
	},
	"ollama": {
		SeedSupport:     SeedFull,
		MinTemperature:  0,
		DecodingSupport: DecodingTopPTopK,
		Guidance:        "local inference is fully reproducible for a fixed seed and parameters",
	},
	"azure-openai": {
		SeedSupport:     SeedFull,
		MinTemperature:  0,
		DecodingSupport: DecodingTopP,
		Guidance:        "seed parameter is honored as on openai",
	},
	"cohere": {
		SeedSupport:     SeedNone,
		MinTemperature:  0.1,
		DecodingSupport: DecodingTemperatureOnly,
		Guidance:        "no seed support; deterministic runs require allowNondeterministicFallback",
	},
	"simulator": {
		SeedSupport:     SeedFull,
		MinTemperature:  0,
		DecodingSupport: DecodingTopPTopK,
		Guidance:        "built-in deterministic simulator; fully reproducible",
	},
}

// defaultCapabilities is applied to providers absent from the table.
var defaultCapabilities = Capabilities{
	SeedSupport:     SeedPartial,
	MinTemperature:  0,
	DecodingSupport: DecodingTopP,
	Guidance:        "unknown provider; seed treated as best effort",
}

// CapabilitiesFor looks up a provider's capabilities. Provider ids are
// matched case-insensitively; unknown providers get the default entry.
func CapabilitiesFor(providerID string) Capabilities {
	if caps, ok := capabilityTable[strings.ToLower(providerID)]; ok {
		return caps
	}
	return defaultCapabilities
}

// AchievedLevelStandard is the tag for non-deterministic runs.
const AchievedLevelStandard = "standard"

// AchievedLevelNoSeedSupport is the tag for deterministic requests downgraded
// because the provider cannot seed.
const AchievedLevelNoSeedSupport = "standard:no_seed_support"

// ResolveAchievedLevel derives the tag describing which determinism knobs
// actually applied for the provider in use.
func ResolveAchievedLevel(caps Capabilities, deterministicEnabled bool, reqTemp float64, reqTopK *int) string {
	if !deterministicEnabled {
		return AchievedLevelStandard
	}
	if caps.SeedSupport == SeedNone {
		return AchievedLevelNoSeedSupport
	}

	var parts []string
	if caps.SeedSupport == SeedFull {
		parts = append(parts, "seeded")
	} else {
		parts = append(parts, "seeded_best_effort")
	}

	if reqTemp < caps.MinTemperature {
		parts = append(parts, fmt.Sprintf("temp_floor_%g", caps.MinTemperature))
	}

	switch caps.DecodingSupport {
	case DecodingTemperatureOnly:
		parts = append(parts, "decoding_temperature_only")
	case DecodingTopP:
		if reqTopK != nil {
			parts = append(parts, "decoding_top_p_only")
		}
	}

	return strings.Join(parts, "|")
}

// ResolveMode maps a requested deterministic block onto the recorded
// determinism mode, honoring the no-seed-support downgrade. The second
// return value is false when the request must be refused because the
// provider cannot seed and fallback was not allowed.
func ResolveMode(caps Capabilities, det *evaltypes.DeterministicOptions) (evaltypes.DeterminismMode, bool) {
	if det == nil || !det.Enabled {
		return evaltypes.ModeStandard, true
	}
	if caps.SeedSupport == SeedNone {
		if !det.AllowNondeterministicFallback {
			return "", false
		}
		return evaltypes.ModeStandard, true
	}
	switch det.Level {
	case evaltypes.DeterminismFull:
		return evaltypes.ModeFull, true
	case evaltypes.DeterminismNear:
		return evaltypes.ModeNear, true
	default:
		return evaltypes.ModeAdaptive, true
	}
}
