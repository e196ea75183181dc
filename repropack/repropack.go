// Package repropack assembles, hashes, and signs the reproducibility
// manifest for a completed evaluation. The manifest contains prompt
// references and output hashes only; raw prompts and outputs never appear
// in it.
package repropack

import (
	"crypto/rsa"
	"time"

	"github.com/biaslens/evalcore/apperr"
	"github.com/biaslens/evalcore/canon"
	"github.com/biaslens/evalcore/detect"
	"github.com/biaslens/evalcore/evaltypes"
)

// SchemaVersion is the manifest schema version.
const SchemaVersion = "1.2.0"

// FrameworkVersion is the detector framework version embedded in manifests.
const FrameworkVersion = "1.4.0"

// SigningMaterial is the resolved key material for one pack: either the
// process-default BiasLens pair or a customer-scoped pair.
type SigningMaterial struct {
	Mode         evaltypes.SigningMode
	Authority    string
	KeyID        string
	PrivateKey   *rsa.PrivateKey
	PublicKeyPEM string
}

// BuildInput carries everything the builder needs for one pack.
type BuildInput struct {
	Evaluation *evaltypes.Evaluation

	StartedAt    time.Time
	AggregatedAt time.Time
	CompletedAt  time.Time

	// Iterations are the hashed per-call records from the capture buffer.
	Iterations []evaltypes.IterationResult

	Provider  string
	ModelName string

	EvidenceReferenceID string
	EvidenceStorageType string

	Signing SigningMaterial
}

// Build assembles the canonical manifest, computes its hash, signs it, and
// returns the pack record ready for insertion. A missing signing key is
// fatal.
func Build(in BuildInput) (*evaltypes.ReproPackRecord, error) {
	if in.Signing.PrivateKey == nil {
		return nil, apperr.New(apperr.KindConfig, apperr.CodeSigningKeyMissing,
			"no signing key available for repro pack")
	}

	manifest := BuildManifest(in)

	hash, err := canon.Hash(manifest)
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, apperr.CodeInternal,
			"failed to canonicalize repro pack manifest").WithCause(err)
	}

	signature, err := canon.Sign(in.Signing.PrivateKey, hash)
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, apperr.CodeSigningKeyMissing,
			"failed to sign repro pack").WithCause(err)
	}

	return &evaltypes.ReproPackRecord{
		EvaluationRunID:  in.Evaluation.ID,
		ContentHash:      hash,
		Signature:        signature,
		SigningAuthority: in.Signing.Authority,
		SigningKeyID:     in.Signing.KeyID,
		CreatedAt:        time.Now().UTC(),
		ReproPackContent: manifest,
	}, nil
}

// BuildManifest assembles the manifest document. Key order is irrelevant;
// the canonical serializer normalizes it before hashing.
func BuildManifest(in BuildInput) map[string]any {
	ev := in.Evaluation

	heuristics := make([]string, len(ev.HeuristicTypes))
	for i, h := range ev.HeuristicTypes {
		heuristics[i] = string(h)
	}

	promptSet := make([]map[string]any, 0, len(in.Iterations))
	outputHashes := make([]map[string]any, 0, len(in.Iterations))
	for _, it := range in.Iterations {
		promptSet = append(promptSet, map[string]any{
			"prompt_reference_id": it.ReferenceID,
			"test_case_id":        it.TestCaseID,
			"iteration":           it.Iteration,
			"heuristic_type":      string(it.HeuristicType),
			"captured_at":         it.CapturedAt.UTC().Format(time.RFC3339),
		})
		outputHashes = append(outputHashes, map[string]any{
			"prompt_reference_id": it.ReferenceID,
			"test_case_id":        it.TestCaseID,
			"iteration":           it.Iteration,
			"sha256":              it.OutputSHA256,
		})
	}

	confidenceIntervals := map[string]any{}
	for h, ci := range ev.ConfidenceIntervals {
		confidenceIntervals[string(h)] = map[string]any{"lower": ci.Lower, "upper": ci.Upper}
	}

	decoding := map[string]any{
		"temperature": ev.ParametersUsed.Temperature,
		"top_p":       ev.ParametersUsed.TopP,
		"max_tokens":  ev.ParametersUsed.MaxTokens,
	}
	if ev.ParametersUsed.TopK != nil {
		decoding["top_k"] = *ev.ParametersUsed.TopK
	}

	testSuiteCases := map[string]any{}
	for _, h := range ev.HeuristicTypes {
		ids := []string{}
		for _, tc := range detect.CatalogFor(h) {
			ids = append(ids, tc.ID)
		}
		testSuiteCases[string(h)] = ids
	}

	replay := map[string]any{
		"test_suite": map[string]any{
			"cases":          testSuiteCases,
			"iterations":     ev.IterationCount,
			"iterations_run": ev.IterationsRun,
		},
		"model": map[string]any{
			"provider":            in.Provider,
			"model_name":          in.ModelName,
			"sampling_parameters": decoding,
			"determinism": map[string]any{
				"mode":           string(ev.DeterminismMode),
				"seed":           ev.SeedValue,
				"achieved_level": ev.AchievedLevel,
			},
		},
		"detector": map[string]any{
			"version":    FrameworkVersion,
			"heuristics": heuristics,
		},
		"replay_steps": []string{
			"Resolve the listed provider and model with the recorded sampling parameters and seed.",
			"Re-run each test case for the recorded iteration counts in catalog order.",
			"Hash each raw output with SHA-256 and compare against output_hashes.",
			"Recompute the canonical manifest hash and verify the signature against the embedded public key.",
		},
	}
	if in.EvidenceReferenceID != "" {
		replay["evidence"] = map[string]any{
			"reference_id": in.EvidenceReferenceID,
			"storage_type": in.EvidenceStorageType,
			"link_hint":    "look up reference ids in the configured evidence store to retrieve raw prompt/output pairs",
		}
	}
	if len(confidenceIntervals) > 0 {
		replay["metrics"] = map[string]any{"confidence_intervals": confidenceIntervals}
	}

	manifest := map[string]any{
		"schema_version":    SchemaVersion,
		"evaluation_run_id": ev.ID,
		"detector_version":  FrameworkVersion,
		"timestamps": map[string]any{
			"started_at":    in.StartedAt.UTC().Format(time.RFC3339),
			"aggregated_at": in.AggregatedAt.UTC().Format(time.RFC3339),
			"completed_at":  in.CompletedAt.UTC().Format(time.RFC3339),
		},
		"model_configuration": map[string]any{
			"ai_system_name":      ev.AISystemName,
			"heuristic_types":     heuristics,
			"iteration_count":     ev.IterationCount,
			"iterations_run":      ev.IterationsRun,
			"determinism_mode":    string(ev.DeterminismMode),
			"seed_value":          ev.SeedValue,
			"decoding_parameters": decoding,
		},
		"test_suite": map[string]any{
			"heuristics":     heuristics,
			"iterations":     ev.IterationCount,
			"iterations_run": ev.IterationsRun,
		},
		"prompt_set":    promptSet,
		"output_hashes": outputHashes,
		"aggregate_metrics": map[string]any{
			"overall_score":        ev.OverallScore,
			"zone_status":          string(ev.ZoneStatus),
			"confidence_intervals": confidenceIntervals,
		},
		"replay_instructions": replay,
		"signing": map[string]any{
			"mode":       string(in.Signing.Mode),
			"authority":  in.Signing.Authority,
			"key_id":     in.Signing.KeyID,
			"public_key": in.Signing.PublicKeyPEM,
		},
	}

	if in.EvidenceReferenceID != "" {
		manifest["evidence_reference_id"] = in.EvidenceReferenceID
	} else {
		manifest["evidence_reference_id"] = nil
	}

	return manifest
}
