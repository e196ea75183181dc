package repropack

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biaslens/evalcore/canon"
	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/heuristic"
)

func buildInput(t *testing.T) BuildInput {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubPEM, err := canon.MarshalPublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	completed := now.Add(time.Minute)

	return BuildInput{
		Evaluation: &evaltypes.Evaluation{
			ID:              "3a9f0a44-0000-4000-8000-000000000001",
			AISystemName:    "demo",
			HeuristicTypes:  []heuristic.Type{heuristic.Anchoring},
			IterationCount:  10,
			IterationsRun:   10,
			DeterminismMode: evaltypes.ModeStandard,
			SeedValue:       42,
			AchievedLevel:   "standard",
			ParametersUsed:  evaltypes.Parameters{Temperature: 0.7, TopP: 1, MaxTokens: 1024},
			OverallScore:    34.5,
			ZoneStatus:      heuristic.ZoneGreen,
			ConfidenceIntervals: map[heuristic.Type]evaltypes.ConfidenceInterval{
				heuristic.Anchoring: {Lower: 1.1, Upper: 2.2},
			},
			CompletedAt: &completed,
		},
		StartedAt:    now,
		AggregatedAt: completed,
		CompletedAt:  completed,
		Iterations: []evaltypes.IterationResult{
			{
				HeuristicType: heuristic.Anchoring,
				TestCaseID:    "anchor_population_estimate",
				Iteration:     1,
				Score:         3,
				ReferenceID:   "test-case-anchor_population_estimate-1-aaaa",
				OutputSHA256:  strings.Repeat("ab", 32),
				CapturedAt:    now,
			},
		},
		Provider:  "simulator",
		ModelName: "bias-sim-1",
		Signing: SigningMaterial{
			Mode:         evaltypes.SigningModeBiasLens,
			Authority:    "BiasLens",
			KeyID:        "default-1",
			PrivateKey:   key,
			PublicKeyPEM: pubPEM,
		},
	}
}

func TestBuildSignsAndHashes(t *testing.T) {
	in := buildInput(t)

	pack, err := Build(in)
	require.NoError(t, err)

	assert.Equal(t, in.Evaluation.ID, pack.EvaluationRunID)
	assert.Equal(t, "BiasLens", pack.SigningAuthority)

	// The stored hash is recomputable from the stored content.
	recomputed, err := canon.Hash(pack.ReproPackContent)
	require.NoError(t, err)
	assert.Equal(t, pack.ContentHash, recomputed)

	// And the signature verifies over it.
	assert.True(t, canon.VerifySignature(&in.Signing.PrivateKey.PublicKey, pack.ContentHash, pack.Signature))
}

func TestBuildRequiresSigningKey(t *testing.T) {
	in := buildInput(t)
	in.Signing.PrivateKey = nil

	_, err := Build(in)
	require.Error(t, err)
}

func TestManifestCarriesNoRawOutputs(t *testing.T) {
	in := buildInput(t)
	manifest := BuildManifest(in)

	raw, err := json.Marshal(manifest)
	require.NoError(t, err)

	// Output hashes only, never raw model text. The manifest must not grow
	// prompt/output payload fields.
	assert.NotContains(t, string(raw), `"output":`)
	assert.NotContains(t, string(raw), `"prompt":`)
	assert.Contains(t, string(raw), `"sha256"`)
	assert.Contains(t, string(raw), `"prompt_reference_id"`)
}

func TestManifestHashInvariantUnderKeyOrder(t *testing.T) {
	in := buildInput(t)
	manifest := BuildManifest(in)

	// Round-trip through JSON to scramble map iteration order.
	raw, err := json.Marshal(manifest)
	require.NoError(t, err)
	var clone map[string]any
	require.NoError(t, json.Unmarshal(raw, &clone))

	h1, err := canon.Hash(manifest)
	require.NoError(t, err)
	h2, err := canon.Hash(clone)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestManifestEvidenceBlockOptional(t *testing.T) {
	in := buildInput(t)

	manifest := BuildManifest(in)
	assert.Nil(t, manifest["evidence_reference_id"])

	in.EvidenceReferenceID = "evaluation-run-0000"
	in.EvidenceStorageType = "object_store"
	manifest = BuildManifest(in)
	assert.Equal(t, "evaluation-run-0000", manifest["evidence_reference_id"])

	replay := manifest["replay_instructions"].(map[string]any)
	evidence := replay["evidence"].(map[string]any)
	assert.Equal(t, "object_store", evidence["storage_type"])
}
