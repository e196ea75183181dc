package canon

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestStableStringifySortsKeys(t *testing.T) {
	s, err := StableStringify(map[string]any{
		"zebra": 1,
		"alpha": []any{3, 2, 1},
		"mid":   map[string]any{"b": true, "a": nil},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":[3,2,1],"mid":{"a":null,"b":true},"zebra":1}`, s)
}

func TestStableStringifyPreservesNumberForm(t *testing.T) {
	s, err := StableStringify(map[string]any{"score": 72.5, "count": 10})
	require.NoError(t, err)
	assert.Equal(t, `{"count":10,"score":72.5}`, s)
}

func TestCanonicalHashStability(t *testing.T) {
	// Same structure, different declaration order: hashes must agree.
	a := map[string]any{
		"schema_version":    "1.2.0",
		"evaluation_run_id": "abc",
		"test_suite":        map[string]any{"iterations": 10, "heuristics": []any{"anchoring"}},
	}
	b := map[string]any{
		"test_suite":        map[string]any{"heuristics": []any{"anchoring"}, "iterations": 10},
		"evaluation_run_id": "abc",
		"schema_version":    "1.2.0",
	}

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestSignatureRoundTrip(t *testing.T) {
	key := testKey(t)
	manifest := map[string]any{"evaluation_run_id": "run-1", "overall_score": 42.0}

	h, err := Hash(manifest)
	require.NoError(t, err)

	sig, err := Sign(key, h)
	require.NoError(t, err)
	assert.True(t, VerifySignature(&key.PublicKey, h, sig))

	// A single-bit change in the manifest breaks verification.
	manifest["overall_score"] = 42.1
	h2, err := Hash(manifest)
	require.NoError(t, err)
	assert.False(t, VerifySignature(&key.PublicKey, h2, sig))
}

func TestVerifyAcceptsLegacyHash(t *testing.T) {
	key := testKey(t)
	content := map[string]any{"b": 2, "a": 1}

	canonical, err := Hash(content)
	require.NoError(t, err)
	legacy, err := LegacyHash(content)
	require.NoError(t, err)

	sig, err := Sign(key, canonical)
	require.NoError(t, err)

	res, err := Verify(&key.PublicKey, content, legacy, sig)
	require.NoError(t, err)
	assert.True(t, res.HashMatches)
	assert.True(t, res.SignatureValid)
	assert.True(t, res.Valid)
}

func TestVerifyRejectsWrongHash(t *testing.T) {
	key := testKey(t)
	content := map[string]any{"a": 1}

	h, err := Hash(content)
	require.NoError(t, err)
	sig, err := Sign(key, h)
	require.NoError(t, err)

	res, err := Verify(&key.PublicKey, content, "deadbeef", sig)
	require.NoError(t, err)
	assert.False(t, res.HashMatches)
	assert.True(t, res.SignatureValid)
	assert.False(t, res.Valid)
}

func TestKeyPEMRoundTrip(t *testing.T) {
	key := testKey(t)

	pubPEM, err := MarshalPublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)

	parsed, err := ParsePublicKeyPEM(pubPEM)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(parsed))
}
