package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageFormat(t *testing.T) {
	err := New(KindStorage, CodeEvidenceStoreFailed, "bucket write failed").
		WithCause(fmt.Errorf("connection refused"))

	assert.Equal(t, "storage/EVIDENCE_STORE_FAILED: bucket write failed: connection refused", err.Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := New(KindInternal, CodeInternal, "wrapper").WithCause(cause)

	require.ErrorIs(t, err, cause)
}

func TestIsMatchesKindAndCode(t *testing.T) {
	err := New(KindConfig, CodeSigningKeyMissing, "no key")

	assert.True(t, errors.Is(err, New(KindConfig, CodeSigningKeyMissing, "")))
	assert.True(t, errors.Is(err, New(KindConfig, "", "")))
	assert.False(t, errors.Is(err, New(KindConfig, CodeDecryptFailed, "")))
	assert.False(t, errors.Is(err, New(KindStorage, "", "")))
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(KindAuth, CodeUnauthorized, "bad token"))

	assert.Equal(t, KindAuth, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestKindIsValid(t *testing.T) {
	for _, k := range []Kind{KindInput, KindAuth, KindNotFound, KindConfig, KindProvider, KindStorage, KindInternal} {
		assert.True(t, k.IsValid(), string(k))
	}
	assert.False(t, Kind("bogus").IsValid())
}
