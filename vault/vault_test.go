package vault

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New("test-secret")
	require.NoError(t, err)

	blob, err := v.Encrypt([]byte(`{"apiKey":"sk-test"}`))
	require.NoError(t, err)

	plaintext, err := v.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, `{"apiKey":"sk-test"}`, string(plaintext))
}

func TestDecryptRejectsShortBlob(t *testing.T) {
	v, err := New("test-secret")
	require.NoError(t, err)

	short := base64.StdEncoding.EncodeToString(make([]byte, 27))
	_, err = v.Decrypt(short)
	assert.ErrorIs(t, err, ErrBlobTooShort)
}

func TestDecryptRejectsWrongSecret(t *testing.T) {
	v1, err := New("secret-one")
	require.NoError(t, err)
	v2, err := New("secret-two")
	require.NoError(t, err)

	blob, err := v1.Encrypt([]byte("payload"))
	require.NoError(t, err)

	_, err = v2.Decrypt(blob)
	assert.Error(t, err)
}

func TestDecryptRejectsCorruptedCiphertext(t *testing.T) {
	v, err := New("test-secret")
	require.NoError(t, err)

	blob, err := v.Encrypt([]byte("payload"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01

	_, err = v.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func encryptCreds(t *testing.T, v *Vault, creds StoredCredentials) string {
	t.Helper()
	raw, err := json.Marshal(creds)
	require.NoError(t, err)
	blob, err := v.Encrypt(raw)
	require.NoError(t, err)
	return blob
}

func TestDecryptCredentialsTypeMismatch(t *testing.T) {
	v, err := New("test-secret")
	require.NoError(t, err)

	blob := encryptCreds(t, v, StoredCredentials{
		StorageType:     "object_store",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
		Bucket:          "evidence",
	})

	_, err = v.DecryptCredentials(blob, "document_search")
	assert.Error(t, err)
}

func TestDecryptCredentialsValidation(t *testing.T) {
	v, err := New("test-secret")
	require.NoError(t, err)

	tests := []struct {
		name        string
		creds       StoredCredentials
		storageType string
		wantErr     bool
	}{
		{
			name: "valid object store",
			creds: StoredCredentials{
				AccessKeyID: "AKIA", SecretAccessKey: "s", Bucket: "b",
			},
			storageType: "object_store",
		},
		{
			name:        "object store missing bucket",
			creds:       StoredCredentials{AccessKeyID: "AKIA", SecretAccessKey: "s"},
			storageType: "object_store",
			wantErr:     true,
		},
		{
			name:        "log search with token",
			creds:       StoredCredentials{CollectorToken: "tok"},
			storageType: "log_search",
		},
		{
			name:        "log search with basic auth",
			creds:       StoredCredentials{Username: "admin", Password: "pw"},
			storageType: "log_search",
		},
		{
			name:        "document search with api key",
			creds:       StoredCredentials{APIKey: "key"},
			storageType: "document_search",
		},
		{
			name:        "document search missing auth",
			creds:       StoredCredentials{},
			storageType: "document_search",
			wantErr:     true,
		},
		{
			name:        "unknown storage type",
			creds:       StoredCredentials{APIKey: "key"},
			storageType: "tape_archive",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := encryptCreds(t, v, tt.creds)
			_, err := v.DecryptCredentials(blob, tt.storageType)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
