// Package vault implements the envelope encryption used for stored secrets:
// evidence-store credentials and repro-pack signing keys.
//
// Every encrypted blob is base64(salt || iv || ciphertext) with a 16-byte
// salt and a 12-byte IV. The AES-256-GCM key is derived from the process
// secret with PBKDF2-HMAC-SHA-256 at 100000 iterations.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/biaslens/evalcore/apperr"
)

const (
	saltLen    = 16
	ivLen      = 12
	iterations = 100000
	keyLen     = 32

	// EnvAPIKeySecret names the env var holding the credential-encryption secret.
	EnvAPIKeySecret = "API_KEY_ENCRYPTION_SECRET"

	// EnvSigningKeySecret names the env var holding the signing-key-encryption secret.
	EnvSigningKeySecret = "SIGNING_KEY_ENCRYPTION_SECRET"
)

// ErrBlobTooShort is returned when a decoded blob is shorter than
// salt + IV (28 bytes) and cannot possibly be a valid envelope.
var ErrBlobTooShort = errors.New("vault: encrypted blob shorter than salt+iv")

// Vault derives per-blob keys from a process-level secret and performs
// AES-256-GCM envelope encryption.
type Vault struct {
	secret []byte
}

// New creates a Vault from an explicit secret.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, apperr.New(apperr.KindConfig, apperr.CodeDecryptFailed, "vault secret is empty")
	}
	return &Vault{secret: []byte(secret)}, nil
}

// FromEnv creates a Vault from the named environment variable.
func FromEnv(envVar string) (*Vault, error) {
	secret := os.Getenv(envVar)
	if secret == "" {
		return nil, apperr.Newf(apperr.KindConfig, apperr.CodeDecryptFailed, "environment variable %s is not set", envVar)
	}
	return New(secret)
}

// Encrypt seals plaintext into a base64(salt || iv || ciphertext) blob.
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("vault: generate salt: %w", err)
	}
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("vault: generate iv: %w", err)
	}

	gcm, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nil, iv, plaintext, nil)

	blob := make([]byte, 0, saltLen+ivLen+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, iv...)
	blob = append(blob, ciphertext...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a base64(salt || iv || ciphertext) blob.
func (v *Vault) Decrypt(encoded string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, apperr.CodeDecryptFailed, "blob is not valid base64").WithCause(err)
	}
	if len(blob) < saltLen+ivLen {
		return nil, ErrBlobTooShort
	}

	salt := blob[:saltLen]
	iv := blob[saltLen : saltLen+ivLen]
	ciphertext := blob[saltLen+ivLen:]

	gcm, err := v.aead(salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, apperr.CodeDecryptFailed, "authenticated decryption failed").WithCause(err)
	}
	return plaintext, nil
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(v.secret, salt, iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init GCM: %w", err)
	}
	return gcm, nil
}

// StoredCredentials is the decrypted shape of an evidence-store credential
// blob. Which fields are required depends on the storage type.
type StoredCredentials struct {
	// StorageType must match the storage type the caller is configuring.
	StorageType string `json:"storageType"`

	// Object store.
	AccessKeyID     string `json:"accessKeyId,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty"`
	Region          string `json:"region,omitempty"`
	Bucket          string `json:"bucket,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`

	// Log-search engine.
	CollectorToken string `json:"collectorToken,omitempty"`

	// Document-search engine.
	APIKey string `json:"apiKey,omitempty"`

	// Shared basic auth.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// Index or sourcetype override.
	Index string `json:"index,omitempty"`
}

// DecryptCredentials decrypts and parses a credential blob, then validates
// it for the requested storage type. A stored type that differs from the
// requested type fails non-retryably.
func (v *Vault) DecryptCredentials(encoded, requestedType string) (*StoredCredentials, error) {
	plaintext, err := v.Decrypt(encoded)
	if err != nil {
		return nil, err
	}

	var creds StoredCredentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, apperr.New(apperr.KindConfig, apperr.CodeDecryptFailed, "credential blob is not valid JSON").WithCause(err)
	}

	if creds.StorageType != "" && creds.StorageType != requestedType {
		return nil, apperr.Newf(apperr.KindConfig, apperr.CodeDecryptFailed,
			"stored credentials are for storage type %q, not %q", creds.StorageType, requestedType)
	}

	if err := creds.validateFor(requestedType); err != nil {
		return nil, err
	}
	return &creds, nil
}

func (c *StoredCredentials) validateFor(storageType string) error {
	switch storageType {
	case "object_store":
		if c.AccessKeyID == "" || c.SecretAccessKey == "" || c.Bucket == "" {
			return apperr.New(apperr.KindConfig, apperr.CodeDecryptFailed,
				"object store credentials require accessKeyId, secretAccessKey, and bucket")
		}
	case "log_search":
		if c.CollectorToken == "" && (c.Username == "" || c.Password == "") {
			return apperr.New(apperr.KindConfig, apperr.CodeDecryptFailed,
				"log search credentials require a collector token or username/password")
		}
	case "document_search":
		if c.APIKey == "" && (c.Username == "" || c.Password == "") {
			return apperr.New(apperr.KindConfig, apperr.CodeDecryptFailed,
				"document search credentials require an API key or username/password")
		}
	default:
		return apperr.Newf(apperr.KindConfig, apperr.CodeDecryptFailed, "unknown storage type %q", storageType)
	}
	return nil
}
