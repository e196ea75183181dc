// Package canon implements the deterministic serialization and signing
// discipline for repro packs.
//
// StableStringify produces a canonical JSON encoding whose object keys are
// sorted by code point, so any two structurally equal documents hash
// identically regardless of key order. Hashes are lower-case hex SHA-256 of
// the canonical bytes; signatures are RSA-PKCS1v1.5/SHA-256 over the UTF-8
// bytes of the hex hash string.
package canon

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"sort"
	"strings"
)

// StableStringify encodes v as canonical JSON: object keys sorted ascending
// by code point, array order preserved, scalars in their standard JSON form.
// The output is valid JSON.
func StableStringify(v any) (string, error) {
	// Round-trip through encoding/json first so structs, maps, and json.Marshaler
	// implementations all collapse to the generic representation.
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canon: marshal input: %w", err)
	}

	var generic any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("canon: decode intermediate form: %w", err)
	}

	var b strings.Builder
	if err := writeCanonical(&b, generic); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeCanonical(b *strings.Builder, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kj, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("canon: encode key %q: %w", k, err)
			}
			b.Write(kj)
			b.WriteByte(':')
			if err := writeCanonical(b, t[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil

	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, e); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil

	case json.Number:
		b.WriteString(t.String())
		return nil

	default:
		sj, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("canon: encode scalar: %w", err)
		}
		b.Write(sj)
		return nil
	}
}

// Hash returns the lower-case hex SHA-256 of the canonical encoding of v.
func Hash(v any) (string, error) {
	s, err := StableStringify(v)
	if err != nil {
		return "", err
	}
	return HashString(s), nil
}

// HashString returns the lower-case hex SHA-256 of the UTF-8 bytes of s.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// LegacyHash returns the hex SHA-256 of the platform-default JSON encoding
// of v, kept so packs hashed before canonicalization still verify.
func LegacyHash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canon: marshal input: %w", err)
	}
	return HashString(string(raw)), nil
}

// Sign signs the UTF-8 bytes of the hex hash string (not the raw digest
// bytes) with RSA-PKCS1v1.5/SHA-256 and returns the standard-alphabet,
// padded base64 signature.
func Sign(priv *rsa.PrivateKey, hexHash string) (string, error) {
	if priv == nil {
		return "", fmt.Errorf("canon: nil private key")
	}
	digest := sha256.Sum256([]byte(hexHash))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("canon: sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifySignature checks a base64 signature over the UTF-8 bytes of the hex
// hash string.
func VerifySignature(pub *rsa.PublicKey, hexHash, signatureB64 string) bool {
	if pub == nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(hexHash))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
}

// VerifyResult reports the outcome of a pack verification.
type VerifyResult struct {
	Valid          bool   `json:"valid"`
	HashMatches    bool   `json:"hashMatches"`
	SignatureValid bool   `json:"signatureValid"`
	ComputedHash   string `json:"computedHash"`
	LegacyHash     string `json:"legacyHash"`
}

// Verify recomputes the canonical and legacy hashes of content, compares
// expectedHash against both, and checks the signature over the canonical
// hash. A pack is valid iff the expected hash matches either encoding and
// the signature verifies over the canonical hash.
func Verify(pub *rsa.PublicKey, content any, expectedHash, signatureB64 string) (VerifyResult, error) {
	canonical, err := Hash(content)
	if err != nil {
		return VerifyResult{}, err
	}
	legacy, err := LegacyHash(content)
	if err != nil {
		return VerifyResult{}, err
	}

	res := VerifyResult{
		ComputedHash: canonical,
		LegacyHash:   legacy,
	}
	res.HashMatches = expectedHash == canonical || expectedHash == legacy
	res.SignatureValid = VerifySignature(pub, canonical, signatureB64)
	res.Valid = res.HashMatches && res.SignatureValid
	return res, nil
}

// ParsePrivateKeyPEM parses a PKCS#8 PEM-encoded RSA private key.
func ParsePrivateKeyPEM(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("canon: no PEM block in private key data")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("canon: parse PKCS#8 private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("canon: private key is %T, want *rsa.PrivateKey", key)
	}
	return rsaKey, nil
}

// ParsePublicKeyPEM parses an SPKI PEM-encoded RSA public key.
func ParsePublicKeyPEM(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("canon: no PEM block in public key data")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("canon: parse SPKI public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("canon: public key is %T, want *rsa.PublicKey", key)
	}
	return rsaKey, nil
}

// MarshalPublicKeyPEM encodes an RSA public key as SPKI PEM, the form
// embedded in repro-pack signing blocks.
func MarshalPublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("canon: marshal SPKI public key: %w", err)
	}
	var b strings.Builder
	if err := pem.Encode(&b, &pem.Block{Type: "PUBLIC KEY", Bytes: der}); err != nil {
		return "", fmt.Errorf("canon: encode public key PEM: %w", err)
	}
	return b.String(), nil
}
