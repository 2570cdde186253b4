package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// pkceVerifierBytes is the number of random bytes for the PKCE code verifier.
	// 32 bytes encode to 43 base64url characters, the RFC 7636 minimum.
	pkceVerifierBytes = 32

	// stateBytes is the number of random bytes for the OAuth state parameter.
	stateBytes = 32

	// CodeChallengeMethodS256 is the only challenge method this client sends.
	CodeChallengeMethodS256 = "S256"
)

// CryptoProvider supplies the cryptographic primitives used for PKCE.
// It is selected once by the embedding application and passed in at construction.
type CryptoProvider interface {
	// RandomBytes returns n cryptographically secure random bytes.
	RandomBytes(n int) ([]byte, error)

	// SHA256 returns the SHA-256 digest of data.
	SHA256(data []byte) []byte
}

// Codec encodes and decodes URL-safe base64 without padding.
type Codec interface {
	Encode(data []byte) string
	Decode(s string) ([]byte, error)
}

// DefaultCrypto is the CryptoProvider backed by crypto/rand and crypto/sha256.
var DefaultCrypto CryptoProvider = stdCrypto{}

// Base64URL is the Codec backed by base64.RawURLEncoding.
var Base64URL Codec = rawURLCodec{}

type stdCrypto struct{}

func (stdCrypto) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (stdCrypto) SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

type rawURLCodec struct{}

func (rawURLCodec) Encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func (rawURLCodec) Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// ComputeChallenge derives the S256 code challenge for a verifier:
// base64url(sha256(verifier)).
func ComputeChallenge(crypto CryptoProvider, codec Codec, verifier string) string {
	return codec.Encode(crypto.SHA256([]byte(verifier)))
}

// randomToken returns n random bytes encoded with codec.
func randomToken(crypto CryptoProvider, codec Codec, n int) (string, error) {
	b, err := crypto.RandomBytes(n)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	if len(b) < n {
		return "", fmt.Errorf("crypto provider returned %d random bytes, want %d", len(b), n)
	}
	return codec.Encode(b), nil
}
