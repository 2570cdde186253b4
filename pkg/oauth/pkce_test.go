package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type shortCrypto struct{ stdCrypto }

func (shortCrypto) RandomBytes(n int) ([]byte, error) {
	return make([]byte, n-1), nil
}

type failingCrypto struct{ stdCrypto }

func (failingCrypto) RandomBytes(int) ([]byte, error) {
	return nil, errors.New("entropy exhausted")
}

func TestComputeChallenge(t *testing.T) {
	t.Run("fixed verifier", func(t *testing.T) {
		verifier := "test-verifier-0123456789"
		sum := sha256.Sum256([]byte(verifier))
		want := base64.RawURLEncoding.EncodeToString(sum[:])

		assert.Equal(t, want, ComputeChallenge(DefaultCrypto, Base64URL, verifier))
	})

	t.Run("RFC 7636 appendix B", func(t *testing.T) {
		verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
		assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", ComputeChallenge(DefaultCrypto, Base64URL, verifier))
	})

	t.Run("agrees with x/oauth2", func(t *testing.T) {
		verifier := oauth2.GenerateVerifier()
		assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), ComputeChallenge(DefaultCrypto, Base64URL, verifier))
	})
}

func TestRandomToken(t *testing.T) {
	t.Run("encodes 32 bytes as 43 url-safe characters", func(t *testing.T) {
		token, err := randomToken(DefaultCrypto, Base64URL, pkceVerifierBytes)
		require.NoError(t, err)
		assert.Len(t, token, 43)
		assert.NotContains(t, token, "=")
		assert.NotContains(t, token, "+")
		assert.NotContains(t, token, "/")

		raw, err := Base64URL.Decode(token)
		require.NoError(t, err)
		assert.Len(t, raw, pkceVerifierBytes)
	})

	t.Run("values are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			token, err := randomToken(DefaultCrypto, Base64URL, stateBytes)
			require.NoError(t, err)
			require.False(t, seen[token], "duplicate token generated")
			seen[token] = true
		}
	})

	t.Run("short read is rejected", func(t *testing.T) {
		_, err := randomToken(shortCrypto{}, Base64URL, pkceVerifierBytes)
		assert.Error(t, err)
	})

	t.Run("provider failure is propagated", func(t *testing.T) {
		_, err := randomToken(failingCrypto{}, Base64URL, pkceVerifierBytes)
		assert.ErrorContains(t, err, "entropy exhausted")
	})
}
