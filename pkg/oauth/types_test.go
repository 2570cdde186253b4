package oauth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRecord_IsExpiredWithMargin(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	record := TokenRecord{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, record.IsExpiredWithMargin(now, 0))
	assert.False(t, record.IsExpiredWithMargin(now, 59*time.Second))
	assert.True(t, record.IsExpiredWithMargin(now, time.Minute), "expiry exactly at now+margin counts as expired")
	assert.True(t, record.IsExpiredWithMargin(now.Add(2*time.Minute), 0))
}

func TestTokenRecord_OAuth2Token(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	record := TokenRecord{
		AccessToken:  "AT",
		RefreshToken: "RT",
		IDToken:      "ID",
		TokenType:    "Bearer",
		ExpiresAt:    expiry,
	}

	token := record.OAuth2Token()
	assert.Equal(t, "AT", token.AccessToken)
	assert.Equal(t, "RT", token.RefreshToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, expiry, token.Expiry)
	assert.Equal(t, "ID", token.Extra("id_token"))
	assert.True(t, token.Valid())

	assert.Nil(t, TokenRecord{AccessToken: "AT"}.OAuth2Token().Extra("id_token"))
}

func TestTokenRecord_Claims(t *testing.T) {
	t.Run("decodes unsigned claims", func(t *testing.T) {
		idToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"iss":   "https://auth.example",
			"sub":   "user-1",
			"aud":   "abc",
			"email": "user@example.com",
			"name":  "Example User",
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		claims, err := TokenRecord{IDToken: idToken}.Claims()
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "https://auth.example", claims.Issuer)
		assert.Equal(t, jwt.ClaimStrings{"abc"}, claims.Audience)
		assert.Equal(t, "user@example.com", claims.Email)
		assert.Equal(t, "Example User", claims.Name)
	})

	t.Run("no id token", func(t *testing.T) {
		_, err := TokenRecord{}.Claims()
		assert.ErrorIs(t, err, ErrNoIDToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := TokenRecord{IDToken: "not-a-jwt"}.Claims()
		assert.ErrorContains(t, err, "failed to parse id token")
	})
}

func TestFlowState_Expired(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	flow := &FlowState{createdAt: created}

	assert.False(t, flow.expired(created.Add(DefaultFlowTTL), DefaultFlowTTL))
	assert.True(t, flow.expired(created.Add(DefaultFlowTTL+time.Second), DefaultFlowTTL))
	assert.False(t, flow.expired(created.Add(24*time.Hour), 0), "zero TTL disables expiry")
}
