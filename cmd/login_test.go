package cmd

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkceflow/internal/formatting"
	"pkceflow/pkg/oauth"
)

func unsignedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return tok
}

func fieldValue(fields []formatting.Field, key string) (formatting.Field, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f, true
		}
	}
	return formatting.Field{}, false
}

func TestDescribeRecord(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	record := oauth.TokenRecord{
		AccessToken:  "AT1",
		RefreshToken: "RT1",
		IDToken:      unsignedIDToken(t, jwt.MapClaims{"sub": "user-1", "email": "a@example.com"}),
		TokenType:    "Bearer",
		Scope:        "openid",
		ExpiresAt:    now.Add(time.Hour),
	}

	fields, view := describeRecord(record, now, false)

	status, ok := fieldValue(fields, "Status")
	require.True(t, ok)
	assert.Equal(t, "Authenticated", status.Value)

	expires, _ := fieldValue(fields, "Expires")
	assert.Contains(t, expires.Value, "1h0m0s")

	refresh, _ := fieldValue(fields, "Refresh")
	assert.Equal(t, "Available", refresh.Value)

	email, _ := fieldValue(fields, "Email")
	assert.Equal(t, "a@example.com", email.Value)

	_, ok = fieldValue(fields, "Access token")
	assert.False(t, ok)
	assert.Empty(t, view.AccessToken)
	assert.Equal(t, "user-1", view.Subject)
	assert.True(t, view.HasRefreshToken)

	for _, f := range fields {
		assert.NotContains(t, f.Value, "RT1")
	}
}

func TestDescribeRecordPrintToken(t *testing.T) {
	now := time.Now()
	record := oauth.TokenRecord{AccessToken: "AT1", TokenType: "Bearer", ExpiresAt: now.Add(-time.Minute)}

	fields, view := describeRecord(record, now, true)

	status, _ := fieldValue(fields, "Status")
	assert.Equal(t, "Expired", status.Value)

	refresh, _ := fieldValue(fields, "Refresh")
	assert.Equal(t, formatting.ColorWarn, refresh.Color)

	tok, ok := fieldValue(fields, "Access token")
	require.True(t, ok)
	assert.Equal(t, "AT1", tok.Value)
	assert.Equal(t, "AT1", view.AccessToken)
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "expired", formatRemaining(0))
	assert.Equal(t, "expired", formatRemaining(-time.Second))
	assert.Equal(t, "1m30s", formatRemaining(90*time.Second+200*time.Millisecond))
}
