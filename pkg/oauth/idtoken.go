package oauth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoIDToken is returned by Claims when the record carries no ID token.
var ErrNoIDToken = errors.New("no id token available")

// IDTokenClaims are the identity claims of an OIDC ID token.
type IDTokenClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
	OrgID         string `json:"org_id,omitempty"`
	jwt.RegisteredClaims
}

// Claims decodes the ID token without verifying its signature. The claims
// are for display only and must not drive authorization decisions.
func (r TokenRecord) Claims() (IDTokenClaims, error) {
	if r.IDToken == "" {
		return IDTokenClaims{}, ErrNoIDToken
	}

	var claims IDTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(r.IDToken, &claims); err != nil {
		return IDTokenClaims{}, fmt.Errorf("failed to parse id token: %w", err)
	}

	return claims, nil
}
