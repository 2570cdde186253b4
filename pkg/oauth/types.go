package oauth

import (
	"time"

	"golang.org/x/oauth2"
)

// DefaultExpiryMargin is the default clock skew applied when checking
// whether the access token is still usable.
const DefaultExpiryMargin = 30 * time.Second

// DefaultFlowTTL is how long a pending authorization flow stays redeemable.
const DefaultFlowTTL = 10 * time.Minute

// FlowState is one in-flight authorization attempt. It lives only in the
// Orchestrator's pending map and is consumed by the first callback that
// presents its state token.
type FlowState struct {
	id            string
	stateToken    string
	codeVerifier  string
	codeChallenge string
	createdAt     time.Time
}

// ID is a correlation identifier for logs. It is not sent to the server.
func (f *FlowState) ID() string { return f.id }

// StateToken is the opaque value round-tripped through the redirect.
func (f *FlowState) StateToken() string { return f.stateToken }

// CodeChallenge is base64url(sha256(code_verifier)).
func (f *FlowState) CodeChallenge() string { return f.codeChallenge }

// CreatedAt is when BeginFlow created the attempt.
func (f *FlowState) CreatedAt() time.Time { return f.createdAt }

func (f *FlowState) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(f.createdAt) > ttl
}

// TokenPayload is a successful token endpoint response.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// TokenRecord is the session's bearer credential. Values returned by the
// TokenManager are snapshots; the manager replaces its record wholesale.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Scope        string

	// ExpiresAt is the receipt time plus expires_in, fixed when the payload
	// was stored.
	ExpiresAt time.Time

	// ReceivedAt is when the payload was stored.
	ReceivedAt time.Time
}

// HasRefreshToken reports whether the record can be refreshed.
func (r TokenRecord) HasRefreshToken() bool {
	return r.RefreshToken != ""
}

// IsExpiredWithMargin reports whether the access token is expired at now,
// or will be within margin.
func (r TokenRecord) IsExpiredWithMargin(now time.Time, margin time.Duration) bool {
	return !now.Add(margin).Before(r.ExpiresAt)
}

// OAuth2Token converts the record for use with golang.org/x/oauth2.
func (r TokenRecord) OAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
		Expiry:       r.ExpiresAt,
	}

	if r.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": r.IDToken,
		})
	}

	return token
}
