package oauth

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// managerTokenSource adapts a TokenManager to oauth2.TokenSource.
type managerTokenSource struct {
	ctx     context.Context
	manager *TokenManager
	skew    time.Duration
}

// Token implements oauth2.TokenSource.
func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	record, err := s.manager.validRecord(s.ctx, s.skew)
	if err != nil {
		return nil, err
	}
	return record.OAuth2Token(), nil
}

// TokenSource returns an oauth2.TokenSource backed by the manager. Refreshes
// triggered through it share the manager's single-flight group.
func (m *TokenManager) TokenSource(ctx context.Context, skew time.Duration) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, manager: m, skew: skew}
}

// HTTPClient returns an *http.Client that authorizes every request with the
// manager's current access token.
func (m *TokenManager) HTTPClient(ctx context.Context, skew time.Duration) *http.Client {
	return oauth2.NewClient(ctx, m.TokenSource(ctx, skew))
}
