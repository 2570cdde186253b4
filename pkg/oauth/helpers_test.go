package oauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"pkceflow/internal/testing/mock"
)

const testRedirectURI = "http://127.0.0.1:8085/callback"

func startMockServer(t *testing.T, cfg mock.OAuthServerConfig) *mock.OAuthServer {
	t.Helper()

	srv := mock.NewOAuthServer(cfg)
	_, err := srv.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	return srv
}

func mockClientConfig(srv *mock.OAuthServer) ClientConfig {
	return ClientConfig{
		ClientID:         srv.ClientID(),
		RedirectURI:      testRedirectURI,
		AuthorizationURL: srv.AuthorizeURL(),
		TokenURL:         srv.TokenURL(),
	}
}

func newTestClient(t *testing.T, cfg ClientConfig, opts ...Option) (*Orchestrator, *TokenManager) {
	t.Helper()

	tokens, err := NewTokenManager(cfg, opts...)
	require.NoError(t, err)

	orch, err := NewOrchestrator(cfg, tokens, opts...)
	require.NoError(t, err)

	return orch, tokens
}

// login runs a complete flow against srv and returns the stored record.
func login(t *testing.T, orch *Orchestrator, srv *mock.OAuthServer) TokenRecord {
	t.Helper()

	authURL, err := orch.BeginFlow()
	require.NoError(t, err)

	code, state, err := srv.Authorize(authURL)
	require.NoError(t, err)

	record, err := orch.HandleCallback(context.Background(), code, state)
	require.NoError(t, err)

	return record
}
