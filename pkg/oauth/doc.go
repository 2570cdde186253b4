// Package oauth implements the client side of the OAuth 2.0 Authorization Code
// Grant with PKCE (RFC 7636) and the lifecycle of the resulting bearer token.
//
// # Core Components
//
//   - ClientConfig: immutable client registration and endpoint settings
//   - Orchestrator: builds authorization URLs, tracks pending flows by state,
//     validates callbacks and exchanges the authorization code for tokens
//   - TokenManager: owns the session's single TokenRecord, answers expiry
//     queries and refreshes the access token with single-flight coalescing
//   - CryptoProvider / Codec / HTTPClient: injected collaborators for random
//     bytes, SHA-256, base64url and the token endpoint transport
//
// # Usage
//
//	tokens := oauth.NewTokenManager(cfg)
//	flows, err := oauth.NewOrchestrator(cfg, tokens)
//	if err != nil {
//	    return err // *oauth.ConfigError
//	}
//
//	authURL, err := flows.BeginFlow()
//	// redirect the user to authURL; the redirect comes back with code and state
//
//	record, err := flows.HandleCallback(ctx, code, state)
//
//	// later, from any goroutine
//	accessToken, err := tokens.AccessToken(ctx, 30*time.Second)
//
// # Concurrency
//
// Any number of flows may be pending at once; each is keyed by its state
// token and consumed exactly once. Concurrent AccessToken calls that find
// the token expired share one refresh request.
//
// # Errors
//
// Every failure is returned as a typed error. Use errors.Is with
// ErrInvalidState, ErrNoToken and ErrNoRefreshToken, and errors.As with
// *ConfigError, *TokenExchangeError, *RefreshFailedError, *NetworkError and
// *CancelledError. IsRetryable reports whether repeating the call is safe.
package oauth
