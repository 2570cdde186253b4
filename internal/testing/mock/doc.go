// Package mock provides test doubles for the OAuth flow.
//
// OAuthServer is a minimal authorization server with /authorize and /token
// endpoints. It issues authorization codes bound to a PKCE challenge, verifies
// the code_verifier on exchange and rotates refresh tokens on use. Request
// counters and the last form received let tests assert exactly which calls
// reached the token endpoint.
//
// Behaviour can be altered per test through OAuthServerConfig.SimulateErrors
// (error responses, delays, omitted refresh tokens) or by queueing literal
// token responses with QueueTokenResponse.
//
// Clock is a controllable time source shared by the server and the client
// under test.
//
// Usage:
//
//	srv := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc"})
//	baseURL, err := srv.Start(ctx)
//	...
//	defer srv.Stop(ctx)
//
//	code, state, err := srv.Authorize(authURL)
package mock
