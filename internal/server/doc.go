// Package server exposes one OAuth session over loopback HTTP.
//
// A Server wraps a caller-owned oauth.Orchestrator and oauth.TokenManager.
// Local tools that need a bearer token ask the server for it instead of
// running their own login, so refreshes stay single-flight across all of
// them.
//
// # Routes
//
//	GET    /login          302 to the authorization URL of a new flow
//	GET    <callback>      completes a flow (path taken from the redirect URI)
//	GET    /token          current access token, refreshed when needed
//	POST   /token/refresh  forces a refresh
//	DELETE /token          drops the session
//	GET    /status         expiry and pending flow count, no secrets
//	GET    /healthz        liveness
//
// # Error Mapping
//
//	oauth.ErrInvalidState        400
//	oauth.ErrNoToken             401
//	oauth.ErrNoRefreshToken      401
//	*oauth.TokenExchangeError    502
//	*oauth.RefreshFailedError    502
//	*oauth.CancelledError        504
//
// POST and DELETE requests without an X-Requested-With header are rejected
// with 403, which keeps other browser origins from driving the session.
//
// Every response carries an X-Request-ID header; a valid UUID supplied by
// the client is echoed back, otherwise a new one is generated.
package server
