// Package logging provides subsystem-tagged structured logging for pkceflow.
//
// It is a thin layer over log/slog. Every entry carries a subsystem attribute
// so output can be filtered by component.
//
// # Initialization
//
//	logging.Init(logging.Options{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatJSON,
//	    Output: os.Stderr,
//	})
//
// InitForCLI is a shorthand for text output. Log calls made before
// initialization are dropped, which keeps library use and tests quiet.
//
// # Logging
//
//	logging.Info("Login", "Waiting for callback on %s", addr)
//	logging.Debug("TokenManager", "Access token expires at %s", expiresAt)
//	logging.Error("Server", err, "Token refresh failed")
//
// Subsystems in use:
//
//   - Orchestrator: authorization flow bookkeeping
//   - TokenManager: token storage and refresh
//   - TokenEndpoint: raw token endpoint requests
//   - Callback: the local redirect listener
//   - Server: the session HTTP server
//   - Config: configuration loading
//
// # Audit Logging
//
// Security-relevant events are logged at INFO level with an [AUDIT] prefix
// for easy filtering by log aggregation systems:
//
//	logging.Audit("token_exchanged", "flow_id", flow.ID())
//
// Token values are never passed to the logger; only expiry times, flow
// identifiers and whether optional tokens are present.
//
// # Thread Safety
//
// All functions are safe for concurrent use. Init swaps the logger atomically.
package logging
