package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned by HandleCallback when the state was never
	// issued, has expired, or was already consumed. It signals a possible
	// CSRF attempt or a stale browser tab.
	ErrInvalidState = errors.New("invalid or expired OAuth state")

	// ErrNoToken is returned when an access token is requested before any
	// successful code exchange.
	ErrNoToken = errors.New("no token available")

	// ErrNoRefreshToken is returned by Refresh when the stored record has no
	// refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// ConfigError reports a missing or malformed ClientConfig field.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid OAuth client config: %s %s", e.Field, e.Reason)
}

// Unwrap returns the underlying parse error, if any.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TokenExchangeError reports a failed authorization code exchange.
// StatusCode is zero when the request never produced a response.
type TokenExchangeError struct {
	StatusCode  int
	ErrorCode   string
	Description string
	Body        string
	Err         error
}

// Error implements the error interface.
func (e *TokenExchangeError) Error() string {
	return "token exchange failed: " + describeEndpointFailure(e.StatusCode, e.ErrorCode, e.Description, e.Err)
}

// Unwrap returns the transport or decode error, if any.
func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// RefreshFailedError reports a failed refresh_token grant. The previously
// stored TokenRecord is left untouched when this error is returned.
type RefreshFailedError struct {
	StatusCode  int
	ErrorCode   string
	Description string
	Body        string
	Err         error
}

// Error implements the error interface.
func (e *RefreshFailedError) Error() string {
	return "token refresh failed: " + describeEndpointFailure(e.StatusCode, e.ErrorCode, e.Description, e.Err)
}

// Unwrap returns the transport or decode error, if any.
func (e *RefreshFailedError) Unwrap() error {
	return e.Err
}

// NetworkError is a transport-level failure: the request was not answered.
// It is distinct from an error response sent by the server.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// CancelledError is returned when the caller's context is cancelled or its
// deadline passes while a token endpoint request is in flight.
type CancelledError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s cancelled: %v", e.Op, e.Err)
}

// Unwrap returns the context error so errors.Is(err, context.Canceled) works.
func (e *CancelledError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err leaves the flow or credential intact, so
// that repeating the operation is safe.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var cancelled *CancelledError
	return errors.As(err, &cancelled)
}

func describeEndpointFailure(status int, code, description string, err error) string {
	switch {
	case status != 0 && code != "" && description != "":
		return fmt.Sprintf("status %d: %s - %s", status, code, description)
	case status != 0 && code != "":
		return fmt.Sprintf("status %d: %s", status, code)
	case status != 0 && err != nil:
		return fmt.Sprintf("status %d: %v", status, err)
	case status != 0:
		return fmt.Sprintf("status %d", status)
	case err != nil:
		return err.Error()
	default:
		return "unknown error"
	}
}
