package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pkceflow/pkg/logging"
)

const (
	// DefaultHTTPTimeout is the default timeout for token endpoint requests.
	DefaultHTTPTimeout = 30 * time.Second

	// maxTokenResponseBytes caps how much of a token endpoint response is read.
	maxTokenResponseBytes = 1 << 20
)

// HTTPClient is the transport used for token endpoint requests.
// *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// responseError is a non-success or malformed token endpoint response.
// Callers convert it into TokenExchangeError or RefreshFailedError.
type responseError struct {
	statusCode  int
	errorCode   string
	description string
	body        string
	err         error
}

func (e *responseError) Error() string {
	return describeEndpointFailure(e.statusCode, e.errorCode, e.description, e.err)
}

// tokenClient performs form-encoded POSTs against the token endpoint.
type tokenClient struct {
	tokenURL   string
	httpClient HTTPClient
}

// do posts form to the token endpoint and decodes a successful response.
// It returns *CancelledError, *NetworkError or *responseError on failure.
func (c *tokenClient) do(ctx context.Context, op string, form url.Values) (TokenPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenPayload{}, &NetworkError{Op: op, URL: c.tokenURL, Err: err}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenPayload{}, c.transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return TokenPayload{}, c.transportError(ctx, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.Debug("TokenEndpoint", "%s rejected with status %d", op, resp.StatusCode)
		return TokenPayload{}, parseErrorResponse(resp.StatusCode, body)
	}

	payload, err := parseTokenResponse(body)
	if err != nil {
		return TokenPayload{}, &responseError{statusCode: resp.StatusCode, body: string(body), err: err}
	}

	return payload, nil
}

// transportError reports *CancelledError only when ctx itself has ended.
// Timeouts enforced by the transport are network failures.
func (c *tokenClient) transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &CancelledError{Op: op, Err: ctxErr}
	}
	return &NetworkError{Op: op, URL: c.tokenURL, Err: err}
}

// parseErrorResponse extracts the RFC 6749 error fields when the body is JSON.
func parseErrorResponse(status int, body []byte) *responseError {
	respErr := &responseError{statusCode: status, body: string(body)}

	var oauthErr struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &oauthErr); err == nil {
		respErr.errorCode = oauthErr.Error
		respErr.description = oauthErr.ErrorDescription
	}

	return respErr
}

// parseTokenResponse decodes a token endpoint success body. access_token and
// expires_in are required; token_type defaults to Bearer.
func parseTokenResponse(body []byte) (TokenPayload, error) {
	var raw struct {
		AccessToken  string      `json:"access_token"`
		RefreshToken string      `json:"refresh_token"`
		IDToken      string      `json:"id_token"`
		TokenType    string      `json:"token_type"`
		ExpiresIn    json.Number `json:"expires_in"`
		Scope        string      `json:"scope"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return TokenPayload{}, fmt.Errorf("failed to parse token response: %w", err)
	}

	if raw.AccessToken == "" {
		return TokenPayload{}, errors.New("token response is missing access_token")
	}
	if raw.ExpiresIn == "" {
		return TokenPayload{}, errors.New("token response is missing expires_in")
	}
	expiresIn, err := raw.ExpiresIn.Int64()
	if err != nil {
		return TokenPayload{}, fmt.Errorf("token response has invalid expires_in %q: %w", raw.ExpiresIn, err)
	}

	tokenType := raw.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return TokenPayload{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		IDToken:      raw.IDToken,
		TokenType:    tokenType,
		ExpiresIn:    expiresIn,
		Scope:        raw.Scope,
	}, nil
}
