package oauth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pkceflow/pkg/logging"
)

// refreshKey is the singleflight key shared by every refresh of the session token.
const refreshKey = "refresh"

// TokenManager owns the session's bearer credential. It stores at most one
// TokenRecord, answers expiry queries and refreshes the access token when it
// expires.
//
// SECURITY: token values are never logged; only expiry times and whether a
// refresh token is present.
type TokenManager struct {
	cfg    ClientConfig
	client *tokenClient
	clock  Clock

	mu         sync.RWMutex
	record     *TokenRecord
	generation uint64

	// refreshGroup coalesces concurrent refreshes into one request, since
	// many servers invalidate a refresh token after its first use.
	refreshGroup singleflight.Group

	callMu sync.Mutex
	call   *refreshCall
}

// refreshCall is the context shared by everyone waiting on one refresh
// request. It is cancelled once every waiter has given up.
type refreshCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewTokenManager creates a TokenManager for cfg. It returns a *ConfigError
// when cfg is incomplete.
func NewTokenManager(cfg ClientConfig, opts ...Option) (*TokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := newOptions(opts)

	return &TokenManager{
		cfg: cfg,
		client: &tokenClient{
			tokenURL:   cfg.TokenURL,
			httpClient: o.httpClient,
		},
		clock: o.clock,
	}, nil
}

// Set replaces the current record with one built from payload. ExpiresAt is
// the current time plus payload.ExpiresIn seconds. When payload carries no
// refresh token, the previously stored one is kept.
func (m *TokenManager) Set(payload TokenPayload) TokenRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(payload)
}

// setLocked requires m.mu to be held for writing.
func (m *TokenManager) setLocked(payload TokenPayload) TokenRecord {
	now := m.clock.Now()

	record := TokenRecord{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		IDToken:      payload.IDToken,
		TokenType:    payload.TokenType,
		Scope:        payload.Scope,
		ExpiresAt:    now.Add(time.Duration(payload.ExpiresIn) * time.Second),
		ReceivedAt:   now,
	}
	if record.RefreshToken == "" && m.record != nil {
		record.RefreshToken = m.record.RefreshToken
	}

	m.record = &record
	m.generation++

	logging.Audit("token_stored", "record", record)

	return record
}

// Current returns a snapshot of the stored record.
func (m *TokenManager) Current() (TokenRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.record == nil {
		return TokenRecord{}, false
	}
	return *m.record, true
}

// Clear drops the stored record, ending the session.
func (m *TokenManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return
	}
	m.record = nil
	m.generation++
	logging.Audit("token_cleared")
}

// AccessToken returns the access token, refreshing it first when the
// current time plus skew is not before the stored expiry. Callers that
// arrive while a refresh is in flight wait for it and share its outcome.
// A caller whose ctx ends gets *CancelledError without aborting the refresh
// for the others.
func (m *TokenManager) AccessToken(ctx context.Context, skew time.Duration) (string, error) {
	record, err := m.validRecord(ctx, skew)
	if err != nil {
		return "", err
	}
	return record.AccessToken, nil
}

// Record is AccessToken returning the whole record.
func (m *TokenManager) Record(ctx context.Context, skew time.Duration) (TokenRecord, error) {
	return m.validRecord(ctx, skew)
}

// Refresh exchanges the stored refresh token for a new record. On failure
// the existing record is left untouched.
func (m *TokenManager) Refresh(ctx context.Context) (TokenRecord, error) {
	return m.refresh(ctx, 0, 0, true)
}

func (m *TokenManager) validRecord(ctx context.Context, skew time.Duration) (TokenRecord, error) {
	m.mu.RLock()
	record := m.record
	generation := m.generation
	m.mu.RUnlock()

	if record == nil {
		return TokenRecord{}, ErrNoToken
	}

	if !record.IsExpiredWithMargin(m.clock.Now(), skew) {
		return *record, nil
	}

	logging.Debug("TokenManager", "Access token expired or within %v of expiry, refreshing", skew)
	return m.refresh(ctx, generation, skew, false)
}

// refresh runs at most one refresh request at a time. observed is the
// generation the caller saw; when the record has been replaced since and is
// valid, the leader returns it instead of refreshing again.
//
// The request runs under a context detached from any single caller, so a
// caller whose ctx ends only stops waiting. The request itself is cancelled
// when no caller is left waiting on it.
func (m *TokenManager) refresh(ctx context.Context, observed uint64, skew time.Duration, force bool) (TokenRecord, error) {
	call := m.joinCall(ctx)

	ch := m.refreshGroup.DoChan(refreshKey, func() (interface{}, error) {
		defer m.finishCall(call)

		if !force {
			m.mu.RLock()
			record := m.record
			generation := m.generation
			m.mu.RUnlock()
			if record != nil && generation != observed && !record.IsExpiredWithMargin(m.clock.Now(), skew) {
				return *record, nil
			}
		}
		return m.doRefresh(call.ctx)
	})

	select {
	case res := <-ch:
		m.leaveCall(call)
		if res.Err != nil {
			return TokenRecord{}, res.Err
		}
		return res.Val.(TokenRecord), nil
	case <-ctx.Done():
		m.leaveCall(call)
		return TokenRecord{}, &CancelledError{Op: "token refresh", Err: ctx.Err()}
	}
}

// joinCall registers the caller as a waiter on the current refresh call,
// starting a new one when none is open.
func (m *TokenManager) joinCall(ctx context.Context) *refreshCall {
	m.callMu.Lock()
	defer m.callMu.Unlock()

	if m.call == nil {
		callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		m.call = &refreshCall{ctx: callCtx, cancel: cancel}
	}
	m.call.waiters++
	return m.call
}

// leaveCall drops a waiter. Once nobody waits on call, its request is
// cancelled if it is still running.
func (m *TokenManager) leaveCall(call *refreshCall) {
	m.callMu.Lock()
	defer m.callMu.Unlock()

	call.waiters--
	if call.waiters > 0 {
		return
	}
	call.cancel()
	if m.call == call {
		m.call = nil
	}
}

// finishCall closes call once its request has completed.
func (m *TokenManager) finishCall(call *refreshCall) {
	m.callMu.Lock()
	if m.call == call {
		m.call = nil
	}
	m.callMu.Unlock()
	call.cancel()
}

// doRefresh performs the refresh_token grant.
func (m *TokenManager) doRefresh(ctx context.Context) (TokenRecord, error) {
	m.mu.RLock()
	current := m.record
	startGeneration := m.generation
	m.mu.RUnlock()

	if current == nil || current.RefreshToken == "" {
		return TokenRecord{}, ErrNoRefreshToken
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.cfg.ClientID},
		"refresh_token": {current.RefreshToken},
	}
	if m.cfg.ClientSecret != "" {
		form.Set("client_secret", m.cfg.ClientSecret)
	}
	if m.cfg.Scope != "" {
		form.Set("scope", m.cfg.Scope)
	}

	payload, err := m.client.do(ctx, "token refresh", form)
	if err != nil {
		var cancelled *CancelledError
		if errors.As(err, &cancelled) {
			logging.Debug("TokenManager", "Token refresh cancelled: %v", cancelled.Err)
			return TokenRecord{}, cancelled
		}
		logging.Audit("token_refresh_failed", "error", err.Error())
		return TokenRecord{}, newRefreshFailedError(err)
	}

	if payload.RefreshToken == "" {
		payload.RefreshToken = current.RefreshToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Clear or Set ran while the request was in flight. The response belongs
	// to a session that has since ended or been replaced.
	if m.generation != startGeneration {
		logging.Debug("TokenManager", "Discarding refresh result for a replaced session")
		if m.record == nil {
			return TokenRecord{}, ErrNoToken
		}
		return *m.record, nil
	}

	return m.setLocked(payload), nil
}

func newRefreshFailedError(err error) *RefreshFailedError {
	var respErr *responseError
	if errors.As(err, &respErr) {
		return &RefreshFailedError{
			StatusCode:  respErr.statusCode,
			ErrorCode:   respErr.errorCode,
			Description: respErr.description,
			Body:        respErr.body,
			Err:         respErr.err,
		}
	}
	return &RefreshFailedError{Err: err}
}
