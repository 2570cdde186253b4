package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pkceflow/pkg/logging"
)

// Orchestrator drives PKCE authorization attempts. Each BeginFlow creates a
// pending flow keyed by its state token; HandleCallback consumes it and
// exchanges the authorization code for tokens, which are handed to the
// TokenManager.
//
// Several flows may be pending at once, e.g. one per browser tab.
type Orchestrator struct {
	cfg    ClientConfig
	tokens *TokenManager
	client *tokenClient

	crypto  CryptoProvider
	codec   Codec
	clock   Clock
	flowTTL time.Duration

	// newVerifier is swapped in tests that need a fixed code verifier.
	newVerifier func() (string, error)

	mu      sync.Mutex
	pending map[string]*FlowState
}

// NewOrchestrator creates an Orchestrator that stores exchanged tokens in
// tokens. It returns a *ConfigError when cfg is incomplete.
func NewOrchestrator(cfg ClientConfig, tokens *TokenManager, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, &ConfigError{Field: "token_manager", Reason: "is required"}
	}

	o := newOptions(opts)

	orch := &Orchestrator{
		cfg:    cfg,
		tokens: tokens,
		client: &tokenClient{
			tokenURL:   cfg.TokenURL,
			httpClient: o.httpClient,
		},
		crypto:  o.crypto,
		codec:   o.codec,
		clock:   o.clock,
		flowTTL: o.flowTTL,
		pending: make(map[string]*FlowState),
	}
	orch.newVerifier = func() (string, error) {
		return randomToken(orch.crypto, orch.codec, pkceVerifierBytes)
	}

	return orch, nil
}

// BeginFlow starts an authorization attempt and returns the URL the user
// must visit. No network call is made.
func (o *Orchestrator) BeginFlow() (string, error) {
	stateToken, err := randomToken(o.crypto, o.codec, stateBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	verifier, err := o.newVerifier()
	if err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}

	flow := &FlowState{
		id:            uuid.NewString(),
		stateToken:    stateToken,
		codeVerifier:  verifier,
		codeChallenge: ComputeChallenge(o.crypto, o.codec, verifier),
		createdAt:     o.clock.Now(),
	}

	o.mu.Lock()
	o.pruneLocked(flow.createdAt)
	o.pending[stateToken] = flow
	pending := len(o.pending)
	o.mu.Unlock()

	logging.Debug("Orchestrator", "Started flow %s (%d pending)", flow.id, pending)
	logging.Audit("flow_started", "flow_id", flow.id)

	return o.authorizationURL(flow), nil
}

// authorizationURL appends the flow parameters to the configured
// authorization endpoint in a fixed order.
func (o *Orchestrator) authorizationURL(flow *FlowState) string {
	params := [][2]string{
		{"response_type", "code"},
		{"client_id", o.cfg.ClientID},
		{"state", flow.stateToken},
		{"redirect_uri", o.cfg.RedirectURI},
		{"code_challenge_method", CodeChallengeMethodS256},
		{"code_challenge", flow.codeChallenge},
	}

	optional := [][2]string{
		{"connection", o.cfg.Connection},
		{"audience", o.cfg.Audience},
		{"organisation", o.cfg.Organisation},
		{"scope", o.cfg.Scope},
		{"prompt", o.cfg.Prompt},
	}
	for _, p := range optional {
		if p[1] != "" {
			params = append(params, p)
		}
	}

	var b strings.Builder
	b.WriteString(o.cfg.AuthorizationURL)
	if strings.Contains(o.cfg.AuthorizationURL, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}

	return b.String()
}

// HandleCallback redeems the pending flow for state and exchanges code for
// tokens. The flow is consumed whatever the outcome, except when ctx ends
// first: then it is put back so the callback can be retried.
//
// Unknown, expired or already consumed states fail with ErrInvalidState
// before any request is sent.
func (o *Orchestrator) HandleCallback(ctx context.Context, code, state string) (TokenRecord, error) {
	flow, err := o.take(state)
	if err != nil {
		logging.Audit("callback_rejected", "reason", "invalid_state")
		return TokenRecord{}, err
	}

	logging.Debug("Orchestrator", "Exchanging authorization code for flow %s", flow.id)

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {o.cfg.ClientID},
		"code":          {code},
		"code_verifier": {flow.codeVerifier},
		"redirect_uri":  {o.cfg.RedirectURI},
	}

	payload, err := o.client.do(ctx, "token exchange", form)
	if err != nil {
		var cancelled *CancelledError
		if errors.As(err, &cancelled) {
			o.restore(flow)
			logging.Debug("Orchestrator", "Token exchange for flow %s cancelled, flow restored", flow.id)
			return TokenRecord{}, cancelled
		}
		logging.Audit("token_exchange_failed", "flow_id", flow.id, "error", err.Error())
		return TokenRecord{}, newTokenExchangeError(err)
	}

	record := o.tokens.Set(payload)
	logging.Audit("token_exchanged", "flow_id", flow.id)

	return record, nil
}

// take removes and returns the pending flow for state.
func (o *Orchestrator) take(state string) (*FlowState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	flow, ok := o.pending[state]
	if !ok {
		return nil, ErrInvalidState
	}
	delete(o.pending, state)

	if flow.expired(o.clock.Now(), o.flowTTL) {
		logging.Debug("Orchestrator", "Flow %s expired", flow.id)
		return nil, ErrInvalidState
	}

	return flow, nil
}

func (o *Orchestrator) restore(flow *FlowState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[flow.stateToken] = flow
}

// Pending returns the number of flows waiting for a callback.
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Prune drops flows older than the flow TTL and returns how many were removed.
func (o *Orchestrator) Prune() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pruneLocked(o.clock.Now())
}

func (o *Orchestrator) pruneLocked(now time.Time) int {
	removed := 0
	for state, flow := range o.pending {
		if flow.expired(now, o.flowTTL) {
			delete(o.pending, state)
			removed++
		}
	}
	if removed > 0 {
		logging.Debug("Orchestrator", "Pruned %d expired flows", removed)
	}
	return removed
}

// Tokens returns the TokenManager that receives exchanged tokens.
func (o *Orchestrator) Tokens() *TokenManager {
	return o.tokens
}

func newTokenExchangeError(err error) *TokenExchangeError {
	var respErr *responseError
	if errors.As(err, &respErr) {
		return &TokenExchangeError{
			StatusCode:  respErr.statusCode,
			ErrorCode:   respErr.errorCode,
			Description: respErr.description,
			Body:        respErr.body,
			Err:         respErr.err,
		}
	}
	return &TokenExchangeError{Err: err}
}
