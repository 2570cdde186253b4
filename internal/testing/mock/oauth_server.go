package mock

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pkceflow/pkg/logging"
)

// TimeSource is anything that can report the current time. *Clock
// implements it.
type TimeSource interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// OAuthServerConfig configures the mock authorization server.
type OAuthServerConfig struct {
	// Issuer is the iss claim of issued ID tokens. Defaults to the base URL.
	Issuer string

	// ClientID is the expected client_id. Defaults to "test-client".
	ClientID string

	// ClientSecret, when set, must accompany refresh requests.
	ClientSecret string

	// TokenLifetime is the expires_in of issued access tokens. Defaults to 1h.
	TokenLifetime time.Duration

	// PKCERequired rejects authorization requests without a code_challenge.
	PKCERequired bool

	// AutoApprove makes /authorize redirect straight back to the client.
	AutoApprove bool

	// Clock is the time source for issued tokens. Defaults to real time.
	Clock TimeSource

	// SimulateErrors alters token endpoint behaviour.
	SimulateErrors *OAuthErrorSimulation
}

// OAuthErrorSimulation allows simulating error conditions at /token.
type OAuthErrorSimulation struct {
	// TokenEndpointError makes /token answer 400 server_error with this description.
	TokenEndpointError string

	// InvalidGrant rejects every grant with invalid_grant.
	InvalidGrant bool

	// MalformedResponse makes /token answer 200 with a body that is not JSON.
	MalformedResponse bool

	// OmitRefreshToken leaves refresh_token out of refresh responses and
	// keeps the presented refresh token valid.
	OmitRefreshToken bool

	// TokenDelay holds every /token response for this long, or until the
	// client goes away.
	TokenDelay time.Duration
}

// TokenResponse is the token endpoint success body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

type authCodeEntry struct {
	ClientID        string
	RedirectURI     string
	Scope           string
	State           string
	CodeChallenge   string
	ChallengeMethod string
	CreatedAt       time.Time
}

type issuedToken struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	ClientID     string
	ExpiresAt    time.Time
}

// OAuthServer is a mock OAuth 2.1 authorization server.
type OAuthServer struct {
	config     OAuthServerConfig
	httpServer *http.Server
	listener   net.Listener
	baseURL    string
	running    bool
	mu         sync.RWMutex

	authCodes     map[string]*authCodeEntry
	refreshTokens map[string]*issuedToken
	queued        []TokenResponse
	lastForm      url.Values

	tokenRequests    atomic.Int64
	exchangeRequests atomic.Int64
	refreshRequests  atomic.Int64

	clock TimeSource
}

// NewOAuthServer creates a mock server. Call Start to serve it.
func NewOAuthServer(config OAuthServerConfig) *OAuthServer {
	if config.TokenLifetime == 0 {
		config.TokenLifetime = time.Hour
	}
	if config.ClientID == "" {
		config.ClientID = "test-client"
	}

	clock := config.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &OAuthServer{
		config:        config,
		authCodes:     make(map[string]*authCodeEntry),
		refreshTokens: make(map[string]*issuedToken),
		clock:         clock,
	}
}

// Handler returns the server's routes, for use with httptest.
func (s *OAuthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/authorize", s.handleAuthorize)
	mux.HandleFunc("/token", s.handleToken)
	return mux
}

// Start serves on a random loopback port and returns the base URL.
func (s *OAuthServer) Start(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.baseURL, nil
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	s.baseURL = "http://" + listener.Addr().String()
	if s.config.Issuer == "" {
		s.config.Issuer = s.baseURL
	}

	s.httpServer = &http.Server{
		Handler:  s.Handler(),
		ErrorLog: log.New(io.Discard, "", 0),
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Error("MockOAuth", err, "Mock OAuth server stopped unexpectedly")
		}
	}()

	s.running = true
	logging.Debug("MockOAuth", "Mock OAuth server started on %s", s.baseURL)

	return s.baseURL, nil
}

// Stop shuts the server down.
func (s *OAuthServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.httpServer.Shutdown(ctx)
	s.running = false
	return err
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *OAuthServer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// AuthorizeURL returns the authorization endpoint.
func (s *OAuthServer) AuthorizeURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL + "/authorize"
}

// TokenURL returns the token endpoint.
func (s *OAuthServer) TokenURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL + "/token"
}

// ClientID returns the expected client_id.
func (s *OAuthServer) ClientID() string {
	return s.config.ClientID
}

// SetErrorSimulation replaces the error simulation; nil restores normal behaviour.
func (s *OAuthServer) SetErrorSimulation(sim *OAuthErrorSimulation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.SimulateErrors = sim
}

// QueueTokenResponse makes the next successful grant answer with resp
// instead of generated tokens.
func (s *OAuthServer) QueueTokenResponse(resp TokenResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, resp)
}

// TokenRequests returns how many requests reached /token.
func (s *OAuthServer) TokenRequests() int {
	return int(s.tokenRequests.Load())
}

// ExchangeRequests returns how many authorization_code grants were received.
func (s *OAuthServer) ExchangeRequests() int {
	return int(s.exchangeRequests.Load())
}

// RefreshRequests returns how many refresh_token grants were received.
func (s *OAuthServer) RefreshRequests() int {
	return int(s.refreshRequests.Load())
}

// LastForm returns a copy of the form of the most recent /token request.
func (s *OAuthServer) LastForm() url.Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(url.Values, len(s.lastForm))
	for k, v := range s.lastForm {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// GenerateAuthCode registers an authorization code bound to a PKCE challenge.
func (s *OAuthServer) GenerateAuthCode(clientID, redirectURI, scope, state, codeChallenge, codeChallengeMethod string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := generateOpaqueToken()
	s.authCodes[code] = &authCodeEntry{
		ClientID:        clientID,
		RedirectURI:     redirectURI,
		Scope:           scope,
		State:           state,
		CodeChallenge:   codeChallenge,
		ChallengeMethod: codeChallengeMethod,
		CreatedAt:       s.clock.Now(),
	}

	return code
}

// Authorize plays the part of the user approving authURL in a browser. It
// returns the code and state the server would redirect back with.
func (s *OAuthServer) Authorize(authURL string) (code, state string, err error) {
	u, err := url.Parse(authURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid authorization URL: %w", err)
	}
	q := u.Query()

	if err := s.validateAuthorizeRequest(q); err != nil {
		return "", "", err
	}

	state = q.Get("state")
	code = s.GenerateAuthCode(q.Get("client_id"), q.Get("redirect_uri"), q.Get("scope"), state,
		q.Get("code_challenge"), q.Get("code_challenge_method"))

	return code, state, nil
}

func (s *OAuthServer) validateAuthorizeRequest(q url.Values) error {
	if q.Get("response_type") != "code" {
		return fmt.Errorf("unsupported_response_type: %q", q.Get("response_type"))
	}
	if q.Get("client_id") != s.config.ClientID {
		return fmt.Errorf("invalid_client: %q", q.Get("client_id"))
	}
	if s.config.PKCERequired && q.Get("code_challenge") == "" {
		return fmt.Errorf("invalid_request: code_challenge missing")
	}
	return nil
}

func (s *OAuthServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := s.validateAuthorizeRequest(q); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	redirectURI := q.Get("redirect_uri")
	state := q.Get("state")
	code := s.GenerateAuthCode(q.Get("client_id"), redirectURI, q.Get("scope"), state,
		q.Get("code_challenge"), q.Get("code_challenge_method"))

	if !s.config.AutoApprove {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "code=%s\nstate=%s\n", code, state)
		return
	}

	redirectURL, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	rq := redirectURL.Query()
	rq.Set("code", code)
	if state != "" {
		rq.Set("state", state)
	}
	redirectURL.RawQuery = rq.Encode()

	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

func (s *OAuthServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	s.tokenRequests.Add(1)
	grantType := r.PostForm.Get("grant_type")
	switch grantType {
	case "authorization_code":
		s.exchangeRequests.Add(1)
	case "refresh_token":
		s.refreshRequests.Add(1)
	}

	s.mu.Lock()
	s.lastForm = r.PostForm
	sim := s.config.SimulateErrors
	s.mu.Unlock()

	if sim != nil {
		if sim.TokenDelay > 0 {
			select {
			case <-time.After(sim.TokenDelay):
			case <-r.Context().Done():
				return
			}
		}
		if sim.TokenEndpointError != "" {
			writeOAuthError(w, http.StatusBadRequest, "server_error", sim.TokenEndpointError)
			return
		}
		if sim.InvalidGrant {
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "grant is invalid")
			return
		}
		if sim.MalformedResponse {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html>not json</html>")
			return
		}
	}

	switch grantType {
	case "authorization_code":
		s.handleAuthCodeExchange(w, r)
	case "refresh_token":
		s.handleRefreshToken(w, r, sim != nil && sim.OmitRefreshToken)
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type",
			fmt.Sprintf("grant_type %s not supported", grantType))
	}
}

func (s *OAuthServer) handleAuthCodeExchange(w http.ResponseWriter, r *http.Request) {
	code := r.PostForm.Get("code")
	codeVerifier := r.PostForm.Get("code_verifier")
	clientID := r.PostForm.Get("client_id")
	redirectURI := r.PostForm.Get("redirect_uri")

	s.mu.Lock()
	entry, exists := s.authCodes[code]
	if exists {
		delete(s.authCodes, code)
	}
	s.mu.Unlock()

	if !exists {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "authorization code not found or expired")
		return
	}
	if clientID != entry.ClientID {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client", "client_id does not match the authorization request")
		return
	}
	if redirectURI != entry.RedirectURI {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri does not match the authorization request")
		return
	}

	if entry.CodeChallenge != "" {
		if codeVerifier == "" {
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "code_verifier required")
			return
		}
		if !verifyPKCE(entry.CodeChallenge, entry.ChallengeMethod, codeVerifier) {
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "code_verifier verification failed")
			return
		}
	}

	resp := s.issue(entry.ClientID, entry.Scope, "", false)
	writeJSON(w, resp)
}

func (s *OAuthServer) handleRefreshToken(w http.ResponseWriter, r *http.Request, omitRefreshToken bool) {
	refreshToken := r.PostForm.Get("refresh_token")

	if s.config.ClientSecret != "" && r.PostForm.Get("client_secret") != s.config.ClientSecret {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	s.mu.Lock()
	original, ok := s.refreshTokens[refreshToken]
	if ok {
		delete(s.refreshTokens, refreshToken)
	}
	s.mu.Unlock()

	if !ok {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "refresh token not found")
		return
	}

	scope := original.Scope
	if requested := r.PostForm.Get("scope"); requested != "" {
		scope = requested
	}

	resp := s.issue(original.ClientID, scope, refreshToken, omitRefreshToken)
	writeJSON(w, resp)
}

// issue mints a token response, or takes the next queued one, and registers
// its refresh token. When omitRefreshToken is set, previousRefresh stays
// valid and is not sent back.
func (s *OAuthServer) issue(clientID, scope, previousRefresh string, omitRefreshToken bool) TokenResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resp TokenResponse
	if len(s.queued) > 0 {
		resp = s.queued[0]
		s.queued = s.queued[1:]
	} else {
		resp = TokenResponse{
			AccessToken:  generateOpaqueToken(),
			RefreshToken: generateOpaqueToken(),
			TokenType:    "Bearer",
			ExpiresIn:    int(s.config.TokenLifetime.Seconds()),
			Scope:        scope,
			IDToken:      s.generateIDToken(clientID),
		}
	}

	if omitRefreshToken {
		resp.RefreshToken = ""
	}

	refreshToken := resp.RefreshToken
	if refreshToken == "" {
		refreshToken = previousRefresh
	}
	if refreshToken != "" {
		s.refreshTokens[refreshToken] = &issuedToken{
			AccessToken:  resp.AccessToken,
			RefreshToken: refreshToken,
			Scope:        scope,
			ClientID:     clientID,
			ExpiresAt:    s.clock.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		}
	}

	return resp
}

func verifyPKCE(challenge, method, verifier string) bool {
	switch method {
	case "S256":
		hash := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(hash[:]) == challenge
	case "plain", "":
		return verifier == challenge
	default:
		return false
	}
}

func generateOpaqueToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Errorf("crypto/rand failed: %w", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// generateIDToken returns an UNSIGNED (alg: none) ID token. Test use only.
func (s *OAuthServer) generateIDToken(clientID string) string {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"iss":   s.config.Issuer,
		"sub":   "test-user-123",
		"aud":   clientID,
		"exp":   now.Add(s.config.TokenLifetime).Unix(),
		"iat":   now.Unix(),
		"email": "test@example.com",
		"name":  "Test User",
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		panic(fmt.Errorf("failed to build id token: %w", err))
	}
	return token
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
