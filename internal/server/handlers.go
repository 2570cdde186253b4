package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pkceflow/pkg/logging"
	"pkceflow/pkg/oauth"
)

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Scope       string    `json:"scope,omitempty"`
}

type statusResponse struct {
	Authenticated   bool       `json:"authenticated"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Expired         bool       `json:"expired"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	HasIDToken      bool       `json:"has_id_token"`
	PendingFlows    int        `json:"pending_flows"`
}

func newTokenResponse(record oauth.TokenRecord) tokenResponse {
	return tokenResponse{
		AccessToken: record.AccessToken,
		TokenType:   record.TokenType,
		ExpiresAt:   record.ExpiresAt,
		Scope:       record.Scope,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := statusResponse{PendingFlows: s.orch.Pending()}

	if record, ok := s.tokens.Current(); ok {
		expiresAt := record.ExpiresAt
		resp.Authenticated = true
		resp.ExpiresAt = &expiresAt
		resp.Expired = record.IsExpiredWithMargin(s.opts.Now(), 0)
		resp.HasRefreshToken = record.HasRefreshToken()
		resp.HasIDToken = record.IDToken != ""
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLogin(c *gin.Context) {
	authURL, err := s.orch.BeginFlow()
	if err != nil {
		logging.Error("Server", err, "Failed to begin authorization flow")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to begin authorization flow"})
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

func (s *Server) handleCallback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		logging.Warn("Server", "Authorization server returned error: %s", providerErr)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             providerErr,
			"error_description": c.Query("error_description"),
		})
		return
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code or state parameter"})
		return
	}

	record, err := s.orch.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "authenticated",
		"expires_at":        record.ExpiresAt,
		"has_refresh_token": record.HasRefreshToken(),
	})
}

func (s *Server) handleToken(c *gin.Context) {
	record, err := s.tokens.Record(c.Request.Context(), s.opts.ClockSkew)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(record))
}

func (s *Server) handleRefresh(c *gin.Context) {
	record, err := s.tokens.Refresh(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(record))
}

func (s *Server) handleLogout(c *gin.Context) {
	s.tokens.Clear()
	c.Status(http.StatusNoContent)
}

// writeError maps oauth errors onto HTTP statuses. Upstream bodies are not
// forwarded; only the OAuth error code is.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		exchangeErr *oauth.TokenExchangeError
		refreshErr  *oauth.RefreshFailedError
		cancelErr   *oauth.CancelledError
	)

	switch {
	case errors.Is(err, oauth.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state"})
	case errors.Is(err, oauth.ErrNoToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
	case errors.Is(err, oauth.ErrNoRefreshToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no_refresh_token"})
	case errors.As(err, &exchangeErr):
		logging.Error("Server", err, "Token exchange failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "token_exchange_failed", "upstream_error": exchangeErr.ErrorCode})
	case errors.As(err, &refreshErr):
		logging.Error("Server", err, "Token refresh failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "refresh_failed", "upstream_error": refreshErr.ErrorCode})
	case errors.As(err, &cancelErr):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "cancelled"})
	default:
		logging.Error("Server", err, "Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
