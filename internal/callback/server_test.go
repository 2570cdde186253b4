package callback

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startServer(t *testing.T) *Server {
	t.Helper()

	srv, err := NewServer("http://127.0.0.1:0/callback")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, srv.Start(ctx))

	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNewServer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr string
	}{
		{"https", "https://127.0.0.1:8085/callback", "must use http"},
		{"no port", "http://127.0.0.1/callback", "must include a port"},
		{"garbage", "http://[::1", "invalid redirect URI"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewServer(tt.uri)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	srv, err := NewServer("http://localhost:8085")
	require.NoError(t, err)
	assert.Equal(t, "/", srv.path)
}

func TestServer_ReceivesCode(t *testing.T) {
	srv := startServer(t)
	assert.True(t, strings.HasSuffix(srv.RedirectURI(), "/callback"))

	status, body := get(t, srv.RedirectURI()+"?code=AUTH_CODE_1&state=xyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Authentication complete")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := srv.Wait(ctx)
	require.NoError(t, err)
	assert.False(t, result.IsError())
	assert.Equal(t, "AUTH_CODE_1", result.Code)
	assert.Equal(t, "xyz", result.State)
}

func TestServer_ProviderError(t *testing.T) {
	srv := startServer(t)

	status, body := get(t, srv.RedirectURI()+"?error=access_denied&error_description=User+said+no&state=xyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "access_denied")
	assert.Contains(t, body, "User said no")

	result, err := srv.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.Equal(t, "access_denied", result.Error)
}

func TestServer_MissingParameters(t *testing.T) {
	srv := startServer(t)

	status, _ := get(t, srv.RedirectURI()+"?state=xyz")
	assert.Equal(t, http.StatusBadRequest, status)

	result, err := srv.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "invalid_request", result.Error)
}

func TestServer_OnlyFirstCallbackCounts(t *testing.T) {
	srv := startServer(t)

	status, _ := get(t, srv.RedirectURI()+"?code=first&state=s1")
	require.Equal(t, http.StatusOK, status)

	status, body := get(t, srv.RedirectURI()+"?code=second&state=s2")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "already processed")

	result, err := srv.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", result.Code)
}

func TestServer_WaitHonoursContext(t *testing.T) {
	srv := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := srv.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServer_StopIsIdempotent(t *testing.T) {
	srv := startServer(t)
	srv.Stop()
	srv.Stop()

	_, err := http.Get(srv.RedirectURI())
	assert.Error(t, err)
}
