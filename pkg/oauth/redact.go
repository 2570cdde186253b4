package oauth

import (
	"fmt"
	"log/slog"
	"time"
)

// String implements fmt.Stringer without exposing any token value.
func (r TokenRecord) String() string {
	return fmt.Sprintf("TokenRecord{TokenType: %s, ExpiresAt: %s, HasRefreshToken: %t, HasIDToken: %t}",
		r.TokenType, r.ExpiresAt.Format(time.RFC3339), r.HasRefreshToken(), r.IDToken != "")
}

// GoString implements fmt.GoStringer so %#v is redacted too.
func (r TokenRecord) GoString() string {
	return "oauth." + r.String()
}

// LogValue implements slog.LogValuer.
func (r TokenRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("token_type", r.TokenType),
		slog.Time("expires_at", r.ExpiresAt),
		slog.Bool("has_refresh_token", r.HasRefreshToken()),
		slog.Bool("has_id_token", r.IDToken != ""),
	)
}

// String implements fmt.Stringer. The state token and verifier are omitted.
func (f *FlowState) String() string {
	return fmt.Sprintf("FlowState{ID: %s, CreatedAt: %s}", f.id, f.createdAt.Format(time.RFC3339))
}

// GoString implements fmt.GoStringer.
func (f *FlowState) GoString() string {
	return "oauth." + f.String()
}

// LogValue implements slog.LogValuer.
func (f *FlowState) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("flow_id", f.id),
		slog.Time("created_at", f.createdAt),
	)
}
