package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkceflow/internal/formatting"
	"pkceflow/pkg/oauth"
)

var (
	whoamiIDToken string
	whoamiOutput  string
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Decode the claims of an ID token",
	Long: `Prints the claims carried by an OpenID Connect ID token.

The signature is not verified; the output is for display only. Pass the
token with --id-token, or with --id-token - to read it from stdin.`,
	Args: cobra.NoArgs,
	RunE: runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)

	whoamiCmd.Flags().StringVar(&whoamiIDToken, "id-token", "", "ID token to decode, or - for stdin")
	whoamiCmd.Flags().StringVarP(&whoamiOutput, "output", "o", "table", "Output format: table, json, yaml")
	_ = whoamiCmd.MarkFlagRequired("id-token")
}

func runWhoami(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(whoamiOutput)
	if err != nil {
		return err
	}

	raw := whoamiIDToken
	if raw == "-" {
		b, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 64*1024))
		if err != nil {
			return fmt.Errorf("failed to read ID token from stdin: %w", err)
		}
		raw = string(b)
	}

	record := oauth.TokenRecord{IDToken: strings.TrimSpace(raw)}
	claims, err := record.Claims()
	if err != nil {
		if errors.Is(err, oauth.ErrNoIDToken) {
			return fmt.Errorf("no ID token given")
		}
		return err
	}

	data, err := claimsMap(claims)
	if err != nil {
		return err
	}

	return formatting.NewFormatter(format).Format(cmd.OutOrStdout(), describeClaims(claims, time.Now()), data)
}

// claimsMap flattens claims into their JSON names so the YAML output uses
// the same keys as the JSON output.
func claimsMap(claims oauth.IDTokenClaims) (map[string]interface{}, error) {
	b, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to encode claims: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to encode claims: %w", err)
	}
	return m, nil
}

func describeClaims(claims oauth.IDTokenClaims, now time.Time) []formatting.Field {
	var fields []formatting.Field
	add := func(key, value string, color formatting.Color) {
		if value != "" {
			fields = append(fields, formatting.Field{Key: key, Value: value, Color: color})
		}
	}

	add("Subject", claims.Subject, formatting.ColorNone)
	add("Name", claims.Name, formatting.ColorNone)
	add("Nickname", claims.Nickname, formatting.ColorNone)
	if claims.Email != "" {
		verified := formatting.ColorWarn
		if claims.EmailVerified {
			verified = formatting.ColorGood
		}
		add("Email", claims.Email, verified)
	}
	add("Organization", claims.OrgID, formatting.ColorNone)
	add("Issuer", claims.Issuer, formatting.ColorMuted)
	add("Audience", strings.Join(claims.Audience, ", "), formatting.ColorMuted)

	if claims.IssuedAt != nil {
		add("Issued", claims.IssuedAt.Format(time.RFC3339), formatting.ColorMuted)
	}
	if claims.ExpiresAt != nil {
		color := formatting.ColorGood
		if !now.Before(claims.ExpiresAt.Time) {
			color = formatting.ColorBad
		}
		add("Expires", claims.ExpiresAt.Format(time.RFC3339), color)
	}

	return fields
}
