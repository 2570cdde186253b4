package config

import (
	"fmt"
	"net"
	"strings"

	"pkceflow/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateSettings checks the runtime settings and returns every problem found.
func ValidateSettings(s Settings) error {
	var errs ValidationErrors

	if s.ClockSkew < 0 {
		errs.Add("settings.clockSkew", "must not be negative", s.ClockSkew)
	}
	if s.FlowTTL < 0 {
		errs.Add("settings.flowTTL", "must not be negative", s.FlowTTL)
	}
	if s.HTTPTimeout <= 0 {
		errs.Add("settings.httpTimeout", "must be positive", s.HTTPTimeout)
	}
	if s.CallbackTimeout <= 0 {
		errs.Add("settings.callbackTimeout", "must be positive", s.CallbackTimeout)
	}
	if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
		errs.Add("settings.listenAddress", fmt.Sprintf("must be host:port (%v)", err), s.ListenAddress)
	}
	if _, err := logging.ParseLogLevel(s.LogLevel); err != nil {
		errs.Add("settings.logLevel", err.Error(), s.LogLevel)
	}
	switch strings.ToLower(s.LogFormat) {
	case logging.FormatText, logging.FormatJSON, "":
	default:
		errs.Add("settings.logFormat", "must be text or json", s.LogFormat)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Validate checks the client registration and the runtime settings.
// Client problems are reported as *oauth.ConfigError.
func Validate(cfg Config) error {
	if err := cfg.Client.Validate(); err != nil {
		return err
	}
	return ValidateSettings(cfg.Settings)
}
