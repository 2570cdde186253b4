package config

import (
	"errors"
	"fmt"

	"pkceflow/pkg/oauth"
)

// Error types reported by ConfigurationError.
const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
)

// ConfigurationError reports a problem with a configuration file.
type ConfigurationError struct {
	FilePath  string
	ErrorType string
	Message   string
	Err       error
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	if ce.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", ce.ErrorType, ce.FilePath, ce.Message, ce.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", ce.ErrorType, ce.FilePath, ce.Message)
}

// Unwrap returns the underlying error.
func (ce *ConfigurationError) Unwrap() error {
	return ce.Err
}

// IsConfigError reports whether err stems from loading or validating
// configuration, as opposed to a runtime failure.
func IsConfigError(err error) bool {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return true
	}
	var clientErr *oauth.ConfigError
	if errors.As(err, &clientErr) {
		return true
	}
	var validationErrs ValidationErrors
	return errors.As(err, &validationErrs)
}
