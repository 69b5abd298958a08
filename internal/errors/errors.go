package errors

import (
	"errors"
	"fmt"
)

// InvalidRequestError indicates an exchange request with missing or
// unparseable parameters. Surfaced to callers as a client failure.
type InvalidRequestError struct {
	Message string
}

func (e InvalidRequestError) Error() string {
	if e.Message == "" {
		return "invalid request"
	}
	return "invalid request: " + e.Message
}

// TokenValidationError indicates a bearer assertion that failed
// signature, issuer or audience checks, or that token exchange is not
// configured at all.
type TokenValidationError struct {
	Message string
	Err     error
}

func (e TokenValidationError) Error() string {
	msg := "token validation failed"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e TokenValidationError) Unwrap() error {
	return e.Err
}

// AuthenticationError indicates that the inbound caller could not be
// authenticated against the configured client credentials.
type AuthenticationError struct {
	Message string
}

func (e AuthenticationError) Error() string {
	if e.Message == "" {
		return "authentication required"
	}
	return e.Message
}

// AdapterError wraps a backend statement failure. The underlying driver
// error is preserved for inspection via Unwrap.
type AdapterError struct {
	Platform  string
	Operation string
	Err       error
}

func (e AdapterError) Error() string {
	msg := "adapter error"
	if e.Platform != "" {
		msg = fmt.Sprintf("%s adapter error", e.Platform)
	}
	if e.Operation != "" {
		msg += fmt.Sprintf(" during %s", e.Operation)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e AdapterError) Unwrap() error {
	return e.Err
}

// ConfigurationError indicates an unsupported or misconfigured setting,
// detected at startup rather than at call time.
type ConfigurationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	return msg + ": " + e.Message
}

// IsClientError reports whether err should be surfaced to the caller as
// a client-class failure rather than a server-side one.
func IsClientError(err error) bool {
	var ir InvalidRequestError
	var tv TokenValidationError
	var ae AuthenticationError
	return errors.As(err, &ir) || errors.As(err, &tv) || errors.As(err, &ae)
}
