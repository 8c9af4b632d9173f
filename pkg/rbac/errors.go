package rbac

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an authorization error
type ErrorType string

const (
	ErrorTypeInsufficientPrivileges ErrorType = "insufficient_privileges"
	ErrorTypeUnauthenticated        ErrorType = "unauthenticated"
	ErrorTypeInvalidRequest         ErrorType = "invalid_request"
	ErrorTypeInvalidConfiguration   ErrorType = "invalid_configuration"
	ErrorTypeSystemError            ErrorType = "system_error"
	ErrorTypeRateLimited            ErrorType = "rate_limited"
)

// RBACError represents an authorization error with detailed context
type RBACError struct {
	Type        ErrorType `json:"type"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	Route       string    `json:"route,omitempty"`
	Roles       []Role    `json:"roles,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Cause       error     `json:"-"`
}

// Error implements the error interface
func (e *RBACError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Type, e.Message)
}

// Unwrap returns the underlying cause of the error
func (e *RBACError) Unwrap() error {
	return e.Cause
}

// NewRBACError creates a new RBAC error
func NewRBACError(errorType ErrorType, code, message string) *RBACError {
	return &RBACError{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// NewRBACErrorWithCause creates a new RBAC error with an underlying cause
func NewRBACErrorWithCause(errorType ErrorType, code, message string, cause error) *RBACError {
	return &RBACError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithContext attaches the route and held roles to a copy of the error
func (e *RBACError) WithContext(route string, roles []Role) *RBACError {
	c := *e
	c.Route = route
	c.Roles = append([]Role(nil), roles...)
	return &c
}

// WithSuggestions attaches suggestions for resolving the error to a copy of it
func (e *RBACError) WithSuggestions(suggestions ...string) *RBACError {
	c := *e
	c.Suggestions = append([]string(nil), suggestions...)
	return &c
}

// Predefined errors
var (
	ErrInsufficientPrivileges = NewRBACError(
		ErrorTypeInsufficientPrivileges,
		ErrorCodeInsufficientPrivileges,
		"Held roles do not grant access to this route",
	)

	ErrUnauthenticated = NewRBACError(
		ErrorTypeUnauthenticated,
		ErrorCodeUnauthenticated,
		"Route requires an authenticated principal",
	)

	ErrInvalidRequest = NewRBACError(
		ErrorTypeInvalidRequest,
		ErrorCodeInvalidRequest,
		"Request is missing required parameters",
	)

	ErrRateLimited = NewRBACError(
		ErrorTypeRateLimited,
		ErrorCodeRateLimited,
		"Too many authorization requests",
	)

	ErrInvalidConfiguration = NewRBACError(
		ErrorTypeInvalidConfiguration,
		ErrorCodeInvalidConfiguration,
		"Route policy failed verification",
	)

	ErrSystemError = NewRBACError(
		ErrorTypeSystemError,
		ErrorCodeSystemError,
		"Authorization decision unavailable",
	)
)

// GetRBACError extracts an RBAC error from an error chain
func GetRBACError(err error) (*RBACError, bool) {
	var rbacErr *RBACError
	if errors.As(err, &rbacErr) {
		return rbacErr, true
	}
	return nil, false
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' with value '%s': %s", e.Field, e.Value, e.Message)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("multiple validation errors: %d errors found (first: %s)", len(e), e[0].Error())
}

// Add adds a validation error to the collection
func (e *ValidationErrors) Add(field, value, message string) {
	*e = append(*e, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ConfigurationError represents a defect in a policy document or service config
type ConfigurationError struct {
	Component string `json:"component"`
	Setting   string `json:"setting"`
	Value     string `json:"value"`
	Message   string `json:"message"`
	Cause     error  `json:"-"`
}

// Error implements the error interface for ConfigurationError
func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error in %s.%s='%s': %s", e.Component, e.Setting, e.Value, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error wrapping cause
func (e *ConfigurationError) WithCause(cause error) *ConfigurationError {
	c := *e
	c.Cause = cause
	return &c
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(component, setting, value, message string) *ConfigurationError {
	return &ConfigurationError{
		Component: component,
		Setting:   setting,
		Value:     value,
		Message:   message,
	}
}
