package app

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials is shown to end users and must not reveal whether the account exists.
	ErrInvalidCredentials = errors.New("Incorrect email or password")

	ErrEmailNotVerified         = errors.New("Please verify your email address before logging in")
	ErrUserAlreadyExists        = errors.New("User already exists")
	ErrInvalidVerificationToken = errors.New("Token is invalid or has expired")
	ErrVerificationEmail        = errors.New("Error sending verification email. Please try again.")

	ErrNoActiveSession = errors.New("no active session")
	ErrNotFound        = errors.New("not found")
	ErrUnavailable     = errors.New("service not configured")
	ErrForbidden       = errors.New("operation not allowed")
)

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// err returns e when it holds at least one field, else nil.
func (e *ValidationError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
