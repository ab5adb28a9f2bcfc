package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredential is the single error returned for every failed
	// login, whichever of identifier or password was wrong.
	ErrInvalidCredential = errors.New("invalid username/email or password")

	ErrDuplicateUsername = errors.New("username already exists")

	// ErrInvalidClient is returned when OAuth client authentication fails.
	ErrInvalidClient = errors.New("invalid client credentials")
)

// MissingFieldError reports a required input that was absent or blank.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// ValidationError reports a supplied value that was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
