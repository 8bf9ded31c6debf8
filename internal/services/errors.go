package services

import (
	"errors"
	"sort"
	"strings"

	"github.com/diewo77/invoicegen/internal/models"
	"github.com/diewo77/invoicegen/validation"
)

var (
	ErrNotFound          = errors.New("invoice not found")
	ErrForbidden         = errors.New("access to invoice denied")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrInvalidStatus     = models.ErrInvalidStatus
)

// ValidationError reports rejected input. Nothing was persisted.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// PersistenceError wraps a store failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

// AuthError is a sign-in or sign-up failure. Code is an i18n key.
type AuthError struct {
	Code string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "auth: " + e.Code + ": " + e.Err.Error()
	}
	return "auth: " + e.Code
}

func (e *AuthError) Unwrap() error { return e.Err }
