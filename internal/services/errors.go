package services

import (
	"errors"
	"strings"

	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/internal/statemachine"
	"github.com/sjperalta/cashflow-api/internal/storage"
)

// Common service errors
var (
	ErrNotFound            = errors.New("record not found")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInactiveAccount     = errors.New("account is inactive")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrForbidden           = errors.New("you do not have access to this resource")
	ErrLoanSettled         = errors.New("loan is already fully paid")
	ErrInvalidTransition   = statemachine.ErrInvalidTransition
	ErrDuplicateEmail      = errors.New("a user with this email already exists")
	ErrInvalidFile         = storage.ErrInvalidFileType
	ErrFileTooLarge        = storage.ErrFileTooLarge
	ErrConcurrentUpdate    = errors.New("loan was updated by another request, please retry")
	ErrInvalidRecoveryCode = errors.New("invalid or expired recovery code")
)

// ValidationError carries every problem found in a request
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// NewValidationError builds a ValidationError from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

// fromRepo maps repository sentinels onto service errors
func fromRepo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrConcurrentUpdate
	}
	return err
}
