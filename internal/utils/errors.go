package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to API clients.
type ErrorKind string

const (
	KindUnauthorized      ErrorKind = "UNAUTHORIZED"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindInvalidRideState  ErrorKind = "INVALID_RIDE_STATE"
	KindCapacityExceeded  ErrorKind = "CAPACITY_EXCEEDED"
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindDependencyFailure ErrorKind = "DEPENDENCY_FAILURE"
)

var (
	// ErrNotFound is returned by repositories when no document matches.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by repositories when a write would break a
	// uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{Kind: KindNotFound, Message: resource + " not found"}
}

func NewInvalidTransitionError(entity, from, to string) *AppError {
	return &AppError{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot move %s from %s to %s", entity, from, to),
	}
}

func NewInvalidRideStateError(status string) *AppError {
	return &AppError{
		Kind:    KindInvalidRideState,
		Message: fmt.Sprintf("ride is %s and no longer accepts bookings", status),
	}
}

func NewCapacityExceededError(requested, available int) *AppError {
	return &AppError{
		Kind:    KindCapacityExceeded,
		Message: fmt.Sprintf("requested %d seats but only %d available", requested, available),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func NewDependencyError(message string, err error) *AppError {
	return &AppError{Kind: KindDependencyFailure, Message: message, Err: err}
}

// KindOf returns the kind of the first AppError in err's chain. Errors that
// carry no kind are treated as dependency failures.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindDependencyFailure
}

func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
