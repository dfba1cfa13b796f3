package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfigurationMissing = errors.New("store configuration missing")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("message not found")
)

// ValidationError describes bad client input. Its Message is safe to show to clients.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConnectionCategory is a coarse diagnosis of a failed connection attempt.
// It is meant for operator logs only.
type ConnectionCategory string

const (
	CategoryDNS   ConnectionCategory = "dns"
	CategoryAuth  ConnectionCategory = "auth"
	CategoryOther ConnectionCategory = "other"
)

// Describe returns an operator-facing hint for the category.
func (c ConnectionCategory) Describe() string {
	switch c {
	case CategoryDNS:
		return "database host could not be resolved, check the connection string"
	case CategoryAuth:
		return "database authentication failed, check the credentials"
	default:
		return "database could not be reached"
	}
}

// ConnectionError is returned when a store cannot establish its connection.
// It matches ErrStoreUnavailable.
type ConnectionError struct {
	Backend  string
	Category ConnectionCategory
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed (%s): %v", e.Backend, e.Category, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// Unavailable marks err as a store-unavailable failure while keeping it inspectable.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
