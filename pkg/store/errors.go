package store

import (
	"errors"
	"fmt"
)

// Common store errors that can be checked with errors.Is().
var (
	// ErrProviderNotFound is returned when a provider id does not exist.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrNoProvider is returned by SelectProvider when no enabled,
	// non-blacklisted provider exists for the requested CLI type.
	ErrNoProvider = errors.New("no available provider configured")
)

// ProviderNotFoundError is returned when an operation references a provider
// id that does not exist.
type ProviderNotFoundError struct {
	// ID is the provider id that was requested.
	ID int64
}

// Error implements the error interface.
func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("provider %d not found", e.ID)
}

// Is implements error matching for errors.Is().
func (e *ProviderNotFoundError) Is(target error) bool {
	return target == ErrProviderNotFound
}

// NoProviderError is returned when the selector finds no eligible provider
// for a CLI type.
type NoProviderError struct {
	// CLIType is the requested CLI type.
	CLIType string
}

// Error implements the error interface.
func (e *NoProviderError) Error() string {
	return fmt.Sprintf("no available provider configured for %s", e.CLIType)
}

// Is implements error matching for errors.Is().
func (e *NoProviderError) Is(target error) bool {
	return target == ErrNoProvider
}
