// Package common defines shared constants and sentinel errors used across
// the store, its repositories and the transport. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Collaborator I/O failure (database, object storage), propagated opaquely.
	ErrStorageIO = errors.New("storage i/o error")

	// Ciphertext failed the AEAD tag check.
	ErrAuthenticationFailure = errors.New("authentication failure")

	// A stored blob could not be opened; wraps ErrAuthenticationFailure.
	ErrCorruptBlob = errors.New("corrupt blob")

	// A live document without versions.
	ErrCorruptDocument = errors.New("corrupt document")

	// The add-version serialization guard detected a race.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// Umbrella for every hash-chain audit failure.
	ErrIntegrityCompromised = errors.New("integrity compromised")

	// Validation errors.
	ErrorValidation = errors.New("validation error")

	// Auth errors.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
)
