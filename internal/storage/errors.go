package storage

import "errors"

// Sentinel errors shared by every repository implementation. Callers match
// with errors.Is so the API layer can translate them into precise HTTP
// failures.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
