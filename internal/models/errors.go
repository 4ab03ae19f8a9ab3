// internal/models/errors.go
package models

import "errors"

// Errors shared by the adapters of external collaborators.
var (
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
	ErrLobbyNotFound              = errors.New("lobby not found")
)
