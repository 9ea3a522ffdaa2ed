package maintenance

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrRepositoryRequired is returned when a repository is not provided.
	ErrRepositoryRequired = errors.New("repository required")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid maintenance config")
)
