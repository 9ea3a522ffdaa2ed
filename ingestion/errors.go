package ingestion

import "errors"

var (
	// ErrRepositoryRequired is returned when an index repository is not provided.
	ErrRepositoryRequired = errors.New("index repository required")

	// ErrAnalyzerRequired is returned when an analyzer is not provided.
	ErrAnalyzerRequired = errors.New("analyzer required")

	// ErrInvalidRequest is returned when a request is missing required values.
	ErrInvalidRequest = errors.New("invalid index request")

	// ErrReleased is returned by Submit after the Indexer was released.
	ErrReleased = errors.New("indexer released")
)
