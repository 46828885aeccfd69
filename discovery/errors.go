package discovery

import "errors"

var (
	// ErrClientRequired is returned when a GitHub client is not provided.
	ErrClientRequired = errors.New("github client required")

	// ErrStoreRequired is returned when an index loader is not provided.
	ErrStoreRequired = errors.New("index loader required")
)
