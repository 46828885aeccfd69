package blob

import "errors"

var (
	// ErrClientRequired is returned when NewUploader is given a nil client.
	ErrClientRequired = errors.New("object client required")

	// ErrEndpointRequired is returned when Connect is given no endpoint.
	ErrEndpointRequired = errors.New("endpoint required")
)
