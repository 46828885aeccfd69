package fetcher

import "errors"

var (
	// ErrClientRequired is returned when a GitHub client is not provided.
	ErrClientRequired = errors.New("github client required")

	// ErrMarkerMissing is returned when the marker document no longer exists
	// at the recorded path. The item is skipped, not failed.
	ErrMarkerMissing = errors.New("marker document missing")

	// ErrMarkerTooLarge is returned when the marker document exceeds the
	// size ceiling. The item is skipped, not failed, and no enrichment call
	// is made for it.
	ErrMarkerTooLarge = errors.New("marker document exceeds size ceiling")
)

// IsSkip reports whether err marks an item that should be recorded as
// skipped rather than failed.
func IsSkip(err error) bool {
	return errors.Is(err, ErrMarkerMissing) || errors.Is(err, ErrMarkerTooLarge)
}
