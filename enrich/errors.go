package enrich

import (
	"errors"
	"fmt"
)

var (
	// ErrClientRequired is returned when an LLM client is not provided.
	ErrClientRequired = errors.New("llm client required")

	// ErrNoFrontmatter is returned when the marker document carries no YAML
	// frontmatter block. The item is skipped, not failed.
	ErrNoFrontmatter = errors.New("no yaml frontmatter found")

	// ErrBadFrontmatter is returned when the frontmatter is not valid YAML
	// or is not a mapping. The item is skipped, not failed.
	ErrBadFrontmatter = errors.New("invalid yaml frontmatter")

	// ErrMissingName is returned when frontmatter lacks a non-empty name.
	ErrMissingName = errors.New("frontmatter missing name")

	// ErrMissingDescription is returned when frontmatter lacks a non-empty
	// description.
	ErrMissingDescription = errors.New("frontmatter missing description")

	// ErrEmptyBody is returned when the marker document has no body text.
	ErrEmptyBody = errors.New("marker body is empty")

	// ErrBodyTooLong is returned when the body exceeds the character or
	// line ceiling.
	ErrBodyTooLong = errors.New("marker body too long")

	// ErrGenerationExhausted is returned when the LLM output still fails
	// validation after the regeneration ceiling.
	ErrGenerationExhausted = errors.New("enrichment failed validation after regeneration")
)

// MissingBlockError reports a mandatory tagged block absent from an LLM
// response. Optional blocks never produce this error.
type MissingBlockError struct {
	Block string
}

func (e *MissingBlockError) Error() string {
	return fmt.Sprintf("response missing mandatory block %q", e.Block)
}

// IsSkip reports whether err marks an item that should be recorded as
// skipped rather than failed: marker documents that never qualified for
// enrichment.
func IsSkip(err error) bool {
	return errors.Is(err, ErrNoFrontmatter) ||
		errors.Is(err, ErrBadFrontmatter) ||
		errors.Is(err, ErrMissingName) ||
		errors.Is(err, ErrMissingDescription) ||
		errors.Is(err, ErrEmptyBody) ||
		errors.Is(err, ErrBodyTooLong)
}
