// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateWorkItem validates a WorkItem according to domain rules.
//
// Validation rules:
//   - RepoFullName must be of the form "owner/repo"
//   - SHA must not be empty
//
// NOT validated (legitimately absent on some items):
//   - SkillPath ("" means the marker sits at the repo root)
//   - PushedAt (zero when the source omitted it)
func ValidateWorkItem(item *WorkItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidWorkItem)
	}

	parts := strings.Split(item.RepoFullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%w: %w", ErrInvalidWorkItem, ErrEmptyRepoName)
	}

	if item.SHA == "" {
		return fmt.Errorf("%w: %w", ErrInvalidWorkItem, ErrEmptySHA)
	}

	return nil
}

// ValidateEnrichment checks the minimum-content rules for LLM-derived
// metadata. A record that fails these rules must not be persisted; the
// enrichment client re-drives a fresh generation attempt instead.
//
// Rules:
//   - Tagline non-empty and at least 5 characters
//   - At least 2 tags
//   - At least 2 key features
func ValidateEnrichment(tagline string, tags, keyFeatures []string) error {
	if utf8.RuneCountInString(strings.TrimSpace(tagline)) < 5 {
		return fmt.Errorf("%w: %w", ErrInvalidEnrichment, ErrShortTagline)
	}
	if len(tags) < 2 {
		return fmt.Errorf("%w: %w (got %d)", ErrInvalidEnrichment, ErrTooFewTags, len(tags))
	}
	if len(keyFeatures) < 2 {
		return fmt.Errorf("%w: %w (got %d)", ErrInvalidEnrichment, ErrTooFewFeatures, len(keyFeatures))
	}
	return nil
}

// ValidSeverity reports whether s is one of the known severity grades.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// ValidFindingType reports whether t is one of the known finding categories.
func ValidFindingType(t FindingType) bool {
	switch t {
	case FindingPromptInjection, FindingMaliciousCode, FindingDataExfiltration,
		FindingCredentialExposure, FindingDestructiveOperation, FindingOther:
		return true
	}
	return false
}
