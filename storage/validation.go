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


package storage

import (
	"fmt"

	"github.com/poiesic/skillscan/core"
)

// Column ceilings of the skills table. A record over a ceiling is rejected
// before the write; it is never truncated to fit.
const (
	RepoFullNameMax = 200
	NameMax         = 500
	DescriptionMax  = 5000
	TaglineMax      = 500
	SearchTextMax   = 10000
)

// ValidateRecord checks an enriched skill against the store's field
// ceilings. Violations return a *FieldError wrapped in ErrInvalidRecord.
func ValidateRecord(skill *core.EnrichedSkill) error {
	checks := []struct {
		field    string
		value    string
		max      int
		required bool
	}{
		{"repo_full_name", skill.RepoFullName, RepoFullNameMax, true},
		{"name", skill.Name, NameMax, true},
		{"description", skill.Description, DescriptionMax, true},
		{"tagline", skill.Tagline, TaglineMax, false},
		{"search_text", skill.SearchText, SearchTextMax, false},
	}

	for _, c := range checks {
		if c.value == "" {
			if c.required {
				return fmt.Errorf("%w: %w", ErrInvalidRecord, missingField(c.field))
			}
			continue
		}
		if len(c.value) > c.max {
			return fmt.Errorf("%w: %w", ErrInvalidRecord, tooLongField(c.field, len(c.value), c.max))
		}
	}

	return nil
}
