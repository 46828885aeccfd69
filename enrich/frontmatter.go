// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package enrich

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	bodyMaxChars = 150000
	bodyMaxLines = 3000
)

// Frontmatter is the parsed YAML header of a marker document. Name and
// Description are mandatory; everything else is optional. Extra keeps the
// full decoded mapping for persistence.
type Frontmatter struct {
	Name          string
	Description   string
	License       string
	Compatibility string
	AllowedTools  []string
	Extra         map[string]any
}

// ParseMarker splits a marker document into frontmatter and body and
// enforces the marker contract: frontmatter present with non-empty name and
// description, body non-empty and under the size ceilings. Violations are
// skip-class errors.
func ParseMarker(content string) (*Frontmatter, string, error) {
	yamlPart, body, ok := splitFrontmatter(content)
	if !ok {
		return nil, "", ErrNoFrontmatter
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(yamlPart), &raw); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadFrontmatter, err)
	}
	if raw == nil {
		return nil, "", ErrBadFrontmatter
	}

	fm := &Frontmatter{
		Name:          stringValue(raw["name"]),
		Description:   stringValue(raw["description"]),
		License:       stringValue(raw["license"]),
		Compatibility: stringValue(raw["compatibility"]),
		AllowedTools:  toolList(raw["allowed-tools"]),
		Extra:         raw,
	}

	if fm.Name == "" {
		return nil, "", ErrMissingName
	}
	if fm.Description == "" {
		return nil, "", ErrMissingDescription
	}
	if strings.TrimSpace(body) == "" {
		return nil, "", ErrEmptyBody
	}
	if len(body) > bodyMaxChars {
		return nil, "", fmt.Errorf("%w: %d chars", ErrBodyTooLong, len(body))
	}
	if lines := strings.Count(body, "\n") + 1; lines > bodyMaxLines {
		return nil, "", fmt.Errorf("%w: %d lines", ErrBodyTooLong, lines)
	}

	return fm, body, nil
}

// splitFrontmatter extracts the text between the leading "---" fence pair.
func splitFrontmatter(content string) (yamlPart, body string, ok bool) {
	content = strings.TrimPrefix(content, "\ufeff")
	rest, found := strings.CutPrefix(content, "---")
	if !found {
		return "", "", false
	}
	rest, found = strings.CutPrefix(rest, "\r\n")
	if !found {
		rest, found = strings.CutPrefix(rest, "\n")
		if !found {
			return "", "", false
		}
	}

	for _, fence := range []string{"\r\n---", "\n---"} {
		if idx := strings.Index(rest, fence); idx >= 0 {
			yamlPart = rest[:idx]
			body = rest[idx+len(fence):]
			// The closing fence must end its line.
			body = strings.TrimPrefix(body, "\r\n")
			body = strings.TrimPrefix(body, "\n")
			return yamlPart, body, true
		}
	}
	return "", "", false
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

// toolList accepts the allowed-tools field as either a YAML list or a
// whitespace/comma separated string.
func toolList(v any) []string {
	switch value := v.(type) {
	case nil:
		return nil
	case []any:
		var out []string
		for _, item := range value {
			if s := stringValue(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		fields := strings.FieldsFunc(stringValue(value), func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
		})
		var out []string
		for _, f := range fields {
			if f != "" {
				out = append(out, f)
			}
		}
		return out
	}
}
