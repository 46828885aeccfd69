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
	"strconv"
	"strings"

	"github.com/poiesic/skillscan/core"
)

const findingDescriptionMax = 500

// node is one tagged block in a parsed response.
type node struct {
	name     string
	text     strings.Builder
	children []*node
}

// Response is an LLM reply parsed into a tree of tagged blocks. Text
// outside any tag, markdown fences, and unknown tags are all tolerated;
// whether a given block is mandatory is the caller's contract, expressed
// through MissingBlockError.
type Response struct {
	root *node
}

// ParseResponse scans the reply with a tag stack. Opening tags push a
// block, closing tags pop back to the matching block (silently closing
// anything unclosed in between), and EOF closes whatever remains open.
// Anything that does not look like a simple tag is treated as text.
func ParseResponse(input string) *Response {
	root := &node{}
	stack := []*node{root}

	for i := 0; i < len(input); {
		open := strings.IndexByte(input[i:], '<')
		if open < 0 {
			stack[len(stack)-1].text.WriteString(input[i:])
			break
		}
		open += i
		stack[len(stack)-1].text.WriteString(input[i:open])

		// Comments are dropped entirely.
		if strings.HasPrefix(input[open:], "<!--") {
			end := strings.Index(input[open:], "-->")
			if end < 0 {
				break
			}
			i = open + end + 3
			continue
		}

		end := strings.IndexByte(input[open:], '>')
		if end < 0 {
			stack[len(stack)-1].text.WriteString(input[open:])
			break
		}
		end += open

		tag := input[open+1 : end]
		closing := strings.HasPrefix(tag, "/")
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(tag, "/")))

		if !validTagName(name) {
			// Not a tag: literal '<' inside content.
			stack[len(stack)-1].text.WriteByte('<')
			i = open + 1
			continue
		}

		if closing {
			for depth := len(stack) - 1; depth > 0; depth-- {
				if stack[depth].name == name {
					stack = stack[:depth]
					break
				}
			}
		} else {
			child := &node{name: name}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, child)
			stack = append(stack, child)
		}
		i = end + 1
	}

	return &Response{root: root}
}

// Block returns the trimmed text of the first block with the given name,
// searching depth-first. The second result reports presence.
func (r *Response) Block(name string) (string, bool) {
	n := findNode(r.root, strings.ToLower(name))
	if n == nil {
		return "", false
	}
	return strings.TrimSpace(n.text.String()), true
}

// MandatoryBlock is Block, but absence is a typed error.
func (r *Response) MandatoryBlock(name string) (string, error) {
	text, ok := r.Block(name)
	if !ok {
		return "", &MissingBlockError{Block: name}
	}
	return text, nil
}

// List returns the non-empty <item> entries of the named block, in order.
// A missing block yields an empty list.
func (r *Response) List(name string) []string {
	n := findNode(r.root, strings.ToLower(name))
	if n == nil {
		return nil
	}
	var items []string
	for _, child := range n.children {
		if child.name != "item" {
			continue
		}
		if text := strings.TrimSpace(child.text.String()); text != "" {
			items = append(items, text)
		}
	}
	return items
}

// Findings extracts security findings from the warnings block. Both
// "security_warnings" and "warnings" are accepted; a missing block or an
// empty one yields no findings, which is valid. Entries without a
// description are dropped; out-of-set severity and type degrade to "low"
// and "other".
func (r *Response) Findings() []core.SecurityFinding {
	block := findNode(r.root, "security_warnings")
	if block == nil {
		block = findNode(r.root, "warnings")
	}
	if block == nil {
		return nil
	}

	var findings []core.SecurityFinding
	for _, w := range block.children {
		if w.name != "warning" {
			continue
		}

		description := strings.TrimSpace(childText(w, "description"))
		if description == "" {
			continue
		}
		description = truncate(description, findingDescriptionMax)

		severity := core.Severity(strings.ToLower(strings.TrimSpace(childText(w, "severity"))))
		if !core.ValidSeverity(severity) {
			severity = core.SeverityLow
		}

		kind := core.FindingType(strings.ToLower(strings.TrimSpace(childText(w, "type"))))
		if !core.ValidFindingType(kind) {
			kind = core.FindingOther
		}

		line := 0
		if s := strings.TrimSpace(childText(w, "line")); s != "" {
			line, _ = strconv.Atoi(s)
		}

		findings = append(findings, core.SecurityFinding{
			File:        strings.TrimSpace(childText(w, "file")),
			Line:        line,
			Severity:    severity,
			Type:        kind,
			Description: description,
		})
	}
	return findings
}

func findNode(n *node, name string) *node {
	for _, child := range n.children {
		if child.name == name {
			return child
		}
		if found := findNode(child, name); found != nil {
			return found
		}
	}
	return nil
}

func childText(n *node, name string) string {
	for _, child := range n.children {
		if child.name == name {
			return child.text.String()
		}
	}
	return ""
}

func validTagName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
