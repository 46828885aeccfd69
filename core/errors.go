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

import "errors"

// Domain validation errors
var (
	// ErrInvalidWorkItem indicates a WorkItem failed validation.
	ErrInvalidWorkItem = errors.New("invalid work item")

	// ErrInvalidEnrichment indicates LLM-derived metadata failed the
	// minimum-content rules.
	ErrInvalidEnrichment = errors.New("invalid enrichment")

	// ErrEmptyRepoName indicates the RepoFullName field is empty or malformed.
	ErrEmptyRepoName = errors.New("repository full name must be owner/repo")

	// ErrEmptySHA indicates the marker file SHA is missing.
	ErrEmptySHA = errors.New("marker file sha cannot be empty")

	// ErrShortTagline indicates the tagline is missing or under 5 characters.
	ErrShortTagline = errors.New("tagline must be at least 5 characters")

	// ErrTooFewTags indicates fewer than 2 tags were produced.
	ErrTooFewTags = errors.New("need at least 2 tags")

	// ErrTooFewFeatures indicates fewer than 2 key features were produced.
	ErrTooFewFeatures = errors.New("need at least 2 key features")
)
