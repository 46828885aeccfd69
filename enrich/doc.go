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

// Package enrich turns fetched skill content into validated structured
// metadata. One LLM call per skill produces both descriptive fields and
// security findings; the tagged-block response is parsed with a small
// tag-stack parser and validated against minimum-field rules, regenerating
// the completion once when validation fails.
package enrich
