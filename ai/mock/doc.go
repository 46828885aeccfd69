// Package mock provides test double implementations of the ai interfaces.
//
// MockBackend and MockEmbedder allow tests to run without external LLM
// services. Behavior is injected via function fields; when a field is nil a
// deterministic default is used.
package mock
