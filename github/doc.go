// Package github provides the rate-governed GitHub API boundary for the
// pipeline: a TokenPool that rations requests across a set of credentials
// under quota constraints, and a minimal REST client for code search, git
// trees, file contents, and repository metadata.
//
// The TokenPool is the single piece of shared state mutated concurrently by
// pipeline workers; every quota read-modify-write is serialized behind its
// mutex. Each Acquire optimistically decrements the chosen credential's
// counter; the true server-reported quota is written back opportunistically
// from response headers.
package github
