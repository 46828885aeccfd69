// Package fetcher retrieves a work item's raw content from GitHub: the
// marker document, the skill directory's file tree, and a bounded set of
// sibling files used as enrichment context.
package fetcher
