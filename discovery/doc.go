// Package discovery produces the minimal correct work list for a run: it
// compares the repositories GitHub currently reports against the persisted
// canonical index, suppresses duplicate and forked copies, and classifies
// surviving candidates as new or updated.
package discovery
