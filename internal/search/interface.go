package search

import "github.com/pders01/analog/internal/storage"

// Searcher defines the minimal search API used by the TUI and the CLI.
type Searcher interface {
	Search(query string, limit int) ([]*Result, error)
}

// UpdateListener is implemented by engines that keep their own copy of the
// collection and want to hear about every fresh fetch.
type UpdateListener interface {
	OnCollectionUpdated(items []*storage.Release)
}

// DebugStatser provides lightweight stats for visibility/debugging.
type DebugStatser interface {
	DocCount() (int, error)
}
