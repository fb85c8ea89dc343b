// Package memory is the long-term fact store. Facts are embedded on
// write and recalled by cosine similarity against a query embedding,
// with a keyword fallback when the embedding backend is unavailable.
package memory

import "context"

// Store is the memory capability consumed by skills and the
// orchestrator's auto-capture hook.
type Store interface {
	// Store persists one fact.
	Store(ctx context.Context, text string) error

	// Recall returns up to limit facts relevant to the query, most
	// relevant first.
	Recall(ctx context.Context, query string, limit int) ([]string, error)
}
