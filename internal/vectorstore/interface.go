package vectorstore

import "context"

// Document is a transcript (or analysis report) indexed for retrieval.
// Namespace is the owning user's ID; queries never cross namespaces.
type Document struct {
	ID        string
	Content   string
	Namespace string
	Embedding []float32
}

// Result is a retrieved document with its similarity score.
type Result struct {
	ID        string
	Content   string
	Namespace string
	Score     float32
}

// Store is the vector index over past conversations.
type Store interface {
	Upsert(ctx context.Context, doc Document) error
	// Query returns up to k nearest documents within the namespace.
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]Result, error)
	// Delete removes a document; deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error
	Close() error
}
