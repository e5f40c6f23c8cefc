package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Indexer pairs an embedder with a vector store so callers deal in text.
type Indexer struct {
	embedder Embedder
	store    Store
}

func NewIndexer(embedder Embedder, store Store) *Indexer {
	return &Indexer{embedder: embedder, store: store}
}

// IndexText embeds content and upserts it under the user's namespace,
// returning the generated document ID.
func (ix *Indexer) IndexText(ctx context.Context, userID, content string) (string, error) {
	vec, err := ix.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("embed document: %w", err)
	}
	id := uuid.NewString()
	err = ix.store.Upsert(ctx, Document{
		ID:        id,
		Content:   content,
		Namespace: userID,
		Embedding: vec,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Search embeds the query and returns the user's k nearest documents.
func (ix *Indexer) Search(ctx context.Context, userID, query string, k int) ([]Result, error) {
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return ix.store.Query(ctx, userID, vec, k)
}
