package model

import "context"

// Embedder produces vectors for text. EmbedBatch must be deterministic
// for identical input and returns one vector per input text, in order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
