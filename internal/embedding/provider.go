// Package embedding selects, once at construction time, whether the
// service runs with embedding support or without it. Callers never
// branch on API-key presence themselves; they hold a Provider and ask
// it for vectors.
package embedding

import (
	"context"
	"log"
)

// Generator is the subset of the OpenAI client used for embeddings.
type Generator interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Provider produces embedding vectors for text. Embed never returns an
// error: when embeddings are unavailable or a transient failure occurs,
// it returns an empty vector so ingestion can degrade to keyword-only
// retrieval instead of failing the document.
type Provider interface {
	// Embed returns the embedding for text, or an empty slice when no
	// embedding could be produced.
	Embed(ctx context.Context, text string) []float32
	// Available reports whether this provider can produce embeddings at all.
	Available() bool
}

type capable struct {
	generator Generator
	logger    *log.Logger
}

type unavailable struct{}

// NewProvider returns a capable provider backed by generator, or the
// unavailable variant when generator is nil.
func NewProvider(generator Generator, logger *log.Logger) Provider {
	if generator == nil {
		if logger != nil {
			logger.Printf("embeddings disabled: no generator configured, falling back to keyword search")
		}
		return unavailable{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &capable{generator: generator, logger: logger}
}

// Unavailable returns the provider variant that never produces embeddings.
func Unavailable() Provider {
	return unavailable{}
}

func (c *capable) Embed(ctx context.Context, text string) []float32 {
	if text == "" {
		return nil
	}
	vec, err := c.generator.GenerateEmbedding(ctx, text)
	if err != nil {
		// Transient API failures degrade this chunk to keyword-only retrieval.
		c.logger.Printf("embedding generation failed: %v", err)
		return nil
	}
	return vec
}

func (c *capable) Available() bool { return true }

func (unavailable) Embed(ctx context.Context, text string) []float32 { return nil }

func (unavailable) Available() bool { return false }
