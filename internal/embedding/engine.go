// Package embedding generates vector embeddings for semantic intent
// matching. Two backends are supported: a local Ollama server and
// Google GenAI.
package embedding

import (
	"context"
	"fmt"
	"math"

	"openmoose/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int

	// Name identifies the backend, e.g. "ollama:embeddinggemma".
	Name() string
}

// HealthChecker is implemented by engines that can verify their backend
// is reachable. The router probes it before building its example cache.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Options selects and configures a backend.
type Options struct {
	Provider       string // "ollama" or "genai"
	OllamaEndpoint string
	OllamaModel    string
	GenAIAPIKey    string
	GenAIModel     string
}

// New creates an embedding engine for the given options.
func New(opts Options) (Engine, error) {
	logging.Embedding("creating embedding engine: provider=%s", opts.Provider)

	var engine Engine
	var err error

	switch opts.Provider {
	case "ollama", "":
		engine, err = NewOllamaEngine(opts.OllamaEndpoint, opts.OllamaModel)
	case "genai":
		engine, err = NewGenAIEngine(opts.GenAIAPIKey, opts.GenAIModel)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", opts.Provider)
	}

	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("failed to create embedding engine: %v", err)
		return nil, err
	}

	logging.Embedding("embedding engine ready: name=%s dims=%d", engine.Name(), engine.Dimensions())
	return engine, nil
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Returns a value in [-1, 1]. Zero-magnitude vectors compare as 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
