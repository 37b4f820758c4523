// Package embeddings provides embedding generation via multiple providers.
//
// All providers return L2-normalized vectors so that cosine similarity
// reduces to a dot product downstream. Dimensionality is detected empirically
// by embedding a fixed probe string, since it varies by configured model.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// probeText is embedded once to detect model dimensionality.
const probeText = "Sample text to determine embedding dimensions"

// defaultBatchSize caps the number of texts per upstream request.
const defaultBatchSize = 100

// ModelMetadata describes the active embedding configuration.
type ModelMetadata struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	BatchSize  int    `json:"batch_size"`
	Dimensions int    `json:"dimensions"`
	Normalized bool   `json:"normalized"`
}

// Provider is the interface for embedding providers.
type Provider interface {
	// EmbedQuery generates a normalized embedding for a single text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments generates normalized embeddings for multiple texts,
	// batched at the configured batch size.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension, probing the model on
	// first call.
	Dimension(ctx context.Context) (int, error)

	// Metadata returns the model identity, batch size and detected
	// dimensionality (0 until the first probe).
	Metadata() ModelMetadata

	// Close releases resources held by the provider.
	Close() error
}

// Config holds configuration for creating an embedding provider.
type Config struct {
	// Provider is the provider type: "openai" or "tei".
	Provider string
	// Model is the embedding model name.
	Model string
	// BatchSize is the number of texts per request. Default 100.
	BatchSize int
	// BaseURL is the TEI endpoint (TEI provider only).
	BaseURL string
	// APIKey authenticates against OpenAI (OpenAI provider only).
	APIKey string
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg Config, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(cfg, logger)
	case "tei":
		return NewTEIProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// l2Normalize scales vec to unit length in place and returns it. Zero
// vectors are returned unchanged.
func l2Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return vec
	}
	inv := float32(1.0 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// dimensionCache memoizes probe-based dimension detection.
type dimensionCache struct {
	once sync.Once
	dim  int
	err  error
}

func (c *dimensionCache) get(ctx context.Context, embed func(context.Context, string) ([]float32, error)) (int, error) {
	c.once.Do(func() {
		vec, err := embed(ctx, probeText)
		if err != nil {
			c.err = fmt.Errorf("probing embedding dimensions: %w", err)
			return
		}
		c.dim = len(vec)
	})
	return c.dim, c.err
}

// dim returns the cached dimension without probing, 0 if not yet probed.
func (c *dimensionCache) cached() int {
	return c.dim
}
