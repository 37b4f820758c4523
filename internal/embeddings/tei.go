package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// TEIProvider generates embeddings via a text-embeddings-inference HTTP
// endpoint, for local or self-hosted models.
type TEIProvider struct {
	baseURL   string
	model     string
	batchSize int
	client    *http.Client
	logger    *zap.Logger
	metrics   *Metrics
	dims      dimensionCache
}

// teiRequest is the request body for the TEI embed endpoint.
type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// NewTEIProvider creates a TEI-backed provider.
func NewTEIProvider(cfg Config, logger *zap.Logger) (*TEIProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: TEI base URL required", ErrInvalidConfig)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &TEIProvider{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		batchSize: batchSize,
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger,
		metrics:   NewMetrics(logger),
	}, nil
}

// EmbedQuery generates a normalized embedding for a single text.
func (p *TEIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := p.request(ctx, []string{text})
	if err != nil {
		genErr = err
		return nil, genErr
	}
	return vectors[0], nil
}

// EmbedDocuments generates normalized embeddings for multiple texts, one
// request per batch.
func (p *TEIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	embeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += p.batchSize {
		end := i + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := p.request(ctx, texts[i:end])
		if err != nil {
			genErr = fmt.Errorf("batch %d-%d: %w", i, end, err)
			return nil, genErr
		}
		embeddings = append(embeddings, batch...)
	}

	return embeddings, nil
}

// request performs one embed call and normalizes the results.
func (p *TEIProvider) request(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
	}

	for i := range vectors {
		vectors[i] = l2Normalize(vectors[i])
	}
	return vectors, nil
}

// Dimension returns the embedding dimension, probing the endpoint on first
// call.
func (p *TEIProvider) Dimension(ctx context.Context) (int, error) {
	return p.dims.get(ctx, p.EmbedQuery)
}

// Metadata returns the active embedding configuration.
func (p *TEIProvider) Metadata() ModelMetadata {
	return ModelMetadata{
		Provider:   "tei",
		Model:      p.model,
		BatchSize:  p.batchSize,
		Dimensions: p.dims.cached(),
		Normalized: true,
	}
}

// Close is a no-op since TEI uses plain HTTP.
func (p *TEIProvider) Close() error {
	return nil
}

var _ Provider = (*TEIProvider)(nil)
