package embeddings

import (
	"context"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIProvider generates embeddings via the OpenAI embeddings API.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	batchSize int
	logger    *zap.Logger
	metrics   *Metrics
	dims      dimensionCache
}

// NewOpenAIProvider creates an OpenAI-backed provider. The API key is taken
// from config or the OPENAI_API_KEY environment variable.
func NewOpenAIProvider(cfg Config, logger *zap.Logger) (*OpenAIProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not set", ErrInvalidConfig)
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &OpenAIProvider{
		client:    openai.NewClient(apiKey),
		model:     model,
		batchSize: batchSize,
		logger:    logger,
		metrics:   NewMetrics(logger),
	}, nil
}

// EmbedQuery generates a normalized embedding for a single text.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
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

// EmbedDocuments generates normalized embeddings for multiple texts, one API
// call per batch.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
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

		p.logger.Debug("embedded batch",
			zap.String("model", p.model),
			zap.Int("done", end),
			zap.Int("total", len(texts)),
		)
	}

	return embeddings, nil
}

// request performs one embeddings API call and normalizes the results.
func (p *OpenAIProvider) request(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = l2Normalize(vec)
	}
	return vectors, nil
}

// Dimension returns the embedding dimension, probing the model on first call.
func (p *OpenAIProvider) Dimension(ctx context.Context) (int, error) {
	return p.dims.get(ctx, p.EmbedQuery)
}

// Metadata returns the active embedding configuration.
func (p *OpenAIProvider) Metadata() ModelMetadata {
	return ModelMetadata{
		Provider:   "openai",
		Model:      p.model,
		BatchSize:  p.batchSize,
		Dimensions: p.dims.cached(),
		Normalized: true,
	}
}

// Close is a no-op; the OpenAI client holds no resources.
func (p *OpenAIProvider) Close() error {
	return nil
}

var _ Provider = (*OpenAIProvider)(nil)
