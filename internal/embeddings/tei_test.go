package embeddings_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/notegraph/internal/embeddings"
)

// newTEIServer returns a fake TEI endpoint producing 4-dimensional vectors
// and recording request batch sizes.
func newTEIServer(t *testing.T, batches *[]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed", r.URL.Path)

		var req struct {
			Inputs []string `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if batches != nil {
			*batches = append(*batches, len(req.Inputs))
		}

		// Deliberately non-normalized output.
		vectors := make([][]float32, len(req.Inputs))
		for i := range req.Inputs {
			vectors[i] = []float32{3, 4, 0, 0}
		}
		require.NoError(t, json.NewEncoder(w).Encode(vectors))
	}))
}

func norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func TestTEIProvider_EmbedQueryNormalizes(t *testing.T) {
	server := newTEIServer(t, nil)
	defer server.Close()

	provider, err := embeddings.NewTEIProvider(embeddings.Config{BaseURL: server.URL, Model: "bge-small"}, nil)
	require.NoError(t, err)

	vec, err := provider.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, 4)
	assert.InDelta(t, 1.0, norm(vec), 1e-5, "vectors must be L2-normalized")
}

func TestTEIProvider_EmbedDocumentsBatches(t *testing.T) {
	var batches []int
	server := newTEIServer(t, &batches)
	defer server.Close()

	provider, err := embeddings.NewTEIProvider(embeddings.Config{
		BaseURL:   server.URL,
		Model:     "bge-small",
		BatchSize: 2,
	}, nil)
	require.NoError(t, err)

	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := provider.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)

	assert.Len(t, vectors, len(texts))
	assert.Equal(t, []int{2, 2, 1}, batches)
	for _, vec := range vectors {
		assert.InDelta(t, 1.0, norm(vec), 1e-5)
	}
}

func TestTEIProvider_EmptyInput(t *testing.T) {
	provider, err := embeddings.NewTEIProvider(embeddings.Config{BaseURL: "http://localhost:1"}, nil)
	require.NoError(t, err)

	_, err = provider.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, embeddings.ErrEmptyInput)

	_, err = provider.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, embeddings.ErrEmptyInput)
}

func TestTEIProvider_ServerErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider, err := embeddings.NewTEIProvider(embeddings.Config{BaseURL: server.URL}, nil)
	require.NoError(t, err)

	_, err = provider.EmbedQuery(context.Background(), "hello")
	assert.ErrorIs(t, err, embeddings.ErrEmbeddingFailed)
}

func TestTEIProvider_DimensionProbe(t *testing.T) {
	server := newTEIServer(t, nil)
	defer server.Close()

	provider, err := embeddings.NewTEIProvider(embeddings.Config{BaseURL: server.URL, Model: "bge-small"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, provider.Metadata().Dimensions, "dimensions unknown before probe")

	dim, err := provider.Dimension(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, dim)

	md := provider.Metadata()
	assert.Equal(t, "tei", md.Provider)
	assert.Equal(t, 4, md.Dimensions)
	assert.True(t, md.Normalized)
}

func TestNewProvider(t *testing.T) {
	_, err := embeddings.NewProvider(embeddings.Config{Provider: "tei"}, nil)
	assert.ErrorIs(t, err, embeddings.ErrInvalidConfig, "TEI requires a base URL")

	_, err = embeddings.NewProvider(embeddings.Config{Provider: "mystery"}, nil)
	assert.ErrorIs(t, err, embeddings.ErrInvalidConfig)
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := embeddings.NewOpenAIProvider(embeddings.Config{}, nil)
	assert.ErrorIs(t, err, embeddings.ErrInvalidConfig)
}
