package chunker

import (
	"context"

	"go.uber.org/zap"
)

// Enricher improves chunk titles and grouping using an external service.
// Implementations live outside this package; the chunker only defines the
// contract and the fallback semantics.
type Enricher interface {
	Enrich(ctx context.Context, chunks []Chunk) ([]Chunk, error)
}

// EnrichResult carries the outcome of an enrichment attempt.
type EnrichResult struct {
	chunks []Chunk
	err    error
}

// OrFallback returns the enriched chunks, or the fallback chunks marked
// SemanticChunk=false when enrichment failed. One document's enrichment
// failure must never block its indexing.
func (r EnrichResult) OrFallback(fallback []Chunk) []Chunk {
	if r.err != nil || r.chunks == nil {
		for i := range fallback {
			fallback[i].Metadata.SemanticChunk = false
		}
		return fallback
	}
	return r.chunks
}

func (s *Service) enrich(ctx context.Context, chunks []Chunk) EnrichResult {
	enriched, err := s.enricher.Enrich(ctx, chunks)
	if err != nil {
		s.logger.Warn("chunk enrichment failed, using raw chunks", zap.Error(err))
		return EnrichResult{err: err}
	}
	for i := range enriched {
		enriched[i].Metadata.SemanticChunk = true
	}
	return EnrichResult{chunks: enriched}
}
