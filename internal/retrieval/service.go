package retrieval

import (
	"context"
	"fmt"

	"github.com/pgmiso/sc-landingai/internal/ai"
	"github.com/pgmiso/sc-landingai/internal/grounding"
	"github.com/pgmiso/sc-landingai/internal/index"
	"github.com/pgmiso/sc-landingai/internal/model"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultTopK = 10

// Service answers a text query with grounded chunks: the index ranks them,
// the store supplies the records, the reconstructor produces the highlight
// crops. A hit whose record or image cannot be produced is degraded, not
// dropped, so callers always see the full ranking.
type Service struct {
	embedder      ai.IEmbedder
	index         index.Service
	reconstructor *grounding.Reconstructor
}

func New(embedder ai.IEmbedder, idx index.Service, reconstructor *grounding.Reconstructor) *Service {
	return &Service{
		embedder:      embedder,
		index:         idx,
		reconstructor: reconstructor,
	}
}

type Options struct {
	TopK      int
	Style     model.HighlightStyle
	WithImage bool
}

func (s *Service) Search(ctx context.Context, query string, opts Options) ([]model.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	vector, err := s.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.index.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	results := make([]model.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, s.resolveHit(ctx, hit, opts))
	}
	return results, nil
}

func (s *Service) resolveHit(ctx context.Context, hit model.SearchHit, opts Options) model.SearchResult {
	result := model.SearchResult{
		ChunkID: hit.ChunkID,
		Score:   hit.Score,
		Excerpt: hit.Excerpt,
	}
	rec, err := s.reconstructor.Resolve(ctx, hit.ChunkID)
	if err != nil {
		logutil.GetLogger(ctx).Warn("resolve hit failed",
			zap.String("chunk_id", hit.ChunkID), zap.Error(err))
		result.Degraded = fmt.Sprintf("record unavailable: %v", err)
		return result
	}
	result.Record = rec
	if !opts.WithImage {
		return result
	}
	img, err := s.reconstructor.ImageForRecord(ctx, rec, opts.Style)
	if err != nil {
		logutil.GetLogger(ctx).Warn("grounding image failed",
			zap.String("chunk_id", hit.ChunkID), zap.Error(err))
		result.Degraded = fmt.Sprintf("grounding unavailable: %v", err)
		return result
	}
	result.Image = img
	return result
}
