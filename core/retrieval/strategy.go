package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/siherrmann/excerpter/model"
)

// Strategy names accepted in the configuration
const (
	StrategyKeyword = "keyword"
	StrategyVector  = "vector"
	StrategyHybrid  = "hybrid"
)

// rrfK dampens the influence of the top ranks in reciprocal rank fusion
const rrfK = 60

// Strategy defines a retrieval strategy
type Strategy interface {
	Retrieve(ctx context.Context, question string, limit int) ([]*model.PaperHit, error)
}

// NewStrategy creates the strategy with the given name
func NewStrategy(name string, engine *Engine) (Strategy, error) {
	switch name {
	case StrategyKeyword, "":
		return NewKeywordStrategy(engine), nil
	case StrategyVector:
		return NewVectorStrategy(engine), nil
	case StrategyHybrid:
		return NewHybridStrategy(engine), nil
	default:
		return nil, fmt.Errorf("unknown retrieval strategy %q", name)
	}
}

// KeywordStrategy performs full text search only
type KeywordStrategy struct {
	engine *Engine
}

// NewKeywordStrategy creates a new keyword strategy
func NewKeywordStrategy(engine *Engine) *KeywordStrategy {
	return &KeywordStrategy{engine: engine}
}

// Retrieve performs keyword retrieval
func (s *KeywordStrategy) Retrieve(ctx context.Context, question string, limit int) ([]*model.PaperHit, error) {
	return s.engine.KeywordRetrieve(ctx, question, limit)
}

// VectorStrategy performs pure vector similarity search
type VectorStrategy struct {
	engine *Engine
}

// NewVectorStrategy creates a new vector strategy
func NewVectorStrategy(engine *Engine) *VectorStrategy {
	return &VectorStrategy{engine: engine}
}

// Retrieve performs vector retrieval
func (s *VectorStrategy) Retrieve(ctx context.Context, question string, limit int) ([]*model.PaperHit, error) {
	return s.engine.VectorRetrieve(ctx, question, limit)
}

// HybridStrategy fuses keyword and vector results by reciprocal rank
type HybridStrategy struct {
	engine *Engine
}

// NewHybridStrategy creates a new hybrid strategy
func NewHybridStrategy(engine *Engine) *HybridStrategy {
	return &HybridStrategy{engine: engine}
}

// Retrieve runs both searches and merges them. A paper found by both keeps
// the keyword hit with its fragments. The rank of a merged hit is its fused score.
func (s *HybridStrategy) Retrieve(ctx context.Context, question string, limit int) ([]*model.PaperHit, error) {
	keywordHits, err := s.engine.KeywordRetrieve(ctx, question, limit)
	if err != nil {
		return nil, err
	}

	vectorHits, err := s.engine.VectorRetrieve(ctx, question, limit)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]*model.PaperHit)
	scores := make(map[string]float64)
	var order []string

	for _, hits := range [][]*model.PaperHit{keywordHits, vectorHits} {
		for rank, hit := range hits {
			key := hit.Paper.RID.String()
			if _, exists := merged[key]; !exists {
				merged[key] = hit
				order = append(order, key)
			}
			scores[key] += 1.0 / float64(rrfK+rank+1)
		}
	}

	results := make([]*model.PaperHit, 0, len(order))
	for _, key := range order {
		hit := *merged[key]
		hit.Rank = scores[key]
		results = append(results, &hit)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Rank > results[j].Rank
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}
