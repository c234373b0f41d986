package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/excerpter/core/pipeline"
	"github.com/siherrmann/excerpter/model"
)

// Store is the part of the paper store the engine searches
type Store interface {
	SearchPapers(ctx context.Context, query string, limit int) ([]*model.PaperHit, error)
	SelectPapersBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.PaperHit, error)
}

// Engine looks up stored papers for a question
type Engine struct {
	store     Store
	embed     pipeline.EmbedFunc
	threshold float64
	logger    *slog.Logger
}

// NewEngine creates a new retrieval engine. embed may be nil, vector search is unavailable then.
func NewEngine(store Store, embed pipeline.EmbedFunc, threshold float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		embed:     embed,
		threshold: threshold,
		logger:    logger,
	}
}

// KeywordRetrieve performs a full text search for the question
func (e *Engine) KeywordRetrieve(ctx context.Context, question string, limit int) ([]*model.PaperHit, error) {
	hits, err := e.store.SearchPapers(ctx, question, limit)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Keyword retrieval", slog.String("question", question), slog.Int("hits", len(hits)))

	return hits, nil
}

// VectorRetrieve performs a similarity search with the embedded question
func (e *Engine) VectorRetrieve(ctx context.Context, question string, limit int) ([]*model.PaperHit, error) {
	if e.embed == nil {
		return nil, fmt.Errorf("vector retrieval needs an embedder")
	}

	embedding, err := e.embed(question)
	if err != nil {
		return nil, err
	}

	hits, err := e.store.SelectPapersBySimilarity(ctx, embedding, limit, e.threshold)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Vector retrieval", slog.String("question", question), slog.Int("hits", len(hits)))

	return hits, nil
}

// Documents turns hits into pipeline documents, indexed after offset.
// A hit contributes the body of its paper, or the abstract when the body is empty.
// Hits without any text are skipped.
func Documents(hits []*model.PaperHit, offset int) []model.Document {
	docs := make([]model.Document, 0, len(hits))
	for _, hit := range hits {
		text := hit.Paper.Text()
		if text == "" {
			continue
		}
		docs = append(docs, model.Document{Index: offset + len(docs), Text: text})
	}
	return docs
}
