package inference

import (
	"context"
	"log/slog"
	"time"

	"github.com/siherrmann/excerpter/core/pipeline"
	"github.com/siherrmann/excerpter/model"
	"golang.org/x/sync/errgroup"
)

// ParallelExecutor answers every text as a whole on a bounded worker pool
type ParallelExecutor struct {
	answer  pipeline.AnswerFunc
	workers int
	logger  *slog.Logger
}

// NewParallelExecutor creates a local-parallel executor, workers <= 0 uses DefaultWorkers
func NewParallelExecutor(answer pipeline.AnswerFunc, workers int, logger *slog.Logger) *ParallelExecutor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &ParallelExecutor{
		answer:  answer,
		workers: workers,
		logger:  logger,
	}
}

func (e *ParallelExecutor) Strategy() model.ExecutionStrategy {
	return model.StrategyLocalParallel
}

// Infer runs one answer call per text. The pool lives for this call only and
// every task is waited for before returning. The first failure fails the batch.
func (e *ParallelExecutor) Infer(ctx context.Context, question string, texts []string) ([]model.AnswerCandidate, error) {
	started := time.Now()
	candidates := make([]model.AnswerCandidate, len(texts))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, text := range texts {
		g.Go(func() error {
			answer, err := e.answer(gCtx, question, text)
			if err != nil {
				return &model.InferenceFailure{Index: i, Err: err}
			}
			if answer == nil {
				return &model.InferenceFailure{Index: i, Err: ErrNoAnswer}
			}
			candidates[i] = model.NewAnswerCandidate(i, answer)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Error("Parallel inference failed", slog.Any("error", err))
		return nil, err
	}

	e.logger.Debug(
		"Parallel inference finished",
		slog.Int("texts", len(texts)),
		slog.Int("workers", e.workers),
		slog.Duration("duration", time.Since(started)),
	)

	return candidates, nil
}
