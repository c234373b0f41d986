package inference

import (
	"context"
	"log/slog"

	"github.com/siherrmann/excerpter/core/pipeline"
	"github.com/siherrmann/excerpter/model"
)

// LargeContextExecutor answers large chunks of every text sequentially and
// keeps the best chunk answer per text.
type LargeContextExecutor struct {
	answer       pipeline.AnswerFunc
	maxChunkSize int
	logger       *slog.Logger
}

// NewLargeContextExecutor creates a local-large-context executor,
// maxChunkSize <= 0 uses DefaultMaxChunkSize.
func NewLargeContextExecutor(answer pipeline.AnswerFunc, maxChunkSize int, logger *slog.Logger) *LargeContextExecutor {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	return &LargeContextExecutor{
		answer:       answer,
		maxChunkSize: maxChunkSize,
		logger:       logger,
	}
}

func (e *LargeContextExecutor) Strategy() model.ExecutionStrategy {
	return model.StrategyLocalLargeContext
}

// Infer splits every text into chunks of at most maxChunkSize runes and answers
// each chunk. The chunk answer with the strictly highest score wins, the
// earliest chunk on ties. Its offsets are mapped back onto the full text.
func (e *LargeContextExecutor) Infer(ctx context.Context, question string, texts []string) ([]model.AnswerCandidate, error) {
	candidates := make([]model.AnswerCandidate, len(texts))

	for i, text := range texts {
		chunks := pipeline.SplitLogged(e.logger, text, e.maxChunkSize)
		if len(chunks) == 0 {
			chunks = []model.Chunk{{Text: text}}
		}

		var best *model.AnswerCandidate
		for _, chunk := range chunks {
			answer, err := e.answer(ctx, question, chunk.Text)
			if err == nil && answer == nil {
				err = ErrNoAnswer
			}
			if err != nil {
				e.logger.Error("Large context inference failed", slog.Int("index", i), slog.Any("error", err))
				return nil, &model.InferenceFailure{Index: i, Err: err}
			}

			if best == nil || answer.Score > best.Score {
				candidate := model.NewAnswerCandidate(i, answer)
				candidate.Start += chunk.Offset
				candidate.End += chunk.Offset
				best = &candidate
			}
		}

		e.logger.Debug("Answered text in chunks", slog.Int("index", i), slog.Int("chunks", len(chunks)), slog.Float64("score", best.Score))
		candidates[i] = *best
	}

	return candidates, nil
}
