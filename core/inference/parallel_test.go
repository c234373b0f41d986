package inference

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/siherrmann/excerpter/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelExecutor(t *testing.T) {
	ctx := context.Background()

	t.Run("One candidate per text in input order", func(t *testing.T) {
		executor := NewParallelExecutor(keywordAnswer("virus"), 3, testLogger())
		texts := []string{
			"no match here",
			"the virus spreads",
			"virus and virus again",
			"nothing",
		}

		candidates, err := executor.Infer(ctx, "question", texts)
		require.NoError(t, err)
		require.Len(t, candidates, len(texts))

		for i, candidate := range candidates {
			assert.Equal(t, i, candidate.SourceIndex)
		}
		assert.Equal(t, 0.0, candidates[0].Score)
		assert.Equal(t, 1.0, candidates[1].Score)
		assert.Equal(t, 4, candidates[1].Start)
		assert.Equal(t, 2.0, candidates[2].Score)
	})

	t.Run("Concurrency is bounded by the worker count", func(t *testing.T) {
		var running, peak atomic.Int32
		answer := func(ctx context.Context, question string, text string) (*model.Answer, error) {
			current := running.Add(1)
			for {
				old := peak.Load()
				if current <= old || peak.CompareAndSwap(old, current) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return &model.Answer{Score: 1}, nil
		}

		executor := NewParallelExecutor(answer, 2, testLogger())
		texts := make([]string, 10)

		candidates, err := executor.Infer(ctx, "question", texts)
		require.NoError(t, err)
		assert.Len(t, candidates, 10)
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("Failure fails the whole batch", func(t *testing.T) {
		answer := func(ctx context.Context, question string, text string) (*model.Answer, error) {
			if text == "bad" {
				return nil, errors.New("model crashed")
			}
			return &model.Answer{}, nil
		}
		executor := NewParallelExecutor(answer, 0, testLogger())

		candidates, err := executor.Infer(ctx, "question", []string{"good", "bad", "good"})
		require.Error(t, err)
		assert.Nil(t, candidates)
		assert.ErrorIs(t, err, model.ErrInference)

		var failure *model.InferenceFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, 1, failure.Index)
	})

	t.Run("Missing answer is a failure", func(t *testing.T) {
		answer := func(ctx context.Context, question string, text string) (*model.Answer, error) {
			if text == "silent" {
				return nil, nil
			}
			return &model.Answer{}, nil
		}
		executor := NewParallelExecutor(answer, 2, testLogger())

		_, err := executor.Infer(ctx, "question", []string{"good", "silent"})
		assert.ErrorIs(t, err, ErrNoAnswer)

		var failure *model.InferenceFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, 1, failure.Index)
	})

	t.Run("Empty batch", func(t *testing.T) {
		executor := NewParallelExecutor(keywordAnswer("x"), 2, testLogger())
		candidates, err := executor.Infer(ctx, "question", nil)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})
}
