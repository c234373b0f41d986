package inference

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/siherrmann/excerpter/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// keywordAnswer answers with the first occurrence of keyword, scored by the
// number of occurrences. Texts without the keyword get an empty span with score 0.
func keywordAnswer(keyword string) func(ctx context.Context, question string, text string) (*model.Answer, error) {
	return func(ctx context.Context, question string, text string) (*model.Answer, error) {
		index := strings.Index(text, keyword)
		if index < 0 {
			return &model.Answer{}, nil
		}
		start := model.RuneLen(text[:index])
		return &model.Answer{
			Start: start,
			End:   start + model.RuneLen(keyword),
			Score: float64(strings.Count(text, keyword)),
			Text:  keyword,
		}, nil
	}
}

func TestNew(t *testing.T) {
	answer := keywordAnswer("x")

	t.Run("Local parallel", func(t *testing.T) {
		executor, err := New(Options{Strategy: model.StrategyLocalParallel}, answer, testLogger())
		require.NoError(t, err)
		assert.Equal(t, model.StrategyLocalParallel, executor.Strategy())
		assert.Equal(t, DefaultWorkers, executor.(*ParallelExecutor).workers)
	})

	t.Run("Local large context", func(t *testing.T) {
		executor, err := New(Options{Strategy: model.StrategyLocalLargeContext, MaxChunkSize: 100}, answer, testLogger())
		require.NoError(t, err)
		assert.Equal(t, model.StrategyLocalLargeContext, executor.Strategy())
		assert.Equal(t, 100, executor.(*LargeContextExecutor).maxChunkSize)
	})

	t.Run("Remote delegated without answer model", func(t *testing.T) {
		executor, err := New(Options{Strategy: model.StrategyRemoteDelegated, RemoteEndpoint: "http://localhost:1/ask"}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, model.StrategyRemoteDelegated, executor.Strategy())
		assert.Equal(t, DefaultRemoteTimeout, executor.(*RemoteExecutor).timeout)
	})

	t.Run("Remote delegated needs an endpoint", func(t *testing.T) {
		_, err := New(Options{Strategy: model.StrategyRemoteDelegated, RemoteTimeout: time.Second}, nil, testLogger())
		assert.Error(t, err)
	})

	t.Run("Local strategies need an answer model", func(t *testing.T) {
		_, err := New(Options{Strategy: model.StrategyLocalParallel}, nil, testLogger())
		assert.Error(t, err)
		_, err = New(Options{Strategy: model.StrategyLocalLargeContext}, nil, testLogger())
		assert.Error(t, err)
	})

	t.Run("Unknown strategy", func(t *testing.T) {
		_, err := New(Options{Strategy: "quantum"}, answer, testLogger())
		assert.Error(t, err)
	})
}
