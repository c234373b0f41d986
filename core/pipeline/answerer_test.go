package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVocabulary = []string{"virus", "infection", "caused", "vaccine", "mask", "weather", "market"}

// bagOfWords embeds a text as word counts over a tiny vocabulary
func bagOfWords(texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vector := make([]float32, len(testVocabulary))
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,!?")
			for j, v := range testVocabulary {
				if word == v {
					vector[j]++
				}
			}
		}
		embeddings[i] = vector
	}
	return embeddings, nil
}

func TestEmbeddingAnswerer(t *testing.T) {
	answer := NewEmbeddingAnswerer(bagOfWords)
	ctx := context.Background()

	t.Run("Pick the sentence closest to the question", func(t *testing.T) {
		text := "The weather was fine. The disease is caused by infection with a virus. A vaccine followed."

		result, err := answer(ctx, "What caused the infection?", text)
		require.NoError(t, err)

		assert.Equal(t, "The disease is caused by infection with a virus.", result.Text)
		assert.Equal(t, result.Text, string([]rune(text)[result.Start:result.End]))
		assert.Greater(t, result.Score, 0.0)
	})

	t.Run("Offsets are runes", func(t *testing.T) {
		text := "Über das Wetter. Das Virus wurde durch infection caused."

		result, err := answer(ctx, "infection caused", text)
		require.NoError(t, err)

		assert.Equal(t, "Das Virus wurde durch infection caused.", result.Text)
		assert.Equal(t, 17, result.Start)
		assert.Equal(t, result.Text, string([]rune(text)[result.Start:result.End]))
	})

	t.Run("First sentence wins ties", func(t *testing.T) {
		result, err := answer(ctx, "mask", "No match here. Nothing there either.")
		require.NoError(t, err)
		assert.Equal(t, "No match here.", result.Text)
		assert.Equal(t, 0.0, result.Score)
	})

	t.Run("Empty context", func(t *testing.T) {
		result, err := answer(ctx, "anything?", "   ")
		require.NoError(t, err)
		assert.Equal(t, 0, result.Start)
		assert.Equal(t, 0, result.End)
		assert.Equal(t, 0.0, result.Score)
	})

	t.Run("Embedding error is returned", func(t *testing.T) {
		failing := NewEmbeddingAnswerer(func(texts []string) ([][]float32, error) {
			return nil, errors.New("model unavailable")
		})

		_, err := failing(ctx, "question", "Some context.")
		assert.EqualError(t, err, "model unavailable")
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := answer(cancelled, "question", "Some context.")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSplitSentences(t *testing.T) {
	t.Run("Sentences with trimmed spans", func(t *testing.T) {
		spans := splitSentences("  One.  Two!Three? four")

		require.Len(t, spans, 4)
		assert.Equal(t, "One.", spans[0].text)
		assert.Equal(t, 2, spans[0].start)
		assert.Equal(t, "Two!", spans[1].text)
		assert.Equal(t, "Three?", spans[2].text)
		assert.Equal(t, "four", spans[3].text)
		assert.Equal(t, 23, spans[3].end)
	})
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("Identical vectors", func(t *testing.T) {
		assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	})

	t.Run("Orthogonal vectors", func(t *testing.T) {
		assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	})

	t.Run("Zero or mismatched vectors", func(t *testing.T) {
		assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
		assert.Equal(t, float32(0), cosineSimilarity([]float32{1}, []float32{1, 1}))
	})
}
