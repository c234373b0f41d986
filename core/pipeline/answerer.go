package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/siherrmann/excerpter/model"
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)

type sentenceSpan struct {
	text  string
	start int
	end   int
}

// NewEmbeddingAnswerer answers a question with the sentence of the context
// whose embedding is closest to the embedding of the question.
// The score is the cosine similarity, an empty context yields an empty answer with score 0.
func NewEmbeddingAnswerer(embed BatchEmbedFunc) AnswerFunc {
	return func(ctx context.Context, question string, text string) (*model.Answer, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sentences := splitSentences(text)
		if len(sentences) == 0 {
			return &model.Answer{}, nil
		}

		inputs := make([]string, 0, len(sentences)+1)
		inputs = append(inputs, question)
		for _, s := range sentences {
			inputs = append(inputs, s.text)
		}

		embeddings, err := embed(inputs)
		if err != nil {
			return nil, err
		}
		if len(embeddings) != len(inputs) {
			return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(embeddings), len(inputs))
		}

		best := 0
		bestScore := cosineSimilarity(embeddings[0], embeddings[1])
		for i := 1; i < len(sentences); i++ {
			score := cosineSimilarity(embeddings[0], embeddings[i+1])
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		return &model.Answer{
			Start: sentences[best].start,
			End:   sentences[best].end,
			Score: float64(bestScore),
			Text:  sentences[best].text,
		}, nil
	}
}

// DefaultAnswerer creates an embedding answerer backed by the given embedder
func DefaultAnswerer(embedder *Embedder) AnswerFunc {
	return NewEmbeddingAnswerer(embedder.EmbedBatch)
}

// splitSentences returns the non-blank sentences of text with rune offsets,
// leading and trailing whitespace excluded from the spans.
func splitSentences(text string) []sentenceSpan {
	var spans []sentenceSpan
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		startByte, endByte := loc[0], loc[1]
		for startByte < endByte {
			r, size := utf8.DecodeRuneInString(text[startByte:])
			if !unicode.IsSpace(r) {
				break
			}
			startByte += size
		}
		for endByte > startByte {
			r, size := utf8.DecodeLastRuneInString(text[:endByte])
			if !unicode.IsSpace(r) {
				break
			}
			endByte -= size
		}
		if startByte == endByte {
			continue
		}

		start := utf8.RuneCountInString(text[:startByte])
		spans = append(spans, sentenceSpan{
			text:  text[startByte:endByte],
			start: start,
			end:   start + utf8.RuneCountInString(text[startByte:endByte]),
		})
	}
	return spans
}
