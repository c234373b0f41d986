package pipeline

import (
	"context"

	"github.com/siherrmann/excerpter/model"
)

// AnswerFunc finds the span of text that best answers the question.
// Offsets of the returned answer are rune offsets into text.
type AnswerFunc func(ctx context.Context, question string, text string) (*model.Answer, error)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// BatchEmbedFunc generates one embedding per text, in order
type BatchEmbedFunc func(texts []string) ([][]float32, error)
