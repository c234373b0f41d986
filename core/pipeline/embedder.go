package pipeline

import (
	"fmt"
	"math"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/excerpter/helper"
)

// DefaultModelName is the sentence transformer used when none is configured
const DefaultModelName = "sentence-transformers/all-MiniLM-L6-v2"

// Embedder wraps a hugot feature extraction pipeline.
// It is created once and shared read-only by all requests.
type Embedder struct {
	session   *hugot.Session
	run       BatchEmbedFunc
	dimension int
}

// NewEmbedder downloads the model if needed and starts a hugot session with the Go backend
func NewEmbedder(modelName string) (*Embedder, error) {
	if modelName == "" {
		modelName = DefaultModelName
	}

	modelPath, err := helper.PrepareModel(modelName, "onnx/model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "excerpt-embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	embedder := &Embedder{
		session: session,
		run: func(texts []string) ([][]float32, error) {
			result, err := sentencePipeline.RunPipeline(texts)
			if err != nil {
				return nil, fmt.Errorf("failed to generate embeddings: %w", err)
			}
			if len(result.Embeddings) != len(texts) {
				return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(result.Embeddings), len(texts))
			}
			return result.Embeddings, nil
		},
	}

	probe, err := embedder.Embed("dimension probe")
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	embedder.dimension = len(probe)

	return embedder, nil
}

// EmbedBatch embeds all texts in one pipeline run
func (e *Embedder) EmbedBatch(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.run(texts)
}

// Embed embeds a single text
func (e *Embedder) Embed(text string) ([]float32, error) {
	embeddings, err := e.run([]string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimension is the length of the produced vectors
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Close destroys the hugot session
func (e *Embedder) Close() error {
	if e == nil || e.session == nil {
		return nil
	}
	return e.session.Destroy()
}

// cosineSimilarity calculates the cosine similarity between two embedding vectors
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
