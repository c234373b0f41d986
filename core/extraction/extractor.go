package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/siherrmann/excerpter/core/inference"
	"github.com/siherrmann/excerpter/core/pipeline"
	"github.com/siherrmann/excerpter/core/ranking"
	"github.com/siherrmann/excerpter/model"
)

// StageInfer is reported by ExtractionFailure, the other stages cannot fail
const StageInfer = "infer"

// PoolSeparator joins documents into one pooled text
const PoolSeparator = "\n\n\n"

// Settings is fixed when the extractor is created
type Settings struct {
	PartLen         int `yaml:"part_len" json:"part_len"`
	TopN            int `yaml:"top_n_answers" json:"top_n_answers"`
	SentencesBefore int `yaml:"sentences_before" json:"sentences_before"`
	SentencesAfter  int `yaml:"sentences_after" json:"sentences_after"`
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		PartLen:         2048,
		TopN:            4,
		SentencesBefore: 1,
		SentencesAfter:  1,
	}
}

// Extractor runs the excerpt pipeline for one request at a time per call:
// gather, shape, infer, rank, trim and emit. It holds no request state.
type Extractor struct {
	executor inference.Executor
	settings Settings
	logger   *slog.Logger
}

// NewExtractor creates an extractor. Non positive sizes fall back to the defaults,
// negative sentence counts become 0. A TopN <= 0 emits every candidate.
func NewExtractor(executor inference.Executor, settings Settings, logger *slog.Logger) *Extractor {
	defaults := DefaultSettings()
	if settings.PartLen <= 0 {
		settings.PartLen = defaults.PartLen
	}
	settings.SentencesBefore = max(settings.SentencesBefore, 0)
	settings.SentencesAfter = max(settings.SentencesAfter, 0)
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		executor: executor,
		settings: settings,
		logger:   logger,
	}
}

// Settings returns a copy of the settings
func (e *Extractor) Settings() Settings {
	return e.settings
}

// Strategy is the execution strategy of the underlying executor
func (e *Extractor) Strategy() model.ExecutionStrategy {
	return e.executor.Strategy()
}

// WithTopN returns an extractor sharing the executor that emits n excerpts
func (e *Extractor) WithTopN(n int) *Extractor {
	c := *e
	c.settings.TopN = n
	return &c
}

// Extract answers the question over every document as a whole and returns the
// best excerpts, best first.
func (e *Extractor) Extract(ctx context.Context, question string, docs []model.Document) ([]model.Excerpt, error) {
	if err := validate(question, docs); err != nil {
		return nil, err
	}

	texts := gather(docs)
	return e.run(ctx, question, texts, func(c model.AnswerCandidate) int {
		return docs[c.SourceIndex].Index
	})
}

// ExtractPooled is Extract for mixed sources. The local-parallel strategy joins
// all documents into one pool and answers chunks of PartLen runes, an excerpt
// then reports the document its answer starts in. Other strategies answer
// whole documents.
func (e *Extractor) ExtractPooled(ctx context.Context, question string, docs []model.Document) ([]model.Excerpt, error) {
	if !e.executor.Strategy().Pools() {
		return e.Extract(ctx, question, docs)
	}
	if err := validate(question, docs); err != nil {
		return nil, err
	}

	texts := gather(docs)

	pool, starts := joinPool(texts)
	chunks := pipeline.SplitLogged(e.logger, pool, e.settings.PartLen)
	if len(chunks) == 0 {
		e.logger.Warn("Nothing to answer, all documents are blank", slog.Int("documents", len(docs)))
		return []model.Excerpt{}, nil
	}

	inputs := make([]string, len(chunks))
	for i, chunk := range chunks {
		inputs[i] = chunk.Text
	}

	e.logger.Debug("Pooled documents", slog.Int("documents", len(docs)), slog.Int("chunks", len(chunks)))

	return e.run(ctx, question, inputs, func(c model.AnswerCandidate) int {
		position := chunks[c.SourceIndex].Offset + c.Start
		return docs[documentAt(starts, position)].Index
	})
}

// Answers returns the raw candidate of every document in input order.
// Texts are answered as given so offsets refer to the caller's texts.
func (e *Extractor) Answers(ctx context.Context, question string, texts []string) ([]model.AnswerCandidate, error) {
	if strings.TrimSpace(question) == "" || len(texts) == 0 {
		return nil, model.NewInputError("No question (len=%d) or docs (len=%d) provided", model.RuneLen(question), len(texts))
	}

	candidates, err := e.infer(ctx, question, texts)
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func (e *Extractor) run(ctx context.Context, question string, inputs []string, sourceOf func(model.AnswerCandidate) int) ([]model.Excerpt, error) {
	started := time.Now()

	candidates, err := e.infer(ctx, question, inputs)
	if err != nil {
		return nil, err
	}

	ranked := ranking.Top(ranking.Rank(candidates), e.settings.TopN)

	excerpts := make([]model.Excerpt, 0, len(ranked))
	for _, candidate := range ranked {
		text := pipeline.ExtractContext(
			inputs[candidate.SourceIndex],
			candidate.Start,
			candidate.End,
			e.settings.SentencesBefore,
			e.settings.SentencesAfter,
		)
		excerpts = append(excerpts, model.Excerpt{
			SourceIndex: sourceOf(candidate),
			Text:        text,
		})
	}

	e.logger.Info(
		"Extracted excerpts",
		slog.String("strategy", string(e.executor.Strategy())),
		slog.Int("inputs", len(inputs)),
		slog.Int("excerpts", len(excerpts)),
		slog.Duration("duration", time.Since(started)),
	)

	return excerpts, nil
}

func (e *Extractor) infer(ctx context.Context, question string, inputs []string) ([]model.AnswerCandidate, error) {
	candidates, err := e.executor.Infer(ctx, question, inputs)
	if err != nil {
		return nil, &model.ExtractionFailure{Stage: StageInfer, Err: err}
	}
	if len(candidates) != len(inputs) {
		return nil, &model.ExtractionFailure{
			Stage: StageInfer,
			Err:   &model.InferenceFailure{Index: -1, Err: fmt.Errorf("expected %d candidates, got %d", len(inputs), len(candidates))},
		}
	}
	return candidates, nil
}

func validate(question string, docs []model.Document) error {
	if strings.TrimSpace(question) == "" || len(docs) == 0 {
		return model.NewInputError("No question (len=%d) or docs (len=%d) provided", model.RuneLen(question), len(docs))
	}
	return nil
}

func gather(docs []model.Document) []string {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = pipeline.Normalize(doc.Text)
	}
	return texts
}

// joinPool joins texts with PoolSeparator and returns the rune offset each text starts at
func joinPool(texts []string) (string, []int) {
	starts := make([]int, len(texts))
	position := 0
	sepLen := model.RuneLen(PoolSeparator)
	for i, text := range texts {
		starts[i] = position
		position += model.RuneLen(text) + sepLen
	}
	return strings.Join(texts, PoolSeparator), starts
}

// documentAt returns the index of the text a pool position belongs to
func documentAt(starts []int, position int) int {
	i := sort.Search(len(starts), func(i int) bool {
		return starts[i] > position
	}) - 1
	return max(i, 0)
}
