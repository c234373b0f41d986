package excerpter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/siherrmann/excerpter/config"
	"github.com/siherrmann/excerpter/core/extraction"
	"github.com/siherrmann/excerpter/core/inference"
	"github.com/siherrmann/excerpter/core/pipeline"
	"github.com/siherrmann/excerpter/core/retrieval"
	"github.com/siherrmann/excerpter/database"
	"github.com/siherrmann/excerpter/helper"
	"github.com/siherrmann/excerpter/model"
	"github.com/siherrmann/excerpter/server"
	"github.com/siherrmann/excerpter/source"
	loadSql "github.com/siherrmann/excerpter/sql"
)

// DefaultPageTimeout bounds the download of a web page
const DefaultPageTimeout = 30 * time.Second

// Embedding is the sentence embedding model shared by the answerer and the paper store
type Embedding interface {
	Embed(text string) ([]float32, error)
	EmbedBatch(texts []string) ([][]float32, error)
	Dimension() int
}

// Excerpter wires the excerpt pipeline with its collaborators
type Excerpter struct {
	Config    *config.Config
	Extractor *extraction.Extractor
	Web       *source.Web
	DB        *helper.Database          // nil without a paper store
	Papers    *database.PapersDBHandler // nil without a paper store
	Retriever retrieval.Strategy        // nil without a paper store
	embedding Embedding
	closeFn   func() error
	// Logging
	log *slog.Logger
}

// NewExcerpter creates an excerpter from the configuration and loads the
// embedding model when the strategy or the paper store needs it.
func NewExcerpter(cfg *config.Config, logger *slog.Logger) (*Excerpter, error) {
	if logger == nil {
		logger = helper.NewLogger(os.Stdout, helper.ParseLevel(cfg.LogLevel))
	}

	if cfg.Strategy() == model.StrategyRemoteDelegated && !cfg.Database.Enabled {
		return NewExcerpterWithEmbedding(cfg, nil, logger)
	}

	embedder, err := pipeline.NewEmbedder(cfg.ModelName)
	if err != nil {
		return nil, helper.NewError("create embedder", err)
	}

	e, err := NewExcerpterWithEmbedding(cfg, embedder, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	e.closeFn = embedder.Close

	return e, nil
}

// NewExcerpterWithEmbedding creates an excerpter around an already loaded model.
// embedding may be nil for the remote-delegated strategy without a paper store.
func NewExcerpterWithEmbedding(cfg *config.Config, embedding Embedding, logger *slog.Logger) (*Excerpter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, helper.NewError("validate config", err)
	}
	if logger == nil {
		logger = helper.NewLogger(os.Stdout, helper.ParseLevel(cfg.LogLevel))
	}

	var answer pipeline.AnswerFunc
	if embedding != nil {
		answer = pipeline.NewEmbeddingAnswerer(embedding.EmbedBatch)
	}

	executor, err := inference.New(cfg.ExecutorOptions(), answer, logger)
	if err != nil {
		return nil, helper.NewError("create executor", err)
	}

	e := &Excerpter{
		Config:    cfg,
		Extractor: extraction.NewExtractor(executor, cfg.Settings, logger),
		Web:       source.NewWeb(nil, DefaultPageTimeout, logger),
		embedding: embedding,
		log:       logger,
	}

	if cfg.Database.Enabled {
		if err := e.openStore(); err != nil {
			return nil, err
		}
	}

	logger.Info(
		"Created excerpter",
		slog.String("strategy", string(executor.Strategy())),
		slog.Bool("store", e.Papers != nil),
	)

	return e, nil
}

// openStore connects to the paper store configured in the environment
func (e *Excerpter) openStore() error {
	if e.embedding == nil {
		return helper.NewError("open paper store", fmt.Errorf("paper store needs an embedding model"))
	}

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return helper.NewError("database configuration", err)
	}

	db, err := helper.NewDatabase("excerpter", dbConfig, e.log)
	if err != nil {
		return helper.NewError("connect database", err)
	}

	err = loadSql.Init(db.Instance)
	if err != nil {
		_ = db.Close()
		return helper.NewError("initialize database extensions", err)
	}

	papers, err := database.NewPapersDBHandler(db, e.embedding.Dimension(), false)
	if err != nil {
		_ = db.Close()
		return helper.NewError("create papers handler", err)
	}

	engine := retrieval.NewEngine(papers, e.embedding.Embed, e.Config.Database.SimilarityThreshold, e.log)
	retriever, err := retrieval.NewStrategy(e.Config.SearchStrategy, engine)
	if err != nil {
		_ = db.Close()
		return helper.NewError("create retrieval strategy", err)
	}

	e.DB = db
	e.Papers = papers
	e.Retriever = retriever

	return nil
}

// Close releases the database connection and the model session
func (e *Excerpter) Close() error {
	var err error
	if e.DB != nil {
		err = e.DB.Close()
	}
	if e.closeFn != nil {
		if closeErr := e.closeFn(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// ExcerptsFromDocs returns the best excerpts for the question out of docs.
// The source index of an excerpt is the position of its document in docs.
func (e *Excerpter) ExcerptsFromDocs(ctx context.Context, question string, docs []string) ([]model.Excerpt, error) {
	return e.Extractor.Extract(ctx, question, model.NewDocuments(docs))
}

// ExcerptsFromURL answers over the web page at url and, with a paper store,
// the papers found for the question. The page is source 0, papers follow in rank order.
func (e *Excerpter) ExcerptsFromURL(ctx context.Context, question string, url string) ([]model.Excerpt, error) {
	if url == "" {
		url = e.Config.DefaultURL
	}

	page, err := e.Web.Fetch(ctx, url)
	if err != nil {
		return nil, helper.NewError("fetch page", err)
	}
	docs := []model.Document{{Index: 0, Text: page.Text}}

	if e.Retriever != nil && e.Config.SearchNDocs > 0 {
		hits, err := e.Retriever.Retrieve(ctx, question, e.Config.SearchNDocs)
		if err != nil {
			return nil, helper.NewError("retrieve papers", err)
		}
		docs = append(docs, retrieval.Documents(hits, len(docs))...)
	}

	return e.Extractor.ExtractPooled(ctx, question, docs)
}

// Answers returns the raw candidate of every text, in input order
func (e *Excerpter) Answers(ctx context.Context, question string, texts []string) ([]model.AnswerCandidate, error) {
	return e.Extractor.Answers(ctx, question, texts)
}

// IndexPapers embeds and stores papers, skipping papers without text.
// It returns the number of papers stored before the first error.
func (e *Excerpter) IndexPapers(ctx context.Context, papers []*model.Paper) (int, error) {
	if e.Papers == nil {
		return 0, helper.NewError("index papers", fmt.Errorf("paper store is not enabled"))
	}

	stored := 0
	for i, paper := range papers {
		text := paper.Text()
		if text == "" {
			e.log.Warn("Skipping paper without text", slog.String("title", paper.Title))
			continue
		}

		embedding, err := e.embedding.Embed(text)
		if err != nil {
			return stored, helper.NewError(fmt.Sprintf("embed paper %d", i), err)
		}
		paper.Embedding = embedding

		if err := e.Papers.InsertPaper(ctx, paper); err != nil {
			return stored, helper.NewError(fmt.Sprintf("insert paper %d", i), err)
		}
		stored++

		e.log.Debug("Indexed paper", slog.String("rid", paper.RID.String()), slog.String("title", paper.Title))
	}

	e.log.Info("Indexed papers", slog.Int("stored", stored), slog.Int("skipped", len(papers)-stored))

	return stored, nil
}

// ReembedPageSize is the number of stored papers read per page when re-embedding
const ReembedPageSize = 100

// ReembedPapers recomputes the embedding of every stored paper with the current model.
// Papers without text are skipped. It returns the number of papers updated.
func (e *Excerpter) ReembedPapers(ctx context.Context) (int, error) {
	if e.Papers == nil {
		return 0, helper.NewError("reembed papers", fmt.Errorf("paper store is not enabled"))
	}

	updated := 0
	var lastCreatedAt *time.Time
	for {
		papers, err := e.Papers.SelectAllPapers(ctx, lastCreatedAt, ReembedPageSize)
		if err != nil {
			return updated, helper.NewError("select papers", err)
		}

		for _, paper := range papers {
			text := paper.Text()
			if text == "" {
				continue
			}

			embedding, err := e.embedding.Embed(text)
			if err != nil {
				return updated, helper.NewError(fmt.Sprintf("embed paper %s", paper.RID), err)
			}

			err = e.Papers.UpdatePaperEmbedding(ctx, paper.RID, embedding)
			if err != nil {
				return updated, helper.NewError(fmt.Sprintf("update paper %s", paper.RID), err)
			}
			updated++
		}

		if len(papers) < ReembedPageSize {
			break
		}
		lastCreatedAt = &papers[len(papers)-1].CreatedAt
	}

	e.log.Info("Re-embedded papers", slog.Int("updated", updated))

	return updated, nil
}

// RebuildVectorIndex recreates the paper embedding index as configured.
// It does nothing when no index type is configured.
func (e *Excerpter) RebuildVectorIndex(ctx context.Context) error {
	if e.Papers == nil {
		return helper.NewError("rebuild vector index", fmt.Errorf("paper store is not enabled"))
	}
	if e.Config.Database.VectorIndex.Type == "" {
		return nil
	}
	return e.Papers.ChangeVectorIndex(ctx, e.Config.Database.VectorIndex)
}

// Server creates the request service for this excerpter
func (e *Excerpter) Server() *server.Server {
	options := server.Options{
		Address:     e.Config.Address(),
		DefaultURL:  e.Config.DefaultURL,
		SearchNDocs: e.Config.SearchNDocs,
	}
	return server.NewServer(options, e.Extractor, e.Web, e.Retriever, e.log)
}
