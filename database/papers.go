package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/excerpter/helper"
	"github.com/siherrmann/excerpter/model"
	loadSql "github.com/siherrmann/excerpter/sql"
)

// PapersDBHandlerFunctions defines the interface for paper store operations.
type PapersDBHandlerFunctions interface {
	InsertPaper(ctx context.Context, paper *model.Paper) error
	SelectPaper(ctx context.Context, rid uuid.UUID) (*model.Paper, error)
	SelectAllPapers(ctx context.Context, lastCreatedAt *time.Time, limit int) ([]*model.Paper, error)
	SearchPapers(ctx context.Context, query string, limit int) ([]*model.PaperHit, error)
	SelectPapersBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.PaperHit, error)
	UpdatePaperEmbedding(ctx context.Context, rid uuid.UUID, embedding []float32) error
	DeletePaper(ctx context.Context, rid uuid.UUID) error
}

// PapersDBHandler handles the paper store
type PapersDBHandler struct {
	db *helper.Database
}

// NewPapersDBHandler creates a new papers database handler.
// It loads the paper SQL functions and creates the table with embeddings of embeddingDim.
// If force is true, it will reload the SQL functions even if they already exist.
func NewPapersDBHandler(db *helper.Database, embeddingDim int, force bool) (*PapersDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	papersDbHandler := &PapersDBHandler{
		db: db,
	}

	err := loadSql.LoadPapersSql(papersDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load papers sql", err)
	}

	err = papersDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized PapersDBHandler", slog.Int("embedding_dim", embeddingDim))

	return papersDbHandler, nil
}

// CreateTable creates the 'papers' table with its search and vector indexes.
// If the table already exists, it does not create it again.
func (h *PapersDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_papers($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init papers", err)
	}

	h.db.Logger.Info("Checked/created table papers")

	return nil
}

// InsertPaper inserts a new paper and fills in the generated fields
func (h *PapersDBHandler) InsertPaper(ctx context.Context, paper *model.Paper) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_paper($1, $2, $3, $4, $5, $6, $7, $8)`,
		paper.Title,
		pq.Array(paper.Authors),
		paper.Abstract,
		paper.Body,
		paper.URL,
		paper.PublishTime,
		paper.Metadata,
		vectorParam(paper.Embedding),
	)

	err := scanPaper(row, paper)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectPaper retrieves a paper by RID
func (h *PapersDBHandler) SelectPaper(ctx context.Context, rid uuid.UUID) (*model.Paper, error) {
	paper := &model.Paper{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_paper($1)`,
		rid,
	)

	err := scanPaper(row, paper)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return paper, nil
}

// SelectAllPapers retrieves papers created after lastCreatedAt, oldest first
func (h *PapersDBHandler) SelectAllPapers(ctx context.Context, lastCreatedAt *time.Time, limit int) ([]*model.Paper, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_all_papers($1, $2)`,
		lastCreatedAt,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var papers []*model.Paper
	for rows.Next() {
		paper := &model.Paper{}
		err := scanPaper(rows, paper)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		papers = append(papers, paper)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return papers, nil
}

// SearchPapers runs a full text search over title, abstract and body.
// Hits carry up to three highlighted fragments of the body, or of the abstract
// when the body is empty.
func (h *PapersDBHandler) SearchPapers(ctx context.Context, query string, limit int) ([]*model.PaperHit, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM search_papers($1, $2)`,
		query,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var hits []*model.PaperHit
	for rows.Next() {
		hit := &model.PaperHit{Paper: &model.Paper{}}
		err := scanPaper(rows, hit.Paper, &hit.Rank, pq.Array(&hit.Fragments))
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		for i, fragment := range hit.Fragments {
			hit.Fragments[i] = highlightMarkers.Replace(strings.TrimSpace(fragment))
		}

		hits = append(hits, hit)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return hits, nil
}

// SelectPapersBySimilarity performs a cosine similarity search over paper embeddings.
// The hit rank is the similarity.
func (h *PapersDBHandler) SelectPapersBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.PaperHit, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_papers_by_similarity($1, $2, $3)`,
		pgvector.NewVector(embedding),
		limit,
		threshold,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var hits []*model.PaperHit
	for rows.Next() {
		hit := &model.PaperHit{Paper: &model.Paper{}}
		err := scanPaper(rows, hit.Paper, &hit.Rank)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		hits = append(hits, hit)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return hits, nil
}

// UpdatePaperEmbedding sets the embedding of a paper
func (h *PapersDBHandler) UpdatePaperEmbedding(ctx context.Context, rid uuid.UUID, embedding []float32) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT update_paper_embedding($1, $2)`,
		rid,
		vectorParam(embedding),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeletePaper deletes a paper by RID
func (h *PapersDBHandler) DeletePaper(ctx context.Context, rid uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_paper($1)`,
		rid,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

var highlightMarkers = strings.NewReplacer("<b>", "", "</b>", "")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner, paper *model.Paper, extra ...any) error {
	var publishTime sql.NullTime
	dest := []any{
		&paper.ID,
		&paper.RID,
		&paper.Title,
		pq.Array(&paper.Authors),
		&paper.Abstract,
		&paper.Body,
		&paper.URL,
		&publishTime,
		&paper.Metadata,
		pq.Array(&paper.Embedding),
		&paper.CreatedAt,
	}

	err := row.Scan(append(dest, extra...)...)
	if err != nil {
		return err
	}

	paper.PublishTime = nil
	if publishTime.Valid {
		paper.PublishTime = &publishTime.Time
	}

	return nil
}

// vectorParam passes an empty embedding as NULL
func vectorParam(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}
