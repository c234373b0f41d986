package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/excerpter/helper"
)

// Vector index types of the papers embedding column
const (
	IndexHNSW    = "hnsw"
	IndexIVFFlat = "ivfflat"
)

// VectorIndex describes the index built over paper embeddings.
// Zero parameters use the pgvector defaults (m 16, ef_construction 64, lists 100).
type VectorIndex struct {
	Type           string `yaml:"type"`
	M              int    `yaml:"m"`
	EfConstruction int    `yaml:"ef_construction"`
	Lists          int    `yaml:"lists"`
}

// statement returns the CREATE INDEX statement for the index
func (v VectorIndex) statement() (string, error) {
	switch v.Type {
	case IndexHNSW:
		m := v.M
		if m <= 0 {
			m = 16
		}
		efConstruction := v.EfConstruction
		if efConstruction <= 0 {
			efConstruction = 64
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_papers_embedding ON papers USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		), nil
	case IndexIVFFlat:
		lists := v.Lists
		if lists <= 0 {
			lists = 100
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_papers_embedding ON papers USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		), nil
	default:
		return "", fmt.Errorf("unsupported index type: %s (use '%s' or '%s')", v.Type, IndexHNSW, IndexIVFFlat)
	}
}

// ChangeVectorIndex replaces the embedding index of the papers table.
// The IVFFlat list count is fixed by Lists (default 100) but its centroids are
// trained on the rows present, so rebuild after indexing papers.
func (h *PapersDBHandler) ChangeVectorIndex(ctx context.Context, index VectorIndex) error {
	statement, err := index.statement()
	if err != nil {
		return helper.NewError("change vector index", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_papers_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = tx.ExecContext(ctx, statement)
	if err != nil {
		return helper.NewError("create index", err)
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}

	h.db.Logger.Info(
		"Changed vector index",
		slog.String("type", index.Type),
		slog.Int("m", index.M),
		slog.Int("ef_construction", index.EfConstruction),
		slog.Int("lists", index.Lists),
	)

	return nil
}
