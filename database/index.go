package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/nexus/helper"
)

// Vector index types supported by pgvector.
const (
	IndexTypeHNSW    = "hnsw"
	IndexTypeIVFFlat = "ivfflat"
)

// IndexParams tunes the vector index. Zero values fall back to the pgvector defaults.
type IndexParams struct {
	M              int `json:"m,omitempty"`               // hnsw, default 16
	EfConstruction int `json:"ef_construction,omitempty"` // hnsw, default 64
	Lists          int `json:"lists,omitempty"`           // ivfflat, default 100
}

// ChangeIndexType rebuilds the chunk embedding index as HNSW or IVFFlat.
func (h *ChunksDBHandler) ChangeIndexType(ctx context.Context, indexType string, params IndexParams) error {
	createIndexSQL, err := indexStatement(indexType, params)
	if err != nil {
		return helper.NewError("change index type", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_chunks_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = tx.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit", err)
	}

	h.db.Logger.Info("Rebuilt vector index", "type", indexType, "params", params)

	return nil
}

func indexStatement(indexType string, params IndexParams) (string, error) {
	switch indexType {
	case IndexTypeHNSW:
		m, efConstruction := 16, 64
		if params.M > 0 {
			m = params.M
		}
		if params.EfConstruction > 0 {
			efConstruction = params.EfConstruction
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		), nil
	case IndexTypeIVFFlat:
		lists := 100
		if params.Lists > 0 {
			lists = params.Lists
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		), nil
	default:
		return "", fmt.Errorf("unsupported index type: %s (use '%s' or '%s')", indexType, IndexTypeHNSW, IndexTypeIVFFlat)
	}
}
