package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
	loadSql "github.com/siherrmann/nexus/sql"
)

// KnowledgeDBHandlerFunctions defines the interface for knowledge graph database operations.
type KnowledgeDBHandlerFunctions interface {
	UpsertNodes(ctx context.Context, nodes []*model.KnowledgeNode) error
	UpsertEdges(ctx context.Context, edges []*model.KnowledgeEdge) error
	SelectNodes(ctx context.Context) ([]*model.KnowledgeNode, error)
	SelectEdges(ctx context.Context) ([]*model.KnowledgeEdge, error)
	DeleteNode(ctx context.Context, id string) error
}

// KnowledgeDBHandler persists the nodes and edges of the reasoning graph.
// It implements graph.Store.
type KnowledgeDBHandler struct {
	db *helper.Database
}

// NewKnowledgeDBHandler creates a new knowledge database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewKnowledgeDBHandler(db *helper.Database, force bool) (*KnowledgeDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	knowledgeDbHandler := &KnowledgeDBHandler{
		db: db,
	}

	err := loadSql.LoadKnowledgeSql(knowledgeDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load knowledge sql", err)
	}

	err = knowledgeDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized KnowledgeDBHandler")

	return knowledgeDbHandler, nil
}

// CreateTable creates the 'knowledge_nodes' and 'knowledge_edges' tables if missing.
func (h *KnowledgeDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_knowledge();`)
	if err != nil {
		log.Panicf("error initializing knowledge tables: %#v", err)
	}

	h.db.Logger.Info("Checked/created tables knowledge_nodes and knowledge_edges")

	return nil
}

// UpsertNodes inserts or updates nodes in a single transaction.
// The creation time of an existing node is kept.
func (h *KnowledgeDBHandler) UpsertNodes(ctx context.Context, nodes []*model.KnowledgeNode) error {
	return h.inTx(ctx, func(tx *sql.Tx) error {
		for _, node := range nodes {
			_, err := tx.ExecContext(ctx,
				`SELECT upsert_knowledge_node($1, $2, $3, $4, $5)`,
				node.ID,
				string(node.Type),
				node.Content,
				node.Metadata,
				nullTime(node.CreatedAt),
			)
			if err != nil {
				return helper.NewError(fmt.Sprintf("upsert node %s", node.ID), err)
			}
		}
		return nil
	})
}

// UpsertEdges inserts or updates edges in a single transaction.
// Both endpoints must have been stored before.
func (h *KnowledgeDBHandler) UpsertEdges(ctx context.Context, edges []*model.KnowledgeEdge) error {
	return h.inTx(ctx, func(tx *sql.Tx) error {
		for _, edge := range edges {
			_, err := tx.ExecContext(ctx,
				`SELECT upsert_knowledge_edge($1, $2, $3, $4, $5, $6)`,
				edge.Source,
				edge.Target,
				string(edge.Type),
				edge.Weight,
				edge.Metadata,
				nullTime(edge.CreatedAt),
			)
			if err != nil {
				return helper.NewError(fmt.Sprintf("upsert edge %s -> %s", edge.Source, edge.Target), err)
			}
		}
		return nil
	})
}

// SelectNodes retrieves all nodes, oldest first
func (h *KnowledgeDBHandler) SelectNodes(ctx context.Context) ([]*model.KnowledgeNode, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_knowledge_nodes()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	nodes := []*model.KnowledgeNode{}
	for rows.Next() {
		node := &model.KnowledgeNode{}
		err := rows.Scan(
			&node.ID,
			&node.Type,
			&node.Content,
			&node.Metadata,
			&node.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		nodes = append(nodes, node)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return nodes, nil
}

// SelectEdges retrieves all edges, oldest first
func (h *KnowledgeDBHandler) SelectEdges(ctx context.Context) ([]*model.KnowledgeEdge, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_knowledge_edges()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	edges := []*model.KnowledgeEdge{}
	for rows.Next() {
		edge := &model.KnowledgeEdge{}
		err := rows.Scan(
			&edge.Source,
			&edge.Target,
			&edge.Type,
			&edge.Weight,
			&edge.Metadata,
			&edge.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}

// DeleteNode deletes a node and all edges touching it
func (h *KnowledgeDBHandler) DeleteNode(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(ctx,
		`SELECT delete_knowledge_node($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func (h *KnowledgeDBHandler) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
