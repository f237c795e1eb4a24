package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	apperrors "github.com/devintel/devgraph/internal/errors"
	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore connects to PostgreSQL and ensures the schema exists.
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &PostgresStore{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		attrs JSONB,
		embedding JSONB
	);

	CREATE TABLE IF NOT EXISTS edges (
		id BIGSERIAL PRIMARY KEY,
		src TEXT NOT NULL,
		dst TEXT NOT NULL,
		rel TEXT NOT NULL,
		attrs JSONB,
		UNIQUE (src, dst, rel)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src);
	CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Load reads every node and edge inside one read-only transaction so
// the snapshot is internally consistent even while ingestion runs.
// Repeatable-read isolation gives both statements the same database
// snapshot; the default read-committed would let an ingest commit land
// between the node and edge reads.
func (s *PostgresStore) Load(ctx context.Context) (*graph.Graph, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("begin snapshot transaction: %w", err))
	}
	defer tx.Rollback()

	g := graph.New()

	var nodeRows []nodeRow
	if err := tx.SelectContext(ctx, &nodeRows, `SELECT id, type, attrs, embedding FROM nodes`); err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("load nodes: %w", err))
	}
	for _, r := range nodeRows {
		n, err := decodeNode(r)
		if err != nil {
			s.logger.WithError(err).WithField("node_id", r.ID).Warn("skipping undecodable node")
			continue
		}
		g.AddNode(n)
	}

	var edgeRows []edgeRow
	if err := tx.SelectContext(ctx, &edgeRows, `SELECT src, dst, rel, attrs FROM edges`); err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("load edges: %w", err))
	}
	for _, r := range edgeRows {
		e, err := decodeEdge(r)
		if err != nil {
			s.logger.WithError(err).Warn("skipping undecodable edge")
			continue
		}
		g.AddEdge(e)
	}

	s.logger.WithFields(logrus.Fields{
		"nodes": g.NodeCount(),
		"edges": g.EdgeCount(),
	}).Debug("loaded graph snapshot from postgres")

	return g, nil
}

// UpsertNode inserts or replaces a node by id.
func (s *PostgresStore) UpsertNode(ctx context.Context, n *models.Node) error {
	row, err := encodeNode(n)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO nodes (id, type, attrs, embedding)
		VALUES (:id, :type, :attrs, :embedding)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			attrs = EXCLUDED.attrs,
			embedding = COALESCE(EXCLUDED.embedding, nodes.embedding)
	`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("upsert node %s: %w", n.ID, err)
	}
	return nil
}

// InsertEdge inserts a directed edge, refreshing attrs for an existing
// (src, dst, rel) triple.
func (s *PostgresStore) InsertEdge(ctx context.Context, e *models.Edge) error {
	row, err := encodeEdge(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO edges (src, dst, rel, attrs)
		VALUES (:src, :dst, :rel, :attrs)
		ON CONFLICT (src, dst, rel) DO UPDATE SET
			attrs = EXCLUDED.attrs
	`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert edge %s->%s: %w", e.Src, e.Dst, err)
	}
	return nil
}

// SaveEmbedding attaches a vector to an existing node.
func (s *PostgresStore) SaveEmbedding(ctx context.Context, nodeID string, vec []float64) error {
	emb, err := jsonVector(vec)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE nodes SET embedding = $1 WHERE id = $2`, emb, nodeID)
	if err != nil {
		return fmt.Errorf("save embedding for %s: %w", nodeID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.WithField("node_id", nodeID).Debug("embedding target node no longer exists")
	}
	return nil
}
