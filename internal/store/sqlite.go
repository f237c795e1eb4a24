package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	apperrors "github.com/devintel/devgraph/internal/errors"
	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
)

// SQLiteStore implements Store using SQLite (for local/development).
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed store.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// WAL mode for better concurrency between the ingest writer and
	// snapshot reads
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		attrs TEXT,
		embedding TEXT
	);

	CREATE TABLE IF NOT EXISTS edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		src TEXT NOT NULL,
		dst TEXT NOT NULL,
		rel TEXT NOT NULL,
		attrs TEXT,
		UNIQUE (src, dst, rel)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src);
	CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads every node and edge into a fresh graph. Both reads run in
// one transaction so an ingest commit cannot land between them and leave
// the snapshot with edges pointing at nodes it never saw.
func (s *SQLiteStore) Load(ctx context.Context) (*graph.Graph, error) {
	// the driver rejects TxOptions{ReadOnly: true}; a plain transaction
	// is serializable in sqlite, which is all the snapshot needs
	tx, err := s.db.BeginTxx(ctx, nil)
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
	}).Debug("loaded graph snapshot from sqlite")

	return g, nil
}

// UpsertNode inserts or replaces a node by id.
func (s *SQLiteStore) UpsertNode(ctx context.Context, n *models.Node) error {
	row, err := encodeNode(n)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO nodes (id, type, attrs, embedding)
		VALUES (:id, :type, :attrs, :embedding)
		ON CONFLICT (id) DO UPDATE SET
			type = excluded.type,
			attrs = excluded.attrs,
			embedding = COALESCE(excluded.embedding, nodes.embedding)
	`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("upsert node %s: %w", n.ID, err)
	}
	return nil
}

// InsertEdge inserts a directed edge, refreshing attrs for an existing
// (src, dst, rel) triple.
func (s *SQLiteStore) InsertEdge(ctx context.Context, e *models.Edge) error {
	row, err := encodeEdge(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO edges (src, dst, rel, attrs)
		VALUES (:src, :dst, :rel, :attrs)
		ON CONFLICT (src, dst, rel) DO UPDATE SET
			attrs = excluded.attrs
	`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert edge %s->%s: %w", e.Src, e.Dst, err)
	}
	return nil
}

// SaveEmbedding attaches a vector to an existing node.
func (s *SQLiteStore) SaveEmbedding(ctx context.Context, nodeID string, vec []float64) error {
	emb, err := jsonVector(vec)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE nodes SET embedding = ? WHERE id = ?`, emb, nodeID)
	if err != nil {
		return fmt.Errorf("save embedding for %s: %w", nodeID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.WithField("node_id", nodeID).Debug("embedding target node no longer exists")
	}
	return nil
}
