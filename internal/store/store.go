// Package store persists the knowledge graph. The recommendation core
// only ever reads a full snapshot; writes happen on the ingestion path
// and the embedding persistence path.
package store

import (
	"context"
	"errors"

	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
)

// ErrNotFound is returned when a record doesn't exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence interface consumed by the core.
type Store interface {
	// Load reconstructs the full graph in one consistent read. An empty
	// graph is a valid result; an unreachable store is a
	// KindStoreUnavailable error.
	Load(ctx context.Context) (*graph.Graph, error)

	// UpsertNode inserts or replaces a node by canonical id.
	UpsertNode(ctx context.Context, n *models.Node) error

	// InsertEdge inserts or refreshes a directed relation-labelled edge.
	InsertEdge(ctx context.Context, e *models.Edge) error

	// SaveEmbedding attaches a vector to a node. Saving against an
	// unknown node is a no-op, matching upstream behavior where the
	// graph may have shifted under a long recomputation.
	SaveEmbedding(ctx context.Context, nodeID string, vec []float64) error

	Close() error
}
