// Package cache holds the in-memory graph snapshot and the optional
// Redis response cache.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devintel/devgraph/internal/analytics"
	"github.com/devintel/devgraph/internal/embedding"
	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/store"
)

// Snapshot is one immutable, internally consistent view of the graph
// with its derived structures. Readers share a snapshot freely; writers
// never mutate one, they invalidate and let the next reader rebuild.
type Snapshot struct {
	Graph      *graph.Graph
	Undirected *graph.Undirected
	Embeddings map[string][]float64
	Metrics    *analytics.GraphMetrics

	// Degraded marks that embedding recomputation failed and
	// Embeddings may be sparse.
	Degraded bool
	BuiltAt  time.Time
}

// SnapshotCache builds and caches snapshots. Concurrent readers hitting
// a cold cache trigger exactly one build via singleflight.
type SnapshotCache struct {
	store      store.Store
	embeddings *embedding.Cache
	analyzer   *analytics.Analyzer
	logger     *slog.Logger

	mu      sync.RWMutex
	current *Snapshot
	group   singleflight.Group
}

// NewSnapshotCache wires a snapshot cache.
func NewSnapshotCache(s store.Store, emb *embedding.Cache, analyzer *analytics.Analyzer, logger *slog.Logger) *SnapshotCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotCache{
		store:      s,
		embeddings: emb,
		analyzer:   analyzer,
		logger:     logger.With("component", "snapshot"),
	}
}

// Get returns the current snapshot, building it if needed.
func (c *SnapshotCache) Get(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap := c.current
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	v, err, _ := c.group.Do("snapshot", func() (any, error) {
		// another caller may have finished the build while this one
		// waited on the group
		c.mu.RLock()
		existing := c.current
		c.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}
		return c.build(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (c *SnapshotCache) build(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	g, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	undirected := g.Undirected()

	var (
		vectors  map[string][]float64
		degraded bool
	)
	if c.embeddings != nil {
		vectors, degraded, err = c.embeddings.Ensure(ctx, g)
		if err != nil {
			return nil, err
		}
	} else {
		vectors = map[string][]float64{}
	}

	snap := &Snapshot{
		Graph:      g,
		Undirected: undirected,
		Embeddings: vectors,
		Degraded:   degraded,
		BuiltAt:    time.Now().UTC(),
	}
	if c.analyzer != nil {
		snap.Metrics = c.analyzer.Compute(undirected)
	}

	c.mu.Lock()
	c.current = snap
	c.mu.Unlock()

	c.logger.Info("snapshot built",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"embedded", len(vectors),
		"degraded", degraded,
		"elapsed", time.Since(start))
	return snap, nil
}

// Invalidate drops the cached snapshot so the next Get rebuilds from
// the store. Ingestion calls this after writing.
func (c *SnapshotCache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	c.logger.Debug("snapshot invalidated")
}

// Refresh forces an immediate rebuild and returns the new snapshot.
func (c *SnapshotCache) Refresh(ctx context.Context) (*Snapshot, error) {
	c.Invalidate()
	return c.Get(ctx)
}
