package embedding

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/store"
)

// DefaultCoverageThreshold is the minimum fraction of graph nodes that
// must carry a usable vector before a snapshot is served without
// recomputation.
const DefaultCoverageThreshold = 0.5

// Cache mediates between persisted vectors and the provider. It hands
// out whatever usable vectors exist and triggers a bounded recompute
// when coverage drops below the threshold. A failed recompute degrades
// gracefully: callers get the stale vectors and similarity scoring
// falls back to heuristics for uncovered nodes.
type Cache struct {
	store     store.Store
	provider  Provider
	manifests *ManifestStore
	dims      int
	threshold float64
	timeout   time.Duration
	logger    *slog.Logger

	mu sync.Mutex // serializes recomputation
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	CoverageThreshold float64
	RecomputeTimeout  time.Duration
}

// NewCache wires a cache over a store, a provider and the run manifest.
// The manifest store may be nil, in which case vectors are validated
// against the provider's configured dimensionality only.
func NewCache(s store.Store, provider Provider, manifests *ManifestStore, dims int, opts CacheOptions, logger *slog.Logger) *Cache {
	if opts.CoverageThreshold <= 0 {
		opts.CoverageThreshold = DefaultCoverageThreshold
	}
	if opts.RecomputeTimeout <= 0 {
		opts.RecomputeTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:     s,
		provider:  provider,
		manifests: manifests,
		dims:      dims,
		threshold: opts.CoverageThreshold,
		timeout:   opts.RecomputeTimeout,
		logger:    logger.With("component", "embedding_cache"),
	}
}

// expectedDims returns the dimensionality vectors must have to count as
// usable. A recorded manifest wins over configuration so that vectors
// from an older run with different parameters read as missing.
func (c *Cache) expectedDims() int {
	if c.manifests != nil {
		if m, err := c.manifests.Current(); err == nil && m != nil {
			return m.Dimensions
		}
	}
	return c.dims
}

// Collect gathers the usable vectors present on the graph.
func (c *Cache) Collect(g *graph.Graph) map[string][]float64 {
	dims := c.expectedDims()
	vectors := make(map[string][]float64)
	for _, n := range g.Nodes() {
		if len(n.Embedding) == dims {
			vectors[n.ID] = n.Embedding
		}
	}
	return vectors
}

// Coverage returns the fraction of nodes carrying a usable vector.
func (c *Cache) Coverage(g *graph.Graph) float64 {
	if g.NodeCount() == 0 {
		return 1
	}
	return float64(len(c.Collect(g))) / float64(g.NodeCount())
}

// Ensure returns embeddings for the graph, recomputing first when
// coverage is below the threshold. The second return reports degraded
// mode: a recompute was needed but failed, so the map may be sparse.
func (c *Cache) Ensure(ctx context.Context, g *graph.Graph) (map[string][]float64, bool, error) {
	existing := c.Collect(g)
	if g.NodeCount() == 0 {
		return existing, false, nil
	}

	coverage := float64(len(existing)) / float64(g.NodeCount())
	if coverage >= c.threshold {
		return existing, false, nil
	}

	c.logger.Info("embedding coverage below threshold, recomputing",
		"coverage", coverage,
		"threshold", c.threshold,
		"nodes", g.NodeCount())

	fresh, err := c.Recompute(ctx, g)
	if err != nil {
		c.logger.Warn("embedding recompute failed, serving stale vectors",
			"error", err,
			"stale_count", len(existing))
		return existing, true, nil
	}
	return fresh, false, nil
}

// Recompute runs the provider over the whole graph, persists the
// vectors and records the run manifest. Vectors are also written back
// onto the in-memory graph so the current snapshot benefits without a
// reload.
func (c *Cache) Recompute(ctx context.Context, g *graph.Graph) (map[string][]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vectors, err := c.provider.Compute(ctx, g.Undirected())
	if err != nil {
		return nil, err
	}

	for id, vec := range vectors {
		if n := g.Node(id); n != nil {
			n.Embedding = vec
		}
		if err := c.store.SaveEmbedding(ctx, id, vec); err != nil {
			c.logger.Warn("persisting embedding failed", "node_id", id, "error", err)
		}
	}

	if c.manifests != nil {
		manifest := RunManifest{
			Dimensions:  c.dims,
			NodeCount:   g.NodeCount(),
			CompletedAt: time.Now().UTC(),
		}
		if n2v, ok := c.provider.(*Node2Vec); ok {
			p := n2v.Params()
			manifest.Dimensions = p.Dimensions
			manifest.WalkLength = p.WalkLength
			manifest.NumWalks = p.NumWalks
			manifest.Window = p.Window
			manifest.Seed = p.Seed
		}
		if err := c.manifests.Record(manifest); err != nil {
			c.logger.Warn("recording run manifest failed", "error", err)
		}
	}

	c.logger.Info("embedding recompute complete", "vectors", len(vectors))
	return vectors, nil
}
