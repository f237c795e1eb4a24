package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devintel/devgraph/internal/cache"
	apperrors "github.com/devintel/devgraph/internal/errors"
	"github.com/devintel/devgraph/internal/models"
)

// DefaultLimit is the top-K size when the client doesn't ask for one.
const DefaultLimit = 10

// Service orchestrates the recommendation pipeline over the current
// graph snapshot.
type Service struct {
	snapshots *cache.SnapshotCache
	ranker    *Ranker
	fallback  *Fallback
	responses *cache.ResponseCache
	logger    *slog.Logger
}

// NewService wires the pipeline. responses may be nil to disable the
// cross-process response cache.
func NewService(snapshots *cache.SnapshotCache, ranker *Ranker, fallback *Fallback, responses *cache.ResponseCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		snapshots: snapshots,
		ranker:    ranker,
		fallback:  fallback,
		responses: responses,
		logger:    logger.With("component", "recommend"),
	}
}

// Recommend returns up to limit ranked recommendations for a node.
// Unknown nodes are a KindNotFound error. When the graph pipeline
// produces fewer than limit results, the external fallback tops the
// list up, marked with its own source so clients can tell the
// provenance apart.
func (s *Service) Recommend(ctx context.Context, nodeID string, limit int) ([]models.Recommendation, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	cacheKey := fmt.Sprintf("recommend:%s:%d", nodeID, limit)
	var cached []models.Recommendation
	if hit, err := s.responses.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.Graph.HasNode(nodeID) {
		return nil, apperrors.NotFound(nodeID)
	}

	candidates := Candidates(snap.Graph, nodeID, MaxCandidates)
	recs := s.ranker.Rank(ctx, snap.Graph, snap.Undirected, snap.Embeddings, nodeID, candidates, limit)

	// top up short lists from external search; a failing fallback never
	// fails the request, the partial list stands
	if len(recs) < limit && s.fallback != nil {
		extra, err := s.fallback.Recommend(ctx, snap.Graph, snap.Graph.Node(nodeID), limit-len(recs))
		if err != nil {
			s.logger.Warn("external fallback skipped", "node", nodeID, "error", err)
		} else {
			recs = append(recs, extra...)
		}
	}
	if recs == nil {
		recs = []models.Recommendation{}
	}

	if err := s.responses.Set(ctx, cacheKey, recs); err != nil {
		s.logger.Debug("response cache write failed", "error", err)
	}
	return recs, nil
}

// Metrics returns the centrality and community row for a node.
func (s *Service) Metrics(ctx context.Context, nodeID string) (*models.NodeMetrics, error) {
	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Metrics == nil {
		return nil, apperrors.New(apperrors.KindInternal, "graph metrics not computed")
	}
	return snap.Metrics.For(nodeID)
}

// Snapshot exposes the current snapshot for handlers that need direct
// node access (role prediction, health reporting).
func (s *Service) Snapshot(ctx context.Context) (*cache.Snapshot, error) {
	return s.snapshots.Get(ctx)
}

// Invalidate drops the snapshot and flushes cached responses; ingest
// calls this after writes.
func (s *Service) Invalidate(ctx context.Context) {
	s.snapshots.Invalidate()
	if err := s.responses.Flush(ctx); err != nil {
		s.logger.Debug("response cache flush failed", "error", err)
	}
}
