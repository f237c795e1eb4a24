package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
	"github.com/devintel/devgraph/internal/search"
)

// fallbackConfidence is the fixed score stamped on externally sourced
// recommendations: they carry no graph evidence, so all rank equally
// below any graph-derived result a client might merge them with.
const fallbackConfidence = 0.5

// fallbackDefaultQuery serves profiles with no usable signals at all.
const fallbackDefaultQuery = "stars:>1000"

// Fallback produces recommendations from external search when the
// graph yields none for a node.
type Fallback struct {
	searcher search.Searcher
	logger   *slog.Logger
}

// NewFallback creates a fallback. searcher may be nil, disabling it.
func NewFallback(searcher search.Searcher, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{searcher: searcher, logger: logger.With("component", "fallback")}
}

// Query derives the search query from the source profile, preferring
// the strongest signal available: the AI-assigned role, then the top
// language, then the top topic, then a generic popular-repos query.
func (f *Fallback) Query(source *models.Node) string {
	if source == nil {
		return fallbackDefaultQuery
	}
	if role := source.Attrs.AIRole; role != "" {
		return role
	}
	langs, topics := profileSignals(source)
	if len(langs) > 0 {
		return fmt.Sprintf("language:%s", langs[0])
	}
	if len(topics) > 0 {
		return fmt.Sprintf("topic:%s", topics[0])
	}
	return fallbackDefaultQuery
}

// Recommend searches externally and maps hits into recommendations.
// Repositories already present in the graph are dropped, since the
// graph path already had its chance to rank them.
func (f *Fallback) Recommend(ctx context.Context, g *graph.Graph, source *models.Node, limit int) ([]models.Recommendation, error) {
	if f.searcher == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	query := f.Query(source)
	hits, err := f.searcher.SearchRepositories(ctx, query, limit*2)
	if err != nil {
		return nil, err
	}

	recs := make([]models.Recommendation, 0, limit)
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		if hit.FullName == "" {
			continue
		}
		id := models.RepoNodeID(hit.FullName)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if g != nil && g.HasNode(id) {
			continue
		}

		recs = append(recs, models.Recommendation{
			NodeID:      id,
			Label:       hit.FullName,
			Type:        models.NodeGitHubRepo,
			Score:       fallbackConfidence,
			HTMLURL:     hit.HTMLURL,
			Language:    hit.Language,
			Description: hit.Description,
			Stars:       hit.Stars,
			Source:      models.SourceFallback,
		})
		if len(recs) == limit {
			break
		}
	}

	f.logger.Info("external fallback served", "query", query, "results", len(recs))
	return recs, nil
}
