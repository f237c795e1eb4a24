package recommend

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/llm"
	"github.com/devintel/devgraph/internal/models"
	"github.com/devintel/devgraph/internal/scoring"
)

const (
	// cosineWeight blends embedding similarity against the topology
	// heuristic; embeddings carry more signal when present.
	cosineWeight = 0.7

	// profile boost: a language match counts once, each topic match
	// stacks, with a hard cap.
	boostLanguage = 0.2
	boostTopic    = 0.15
	boostCap      = 0.5

	// popularity bonus, log-damped so mega-repos don't drown everything
	popularityWeight = 0.05
	popularityCap    = 0.2

	// semantic rerank adds weighted text-embedding similarity to the head
	// of the list only; deeper entries keep their graph-derived order
	semanticWeight = 0.6
	semanticDepth  = 50
)

// Ranker turns a candidate pool into ranked recommendations.
type Ranker struct {
	embedder llm.Embedder
	logger   *slog.Logger
}

// NewRanker creates a ranker. embedder may be nil, which disables the
// semantic rerank pass.
func NewRanker(embedder llm.Embedder, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{embedder: embedder, logger: logger.With("component", "ranker")}
}

// Rank scores candidates against the source node and returns them in
// descending score order. Zero-score candidates are dropped. The result
// is deterministic: equal scores tie-break on node id.
func (r *Ranker) Rank(ctx context.Context, g *graph.Graph, u *graph.Undirected, embeddings map[string][]float64, sourceID string, candidates []string, limit int) []models.Recommendation {
	if len(candidates) == 0 {
		return nil
	}

	cos := scoring.CosineScores(embeddings, sourceID, candidates)
	heur := scoring.HeuristicScores(u, sourceID, candidates, scoring.MethodJaccard)

	source := g.Node(sourceID)
	langs, topics := profileSignals(source)

	recs := make([]models.Recommendation, 0, len(candidates))
	for _, id := range candidates {
		cand := g.Node(id)
		if cand == nil {
			continue
		}

		c := cos[id]
		h := heur[id]
		score := cosineWeight*c + (1-cosineWeight)*h
		score += profileBoost(cand, langs, topics)
		score += popularityBonus(cand.Attrs.Stars)

		if score <= 0 {
			continue
		}
		recs = append(recs, models.Recommendation{
			NodeID:      id,
			Label:       cand.Label(),
			Type:        cand.Type,
			Score:       score,
			Features:    models.Features{Cosine: c, Heuristic: h},
			HTMLURL:     cand.Attrs.HTMLURL,
			Language:    cand.Attrs.Language,
			Description: cand.Attrs.Description,
			Stars:       cand.Attrs.Stars,
			Source:      models.SourceGraph,
		})
	}

	sortRecs(recs)

	if r.embedder != nil && source != nil {
		recs = r.semanticRerank(ctx, source, recs)
	}

	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// profileBoost rewards candidates matching the source's languages and
// topics, capped so topology and similarity still dominate.
func profileBoost(cand *models.Node, langs, topics []string) float64 {
	candLang := strings.ToLower(cand.Attrs.Language)
	text := strings.ToLower(cand.Attrs.Description + " " + cand.Label() + " " + candLang)

	boost := 0.0
	if candLang != "" {
		for _, lang := range langs {
			if strings.Contains(candLang, lang) || strings.Contains(lang, candLang) {
				boost += boostLanguage
				break
			}
		}
	}
	for _, topic := range topics {
		if strings.Contains(text, topic) {
			boost += boostTopic
		}
	}
	return math.Min(boost, boostCap)
}

// popularityBonus is a small log-damped star bonus.
func popularityBonus(stars int) float64 {
	if stars <= 0 {
		return 0
	}
	return math.Min(popularityCap, popularityWeight*math.Log1p(float64(stars)))
}

// semanticRerank re-scores the head of the ranked list using text
// embeddings of the source corpus against candidate descriptions. Any
// failure leaves the graph-derived order untouched.
func (r *Ranker) semanticRerank(ctx context.Context, source *models.Node, recs []models.Recommendation) []models.Recommendation {
	depth := semanticDepth
	if len(recs) < depth {
		depth = len(recs)
	}
	if depth < 2 {
		return recs
	}

	sourceText := source.Attrs.Corpus
	if sourceText == "" {
		sourceText = source.Attrs.Bio
	}
	if sourceText == "" {
		return recs
	}

	texts := make([]string, 0, depth+1)
	texts = append(texts, sourceText)
	for _, rec := range recs[:depth] {
		texts = append(texts, rec.Label+" "+rec.Description)
	}

	vecs, err := r.embedder.EmbedTexts(ctx, texts)
	if err != nil || len(vecs) != depth+1 {
		r.logger.Debug("semantic rerank skipped", "error", err)
		return recs
	}

	head := make([]models.Recommendation, depth)
	copy(head, recs[:depth])
	for i := range head {
		semantic := scoring.Cosine(vecs[0], vecs[i+1])
		head[i].Score += semanticWeight * semantic
	}
	sortRecs(head)
	copy(recs[:depth], head)
	return recs
}

func sortRecs(recs []models.Recommendation) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].NodeID < recs[j].NodeID
	})
}
