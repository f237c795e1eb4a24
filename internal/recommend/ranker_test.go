package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
)

func TestRankBoostAndPopularityOnly(t *testing.T) {
	g := devGraph()
	u := g.Undirected()
	r := NewRanker(nil, nil)

	recs := r.Rank(context.Background(), g, u, nil, "github:ada",
		[]string{"repo:ben/raft", "repo:misc/zebra"}, 0)
	require.Len(t, recs, 2)

	// raft: language boost 0.2 + topic boost 0.15 + popularity cap 0.2
	assert.Equal(t, "repo:ben/raft", recs[0].NodeID)
	assert.InDelta(t, 0.55, recs[0].Score, 1e-9)
	assert.Zero(t, recs[0].Features.Cosine)
	assert.Zero(t, recs[0].Features.Heuristic)
	assert.Equal(t, models.SourceGraph, recs[0].Source)

	// zebra: nothing matches ada's profile, only the star bonus
	assert.Equal(t, "repo:misc/zebra", recs[1].NodeID)
	assert.InDelta(t, 0.2, recs[1].Score, 1e-9)
}

func TestRankCombinesCosineAndHeuristic(t *testing.T) {
	g := devGraph()
	u := g.Undirected()
	r := NewRanker(nil, nil)

	embeddings := map[string][]float64{
		"repo:shared/toolkit": {1, 0},
		"repo:ben/raft":       {0.6, 0.8},
	}

	// toolkit and raft share contributor ben: jaccard = 1/2
	recs := r.Rank(context.Background(), g, u, embeddings, "repo:shared/toolkit",
		[]string{"repo:ben/raft"}, 0)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.InDelta(t, 0.6, rec.Features.Cosine, 1e-9)
	assert.InDelta(t, 0.5, rec.Features.Heuristic, 1e-9)
	// 0.7*0.6 + 0.3*0.5 + language boost 0.2 + popularity cap 0.2
	assert.InDelta(t, 0.97, rec.Score, 1e-9)
}

func TestRankDropsZeroScores(t *testing.T) {
	g := graph.New()
	g.AddNode(&models.Node{ID: "github:u", Type: models.NodeGitHubUser})
	g.AddNode(&models.Node{ID: "repo:a/b", Type: models.NodeGitHubRepo,
		Attrs: models.Attrs{FullName: "a/b"}})
	u := g.Undirected()

	recs := NewRanker(nil, nil).Rank(context.Background(), g, u, nil,
		"github:u", []string{"repo:a/b"}, 0)
	assert.Empty(t, recs)
}

func TestRankTieBreakByID(t *testing.T) {
	g := devGraph()
	g.AddNode(&models.Node{ID: "repo:aaa/twin", Type: models.NodeGitHubRepo,
		Attrs: models.Attrs{FullName: "aaa/twin", Language: "Rust", Stars: 5000}})
	u := g.Undirected()

	recs := NewRanker(nil, nil).Rank(context.Background(), g, u, nil, "github:ada",
		[]string{"repo:misc/zebra", "repo:aaa/twin"}, 0)
	require.Len(t, recs, 2)
	assert.Equal(t, recs[0].Score, recs[1].Score)
	assert.Equal(t, "repo:aaa/twin", recs[0].NodeID)
}

func TestRankLimit(t *testing.T) {
	g := devGraph()
	u := g.Undirected()

	recs := NewRanker(nil, nil).Rank(context.Background(), g, u, nil, "github:ada",
		[]string{"repo:ben/raft", "repo:misc/zebra"}, 1)
	require.Len(t, recs, 1)
	assert.Equal(t, "repo:ben/raft", recs[0].NodeID)
}

func TestRankRepeatedCallsIdentical(t *testing.T) {
	g := semanticGraph()
	u := g.Undirected()
	embeddings := map[string][]float64{
		"github:ada":    {1, 0},
		"repo:ben/raft": {0.6, 0.8},
	}
	emb := &fixedEmbedder{vecs: [][]float64{{1, 0}, {0, 1}, {1, 0}}}
	r := NewRanker(emb, nil)

	candidates := []string{"repo:ben/raft", "repo:misc/zebra"}
	first := r.Rank(context.Background(), g, u, embeddings, "github:ada", candidates, 0)
	second := r.Rank(context.Background(), g, u, embeddings, "github:ada", candidates, 0)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestProfileBoostCapped(t *testing.T) {
	cand := &models.Node{ID: "repo:x/y", Type: models.NodeGitHubRepo,
		Attrs: models.Attrs{FullName: "x/y", Language: "Go",
			Description: "kubernetes terraform ansible observability"}}

	boost := profileBoost(cand, []string{"go"},
		[]string{"kubernetes", "terraform", "ansible", "observability"})
	assert.InDelta(t, boostCap, boost, 1e-9)
}

func TestPopularityBonus(t *testing.T) {
	assert.Zero(t, popularityBonus(0))
	assert.Zero(t, popularityBonus(-3))
	assert.InDelta(t, 0.11989, popularityBonus(10), 1e-4)
	assert.InDelta(t, popularityCap, popularityBonus(100000), 1e-9)
}

type fixedEmbedder struct {
	vecs [][]float64
	err  error
	seen []string
}

func (f *fixedEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	f.seen = texts
	return f.vecs, f.err
}

func semanticGraph() *graph.Graph {
	g := devGraph()
	ada := g.Node("github:ada")
	ada.Attrs.Corpus = "Exploring consensus algorithms and log replication."
	return g
}

func TestSemanticRerankReordersHead(t *testing.T) {
	g := semanticGraph()
	u := g.Undirected()

	// source aligns with the second graph-ranked candidate
	emb := &fixedEmbedder{vecs: [][]float64{{1, 0}, {0, 1}, {1, 0}}}
	recs := NewRanker(emb, nil).Rank(context.Background(), g, u, nil, "github:ada",
		[]string{"repo:ben/raft", "repo:misc/zebra"}, 0)
	require.Len(t, recs, 2)

	assert.Equal(t, "repo:misc/zebra", recs[0].NodeID)
	assert.Equal(t, "repo:ben/raft", recs[1].NodeID)
	// zebra: graph score 0.2 + 0.6*1.0
	assert.InDelta(t, 0.8, recs[0].Score, 1e-9)
	// raft keeps its graph score, its semantic similarity is zero
	assert.InDelta(t, 0.55, recs[1].Score, 1e-9)
	require.Len(t, emb.seen, 3)
	assert.Contains(t, emb.seen[0], "consensus")
}

func TestSemanticRerankFailureKeepsOrder(t *testing.T) {
	g := semanticGraph()
	u := g.Undirected()

	emb := &fixedEmbedder{err: errors.New("embeddings down")}
	recs := NewRanker(emb, nil).Rank(context.Background(), g, u, nil, "github:ada",
		[]string{"repo:ben/raft", "repo:misc/zebra"}, 0)
	require.Len(t, recs, 2)
	assert.Equal(t, "repo:ben/raft", recs[0].NodeID)
}

func TestSemanticRerankSkipsWithoutCorpus(t *testing.T) {
	g := devGraph()
	u := g.Undirected()

	emb := &fixedEmbedder{vecs: [][]float64{{1, 0}, {0, 1}, {1, 0}}}
	recs := NewRanker(emb, nil).Rank(context.Background(), g, u, nil, "github:ada",
		[]string{"repo:ben/raft", "repo:misc/zebra"}, 0)
	require.Len(t, recs, 2)
	assert.Nil(t, emb.seen, "embedder must not be called without source text")
	assert.Equal(t, "repo:ben/raft", recs[0].NodeID)
}
