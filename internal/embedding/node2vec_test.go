package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
	"github.com/devintel/devgraph/internal/scoring"
)

// clusteredGraph builds two dense user/repo clusters joined by a single
// bridge edge, a shape where structural embeddings should separate the
// clusters.
func clusteredGraph() *graph.Graph {
	g := graph.New()
	addUser := func(id string) {
		g.AddNode(&models.Node{ID: id, Type: models.NodeGitHubUser})
	}
	addRepo := func(id string) {
		g.AddNode(&models.Node{ID: id, Type: models.NodeGitHubRepo})
	}
	link := func(src, dst string) {
		g.AddEdge(&models.Edge{Src: src, Dst: dst, Relation: models.RelContributedTo})
	}

	for _, u := range []string{"github:a1", "github:a2", "github:a3"} {
		addUser(u)
	}
	for _, r := range []string{"repo:a/x", "repo:a/y"} {
		addRepo(r)
	}
	for _, u := range []string{"github:a1", "github:a2", "github:a3"} {
		link(u, "repo:a/x")
		link(u, "repo:a/y")
	}

	for _, u := range []string{"github:b1", "github:b2", "github:b3"} {
		addUser(u)
	}
	for _, r := range []string{"repo:b/x", "repo:b/y"} {
		addRepo(r)
	}
	for _, u := range []string{"github:b1", "github:b2", "github:b3"} {
		link(u, "repo:b/x")
		link(u, "repo:b/y")
	}

	link("github:a1", "repo:b/x") // bridge
	return g
}

func testParams() Params {
	p := DefaultParams()
	p.Dimensions = 16
	p.NumWalks = 20
	return p
}

func TestComputeCoversEveryNode(t *testing.T) {
	g := clusteredGraph()
	n2v := NewNode2Vec(testParams(), nil)

	vecs, err := n2v.Compute(context.Background(), g.Undirected())
	require.NoError(t, err)

	assert.Len(t, vecs, g.NodeCount())
	for id, vec := range vecs {
		assert.Len(t, vec, 16, "node %s", id)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	g := clusteredGraph()

	first, err := NewNode2Vec(testParams(), nil).Compute(context.Background(), g.Undirected())
	require.NoError(t, err)
	second, err := NewNode2Vec(testParams(), nil).Compute(context.Background(), g.Undirected())
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for id, vec := range first {
		assert.Equal(t, vec, second[id], "node %s", id)
	}
}

func TestComputeSeparatesClusters(t *testing.T) {
	g := clusteredGraph()

	vecs, err := NewNode2Vec(testParams(), nil).Compute(context.Background(), g.Undirected())
	require.NoError(t, err)

	same := scoring.Cosine(vecs["github:a2"], vecs["github:a3"])
	cross := scoring.Cosine(vecs["github:a2"], vecs["github:b2"])
	assert.Greater(t, same, cross,
		"nodes sharing all neighbors should embed closer than nodes in different clusters")
}

func TestComputeEmptyGraph(t *testing.T) {
	g := graph.New()
	vecs, err := NewNode2Vec(testParams(), nil).Compute(context.Background(), g.Undirected())
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestComputeIsolatedNode(t *testing.T) {
	g := clusteredGraph()
	g.AddNode(&models.Node{ID: "github:loner", Type: models.NodeGitHubUser})

	vecs, err := NewNode2Vec(testParams(), nil).Compute(context.Background(), g.Undirected())
	require.NoError(t, err)
	assert.Contains(t, vecs, "github:loner")
	assert.Len(t, vecs["github:loner"], 16)
}

func TestComputeHonorsCancellation(t *testing.T) {
	g := clusteredGraph()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNode2Vec(testParams(), nil).Compute(ctx, g.Undirected())
	assert.ErrorIs(t, err, context.Canceled)
}
