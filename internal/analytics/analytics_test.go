package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devintel/devgraph/internal/errors"
	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
)

func buildGraph(edges [][2]string) *graph.Graph {
	g := graph.New()
	seen := map[string]bool{}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			g.AddNode(&models.Node{ID: id, Type: models.NodeGitHubUser})
		}
	}
	for _, e := range edges {
		add(e[0])
		add(e[1])
		g.AddEdge(&models.Edge{Src: e[0], Dst: e[1], Relation: models.RelContributedTo})
	}
	return g
}

func TestPathGraphCentralities(t *testing.T) {
	g := buildGraph([][2]string{{"a", "b"}, {"b", "c"}})
	m := NewAnalyzer(nil).Compute(g.Undirected())

	mid, err := m.For("b")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mid.Degree, 1e-9)
	assert.InDelta(t, 1.0, mid.Betweenness, 1e-9)
	assert.InDelta(t, 1.0, mid.Closeness, 1e-9)
	assert.InDelta(t, 100.0, mid.Influence, 1e-9)

	end, err := m.For("a")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, end.Degree, 1e-9)
	assert.InDelta(t, 0.0, end.Betweenness, 1e-9)
	assert.InDelta(t, 2.0/3.0, end.Closeness, 1e-9)
}

func TestMetricsBounded(t *testing.T) {
	g := buildGraph([][2]string{
		{"a", "b"}, {"b", "c"}, {"c", "a"}, {"c", "d"}, {"d", "e"}, {"e", "f"}, {"f", "d"},
	})
	m := NewAnalyzer(nil).Compute(g.Undirected())

	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		row, err := m.For(id)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, row.Degree, 0.0)
		assert.LessOrEqual(t, row.Degree, 1.0)
		assert.GreaterOrEqual(t, row.Betweenness, 0.0)
		assert.LessOrEqual(t, row.Betweenness, 1.0)
		assert.GreaterOrEqual(t, row.Closeness, 0.0)
		assert.LessOrEqual(t, row.Closeness, 1.0)
		assert.GreaterOrEqual(t, row.Influence, 0.0)
		assert.LessOrEqual(t, row.Influence, 100.0)
	}
}

func TestBridgeNodeHasHighestBetweenness(t *testing.T) {
	// two triangles joined through d
	g := buildGraph([][2]string{
		{"a", "b"}, {"b", "c"}, {"c", "a"},
		{"c", "d"}, {"d", "e"},
		{"e", "f"}, {"f", "g"}, {"g", "e"},
	})
	m := NewAnalyzer(nil).Compute(g.Undirected())

	d, err := m.For("d")
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "f", "g"} {
		other, err := m.For(id)
		require.NoError(t, err)
		assert.Greater(t, d.Betweenness, other.Betweenness, "bridge should beat %s", id)
	}
}

func TestCommunitiesSplitClusters(t *testing.T) {
	g := buildGraph([][2]string{
		{"a", "b"}, {"b", "c"}, {"c", "a"},
		{"x", "y"}, {"y", "z"}, {"z", "x"},
		{"c", "x"},
	})
	m := NewAnalyzer(nil).Compute(g.Undirected())

	ca, _ := m.CommunityOf("a")
	cb, _ := m.CommunityOf("b")
	cc, _ := m.CommunityOf("c")
	cx, _ := m.CommunityOf("x")
	cy, _ := m.CommunityOf("y")
	cz, _ := m.CommunityOf("z")

	assert.Equal(t, ca, cb)
	assert.Equal(t, ca, cc)
	assert.Equal(t, cx, cy)
	assert.Equal(t, cx, cz)
	assert.NotEqual(t, ca, cx)
}

func TestCommunityIDsStableAcrossRuns(t *testing.T) {
	edges := [][2]string{
		{"a", "b"}, {"b", "c"}, {"c", "a"},
		{"x", "y"}, {"y", "z"}, {"z", "x"},
		{"c", "x"},
	}
	first := NewAnalyzer(nil).Compute(buildGraph(edges).Undirected())
	second := NewAnalyzer(nil).Compute(buildGraph(edges).Undirected())

	for _, id := range []string{"a", "b", "c", "x", "y", "z"} {
		c1, _ := first.CommunityOf(id)
		c2, _ := second.CommunityOf(id)
		assert.Equal(t, c1, c2, "community of %s", id)
	}
}

func TestDisconnectedComponentCloseness(t *testing.T) {
	g := buildGraph([][2]string{
		{"a", "b"}, {"b", "c"}, {"c", "d"},
		{"p", "q"},
	})
	m := NewAnalyzer(nil).Compute(g.Undirected())

	hub, err := m.For("b")
	require.NoError(t, err)
	island, err := m.For("p")
	require.NoError(t, err)
	assert.Greater(t, hub.Closeness, island.Closeness,
		"small-component nodes must not outrank main-component hubs")
}

func TestUnknownNode(t *testing.T) {
	m := NewAnalyzer(nil).Compute(buildGraph([][2]string{{"a", "b"}}).Undirected())

	_, err := m.For("ghost")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestSingletonGraph(t *testing.T) {
	g := graph.New()
	g.AddNode(&models.Node{ID: "solo", Type: models.NodeGitHubUser})
	m := NewAnalyzer(nil).Compute(g.Undirected())

	row, err := m.For("solo")
	require.NoError(t, err)
	assert.Zero(t, row.Degree)
	assert.Zero(t, row.Betweenness)
	assert.Zero(t, row.Closeness)
	assert.Zero(t, row.Influence)
}
