package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
)

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1.0},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"zero vector", []float64{0, 0, 0}, []float64{1, 2, 3}, 0.0},
		{"both zero", []float64{0, 0}, []float64{0, 0}, 0.0},
		{"empty", nil, []float64{1}, 0.0},
		{"dimension mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineBounds(t *testing.T) {
	t.Parallel()

	vecs := [][]float64{
		{0.1, -0.4, 2.2},
		{3.0, 0.0, -1.0},
		{-0.5, -0.5, -0.5},
	}
	for _, a := range vecs {
		for _, b := range vecs {
			sim := Cosine(a, b)
			assert.GreaterOrEqual(t, sim, -1.0)
			assert.LessOrEqual(t, sim, 1.0)
		}
	}
}

func TestCosineScoresMissingEmbeddings(t *testing.T) {
	t.Parallel()

	embeddings := map[string][]float64{
		"a": {1, 0},
		"b": {1, 0},
	}
	scores := CosineScores(embeddings, "a", []string{"b", "c"})
	assert.InDelta(t, 1.0, scores["b"], 1e-9)
	assert.Equal(t, 0.0, scores["c"])

	// Source with no embedding scores everything 0.0.
	scores = CosineScores(embeddings, "missing", []string{"a", "b"})
	assert.Equal(t, 0.0, scores["a"])
	assert.Equal(t, 0.0, scores["b"])
}

// Shared scenario: A and B both contribute to R1, so Jaccard(A, B) and
// the A->R3 path through B are observable in the undirected view.
func scenarioGraph() *graph.Graph {
	g := graph.New()
	for _, n := range []*models.Node{
		{ID: "A", Type: models.NodeGitHubUser},
		{ID: "B", Type: models.NodeGitHubUser},
		{ID: "R1", Type: models.NodeGitHubRepo, Attrs: models.Attrs{Language: "Python"}},
		{ID: "R2", Type: models.NodeGitHubRepo, Attrs: models.Attrs{Language: "Python"}},
		{ID: "R3", Type: models.NodeGitHubRepo, Attrs: models.Attrs{Language: "Python"}},
	} {
		g.AddNode(n)
	}
	g.AddEdge(&models.Edge{Src: "A", Dst: "R1", Relation: models.RelContributedTo})
	g.AddEdge(&models.Edge{Src: "A", Dst: "R2", Relation: models.RelContributedTo})
	g.AddEdge(&models.Edge{Src: "B", Dst: "R1", Relation: models.RelContributedTo})
	g.AddEdge(&models.Edge{Src: "B", Dst: "R3", Relation: models.RelContributedTo})
	return g
}

func TestJaccard(t *testing.T) {
	t.Parallel()

	u := scenarioGraph().Undirected()

	// N(A) = {R1,R2}, N(R3) = {B}: no overlap.
	assert.Equal(t, 0.0, Jaccard(u, "A", "R3"))

	// N(A) = {R1,R2}, N(B) = {R1,R3}: 1 common of 3.
	assert.InDelta(t, 1.0/3.0, Jaccard(u, "A", "B"), 1e-9)

	// Absent nodes and empty neighbor sets score 0.0.
	assert.Equal(t, 0.0, Jaccard(u, "A", "missing"))
	assert.Equal(t, 0.0, Jaccard(u, "missing", "also-missing"))
}

func TestJaccardBounds(t *testing.T) {
	t.Parallel()

	u := scenarioGraph().Undirected()
	for _, a := range u.NodeIDs() {
		for _, b := range u.NodeIDs() {
			s := Jaccard(u, a, b)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}
}

func TestAdamicAdar(t *testing.T) {
	t.Parallel()

	u := scenarioGraph().Undirected()

	// Common neighbor of A and B is R1 with degree 2: 1/log(2).
	got := AdamicAdar(u, "A", "B")
	assert.InDelta(t, 1/0.6931471805599453, got, 1e-9)

	// Degree-1 common neighbors contribute nothing.
	g := graph.New()
	for _, id := range []string{"x", "y", "z"} {
		g.AddNode(&models.Node{ID: id, Type: models.NodeGitHubUser})
	}
	g.AddEdge(&models.Edge{Src: "x", Dst: "z", Relation: models.RelContributedTo})
	g.AddEdge(&models.Edge{Src: "y", Dst: "z", Relation: models.RelContributedTo})
	// z has degree 2 here; drop one side to make it degree 1 relative to x only.
	assert.Greater(t, AdamicAdar(g.Undirected(), "x", "y"), 0.0)

	assert.Equal(t, 0.0, AdamicAdar(u, "missing", "A"))
}

func TestHeuristicScores(t *testing.T) {
	t.Parallel()

	u := scenarioGraph().Undirected()
	scores := HeuristicScores(u, "A", []string{"R3", "B", "missing"}, MethodJaccard)
	assert.Len(t, scores, 3)
	assert.Equal(t, 0.0, scores["missing"])
	assert.InDelta(t, 1.0/3.0, scores["B"], 1e-9)

	aa := HeuristicScores(u, "A", []string{"B"}, MethodAdamicAdar)
	assert.Greater(t, aa["B"], 0.0)
}
