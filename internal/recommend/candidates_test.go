package recommend

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
)

// devGraph builds the standard fixture: two developers sharing one
// repository, plus an unconnected popular repository.
//
//	github:ada  -> repo:ada/webgl-viz (TypeScript), repo:shared/toolkit (Go)
//	github:ben  -> repo:shared/toolkit (Go), repo:ben/raft (Go)
//	repo:misc/zebra (Rust) has no contributors
func devGraph() *graph.Graph {
	g := graph.New()
	g.AddNode(&models.Node{
		ID: "github:ada", Type: models.NodeGitHubUser,
		Attrs: models.Attrs{
			TopLanguages: []models.LanguageCount{{Language: "Go", Count: 3}, {Language: "TypeScript", Count: 1}},
			Topics:       []string{"distributed-systems"},
		},
	})
	g.AddNode(&models.Node{ID: "github:ben", Type: models.NodeGitHubUser})
	g.AddNode(&models.Node{
		ID: "repo:ada/webgl-viz", Type: models.NodeGitHubRepo,
		Attrs: models.Attrs{FullName: "ada/webgl-viz", Language: "TypeScript", Stars: 40},
	})
	g.AddNode(&models.Node{
		ID: "repo:shared/toolkit", Type: models.NodeGitHubRepo,
		Attrs: models.Attrs{FullName: "shared/toolkit", Language: "Go", Stars: 200},
	})
	g.AddNode(&models.Node{
		ID: "repo:ben/raft", Type: models.NodeGitHubRepo,
		Attrs: models.Attrs{FullName: "ben/raft", Language: "Go", Stars: 900,
			Description: "distributed-systems consensus in Go"},
	})
	g.AddNode(&models.Node{
		ID: "repo:misc/zebra", Type: models.NodeGitHubRepo,
		Attrs: models.Attrs{FullName: "misc/zebra", Language: "Rust", Stars: 5000},
	})

	link := func(u, r string) {
		g.AddEdge(&models.Edge{Src: u, Dst: r, Relation: models.RelContributedTo})
	}
	link("github:ada", "repo:ada/webgl-viz")
	link("github:ada", "repo:shared/toolkit")
	link("github:ben", "repo:shared/toolkit")
	link("github:ben", "repo:ben/raft")
	return g
}

func TestCandidatesExcludeSelfAndNeighbors(t *testing.T) {
	g := devGraph()
	cands := Candidates(g, "github:ada", 0)

	assert.NotContains(t, cands, "github:ada")
	assert.NotContains(t, cands, "repo:ada/webgl-viz", "existing contribution")
	assert.NotContains(t, cands, "repo:shared/toolkit", "existing contribution")
	assert.Contains(t, cands, "repo:ben/raft")
	assert.Contains(t, cands, "repo:misc/zebra")
}

func TestCandidatesOnlyRepositories(t *testing.T) {
	g := devGraph()
	for _, id := range Candidates(g, "github:ada", 0) {
		assert.Equal(t, models.NodeGitHubRepo, g.Node(id).Type)
	}
}

func TestCandidatesProfileOrdering(t *testing.T) {
	g := devGraph()
	cands := Candidates(g, "github:ada", 0)

	// ben/raft matches ada's language and topic; zebra matches nothing.
	require.Equal(t, []string{"repo:ben/raft", "repo:misc/zebra"}, cands)
}

func TestCandidatesDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		assert.Equal(t, Candidates(devGraph(), "github:ada", 0), Candidates(devGraph(), "github:ada", 0))
	}
}

func TestCandidatesCap(t *testing.T) {
	g := graph.New()
	g.AddNode(&models.Node{ID: "github:u", Type: models.NodeGitHubUser})
	for i := 0; i < 30; i++ {
		g.AddNode(&models.Node{
			ID:   fmt.Sprintf("repo:x/r%02d", i),
			Type: models.NodeGitHubRepo,
			Attrs: models.Attrs{FullName: fmt.Sprintf("x/r%02d", i)},
		})
	}

	cands := Candidates(g, "github:u", 10)
	require.Len(t, cands, 10)
}

func TestCandidatesUnknownSource(t *testing.T) {
	assert.Nil(t, Candidates(devGraph(), "github:ghost", 0))
}

func TestCandidatesRepoSourceUsesOwnLanguage(t *testing.T) {
	g := devGraph()
	cands := Candidates(g, "repo:ben/raft", 0)

	// toolkit shares Go with the source; the others rank below it.
	require.NotEmpty(t, cands)
	assert.Equal(t, "repo:shared/toolkit", cands[0])
	assert.NotContains(t, cands, "repo:ben/raft")
}
