package embedding

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
)

type memStore struct {
	saved map[string][]float64
}

func (m *memStore) Load(context.Context) (*graph.Graph, error)      { return graph.New(), nil }
func (m *memStore) UpsertNode(context.Context, *models.Node) error  { return nil }
func (m *memStore) InsertEdge(context.Context, *models.Edge) error  { return nil }
func (m *memStore) Close() error                                    { return nil }
func (m *memStore) SaveEmbedding(_ context.Context, id string, vec []float64) error {
	if m.saved == nil {
		m.saved = make(map[string][]float64)
	}
	m.saved[id] = vec
	return nil
}

type stubProvider struct {
	vecs map[string][]float64
	err  error
	runs int
}

func (p *stubProvider) Compute(context.Context, *graph.Undirected) (map[string][]float64, error) {
	p.runs++
	if p.err != nil {
		return nil, p.err
	}
	return p.vecs, nil
}

func pairGraph(embedded ...string) *graph.Graph {
	g := graph.New()
	ids := []string{"github:a", "github:b", "repo:a/x", "repo:b/y"}
	withVec := make(map[string]bool)
	for _, id := range embedded {
		withVec[id] = true
	}
	for _, id := range ids {
		n := &models.Node{ID: id, Type: models.NodeGitHubUser}
		if withVec[id] {
			n.Embedding = []float64{1, 0}
		}
		g.AddNode(n)
	}
	return g
}

func TestEnsureServesExistingVectorsAboveThreshold(t *testing.T) {
	g := pairGraph("github:a", "github:b")
	provider := &stubProvider{}
	cache := NewCache(&memStore{}, provider, nil, 2, CacheOptions{}, nil)

	vecs, degraded, err := cache.Ensure(context.Background(), g)
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Len(t, vecs, 2)
	assert.Zero(t, provider.runs, "no recompute at 50% coverage")
}

func TestEnsureRecomputesBelowThreshold(t *testing.T) {
	g := pairGraph("github:a")
	st := &memStore{}
	provider := &stubProvider{vecs: map[string][]float64{
		"github:a": {1, 0}, "github:b": {0, 1}, "repo:a/x": {1, 1}, "repo:b/y": {0.5, 0.5},
	}}
	cache := NewCache(st, provider, nil, 2, CacheOptions{}, nil)

	vecs, degraded, err := cache.Ensure(context.Background(), g)
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, 1, provider.runs)
	assert.Len(t, vecs, 4)
	assert.Len(t, st.saved, 4, "fresh vectors are persisted")
	assert.Equal(t, []float64{0, 1}, g.Node("github:b").Embedding, "graph updated in place")
}

func TestEnsureDegradesOnProviderFailure(t *testing.T) {
	g := pairGraph("github:a")
	provider := &stubProvider{err: errors.New("walker blew up")}
	cache := NewCache(&memStore{}, provider, nil, 2, CacheOptions{}, nil)

	vecs, degraded, err := cache.Ensure(context.Background(), g)
	require.NoError(t, err, "degradation is not an error")
	assert.True(t, degraded)
	assert.Len(t, vecs, 1, "stale vectors still served")
}

func TestEnsureEmptyGraph(t *testing.T) {
	cache := NewCache(&memStore{}, &stubProvider{}, nil, 2, CacheOptions{}, nil)
	vecs, degraded, err := cache.Ensure(context.Background(), graph.New())
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Empty(t, vecs)
}

func TestCollectRejectsMismatchedDimensions(t *testing.T) {
	g := pairGraph("github:a")
	g.Node("github:b").Embedding = []float64{1, 2, 3} // wrong run
	cache := NewCache(&memStore{}, &stubProvider{}, nil, 2, CacheOptions{}, nil)

	vecs := cache.Collect(g)
	assert.Contains(t, vecs, "github:a")
	assert.NotContains(t, vecs, "github:b")
}

func TestManifestDimensionsGateVectors(t *testing.T) {
	dir := t.TempDir()
	manifests, err := OpenManifestStore(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer manifests.Close()

	// Last run was 3-dimensional, so 2-dimensional vectors are stale.
	require.NoError(t, manifests.Record(RunManifest{Dimensions: 3, Seed: 42}))

	g := pairGraph("github:a", "github:b")
	cache := NewCache(&memStore{}, &stubProvider{}, manifests, 2, CacheOptions{}, nil)

	assert.Empty(t, cache.Collect(g))
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	manifests, err := OpenManifestStore(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer manifests.Close()

	current, err := manifests.Current()
	require.NoError(t, err)
	assert.Nil(t, current, "no manifest before first run")

	require.NoError(t, manifests.Record(RunManifest{Dimensions: 64, NumWalks: 50, Seed: 42}))

	current, err = manifests.Current()
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 64, current.Dimensions)
	assert.Equal(t, uint64(42), current.Seed)
}
