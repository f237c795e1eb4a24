package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devintel/devgraph/internal/analytics"
	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
)

type countingStore struct {
	loads atomic.Int32
}

func (s *countingStore) Load(context.Context) (*graph.Graph, error) {
	s.loads.Add(1)
	g := graph.New()
	g.AddNode(&models.Node{ID: "github:a", Type: models.NodeGitHubUser})
	g.AddNode(&models.Node{ID: "repo:a/x", Type: models.NodeGitHubRepo})
	g.AddEdge(&models.Edge{Src: "github:a", Dst: "repo:a/x", Relation: models.RelContributedTo})
	return g, nil
}
func (s *countingStore) UpsertNode(context.Context, *models.Node) error { return nil }
func (s *countingStore) InsertEdge(context.Context, *models.Edge) error { return nil }
func (s *countingStore) SaveEmbedding(context.Context, string, []float64) error {
	return nil
}
func (s *countingStore) Close() error { return nil }

func TestGetBuildsOnce(t *testing.T) {
	st := &countingStore{}
	c := NewSnapshotCache(st, nil, analytics.NewAnalyzer(nil), nil)

	first, err := c.Get(context.Background())
	require.NoError(t, err)
	second, err := c.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), st.loads.Load())
	assert.Equal(t, 2, first.Graph.NodeCount())
	require.NotNil(t, first.Metrics)
}

func TestInvalidateForcesRebuild(t *testing.T) {
	st := &countingStore{}
	c := NewSnapshotCache(st, nil, nil, nil)

	first, err := c.Get(context.Background())
	require.NoError(t, err)

	c.Invalidate()

	second, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), st.loads.Load())
}

func TestConcurrentColdGetsShareOneBuild(t *testing.T) {
	st := &countingStore{}
	c := NewSnapshotCache(st, nil, nil, nil)

	const workers = 16
	var wg sync.WaitGroup
	snaps := make([]*Snapshot, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := c.Get(context.Background())
			assert.NoError(t, err)
			snaps[i] = snap
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), st.loads.Load(), "singleflight collapses concurrent builds")
	for i := 1; i < workers; i++ {
		assert.Same(t, snaps[0], snaps[i])
	}
}

func TestRefreshReturnsNewSnapshot(t *testing.T) {
	st := &countingStore{}
	c := NewSnapshotCache(st, nil, nil, nil)

	first, err := c.Get(context.Background())
	require.NoError(t, err)

	refreshed, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, refreshed)
}
