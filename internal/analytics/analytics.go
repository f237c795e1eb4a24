// Package analytics computes centrality and community structure over
// the knowledge graph for the metrics endpoint.
package analytics

import (
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"

	apperrors "github.com/devintel/devgraph/internal/errors"
	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
)

// Influence blends the three centralities into one 0-100 headline
// number.
const (
	influenceDegreeWeight      = 0.4
	influenceBetweennessWeight = 0.4
	influenceClosenessWeight   = 0.2
)

// communitySeed fixes the Louvain randomization so repeated calls over
// an unchanged graph agree on community ids.
const communitySeed = 42

// GraphMetrics holds per-node metrics for one snapshot. Compute once
// per snapshot and answer point lookups from it.
type GraphMetrics struct {
	degree      map[string]float64
	betweenness map[string]float64
	closeness   map[string]float64
	community   map[string]int
}

// Analyzer computes GraphMetrics.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger.With("component", "analytics")}
}

// indexed is the dense-integer mirror of the undirected view that the
// gonum algorithms operate on.
type indexed struct {
	ids       []string
	index     map[string]int64
	neighbors [][]int64
	edges     int
	g         *simple.UndirectedGraph
}

func buildIndexed(u *graph.Undirected) *indexed {
	ids := u.NodeIDs()
	ix := &indexed{
		ids:       ids,
		index:     make(map[string]int64, len(ids)),
		neighbors: make([][]int64, len(ids)),
		g:         simple.NewUndirectedGraph(),
	}
	for i, id := range ids {
		ix.index[id] = int64(i)
		ix.g.AddNode(simple.Node(int64(i)))
	}
	for i, id := range ids {
		for nbr := range u.Neighbors(id) {
			j := ix.index[nbr]
			ix.neighbors[i] = append(ix.neighbors[i], j)
			if int64(i) < j {
				ix.g.SetEdge(simple.Edge{F: simple.Node(int64(i)), T: simple.Node(j)})
				ix.edges++
			}
		}
		sort.Slice(ix.neighbors[i], func(a, b int) bool { return ix.neighbors[i][a] < ix.neighbors[i][b] })
	}
	return ix
}

// Compute derives centralities and communities for the whole graph.
func (a *Analyzer) Compute(u *graph.Undirected) *GraphMetrics {
	start := time.Now()
	ix := buildIndexed(u)
	n := len(ix.ids)

	m := &GraphMetrics{
		degree:      make(map[string]float64, n),
		betweenness: make(map[string]float64, n),
		closeness:   make(map[string]float64, n),
		community:   make(map[string]int, n),
	}
	if n == 0 {
		return m
	}

	for i, id := range ix.ids {
		if n > 1 {
			m.degree[id] = float64(len(ix.neighbors[i])) / float64(n-1)
		} else {
			m.degree[id] = 0
		}
	}

	btw := network.Betweenness(ix.g)
	// Brandes accumulates each unordered pair twice on an undirected
	// graph, so dividing by (n-1)(n-2) lands in [0,1].
	norm := float64(n-1) * float64(n-2)
	for i, id := range ix.ids {
		if norm > 0 {
			m.betweenness[id] = btw[int64(i)] / norm
		} else {
			m.betweenness[id] = 0
		}
	}

	a.closenessBFS(ix, m)
	a.communities(ix, m)

	a.logger.Debug("graph metrics computed",
		"nodes", n,
		"elapsed", time.Since(start))
	return m
}

// closenessBFS computes closeness with the Wasserman-Faust correction
// so nodes in small disconnected components don't outrank hubs of the
// main component. Edges are unweighted, so plain BFS suffices.
func (a *Analyzer) closenessBFS(ix *indexed, m *GraphMetrics) {
	n := len(ix.ids)
	dist := make([]int, n)
	queue := make([]int64, 0, n)

	for i, id := range ix.ids {
		for j := range dist {
			dist[j] = -1
		}
		dist[i] = 0
		queue = append(queue[:0], int64(i))
		sum, reachable := 0, 1

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nbr := range ix.neighbors[cur] {
				if dist[nbr] >= 0 {
					continue
				}
				dist[nbr] = dist[cur] + 1
				sum += dist[nbr]
				reachable++
				queue = append(queue, nbr)
			}
		}

		if sum == 0 || n <= 1 {
			m.closeness[id] = 0
			continue
		}
		r := float64(reachable - 1)
		m.closeness[id] = (r / float64(n-1)) * (r / float64(sum))
	}
}

// communities runs Louvain modularization at resolution 1. Community
// ids are assigned by the smallest member id so they are stable across
// runs.
func (a *Analyzer) communities(ix *indexed, m *GraphMetrics) {
	if ix.edges == 0 {
		// modularity is undefined without edges; every node is its own
		// community, numbered in id order
		for i, id := range ix.ids {
			m.community[id] = i
		}
		return
	}

	src := rand.NewPCG(communitySeed, communitySeed)
	reduced := community.Modularize(ix.g, 1.0, src)

	groups := reduced.Communities()
	type member struct {
		min   string
		nodes []string
	}
	members := make([]member, 0, len(groups))
	for _, grp := range groups {
		ids := make([]string, 0, len(grp))
		for _, node := range grp {
			ids = append(ids, ix.ids[node.ID()])
		}
		sort.Strings(ids)
		members = append(members, member{min: ids[0], nodes: ids})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].min < members[j].min })

	for cid, grp := range members {
		for _, id := range grp.nodes {
			m.community[id] = cid
		}
	}
}

// For returns the metrics row for one node.
func (m *GraphMetrics) For(nodeID string) (*models.NodeMetrics, error) {
	if _, ok := m.degree[nodeID]; !ok {
		return nil, apperrors.NotFound(nodeID)
	}
	deg := m.degree[nodeID]
	btw := m.betweenness[nodeID]
	clo := m.closeness[nodeID]
	return &models.NodeMetrics{
		NodeID:      nodeID,
		Degree:      deg,
		Betweenness: btw,
		Closeness:   clo,
		Influence:   (influenceDegreeWeight*deg + influenceBetweennessWeight*btw + influenceClosenessWeight*clo) * 100,
		CommunityID: m.community[nodeID],
	}, nil
}

// CommunityOf returns the community id for a node, with ok reporting
// membership.
func (m *GraphMetrics) CommunityOf(nodeID string) (int, bool) {
	cid, ok := m.community[nodeID]
	return cid, ok
}
