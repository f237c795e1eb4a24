// Package graph provides the in-memory knowledge-graph snapshot used by
// the recommendation pipeline. The directed multigraph is the system of
// record within a request; the undirected view is derived and read-only.
package graph

import (
	"sort"

	"github.com/devintel/devgraph/internal/models"
)

// Graph is a directed multigraph over string node ids. Parallel edges of
// different relations between the same pair are allowed. Mutations are
// not safe for concurrent use; snapshots are built once and then treated
// as read-only.
type Graph struct {
	nodes map[string]*models.Node
	out   map[string][]*models.Edge
	in    map[string][]*models.Edge
	edges []*models.Edge
}

// New returns an empty, valid graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*models.Node),
		out:   make(map[string][]*models.Edge),
		in:    make(map[string][]*models.Edge),
	}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(n *models.Node) {
	g.nodes[n.ID] = n
}

// AddEdge inserts a directed edge. Endpoints do not need to exist yet;
// dangling edges are tolerated during load and simply never traversed if
// the endpoint node is missing.
func (g *Graph) AddEdge(e *models.Edge) {
	g.edges = append(g.edges, e)
	g.out[e.Src] = append(g.out[e.Src], e)
	g.in[e.Dst] = append(g.in[e.Dst], e)
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *models.Node {
	return g.nodes[id]
}

// HasNode reports whether the node exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Nodes returns all nodes in ascending id order. The deterministic order
// keeps downstream candidate selection reproducible.
func (g *Graph) Nodes() []*models.Node {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	nodes := make([]*models.Node, len(ids))
	for i, id := range ids {
		nodes[i] = g.nodes[id]
	}
	return nodes
}

// NodeIDs returns all node ids in ascending order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns all directed edges in insertion order.
func (g *Graph) Edges() []*models.Edge {
	return g.edges
}

// OutNeighbors returns the distinct ids reachable by outgoing edges.
func (g *Graph) OutNeighbors(id string) []string {
	return distinctEndpoints(g.out[id], func(e *models.Edge) string { return e.Dst })
}

// InNeighbors returns the distinct ids with edges pointing at id.
func (g *Graph) InNeighbors(id string) []string {
	return distinctEndpoints(g.in[id], func(e *models.Edge) string { return e.Src })
}

// NeighborSet returns the union of in- and out-neighbors as a set,
// excluding the node itself.
func (g *Graph) NeighborSet(id string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, e := range g.out[id] {
		if e.Dst != id {
			set[e.Dst] = struct{}{}
		}
	}
	for _, e := range g.in[id] {
		if e.Src != id {
			set[e.Src] = struct{}{}
		}
	}
	return set
}

func distinctEndpoints(edges []*models.Edge, pick func(*models.Edge) string) []string {
	seen := make(map[string]struct{}, len(edges))
	var ids []string
	for _, e := range edges {
		id := pick(e)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Undirected derives the symmetric neighbor view used by topological
// link-prediction heuristics. The view is a projection: it never feeds
// back into the directed graph.
func (g *Graph) Undirected() *Undirected {
	u := &Undirected{neighbors: make(map[string]map[string]struct{}, len(g.nodes))}
	for id := range g.nodes {
		u.neighbors[id] = make(map[string]struct{})
	}
	for _, e := range g.edges {
		if e.Src == e.Dst {
			continue
		}
		if _, ok := u.neighbors[e.Src]; !ok {
			u.neighbors[e.Src] = make(map[string]struct{})
		}
		if _, ok := u.neighbors[e.Dst]; !ok {
			u.neighbors[e.Dst] = make(map[string]struct{})
		}
		u.neighbors[e.Src][e.Dst] = struct{}{}
		u.neighbors[e.Dst][e.Src] = struct{}{}
	}
	return u
}

// Undirected is the derived symmetric view of a Graph.
type Undirected struct {
	neighbors map[string]map[string]struct{}
}

// HasNode reports whether the node appears in the view.
func (u *Undirected) HasNode(id string) bool {
	_, ok := u.neighbors[id]
	return ok
}

// Neighbors returns the neighbor set of id. Nodes absent from the view
// have an empty set.
func (u *Undirected) Neighbors(id string) map[string]struct{} {
	return u.neighbors[id]
}

// Degree returns the number of distinct neighbors of id.
func (u *Undirected) Degree(id string) int {
	return len(u.neighbors[id])
}

// NodeIDs returns all node ids in the view in ascending order.
func (u *Undirected) NodeIDs() []string {
	ids := make([]string, 0, len(u.neighbors))
	for id := range u.neighbors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
