// Package embedding computes and caches structural node embeddings for
// the knowledge graph. Vectors come from second-order biased random
// walks trained with skip-gram negative sampling.
package embedding

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/devintel/devgraph/internal/graph"
)

// Provider computes embeddings for every node of an undirected graph
// view. Implementations must be deterministic for a fixed graph and
// parameter set.
type Provider interface {
	Compute(ctx context.Context, u *graph.Undirected) (map[string][]float64, error)
}

// Params configures a node2vec run.
type Params struct {
	Dimensions   int
	WalkLength   int
	NumWalks     int
	Window       int
	P            float64
	Q            float64
	Seed         uint64
	Epochs       int
	LearningRate float64
	NegSamples   int
}

// DefaultParams returns the tuned production parameters.
func DefaultParams() Params {
	return Params{
		Dimensions:   64,
		WalkLength:   10,
		NumWalks:     50,
		Window:       10,
		P:            1.0,
		Q:            1.0,
		Seed:         42,
		Epochs:       1,
		LearningRate: 0.025,
		NegSamples:   5,
	}
}

// Node2Vec implements Provider with an in-process walk generator and
// skip-gram trainer.
type Node2Vec struct {
	params Params
	logger *slog.Logger
}

// NewNode2Vec creates a provider with the given parameters.
func NewNode2Vec(params Params, logger *slog.Logger) *Node2Vec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Node2Vec{params: params, logger: logger.With("component", "node2vec")}
}

// Params returns the configured run parameters.
func (n *Node2Vec) Params() Params {
	return n.params
}

// adjacency is the integer-indexed view the walker and trainer operate
// on. Node ids are mapped to dense indices in sorted order so runs are
// reproducible regardless of map iteration order upstream.
type adjacency struct {
	ids       []string
	index     map[string]int
	neighbors [][]int
	sets      []map[int]struct{}
}

func buildAdjacency(u *graph.Undirected) *adjacency {
	ids := u.NodeIDs()
	a := &adjacency{
		ids:       ids,
		index:     make(map[string]int, len(ids)),
		neighbors: make([][]int, len(ids)),
		sets:      make([]map[int]struct{}, len(ids)),
	}
	for i, id := range ids {
		a.index[id] = i
	}
	for i, id := range ids {
		nbrs := make([]int, 0, u.Degree(id))
		for nbr := range u.Neighbors(id) {
			nbrs = append(nbrs, a.index[nbr])
		}
		sort.Ints(nbrs)
		a.neighbors[i] = nbrs
		set := make(map[int]struct{}, len(nbrs))
		for _, j := range nbrs {
			set[j] = struct{}{}
		}
		a.sets[i] = set
	}
	return a
}

// Compute runs walks and training over the full graph. Isolated nodes
// still receive a vector (their walks are length one, so only negative
// sampling shapes them).
func (n *Node2Vec) Compute(ctx context.Context, u *graph.Undirected) (map[string][]float64, error) {
	p := n.params
	adj := buildAdjacency(u)
	if len(adj.ids) == 0 {
		return map[string][]float64{}, nil
	}

	start := time.Now()
	rng := rand.New(rand.NewSource(int64(p.Seed)))

	walks, err := n.generateWalks(ctx, adj, rng)
	if err != nil {
		return nil, err
	}

	vectors, err := n.train(ctx, adj, walks, rng)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]float64, len(adj.ids))
	for i, id := range adj.ids {
		result[id] = vectors[i]
	}

	n.logger.Debug("embedding run complete",
		"nodes", len(adj.ids),
		"walks", len(walks),
		"dimensions", p.Dimensions,
		"elapsed", time.Since(start))

	return result, nil
}

func (n *Node2Vec) generateWalks(ctx context.Context, adj *adjacency, rng *rand.Rand) ([][]int, error) {
	p := n.params
	walks := make([][]int, 0, p.NumWalks*len(adj.ids))

	order := make([]int, len(adj.ids))
	for i := range order {
		order[i] = i
	}

	for iter := 0; iter < p.NumWalks; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, start := range order {
			walks = append(walks, n.walk(adj, start, rng))
		}
	}
	return walks, nil
}

// walk performs one second-order biased walk. With P == Q == 1 it
// degenerates to a uniform walk over neighbors.
func (n *Node2Vec) walk(adj *adjacency, start int, rng *rand.Rand) []int {
	p := n.params
	walk := make([]int, 1, p.WalkLength)
	walk[0] = start

	for len(walk) < p.WalkLength {
		cur := walk[len(walk)-1]
		nbrs := adj.neighbors[cur]
		if len(nbrs) == 0 {
			break
		}
		if len(walk) == 1 || (p.P == 1 && p.Q == 1) {
			walk = append(walk, nbrs[rng.Intn(len(nbrs))])
			continue
		}

		prev := walk[len(walk)-2]
		weights := make([]float64, len(nbrs))
		var total float64
		for i, x := range nbrs {
			switch {
			case x == prev:
				weights[i] = 1 / p.P
			default:
				if _, ok := adj.sets[prev][x]; ok {
					weights[i] = 1
				} else {
					weights[i] = 1 / p.Q
				}
			}
			total += weights[i]
		}

		r := rng.Float64() * total
		next := nbrs[len(nbrs)-1]
		for i, w := range weights {
			if r < w {
				next = nbrs[i]
				break
			}
			r -= w
		}
		walk = append(walk, next)
	}
	return walk
}

func (n *Node2Vec) train(ctx context.Context, adj *adjacency, walks [][]int, rng *rand.Rand) ([][]float64, error) {
	p := n.params
	count := len(adj.ids)

	in := make([][]float64, count)
	out := make([][]float64, count)
	for i := range in {
		in[i] = make([]float64, p.Dimensions)
		out[i] = make([]float64, p.Dimensions)
		for d := 0; d < p.Dimensions; d++ {
			in[i][d] = (rng.Float64() - 0.5) / float64(p.Dimensions)
		}
	}

	negTable := buildNegativeTable(walks, count)

	for epoch := 0; epoch < p.Epochs; epoch++ {
		for wi, walk := range walks {
			if wi%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			for i, center := range walk {
				lo := max(0, i-p.Window)
				hi := min(len(walk), i+p.Window+1)
				for j := lo; j < hi; j++ {
					if j == i {
						continue
					}
					n.trainPair(in, out, center, walk[j], negTable, rng)
				}
			}
		}
	}
	return in, nil
}

// trainPair runs one positive update and NegSamples negative updates.
func (n *Node2Vec) trainPair(in, out [][]float64, center, context int, negTable []int, rng *rand.Rand) {
	p := n.params
	grad := make([]float64, p.Dimensions)

	update := func(target int, label float64) {
		dot := 0.0
		for d := 0; d < p.Dimensions; d++ {
			dot += in[center][d] * out[target][d]
		}
		g := (label - sigmoid(dot)) * p.LearningRate
		for d := 0; d < p.Dimensions; d++ {
			grad[d] += g * out[target][d]
			out[target][d] += g * in[center][d]
		}
	}

	update(context, 1)
	for s := 0; s < p.NegSamples; s++ {
		neg := negTable[rng.Intn(len(negTable))]
		if neg == context {
			continue
		}
		update(neg, 0)
	}

	for d := 0; d < p.Dimensions; d++ {
		in[center][d] += grad[d]
	}
}

// buildNegativeTable builds a unigram^0.75 sampling table over walk
// occurrences, the standard word2vec noise distribution.
func buildNegativeTable(walks [][]int, count int) []int {
	freq := make([]float64, count)
	for _, walk := range walks {
		for _, node := range walk {
			freq[node]++
		}
	}

	var total float64
	for i := range freq {
		freq[i] = math.Pow(freq[i], 0.75)
		total += freq[i]
	}

	const tableSize = 1 << 16
	table := make([]int, 0, tableSize)
	for i, f := range freq {
		slots := int(f / total * tableSize)
		if f > 0 && slots == 0 {
			slots = 1
		}
		for s := 0; s < slots; s++ {
			table = append(table, i)
		}
	}
	if len(table) == 0 {
		for i := 0; i < count; i++ {
			table = append(table, i)
		}
	}
	return table
}

func sigmoid(x float64) float64 {
	switch {
	case x > 8:
		return 1
	case x < -8:
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}
