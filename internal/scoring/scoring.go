// Package scoring provides the pure link-prediction primitives used by
// the recommendation ranker: embedding cosine similarity and topological
// neighbor-overlap heuristics. Every degenerate input resolves to a
// defined 0.0 score, never an error.
package scoring

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/devintel/devgraph/internal/graph"
)

// Cosine returns the cosine similarity between two vectors in [-1, 1].
// Zero-norm vectors, empty vectors, and dimension mismatches (vectors
// from different embedding runs) all score 0.0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0.0
	}
	sim := floats.Dot(a, b) / (na * nb)
	// Clamp accumulated float error so callers can rely on the bound.
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// CosineScores computes the similarity between the source embedding and
// each candidate, defaulting 0.0 where either side lacks a usable vector.
func CosineScores(embeddings map[string][]float64, sourceID string, candidates []string) map[string]float64 {
	scores := make(map[string]float64, len(candidates))
	source := embeddings[sourceID]
	for _, id := range candidates {
		scores[id] = Cosine(source, embeddings[id])
	}
	return scores
}

// Jaccard returns |N(a) ∩ N(b)| / |N(a) ∪ N(b)| over the undirected
// view, 0.0 when the union is empty or either node is absent.
func Jaccard(u *graph.Undirected, a, b string) float64 {
	na := u.Neighbors(a)
	nb := u.Neighbors(b)
	if len(na) == 0 || len(nb) == 0 {
		return 0.0
	}
	small, large := na, nb
	if len(nb) < len(na) {
		small, large = nb, na
	}
	inter := 0
	for id := range small {
		if _, ok := large[id]; ok {
			inter++
		}
	}
	union := len(na) + len(nb) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

// AdamicAdar returns the Adamic-Adar index: the sum over common
// neighbors z of 1/log(degree(z)). Common neighbors with degree <= 1
// contribute nothing (log would be degenerate).
func AdamicAdar(u *graph.Undirected, a, b string) float64 {
	na := u.Neighbors(a)
	nb := u.Neighbors(b)
	if len(na) == 0 || len(nb) == 0 {
		return 0.0
	}
	small, large := na, nb
	if len(nb) < len(na) {
		small, large = nb, na
	}
	var sum float64
	for z := range small {
		if _, ok := large[z]; !ok {
			continue
		}
		d := u.Degree(z)
		if d <= 1 {
			continue
		}
		sum += 1 / math.Log(float64(d))
	}
	return sum
}

// Method selects the topological heuristic.
type Method string

const (
	MethodJaccard    Method = "jaccard"
	MethodAdamicAdar Method = "adamic_adar"
)

// HeuristicScores computes the chosen topological score between the
// source and each candidate. Unknown methods fall back to Jaccard.
func HeuristicScores(u *graph.Undirected, sourceID string, candidates []string, method Method) map[string]float64 {
	scores := make(map[string]float64, len(candidates))
	for _, id := range candidates {
		switch method {
		case MethodAdamicAdar:
			scores[id] = AdamicAdar(u, sourceID, id)
		default:
			scores[id] = Jaccard(u, sourceID, id)
		}
	}
	return scores
}
