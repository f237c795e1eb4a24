// Package recommend implements candidate selection, scoring and
// ranking of repository recommendations, with an external search
// fallback for nodes the graph cannot serve.
package recommend

import (
	"sort"
	"strings"

	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
)

// MaxCandidates bounds the scoring workload per request.
const MaxCandidates = 500

// Candidate pre-filter weights. These order the pool before the cap is
// applied so profile-relevant repositories survive truncation.
const (
	candLanguageMatch = 10
	candTopicInText   = 5
	candLanguageText  = 3

	profileSignalLimit = 5
)

// Candidates selects and orders the recommendation pool for a source
// node. Only repositories are recommended, never people. The source
// itself and its existing neighbors are excluded; ordering is by
// profile-match score descending with node id as the tie break, so the
// result is deterministic for a fixed graph.
func Candidates(g *graph.Graph, sourceID string, max int) []string {
	source := g.Node(sourceID)
	if source == nil {
		return nil
	}
	if max <= 0 {
		max = MaxCandidates
	}

	exclude := g.NeighborSet(sourceID)
	exclude[sourceID] = struct{}{}

	var pool []string
	for _, n := range g.Nodes() {
		if n.Type != models.NodeGitHubRepo {
			continue
		}
		if _, skip := exclude[n.ID]; skip {
			continue
		}
		pool = append(pool, n.ID)
	}

	langs, topics := profileSignals(source)
	if len(langs) == 0 && len(topics) == 0 {
		if len(pool) > max {
			pool = pool[:max]
		}
		return pool
	}

	type scored struct {
		id    string
		score int
	}
	ranked := make([]scored, len(pool))
	for i, id := range pool {
		ranked[i] = scored{id: id, score: profileMatchScore(g.Node(id), langs, topics)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})

	if len(ranked) > max {
		ranked = ranked[:max]
	}
	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.id
	}
	return out
}

// profileSignals extracts the source's top languages and topics,
// lowercased, capped at profileSignalLimit each.
func profileSignals(source *models.Node) (langs, topics []string) {
	for _, lc := range source.Attrs.TopLanguages {
		if len(langs) == profileSignalLimit {
			break
		}
		if lc.Language != "" {
			langs = append(langs, strings.ToLower(lc.Language))
		}
	}
	// a repo source carries a single primary language instead
	if len(langs) == 0 && source.Attrs.Language != "" {
		langs = append(langs, strings.ToLower(source.Attrs.Language))
	}
	for _, t := range source.Attrs.Topics {
		if len(topics) == profileSignalLimit {
			break
		}
		if t != "" {
			topics = append(topics, strings.ToLower(t))
		}
	}
	return langs, topics
}

func profileMatchScore(cand *models.Node, langs, topics []string) int {
	if cand == nil {
		return 0
	}

	candLang := strings.ToLower(cand.Attrs.Language)
	text := strings.ToLower(cand.Attrs.Description + " " + cand.Label())

	score := 0
	if candLang != "" {
		for _, lang := range langs {
			if strings.Contains(candLang, lang) || strings.Contains(lang, candLang) {
				score += candLanguageMatch
				break
			}
		}
	}
	for _, topic := range topics {
		if strings.Contains(text, topic) {
			score += candTopicInText
		}
	}
	for _, lang := range langs {
		if strings.Contains(text, lang) {
			score += candLanguageText
		}
	}
	return score
}
