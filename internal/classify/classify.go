// Package classify predicts a developer's role from their text corpus
// using keyword frequency analysis, optionally blended with a role the
// AI analysis stage produced earlier.
package classify

import (
	_ "embed"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devintel/devgraph/internal/models"
)

//go:embed roles.yaml
var rolesYAML []byte

// aiWeight and ruleWeight blend a cached AI-assigned role with the
// keyword scores. The AI role dominates when present because it saw the
// full corpus with more context.
const (
	aiWeight   = 0.6
	ruleWeight = 0.4
)

var roleKeywords = mustLoadKeywords()

func mustLoadKeywords() map[string][]string {
	var kw map[string][]string
	if err := yaml.Unmarshal(rolesYAML, &kw); err != nil {
		panic("classify: invalid embedded role table: " + err.Error())
	}
	return kw
}

// Roles lists the canonical role names in sorted order.
func Roles() []string {
	roles := make([]string, 0, len(roleKeywords))
	for role := range roleKeywords {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Classify scores a corpus against the keyword tables and returns a
// probability distribution over roles. Longer keyword phrases weigh
// more because they are more specific. An empty result means no
// keyword matched.
func Classify(text string) map[string]float64 {
	if text == "" {
		return map[string]float64{}
	}
	text = strings.ToLower(text)

	scores := make(map[string]float64)
	var total float64
	for role, keys := range roleKeywords {
		for _, key := range keys {
			count := strings.Count(text, key)
			if count == 0 {
				continue
			}
			weight := 1 + float64(len(strings.Fields(key)))*0.5
			scores[role] += float64(count) * weight
			total += float64(count) * weight
		}
	}
	if total == 0 {
		return map[string]float64{}
	}

	for role := range scores {
		scores[role] /= total
	}
	return scores
}

// canonicalRole maps a free-form AI role title onto the canonical role
// set, e.g. "Senior Frontend Engineer" onto "Frontend Developer".
func canonicalRole(aiRole string) (string, bool) {
	lower := strings.ToLower(aiRole)
	if lower == "" {
		return "", false
	}

	markers := map[string][]string{
		"Data Scientist":     {"data scien", "machine learning", "ml engineer", "ml research", "ai "},
		"Frontend Developer": {"frontend", "front-end", "front end", "ui "},
		"Backend Developer":  {"backend", "back-end", "back end", "server"},
		"DevOps Engineer":    {"devops", "sre", "site reliability", "infrastructure", "platform engineer"},
		"Mobile Developer":   {"mobile", "ios", "android"},
		"Security Engineer":  {"security", "infosec"},
		"Game Developer":     {"game"},
	}

	for _, role := range Roles() {
		if strings.Contains(lower, strings.ToLower(role)) {
			return role, true
		}
		for _, marker := range markers[role] {
			if strings.Contains(lower, marker) {
				return role, true
			}
		}
	}
	return "", false
}

// genericTitles are stored AI roles too vague to carry signal; the
// enrichment path falls back to these when it cannot tell roles apart.
var genericTitles = []string{"developer", "software developer", "software engineer", "engineer", "programmer"}

// genericRole reports whether a title says nothing beyond "writes code".
func genericRole(aiRole string) bool {
	lower := strings.TrimSpace(strings.ToLower(aiRole))
	for _, g := range genericTitles {
		if lower == g {
			return true
		}
	}
	return false
}

// Predict combines keyword classification of the corpus with a
// previously assigned AI role. Either signal alone still yields a
// prediction; with both, the AI role carries more weight. Generic
// stored titles are ignored so they cannot drown out the keyword
// scores. A prediction with nil Probabilities means neither signal was
// available.
func Predict(userID, corpus, aiRole string) *models.RolePrediction {
	rule := Classify(corpus)

	pred := &models.RolePrediction{UserID: userID, AIRole: aiRole}

	aiCanonical, aiMapped := canonicalRole(aiRole)
	if !aiMapped && genericRole(aiRole) {
		aiRole = ""
	}
	switch {
	case len(rule) == 0 && aiRole == "":
		return pred
	case len(rule) == 0:
		role := aiRole
		if aiMapped {
			role = aiCanonical
		}
		pred.PredictedRole = role
		pred.Probabilities = map[string]float64{role: 1}
		return pred
	case aiRole == "":
		pred.Probabilities = rule
	default:
		blended := make(map[string]float64, len(rule)+1)
		for role, p := range rule {
			blended[role] = ruleWeight * p
		}
		if aiMapped {
			blended[aiCanonical] += aiWeight
		} else {
			blended[aiRole] += aiWeight
		}
		pred.Probabilities = blended
	}

	best, bestScore := "", -1.0
	for role, p := range pred.Probabilities {
		if p > bestScore || (p == bestScore && role < best) {
			best, bestScore = role, p
		}
	}
	pred.PredictedRole = best
	return pred
}
