package models

import (
	"fmt"
	"strings"
)

// NodeType identifies the kind of entity a graph node represents.
type NodeType string

const (
	NodeGitHubUser NodeType = "github_user"
	NodeGitHubRepo NodeType = "github_repo"
	NodeSOUser     NodeType = "so_user"
	NodeSOTag      NodeType = "stackoverflow_tag"
)

// Relation labels a directed edge between two nodes.
type Relation string

const (
	RelContributedTo Relation = "CONTRIBUTED_TO"
	RelSameAs        Relation = "SAME_AS"
	RelHasTag        Relation = "HAS_TAG"
)

// LanguageCount pairs a programming language with how many repositories
// of a user use it as their primary language.
type LanguageCount struct {
	Language string `json:"language"`
	Count    int    `json:"count"`
}

// Attrs carries the semantic attributes of a node. Attribute presence is
// heterogeneous by node type; every field is optional. Fields that only
// exist for one upstream source land in Extra.
type Attrs struct {
	Name         string          `json:"name,omitempty"`
	FullName     string          `json:"full_name,omitempty"`
	Description  string          `json:"description,omitempty"`
	Language     string          `json:"language,omitempty"`
	Bio          string          `json:"bio,omitempty"`
	HTMLURL      string          `json:"html_url,omitempty"`
	Stars        int             `json:"stargazers_count,omitempty"`
	Forks        int             `json:"forks_count,omitempty"`
	Followers    int             `json:"followers,omitempty"`
	Reputation   int             `json:"reputation,omitempty"`
	Topics       []string        `json:"topics,omitempty"`
	TopLanguages []LanguageCount `json:"top_repo_languages,omitempty"`
	AIRole       string          `json:"ai_role,omitempty"`
	AISummary    string          `json:"ai_summary,omitempty"`
	Corpus       string          `json:"corpus,omitempty"`
	Extra        map[string]any  `json:"extra,omitempty"`
}

// Node is a vertex in the knowledge graph. ID is the canonical identity
// (see the *NodeID helpers); Embedding, when present, was produced by the
// most recent embedding run and may be absent or stale.
type Node struct {
	ID        string    `json:"id"`
	Type      NodeType  `json:"type"`
	Attrs     Attrs     `json:"attrs"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// Label returns the display name for a node, stripping the canonical id
// prefix when no friendlier attribute exists.
func (n *Node) Label() string {
	if n.Attrs.Name != "" {
		return n.Attrs.Name
	}
	if n.Attrs.FullName != "" {
		return n.Attrs.FullName
	}
	label := n.ID
	for _, prefix := range []string{"github:", "repo:", "so:", "tag:", "user:"} {
		if strings.HasPrefix(label, prefix) {
			return strings.TrimPrefix(label, prefix)
		}
	}
	return label
}

// EdgeAttrs carries optional per-edge metadata, e.g. answer counts and
// scores on HAS_TAG edges.
type EdgeAttrs struct {
	Count  int     `json:"count,omitempty"`
	Score  int     `json:"score,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// Edge is a directed, relation-labelled connection between two nodes.
// Multiple edges of different relations may exist between the same pair.
type Edge struct {
	Src      string    `json:"src"`
	Dst      string    `json:"dst"`
	Relation Relation  `json:"relation"`
	Attrs    EdgeAttrs `json:"attrs"`
}

// Canonical node id helpers. Ids are deterministic functions of external
// identity so that re-ingesting the same entity upserts instead of
// duplicating.

func UserNodeID(login string) string {
	return "github:" + strings.ToLower(login)
}

func RepoNodeID(fullName string) string {
	return "repo:" + strings.ToLower(fullName)
}

func SOUserNodeID(userID int) string {
	return fmt.Sprintf("so:%d", userID)
}

func TagNodeID(tag string) string {
	return "tag:" + strings.ToLower(tag)
}

// Features is the per-candidate scoring breakdown surfaced for
// explainability.
type Features struct {
	Cosine    float64 `json:"cosine_similarity"`
	Heuristic float64 `json:"heuristic_score"`
}

// Recommendation source markers.
const (
	SourceGraph    = "graph"
	SourceFallback = "external_fallback"
)

// Recommendation is one ranked suggestion for a source node.
type Recommendation struct {
	NodeID      string   `json:"node_id"`
	Label       string   `json:"label"`
	Type        NodeType `json:"type"`
	Score       float64  `json:"score"`
	Features    Features `json:"features"`
	HTMLURL     string   `json:"html_url,omitempty"`
	Language    string   `json:"language,omitempty"`
	Description string   `json:"description,omitempty"`
	Stars       int      `json:"stargazers_count,omitempty"`
	Source      string   `json:"source"`
}

// NodeMetrics summarizes a node's position in the graph.
type NodeMetrics struct {
	NodeID      string  `json:"node_id"`
	Degree      float64 `json:"degree_centrality"`
	Betweenness float64 `json:"betweenness_centrality"`
	Closeness   float64 `json:"closeness_centrality"`
	Influence   float64 `json:"influence_score"`
	CommunityID int     `json:"community_id"`
}

// RolePrediction is the role-classification result for a user node.
type RolePrediction struct {
	UserID        string             `json:"user_id"`
	PredictedRole string             `json:"predicted_role"`
	Probabilities map[string]float64 `json:"probabilities"`
	AIRole        string             `json:"ai_role,omitempty"`
}

// Profile is the enriched developer profile returned by the ingestion
// path, combining GitHub activity and optional StackOverflow signals.
type Profile struct {
	NodeIDs          map[string]string `json:"node_ids"`
	GitHubStats      map[string]any    `json:"github_stats"`
	SOStats          map[string]any    `json:"so_stats,omitempty"`
	TopRepoLanguages []LanguageCount   `json:"top_repo_languages"`
	TopSOTags        []TagScore        `json:"top_so_tags,omitempty"`
	TopTopics        []string          `json:"top_topics"`
	ActivityCounts   ActivityCounts    `json:"activity_counts"`
	AIRole           string            `json:"ai_role,omitempty"`
	AISummary        string            `json:"ai_summary,omitempty"`
	Errors           []string          `json:"errors"`
}

// TagScore pairs a StackOverflow tag with the user's aggregate answer score.
type TagScore struct {
	Tag   string `json:"tag"`
	Score int    `json:"score"`
}

// ActivityCounts aggregates repository activity for a profile.
type ActivityCounts struct {
	RepoCount  int `json:"repo_count"`
	TotalStars int `json:"total_stars"`
	TotalForks int `json:"total_forks"`
}
