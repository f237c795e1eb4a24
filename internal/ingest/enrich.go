package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/devintel/devgraph/internal/errors"
	"github.com/devintel/devgraph/internal/models"
	"github.com/devintel/devgraph/internal/store"
)

const (
	// READMEs are only pulled for repositories popular enough to have a
	// meaningful one, and only a handful per user.
	readmeStarFloor  = 10
	readmeMaxPerUser = 5
	readmeExcerptLen = 1000

	topLanguages = 10
	topTags      = 10
	topTopics    = 10

	readmeWorkers = 4
)

// ProfileAnalyzer summarizes a profile corpus into a role and a short
// summary. Implementations live in the llm package; a nil analyzer
// disables the step.
type ProfileAnalyzer interface {
	AnalyzeProfile(ctx context.Context, profile *models.Profile, corpus string) (role, summary string, err error)
}

// Enricher builds merged developer profiles and writes the resulting
// nodes and edges into the store.
type Enricher struct {
	store    store.Store
	github   GitHubAPI
	so       SOAPI
	analyzer ProfileAnalyzer
	logger   *slog.Logger
}

// NewEnricher wires an enricher. so and analyzer may be nil to disable
// the StackOverflow and LLM stages.
func NewEnricher(s store.Store, gh GitHubAPI, so SOAPI, analyzer ProfileAnalyzer, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		store:    s,
		github:   gh,
		so:       so,
		analyzer: analyzer,
		logger:   logger.With("component", "enrich"),
	}
}

// EnrichProfile fetches a developer's GitHub activity (and
// StackOverflow activity when soUserID is non-zero), persists the graph
// entities and returns the merged profile. Partial failures past the
// initial user fetch degrade the profile instead of failing it; they
// are reported in profile.Errors.
func (e *Enricher) EnrichProfile(ctx context.Context, login string, soUserID int) (*models.Profile, error) {
	profile := &models.Profile{
		NodeIDs: make(map[string]string),
		Errors:  []string{},
	}

	user, err := e.github.FetchUser(ctx, login)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindExternalSearch, "fetch github user %s", login)
	}

	userID := models.UserNodeID(login)
	profile.NodeIDs["github_user_id"] = userID
	profile.GitHubStats = map[string]any{
		"login":        user.Login,
		"name":         user.Name,
		"bio":          user.Bio,
		"company":      user.Company,
		"location":     user.Location,
		"email":        user.Email,
		"followers":    user.Followers,
		"following":    user.Following,
		"public_repos": user.PublicRepos,
		"public_gists": user.PublicGists,
	}

	userNode := &models.Node{
		ID:   userID,
		Type: models.NodeGitHubUser,
		Attrs: models.Attrs{
			Name:      user.Name,
			Bio:       user.Bio,
			HTMLURL:   user.HTMLURL,
			Followers: user.Followers,
		},
	}

	repos, err := e.github.FetchRepos(ctx, login)
	if err != nil {
		profile.Errors = append(profile.Errors, fmt.Sprintf("fetch repos: %v", err))
	}

	langCounts := make(map[string]int)
	topicCounts := make(map[string]int)
	for _, repo := range repos {
		if repo.FullName == "" {
			continue
		}
		repoID := models.RepoNodeID(repo.FullName)
		if err := e.store.UpsertNode(ctx, &models.Node{
			ID:   repoID,
			Type: models.NodeGitHubRepo,
			Attrs: models.Attrs{
				Name:        repo.Name,
				FullName:    repo.FullName,
				Description: repo.Description,
				Language:    repo.Language,
				HTMLURL:     repo.HTMLURL,
				Stars:       repo.Stars,
				Forks:       repo.Forks,
				Topics:      repo.Topics,
			},
		}); err != nil {
			profile.Errors = append(profile.Errors, fmt.Sprintf("save repo %s: %v", repo.FullName, err))
			continue
		}
		if err := e.store.InsertEdge(ctx, &models.Edge{
			Src: userID, Dst: repoID, Relation: models.RelContributedTo,
		}); err != nil {
			profile.Errors = append(profile.Errors, fmt.Sprintf("link repo %s: %v", repo.FullName, err))
		}

		if repo.Language != "" {
			langCounts[repo.Language]++
		}
		for _, topic := range repo.Topics {
			topicCounts[topic]++
		}
		profile.ActivityCounts.TotalStars += repo.Stars
		profile.ActivityCounts.TotalForks += repo.Forks
	}
	profile.ActivityCounts.RepoCount = len(repos)
	profile.TopRepoLanguages = rankLanguages(langCounts, topLanguages)
	profile.TopTopics = rankByCount(topicCounts, topTopics)

	corpus := e.buildCorpus(ctx, user.Bio, repos, profile)

	userNode.Attrs.TopLanguages = profile.TopRepoLanguages
	userNode.Attrs.Topics = profile.TopTopics
	userNode.Attrs.Corpus = corpus

	if soUserID != 0 && e.so != nil {
		e.enrichStackOverflow(ctx, soUserID, userID, profile)
	}

	if e.analyzer != nil && corpus != "" {
		role, summary, err := e.analyzer.AnalyzeProfile(ctx, profile, corpus)
		if err != nil {
			profile.Errors = append(profile.Errors, fmt.Sprintf("profile analysis: %v", err))
		} else {
			profile.AIRole = role
			profile.AISummary = summary
			userNode.Attrs.AIRole = role
			userNode.Attrs.AISummary = summary
		}
	}

	if err := e.store.UpsertNode(ctx, userNode); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	e.logger.Info("profile enriched",
		"login", login,
		"repos", profile.ActivityCounts.RepoCount,
		"errors", len(profile.Errors))
	return profile, nil
}

// buildCorpus concatenates the bio with excerpts of the most popular
// repositories' READMEs, fetched concurrently.
func (e *Enricher) buildCorpus(ctx context.Context, bio string, repos []RepoInfo, profile *models.Profile) string {
	popular := make([]RepoInfo, 0, len(repos))
	for _, r := range repos {
		if r.Stars > readmeStarFloor {
			popular = append(popular, r)
		}
	}
	sort.Slice(popular, func(i, j int) bool {
		if popular[i].Stars != popular[j].Stars {
			return popular[i].Stars > popular[j].Stars
		}
		return popular[i].FullName < popular[j].FullName
	})
	if len(popular) > readmeMaxPerUser {
		popular = popular[:readmeMaxPerUser]
	}

	excerpts := make([]string, len(popular))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(readmeWorkers)
	for i, repo := range popular {
		g.Go(func() error {
			owner, name, ok := strings.Cut(repo.FullName, "/")
			if !ok {
				return nil
			}
			readme, err := e.github.FetchReadme(ctx, owner, name)
			if err != nil {
				// one flaky README must not cancel the rest; record it
				// and keep whatever excerpts the other fetches produce
				mu.Lock()
				profile.Errors = append(profile.Errors, fmt.Sprintf("readme %s: %v", repo.FullName, err))
				mu.Unlock()
				return nil
			}
			if len(readme) > readmeExcerptLen {
				readme = readme[:readmeExcerptLen]
			}
			excerpts[i] = readme
			return nil
		})
	}
	g.Wait()

	parts := make([]string, 0, len(excerpts)+1)
	if bio != "" {
		parts = append(parts, bio)
	}
	for _, ex := range excerpts {
		if ex != "" {
			parts = append(parts, ex)
		}
	}
	return strings.Join(parts, " ")
}

// enrichStackOverflow adds the StackOverflow identity, links it to the
// GitHub identity in both directions and records the user's top tags.
func (e *Enricher) enrichStackOverflow(ctx context.Context, soUserID int, githubNodeID string, profile *models.Profile) {
	soUser, err := e.so.FetchUser(ctx, soUserID)
	if err != nil || soUser == nil {
		profile.Errors = append(profile.Errors, fmt.Sprintf("fetch stackoverflow user %d: %v", soUserID, err))
		return
	}

	soNodeID := models.SOUserNodeID(soUserID)
	profile.NodeIDs["so_user_id"] = soNodeID
	profile.SOStats = map[string]any{
		"display_name": soUser.DisplayName,
		"reputation":   soUser.Reputation,
		"badge_counts": soUser.BadgeCounts,
		"account_id":   soUser.AccountID,
		"location":     soUser.Location,
	}

	if err := e.store.UpsertNode(ctx, &models.Node{
		ID:   soNodeID,
		Type: models.NodeSOUser,
		Attrs: models.Attrs{
			Name:       soUser.DisplayName,
			HTMLURL:    soUser.Link,
			Reputation: soUser.Reputation,
		},
	}); err != nil {
		profile.Errors = append(profile.Errors, fmt.Sprintf("save stackoverflow user: %v", err))
		return
	}

	// identity link is symmetric, store both directions
	for _, pair := range [][2]string{{githubNodeID, soNodeID}, {soNodeID, githubNodeID}} {
		if err := e.store.InsertEdge(ctx, &models.Edge{
			Src: pair[0], Dst: pair[1], Relation: models.RelSameAs,
		}); err != nil {
			profile.Errors = append(profile.Errors, fmt.Sprintf("link identities: %v", err))
		}
	}

	tags, err := e.so.FetchTopTags(ctx, soUserID)
	if err != nil {
		profile.Errors = append(profile.Errors, fmt.Sprintf("fetch stackoverflow tags: %v", err))
		return
	}

	scores := make([]models.TagScore, 0, len(tags))
	for _, tag := range tags {
		if tag.TagName == "" {
			continue
		}
		tagID := models.TagNodeID(tag.TagName)
		if err := e.store.UpsertNode(ctx, &models.Node{
			ID:    tagID,
			Type:  models.NodeSOTag,
			Attrs: models.Attrs{Name: tag.TagName},
		}); err != nil {
			profile.Errors = append(profile.Errors, fmt.Sprintf("save tag %s: %v", tag.TagName, err))
			continue
		}
		if err := e.store.InsertEdge(ctx, &models.Edge{
			Src: soNodeID, Dst: tagID, Relation: models.RelHasTag,
			Attrs: models.EdgeAttrs{Count: tag.AnswerCount, Score: tag.AnswerScore},
		}); err != nil {
			profile.Errors = append(profile.Errors, fmt.Sprintf("link tag %s: %v", tag.TagName, err))
		}
		scores = append(scores, models.TagScore{Tag: tag.TagName, Score: tag.AnswerScore})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Tag < scores[j].Tag
	})
	if len(scores) > topTags {
		scores = scores[:topTags]
	}
	profile.TopSOTags = scores
}

func rankLanguages(counts map[string]int, limit int) []models.LanguageCount {
	ranked := make([]models.LanguageCount, 0, len(counts))
	for lang, count := range counts {
		ranked = append(ranked, models.LanguageCount{Language: lang, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Language < ranked[j].Language
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func rankByCount(counts map[string]int, limit int) []string {
	type entry struct {
		key   string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for k, c := range counts {
		entries = append(entries, entry{k, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	return keys
}
