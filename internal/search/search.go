// Package search provides the external repository search used when the
// graph cannot produce recommendations for a node.
package search

import (
	"context"
	"log/slog"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	apperrors "github.com/devintel/devgraph/internal/errors"
)

// RepoResult is one external search hit before ranking.
type RepoResult struct {
	FullName    string
	Description string
	Language    string
	HTMLURL     string
	Stars       int
}

// Searcher finds repositories matching a query string.
type Searcher interface {
	SearchRepositories(ctx context.Context, query string, limit int) ([]RepoResult, error)
}

// GitHubSearcher implements Searcher against the GitHub search API.
type GitHubSearcher struct {
	client      *github.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewGitHubSearcher creates a searcher. The search API allows 30
// requests per minute for authenticated clients, so the limiter is
// deliberately tighter than the core API one.
func NewGitHubSearcher(token string, logger *slog.Logger) *GitHubSearcher {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHubSearcher{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Limit(0.5), 1),
		logger:      logger.With("component", "github_search"),
	}
}

// SearchRepositories runs one search query sorted by stars.
func (s *GitHubSearcher) SearchRepositories(ctx context.Context, query string, limit int) ([]RepoResult, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, apperrors.ExternalSearch(err)
	}

	opts := &github.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: limit},
	}
	result, _, err := s.client.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, apperrors.ExternalSearch(err)
	}

	hits := make([]RepoResult, 0, len(result.Repositories))
	for _, repo := range result.Repositories {
		hits = append(hits, RepoResult{
			FullName:    repo.GetFullName(),
			Description: repo.GetDescription(),
			Language:    repo.GetLanguage(),
			HTMLURL:     repo.GetHTMLURL(),
			Stars:       repo.GetStargazersCount(),
		})
	}

	s.logger.Debug("external search complete", "query", query, "hits", len(hits))
	return hits, nil
}
