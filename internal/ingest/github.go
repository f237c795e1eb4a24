// Package ingest fetches developer activity from GitHub and
// StackOverflow and writes it into the knowledge graph.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"
)

// UserInfo is the GitHub profile data the enricher consumes.
type UserInfo struct {
	Login       string
	Name        string
	Bio         string
	Company     string
	Location    string
	Email       string
	HTMLURL     string
	Followers   int
	Following   int
	PublicRepos int
	PublicGists int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RepoInfo is the repository data the enricher consumes.
type RepoInfo struct {
	FullName    string
	Name        string
	Description string
	Language    string
	HTMLURL     string
	Stars       int
	Forks       int
	Topics      []string
}

// GitHubAPI is the slice of GitHub needed for enrichment.
type GitHubAPI interface {
	FetchUser(ctx context.Context, login string) (*UserInfo, error)
	FetchRepos(ctx context.Context, login string) ([]RepoInfo, error)
	FetchReadme(ctx context.Context, owner, repo string) (string, error)
}

// GitHubClient wraps the GitHub API client with rate limiting.
type GitHubClient struct {
	client      *github.Client
	rateLimiter *rate.Limiter
}

// NewGitHubClient creates a client. An empty token means anonymous
// access with its much lower quota.
func NewGitHubClient(token string, rateLimit int) *GitHubClient {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if rateLimit <= 0 {
		rateLimit = 10
	}
	return &GitHubClient{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
	}
}

// FetchUser gets user profile metadata.
func (c *GitHubClient) FetchUser(ctx context.Context, login string) (*UserInfo, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	user, _, err := c.client.Users.Get(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", login, err)
	}

	return &UserInfo{
		Login:       user.GetLogin(),
		Name:        user.GetName(),
		Bio:         user.GetBio(),
		Company:     user.GetCompany(),
		Location:    user.GetLocation(),
		Email:       user.GetEmail(),
		HTMLURL:     user.GetHTMLURL(),
		Followers:   user.GetFollowers(),
		Following:   user.GetFollowing(),
		PublicRepos: user.GetPublicRepos(),
		PublicGists: user.GetPublicGists(),
		CreatedAt:   user.GetCreatedAt().Time,
		UpdatedAt:   user.GetUpdatedAt().Time,
	}, nil
}

// FetchRepos lists every public repository of a user, following
// pagination to the end.
func (c *GitHubClient) FetchRepos(ctx context.Context, login string) ([]RepoInfo, error) {
	opts := &github.RepositoryListByUserOptions{
		Type:        "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var all []RepoInfo
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		repos, resp, err := c.client.Repositories.ListByUser(ctx, login, opts)
		if err != nil {
			return nil, fmt.Errorf("fetch repos for %s: %w", login, err)
		}

		for _, repo := range repos {
			all = append(all, RepoInfo{
				FullName:    repo.GetFullName(),
				Name:        repo.GetName(),
				Description: repo.GetDescription(),
				Language:    repo.GetLanguage(),
				HTMLURL:     repo.GetHTMLURL(),
				Stars:       repo.GetStargazersCount(),
				Forks:       repo.GetForksCount(),
				Topics:      repo.Topics,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// FetchReadme returns the decoded README, or empty when the repository
// has none.
func (c *GitHubClient) FetchReadme(ctx context.Context, owner, repo string) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	readme, resp, err := c.client.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return "", nil
		}
		return "", fmt.Errorf("fetch readme %s/%s: %w", owner, repo, err)
	}

	content, err := readme.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode readme %s/%s: %w", owner, repo, err)
	}
	return content, nil
}
