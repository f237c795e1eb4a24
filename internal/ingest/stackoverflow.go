package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const stackExchangeBaseURL = "https://api.stackexchange.com/2.3"

// SOUser is a StackOverflow user profile.
type SOUser struct {
	UserID       int            `json:"user_id"`
	AccountID    int            `json:"account_id"`
	DisplayName  string         `json:"display_name"`
	Reputation   int            `json:"reputation"`
	Location     string         `json:"location"`
	Link         string         `json:"link"`
	CreationDate int64          `json:"creation_date"`
	BadgeCounts  map[string]int `json:"badge_counts"`
}

// SOTag is one entry of a user's top answer tags.
type SOTag struct {
	TagName     string `json:"tag_name"`
	AnswerCount int    `json:"answer_count"`
	AnswerScore int    `json:"answer_score"`
}

// SOAPI is the slice of StackOverflow needed for enrichment.
type SOAPI interface {
	FetchUser(ctx context.Context, userID int) (*SOUser, error)
	FetchTopTags(ctx context.Context, userID int) ([]SOTag, error)
}

// SOClient talks to the StackExchange API. There is no maintained Go
// SDK for it, so this is a thin hand-rolled client honoring the API's
// backoff protocol.
type SOClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewSOClient creates a client. baseURL overrides the API host, which
// tests use to point at a local server.
func NewSOClient(baseURL string, logger *slog.Logger) *SOClient {
	if baseURL == "" {
		baseURL = stackExchangeBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SOClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		logger:     logger.With("component", "stackoverflow"),
	}
}

type soEnvelope struct {
	Items   json.RawMessage `json:"items"`
	Backoff int             `json:"backoff"`
	HasMore bool            `json:"has_more"`
}

// get performs one API call, retrying once after the server-directed
// backoff on 429.
func (c *SOClient) get(ctx context.Context, path string, out any) error {
	u := c.baseURL + path
	sep := "?"
	if hasQuery(u) {
		sep = "&"
	}
	u += sep + "site=stackoverflow"

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("stackexchange request: %w", err)
		}

		var envelope soEnvelope
		decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			wait := time.Duration(envelope.Backoff+1) * time.Second
			c.logger.Warn("stackexchange rate limited, backing off", "wait", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("stackexchange status %d for %s", resp.StatusCode, path)
		}
		if decodeErr != nil {
			return fmt.Errorf("decode stackexchange response: %w", decodeErr)
		}
		if len(envelope.Items) == 0 {
			return nil
		}
		return json.Unmarshal(envelope.Items, out)
	}
}

func hasQuery(u string) bool {
	parsed, err := url.Parse(u)
	return err == nil && parsed.RawQuery != ""
}

// FetchUser gets a user profile, or nil when the id is unknown.
func (c *SOClient) FetchUser(ctx context.Context, userID int) (*SOUser, error) {
	var items []SOUser
	if err := c.get(ctx, "/users/"+strconv.Itoa(userID), &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// FetchTopTags gets a user's top answer tags.
func (c *SOClient) FetchTopTags(ctx context.Context, userID int) ([]SOTag, error) {
	var items []SOTag
	if err := c.get(ctx, "/users/"+strconv.Itoa(userID)+"/top-tags", &items); err != nil {
		return nil, err
	}
	return items, nil
}
