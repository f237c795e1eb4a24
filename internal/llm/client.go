// Package llm provides the AI analysis layer: profile role and summary
// generation, plus text embeddings for semantic reranking. Providers
// are OpenAI-compatible endpoints (Groq included) and Gemini.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/sashabaranov/go-openai"

	"github.com/devintel/devgraph/internal/models"
)

// Provider identifies the backing API.
type Provider string

const (
	ProviderGroq   Provider = "groq"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderNone   Provider = "none"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// ErrDisabled is returned when no provider is configured or the quota
// latch has tripped.
var ErrDisabled = fmt.Errorf("llm analysis disabled")

// Analyzer produces a role and summary for a developer profile.
type Analyzer interface {
	AnalyzeProfile(ctx context.Context, profile *models.Profile, corpus string) (role, summary string, err error)
}

// Embedder turns texts into vectors for semantic reranking.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}

// Options configures a Client.
type Options struct {
	Provider Provider
	APIKey   string
	BaseURL  string // overrides the provider default, used by tests
	Model    string
	EmbModel string
}

// Client is the multi-provider implementation of Analyzer and Embedder.
// A quota-exhaustion latch stops it from hammering an exhausted API:
// once a quota error is seen, calls fail fast with ErrDisabled until a
// later call succeeds at the provider.
type Client struct {
	provider     Provider
	openaiClient *openai.Client
	geminiClient *GeminiClient
	model        string
	embModel     string
	logger       *slog.Logger

	quotaExhausted atomic.Bool
}

// NewClient builds a client for the configured provider. An empty key
// yields a disabled client whose calls return ErrDisabled, so callers
// can wire it unconditionally.
func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		provider: opts.Provider,
		model:    opts.Model,
		embModel: opts.EmbModel,
		logger:   logger.With("component", "llm"),
	}
	if c.embModel == "" {
		c.embModel = string(openai.SmallEmbedding3)
	}

	if opts.APIKey == "" || opts.Provider == ProviderNone || opts.Provider == "" {
		c.provider = ProviderNone
		c.logger.Info("no llm provider configured, analysis disabled")
		return c, nil
	}

	switch opts.Provider {
	case ProviderGroq, ProviderOpenAI:
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.Provider == ProviderGroq {
			cfg.BaseURL = groqBaseURL
		}
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		if c.model == "" {
			if opts.Provider == ProviderGroq {
				c.model = "llama-3.3-70b-versatile"
			} else {
				c.model = openai.GPT4oMini
			}
		}
		c.openaiClient = openai.NewClientWithConfig(cfg)
	case ProviderGemini:
		gemini, err := NewGeminiClient(ctx, opts.APIKey, c.model)
		if err != nil {
			return nil, err
		}
		c.geminiClient = gemini
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}

	c.logger.Info("llm client initialized", "provider", c.provider, "model", c.model)
	return c, nil
}

// Enabled reports whether calls can be attempted at all.
func (c *Client) Enabled() bool {
	return c.provider != ProviderNone
}

const analyzeSystemPrompt = "You are an expert technical recruiter. Always respond with valid JSON only."

const analyzePromptTemplate = `Analyze the following text corpus comprising a developer's GitHub bio,
repository READMEs and activity metadata.

1. Identify the developer's specific professional role from their actual
   work (e.g. "ML Engineer", "Frontend Developer", "Backend Developer",
   "Full Stack Developer", "DevOps Engineer", "Mobile Developer",
   "Security Engineer", "Game Developer", or a more specific title).
   Base the role on the languages, project types and frameworks present,
   not on assumptions.

2. Write a professional summary of 5-6 complete sentences (roughly
   100-150 words) covering expertise, key technologies, notable projects
   and community involvement.

Return ONLY a JSON object: {"role": "...", "summary": "..."}

Text corpus:
%s`

const corpusLimit = 10000

type analyzeResult struct {
	Role    string `json:"role"`
	Summary string `json:"summary"`
}

// AnalyzeProfile asks the model for a role and summary. Languages and
// tags from the profile are appended to the corpus so the model sees
// structured signals alongside prose.
func (c *Client) AnalyzeProfile(ctx context.Context, profile *models.Profile, corpus string) (string, string, error) {
	if c.provider == ProviderNone {
		return "", "", ErrDisabled
	}
	if c.quotaExhausted.Load() {
		return "", "", fmt.Errorf("%w: quota exhausted", ErrDisabled)
	}

	var sb strings.Builder
	sb.WriteString(corpus)
	if len(profile.TopRepoLanguages) > 0 {
		sb.WriteString("\n\nPrimary languages:")
		for _, lc := range profile.TopRepoLanguages {
			fmt.Fprintf(&sb, " %s(%d)", lc.Language, lc.Count)
		}
	}
	if len(profile.TopSOTags) > 0 {
		sb.WriteString("\nStackOverflow tags:")
		for _, ts := range profile.TopSOTags {
			fmt.Fprintf(&sb, " %s", ts.Tag)
		}
	}
	text := sb.String()
	if len(text) > corpusLimit {
		text = text[:corpusLimit]
	}

	raw, err := c.complete(ctx, analyzeSystemPrompt, fmt.Sprintf(analyzePromptTemplate, text))
	if err != nil {
		if isQuotaError(err) {
			c.quotaExhausted.Store(true)
			c.logger.Warn("llm quota exhausted, disabling analysis until next success")
		}
		return "", "", err
	}
	c.quotaExhausted.Store(false)

	var result analyzeResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &result); err != nil {
		// some models wrap or mangle the JSON; surface the text as the
		// summary and let the caller's rule-based classifier supply the role
		c.logger.Warn("llm returned invalid json, using raw text as summary")
		return "", strings.TrimSpace(raw), nil
	}
	return result.Role, result.Summary, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if c.geminiClient != nil {
		return c.geminiClient.Complete(ctx, system, user)
	}

	resp, err := c.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// EmbedTexts computes embeddings through the OpenAI-compatible API.
// Gemini-backed clients don't support this path.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if c.provider == ProviderNone || c.openaiClient == nil {
		return nil, ErrDisabled
	}
	if c.quotaExhausted.Load() {
		return nil, fmt.Errorf("%w: quota exhausted", ErrDisabled)
	}

	resp, err := c.openaiClient.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embModel),
		Input: texts,
	})
	if err != nil {
		if isQuotaError(err) {
			c.quotaExhausted.Store(true)
		}
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	out := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float64, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float64(v)
		}
		out[i] = vec
	}
	return out, nil
}

func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "exceeded") ||
		strings.Contains(msg, "resource_exhausted")
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
