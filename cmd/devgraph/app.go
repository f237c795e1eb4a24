package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devintel/devgraph/internal/analytics"
	"github.com/devintel/devgraph/internal/cache"
	"github.com/devintel/devgraph/internal/config"
	"github.com/devintel/devgraph/internal/embedding"
	"github.com/devintel/devgraph/internal/ingest"
	"github.com/devintel/devgraph/internal/llm"
	"github.com/devintel/devgraph/internal/recommend"
	"github.com/devintel/devgraph/internal/search"
	"github.com/devintel/devgraph/internal/store"
)

// app bundles the wired service graph so commands can share setup and
// teardown.
type app struct {
	store     store.Store
	manifests *embedding.ManifestStore
	embedding *embedding.Cache
	responses *cache.ResponseCache
	service   *recommend.Service
	enricher  *ingest.Enricher
	llm       *llm.Client
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	manifests, err := embedding.OpenManifestStore(cfg.Embedding.ManifestPath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open embedding manifest: %w", err)
	}

	llmClient, err := llm.NewClient(ctx, llm.Options{
		Provider: llm.Provider(cfg.LLM.Provider),
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		EmbModel: cfg.LLM.EmbeddingModel,
	}, log)
	if err != nil {
		manifests.Close()
		st.Close()
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	params := embedding.DefaultParams()
	params.Dimensions = cfg.Embedding.Dimensions
	params.WalkLength = cfg.Embedding.WalkLength
	params.NumWalks = cfg.Embedding.NumWalks
	params.Window = cfg.Embedding.Window
	provider := embedding.NewNode2Vec(params, log)
	embCache := embedding.NewCache(st, provider, manifests, cfg.Embedding.Dimensions, embedding.CacheOptions{
		CoverageThreshold: cfg.Embedding.CoverageThreshold,
	}, log)

	var responses *cache.ResponseCache
	if cfg.Cache.RedisURL != "" {
		responses, err = cache.NewResponseCache(ctx, cfg.Cache.RedisURL, "", cfg.Cache.TTL)
		if err != nil {
			// recommendations still work without the shared cache
			log.Warn("redis unavailable, response caching disabled", "error", err)
			responses = nil
		}
	}

	snapshots := cache.NewSnapshotCache(st, embCache, analytics.NewAnalyzer(log), log)

	var searcher search.Searcher
	if cfg.GitHub.Token != "" {
		searcher = search.NewGitHubSearcher(cfg.GitHub.Token, log)
	}

	var embedder llm.Embedder
	if llmClient.Enabled() {
		embedder = llmClient
	}
	ranker := recommend.NewRanker(embedder, log)
	fallback := recommend.NewFallback(searcher, log)
	service := recommend.NewService(snapshots, ranker, fallback, responses, log)

	gh := ingest.NewGitHubClient(cfg.GitHub.Token, cfg.GitHub.RateLimit)
	var so ingest.SOAPI
	if cfg.StackOverflow.Enabled {
		so = ingest.NewSOClient(cfg.StackOverflow.BaseURL, log)
	}
	var analyzer ingest.ProfileAnalyzer
	if llmClient.Enabled() {
		analyzer = llmClient
	}
	enricher := ingest.NewEnricher(st, gh, so, analyzer, log)

	return &app{
		store:     st,
		manifests: manifests,
		embedding: embCache,
		responses: responses,
		service:   service,
		enricher:  enricher,
		llm:       llmClient,
	}, nil
}

func (a *app) Close() {
	if a.responses != nil {
		a.responses.Close()
	}
	a.manifests.Close()
	a.store.Close()
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return store.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
	case "sqlite":
		return store.NewSQLiteStore(cfg.Storage.LocalPath, logger)
	case "neo4j":
		return store.NewNeo4jStore(ctx, cfg.Storage.Neo4jURI, cfg.Storage.Neo4jUser,
			cfg.Storage.Neo4jPassword, cfg.Storage.Neo4jDatabase, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}
