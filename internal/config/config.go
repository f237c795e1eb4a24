// Package config loads service configuration from YAML files,
// environment variables and the OS keychain, in that order of
// precedence (environment highest).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	GitHub        GitHubConfig        `yaml:"github" mapstructure:"github"`
	StackOverflow StackOverflowConfig `yaml:"stackoverflow" mapstructure:"stackoverflow"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

type StorageConfig struct {
	Type          string `yaml:"type" mapstructure:"type"` // "postgres", "sqlite", "neo4j"
	PostgresDSN   string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath     string `yaml:"local_path" mapstructure:"local_path"`
	Neo4jURI      string `yaml:"neo4j_uri" mapstructure:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user" mapstructure:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password" mapstructure:"neo4j_password"`
	Neo4jDatabase string `yaml:"neo4j_database" mapstructure:"neo4j_database"`
}

type GitHubConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	RateLimit int    `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
}

type StackOverflowConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // "openai", "groq", "gemini"
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	Model          string `yaml:"model" mapstructure:"model"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
	UseKeychain    bool   `yaml:"use_keychain" mapstructure:"use_keychain"`
}

type EmbeddingConfig struct {
	Dimensions        int     `yaml:"dimensions" mapstructure:"dimensions"`
	WalkLength        int     `yaml:"walk_length" mapstructure:"walk_length"`
	NumWalks          int     `yaml:"num_walks" mapstructure:"num_walks"`
	Window            int     `yaml:"window" mapstructure:"window"`
	CoverageThreshold float64 `yaml:"coverage_threshold" mapstructure:"coverage_threshold"`
	ManifestPath      string  `yaml:"manifest_path" mapstructure:"manifest_path"`
}

type CacheConfig struct {
	RedisURL string        `yaml:"redis_url" mapstructure:"redis_url"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Storage: StorageConfig{
			Type:          "sqlite",
			LocalPath:     filepath.Join(homeDir, ".devgraph", "graph.db"),
			Neo4jDatabase: "neo4j",
		},
		GitHub: GitHubConfig{
			RateLimit: 10,
		},
		StackOverflow: StackOverflowConfig{
			Enabled: true,
		},
		LLM: LLMConfig{
			Provider: "openai",
		},
		Embedding: EmbeddingConfig{
			Dimensions:        64,
			WalkLength:        10,
			NumWalks:          50,
			Window:            10,
			CoverageThreshold: 0.5,
			ManifestPath:      filepath.Join(homeDir, ".devgraph", "embeddings.db"),
		},
		Cache: CacheConfig{
			TTL: 15 * time.Minute,
		},
	}
}

// Load loads configuration from file, environment and keychain.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("server", cfg.Server)
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("github", cfg.GitHub)
	v.SetDefault("stackoverflow", cfg.StackOverflow)
	v.SetDefault("llm", cfg.LLM)
	v.SetDefault("embedding", cfg.Embedding)
	v.SetDefault("cache", cfg.Cache)

	v.SetEnvPrefix("DEVGRAPH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".devgraph")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".devgraph"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// no config file, defaults apply
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".devgraph", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides.
// Precedence for secrets: env var, then keychain, then config file.
func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("DEVGRAPH_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	} else if cfg.GitHub.Token == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if t, err := km.GetGitHubToken(); err == nil && t != "" {
				cfg.GitHub.Token = t
			}
		}
	}
	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.Atoi(rateLimit); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}

	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	} else if cfg.LLM.APIKey == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if k, err := km.GetAPIKey(); err == nil && k != "" {
				cfg.LLM.APIKey = k
			}
		}
	}
	if url := os.Getenv("LLM_BASE_URL"); url != "" {
		cfg.LLM.BaseURL = url
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if model := os.Getenv("LLM_EMBEDDING_MODEL"); model != "" {
		cfg.LLM.EmbeddingModel = model
	}

	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Storage.Neo4jURI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Storage.Neo4jUser = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		cfg.Storage.Neo4jPassword = pass
	}

	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Cache.RedisURL = url
	}

	if threshold := os.Getenv("EMBEDDING_COVERAGE_THRESHOLD"); threshold != "" {
		if f, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Embedding.CoverageThreshold = f
		}
	}
	if dims := os.Getenv("EMBEDDING_DIMENSIONS"); dims != "" {
		if n, err := strconv.Atoi(dims); err == nil {
			cfg.Embedding.Dimensions = n
		}
	}
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("storage type sqlite requires local_path")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage type postgres requires postgres_dsn")
		}
	case "neo4j":
		if c.Storage.Neo4jURI == "" {
			return fmt.Errorf("storage type neo4j requires neo4j_uri")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	if c.Embedding.CoverageThreshold < 0 || c.Embedding.CoverageThreshold > 1 {
		return fmt.Errorf("embedding coverage_threshold must be in [0, 1], got %v", c.Embedding.CoverageThreshold)
	}
	if c.Embedding.Dimensions < 1 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("server", c.Server)
	v.Set("storage", c.Storage)
	v.Set("github", c.GitHub)
	v.Set("stackoverflow", c.StackOverflow)
	v.Set("llm", c.LLM)
	v.Set("embedding", c.Embedding)
	v.Set("cache", c.Cache)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
