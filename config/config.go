package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	Auth       AuthConfig       `json:"auth"`
	LLM        LLMConfig        `json:"llm"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	MCP        MCPConfig        `json:"mcp"`
	Reconciler ReconcilerConfig `json:"reconciler"`
	Workspace  WorkspaceConfig  `json:"workspace"`
	Manifest   ManifestConfig   `json:"manifest"`
	CORS       CORSConfig       `json:"cors"`
	Logging    LoggingConfig    `json:"logging"`

	Environment string `json:"environment"`
}

type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
}

type DatabaseConfig struct {
	URL          string `json:"url"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	SSLMode      string `json:"ssl_mode"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
	MaxLifetime  int    `json:"max_lifetime"`
}

type RedisConfig struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Password          string `json:"password"`
	DB                int    `json:"db"`
	SearchCacheTTL    int    `json:"search_cache_ttl"` // seconds
	EnableSearchCache bool   `json:"enable_search_cache"`
}

type AuthConfig struct {
	APIKeyHashSecret string `json:"api_key_hash_secret"`
	PlatformToken    string `json:"platform_token"`
}

// LLMConfig selects and tunes the metadata generation provider.
type LLMConfig struct {
	Provider            string `json:"provider"`
	APIKey              string `json:"api_key"`
	Model               string `json:"model"`
	MaxTokens           int    `json:"max_tokens"`
	TimeoutMs           int    `json:"timeout_ms"`
	DescriptionMinLen   int    `json:"description_min_len"`
	DescriptionMaxLen   int    `json:"description_max_len"`
	GenerationMaxTokens int    `json:"generation_max_tokens"`
}

type EmbeddingConfig struct {
	Provider   string `json:"provider"`
	VoyageKey  string `json:"voyage_key"`
	GeminiKey  string `json:"gemini_key"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	TimeoutMs  int    `json:"timeout_ms"`
}

type MCPConfig struct {
	CORSMode           string `json:"cors_mode"`            // wildcard or list
	SessionIdleTimeout int    `json:"session_idle_timeout"` // seconds
}

type ReconcilerConfig struct {
	Enabled     bool `json:"enabled"`
	Interval    int  `json:"interval"`    // seconds
	BatchSize   int  `json:"batch_size"`
	Concurrency int  `json:"concurrency"`
	MaxPerOrg   int  `json:"max_per_org"` // 0 derives ceil(batch/10)
	StaleAfter  int  `json:"stale_after"` // seconds
}

type WorkspaceConfig struct {
	Dir string `json:"dir"`
}

// ManifestConfig tunes manifest assembly.
type ManifestConfig struct {
	// DefaultImportPackage is used when no dependency looks like the
	// component's own distribution package.
	DefaultImportPackage string `json:"default_import_package"`
}

type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout: getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			// Zero means no write deadline. The /mcp notification stream
			// stays open far longer than any sane fixed timeout.
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 0),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "ceuser"),
			Password:     getEnv("DB_PASSWORD", ""),
			Name:         getEnv("DB_NAME", "context_engine"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
		},
		Redis: RedisConfig{
			Host:              getEnv("REDIS_HOST", "localhost"),
			Port:              getEnvAsInt("REDIS_PORT", 6379),
			Password:          getEnv("REDIS_PASSWORD", ""),
			DB:                getEnvAsInt("REDIS_DB", 0),
			SearchCacheTTL:    getEnvAsInt("REDIS_SEARCH_CACHE_TTL", 60),
			EnableSearchCache: getEnvAsBool("REDIS_ENABLE_SEARCH_CACHE", true),
		},
		Auth: AuthConfig{
			APIKeyHashSecret: getEnv("API_KEY_HASH_SECRET", ""),
			PlatformToken:    getEnv("PLATFORM_TOKEN", ""),
		},
		LLM: LLMConfig{
			Provider:            getEnv("CONTEXT_ENGINE_PROVIDER", "anthropic"),
			APIKey:              getEnv("LLM_API_KEY", ""),
			Model:               getEnv("CONTEXT_ENGINE_MODEL", ""),
			MaxTokens:           getEnvAsInt("CONTEXT_ENGINE_MAX_TOKENS", 4096),
			TimeoutMs:           getEnvAsInt("CONTEXT_ENGINE_TIMEOUT_MS", 60000),
			DescriptionMinLen:   getEnvAsInt("CONTEXT_ENGINE_DESC_MIN", 50),
			DescriptionMaxLen:   getEnvAsInt("CONTEXT_ENGINE_DESC_MAX", 2000),
			GenerationMaxTokens: getEnvAsInt("CONTEXT_ENGINE_GENERATION_MAX_TOKENS", 8192),
		},
		Embedding: EmbeddingConfig{
			Provider:   getEnv("EMBEDDING_PROVIDER", "voyage"),
			VoyageKey:  getEnv("VOYAGE_API_KEY", ""),
			GeminiKey:  getEnv("GEMINI_API_KEY", ""),
			Model:      getEnv("EMBEDDING_MODEL", "voyage-3.5"),
			Dimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 1024),
			TimeoutMs:  getEnvAsInt("EMBEDDING_TIMEOUT_MS", 30000),
		},
		MCP: MCPConfig{
			CORSMode:           getEnv("MCP_CORS_MODE", "wildcard"),
			SessionIdleTimeout: getEnvAsInt("MCP_SESSION_IDLE_TIMEOUT", 1800),
		},
		Reconciler: ReconcilerConfig{
			Enabled:     getEnvAsBool("RECONCILER_ENABLED", true),
			Interval:    getEnvAsInt("RECONCILER_INTERVAL", 30),
			BatchSize:   getEnvAsInt("RECONCILER_BATCH_SIZE", 10),
			Concurrency: getEnvAsInt("RECONCILER_CONCURRENCY", 3),
			MaxPerOrg:   getEnvAsInt("RECONCILER_MAX_PER_ORG", 0),
			StaleAfter:  getEnvAsInt("RECONCILER_STALE_AFTER", 600),
		},
		Workspace: WorkspaceConfig{
			Dir: getEnv("WORKSPACE_DIR", filepath.Join(os.TempDir(), "context-engine")),
		},
		Manifest: ManifestConfig{
			DefaultImportPackage: getEnv("CONTEXT_ENGINE_DEFAULT_PACKAGE", "@/components/ui"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if config.LLM.Model == "" {
		config.LLM.Model = defaultModelFor(config.LLM.Provider)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func defaultModelFor(provider string) string {
	switch provider {
	case "gemini":
		return "gemini-2.5-flash"
	default:
		return "claude-sonnet-4-20250514"
	}
}

// GetDatabaseDSN prefers a full DATABASE_URL and otherwise composes the DSN
// from the discrete parts.
func (c *Config) GetDatabaseDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func validateConfig(config *Config) error {
	if config.Database.URL == "" && config.Database.Password == "" {
		return fmt.Errorf("database credentials are required (DATABASE_URL or DB_PASSWORD)")
	}

	if config.Auth.APIKeyHashSecret == "" {
		return fmt.Errorf("API key hash secret is required (API_KEY_HASH_SECRET)")
	}

	if config.Auth.PlatformToken == "" {
		return fmt.Errorf("platform token is required (PLATFORM_TOKEN)")
	}

	if !strings.HasPrefix(config.Auth.PlatformToken, "cep_") {
		return fmt.Errorf("platform token must carry the cep_ prefix (PLATFORM_TOKEN)")
	}

	switch config.LLM.Provider {
	case "anthropic", "gemini":
	default:
		return fmt.Errorf("unknown generation provider %q (CONTEXT_ENGINE_PROVIDER)", config.LLM.Provider)
	}

	switch config.Embedding.Provider {
	case "voyage", "gemini", "mock", "none", "":
	default:
		return fmt.Errorf("unknown embedding provider %q (EMBEDDING_PROVIDER)", config.Embedding.Provider)
	}

	if config.IsProduction() && config.Embedding.Provider == "voyage" && config.Embedding.VoyageKey == "" {
		return fmt.Errorf("voyage API key is required in production (VOYAGE_API_KEY)")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
