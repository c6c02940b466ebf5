package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/plana-bot/plana/src/data"
	"github.com/plana-bot/plana/src/llm/core"
	"gorm.io/gorm"
)

// Models names the three model slots of one provider.
type Models struct {
	Primary   string
	Secondary string
	Lowload   string
}

// Config is the full runtime configuration. Every field resolves through
// the settings table first, then the environment, then the default.
type Config struct {
	Token    string
	GuildID  string
	MySQLDSN string
	RedisURL string

	DefaultProvider string
	SystemPrompt    string

	GeminiKey     string
	GeminiModels  Models
	MistralKey    string
	MistralBase   string
	MistralModels Models

	CacheLimit   int
	HistoryLimit int

	BraveKey                string
	MaxSearchResults        int
	MaxContentPerURL        int
	MinContentLength        int
	MaxTotalContent         int
	DeepSearchMaxIterations int

	MaxImages   int
	FileLimitMB int
	RateLimit   time.Duration

	OpsAddr      string
	OpsJWTSecret string
}

// Load resolves the configuration. The DB may be nil (CLI tools), in which
// case only environment and defaults apply.
func Load(db *gorm.DB) Config {
	if db != nil {
		if err := data.LoadSettings(db); err != nil {
			log.Printf("config: load settings: %v (env fallbacks in effect)", err)
		}
	}

	cfg := Config{
		Token:    GetSetting("discord_token", "DISCORD_TOKEN", ""),
		GuildID:  GetSetting("guild_id", "GUILD_ID", ""),
		MySQLDSN: GetSetting("mysql_dsn", "MYSQL_DSN", "plana:plana@tcp(127.0.0.1:3306)/plana?parseTime=true"),
		RedisURL: GetSetting("redis_url", "REDIS_URL", "redis://127.0.0.1:6379/0"),

		DefaultProvider: GetSetting("default_provider", "DEFAULT_PROVIDER", "gemini"),
		SystemPrompt:    GetSetting("system_prompt", "SYSTEM_PROMPT", DefaultPersona),

		GeminiKey: GetSetting("gemini_api_key", "GEMINI_API_KEY", ""),
		GeminiModels: Models{
			Primary:   GetSetting("gemini_primary_model", "GEMINI_PRIMARY_MODEL", "gemini-1.5-pro-latest"),
			Secondary: GetSetting("gemini_secondary_model", "GEMINI_SECONDARY_MODEL", "gemini-1.5-flash-latest"),
			Lowload:   GetSetting("gemini_lowload_model", "GEMINI_LOWLOAD_MODEL", "gemini-1.5-flash-latest"),
		},
		MistralKey:  GetSetting("mistral_api_key", "MISTRAL_API_KEY", ""),
		MistralBase: GetSetting("mistral_api_base", "MISTRAL_API_BASE", ""),
		MistralModels: Models{
			Primary:   GetSetting("mistral_primary_model", "MISTRAL_PRIMARY_MODEL", "mistral-large-latest"),
			Secondary: GetSetting("mistral_secondary_model", "MISTRAL_SECONDARY_MODEL", ""),
			Lowload:   GetSetting("mistral_lowload_model", "MISTRAL_LOWLOAD_MODEL", "mistral-small-latest"),
		},

		CacheLimit:   IntSetting("cache_limit", "CACHE_LIMIT", 10),
		HistoryLimit: IntSetting("history_limit", "HISTORY_LIMIT", 10),

		BraveKey:                GetSetting("brave_api_key", "BRAVE_API_KEY", ""),
		MaxSearchResults:        IntSetting("max_search_results", "MAX_SEARCH_RESULTS", 5),
		MaxContentPerURL:        IntSetting("max_content_per_url", "MAX_CONTENT_PER_URL", 10000),
		MinContentLength:        IntSetting("min_content_length", "MIN_CONTENT_LENGTH", 50),
		MaxTotalContent:         IntSetting("max_total_content", "MAX_TOTAL_CONTENT", 50000),
		DeepSearchMaxIterations: IntSetting("deep_search_max_iterations", "DEEP_SEARCH_MAX_ITERATIONS", 3),

		MaxImages:   IntSetting("max_images", "MAX_IMAGES", 5),
		FileLimitMB: IntSetting("file_limit_mb", "FILE_LIMIT_MB", 50),
		RateLimit:   time.Duration(IntSetting("rate_limit_seconds", "RATE_LIMIT_SECONDS", 5)) * time.Second,

		OpsAddr:      GetSetting("ops_addr", "OPS_ADDR", ":8090"),
		OpsJWTSecret: GetSetting("ops_jwt_secret", "OPS_JWT_SECRET", ""),
	}

	// The secondary slot falls back to the primary so fallback dispatch
	// always has a model name to report.
	if cfg.MistralModels.Secondary == "" {
		cfg.MistralModels.Secondary = cfg.MistralModels.Primary
	}

	return cfg
}

// ProviderConfigs expands the configuration into per-provider factory
// inputs for the registry.
func (c Config) ProviderConfigs() map[string]core.FactoryConfig {
	return map[string]core.FactoryConfig{
		"gemini": {
			Provider:       "gemini",
			SystemPrompt:   c.SystemPrompt,
			PrimaryModel:   c.GeminiModels.Primary,
			SecondaryModel: c.GeminiModels.Secondary,
			LowloadModel:   c.GeminiModels.Lowload,
			GeminiKey:      c.GeminiKey,
		},
		"mistral": {
			Provider:       "mistral",
			SystemPrompt:   c.SystemPrompt,
			PrimaryModel:   c.MistralModels.Primary,
			SecondaryModel: c.MistralModels.Secondary,
			LowloadModel:   c.MistralModels.Lowload,
			MistralKey:     c.MistralKey,
			MistralBase:    c.MistralBase,
		},
	}
}

// GetSetting retrieves a setting with env fallback.
func GetSetting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

// IntSetting retrieves an integer setting with env fallback.
func IntSetting(name, envKey string, defaultValue int) int {
	raw := GetSetting(name, envKey, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s: invalid integer %q, using %d", name, raw, defaultValue)
		return defaultValue
	}
	return n
}
