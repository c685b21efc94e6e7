// Package config loads application configuration from config files,
// environment variables and .env files using viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App     App     `mapstructure:"app"`
	AI      AI      `mapstructure:"ai"`
	Fetch   Fetch   `mapstructure:"fetch"`
	Cache   Cache   `mapstructure:"cache"`
	Library Library `mapstructure:"library"`
	Related Related `mapstructure:"related"`
	Gmail   Gmail   `mapstructure:"gmail"`
}

// App holds general application configuration.
type App struct {
	DBPath     string `mapstructure:"db_path"`
	UploadsDir string `mapstructure:"uploads_dir"`
	// Articles older than this many days are archived during refresh.
	// Zero disables the sweep. Bookmarked and unread articles are kept.
	ArchiveAfterDays int `mapstructure:"archive_after_days"`
}

// AI holds LLM provider configuration.
type AI struct {
	Provider        string `mapstructure:"provider"` // Preferred provider name
	Model           string `mapstructure:"model"`    // Optional model override
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	GoogleAPIKey    string `mapstructure:"google_api_key"`
	DisableCritic   bool   `mapstructure:"disable_critic"`
}

// Fetch holds content fetching configuration.
type Fetch struct {
	EnableJSRender   bool          `mapstructure:"enable_js_render"`
	EnableArchive    bool          `mapstructure:"enable_archive"`
	JSRenderTimeout  time.Duration `mapstructure:"js_render_timeout"`
	ArchiveMaxAge    time.Duration `mapstructure:"archive_max_age"`
	MinContentLength int           `mapstructure:"min_content_length"`
}

// Cache holds tiered cache configuration.
type Cache struct {
	Directory      string        `mapstructure:"directory"`
	MemoryCapacity int           `mapstructure:"memory_capacity"`
	DiskTTL        time.Duration `mapstructure:"disk_ttl"`
}

// Library holds library intake configuration.
type Library struct {
	MaxUploadSizeMB int64 `mapstructure:"max_upload_size_mb"`
}

// Related holds related-links configuration.
type Related struct {
	Enabled   bool   `mapstructure:"enabled"`
	ExaAPIKey string `mapstructure:"exa_api_key"`
}

// Gmail holds the OAuth client credentials for the newsletter poller. The
// per-account tokens live in the store.
type Gmail struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Load reads configuration from an optional config file, a .env file when
// present, and environment variables. Environment variables win.
func Load() (*Config, error) {
	// Load .env if present; missing file is fine.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	v.SetConfigName("skim")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "skim"))
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// ARCHIVE_MAX_AGE_DAYS is expressed in days rather than as a duration.
	if days := v.GetInt("fetch.archive_max_age_days"); days > 0 {
		cfg.Fetch.ArchiveMaxAge = time.Duration(days) * 24 * time.Hour
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.db_path", "articles.db")
	v.SetDefault("app.uploads_dir", "uploads")
	v.SetDefault("app.archive_after_days", 0)
	v.SetDefault("cache.directory", "cache")
	v.SetDefault("cache.memory_capacity", 1000)
	v.SetDefault("cache.disk_ttl", 7*24*time.Hour)
	v.SetDefault("fetch.enable_js_render", true)
	v.SetDefault("fetch.enable_archive", true)
	v.SetDefault("fetch.js_render_timeout", 45*time.Second)
	v.SetDefault("fetch.archive_max_age", 30*24*time.Hour)
	v.SetDefault("fetch.min_content_length", 500)
	v.SetDefault("library.max_upload_size_mb", 50)
	v.SetDefault("related.enabled", false)
}

// bindEnv wires the environment variable names recognized by the core.
func bindEnv(v *viper.Viper) {
	bindings := map[string]string{
		"app.db_path":                "DB_PATH",
		"app.uploads_dir":            "UPLOADS_DIR",
		"app.archive_after_days":     "ARCHIVE_ARTICLES_AFTER_DAYS",
		"cache.directory":            "CACHE_DIR",
		"library.max_upload_size_mb": "MAX_UPLOAD_SIZE_MB",
		"ai.anthropic_api_key":       "ANTHROPIC_API_KEY",
		"ai.openai_api_key":          "OPENAI_API_KEY",
		"ai.google_api_key":          "GOOGLE_API_KEY",
		"ai.provider":                "LLM_PROVIDER",
		"ai.model":                   "LLM_MODEL",
		"related.exa_api_key":        "EXA_API_KEY",
		"related.enabled":            "ENABLE_RELATED_LINKS",
		"fetch.enable_js_render":     "ENABLE_JS_RENDER",
		"fetch.enable_archive":       "ENABLE_ARCHIVE",
		"fetch.js_render_timeout":    "JS_RENDER_TIMEOUT",
		"fetch.archive_max_age_days": "ARCHIVE_MAX_AGE_DAYS",
		"gmail.client_id":            "GMAIL_CLIENT_ID",
		"gmail.client_secret":        "GMAIL_CLIENT_SECRET",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}
