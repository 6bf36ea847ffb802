// Package config loads the application configuration. Components receive
// the loaded value explicitly; nothing reads viper at runtime.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Loader     LoaderConfig     `mapstructure:"loader"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	ChunkSize  int              `mapstructure:"chunk_size"`
	Overlap    int              `mapstructure:"chunk_overlap"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LoaderConfig configures the import pipeline directories and the
// stability window before a new file is picked up.
type LoaderConfig struct {
	SourceDir      string        `mapstructure:"source_dir"`
	ArchiveDir     string        `mapstructure:"archive_dir"`
	BadDir         string        `mapstructure:"bad_dir"`
	MonitoringTime time.Duration `mapstructure:"monitoring_time"`
}

// OCRConfig controls when and how OCR is invoked. Threshold is the
// minimum characters per page below which a document goes through OCR.
type OCRConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Threshold int    `mapstructure:"threshold"`
	Language  string `mapstructure:"language"`
	ServerURL string `mapstructure:"server_url"`
}

type EmbeddingConfig struct {
	ServerURL string `mapstructure:"server_url"`
	Model     string `mapstructure:"model"`
}

// OpenRouterConfig describes the answer provider chain: the default
// model followed by fallbacks, tried in order.
type OpenRouterConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	DefaultModel   string        `mapstructure:"default_model"`
	FallbackModels []string      `mapstructure:"fallback_models"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	ContextBudget  int           `mapstructure:"context_budget"` // tokens available for retrieved context
}

// ModelChain returns the ordered list of models to try, default first,
// duplicates removed.
func (c OpenRouterConfig) ModelChain() []string {
	chain := make([]string, 0, 1+len(c.FallbackModels))
	seen := make(map[string]bool)
	for _, m := range append([]string{c.DefaultModel}, c.FallbackModels...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		chain = append(chain, m)
	}
	return chain
}

// Load reads config.yaml from path (or the working directory when path
// is empty), applies defaults and environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("DMS")
	v.AutomaticEnv()
	_ = v.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	_ = v.BindEnv("database.dsn", "POSTGRES_DSN")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults plus env are enough.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("loader.source_dir", "data/source")
	v.SetDefault("loader.archive_dir", "data/archive")
	v.SetDefault("loader.bad_dir", "data/bad")
	v.SetDefault("loader.monitoring_time", 3*time.Second)
	v.SetDefault("ocr.enabled", true)
	v.SetDefault("ocr.threshold", 50)
	v.SetDefault("ocr.language", "deu")
	v.SetDefault("ocr.server_url", "http://localhost:8884")
	v.SetDefault("embedding.server_url", "http://localhost:11434/api/embed")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.default_model", "anthropic/claude-3-sonnet")
	v.SetDefault("openrouter.fallback_models", []string{"openai/gpt-4", "meta-llama/llama-2-70b-chat"})
	v.SetDefault("openrouter.timeout", 30*time.Second)
	v.SetDefault("openrouter.max_retries", 3)
	v.SetDefault("openrouter.context_budget", 3000)
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)
}
