package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete service configuration
// The structure matches the config.yaml file and can be overridden by environment variables

type Config struct {
	Review ReviewConfig `json:"review" mapstructure:"review"`
}

// ReviewConfig contains the main service configuration

type ReviewConfig struct {
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Log      LogConfig      `json:"log" mapstructure:"log"`
	LLM      LLMConfig      `json:"llm" mapstructure:"llm"`
	Pipeline PipelineConfig `json:"pipeline" mapstructure:"pipeline"`
	Storage  StorageConfig  `json:"storage" mapstructure:"storage"`
}

// ServerConfig contains server-specific configuration

type ServerConfig struct {
	Addr        string   `json:"addr" mapstructure:"addr"`
	Timeout     string   `json:"timeout" mapstructure:"timeout"`
	MaxUploadMB int      `json:"max_upload_mb" mapstructure:"max_upload_mb"`
	CORSOrigins []string `json:"cors_origins" mapstructure:"cors_origins"`
}

type LogConfig struct {
	Mode  string `json:"mode" mapstructure:"mode"`
	Level string `json:"level" mapstructure:"level"`
}

// LLMConfig contains LLM provider configuration.
// An empty endpoint disables the AI path and every stage runs its heuristic.

type LLMConfig struct {
	Endpoint      string  `json:"endpoint" mapstructure:"endpoint"`
	Model         string  `json:"model" mapstructure:"model"`
	APIKey        string  `json:"api_key" mapstructure:"api_key"`
	Timeout       string  `json:"timeout" mapstructure:"timeout"`
	MaxRetries    int     `json:"max_retries" mapstructure:"max_retries"`
	RatePerSecond float64 `json:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int     `json:"burst" mapstructure:"burst"`
	Temperature   float64 `json:"temperature" mapstructure:"temperature"`
}

// PipelineConfig contains clause analysis settings

type PipelineConfig struct {
	Concurrency    int   `json:"concurrency" mapstructure:"concurrency"`
	MaxInputChars  int   `json:"max_input_chars" mapstructure:"max_input_chars"`
	SampleFallback bool  `json:"sample_fallback" mapstructure:"sample_fallback"`
	Seed           int64 `json:"seed" mapstructure:"seed"`
}

// StorageConfig locates the databases. DocumentsPath bounds the files the
// analyze tool may read by path.
type StorageConfig struct {
	Path          string `json:"path" mapstructure:"path"`
	AuditPath     string `json:"audit_path" mapstructure:"audit_path"`
	DocumentsPath string `json:"documents_path" mapstructure:"documents_path"`
}

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	// Load .env first (ignore error if not present)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.contractlens")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Review.Storage.Path = resolvePath(cfg.Review.Storage.Path)
	cfg.Review.Storage.AuditPath = resolvePath(cfg.Review.Storage.AuditPath)
	cfg.Review.Storage.DocumentsPath = resolvePath(cfg.Review.Storage.DocumentsPath)
	return &cfg, nil
}

// setDefaults sets default configuration values.
// Every key lives under review so it binds to a REVIEW_<SECTION>_<KEY> env var.
func setDefaults(v *viper.Viper) {
	v.SetDefault("review.server.addr", ":8080")
	v.SetDefault("review.server.timeout", "120s")
	v.SetDefault("review.server.max_upload_mb", 20)
	v.SetDefault("review.server.cors_origins", []string{"*"})

	v.SetDefault("review.log.mode", "dev")
	v.SetDefault("review.log.level", "info")

	// LLM defaults: OpenAI-compatible endpoint, disabled until configured
	v.SetDefault("review.llm.endpoint", "")
	v.SetDefault("review.llm.model", "gpt-4o-mini")
	v.SetDefault("review.llm.timeout", "45s")
	v.SetDefault("review.llm.max_retries", 3)
	v.SetDefault("review.llm.rate_per_second", 2.0)
	v.SetDefault("review.llm.burst", 4)
	v.SetDefault("review.llm.temperature", 0.2)

	v.SetDefault("review.pipeline.concurrency", 4)
	v.SetDefault("review.pipeline.max_input_chars", 15000)
	v.SetDefault("review.pipeline.sample_fallback", true)
	v.SetDefault("review.pipeline.seed", 0)

	v.SetDefault("review.storage.path", "~/.contractlens/review.db")
	v.SetDefault("review.storage.audit_path", "~/.contractlens/audit.db")
	v.SetDefault("review.storage.documents_path", "~/.contractlens/documents")
}

// resolvePath resolves ~ to home directory and cleans the path
func resolvePath(p string) string {
	if p == "" || p == ":memory:" {
		return p
	}
	if p[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return filepath.Clean(p)
}
