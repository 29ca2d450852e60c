// Package config loads the gateway's runtime configuration, adapted from
// project-cortex's internal/config/loader.go: defaults, then config.yaml,
// then WASINN_-prefixed environment variables (highest priority wins),
// plus an optional .env.local loaded via godotenv before viper reads the
// process environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the gateway's fully resolved runtime configuration
// (spec §9a "Configuration").
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	ModelDir   string `mapstructure:"model_dir"`

	// ExecutionProviders is loaded and validated as non-empty, but the
	// registry does not read it: sessions are always opened CUDA first with
	// a CPU fallback, whatever this list holds.
	ExecutionProviders []string `mapstructure:"execution_providers"`

	DefaultMaxToken int `mapstructure:"default_max_token"`
	MaxTokenCeiling int `mapstructure:"max_token_ceiling"`

	WorkerPoolSize int           `mapstructure:"worker_pool_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	ImageGuestPath string `mapstructure:"image_guest_path"`
	ChatGuestPath  string `mapstructure:"chat_guest_path"`
}

// Default returns the gateway's built-in defaults, applied before any
// config file or environment variable is consulted.
func Default() *Config {
	return &Config{
		ListenAddr:         ":8080",
		ModelDir:           "models/onnx",
		ExecutionProviders: []string{"cuda", "cpu"},
		DefaultMaxToken:    64,
		MaxTokenCeiling:    512,
		WorkerPoolSize:     4,
		RequestTimeout:     60 * time.Second,
		ImageGuestPath:     "guest/bin/image.wasm",
		ChatGuestPath:      "guest/bin/chat.wasm",
	}
}

// Load resolves configuration with priority (highest to lowest):
//  1. WASINN_* environment variables
//  2. ./config.yaml (or configDir/config.yaml if configDir is non-empty)
//  3. Default()
//
// A .env.local file in the current directory is loaded into the process
// environment first, best-effort, so local development doesn't need
// exported shell variables.
func Load(configDir string) (*Config, error) {
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("WASINN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	defaults := Default()
	v.SetDefault("listen_addr", defaults.ListenAddr)
	v.SetDefault("model_dir", defaults.ModelDir)
	v.SetDefault("execution_providers", defaults.ExecutionProviders)
	v.SetDefault("default_max_token", defaults.DefaultMaxToken)
	v.SetDefault("max_token_ceiling", defaults.MaxTokenCeiling)
	v.SetDefault("worker_pool_size", defaults.WorkerPoolSize)
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("image_guest_path", defaults.ImageGuestPath)
	v.SetDefault("chat_guest_path", defaults.ChatGuestPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker_pool_size must be positive, got %d", cfg.WorkerPoolSize)
	}
	if cfg.MaxTokenCeiling <= 0 {
		return fmt.Errorf("max_token_ceiling must be positive, got %d", cfg.MaxTokenCeiling)
	}
	if cfg.DefaultMaxToken > cfg.MaxTokenCeiling {
		return fmt.Errorf("default_max_token (%d) exceeds max_token_ceiling (%d)", cfg.DefaultMaxToken, cfg.MaxTokenCeiling)
	}
	if len(cfg.ExecutionProviders) == 0 {
		return fmt.Errorf("execution_providers must list at least one provider")
	}
	return nil
}
