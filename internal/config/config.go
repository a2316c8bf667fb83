package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	TelegramToken string `koanf:"telegram_bot_token"`
	GeminiAPIKey  string `koanf:"gemini_api_key"`

	LogLevel string `koanf:"log_level"`
	Debug    bool   `koanf:"debug"`

	PreferIPv4 bool `koanf:"prefer_ipv4"`

	MaxConcurrent         int    `koanf:"max_concurrent"`
	RequestTimeoutSeconds int    `koanf:"request_timeout_seconds"`
	HTTPTimeoutSeconds    int    `koanf:"http_timeout_seconds"`
	GeminiBaseURL         string `koanf:"gemini_base_url"`
	GeminiAPIVersion      string `koanf:"gemini_api_version"`
	GeminiTextModel       string `koanf:"gemini_text_model"`
	GeminiImageModel      string `koanf:"gemini_image_model"`
	OEmbedURL             string `koanf:"oembed_url"`

	WebAddr           string `koanf:"web_addr"`
	MaxUploadMB       int    `koanf:"max_upload_mb"`
	SessionTTLMinutes int    `koanf:"session_ttl_minutes"`
}

var defaults = Config{
	LogLevel:              "info",
	PreferIPv4:            true,
	MaxConcurrent:         4,
	RequestTimeoutSeconds: 240,
	HTTPTimeoutSeconds:    180,
	GeminiBaseURL:         "https://generativelanguage.googleapis.com",
	GeminiAPIVersion:      "v1beta",
	GeminiTextModel:       "gemini-2.5-flash",
	GeminiImageModel:      "gemini-2.5-flash-image",
	OEmbedURL:             "https://noembed.com/embed",
	WebAddr:               ":8080",
	MaxUploadMB:           200,
	SessionTTLMinutes:     60,
}

// Load reads defaults, then the YAML file named by CONFIG_FILE (if any), then
// environment variables named after the upper-cased keys.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	known := make(map[string]bool)
	for _, key := range k.Keys() {
		known[key] = true
	}
	envProvider := env.ProviderWithValue("", ".", func(name, value string) (string, interface{}) {
		key := strings.ToLower(name)
		if !known[key] || strings.TrimSpace(value) == "" {
			return "", nil
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.GeminiAPIKey = strings.TrimSpace(cfg.GeminiAPIKey)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.GeminiBaseURL = strings.TrimSpace(cfg.GeminiBaseURL)
	cfg.GeminiAPIVersion = strings.TrimSpace(cfg.GeminiAPIVersion)
	cfg.WebAddr = strings.TrimSpace(cfg.WebAddr)

	if cfg.GeminiAPIKey == "" {
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = defaults.RequestTimeoutSeconds
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		cfg.HTTPTimeoutSeconds = defaults.HTTPTimeoutSeconds
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = defaults.MaxUploadMB
	}
	if cfg.SessionTTLMinutes <= 0 {
		cfg.SessionTTLMinutes = defaults.SessionTTLMinutes
	}
	if cfg.WebAddr == "" {
		cfg.WebAddr = defaults.WebAddr
	}

	return cfg, nil
}

// RequireTelegram reports whether the bot surface can start.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func NewLogger(cfg Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
}
