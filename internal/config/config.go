package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port               int
	NatsURL            string
	NatsToken          string
	DatabaseURL        string
	LogLevel           string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiBaseURL      string
	GeminiMaxRetries   int
	EmbedAPIKey        string
	EmbedModel         string
	EmbedEndpoint      string
	NotifyURL          string
	NotifyToken        string
	APIToken           string
	ProtectedNames     []string
	SegmentConcurrency int
}

// fileConfig mirrors Config for the optional YAML overlay. Zero values are
// treated as unset.
type fileConfig struct {
	Port        int    `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	LogLevel    string `yaml:"log_level"`
	Nats        struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"nats"`
	Gemini struct {
		APIKey     string `yaml:"api_key"`
		Model      string `yaml:"model"`
		BaseURL    string `yaml:"base_url"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"gemini"`
	Embed struct {
		APIKey   string `yaml:"api_key"`
		Model    string `yaml:"model"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"embed"`
	Notify struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"notify"`
	APIToken           string   `yaml:"api_token"`
	ProtectedNames     []string `yaml:"protected_names"`
	SegmentConcurrency int      `yaml:"segment_concurrency"`
}

// Load reads configuration from defaults, the YAML file named by
// JARVIS_CONFIG (if any), and the environment, in increasing precedence.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("JARVIS_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.overlayEnv()
	return cfg, nil
}

func defaults() Config {
	return Config{
		Port:               8760,
		NatsURL:            "nats://hermes:4222",
		LogLevel:           "info",
		GeminiModel:        "gemini-2.5-flash",
		GeminiBaseURL:      "https://generativelanguage.googleapis.com/v1beta",
		GeminiMaxRetries:   3,
		EmbedModel:         "text-embedding-3-small",
		EmbedEndpoint:      "https://api.openai.com/v1/embeddings",
		ProtectedNames:     []string{"bosco"},
		SegmentConcurrency: 1,
	}
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setInt(&c.Port, fc.Port)
	setStr(&c.DatabaseURL, fc.DatabaseURL)
	setStr(&c.LogLevel, fc.LogLevel)
	setStr(&c.NatsURL, fc.Nats.URL)
	setStr(&c.NatsToken, fc.Nats.Token)
	setStr(&c.GeminiAPIKey, fc.Gemini.APIKey)
	setStr(&c.GeminiModel, fc.Gemini.Model)
	setStr(&c.GeminiBaseURL, fc.Gemini.BaseURL)
	setInt(&c.GeminiMaxRetries, fc.Gemini.MaxRetries)
	setStr(&c.EmbedAPIKey, fc.Embed.APIKey)
	setStr(&c.EmbedModel, fc.Embed.Model)
	setStr(&c.EmbedEndpoint, fc.Embed.Endpoint)
	setStr(&c.NotifyURL, fc.Notify.URL)
	setStr(&c.NotifyToken, fc.Notify.Token)
	setStr(&c.APIToken, fc.APIToken)
	setInt(&c.SegmentConcurrency, fc.SegmentConcurrency)
	if len(fc.ProtectedNames) > 0 {
		c.ProtectedNames = normalizeNames(fc.ProtectedNames)
	}
	return nil
}

func (c *Config) overlayEnv() {
	c.Port = envInt("JARVIS_PORT", c.Port)
	c.NatsURL = envStr("NATS_URL", c.NatsURL)
	c.NatsToken = envStr("NATS_TOKEN", c.NatsToken)
	c.DatabaseURL = envStr("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.GeminiAPIKey = envStr("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = envStr("GEMINI_MODEL", c.GeminiModel)
	c.GeminiBaseURL = envStr("GEMINI_BASE_URL", c.GeminiBaseURL)
	c.GeminiMaxRetries = envInt("GEMINI_MAX_RETRIES", c.GeminiMaxRetries)
	c.EmbedAPIKey = envStr("EMBED_API_KEY", c.EmbedAPIKey)
	c.EmbedModel = envStr("EMBED_MODEL", c.EmbedModel)
	c.EmbedEndpoint = envStr("EMBED_ENDPOINT", c.EmbedEndpoint)
	c.NotifyURL = envStr("NOTIFY_URL", c.NotifyURL)
	c.NotifyToken = envStr("NOTIFY_TOKEN", c.NotifyToken)
	c.APIToken = envStr("JARVIS_API_TOKEN", c.APIToken)
	c.SegmentConcurrency = envInt("JARVIS_SEGMENT_CONCURRENCY", c.SegmentConcurrency)
	if v := os.Getenv("JARVIS_PROTECTED_NAMES"); v != "" {
		c.ProtectedNames = normalizeNames(strings.Split(v, ","))
	}
	if c.SegmentConcurrency < 1 {
		c.SegmentConcurrency = 1
	}
}

func normalizeNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
