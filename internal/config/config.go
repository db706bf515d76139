package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Skyjoe/noticias-resumidas/pkg/news"
)

const (
	SourceGoogle  = news.SourceGoogle
	SourceFinnhub = news.SourceFinnhub
)

type Config struct {
	Port        string
	FrontendURL string
	RedisURL    string
	DatabaseURL string
	LogLevel    string

	NewsSource    string
	NewsLang      string
	NewsRegion    string
	FinnhubAPIKey string

	RateLimitPerMinute int
	RateLimitWindow    time.Duration

	LocalCacheSize int
	LocalCacheTTL  time.Duration
	SharedCacheTTL time.Duration

	MinFetchInterval time.Duration
	FetchTimeout     time.Duration
	RequestTimeout   time.Duration

	PopularThreshold int
	RefreshInterval  time.Duration
	SweepInterval    time.Duration
}

func Default() Config {
	return Config{
		Port:     "8080",
		LogLevel: "info",

		NewsSource: SourceGoogle,
		NewsLang:   "pt-BR",
		NewsRegion: "BR",

		RateLimitPerMinute: 30,
		RateLimitWindow:    time.Minute,

		LocalCacheSize: 100,
		LocalCacheTTL:  5 * time.Minute,
		SharedCacheTTL: 10 * time.Minute,

		MinFetchInterval: 2 * time.Second,
		FetchTimeout:     30 * time.Second,
		RequestTimeout:   45 * time.Second,

		PopularThreshold: 3,
		RefreshInterval:  5 * time.Minute,
		SweepInterval:    time.Minute,
	}
}

// Load reads .env (if present), then the optional YAML file named by
// CONFIG_FILE, then the environment. Later sources win.
func Load() (Config, error) {
	godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.loadEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return raw.apply(c)
}

func (c *Config) loadEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("PORT", &c.Port)
	str("FRONTEND_URL", &c.FrontendURL)
	str("REDIS_URL", &c.RedisURL)
	str("DATABASE_URL", &c.DatabaseURL)
	str("LOG_LEVEL", &c.LogLevel)
	str("NEWS_SOURCE", &c.NewsSource)
	str("NEWS_LANG", &c.NewsLang)
	str("NEWS_REGION", &c.NewsRegion)
	str("FINNHUB_API_KEY", &c.FinnhubAPIKey)

	ints := []struct {
		key string
		dst *int
	}{
		{"RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute},
		{"LOCAL_CACHE_SIZE", &c.LocalCacheSize},
		{"POPULAR_THRESHOLD", &c.PopularThreshold},
	}
	for _, f := range ints {
		v, ok := lookup(f.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.key, v, err)
		}
		*f.dst = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"RATE_LIMIT_WINDOW", &c.RateLimitWindow},
		{"LOCAL_CACHE_TTL", &c.LocalCacheTTL},
		{"SHARED_CACHE_TTL", &c.SharedCacheTTL},
		{"MIN_FETCH_INTERVAL", &c.MinFetchInterval},
		{"FETCH_TIMEOUT", &c.FetchTimeout},
		{"REQUEST_TIMEOUT", &c.RequestTimeout},
		{"REFRESH_INTERVAL", &c.RefreshInterval},
		{"SWEEP_INTERVAL", &c.SweepInterval},
	}
	for _, f := range durations {
		v, ok := lookup(f.key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.key, v, err)
		}
		*f.dst = d
	}

	return nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("port must not be empty"))
	}
	switch c.NewsSource {
	case SourceGoogle:
	case SourceFinnhub:
		if c.FinnhubAPIKey == "" {
			errs = append(errs, errors.New("finnhub source requires FINNHUB_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown news source %q", c.NewsSource))
	}

	positiveInts := map[string]int{
		"rate_limit_per_minute": c.RateLimitPerMinute,
		"local_cache_size":      c.LocalCacheSize,
		"popular_threshold":     c.PopularThreshold,
	}
	for name, v := range positiveInts {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}

	positiveDurations := map[string]time.Duration{
		"rate_limit_window": c.RateLimitWindow,
		"local_cache_ttl":   c.LocalCacheTTL,
		"shared_cache_ttl":  c.SharedCacheTTL,
		"fetch_timeout":     c.FetchTimeout,
		"request_timeout":   c.RequestTimeout,
		"refresh_interval":  c.RefreshInterval,
		"sweep_interval":    c.SweepInterval,
	}
	for name, v := range positiveDurations {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, v))
		}
	}
	if c.MinFetchInterval < 0 {
		errs = append(errs, fmt.Errorf("min_fetch_interval must not be negative, got %s", c.MinFetchInterval))
	}

	return errors.Join(errs...)
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// fileConfig mirrors Config with durations as strings so the YAML file can
// use values like "5m".
type fileConfig struct {
	Port        string `yaml:"port"`
	FrontendURL string `yaml:"frontend_url"`
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	LogLevel    string `yaml:"log_level"`

	NewsSource    string `yaml:"news_source"`
	NewsLang      string `yaml:"news_lang"`
	NewsRegion    string `yaml:"news_region"`
	FinnhubAPIKey string `yaml:"finnhub_api_key"`

	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	RateLimitWindow    string `yaml:"rate_limit_window"`

	LocalCacheSize int    `yaml:"local_cache_size"`
	LocalCacheTTL  string `yaml:"local_cache_ttl"`
	SharedCacheTTL string `yaml:"shared_cache_ttl"`

	MinFetchInterval string `yaml:"min_fetch_interval"`
	FetchTimeout     string `yaml:"fetch_timeout"`
	RequestTimeout   string `yaml:"request_timeout"`

	PopularThreshold int    `yaml:"popular_threshold"`
	RefreshInterval  string `yaml:"refresh_interval"`
	SweepInterval    string `yaml:"sweep_interval"`
}

func (f fileConfig) apply(c *Config) error {
	setStr := func(v string, dst *string) {
		if v != "" {
			*dst = v
		}
	}
	setStr(f.Port, &c.Port)
	setStr(f.FrontendURL, &c.FrontendURL)
	setStr(f.RedisURL, &c.RedisURL)
	setStr(f.DatabaseURL, &c.DatabaseURL)
	setStr(f.LogLevel, &c.LogLevel)
	setStr(f.NewsSource, &c.NewsSource)
	setStr(f.NewsLang, &c.NewsLang)
	setStr(f.NewsRegion, &c.NewsRegion)
	setStr(f.FinnhubAPIKey, &c.FinnhubAPIKey)

	setInt := func(v int, dst *int) {
		if v != 0 {
			*dst = v
		}
	}
	setInt(f.RateLimitPerMinute, &c.RateLimitPerMinute)
	setInt(f.LocalCacheSize, &c.LocalCacheSize)
	setInt(f.PopularThreshold, &c.PopularThreshold)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"rate_limit_window", f.RateLimitWindow, &c.RateLimitWindow},
		{"local_cache_ttl", f.LocalCacheTTL, &c.LocalCacheTTL},
		{"shared_cache_ttl", f.SharedCacheTTL, &c.SharedCacheTTL},
		{"min_fetch_interval", f.MinFetchInterval, &c.MinFetchInterval},
		{"fetch_timeout", f.FetchTimeout, &c.FetchTimeout},
		{"request_timeout", f.RequestTimeout, &c.RequestTimeout},
		{"refresh_interval", f.RefreshInterval, &c.RefreshInterval},
		{"sweep_interval", f.SweepInterval, &c.SweepInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = v
	}

	return nil
}
