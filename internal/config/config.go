package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the tracking service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracking TrackingConfig `yaml:"tracking"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the optional analytics cache settings. An empty Addr
// disables caching entirely; analytics reads then always hit Postgres.
type RedisConfig struct {
	Addr                string `yaml:"addr"`
	AnalyticsTTLSeconds int    `yaml:"analytics_ttl_seconds"`
}

// TrackingConfig holds the tracking-surface settings.
type TrackingConfig struct {
	// BaseURL is the public URL prefix baked into pixel and click links.
	BaseURL string `yaml:"base_url"`

	// AllowedRedirectHosts lists the landing-page domains a tracked click
	// may redirect to. Subdomains of a listed host are allowed; anything
	// else falls back to DefaultLandingURL.
	AllowedRedirectHosts []string `yaml:"allowed_redirect_hosts"`

	// DefaultLandingURL is where a click lands when the destination is
	// missing or fails validation.
	DefaultLandingURL string `yaml:"default_landing_url"`
}

// Load reads and parses the configuration file. A missing file is not an
// error: the defaults below apply, and LoadFromEnv can layer environment
// overrides on top.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8081
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Redis.AnalyticsTTLSeconds == 0 {
		cfg.Redis.AnalyticsTTLSeconds = 30
	}
	if len(cfg.Tracking.AllowedRedirectHosts) == 0 {
		cfg.Tracking.AllowedRedirectHosts = []string{"brandmonkz.com", "sandbox.brandmonkz.com"}
	}
	if cfg.Tracking.DefaultLandingURL == "" {
		cfg.Tracking.DefaultLandingURL = "https://sandbox.brandmonkz.com/campaigns"
	}
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = "https://sandbox.brandmonkz.com/api"
	}

	return &cfg, nil
}

// LoadFromEnv loads the config file and then applies .env / environment
// variable overrides. Environment always wins over the file.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if base := os.Getenv("TRACKING_BASE_URL"); base != "" {
		cfg.Tracking.BaseURL = base
	}
	if landing := os.Getenv("TRACKING_DEFAULT_LANDING_URL"); landing != "" {
		cfg.Tracking.DefaultLandingURL = landing
	}
	if hosts := os.Getenv("TRACKING_ALLOWED_HOSTS"); hosts != "" {
		var list []string
		for _, h := range strings.Split(hosts, ",") {
			if h = strings.TrimSpace(h); h != "" {
				list = append(list, h)
			}
		}
		if len(list) > 0 {
			cfg.Tracking.AllowedRedirectHosts = list
		}
	}

	return cfg, nil
}
