// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads FlyWise configuration.
//
// # Description
//
// Configuration comes from an optional YAML file, then environment variables
// override individual fields, then defaults fill whatever is still empty.
// The result is validated before use so misconfiguration fails at startup
// instead of on the first request.
//
// # Precedence
//
//  1. Environment variables (DATABASE_URL, OPENAI_API_KEY, ...)
//  2. YAML file passed with --config
//  3. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // time zones must resolve in minimal containers

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/flywise/pkg/logging"
)

// Config is the root configuration for every FlyWise binary.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Flights  FlightsConfig  `yaml:"flights"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  logging.Config `yaml:"logging"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port           int           `yaml:"port" validate:"gte=1,lte=65535"`
	GinMode        string        `yaml:"gin_mode" validate:"omitempty,oneof=debug release test"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	OTelEndpoint   string        `yaml:"otel_endpoint"`
	EnableMetrics  *bool         `yaml:"enable_metrics"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gte=0"`
}

// DefaultTemperature is the sampling temperature when none is configured.
const DefaultTemperature float32 = 0.3

// MetricsEnabled reports whether /metrics is served. Defaults to true.
func (s ServerConfig) MetricsEnabled() bool {
	return s.EnableMetrics == nil || *s.EnableMetrics
}

// DatabaseConfig selects the storage driver.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=postgres sqlite"`
	DSN    string `yaml:"dsn" validate:"required"`
	// AutoMigrate creates missing tables at startup.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// LLMConfig selects and tunes the language model backend.
type LLMConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=openai ollama"`
	Model     string `yaml:"model" validate:"required"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
	MaxTokens int    `yaml:"max_tokens" validate:"gte=1,lte=4096"`
	// Temperature is a pointer so an explicit 0 survives defaulting.
	Temperature *float32      `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
}

// FlightsConfig configures the flight search provider.
type FlightsConfig struct {
	Provider          string        `yaml:"provider" validate:"oneof=amadeus mock"`
	BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
	ClientID          string        `yaml:"client_id"`
	ClientSecret      string        `yaml:"client_secret"`
	Currency          string        `yaml:"currency" validate:"len=3"`
	MaxResults        int           `yaml:"max_results" validate:"gte=1,lte=250"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
	CacheDir          string        `yaml:"cache_dir"`
	AirportCacheTTL   time.Duration `yaml:"airport_cache_ttl" validate:"gte=0"`
	OfferCacheTTL     time.Duration `yaml:"offer_cache_ttl" validate:"gte=0"`
}

// ScraperConfig configures promotion ingestion.
type ScraperConfig struct {
	Enabled         bool          `yaml:"enabled"`
	FeedURLs        []string      `yaml:"feed_urls" validate:"dive,url"`
	Source          string        `yaml:"source"`
	Interval        time.Duration `yaml:"interval" validate:"gte=0"`
	PostDelay       time.Duration `yaml:"post_delay" validate:"gte=0"`
	MaxContentBytes int           `yaml:"max_content_bytes" validate:"gte=0"`
	TimeZone        string        `yaml:"time_zone"`
}

// AuthConfig configures bearer token verification. An empty JWTSecret
// selects the no-op provider.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Audience  string `yaml:"audience"`
}

var validate = validator.New()

// Load reads path (may be empty), applies environment overrides and
// defaults, and validates the result.
//
// # Inputs
//
//   - path: YAML file path. Empty means environment and defaults only.
//
// # Outputs
//
//   - Config: Ready to use.
//   - error: Non-nil when the file cannot be read or parsed, or validation fails.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg, os.LookupEnv)
	cfg = applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules. LLM credentials
// are checked separately by ValidateLLM because the scraper and migrations
// run without them.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Scraper.Enabled && len(c.Scraper.FeedURLs) == 0 {
		return errors.New("invalid configuration: scraper.feed_urls must not be empty when the scraper is enabled")
	}
	if _, err := time.LoadLocation(c.Scraper.TimeZone); err != nil {
		return fmt.Errorf("invalid configuration: scraper.time_zone: %w", err)
	}
	return nil
}

// ValidateLLM checks that the selected LLM backend has what it needs to
// connect.
func (c Config) ValidateLLM() error {
	if c.LLM.Backend == "openai" && c.LLM.APIKey == "" {
		return errors.New("invalid configuration: llm.api_key (OPENAI_API_KEY) is required for the openai backend")
	}
	if c.LLM.Backend == "ollama" && c.LLM.BaseURL == "" {
		return errors.New("invalid configuration: llm.base_url (OLLAMA_BASE_URL) is required for the ollama backend")
	}
	return nil
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return applyDefaults(Config{})
}

func applyDefaults(cfg Config) Config {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "file:flywise.db?_foreign_keys=on"
	}

	if cfg.LLM.Backend == "" {
		cfg.LLM.Backend = "openai"
	}
	if cfg.LLM.Model == "" {
		if cfg.LLM.Backend == "ollama" {
			cfg.LLM.Model = "llama3.1"
		} else {
			cfg.LLM.Model = "gpt-4o-mini"
		}
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 500
	}
	if cfg.LLM.Temperature == nil {
		t := DefaultTemperature
		cfg.LLM.Temperature = &t
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 45 * time.Second
	}

	if cfg.Flights.Provider == "" {
		if cfg.Flights.ClientID != "" && cfg.Flights.ClientSecret != "" {
			cfg.Flights.Provider = "amadeus"
		} else {
			cfg.Flights.Provider = "mock"
		}
	}
	if cfg.Flights.BaseURL == "" {
		cfg.Flights.BaseURL = "https://test.api.amadeus.com"
	}
	if cfg.Flights.Currency == "" {
		cfg.Flights.Currency = "BRL"
	}
	if cfg.Flights.MaxResults == 0 {
		cfg.Flights.MaxResults = 20
	}
	if cfg.Flights.RequestsPerSecond == 0 {
		// The test environment allows 10 transactions per second.
		cfg.Flights.RequestsPerSecond = 8
	}
	if cfg.Flights.AirportCacheTTL == 0 {
		cfg.Flights.AirportCacheTTL = 24 * time.Hour
	}
	if cfg.Flights.OfferCacheTTL == 0 {
		cfg.Flights.OfferCacheTTL = 10 * time.Minute
	}

	if len(cfg.Scraper.FeedURLs) == 0 {
		cfg.Scraper.FeedURLs = []string{"https://passageirodeprimeira.com/feed/"}
	}
	if cfg.Scraper.Source == "" {
		cfg.Scraper.Source = "passageirodeprimeira.com"
	}
	if cfg.Scraper.Interval == 0 {
		cfg.Scraper.Interval = 6 * time.Hour
	}
	if cfg.Scraper.PostDelay == 0 {
		cfg.Scraper.PostDelay = 1500 * time.Millisecond
	}
	if cfg.Scraper.MaxContentBytes == 0 {
		cfg.Scraper.MaxContentBytes = 50000
	}
	if cfg.Scraper.TimeZone == "" {
		cfg.Scraper.TimeZone = "America/Sao_Paulo"
	}

	if cfg.Logging.Service == "" {
		cfg.Logging.Service = "flywise"
	}
	return cfg
}

// lookupFunc matches os.LookupEnv so tests can inject an environment.
type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.Trim(strings.TrimSpace(v), `"'`)
		}
	}

	if v, ok := lookup("FLYWISE_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	str("GIN_MODE", &cfg.Server.GinMode)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Server.OTelEndpoint)
	if v, ok := lookup("FLYWISE_ALLOWED_ORIGINS"); ok && v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	str("DATABASE_DRIVER", &cfg.Database.Driver)
	str("DATABASE_URL", &cfg.Database.DSN)
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		if _, driverSet := lookup("DATABASE_DRIVER"); !driverSet && strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
		}
	}

	str("LLM_BACKEND_TYPE", &cfg.LLM.Backend)
	str("OPENAI_API_KEY", &cfg.LLM.APIKey)
	str("OPENAI_MODEL", &cfg.LLM.Model)
	if v, ok := lookup("LLM_TEMPERATURE"); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 32); err == nil {
			t := float32(f)
			cfg.LLM.Temperature = &t
		}
	}
	if cfg.LLM.Backend == "ollama" {
		str("OLLAMA_BASE_URL", &cfg.LLM.BaseURL)
		str("OLLAMA_MODEL", &cfg.LLM.Model)
	}

	str("FLIGHT_PROVIDER", &cfg.Flights.Provider)
	str("AMADEUS_BASE_URL", &cfg.Flights.BaseURL)
	str("AMADEUS_CLIENT_ID", &cfg.Flights.ClientID)
	str("AMADEUS_CLIENT_SECRET", &cfg.Flights.ClientSecret)
	str("FLIGHTS_CACHE_DIR", &cfg.Flights.CacheDir)

	if v, ok := lookup("SCRAPER_FEED_URLS"); ok && v != "" {
		cfg.Scraper.FeedURLs = splitList(v)
	}
	if v, ok := lookup("SCRAPER_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Scraper.Enabled = b
		}
	}

	str("SUPABASE_JWT_SECRET", &cfg.Auth.JWTSecret)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_DIR", &cfg.Logging.LogDir)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
