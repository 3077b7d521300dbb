// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.MetricsEnabled())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "openai", cfg.LLM.Backend)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.InDelta(t, 0.3, *cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, "mock", cfg.Flights.Provider)
	assert.Equal(t, "BRL", cfg.Flights.Currency)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scraper.PostDelay)
	assert.Equal(t, 50000, cfg.Scraper.MaxContentBytes)
	assert.Equal(t, "America/Sao_Paulo", cfg.Scraper.TimeZone)
}

func TestApplyEnv_Overrides(t *testing.T) {
	var cfg Config
	applyEnv(&cfg, envFrom(map[string]string{
		"FLYWISE_PORT":          "9090",
		"DATABASE_URL":          "postgres://u:p@db:5432/flywise",
		"OPENAI_API_KEY":        "'sk-test'",
		"AMADEUS_CLIENT_ID":     "id",
		"AMADEUS_CLIENT_SECRET": "secret",
		"SCRAPER_FEED_URLS":     "https://a.example/feed, https://b.example/feed",
		"SCRAPER_ENABLED":       "true",
		"SUPABASE_JWT_SECRET":   "jwt",
		"LLM_TEMPERATURE":       "0",
	}))
	cfg = applyDefaults(cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver, "driver inferred from DSN")
	assert.Equal(t, "sk-test", cfg.LLM.APIKey, "quotes are stripped")
	assert.Equal(t, "amadeus", cfg.Flights.Provider, "credentials select amadeus")
	assert.Equal(t, []string{"https://a.example/feed", "https://b.example/feed"}, cfg.Scraper.FeedURLs)
	assert.True(t, cfg.Scraper.Enabled)
	assert.Equal(t, "jwt", cfg.Auth.JWTSecret)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Zero(t, *cfg.LLM.Temperature, "explicit zero is kept")
}

func TestApplyEnv_OllamaVariablesOnlyForOllama(t *testing.T) {
	env := map[string]string{
		"OLLAMA_BASE_URL": "http://ollama:11434",
		"OLLAMA_MODEL":    "qwen2.5",
	}

	var openai Config
	applyEnv(&openai, envFrom(env))
	assert.Empty(t, openai.LLM.BaseURL)

	env["LLM_BACKEND_TYPE"] = "ollama"
	var ollama Config
	applyEnv(&ollama, envFrom(env))
	assert.Equal(t, "http://ollama:11434", ollama.LLM.BaseURL)
	assert.Equal(t, "qwen2.5", ollama.LLM.Model)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg := Default()
		cfg.LLM.APIKey = "sk-test"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("openai needs key", func(t *testing.T) {
		cfg := base()
		cfg.LLM.APIKey = ""
		assert.NoError(t, cfg.Validate())
		assert.ErrorContains(t, cfg.ValidateLLM(), "OPENAI_API_KEY")
	})

	t.Run("ollama needs base url", func(t *testing.T) {
		cfg := base()
		cfg.LLM.Backend = "ollama"
		assert.ErrorContains(t, cfg.ValidateLLM(), "OLLAMA_BASE_URL")
		cfg.LLM.BaseURL = "http://localhost:11434"
		assert.NoError(t, cfg.ValidateLLM())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := base()
		cfg.Database.Driver = "mysql"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad feed url", func(t *testing.T) {
		cfg := base()
		cfg.Scraper.FeedURLs = []string{"not a url"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad time zone", func(t *testing.T) {
		cfg := base()
		cfg.Scraper.TimeZone = "Mars/Olympus"
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flywise.yaml")
	content := `
server:
  port: 7000
  enable_metrics: false
llm:
  api_key: sk-file
  max_tokens: 300
  temperature: 0
flights:
  provider: mock
scraper:
  interval: 2h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.False(t, cfg.Server.MetricsEnabled())
	assert.Equal(t, 300, cfg.LLM.MaxTokens)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Zero(t, *cfg.LLM.Temperature)
	assert.Equal(t, 2*time.Hour, cfg.Scraper.Interval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
