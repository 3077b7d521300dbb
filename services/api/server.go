// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api assembles the FlyWise HTTP server.
//
// # Description
//
// New opens every backing component from a Config: the database, the LLM
// backend, the flight provider with its Badger cache, the strategy service
// and, when enabled, the promotions scraper scheduler. Serve runs the HTTP
// server until its context is cancelled and then shuts down gracefully.
//
// # Lifecycle
//
//	srv, err := api.New(cfg, api.AuthOptions(cfg.Auth))
//	if err != nil { ... }
//	defer srv.Close()
//	err = srv.Run(ctx) // returns after SIGINT/SIGTERM cancels ctx
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/flywise/pkg/config"
	"github.com/AleutianAI/flywise/pkg/extensions"
	"github.com/AleutianAI/flywise/services/api/observability"
	"github.com/AleutianAI/flywise/services/api/routes"
	"github.com/AleutianAI/flywise/services/cache"
	"github.com/AleutianAI/flywise/services/flights"
	"github.com/AleutianAI/flywise/services/llm"
	"github.com/AleutianAI/flywise/services/scraper"
	"github.com/AleutianAI/flywise/services/store"
	"github.com/AleutianAI/flywise/services/strategy"
)

const shutdownTimeout = 15 * time.Second

// Server owns the HTTP server and the components behind it.
type Server struct {
	cfg            config.Config
	store          *store.Store
	cache          *cache.Cache
	scheduler      *scraper.Scheduler
	router         *gin.Engine
	shutdownTracer func(context.Context)
}

// AuthOptions selects the JWT provider when a secret is configured and the
// local no-op provider otherwise.
func AuthOptions(cfg config.AuthConfig) extensions.ServiceOptions {
	opts := extensions.DefaultOptions()
	if cfg.JWTSecret != "" {
		opts = opts.WithAuth(extensions.NewJWTAuthProvider(cfg.JWTSecret, cfg.Audience))
	}
	return opts
}

// New builds a Server. Metrics register on reg; pass nil for the default
// registry. Tracing is enabled only when cfg.Server.OTelEndpoint is set.
func New(ctx context.Context, cfg config.Config, opts extensions.ServiceOptions,
	reg prometheus.Registerer) (_ *Server, err error) {

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &Server{cfg: cfg}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if cfg.Server.OTelEndpoint != "" {
		s.shutdownTracer, err = initTracer(ctx, cfg.Server.OTelEndpoint)
		if err != nil {
			return nil, err
		}
		slog.Info("Tracing enabled", "endpoint", cfg.Server.OTelEndpoint)
	}

	s.store, err = store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err = s.store.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	llmClient, err := llm.NewFromConfig(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	cacheCfg := cache.DefaultConfig(cfg.Flights.CacheDir)
	cacheCfg.Logger = slog.Default()
	s.cache, err = cache.Open(cacheCfg)
	if err != nil {
		return nil, err
	}
	provider, err := flights.NewFromConfig(cfg.Flights, s.cache)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Scraper.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", cfg.Scraper.TimeZone, err)
	}
	svc := strategy.NewService(s.store, llmClient, strategy.Config{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Location:    loc,
	})

	if cfg.Scraper.Enabled {
		runner, rerr := scraper.NewRunner(cfg.Scraper, s.store)
		if rerr != nil {
			return nil, rerr
		}
		s.scheduler = scraper.NewScheduler(runner, cfg.Scraper.Interval)
	}

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	if s.shutdownTracer != nil {
		s.router.Use(otelgin.Middleware(ServiceName))
	}
	routes.SetupRoutes(s.router, routes.Dependencies{
		DB:             s.store,
		Strategy:       svc,
		Strategies:     s.store,
		Searches:       s.store,
		Promotions:     s.store,
		Flights:        provider,
		Metrics:        observability.NewMetrics(reg),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		EnableMetrics:  cfg.Server.MetricsEnabled(),
	}, opts)

	slog.Info("Server configured",
		"db_driver", cfg.Database.Driver,
		"llm_backend", cfg.LLM.Backend,
		"llm_model", cfg.LLM.Model,
		"flight_provider", provider.Name(),
		"scraper", cfg.Scraper.Enabled)
	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured port and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then stops the
// scraper scheduler and drains in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Server.RequestTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			return err
		}
		defer s.scheduler.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("FlyWise API listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down FlyWise API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Close releases the database, cache and tracer. Safe to call on a partly
// built Server.
func (s *Server) Close() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			slog.Warn("Failed to close cache", "error", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}
	if s.shutdownTracer != nil {
		s.shutdownTracer(context.Background())
	}
}
