// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scraper collects loyalty promotions from blog feeds.
//
// # Description
//
// A run removes expired promotions, reads the configured RSS feeds, keeps
// the posts published today, extracts each article, classifies it and
// upserts it by URL. Posts are fetched one at a time with a fixed delay
// between them. A failing post is counted and skipped.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/flywise/pkg/config"
	"github.com/AleutianAI/flywise/services/store"
)

const untitled = "Sem título"

// PromotionStore is the storage a run writes to.
type PromotionStore interface {
	DeleteExpiredPromotions(ctx context.Context, now time.Time) (int64, error)
	UpsertPromotion(ctx context.Context, p *store.Promocao) error
}

// RunResult summarizes one run.
type RunResult struct {
	Expired int64
	Found   int
	Saved   int
	Failed  int
	Start   time.Time
	End     time.Time
}

// Duration is End minus Start.
func (r RunResult) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Runner performs scrape runs.
type Runner struct {
	cfg     config.ScraperConfig
	store   PromotionStore
	client  *http.Client
	loc     *time.Location
	limiter *rate.Limiter
	now     func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithHTTPClient replaces the default 30 second client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Runner) { r.client = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner validates cfg and builds a Runner.
//
// # Inputs
//
//   - cfg: Feed URLs, source name, delay, content cap and time zone.
//   - st: Promotion storage.
//   - opts: Optional HTTP client and clock.
//
// # Outputs
//
//   - *Runner: Ready to Run.
//   - error: Non-nil when no feed is configured or the time zone is unknown.
func NewRunner(cfg config.ScraperConfig, st PromotionStore, opts ...Option) (*Runner, error) {
	if len(cfg.FeedURLs) == 0 {
		return nil, errors.New("scraper: at least one feed URL is required")
	}
	tz := cfg.TimeZone
	if tz == "" {
		tz = "America/Sao_Paulo"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scraper: invalid time zone %q: %w", tz, err)
	}

	r := &Runner{
		cfg:    cfg,
		store:  st,
		client: &http.Client{Timeout: 30 * time.Second},
		loc:    loc,
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}

	limit := rate.Inf
	if cfg.PostDelay > 0 {
		limit = rate.Every(cfg.PostDelay)
	}
	r.limiter = rate.NewLimiter(limit, 1)
	return r, nil
}

// Run performs one scrape.
//
// # Description
//
// Expired promotions are removed first; a failure there is logged and the
// run continues. Feeds that fail are skipped. The run fails only when every
// feed fails or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (RunResult, error) {
	res := RunResult{Start: r.now()}

	slog.Info("Scraper run starting",
		"feeds", len(r.cfg.FeedURLs),
		"local_time", res.Start.In(r.loc).Format("02/01/2006 15:04:05"))

	expired, err := r.store.DeleteExpiredPromotions(ctx, res.Start)
	if err != nil {
		slog.Warn("Failed to delete expired promotions", "error", err)
	} else {
		res.Expired = expired
		promotionsExpired.Add(float64(expired))
		if expired > 0 {
			slog.Info("Removed expired promotions", "count", expired)
		}
	}

	items, err := r.todaysItems(ctx, res.Start)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		res.End = r.now()
		return res, err
	}
	res.Found = len(items)
	if len(items) == 0 {
		slog.Info("No posts published today")
		runsTotal.WithLabelValues("success").Inc()
		res.End = r.now()
		return res, nil
	}

	for i, it := range items {
		if err := r.limiter.Wait(ctx); err != nil {
			runsTotal.WithLabelValues("cancelled").Inc()
			res.End = r.now()
			return res, fmt.Errorf("scraper run interrupted: %w", err)
		}
		if err := r.processItem(ctx, it); err != nil {
			res.Failed++
			postsTotal.WithLabelValues("failed").Inc()
			slog.Warn("Failed to process post", "index", i+1, "total", len(items), "url", it.Link, "error", err)
			continue
		}
		res.Saved++
		postsTotal.WithLabelValues("saved").Inc()
	}

	runsTotal.WithLabelValues("success").Inc()
	res.End = r.now()
	slog.Info("Scraper run completed",
		"saved", res.Saved,
		"found", res.Found,
		"failed", res.Failed,
		"expired", res.Expired,
		"duration_ms", res.Duration().Milliseconds())
	return res, nil
}

// todaysItems merges today's posts from every feed, deduplicated by link.
func (r *Runner) todaysItems(ctx context.Context, now time.Time) ([]FeedItem, error) {
	var (
		out    []FeedItem
		seen   = make(map[string]bool)
		failed int
	)
	for _, url := range r.cfg.FeedURLs {
		items, err := FetchFeed(ctx, r.client, url)
		if err != nil {
			failed++
			slog.Warn("Failed to read feed", "feed", url, "error", err)
			continue
		}
		for _, it := range PublishedOn(items, now, r.loc) {
			if seen[it.Link] {
				continue
			}
			seen[it.Link] = true
			out = append(out, it)
		}
	}
	if failed == len(r.cfg.FeedURLs) {
		return nil, fmt.Errorf("all %d feeds failed", failed)
	}
	return out, nil
}

func (r *Runner) processItem(ctx context.Context, it FeedItem) error {
	article, err := FetchArticle(ctx, r.client, it.Link, r.cfg.MaxContentBytes)
	if err != nil {
		return err
	}

	title := article.Title
	if title == "" {
		title = it.Title
	}
	if title == "" {
		title = untitled
	}

	ref := it.Published
	if ref.IsZero() {
		ref = r.now()
	}
	c := Classify(title, article.Content, ref, r.loc)

	p := &store.Promocao{
		Titulo:     title,
		Conteudo:   article.Content,
		URL:        it.Link,
		Fonte:      r.cfg.Source,
		Programa:   c.Program,
		Tipo:       c.Type,
		BonusPct:   c.BonusPct,
		Parceiro:   c.Partner,
		ValidUntil: c.ValidUntil,
	}
	if err := r.store.UpsertPromotion(ctx, p); err != nil {
		return fmt.Errorf("failed to save promotion: %w", err)
	}

	attrs := []any{"title", truncate(title, 60), "program", c.Program, "type", c.Type}
	if c.ValidUntil != nil {
		attrs = append(attrs, "expires", c.ValidUntil.In(r.loc).Format("02/01/2006 15:04"))
	}
	slog.Info("Promotion saved", attrs...)
	return nil
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
