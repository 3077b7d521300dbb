// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrSchedulerRunning is returned by Start on a running scheduler.
var ErrSchedulerRunning = errors.New("scheduler is already running")

// Job is one unit of scheduled work. *Runner satisfies it.
type Job interface {
	Run(ctx context.Context) (RunResult, error)
}

// Scheduler runs a Job periodically in the background.
//
// # Description
//
// Uses the ticker + done channel pattern. The first run starts immediately
// on Start; later runs follow the interval. Runs never overlap because they
// execute on the loop goroutine, and RunNow shares the same mutex.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Scheduler struct {
	job      Job
	interval time.Duration

	mu      sync.Mutex
	runMu   sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a stopped scheduler. A non-positive interval defaults
// to six hours.
func NewScheduler(job Job, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Scheduler{job: job, interval: interval}
}

// Start launches the background loop. It stops when Stop is called or ctx
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerRunning
	}
	s.running = true
	s.done = make(chan struct{})

	slog.Info("Scraper scheduler starting", "interval", s.interval.String())

	s.wg.Add(1)
	go s.runLoop(ctx, s.done)
	return nil
}

// Stop signals the loop and waits for an in-flight run to finish. Safe to
// call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	slog.Info("Scraper scheduler stopping")
	close(s.done)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow performs a run on the calling goroutine without affecting the
// schedule.
func (s *Scheduler) RunNow(ctx context.Context) (RunResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.job.Run(ctx)
}

func (s *Scheduler) runLoop(ctx context.Context, done <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.execute(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scraper scheduler stopped (context cancelled)")
			return
		case <-done:
			slog.Info("Scraper scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.execute(ctx)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context) {
	if _, err := s.RunNow(ctx); err != nil {
		slog.Error("Scheduled scrape failed", "error", err)
	}
}
