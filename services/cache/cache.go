// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides a BadgerDB-backed byte cache with per-entry TTL.
//
// Flight provider responses (airport lookups, flight offers) are cached here
// so repeated searches stay inside the provider's rate limits. Entries expire
// through Badger's native TTL; a sweeper reports aged-out quotes per
// namespace and reclaims value-log space for persistent caches.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for a cache instance.
type Config struct {
	// Dir is the directory for Badger files. Ignored when InMemory is true.
	Dir string

	// InMemory keeps everything in RAM. An empty Dir also selects it.
	InMemory bool

	// Logger receives sweep results and Badger warnings. Nil disables them.
	Logger *slog.Logger

	// SweepInterval is how often expired quotes are counted and the value
	// log is compacted. 0 disables the sweeper.
	SweepInterval time.Duration

	// GCDiscardRatio is the minimum garbage ratio before GC rewrites a file.
	GCDiscardRatio float64
}

// DefaultConfig returns a persistent configuration rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		SweepInterval:  10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// badgerLogger forwards Badger's printf-style logs to slog. Badger's info
// chatter about compactions is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) log(level slog.Level, format string, args []interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	l.logger.Log(context.Background(), level, msg, slog.String("component", "badger"))
}

func (l *badgerLogger) Errorf(f string, a ...interface{})   { l.log(slog.LevelError, f, a) }
func (l *badgerLogger) Warningf(f string, a ...interface{}) { l.log(slog.LevelWarn, f, a) }
func (l *badgerLogger) Infof(f string, a ...interface{})    { l.log(slog.LevelDebug, f, a) }
func (l *badgerLogger) Debugf(string, ...interface{})       {}

// Cache is a TTL key/value cache.
//
// # Thread Safety
//
// Safe for concurrent use.
type Cache struct {
	db           *badger.DB
	inMemory     bool
	discardRatio float64
	sweeper      *sweeper
	closeMu      sync.Once
	closeErr     error
}

// Open creates or opens a cache.
//
// # Inputs
//
//   - cfg: Dir is created when missing. Empty Dir means in-memory.
//
// # Outputs
//
//   - *Cache: Caller must call Close.
//   - error: Directory or Badger open failure.
func Open(cfg Config) (*Cache, error) {
	inMemory := cfg.InMemory || cfg.Dir == ""

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(false).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}

	ratio := cfg.GCDiscardRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	c := &Cache{db: db, inMemory: inMemory, discardRatio: ratio}
	if cfg.SweepInterval > 0 {
		c.sweeper = newSweeper(c, cfg.SweepInterval, cfg.Logger)
		c.sweeper.start()
	}
	return c, nil
}

// OpenInMemory opens an in-memory cache for tests and cache-less setups.
func OpenInMemory() (*Cache, error) {
	return Open(Config{InMemory: true})
}

// Get returns the cached bytes and whether the key was present.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return out, true, nil
}

// Set stores value under key. A non-positive ttl stores without expiry.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (c *Cache) Delete(key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// GetJSON decodes the cached value into dst. Returns false when absent.
func (c *Cache) GetJSON(key string, dst any) (bool, error) {
	raw, ok, err := c.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes value as JSON and stores it.
func (c *Cache) SetJSON(key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.Set(key, raw, ttl)
}

// Close stops the sweeper and closes Badger. Safe to call more than once.
func (c *Cache) Close() error {
	c.closeMu.Do(func() {
		if c.sweeper != nil {
			c.sweeper.stop()
		}
		c.closeErr = c.db.Close()
	})
	return c.closeErr
}

// SweepStats summarizes one pass over the cache, keyed by namespace
// ("amadeus:airports", "amadeus:offers").
type SweepStats struct {
	Live    map[string]int
	Expired map[string]int
	// Compacted is the number of value log files GC rewrote.
	Compacted int
}

// Namespace returns the first two colon-separated parts of key.
func Namespace(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 {
		return parts[0]
	}
	return parts[0] + ":" + parts[1]
}

// Sweep counts live and expired quotes per namespace and, for persistent
// caches, runs value log GC until there is nothing left to rewrite.
//
// # Description
//
// Badger hides expired entries from reads but keeps them on disk until
// compaction. Sweep reports how many quotes have aged out since the last
// compaction so operators can size the TTLs, then reclaims the space.
//
// # Outputs
//
//   - SweepStats: Per-namespace counts.
//   - error: Iteration or GC failure. ErrNoRewrite is not an error.
func (c *Cache) Sweep() (SweepStats, error) {
	stats := SweepStats{Live: map[string]int{}, Expired: map[string]int{}}
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.AllVersions = true
		it := txn.NewIterator(opts)
		defer it.Close()

		var last []byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if last != nil && string(key) == string(last) {
				continue
			}
			last = item.KeyCopy(last[:0])
			if item.IsDeletedOrExpired() {
				if item.ExpiresAt() > 0 {
					stats.Expired[Namespace(string(key))]++
				}
				continue
			}
			stats.Live[Namespace(string(key))]++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("cache sweep: %w", err)
	}
	if c.inMemory {
		return stats, nil
	}
	for {
		err := c.db.RunValueLogGC(c.discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("cache value log GC: %w", err)
		}
		stats.Compacted++
	}
}

// sweeper calls Cache.Sweep on a ticker until stopped.
type sweeper struct {
	cache    *Cache
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func newSweeper(c *Cache, interval time.Duration, logger *slog.Logger) *sweeper {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sweeper{
		cache:    c,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (s *sweeper) start() { go s.loop() }

// stop waits for the loop to exit. Idempotent.
func (s *sweeper) stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

func (s *sweeper) loop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *sweeper) sweepOnce() {
	stats, err := s.cache.Sweep()
	if err != nil {
		s.logger.Warn("Cache sweep failed", "error", err)
		return
	}
	for ns, n := range stats.Expired {
		s.logger.Info("Evicted expired quotes", "namespace", ns, "count", n, "live", stats.Live[ns])
	}
	if stats.Compacted > 0 {
		s.logger.Debug("Cache value log compacted", "files", stats.Compacted)
	}
}
