// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists searches, flight results, promotions and strategies.
//
// # Description
//
// A thin repository over gorm. Production runs on PostgreSQL; local runs and
// tests use SQLite through the same code path, so every query here sticks to
// SQL both dialects understand. JSON columns are stored as text with gorm's
// json serializer.
//
// # Thread Safety
//
// Store is safe for concurrent use. *gorm.DB handles its own connection pool.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/AleutianAI/flywise/pkg/config"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the gorm-backed repository.
type Store struct {
	db *gorm.DB
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to the configured database.
//
// # Inputs
//
//   - cfg: Driver is "postgres" or "sqlite"; DSN is passed to the driver as is.
//
// # Outputs
//
//   - *Store: Connected repository. Tables are not created; call Migrate.
//   - error: Unknown driver or connection failure.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(
			slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
			logger.Config{
				SlowThreshold:             500 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite allows a single writer; serialize through one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	slog.Info("Database connected", "driver", cfg.Driver)
	return New(db), nil
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetFlight loads one flight result by id.
func (s *Store) GetFlight(ctx context.Context, id int64) (*ResultadoVoo, error) {
	var row ResultadoVoo
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load flight %d: %w", id, err)
	}
	return &row, nil
}

// activeScope keeps promotions without an expiry or expiring after now.
func activeScope(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("valid_until IS NULL OR valid_until > ?", now.UTC())
	}
}

// ActivePromotions returns active promotions, soonest expiry first and
// promotions without an expiry last.
//
// # Inputs
//
//   - now: Reference time for "active".
//   - programs: When non-empty, only promotions for these programs.
//   - limit: Maximum rows. Zero or negative means no limit.
func (s *Store) ActivePromotions(ctx context.Context, now time.Time, programs []string, limit int) ([]Promocao, error) {
	q := s.db.WithContext(ctx).Scopes(activeScope(now))
	if len(programs) > 0 {
		q = q.Where("programa IN ?", programs)
	}
	q = q.Order("CASE WHEN valid_until IS NULL THEN 1 ELSE 0 END").Order("valid_until ASC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []Promocao
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to query active promotions: %w", err)
	}
	return out, nil
}

// RecentPromotions returns the newest active promotions regardless of program.
func (s *Store) RecentPromotions(ctx context.Context, now time.Time, limit int) ([]Promocao, error) {
	q := s.db.WithContext(ctx).Scopes(activeScope(now)).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Promocao
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to query recent promotions: %w", err)
	}
	return out, nil
}

// LatestUserMiles returns the miles map of the user's most recent search that
// recorded balances. Returns nil without error when there is none.
func (s *Store) LatestUserMiles(ctx context.Context, userID string) (map[string]int, error) {
	var b Busca
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("user_miles IS NOT NULL AND user_miles NOT IN ?", []string{"", "{}", "null"}).
		Order("created_at DESC").Order("id DESC").
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load miles for user %s: %w", userID, err)
	}
	return b.UserMiles, nil
}

// LatestSearchID returns the id of the user's most recent search, or nil.
func (s *Store) LatestSearchID(ctx context.Context, userID string) (*int64, error) {
	var b Busca
	err := s.db.WithContext(ctx).
		Select("id").
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest search for user %s: %w", userID, err)
	}
	return &b.ID, nil
}

// SaveStrategy inserts a strategy and sets its ID.
func (s *Store) SaveStrategy(ctx context.Context, st *Strategy) error {
	if err := s.db.WithContext(ctx).Create(st).Error; err != nil {
		return fmt.Errorf("failed to save strategy: %w", err)
	}
	return nil
}

// ListStrategies returns the user's strategies, newest first.
func (s *Store) ListStrategies(ctx context.Context, userID string, limit int) ([]Strategy, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Strategy
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	return out, nil
}

// DeleteStrategy removes one of the user's strategies. Returns ErrNotFound
// when the id does not exist or belongs to someone else.
func (s *Store) DeleteStrategy(ctx context.Context, userID string, id int64) error {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Strategy{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete strategy %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSearch stores a search and its results in one transaction. Results
// inherit the search id and user id.
func (s *Store) CreateSearch(ctx context.Context, busca *Busca, results []ResultadoVoo) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(busca).Error; err != nil {
			return fmt.Errorf("failed to insert search: %w", err)
		}
		if len(results) == 0 {
			return nil
		}
		for i := range results {
			results[i].BuscaID = busca.ID
			results[i].UserID = busca.UserID
		}
		if err := tx.Create(&results).Error; err != nil {
			return fmt.Errorf("failed to insert %d results: %w", len(results), err)
		}
		return nil
	})
}

// UpsertPromotion inserts a promotion or, when the URL already exists,
// refreshes its mutable columns.
func (s *Store) UpsertPromotion(ctx context.Context, p *Promocao) error {
	if p.URL == "" {
		return errors.New("promotion url is required")
	}
	if p.ValidUntil != nil {
		utc := p.ValidUntil.UTC()
		p.ValidUntil = &utc
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"titulo", "conteudo", "fonte", "valid_until",
			"programa", "tipo", "bonus_pct", "parceiro", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to upsert promotion %s: %w", p.URL, err)
	}
	return nil
}

// DeleteExpiredPromotions removes promotions whose expiry is before now and
// returns how many were removed.
func (s *Store) DeleteExpiredPromotions(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("valid_until IS NOT NULL AND valid_until < ?", now.UTC()).
		Delete(&Promocao{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired promotions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
