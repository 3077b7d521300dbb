// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package strategy turns a selected flight into a miles redemption strategy.
//
// # Description
//
// The pipeline loads the flight, compresses it together with matching
// promotions and the user's balances into short text blocks, asks the LLM
// for a JSON answer, parses it leniently and stores the result. Prompts stay
// around a thousand tokens because only the fields the model needs survive
// compression.
//
// # Thread Safety
//
// Service is safe for concurrent use.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/flywise/services/llm"
	"github.com/AleutianAI/flywise/services/store"
)

var (
	// ErrMissingFlightID is returned when the request has no flight id.
	ErrMissingFlightID = errors.New("flightId required")
	// ErrFlightNotFound is returned when the flight row does not exist.
	ErrFlightNotFound = errors.New("flight not found")
	// ErrGeneration wraps failures of the LLM call.
	ErrGeneration = errors.New("strategy generation failed")
)

// Store is the storage the pipeline reads and writes.
type Store interface {
	PromoStore
	MilesStore
	GetFlight(ctx context.Context, id int64) (*store.ResultadoVoo, error)
	LatestSearchID(ctx context.Context, userID string) (*int64, error)
	SaveStrategy(ctx context.Context, st *store.Strategy) error
}

// Config tunes the LLM call.
type Config struct {
	Model     string
	MaxTokens int
	// Temperature defaults to 0.3 when nil. A pointer to 0 is honored.
	Temperature *float32
	// Location renders promotion expiry dates. Defaults to America/Sao_Paulo.
	Location *time.Location
	// Now is the clock used for promotion activity. Defaults to time.Now.
	Now func() time.Time
}

// Request asks for a strategy. UserID is optional; without it nothing is
// stored and the balances block is omitted.
type Request struct {
	FlightID int64
	UserID   string
}

// Response is returned to the caller.
type Response struct {
	OK         bool   `json:"ok"`
	Strategy   Result `json:"strategy"`
	TokensUsed int    `json:"tokens_used"`
	StrategyID *int64 `json:"strategy_id,omitempty"`
}

// Service runs the pipeline.
type Service struct {
	store Store
	llm   llm.LLMClient
	cfg   Config
}

// NewService wires a Service. Zero config values take the defaults
// gpt-4o-mini, 500 tokens and temperature 0.3.
func NewService(st Store, client llm.LLMClient, cfg Config) *Service {
	if cfg.Model == "" {
		cfg.Model = llm.DefaultOpenAIModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Temperature == nil {
		t := float32(0.3)
		cfg.Temperature = &t
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation("America/Sao_Paulo")
		if err != nil {
			loc = time.UTC
		}
		cfg.Location = loc
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{store: st, llm: client, cfg: cfg}
}

// Generate produces a strategy for one flight.
//
// # Description
//
// Promotion and balance lookups run concurrently and never fail the request;
// they degrade to placeholder text. LLM failures are returned. When a user id
// is present the strategy is stored against the user's latest search; a
// storage failure there is logged and the strategy is still returned.
//
// # Inputs
//
//   - ctx: Cancels the storage and LLM calls.
//   - req: FlightID is required.
//
// # Outputs
//
//   - *Response: OK is always true on success.
//   - error: ErrMissingFlightID, ErrFlightNotFound, or a wrapped LLM/storage error.
//
// # Examples
//
//	resp, err := svc.Generate(ctx, strategy.Request{FlightID: 42, UserID: uid})
//	if errors.Is(err, strategy.ErrFlightNotFound) { ... }
func (s *Service) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.FlightID <= 0 {
		return nil, ErrMissingFlightID
	}

	flight, err := s.store.GetFlight(ctx, req.FlightID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrFlightNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load flight: %w", err)
	}

	fc := BuildFlightContext(flight)
	now := s.cfg.Now()

	var (
		promos []PromoContext
		user   *UserContext
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		promos = BuildPromoContext(gctx, s.store, now, s.cfg.Location, fc.Programs)
		return nil
	})
	if req.UserID != "" {
		g.Go(func() error {
			user = BuildUserContext(gctx, s.store, req.UserID, fc.PriceMilesEst)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prompt := BuildPrompt(fc, promos, user)
	slog.Info("Strategy prompt built",
		"flight_id", req.FlightID,
		"approx_tokens", EstimateTokens(prompt),
		"promos", len(promos),
		"has_balances", user != nil)

	completion, err := s.llm.Complete(ctx, llm.CompletionRequest{
		System:      SystemPrompt,
		User:        prompt,
		JSONMode:    true,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	result := ParseResult(completion.Content)
	resp := &Response{OK: true, Strategy: result, TokensUsed: completion.TokensUsed}

	if req.UserID != "" {
		row := s.strategyRow(ctx, req, flight, fc, result, completion)
		if err := s.store.SaveStrategy(ctx, row); err != nil {
			slog.Error("Failed to save strategy", "flight_id", req.FlightID, "user_id", req.UserID, "error", err)
		} else {
			resp.StrategyID = &row.ID
		}
	}
	return resp, nil
}

func (s *Service) strategyRow(ctx context.Context, req Request, flight *store.ResultadoVoo,
	fc FlightContext, result Result, completion llm.Completion) *store.Strategy {

	buscaID, err := s.store.LatestSearchID(ctx, req.UserID)
	if err != nil {
		slog.Warn("Failed to load latest search", "user_id", req.UserID, "error", err)
		buscaID = nil
	}

	model := completion.Model
	if model == "" {
		model = s.cfg.Model
	}

	return &store.Strategy{
		UserID:           req.UserID,
		BuscaID:          buscaID,
		FlightID:         req.FlightID,
		StrategyText:     strings.Join(result.Steps, "\n\n"),
		Tags:             strategyTags(result.ProgramaRecomendado, fc.AirlineIATA),
		EconomiaPct:      result.EconomiaPct.Float(),
		PrecoCash:        flight.PrecoBRL,
		PrecoEstrategia:  result.TaxasEstimadasBRL.Float(),
		StructuredResult: result.Structured,
		LLMModel:         model,
		TokensUsed:       completion.TokensUsed,
	}
}

func strategyTags(program, iata string) []string {
	tags := make([]string, 0, 3)
	for _, t := range []string{program, iata, "llm"} {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
