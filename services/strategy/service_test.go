// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flywise/pkg/config"
	"github.com/AleutianAI/flywise/services/llm"
	"github.com/AleutianAI/flywise/services/store"
)

type fakeLLM struct {
	mu      sync.Mutex
	content string
	model   string
	tokens  int
	err     error
	reqs    []llm.CompletionRequest
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	c, err := f.Complete(ctx, llm.CompletionRequest{User: prompt})
	return c.Content, err
}

func (f *fakeLLM) Complete(_ context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Content: f.content, Model: f.model, TokensUsed: f.tokens}, nil
}

const sampleAnswer = `{
  "programa_recomendado": "Smiles",
  "motivo": "Smiles tem a melhor tabela para Air Canada.",
  "steps": ["Transfira pontos do Nubank", "Emita no site da Smiles", "Aproveite o bônus de 40%"],
  "milhas_necessarias": 95000,
  "taxas_estimadas_brl": "320",
  "economia_pct": "68%",
  "promocao_ativa": "Smiles +40%",
  "alternativa": null,
  "aviso": null
}`

func newTestService(st Store, client llm.LLMClient) *Service {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewService(st, client, Config{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(&fakeStore{}, &fakeLLM{}, Config{})
	assert.Equal(t, llm.DefaultOpenAIModel, svc.cfg.Model)
	assert.Equal(t, 500, svc.cfg.MaxTokens)
	require.NotNil(t, svc.cfg.Temperature)
	assert.InDelta(t, 0.3, *svc.cfg.Temperature, 1e-6)
	assert.NotNil(t, svc.cfg.Location)
	assert.NotNil(t, svc.cfg.Now)
}

func TestNewService_ZeroTemperatureKept(t *testing.T) {
	client := &fakeLLM{content: sampleAnswer}
	st := &fakeStore{flights: map[int64]*store.ResultadoVoo{42: sampleFlight()}}
	svc := NewService(st, client, Config{Temperature: ptr(float32(0)), Location: time.UTC})

	_, err := svc.Generate(context.Background(), Request{FlightID: 42})
	require.NoError(t, err)
	require.Len(t, client.reqs, 1)
	require.NotNil(t, client.reqs[0].Temperature)
	assert.Zero(t, *client.reqs[0].Temperature)
}

func TestGenerate_Validation(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeLLM{})

	_, err := svc.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrMissingFlightID)

	_, err = svc.Generate(context.Background(), Request{FlightID: 99})
	assert.ErrorIs(t, err, ErrFlightNotFound)
}

func TestGenerate_Anonymous(t *testing.T) {
	st := &fakeStore{
		flights: map[int64]*store.ResultadoVoo{42: sampleFlight()},
		miles:   map[string]int{"Smiles": 95000},
	}
	client := &fakeLLM{content: sampleAnswer, model: "gpt-4o-mini", tokens: 812}
	svc := newTestService(st, client)

	resp, err := svc.Generate(context.Background(), Request{FlightID: 42})
	require.NoError(t, err)

	assert.True(t, resp.OK)
	assert.Equal(t, 812, resp.TokensUsed)
	assert.Nil(t, resp.StrategyID)
	assert.Empty(t, st.saved)
	assert.Equal(t, "Smiles", resp.Strategy.ProgramaRecomendado)

	require.Len(t, client.reqs, 1)
	req := client.reqs[0]
	assert.True(t, req.JSONMode)
	assert.Equal(t, SystemPrompt, req.System)
	assert.Equal(t, 500, req.MaxTokens)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.3, *req.Temperature, 1e-6)
	assert.Contains(t, req.User, "Rota: GRU → JFK | Air Canada (AC)")
	assert.Contains(t, req.User, "Nenhuma promoção ativa no banco.")
	assert.NotContains(t, req.User, "=== SALDO DO USUÁRIO ===", "anonymous requests skip balances")
	assert.Equal(t, []string{"Smiles", "Aeroplan", "Livelo"}, st.gotProgram)
}

func TestGenerate_StoresForUser(t *testing.T) {
	searchID := int64(7)
	st := &fakeStore{
		flights:  map[int64]*store.ResultadoVoo{42: sampleFlight()},
		miles:    map[string]int{"Smiles": 95000, "Livelo": 10000},
		searchID: &searchID,
		active:   []store.Promocao{{Titulo: "Smiles +40%", Programa: "Smiles", BonusPct: 40}},
	}
	client := &fakeLLM{content: "```json\n" + sampleAnswer + "\n```", tokens: 900}
	svc := newTestService(st, client)

	resp, err := svc.Generate(context.Background(), Request{FlightID: 42, UserID: "user-1"})
	require.NoError(t, err)
	require.NotNil(t, resp.StrategyID)
	assert.Equal(t, int64(1), *resp.StrategyID)

	prompt := client.reqs[0].User
	assert.Contains(t, prompt, "=== SALDO DO USUÁRIO ===")
	assert.Contains(t, prompt, "Smiles: 95.000 pts")
	assert.Contains(t, prompt, "1. Smiles +40% bônus — Smiles +40%")

	require.Len(t, st.saved, 1)
	row := st.saved[0]
	assert.Equal(t, "user-1", row.UserID)
	assert.Equal(t, &searchID, row.BuscaID)
	assert.Equal(t, int64(42), row.FlightID)
	assert.Equal(t, []string{"Smiles", "AC", "llm"}, row.Tags)
	assert.Equal(t, "Transfira pontos do Nubank\n\nEmita no site da Smiles\n\nAproveite o bônus de 40%", row.StrategyText)
	require.NotNil(t, row.EconomiaPct)
	assert.Equal(t, 68.0, *row.EconomiaPct)
	require.NotNil(t, row.PrecoEstrategia)
	assert.Equal(t, 320.0, *row.PrecoEstrategia)
	require.NotNil(t, row.PrecoCash)
	assert.Equal(t, 2500.0, *row.PrecoCash)
	assert.Equal(t, "Smiles", row.StructuredResult["programa_recomendado"])
	assert.Equal(t, llm.DefaultOpenAIModel, row.LLMModel, "falls back to configured model")
	assert.Equal(t, 900, row.TokensUsed)
}

func TestGenerate_SaveFailureStillReturns(t *testing.T) {
	st := &fakeStore{
		flights: map[int64]*store.ResultadoVoo{42: sampleFlight()},
		saveErr: errors.New("disk full"),
	}
	svc := newTestService(st, &fakeLLM{content: sampleAnswer})

	resp, err := svc.Generate(context.Background(), Request{FlightID: 42, UserID: "user-1"})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Nil(t, resp.StrategyID)
}

func TestGenerate_LLMError(t *testing.T) {
	st := &fakeStore{flights: map[int64]*store.ResultadoVoo{42: sampleFlight()}}
	svc := newTestService(st, &fakeLLM{err: errors.New("rate limited")})

	_, err := svc.Generate(context.Background(), Request{FlightID: 42, UserID: "user-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Empty(t, st.saved)
}

func TestGenerate_UnparseableAnswer(t *testing.T) {
	st := &fakeStore{flights: map[int64]*store.ResultadoVoo{42: sampleFlight()}}
	svc := newTestService(st, &fakeLLM{content: "desculpe, não consigo"})

	resp, err := svc.Generate(context.Background(), Request{FlightID: 42})
	require.NoError(t, err)
	assert.Empty(t, resp.Strategy.ProgramaRecomendado)
	assert.Equal(t, "desculpe, não consigo", resp.Strategy.Raw)
}

func TestGenerate_WithSQLiteStore(t *testing.T) {
	st, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	busca := &store.Busca{
		UserID:    "user-1",
		Origem:    "GRU",
		Destino:   "JFK",
		UserMiles: map[string]int{"Aeroplan": 150000},
	}
	flight := *sampleFlight()
	flight.ID = 0
	results := []store.ResultadoVoo{flight}
	require.NoError(t, st.CreateSearch(ctx, busca, results))
	flightID := results[0].ID
	require.NotZero(t, flightID)

	client := &fakeLLM{content: sampleAnswer, model: "gpt-4o-mini"}
	svc := newTestService(st, client)

	resp, err := svc.Generate(ctx, Request{FlightID: flightID, UserID: "user-1"})
	require.NoError(t, err)
	require.NotNil(t, resp.StrategyID)
	assert.Contains(t, client.reqs[0].User, "Aeroplan: 150.000 pts ✓ suficiente")

	saved, err := st.ListStrategies(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.NotNil(t, saved[0].BuscaID)
	assert.Equal(t, busca.ID, *saved[0].BuscaID)
}
