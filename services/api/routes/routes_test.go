// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flywise/pkg/extensions"
	"github.com/AleutianAI/flywise/services/api/observability"
	"github.com/AleutianAI/flywise/services/flights"
	"github.com/AleutianAI/flywise/services/llm"
	"github.com/AleutianAI/flywise/services/store"
	"github.com/AleutianAI/flywise/services/strategy"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

type mockLLMClient struct{}

func (m *mockLLMClient) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	return "", nil
}

func (m *mockLLMClient) Complete(_ context.Context, _ llm.CompletionRequest) (llm.Completion, error) {
	return llm.Completion{
		Content:    `{"programa_recomendado":"Smiles","steps":["Emita pela Smiles"]}`,
		Model:      "mock",
		TokensUsed: 600,
	}, nil
}

// newTestServer wires the real store (in-memory SQLite), the strategy
// service and the mock flight provider.
func newTestServer(t *testing.T, opts extensions.ServiceOptions) (*gin.Engine, *store.Store) {
	t.Helper()

	st, err := store.Open(storeConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	now := func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	svc := strategy.NewService(st, &mockLLMClient{}, strategy.Config{Location: time.UTC, Now: now})

	router := gin.New()
	SetupRoutes(router, Dependencies{
		DB:             st,
		Strategy:       svc,
		Strategies:     st,
		Searches:       st,
		Promotions:     st,
		Flights:        flights.NewMockProvider(7, time.UTC),
		Metrics:        observability.NewMetrics(prometheus.NewRegistry()),
		AllowedOrigins: []string{"*"},
		EnableMetrics:  true,
		Now:            now,
	}, opts)
	return router, st
}

func serve(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_RegistersRoutes(t *testing.T) {
	router, _ := newTestServer(t, extensions.DefaultOptions())

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/strategy"},
		{"OPTIONS", "/v1/strategy"},
		{"GET", "/v1/strategies"},
		{"DELETE", "/v1/strategies/:id"},
		{"GET", "/v1/airports"},
		{"POST", "/v1/flights/search"},
		{"GET", "/v1/promotions"},
		{"GET", "/v1/programs"},
	}

	routes := router.Routes()
	for _, e := range expected {
		found := false
		for _, r := range routes {
			if r.Method == e.method && r.Path == e.path {
				found = true
				break
			}
		}
		assert.True(t, found, "route %s %s not registered", e.method, e.path)
	}
}

func TestSetupRoutes_MetricsDisabled(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, Dependencies{}, extensions.DefaultOptions())
	for _, r := range router.Routes() {
		assert.NotEqual(t, "/metrics", r.Path)
	}
}

func TestStrategyPreflight(t *testing.T) {
	router, _ := newTestServer(t, extensions.DefaultOptions())

	w := serve(router, http.MethodOptions, "/v1/strategy", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

// TestSearchThenStrategy runs the main flow: a signed-in user searches,
// picks a result, asks for a strategy and finds it in the history.
func TestSearchThenStrategy(t *testing.T) {
	router, _ := newTestServer(t, extensions.DefaultOptions())

	w := serve(router, http.MethodPost, "/v1/flights/search",
		`{"origem":"GRU","destino":"GIG","data_ida":"2026-04-01","user_miles":{"Smiles":50000}}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var search struct {
		SearchID *int64 `json:"busca_id"`
		Results  []struct {
			ResultID *int64 `json:"result_id"`
		} `json:"resultados"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &search))
	require.NotNil(t, search.SearchID)
	require.NotEmpty(t, search.Results)
	require.NotNil(t, search.Results[0].ResultID)

	flightID := *search.Results[0].ResultID
	w = serve(router, http.MethodPost, "/v1/strategy", `{"flightId":`+jsonInt(flightID)+`}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp strategy.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 600, resp.TokensUsed)
	require.NotNil(t, resp.StrategyID)

	w = serve(router, http.MethodGet, "/v1/strategies", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Strategies []store.Strategy `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Strategies, 1)
	assert.Equal(t, flightID, list.Strategies[0].FlightID)
	assert.Equal(t, *search.SearchID, *list.Strategies[0].BuscaID)

	w = serve(router, http.MethodDelete, "/v1/strategies/"+jsonInt(*resp.StrategyID), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = serve(router, http.MethodDelete, "/v1/strategies/"+jsonInt(*resp.StrategyID), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStrategy_UnknownFlight(t *testing.T) {
	router, _ := newTestServer(t, extensions.DefaultOptions())
	w := serve(router, http.MethodPost, "/v1/strategy", `{"flightId":999}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Flight not found"}`, w.Body.String())
}

func TestOwnerRoutesRequireUser(t *testing.T) {
	opts := extensions.DefaultOptions().WithAuth(extensions.NewJWTAuthProvider("secret", ""))
	router, _ := newTestServer(t, opts)

	w := serve(router, http.MethodGet, "/v1/strategies", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(router, http.MethodGet, "/v1/programs?airline=G3", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodGet, "/v1/programs", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthAndPromotions(t *testing.T) {
	router, st := newTestServer(t, extensions.DefaultOptions())

	valid := time.Date(2026, 3, 20, 23, 59, 59, 0, time.UTC)
	require.NoError(t, st.UpsertPromotion(context.Background(), &store.Promocao{
		Titulo: "Smiles com 100% de bônus", URL: "https://example.com/p1",
		Programa: "Smiles", ValidUntil: &valid,
	}))

	w := serve(router, http.MethodGet, "/health", "", nil)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = serve(router, http.MethodGet, "/v1/promotions?program=Smiles", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = serve(router, http.MethodGet, "/v1/promotions?program=Aeroplan", "", nil)
	assert.Contains(t, w.Body.String(), `"count":0`)
}
