// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flywise/pkg/extensions"
	"github.com/AleutianAI/flywise/services/api/middleware"
	"github.com/AleutianAI/flywise/services/api/observability"
	"github.com/AleutianAI/flywise/services/flights"
	"github.com/AleutianAI/flywise/services/store"
	"github.com/AleutianAI/flywise/services/strategy"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// withUser marks the request as coming from userID; "" means anonymous.
func withUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetAuthInfo(c, &extensions.AuthInfo{UserID: userID, Anonymous: userID == ""})
		c.Next()
	}
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// =============================================================================
// HealthCheck
// =============================================================================

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		status int
		body   string
	}{
		{"no database", nil, http.StatusOK, `{"status":"ok"}`},
		{"database up", pingerFunc(func(context.Context) error { return nil }), http.StatusOK, `{"status":"ok"}`},
		{"database down", pingerFunc(func(context.Context) error { return errors.New("refused") }),
			http.StatusServiceUnavailable, `{"status":"degraded","database":"unreachable"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", HealthCheck(tt.db))
			w := do(r, http.MethodGet, "/health", "")
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

// =============================================================================
// Strategy
// =============================================================================

type fakeGenerator struct {
	mu   sync.Mutex
	got  []strategy.Request
	resp *strategy.Response
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, req strategy.Request) (*strategy.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, req)
	if req.FlightID <= 0 {
		return nil, strategy.ErrMissingFlightID
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func strategyRouter(gen StrategyGenerator, userID string, m *observability.Metrics) *gin.Engine {
	r := gin.New()
	r.POST("/v1/strategy", withUser(userID), HandleStrategy(gen, m))
	return r
}

func TestHandleStrategy_Success(t *testing.T) {
	gen := &fakeGenerator{resp: &strategy.Response{
		OK:         true,
		Strategy:   strategy.Result{ProgramaRecomendado: "Smiles", Steps: []string{"Transfira"}},
		TokensUsed: 812,
	}}
	m := observability.NewMetrics(prometheus.NewRegistry())

	w := do(strategyRouter(gen, "", m), http.MethodPost, "/v1/strategy", `{"flightId":"42","userId":"body-user"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, true, got["ok"])
	assert.Equal(t, float64(812), got["tokens_used"])
	assert.Equal(t, "Smiles", got["strategy"].(map[string]any)["programa_recomendado"])

	require.Len(t, gen.got, 1)
	assert.Equal(t, strategy.Request{FlightID: 42, UserID: "body-user"}, gen.got[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("strategy", "success")))
}

func TestHandleStrategy_AuthenticatedUserWins(t *testing.T) {
	gen := &fakeGenerator{resp: &strategy.Response{OK: true}}
	w := do(strategyRouter(gen, "token-user", nil), http.MethodPost, "/v1/strategy", `{"flightId":7,"userId":"body-user"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "token-user", gen.got[0].UserID)
}

func TestHandleStrategy_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		want   string
		code   observability.ErrorCode
	}{
		{"missing flight id", `{}`, nil, http.StatusBadRequest, `{"error":"flightId required"}`, observability.ErrorCodeValidation},
		{"empty body", "", nil, http.StatusBadRequest, `{"error":"flightId required"}`, observability.ErrorCodeValidation},
		{"empty string id", `{"flightId":""}`, nil, http.StatusBadRequest, `{"error":"flightId required"}`, observability.ErrorCodeValidation},
		{"not found", `{"flightId":9}`, strategy.ErrFlightNotFound, http.StatusNotFound, `{"error":"Flight not found"}`, observability.ErrorCodeNotFound},
		{"llm failure", `{"flightId":9}`, fmt.Errorf("%w: %w", strategy.ErrGeneration, errors.New("quota")),
			http.StatusInternalServerError, `{"error":"strategy generation failed: quota"}`, observability.ErrorCodeLLMError},
		{"storage failure", `{"flightId":9}`, errors.New("failed to load flight: boom"),
			http.StatusInternalServerError, `{"error":"failed to load flight: boom"}`, observability.ErrorCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := observability.NewMetrics(prometheus.NewRegistry())
			w := do(strategyRouter(&fakeGenerator{err: tt.err}, "", m), http.MethodPost, "/v1/strategy", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.StrategyErrorsTotal.WithLabelValues(string(tt.code))))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("strategy", "error")))
		})
	}
}

func TestHandleStrategy_MalformedBody(t *testing.T) {
	gen := &fakeGenerator{}
	w := do(strategyRouter(gen, "", nil), http.MethodPost, "/v1/strategy", `{"flightId":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
	assert.Empty(t, gen.got)
}

type fakeStrategyStore struct {
	list      []store.Strategy
	listErr   error
	deleteErr error
	gotUser   string
	gotLimit  int
	gotID     int64
}

func (f *fakeStrategyStore) ListStrategies(_ context.Context, userID string, limit int) ([]store.Strategy, error) {
	f.gotUser, f.gotLimit = userID, limit
	return f.list, f.listErr
}

func (f *fakeStrategyStore) DeleteStrategy(_ context.Context, userID string, id int64) error {
	f.gotUser, f.gotID = userID, id
	return f.deleteErr
}

func TestListStrategies(t *testing.T) {
	st := &fakeStrategyStore{list: []store.Strategy{{ID: 3, UserID: "u1", FlightID: 42}}}
	r := gin.New()
	r.GET("/v1/strategies", withUser("u1"), ListStrategies(st, nil))

	w := do(r, http.MethodGet, "/v1/strategies", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", st.gotUser)
	assert.Equal(t, defaultStrategyLimit, st.gotLimit)

	var got struct {
		Count      int              `json:"count"`
		Strategies []store.Strategy `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, int64(42), got.Strategies[0].FlightID)

	do(r, http.MethodGet, "/v1/strategies?limit=1000", "")
	assert.Equal(t, maxStrategyLimit, st.gotLimit)

	w = do(r, http.MethodGet, "/v1/strategies?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListStrategies_EmptyAndError(t *testing.T) {
	r := gin.New()
	r.GET("/empty", withUser("u1"), ListStrategies(&fakeStrategyStore{}, nil))
	r.GET("/broken", withUser("u1"), ListStrategies(&fakeStrategyStore{listErr: errors.New("db down")}, nil))

	w := do(r, http.MethodGet, "/empty", "")
	assert.JSONEq(t, `{"ok":true,"count":0,"strategies":[]}`, w.Body.String())

	w = do(r, http.MethodGet, "/broken", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"failed to list strategies"}`, w.Body.String())
}

func TestDeleteStrategy(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"deleted", "/v1/strategies/5", nil, http.StatusOK},
		{"not found", "/v1/strategies/5", store.ErrNotFound, http.StatusNotFound},
		{"bad id", "/v1/strategies/abc", nil, http.StatusBadRequest},
		{"zero id", "/v1/strategies/0", nil, http.StatusBadRequest},
		{"storage failure", "/v1/strategies/5", errors.New("locked"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &fakeStrategyStore{deleteErr: tt.err}
			r := gin.New()
			r.DELETE("/v1/strategies/:id", withUser("u1"), DeleteStrategy(st, nil))
			w := do(r, http.MethodDelete, tt.path, "")
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"ok":true,"deleted_id":5}`, w.Body.String())
				assert.Equal(t, int64(5), st.gotID)
				assert.Equal(t, "u1", st.gotUser)
			}
		})
	}
}

// =============================================================================
// Flights
// =============================================================================

type fakeProvider struct {
	airports  []flights.Airport
	offers    []flights.FlightOffer
	err       error
	gotParams flights.SearchParams
	calls     int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) SearchAirports(_ context.Context, _ string) ([]flights.Airport, error) {
	f.calls++
	return f.airports, f.err
}

func (f *fakeProvider) SearchFlights(_ context.Context, p flights.SearchParams) ([]flights.FlightOffer, error) {
	f.calls++
	f.gotParams = p
	return f.offers, f.err
}

type fakeSearchStore struct {
	busca *store.Busca
	rows  []store.ResultadoVoo
	err   error
}

func (f *fakeSearchStore) CreateSearch(_ context.Context, busca *store.Busca, results []store.ResultadoVoo) error {
	if f.err != nil {
		return f.err
	}
	busca.ID = 77
	for i := range results {
		results[i].ID = int64(100 + i)
		results[i].BuscaID = busca.ID
	}
	f.busca, f.rows = busca, results
	return nil
}

func sampleOffers() []flights.FlightOffer {
	return []flights.FlightOffer{
		{ID: "1", Companhia: "Air Canada", CarrierCode: "AC", PrecoBRL: 2500, Origem: "GRU", Destino: "JFK"},
		{ID: "2", Companhia: "Azul", CarrierCode: "AD", PrecoBRL: 1800, Origem: "GRU", Destino: "JFK"},
		{ID: "3", Companhia: "LATAM", CarrierCode: "LA", PrecoBRL: 2100, Origem: "GRU", Destino: "JFK"},
	}
}

const searchBody = `{"origem":"gru","destino":"jfk","data_ida":"2026-04-01","programas":["Smiles"],
	"bagagem":"1 mala","user_miles":{"Smiles":90000}}`

func TestSearchAirports(t *testing.T) {
	p := &fakeProvider{airports: []flights.Airport{{IATACode: "GRU", Label: "São Paulo (GRU) — BR"}}}
	r := gin.New()
	r.GET("/v1/airports", SearchAirports(p, nil))

	w := do(r, http.MethodGet, "/v1/airports?keyword=s", "")
	assert.JSONEq(t, `{"ok":true,"data":[]}`, w.Body.String())
	assert.Zero(t, p.calls)

	w = do(r, http.MethodGet, "/v1/airports?keyword=sao", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"iataCode":"GRU"`)
	assert.Equal(t, 1, p.calls)
}

func TestSearchAirports_ProviderErrors(t *testing.T) {
	r := gin.New()
	r.GET("/unconfigured", SearchAirports(&fakeProvider{err: flights.ErrNotConfigured}, nil))
	r.GET("/down", SearchAirports(&fakeProvider{err: errors.New("timeout")}, nil))

	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/unconfigured?keyword=rio", "").Code)
	assert.Equal(t, http.StatusBadGateway, do(r, http.MethodGet, "/down?keyword=rio", "").Code)
}

func TestSearchFlights_AnonymousFiltersByProgram(t *testing.T) {
	p := &fakeProvider{offers: sampleOffers()}
	st := &fakeSearchStore{}
	r := gin.New()
	r.POST("/v1/flights/search", withUser(""), SearchFlights(p, st, clock, nil))

	w := do(r, http.MethodPost, "/v1/flights/search", searchBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "GRU", p.gotParams.Origin)
	assert.Equal(t, "JFK", p.gotParams.Destination)
	assert.Equal(t, 1, p.gotParams.Adults)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "fake", got["provider"])
	assert.Equal(t, float64(2), got["count"]) // Azul does not take Smiles
	assert.NotContains(t, got, "busca_id")
	assert.Nil(t, st.busca)
}

func TestSearchFlights_SavesForUser(t *testing.T) {
	p := &fakeProvider{offers: sampleOffers()}
	st := &fakeSearchStore{}
	r := gin.New()
	r.POST("/v1/flights/search", withUser("u1"), SearchFlights(p, st, clock, nil))

	w := do(r, http.MethodPost, "/v1/flights/search", searchBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got struct {
		SearchID *int64 `json:"busca_id"`
		Results  []struct {
			ID        string `json:"id"`
			Companhia string `json:"companhia"`
			ResultID  *int64 `json:"result_id"`
		} `json:"resultados"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.SearchID)
	assert.Equal(t, int64(77), *got.SearchID)
	require.Len(t, got.Results, 2)
	assert.Equal(t, int64(100), *got.Results[0].ResultID)
	assert.Equal(t, int64(101), *got.Results[1].ResultID)

	require.NotNil(t, st.busca)
	assert.Equal(t, "u1", st.busca.UserID)
	assert.Equal(t, "1 mala", st.busca.Bagagem)
	assert.Equal(t, map[string]int{"Smiles": 90000}, st.busca.UserMiles)
	assert.Equal(t, "Air Canada (AC)", st.rows[0].Companhia)
}

func TestSearchFlights_SaveFailureStillReturns(t *testing.T) {
	p := &fakeProvider{offers: sampleOffers()}
	r := gin.New()
	r.POST("/v1/flights/search", withUser("u1"), SearchFlights(p, &fakeSearchStore{err: errors.New("disk full")}, clock, nil))

	w := do(r, http.MethodPost, "/v1/flights/search", searchBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "busca_id")
	assert.NotContains(t, w.Body.String(), "result_id")
}

func TestSearchFlights_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"origem":`, "invalid request body"},
		{"bad origin", `{"origem":"GR1","destino":"JFK","data_ida":"2026-04-01"}`, "invalid origem (iata)"},
		{"same airports", `{"origem":"GRU","destino":"gru","data_ida":"2026-04-01"}`, "invalid destino (nefield)"},
		{"past date", `{"origem":"GRU","destino":"JFK","data_ida":"2026-03-01"}`, "in the past"},
		{"bad cabin", `{"origem":"GRU","destino":"JFK","data_ida":"2026-04-01","cabine":"lounge"}`, "invalid cabine (oneof)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{}
			r := gin.New()
			r.POST("/s", SearchFlights(p, nil, clock, nil))
			w := do(r, http.MethodPost, "/s", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
			assert.Zero(t, p.calls)
		})
	}
}

func TestSearchFlights_ProviderError(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	r := gin.New()
	r.POST("/s", SearchFlights(&fakeProvider{err: errors.New("INVALID DATE")}, nil, clock, m))

	w := do(r, http.MethodPost, "/s", searchBody)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"INVALID DATE"}`, w.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("flights_search", "error")))
}

// =============================================================================
// Catalog
// =============================================================================

type fakePromotions struct {
	promos   []store.Promocao
	err      error
	programs []string
	now      time.Time
}

func (f *fakePromotions) ActivePromotions(_ context.Context, now time.Time, programs []string, limit int) ([]store.Promocao, error) {
	f.now, f.programs = now, programs
	return f.promos, f.err
}

func TestListPromotions(t *testing.T) {
	st := &fakePromotions{promos: []store.Promocao{{ID: 1, Titulo: "Smiles 100% bônus", URL: "https://x/1"}}}
	r := gin.New()
	r.GET("/v1/promotions", ListPromotions(st, clock, nil))

	w := do(r, http.MethodGet, "/v1/promotions?program=Smiles,%20Livelo&program=Aeroplan", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Smiles", "Livelo", "Aeroplan"}, st.programs)
	assert.Equal(t, fixedNow, st.now)
	assert.Contains(t, w.Body.String(), `"count":1`)

	do(r, http.MethodGet, "/v1/promotions", "")
	assert.Nil(t, st.programs)
}

func TestListPromotions_Error(t *testing.T) {
	r := gin.New()
	r.GET("/v1/promotions", ListPromotions(&fakePromotions{err: errors.New("db")}, clock, nil))
	w := do(r, http.MethodGet, "/v1/promotions", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListPrograms(t *testing.T) {
	r := gin.New()
	r.GET("/v1/programs", ListPrograms(nil))

	w := do(r, http.MethodGet, "/v1/programs?airline=ac", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"airline":"AC","name":"Air Canada","programs":["Smiles","Aeroplan","Livelo"]}`, w.Body.String())

	w = do(r, http.MethodGet, "/v1/programs", "")
	var got struct {
		Programs []string `json:"programs"`
		Top      []string `json:"top"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Programs, 16)
	assert.Len(t, got.Top, 10)
}
