// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/flywise/pkg/loyalty"
	"github.com/AleutianAI/flywise/services/api/datatypes"
	"github.com/AleutianAI/flywise/services/api/middleware"
	"github.com/AleutianAI/flywise/services/api/observability"
	"github.com/AleutianAI/flywise/services/flights"
	"github.com/AleutianAI/flywise/services/store"
)

// SearchStore persists a search with its results.
type SearchStore interface {
	CreateSearch(ctx context.Context, busca *store.Busca, results []store.ResultadoVoo) error
}

const minAirportKeyword = 2

// SearchAirports serves GET /v1/airports?keyword=. Keywords shorter than two
// characters return an empty list without calling the provider.
func SearchAirports(provider flights.Provider, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		keyword := strings.TrimSpace(c.Query("keyword"))
		if len([]rune(keyword)) < minAirportKeyword {
			observe(m, observability.EndpointAirports, start, true)
			c.JSON(http.StatusOK, gin.H{"ok": true, "data": []flights.Airport{}})
			return
		}

		airports, err := provider.SearchAirports(c.Request.Context(), keyword)
		if err != nil {
			observe(m, observability.EndpointAirports, start, false)
			slog.Error("Airport search failed", "keyword", keyword, "error", err)
			c.JSON(providerStatus(err), gin.H{"error": err.Error()})
			return
		}
		if airports == nil {
			airports = []flights.Airport{}
		}

		observe(m, observability.EndpointAirports, start, true)
		c.JSON(http.StatusOK, gin.H{"ok": true, "data": airports})
	}
}

// SearchFlights serves POST /v1/flights/search.
//
// # Description
//
// Validates the body, queries the provider and keeps only offers whose
// airline accepts one of the requested programs. For an authenticated user
// the search and its results are stored and the reply carries their ids; a
// storage failure is logged and the offers are still returned without ids.
//
// # Inputs
//
//   - provider: Fare source.
//   - st: Search storage. May be nil to disable saving.
//   - now: Clock for date validation.
//   - m: Metrics. May be nil.
func SearchFlights(provider flights.Provider, st SearchStore, now func() time.Time,
	m *observability.Metrics) gin.HandlerFunc {

	return func(c *gin.Context) {
		start := time.Now()

		var req datatypes.FlightSearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			observe(m, observability.EndpointFlightsSearch, start, false)
			errorJSON(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		req.Normalize()
		if err := req.Validate(now()); err != nil {
			observe(m, observability.EndpointFlightsSearch, start, false)
			errorJSON(c, http.StatusBadRequest, datatypes.ValidationMessage(err))
			return
		}

		offers, err := provider.SearchFlights(c.Request.Context(), req.Params())
		if err != nil {
			observe(m, observability.EndpointFlightsSearch, start, false)
			slog.Error("Flight search failed",
				"provider", provider.Name(), "origem", req.Origin, "destino", req.Destination, "error", err)
			c.JSON(providerStatus(err), gin.H{"error": err.Error()})
			return
		}

		results := make([]datatypes.FlightResult, 0, len(offers))
		for _, o := range offers {
			if loyalty.AirlineMatchesPrograms(o.CarrierCode, req.Programs) {
				results = append(results, datatypes.FlightResult{FlightOffer: o})
			}
		}

		resp := datatypes.FlightSearchResponse{
			OK:       true,
			Provider: provider.Name(),
			Count:    len(results),
			Results:  results,
		}

		if userID := middleware.UserID(c); userID != "" && st != nil {
			resp.SearchID = saveSearch(c.Request.Context(), st, userID, &req, results)
		}

		observe(m, observability.EndpointFlightsSearch, start, true)
		c.JSON(http.StatusOK, resp)
	}
}

// saveSearch stores the search and fills ResultID on each result. Returns
// the search id, or nil when storing failed.
func saveSearch(ctx context.Context, st SearchStore, userID string,
	req *datatypes.FlightSearchRequest, results []datatypes.FlightResult) *int64 {

	busca := &store.Busca{
		UserID:      userID,
		Origem:      req.Origin,
		Destino:     req.Destination,
		DataIda:     req.DepartureDate,
		DataVolta:   req.ReturnDate,
		Passageiros: req.Adults,
		Bagagem:     req.Bagagem,
		Banco:       req.Banco,
		UserMiles:   req.UserMiles,
	}
	rows := make([]store.ResultadoVoo, len(results))
	for i, r := range results {
		rows[i] = flights.ToResultRow(r.FlightOffer)
	}

	if err := st.CreateSearch(ctx, busca, rows); err != nil {
		slog.Error("Failed to save search", "user_id", userID, "error", err)
		return nil
	}
	for i := range results {
		id := rows[i].ID
		results[i].ResultID = &id
	}
	slog.Info("Search saved", "busca_id", busca.ID, "results", len(rows))
	return &busca.ID
}

func providerStatus(err error) int {
	if errors.Is(err, flights.ErrNotConfigured) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}
