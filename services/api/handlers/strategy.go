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
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/flywise/services/api/datatypes"
	"github.com/AleutianAI/flywise/services/api/middleware"
	"github.com/AleutianAI/flywise/services/api/observability"
	"github.com/AleutianAI/flywise/services/store"
	"github.com/AleutianAI/flywise/services/strategy"
)

// StrategyGenerator produces a strategy for one flight.
type StrategyGenerator interface {
	Generate(ctx context.Context, req strategy.Request) (*strategy.Response, error)
}

// StrategyStore lists and deletes a user's saved strategies.
type StrategyStore interface {
	ListStrategies(ctx context.Context, userID string, limit int) ([]store.Strategy, error)
	DeleteStrategy(ctx context.Context, userID string, id int64) error
}

const (
	defaultStrategyLimit = 20
	maxStrategyLimit     = 100
)

// HandleStrategy serves POST /v1/strategy.
//
// # Description
//
// Reads {flightId, userId?}. The authenticated user wins over the body
// userId, which is honored only for anonymous callers.
//
// # Outputs
//
//   - 200: {ok, strategy, tokens_used[, strategy_id]}
//   - 400: {"error": "flightId required"}
//   - 404: {"error": "Flight not found"}
//   - 500: {"error": "<message>"}
func HandleStrategy(gen StrategyGenerator, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var body datatypes.StrategyRequest
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			observe(m, observability.EndpointStrategy, start, false)
			m.RecordStrategyError(observability.ErrorCodeValidation)
			errorJSON(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		userID := middleware.UserID(c)
		if userID == "" {
			userID = body.UserID
		}

		resp, err := gen.Generate(c.Request.Context(), strategy.Request{
			FlightID: int64(body.FlightID),
			UserID:   userID,
		})
		if err != nil {
			observe(m, observability.EndpointStrategy, start, false)
			switch {
			case errors.Is(err, strategy.ErrMissingFlightID):
				m.RecordStrategyError(observability.ErrorCodeValidation)
				errorJSON(c, http.StatusBadRequest, "flightId required")
			case errors.Is(err, strategy.ErrFlightNotFound):
				m.RecordStrategyError(observability.ErrorCodeNotFound)
				errorJSON(c, http.StatusNotFound, "Flight not found")
			default:
				code := observability.ErrorCodeInternal
				if errors.Is(err, strategy.ErrGeneration) {
					code = observability.ErrorCodeLLMError
				}
				m.RecordStrategyError(code)
				slog.Error("Strategy request failed", "flight_id", int64(body.FlightID), "error", err)
				errorJSON(c, http.StatusInternalServerError, err.Error())
			}
			return
		}

		observe(m, observability.EndpointStrategy, start, true)
		c.JSON(http.StatusOK, resp)
	}
}

// ListStrategies serves GET /v1/strategies?limit=. Requires a user.
func ListStrategies(st StrategyStore, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		limit := defaultStrategyLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				observe(m, observability.EndpointStrategies, start, false)
				errorJSON(c, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxStrategyLimit)
		}

		list, err := st.ListStrategies(c.Request.Context(), middleware.UserID(c), limit)
		if err != nil {
			observe(m, observability.EndpointStrategies, start, false)
			slog.Error("Failed to list strategies", "error", err)
			errorJSON(c, http.StatusInternalServerError, "failed to list strategies")
			return
		}
		if list == nil {
			list = []store.Strategy{}
		}

		observe(m, observability.EndpointStrategies, start, true)
		c.JSON(http.StatusOK, gin.H{"ok": true, "count": len(list), "strategies": list})
	}
}

// DeleteStrategy serves DELETE /v1/strategies/:id. Requires a user; other
// users' strategies are reported as not found.
func DeleteStrategy(st StrategyStore, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			observe(m, observability.EndpointDeleteStrategy, start, false)
			errorJSON(c, http.StatusBadRequest, "invalid strategy id")
			return
		}

		userID := middleware.UserID(c)
		if err := st.DeleteStrategy(c.Request.Context(), userID, id); err != nil {
			observe(m, observability.EndpointDeleteStrategy, start, false)
			if errors.Is(err, store.ErrNotFound) {
				errorJSON(c, http.StatusNotFound, "strategy not found")
				return
			}
			slog.Error("Failed to delete strategy", "strategy_id", id, "error", err)
			errorJSON(c, http.StatusInternalServerError, "failed to delete strategy")
			return
		}

		slog.Info("Strategy deleted", "strategy_id", id, "user_id", userID)
		observe(m, observability.EndpointDeleteStrategy, start, true)
		c.JSON(http.StatusOK, gin.H{"ok": true, "deleted_id": id})
	}
}
