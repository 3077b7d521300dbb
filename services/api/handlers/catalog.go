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
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/flywise/pkg/loyalty"
	"github.com/AleutianAI/flywise/services/api/observability"
	"github.com/AleutianAI/flywise/services/store"
)

// PromotionLister reads promotions that have not expired.
type PromotionLister interface {
	ActivePromotions(ctx context.Context, now time.Time, programs []string, limit int) ([]store.Promocao, error)
}

const promotionsLimit = 50

// ListPromotions serves GET /v1/promotions[?program=]. program may repeat
// or hold a comma separated list.
func ListPromotions(st PromotionLister, now func() time.Time, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var programs []string
		for _, raw := range c.QueryArray("program") {
			for _, p := range strings.Split(raw, ",") {
				if p = strings.TrimSpace(p); p != "" {
					programs = append(programs, p)
				}
			}
		}

		promos, err := st.ActivePromotions(c.Request.Context(), now(), programs, promotionsLimit)
		if err != nil {
			observe(m, observability.EndpointPromotions, start, false)
			slog.Error("Failed to list promotions", "programs", programs, "error", err)
			errorJSON(c, http.StatusInternalServerError, "failed to list promotions")
			return
		}
		if promos == nil {
			promos = []store.Promocao{}
		}

		observe(m, observability.EndpointPromotions, start, true)
		c.JSON(http.StatusOK, gin.H{"ok": true, "count": len(promos), "promocoes": promos})
	}
}

// ListPrograms serves GET /v1/programs[?airline=]. Without an airline it
// returns the full catalog and the quick filter list.
func ListPrograms(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() { observe(m, observability.EndpointPrograms, start, true) }()

		if airline := strings.ToUpper(strings.TrimSpace(c.Query("airline"))); airline != "" {
			c.JSON(http.StatusOK, gin.H{
				"airline":  airline,
				"name":     loyalty.AirlineName(airline),
				"programs": loyalty.ProgramsForAirline(airline),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"programs": loyalty.Programs(),
			"top":      loyalty.TopPrograms(),
		})
	}
}
