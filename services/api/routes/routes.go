// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/flywise/pkg/extensions"
	"github.com/AleutianAI/flywise/services/api/handlers"
	"github.com/AleutianAI/flywise/services/api/middleware"
	"github.com/AleutianAI/flywise/services/api/observability"
	"github.com/AleutianAI/flywise/services/flights"
)

// Dependencies are the collaborators the routes are built from. Storage
// fields are usually the same *store.Store.
type Dependencies struct {
	DB         handlers.Pinger
	Strategy   handlers.StrategyGenerator
	Strategies handlers.StrategyStore
	Searches   handlers.SearchStore
	Promotions handlers.PromotionLister
	Flights    flights.Provider
	Metrics    *observability.Metrics

	AllowedOrigins []string
	EnableMetrics  bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// strategyMethods narrows the preflight answer of the strategy endpoint.
const strategyMethods = "POST, OPTIONS"

func SetupRoutes(router *gin.Engine, deps Dependencies, opts extensions.ServiceOptions) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	auth := opts.AuthProvider
	if auth == nil {
		auth = &extensions.NopAuthProvider{}
	}

	router.Use(
		middleware.RequestID(),
		middleware.CORS(deps.AllowedOrigins, map[string]string{"/v1/strategy": strategyMethods}),
	)

	router.GET("/health", handlers.HealthCheck(deps.DB))
	if deps.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(auth))
	{
		// Preflight is answered by the CORS middleware; the route only has
		// to exist.
		v1.OPTIONS("/strategy", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		v1.POST("/strategy", handlers.HandleStrategy(deps.Strategy, deps.Metrics))

		strategies := v1.Group("/strategies", middleware.RequireUser())
		{
			strategies.GET("", handlers.ListStrategies(deps.Strategies, deps.Metrics))
			strategies.DELETE("/:id", handlers.DeleteStrategy(deps.Strategies, deps.Metrics))
		}

		v1.GET("/airports", handlers.SearchAirports(deps.Flights, deps.Metrics))
		v1.POST("/flights/search", handlers.SearchFlights(deps.Flights, deps.Searches, deps.Now, deps.Metrics))
		v1.GET("/promotions", handlers.ListPromotions(deps.Promotions, deps.Now, deps.Metrics))
		v1.GET("/programs", handlers.ListPrograms(deps.Metrics))
	}
}
