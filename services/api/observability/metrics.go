// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the HTTP API.
//
// # Description
//
// Metrics include request counters by endpoint and status, request latency
// and strategy outcomes by error code. LLM token and latency metrics live in
// the llm package; flight search and scraper metrics in theirs. Everything
// registers on the default registry and is served on /metrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "flywise"
	apiSubsystem     = "api"
)

// Metrics holds the API metrics.
type Metrics struct {
	// RequestsTotal counts handled requests.
	// Labels: endpoint (strategy, flights_search, ...), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures handler latency.
	// Labels: endpoint
	RequestDurationSeconds *prometheus.HistogramVec

	// StrategyErrorsTotal counts failed strategy requests.
	// Labels: error_code (validation, not_found, llm_error, internal)
	StrategyErrorsTotal *prometheus.CounterVec
}

// ErrorCode categorizes strategy failures.
type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation"
	ErrorCodeNotFound   ErrorCode = "not_found"
	ErrorCodeLLMError   ErrorCode = "llm_error"
	ErrorCodeInternal   ErrorCode = "internal"
)

// Endpoint labels a handler in metrics.
type Endpoint string

const (
	EndpointStrategy       Endpoint = "strategy"
	EndpointStrategies     Endpoint = "strategies"
	EndpointAirports       Endpoint = "airports"
	EndpointFlightsSearch  Endpoint = "flights_search"
	EndpointPromotions     Endpoint = "promotions"
	EndpointPrograms       Endpoint = "programs"
	EndpointDeleteStrategy Endpoint = "delete_strategy"
)

// NewMetrics creates the metrics and registers them with reg.
//
// # Inputs
//
//   - reg: Registerer, usually prometheus.DefaultRegisterer. Tests pass a
//     fresh prometheus.NewRegistry().
//
// # Limitations
//
//   - Panics if called twice with the same registerer (duplicate registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "requests_total",
				Help:      "Total API requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "request_duration_seconds",
				Help:      "API handler latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		StrategyErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "strategy_errors_total",
				Help:      "Failed strategy requests by error code",
			},
			[]string{"error_code"},
		),
	}
}

// RecordRequest records a finished request.
func (m *Metrics) RecordRequest(endpoint Endpoint, success bool, seconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
	m.RequestDurationSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordStrategyError records a failed strategy request.
func (m *Metrics) RecordStrategyError(code ErrorCode) {
	if m == nil {
		return
	}
	m.StrategyErrorsTotal.WithLabelValues(string(code)).Inc()
}
