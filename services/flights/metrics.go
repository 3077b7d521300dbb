// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flights

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("flywise.flights")

var searchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "flywise",
		Subsystem: "flights",
		Name:      "searches_total",
		Help:      "Flight and airport searches by provider, kind and outcome",
	},
	[]string{"provider", "kind", "status"},
)

func recordSearch(provider, kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	searchesTotal.WithLabelValues(provider, kind, status).Inc()
}
