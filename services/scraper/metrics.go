// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flywise",
			Subsystem: "scraper",
			Name:      "posts_total",
			Help:      "Posts processed by the scraper, by outcome",
		},
		[]string{"status"},
	)

	promotionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flywise",
			Subsystem: "scraper",
			Name:      "promotions_expired_total",
			Help:      "Expired promotions removed before a scrape",
		},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flywise",
			Subsystem: "scraper",
			Name:      "runs_total",
			Help:      "Scraper runs, by outcome",
		},
		[]string{"status"},
	)
)
