package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flywise",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total tokens reported by the LLM backend",
		},
		[]string{"model"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flywise",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM request latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"model"},
	)
)

func observeTokens(model string, n int) {
	if n > 0 {
		tokensTotal.WithLabelValues(model).Add(float64(n))
	}
}

func observeLatency(model string, d time.Duration) {
	requestDuration.WithLabelValues(model).Observe(d.Seconds())
}
