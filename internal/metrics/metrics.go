// Package metrics exposes Prometheus collectors for the assistant.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Turns counts assistant turns by transport (http, websocket, ui) and outcome.
	Turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_turns_total",
		Help: "Assistant turns by transport and outcome.",
	}, []string{"transport", "outcome"})

	// LLMDuration observes upstream completion latency.
	LLMDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assistant_llm_request_duration_seconds",
		Help:    "Latency of chat-completion calls.",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"provider", "outcome"})

	// RecommendedProducts counts products picked by each resolver stage.
	RecommendedProducts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommend_products_total",
		Help: "Products selected per resolver stage.",
	}, []string{"stage"})

	// LookupErrors counts product table failures per resolver stage.
	LookupErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommend_lookup_errors_total",
		Help: "Product lookup failures per resolver stage.",
	}, []string{"stage"})

	// RateLimited counts rejected chat requests.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_rate_limited_total",
		Help: "Chat requests rejected by the rate limiter.",
	})

	// ActiveSessions tracks web UI transcripts held in memory.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ui_sessions_active",
		Help: "Chat transcripts currently held in memory.",
	})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
