package main

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricsRegistry = prometheus.NewRegistry()

var (
	// Latency buckets in milliseconds; model calls routinely take seconds.
	latencyBuckets = []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

	httpRequestsTotal = promauto.With(metricsRegistry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "deception_analyzer_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	analysisLatency = promauto.With(metricsRegistry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deception_analyzer_analysis_latency_ms",
			Help:    "Time spent producing an analysis in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"outcome"},
	)

	analysisScores = promauto.With(metricsRegistry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deception_analyzer_final_score",
			Help:    "Distribution of returned deception scores",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	upstreamErrorsTotal = promauto.With(metricsRegistry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "deception_analyzer_upstream_errors_total",
			Help: "Failed model calls by the status reported to the caller",
		},
		[]string{"status"},
	)

	fallbackParsesTotal = promauto.With(metricsRegistry).NewCounter(
		prometheus.CounterOpts{
			Name: "deception_analyzer_fallback_parses_total",
			Help: "Model replies that could not be parsed and were replaced by the fallback result",
		},
	)

	cacheHitsTotal = promauto.With(metricsRegistry).NewCounter(
		prometheus.CounterOpts{
			Name: "deception_analyzer_cache_hits_total",
			Help: "Analyses served from the response cache",
		},
	)

	promptTokens = promauto.With(metricsRegistry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deception_analyzer_prompt_tokens",
			Help:    "Estimated prompt size in tokens",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10),
		},
	)
)

func init() {
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// metricsMiddleware counts requests by route template and status.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func observeAnalysis(start time.Time, outcome string) {
	analysisLatency.WithLabelValues(outcome).Observe(float64(time.Since(start).Milliseconds()))
}

func metricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
}
