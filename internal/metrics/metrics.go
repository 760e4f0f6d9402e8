package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpcache_queries_total",
			Help: "Total number of search queries issued, by engine and outcome",
		},
		[]string{"engine", "outcome"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serpcache_query_duration_seconds",
			Help:    "Duration of search queries in seconds, including throttle wait",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"engine"},
	)

	ResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpcache_results_total",
			Help: "Total number of results extracted, by engine",
		},
		[]string{"engine"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpcache_cache_lookups_total",
			Help: "Total number of cached-copy lookups, by source and outcome",
		},
		[]string{"source", "outcome"},
	)
)

// RecordQuery updates the query metrics for one search.
func RecordQuery(engine string, results int, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	QueriesTotal.WithLabelValues(engine, outcome).Inc()
	QueryDuration.WithLabelValues(engine).Observe(duration.Seconds())
	if err == nil {
		ResultsTotal.WithLabelValues(engine).Add(float64(results))
	}
}

// RecordLookup updates the cache-lookup counter. found distinguishes a
// resolved snapshot from an absent one; both are successful lookups.
func RecordLookup(source string, found bool, err error) {
	outcome := "miss"
	switch {
	case err != nil:
		outcome = "error"
	case found:
		outcome = "hit"
	}
	CacheLookupsTotal.WithLabelValues(source, outcome).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
