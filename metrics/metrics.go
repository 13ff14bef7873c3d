// Package metrics exposes Prometheus counters for scrape runs.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mempirate/docscrape/log"
)

var (
	PagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docscrape_pages_total",
			Help: "Total number of pages attempted, labeled by outcome.",
		},
		[]string{"status"},
	)
	PageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docscrape_page_duration_seconds",
			Help:    "Duration of fetching, converting and writing a single page.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	DiscoveredLinks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docscrape_discovered_links_total",
			Help: "Total number of eligible links found during discovery.",
		},
	)
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docscrape_runs_total",
			Help: "Total number of scrape runs, labeled by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(PagesTotal)
	prometheus.MustRegister(PageDuration)
	prometheus.MustRegister(DiscoveredLinks)
	prometheus.MustRegister(Runs)
}

// ObservePage records the outcome of a single page.
func ObservePage(status string, took time.Duration) {
	PagesTotal.WithLabelValues(status).Inc()
	PageDuration.WithLabelValues(status).Observe(took.Seconds())
}

// ExposeMetrics serves /metrics on addr until ctx is done.
func ExposeMetrics(ctx context.Context, addr string) {
	logger := log.NewLogger("metrics")
	logger.Info().Str("address", addr).Msg("Exposing Prometheus metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("Failed to start Prometheus metrics server")
	}
}
