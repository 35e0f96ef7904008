// Package metrics exposes validation counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/logger"
)

var log = logger.ForComponent("metrics")

var (
	FilesChecked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archcodex_files_checked_total",
		Help: "Files validated, by resulting status",
	}, []string{"status"})

	Findings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archcodex_findings_total",
		Help: "Violations and warnings reported, by rule and severity",
	}, []string{"rule", "severity"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archcodex_cache_hits_total",
		Help: "Files served from the result cache",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archcodex_cache_misses_total",
		Help: "Files that had to be re-evaluated",
	})

	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archcodex_parse_failures_total",
		Help: "Files whose semantic model could not be extracted",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "archcodex_run_duration_seconds",
		Help:    "Wall time of a validation run",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	Cycles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archcodex_import_cycles",
		Help: "Import cycles found by the last project run",
	})
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Info("serving metrics", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
