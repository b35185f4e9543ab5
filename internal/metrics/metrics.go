// Package metrics exposes Prometheus collectors for the refresh and alert pipeline.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Upstream fetch metrics
	FetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waterwatch_fetch_total",
		Help: "Upstream fetches by result",
	}, []string{"result"})
	FetchDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "waterwatch_fetch_duration_seconds",
		Help:    "Duration of upstream fetches in seconds",
		Buckets: prometheus.DefBuckets,
	})
	LastRefreshTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "waterwatch_snapshot_last_refresh_timestamp_seconds",
		Help: "Unix time of the last successful snapshot refresh",
	})
	SnapshotReadings = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "waterwatch_snapshot_readings",
		Help: "Number of station readings in the current snapshot",
	})

	// Alert pipeline metrics
	PipelineRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waterwatch_pipeline_runs_total",
		Help: "Alert pipeline runs",
	})
	DangerEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waterwatch_danger_events_total",
		Help: "Threshold breaches found, by station",
	}, []string{"location"})
	DispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waterwatch_dispatch_total",
		Help: "Alert dispatches by result",
	}, []string{"result"})

	registerOnce sync.Once
)

func init() {
	InitMetrics()
}

// InitMetrics registers all collectors with the default registry.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			FetchTotal,
			FetchDurationSeconds,
			LastRefreshTimestamp,
			SnapshotReadings,
			PipelineRunsTotal,
			DangerEventsTotal,
			DispatchTotal,
		)
	})
}

// Handler returns an HTTP handler that exposes the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFetch tracks one upstream fetch.
func RecordFetch(duration time.Duration, err error) {
	if duration < 0 {
		duration = 0
	}
	FetchDurationSeconds.Observe(duration.Seconds())
	if err != nil {
		FetchTotal.WithLabelValues("error").Inc()
		return
	}
	FetchTotal.WithLabelValues("ok").Inc()
}

// RecordRefresh tracks a successful snapshot swap.
func RecordRefresh(fetchedAt time.Time, readings int) {
	LastRefreshTimestamp.Set(float64(fetchedAt.Unix()))
	SnapshotReadings.Set(float64(readings))
}

// RecordDangerEvent counts a threshold breach at location.
func RecordDangerEvent(location string) {
	DangerEventsTotal.WithLabelValues(location).Inc()
}

// RecordDispatch counts an alert dispatch.
func RecordDispatch(err error) {
	if err != nil {
		DispatchTotal.WithLabelValues("error").Inc()
		return
	}
	DispatchTotal.WithLabelValues("ok").Inc()
}

// Server serves /metrics until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics server listening on addr.
func NewServer(addr string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run listens until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("metrics server listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
