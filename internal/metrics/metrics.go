// Package metrics exposes resync counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aman-CERP/claimsync/internal/bulk"
	"github.com/Aman-CERP/claimsync/internal/stream"
)

const namespace = "claimsync"

// Run results.
const (
	ResultCompleted = "completed"
	ResultSkipped   = "skipped"
	ResultFailed    = "failed"
)

// Metrics holds the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Runs            *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	Documents       *prometheus.CounterVec
	DocumentsStream *prometheus.GaugeVec
	Batches         *prometheus.CounterVec
	BatchDuration   *prometheus.HistogramVec
	Recreations     *prometheus.CounterVec
}

// New builds unregistered collectors.
func New() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resync",
			Name:      "runs_total",
			Help:      "Resync runs by result.",
		}, []string{"index", "result"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resync",
			Name:      "run_duration_seconds",
			Help:      "Wall time of resync runs.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"index", "result"}),
		Documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "documents_total",
			Help:      "Documents acknowledged by the search engine, by result.",
		}, []string{"index", "result"}),
		DocumentsStream: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "documents_streamed",
			Help:      "Documents produced by the current run's claim stream.",
		}, []string{"index"}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "batches_total",
			Help:      "Bulk requests acknowledged by the search engine.",
		}, []string{"index"}),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "batch_duration_seconds",
			Help:      "Latency of bulk requests.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"index"}),
		Recreations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "index_recreations_total",
			Help:      "Indexes dropped and recreated for a version change.",
		}, []string{"index"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Runs, m.RunDuration, m.Documents, m.DocumentsStream,
		m.Batches, m.BatchDuration, m.Recreations,
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ProgressObserver reports stream progress into DocumentsStream.
func (m *Metrics) ProgressObserver() stream.Observer {
	return stream.ObserverFunc(func(index string, count int) {
		if m == nil {
			return
		}
		m.DocumentsStream.WithLabelValues(index).Set(float64(count))
	})
}

// BatchObserver returns a bulk.Options.OnBatch callback for index.
func (m *Metrics) BatchObserver(index string) func(bulk.BatchStats) {
	if m == nil {
		return nil
	}
	indexed := m.Documents.WithLabelValues(index, "indexed")
	failed := m.Documents.WithLabelValues(index, "failed")
	batches := m.Batches.WithLabelValues(index)
	latency := m.BatchDuration.WithLabelValues(index)
	return func(s bulk.BatchStats) {
		indexed.Add(float64(s.Size - s.Failed))
		failed.Add(float64(s.Failed))
		batches.Inc()
		latency.Observe(s.Duration.Seconds())
	}
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(index, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(index, result).Inc()
	m.RunDuration.WithLabelValues(index, result).Observe(took.Seconds())
}

// IndexRecreated counts a drop and recreate of index.
func (m *Metrics) IndexRecreated(index string) {
	if m == nil {
		return
	}
	m.Recreations.WithLabelValues(index).Inc()
}

// Handler serves the gathered metrics in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Server serves Handler on an address until its context ends.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// Listen binds addr. Serve must be called to answer requests.
func Listen(addr string, g prometheus.Gatherer, logger *slog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		srv: &http.Server{
			Handler:           Handler(g),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}, nil
}

// Addr is the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve answers requests until ctx ends, then shuts down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.ln)
	}()
	s.logger.Info("metrics_listening", slog.String("addr", s.Addr()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

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
