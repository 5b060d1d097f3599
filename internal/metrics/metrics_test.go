package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/claimsync/internal/bulk"
)

func TestMetrics_Register(t *testing.T) {
	// Given a fresh registry
	reg := prometheus.NewPedanticRegistry()
	m := New()

	// When registered twice
	require.NoError(t, m.Register(reg))
	err := m.Register(reg)

	// Then the second registration is rejected
	assert.Error(t, err)
}

func TestMetrics_BatchObserver(t *testing.T) {
	// Given a batch observer for "claims"
	m := New()
	observe := m.BatchObserver("claims")

	// When two batches are acknowledged
	observe(bulk.BatchStats{Size: 500, Failed: 0, Duration: 40 * time.Millisecond})
	observe(bulk.BatchStats{Size: 500, Failed: 3, Duration: 60 * time.Millisecond})

	// Then the document and batch counters add up
	assert.Equal(t, 997.0, testutil.ToFloat64(m.Documents.WithLabelValues("claims", "indexed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Documents.WithLabelValues("claims", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Batches.WithLabelValues("claims")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BatchDuration))
}

func TestMetrics_ProgressObserver(t *testing.T) {
	// Given a progress observer
	m := New()
	obs := m.ProgressObserver()

	// When the stream reports twice
	obs.Progress("claims", 10000)
	obs.Progress("claims", 20000)

	// Then the gauge holds the latest count
	assert.Equal(t, 20000.0, testutil.ToFloat64(m.DocumentsStream.WithLabelValues("claims")))
}

func TestMetrics_ObserveRun(t *testing.T) {
	m := New()

	m.ObserveRun("claims", ResultCompleted, 2*time.Second)
	m.ObserveRun("claims", ResultSkipped, time.Millisecond)
	m.IndexRecreated("claims")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("claims", ResultCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("claims", ResultSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recreations.WithLabelValues("claims")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RunDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRun("claims", ResultFailed, time.Second)
		m.IndexRecreated("claims")
		m.ProgressObserver().Progress("claims", 1)
		assert.Nil(t, m.BatchObserver("claims"))
	})
}

func TestHandler_ServesTextFormat(t *testing.T) {
	// Given registered metrics with one run
	reg := prometheus.NewRegistry()
	m := New()
	require.NoError(t, m.Register(reg))
	m.ObserveRun("claims", ResultCompleted, time.Second)

	// When /metrics is scraped
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	// Then the run counter is exposed
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `claimsync_resync_runs_total{index="claims",result="completed"} 1`)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	// Given a server on an ephemeral port
	reg := prometheus.NewRegistry()
	m := New()
	require.NoError(t, m.Register(reg))
	m.ObserveRun("claims", ResultFailed, time.Second)
	srv, err := Listen("127.0.0.1:0", reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	// When scraped
	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)

	// Then it answers, and stops cleanly when the context ends
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "claimsync_resync_runs_total")
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
