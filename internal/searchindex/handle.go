package searchindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
)

// Handle is a start/stop connection to one named index, used to bring the
// index to the expected version before a sync.
type Handle struct {
	connector Connector
	index     string
	version   int
	retry     cserrors.RetryConfig
	logger    *slog.Logger

	mu     sync.Mutex
	engine Engine
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithHealthRetry sets the backoff used while waiting for the engine.
func WithHealthRetry(cfg cserrors.RetryConfig) HandleOption {
	return func(h *Handle) { h.retry = cfg }
}

// WithHandleLogger sets the handle's logger.
func WithHandleLogger(l *slog.Logger) HandleOption {
	return func(h *Handle) { h.logger = l }
}

// NewHandle returns a stopped handle for index at the expected version.
func NewHandle(connector Connector, index string, version int, opts ...HandleOption) *Handle {
	h := &Handle{
		connector: connector,
		index:     index,
		version:   version,
		retry:     cserrors.DefaultRetryConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Index returns the index name.
func (h *Handle) Index() string { return h.index }

// Version returns the expected schema version.
func (h *Handle) Version() int { return h.version }

// Start connects, waits for the engine to be healthy and makes sure the
// index exists. It reports created=true when the index was absent and has
// just been created at the expected version. An index at another version
// yields a *VersionMismatchError and leaves the handle started, so the
// caller can delete the index.
func (h *Handle) Start(ctx context.Context) (created bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.engine == nil {
		engine, err := h.connector.Connect(ctx)
		if err != nil {
			return false, cserrors.New(cserrors.ErrCodeEngineUnavailable, "failed to connect to search engine", err)
		}
		h.engine = engine
	}

	if err := h.waitHealthy(ctx); err != nil {
		return false, err
	}

	version, exists, err := h.engine.ProbeVersion(ctx, h.index)
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", h.index, err)
	}
	if exists {
		if version != h.version {
			return false, &VersionMismatchError{Index: h.index, Got: version, Expected: h.version}
		}
		return false, nil
	}

	if err := h.engine.CreateIndex(ctx, h.index, h.version); err != nil {
		return false, fmt.Errorf("create %s: %w", h.index, err)
	}
	h.logger.Info("search_index_created",
		slog.String("index", h.index),
		slog.Int("version", h.version))
	return true, nil
}

func (h *Handle) waitHealthy(ctx context.Context) error {
	cfg := h.retry
	cfg.OnRetry = func(attempt int, err error) {
		h.logger.Warn("search_engine_not_ready",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
	}
	err := cserrors.Retry(ctx, cfg, func() error {
		return h.engine.Health(ctx)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return cserrors.New(cserrors.ErrCodeEngineUnavailable, "search engine did not become healthy", err).
		WithSuggestion("Check that the search engine is running and reachable")
}

// DeleteIndex drops the index. The handle must be started.
func (h *Handle) DeleteIndex(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.engine == nil {
		return errors.New("search index handle is not started")
	}
	return h.engine.DeleteIndex(ctx, h.index)
}

// Stop closes the connection. Stopping a stopped handle does nothing.
func (h *Handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.engine == nil {
		return nil
	}
	err := h.engine.Close()
	h.engine = nil
	return err
}

// Started reports whether the handle holds a connection.
func (h *Handle) Started() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine != nil
}
