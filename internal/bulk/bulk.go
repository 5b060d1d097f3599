// Package bulk drains a document sequence into a search engine in batches.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Aman-CERP/claimsync/internal/document"
	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
	"github.com/Aman-CERP/claimsync/internal/searchindex"
)

// Defaults for Options fields left at zero.
const (
	DefaultBatchSize         = 500
	DefaultClients           = 16
	DefaultRequestTimeout    = 120 * time.Second
	DefaultMaxLoggedFailures = 10
)

// BatchStats describes one acknowledged batch.
type BatchStats struct {
	Size     int
	Failed   int
	Duration time.Duration
}

// Options tune Write.
type Options struct {
	BatchSize int
	// Clients caps concurrent in-flight requests. 1 sends batches strictly
	// one after another.
	Clients        int
	RequestTimeout time.Duration
	// RateLimit caps documents per second; 0 disables the limit.
	RateLimit int
	// MaxConsecutiveRejections aborts the write after this many batches in
	// a row had every document rejected; 0 disables the check.
	MaxConsecutiveRejections int
	// MaxLoggedFailures is how many rejected documents are logged one by
	// one; the rest are only counted.
	MaxLoggedFailures int
	// OnBatch, if set, is called after each acknowledged batch. It may be
	// called from several goroutines at once.
	OnBatch func(BatchStats)
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Clients <= 0 {
		o.Clients = DefaultClients
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.MaxLoggedFailures <= 0 {
		o.MaxLoggedFailures = DefaultMaxLoggedFailures
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

var errStopped = errors.New("bulk write stopped")

// Summary counts what happened to the documents of one Write.
type Summary struct {
	// Submitted is the number of documents sent to the engine.
	Submitted int
	// Indexed is the number the engine accepted.
	Indexed int
	// Failed is the number the engine rejected.
	Failed int
	// Batches is the number of acknowledged batches.
	Batches int
	// Failures holds the first rejected documents, up to MaxLoggedFailures.
	Failures []searchindex.ItemFailure
}

type writer struct {
	engine  searchindex.Engine
	index   string
	opts    Options
	limiter *rate.Limiter
	breaker *cserrors.CircuitBreaker

	mu      sync.Mutex
	summary Summary
}

// Write sends every document of docs to index, in batches cut in sequence
// order, with at most opts.Clients requests in flight.
//
// Documents the engine rejects are counted and logged but do not stop the
// write. A failed request, a request timeout, a sequence error, an open
// circuit breaker or ctx ending stops it: no further batches are sent, the
// sequence is abandoned (closing any store it owns) and the first such
// error is returned with the summary so far.
func Write(ctx context.Context, engine searchindex.Engine, index string, docs iter.Seq2[document.Document, error], opts Options) (Summary, error) {
	opts = opts.withDefaults()
	w := &writer{
		engine:  engine,
		index:   index,
		opts:    opts,
		breaker: cserrors.NewCircuitBreaker("bulk "+index, cserrors.WithMaxFailures(opts.MaxConsecutiveRejections)),
	}
	if opts.RateLimit > 0 {
		// Burst must cover a whole batch for WaitN to succeed.
		w.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateLimit, opts.BatchSize))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Clients)

	var streamErr error
	batch := make([]document.Document, 0, opts.BatchSize)
	for doc, err := range docs {
		if err != nil {
			streamErr = err
			break
		}
		if gctx.Err() != nil {
			break
		}
		batch = append(batch, doc)
		if len(batch) == opts.BatchSize {
			if err := w.submit(gctx, g, batch); err != nil {
				break
			}
			batch = make([]document.Document, 0, opts.BatchSize)
		}
	}
	if streamErr == nil && gctx.Err() == nil && len(batch) > 0 {
		_ = w.submit(gctx, g, batch)
	}

	waitErr := g.Wait()
	summary := w.result()

	switch {
	case waitErr != nil:
		return summary, waitErr
	case streamErr != nil:
		return summary, streamErr
	case ctx.Err() != nil:
		return summary, ctx.Err()
	}
	return summary, nil
}

// submit waits for rate-limit tokens and hands the batch to the group,
// blocking while Clients requests are in flight.
func (w *writer) submit(ctx context.Context, g *errgroup.Group, batch []document.Document) error {
	if w.limiter != nil {
		if err := w.limiter.WaitN(ctx, len(batch)); err != nil {
			return err
		}
	}
	if !w.breaker.Allow() {
		// The request that tripped the breaker already failed the group.
		return errStopped
	}
	g.Go(func() error {
		return w.send(ctx, batch)
	})
	return nil
}

func (w *writer) send(ctx context.Context, batch []document.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	w.summary.Submitted += len(batch)
	w.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, w.opts.RequestTimeout)
	defer cancel()

	start := time.Now()
	failures, err := w.engine.IndexBatch(rctx, w.index, batch)
	took := time.Since(start)
	if err != nil {
		return w.requestError(ctx, err, len(batch))
	}

	w.record(batch, failures)
	if w.opts.OnBatch != nil {
		w.opts.OnBatch(BatchStats{Size: len(batch), Failed: len(failures), Duration: took})
	}

	if len(failures) == len(batch) {
		return w.breaker.RecordFailure()
	}
	w.breaker.RecordSuccess()
	return nil
}

func (w *writer) requestError(ctx context.Context, err error, size int) error {
	if ctx.Err() != nil {
		// Another request failed first or the caller gave up.
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return cserrors.New(cserrors.ErrCodeBulkTimeout,
			fmt.Sprintf("bulk request to %s timed out after %s", w.index, w.opts.RequestTimeout), err).
			WithDetail("index", w.index).
			WithDetail("batch_size", strconv.Itoa(size)).
			WithSuggestion("Raise sync.request_timeout or lower --clients")
	}
	return cserrors.New(cserrors.ErrCodeBulkWrite,
		fmt.Sprintf("bulk request to %s failed", w.index), err).
		WithDetail("index", w.index).
		WithDetail("batch_size", strconv.Itoa(size))
}

func (w *writer) record(batch []document.Document, failures []searchindex.ItemFailure) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.summary.Batches++
	w.summary.Indexed += len(batch) - len(failures)
	w.summary.Failed += len(failures)
	for _, f := range failures {
		if len(w.summary.Failures) >= w.opts.MaxLoggedFailures {
			break
		}
		w.summary.Failures = append(w.summary.Failures, f)
		w.opts.Logger.Warn("bulk_item_rejected",
			slog.String("index", w.index),
			slog.String("claim_id", f.ID),
			slog.String("reason", f.Reason))
	}
}

func (w *writer) result() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()

	if extra := w.summary.Failed - len(w.summary.Failures); extra > 0 {
		w.opts.Logger.Warn("bulk_items_rejected_not_logged",
			slog.String("index", w.index),
			slog.Int("count", extra))
	}
	s := w.summary
	s.Failures = append([]searchindex.ItemFailure(nil), w.summary.Failures...)
	return s
}
