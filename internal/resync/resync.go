// Package resync rebuilds a claims search index from the claim store.
package resync

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/claimsync/internal/bulk"
	"github.com/Aman-CERP/claimsync/internal/claims"
	"github.com/Aman-CERP/claimsync/internal/document"
	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
	"github.com/Aman-CERP/claimsync/internal/guard"
	"github.com/Aman-CERP/claimsync/internal/metrics"
	"github.com/Aman-CERP/claimsync/internal/notify"
	"github.com/Aman-CERP/claimsync/internal/searchindex"
	"github.com/Aman-CERP/claimsync/internal/ui"
)

// Gate decides whether an index is ready and whether it needs loading.
type Gate interface {
	EnsureReady(ctx context.Context, index string) (guard.Outcome, error)
}

// Source turns a claim store into documents for an index.
type Source interface {
	Documents(ctx context.Context, index string, store claims.Store) iter.Seq2[document.Document, error]
}

// Dependencies contains the injected dependencies for Orchestrator.
type Dependencies struct {
	// Guard checks the index version (required).
	Guard Gate

	// Connector opens the connection used for loading (required).
	Connector searchindex.Connector

	// Stream produces the documents (required).
	Stream Source

	// Bulk tunes the load. Logger and OnBatch are set per run.
	Bulk bulk.Options

	// Notifier announces completed runs. Defaults to notify.Noop.
	Notifier notify.Notifier

	// Metrics may be nil.
	Metrics *metrics.Metrics

	// Renderer shows progress. Defaults to ui.Discard.
	Renderer ui.Renderer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator runs resyncs. It is safe to Run several indexes in turn;
// concurrent runs on one index must be prevented by the caller.
type Orchestrator struct {
	guard     Gate
	connector searchindex.Connector
	stream    Source
	bulk      bulk.Options
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	renderer  ui.Renderer
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Orchestrator with injected dependencies.
func New(deps Dependencies) (*Orchestrator, error) {
	if deps.Guard == nil {
		return nil, fmt.Errorf("guard is required")
	}
	if deps.Connector == nil {
		return nil, fmt.Errorf("connector is required")
	}
	if deps.Stream == nil {
		return nil, fmt.Errorf("stream is required")
	}

	o := &Orchestrator{
		guard:     deps.Guard,
		connector: deps.Connector,
		stream:    deps.Stream,
		bulk:      deps.Bulk,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		renderer:  deps.Renderer,
		logger:    deps.Logger,
		now:       time.Now,
	}
	if o.notifier == nil {
		o.notifier = notify.Noop{}
	}
	if o.renderer == nil {
		o.renderer = ui.Discard
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o, nil
}

// RunOptions selects what one Run does.
type RunOptions struct {
	// Index is the search index name.
	Index string
	// Store, when set, is read instead of one opened by the stream. It is
	// borrowed: Run never closes it.
	Store claims.Store
	// Force loads even when the index was already at the expected version.
	Force bool
}

// Report describes a finished run.
type Report struct {
	RunID     string
	Index     string
	Outcome   guard.Outcome
	Skipped   bool
	Submitted int
	Indexed   int
	Failed    int
	// Failures holds the first rejected documents.
	Failures []searchindex.ItemFailure
	Duration time.Duration
}

// Run makes the index ready and, unless it was already current and Force
// is unset, loads every claim into it and refreshes it once.
//
// The returned report is never nil and counts whatever happened before a
// failure. Documents the engine rejected do not stop the load; once the
// index is refreshed they fail the run with ERR_504_BULK_WRITE.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (report *Report, err error) {
	start := o.now()
	report = &Report{RunID: uuid.NewString(), Index: opts.Index}
	log := o.logger.With(slog.String("run_id", report.RunID), slog.String("index", opts.Index))

	defer func() {
		report.Duration = o.now().Sub(start)
		result := metrics.ResultCompleted
		switch {
		case err != nil:
			result = metrics.ResultFailed
			log.Error("resync_failed", cserrors.LogAttrs(err)...)
		case report.Skipped:
			result = metrics.ResultSkipped
		}
		o.metrics.ObserveRun(opts.Index, result, report.Duration)
	}()

	o.stage(ui.StageChecking, opts.Index, "checking "+opts.Index)
	outcome, err := o.guard.EnsureReady(ctx, opts.Index)
	report.Outcome = outcome
	if err != nil {
		return report, err
	}
	if outcome == guard.OutcomeRecreated {
		o.metrics.IndexRecreated(opts.Index)
	}

	if !opts.Force && !outcome.NeedsSync() {
		log.Info("search_index_already_initialized", slog.String("outcome", outcome.String()))
		report.Skipped = true
		o.complete(report)
		return report, nil
	}

	engine, err := o.connector.Connect(ctx)
	if err != nil {
		return report, cserrors.New(cserrors.ErrCodeEngineUnavailable, "connect to search engine", err).
			WithDetail("index", opts.Index)
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			log.Warn("search_engine_close_failed", slog.String("error", cerr.Error()))
			err = errors.Join(err, cserrors.New(cserrors.ErrCodeIndexAdmin, "close search engine connection", cerr))
		}
	}()

	if err := o.load(ctx, engine, opts, report, log); err != nil {
		return report, err
	}

	o.stage(ui.StageRefreshing, opts.Index, "refreshing "+opts.Index)
	if err := engine.Refresh(ctx, opts.Index); err != nil {
		return report, cserrors.AdminError("refresh search index "+opts.Index, err).
			WithDetail("index", opts.Index).
			WithDetail("operation", "refresh")
	}

	if report.Failed > 0 {
		return report, cserrors.New(cserrors.ErrCodeBulkWrite,
			fmt.Sprintf("%d of %d documents were rejected by %s", report.Failed, report.Submitted, opts.Index), nil).
			WithDetail("index", opts.Index).
			WithDetail("failed", strconv.Itoa(report.Failed)).
			WithDetail("submitted", strconv.Itoa(report.Submitted)).
			WithSuggestion("Check the first rejected documents in the log, fix the mapping, and run again with --force")
	}

	log.Info("search_index_ready",
		slog.String("outcome", outcome.String()),
		slog.Int("documents", report.Indexed))
	report.Duration = o.now().Sub(start)
	o.complete(report)
	o.announce(ctx, report, log)
	return report, nil
}

// load streams every claim into the index.
func (o *Orchestrator) load(ctx context.Context, engine searchindex.Engine, opts RunOptions, report *Report, log *slog.Logger) error {
	o.stage(ui.StageLoading, opts.Index, "loading "+opts.Index)

	bulkOpts := o.bulk
	bulkOpts.Logger = log
	bulkOpts.OnBatch = o.metrics.BatchObserver(opts.Index)

	docs := o.stream.Documents(ctx, opts.Index, opts.Store)
	summary, err := bulk.Write(ctx, engine, opts.Index, docs, bulkOpts)

	report.Submitted = summary.Submitted
	report.Indexed = summary.Indexed
	report.Failed = summary.Failed
	report.Failures = summary.Failures
	for _, f := range summary.Failures {
		o.renderer.AddError(ui.ErrorEvent{ID: f.ID, Err: errors.New(f.Reason), IsWarn: true})
	}
	log.Debug("bulk_write_finished",
		slog.Int("submitted", summary.Submitted),
		slog.Int("indexed", summary.Indexed),
		slog.Int("failed", summary.Failed),
		slog.Int("batches", summary.Batches))
	return err
}

func (o *Orchestrator) stage(stage ui.Stage, index, msg string) {
	o.renderer.UpdateProgress(ui.ProgressEvent{Stage: stage, Index: index, Message: msg})
}

func (o *Orchestrator) complete(r *Report) {
	o.renderer.Complete(ui.CompletionStats{
		Index:     r.Index,
		Outcome:   r.Outcome.String(),
		Skipped:   r.Skipped,
		Submitted: r.Submitted,
		Indexed:   r.Indexed,
		Failed:    r.Failed,
		Duration:  r.Duration,
	})
}

// announce publishes the completion event. Failures are logged only.
func (o *Orchestrator) announce(ctx context.Context, r *Report, log *slog.Logger) {
	ev := notify.SyncCompleted{
		RunID:       r.RunID,
		Index:       r.Index,
		Outcome:     r.Outcome.String(),
		Submitted:   r.Submitted,
		Indexed:     r.Indexed,
		Failed:      r.Failed,
		DurationMS:  r.Duration.Milliseconds(),
		CompletedAt: o.now().UTC(),
	}
	if err := o.notifier.SyncCompleted(ctx, ev); err != nil {
		log.Warn("sync_notification_failed", slog.String("error", err.Error()))
	}
}
