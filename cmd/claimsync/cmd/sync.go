package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claimsync/internal/bulk"
	"github.com/Aman-CERP/claimsync/internal/claims"
	"github.com/Aman-CERP/claimsync/internal/config"
	"github.com/Aman-CERP/claimsync/internal/document"
	"github.com/Aman-CERP/claimsync/internal/guard"
	"github.com/Aman-CERP/claimsync/internal/lock"
	"github.com/Aman-CERP/claimsync/internal/metrics"
	"github.com/Aman-CERP/claimsync/internal/notify"
	"github.com/Aman-CERP/claimsync/internal/resync"
	"github.com/Aman-CERP/claimsync/internal/searchindex"
	"github.com/Aman-CERP/claimsync/internal/stream"
	"github.com/Aman-CERP/claimsync/internal/ui"
)

type syncOptions struct {
	clients     int
	blocks      int64
	force       bool
	index       string
	metricsAddr string
	plain       bool
	noColor     bool
	lockWait    time.Duration
}

func newSyncCmd(g *globals) *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync every claim into the search index",
		Long: `Make the search index ready and load every claim from the store into it.

The index is created when missing and dropped and recreated when its stored
schema version differs from search.version. An index already at the expected
version is left alone unless --force is given.`,
		Example: `  # Sync with the configured defaults
  claimsync sync

  # Reload an up-to-date index with 32 concurrent bulk requests
  claimsync sync --force --clients 32

  # Only sync claims up to block 1000000
  claimsync sync --blocks 1000000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *g.cfg
			if cmd.Flags().Changed("clients") {
				cfg.Sync.Clients = opts.clients
			}
			if cmd.Flags().Changed("blocks") {
				cfg.Sync.Blocks = opts.blocks
			}
			if opts.index != "" {
				cfg.Search.Index = opts.index
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runSync(ctx, cmd, &cfg, opts, g.logger)
		},
	}

	cmd.Flags().IntVarP(&opts.clients, "clients", "c", config.NewConfig().Sync.Clients, "Number of concurrent bulk requests")
	cmd.Flags().Int64VarP(&opts.blocks, "blocks", "b", 0, "Only sync claims up to this block height (0 = all)")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Load even when the index is already at the expected version")
	cmd.Flags().StringVar(&opts.index, "index", "", "Index to sync (default: search.index)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain text output (no TUI)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")
	cmd.Flags().DurationVar(&opts.lockWait, "lock-wait", 0, "How long to wait for another run on the same index")

	return cmd
}

func runSync(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts syncOptions, logger *slog.Logger) error {
	index := cfg.Search.Index

	runLock := lock.New(cfg.LockPath(index))
	if err := runLock.Acquire(ctx, opts.lockWait); err != nil {
		return err
	}
	defer func() { _ = runLock.Release() }()

	opener, err := claims.NewOpener(cfg.Store, cfg.Sync.Blocks)
	if err != nil {
		return err
	}
	connector, err := searchindex.NewConnector(cfg.Search, cfg.Sync, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if opts.metricsAddr != "" {
		srv, err := metrics.Listen(opts.metricsAddr, reg, logger)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", opts.metricsAddr, err)
		}
		serveCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.Serve(serveCtx); err != nil {
				logger.Warn("metrics_server_failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	notifier, err := notify.New(cfg.Notify.NATSURL, cfg.Notify.Subject, logger)
	if err != nil {
		return err
	}
	defer func() { _ = notifier.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor || ui.DetectNoColor()),
		ui.WithIndex(index)))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	src := stream.New(opener, document.NewClaimMapper(),
		stream.WithProgressEvery(cfg.Sync.ProgressEvery),
		stream.WithLogger(logger),
		stream.WithObserver(stream.Observers(
			stream.LogObserver(logger),
			m.ProgressObserver(),
			ui.ProgressObserver(renderer),
		)))

	gate := guard.New(func(index string) guard.Handle {
		return searchindex.NewHandle(connector, index, cfg.Search.Version,
			searchindex.WithHandleLogger(logger))
	}, logger)

	orch, err := resync.New(resync.Dependencies{
		Guard:     gate,
		Connector: connector,
		Stream:    src,
		Bulk: bulk.Options{
			BatchSize:                cfg.Sync.BatchSize,
			Clients:                  cfg.Sync.Clients,
			RequestTimeout:           cfg.Sync.RequestTimeout,
			RateLimit:                cfg.Sync.RateLimit,
			MaxConsecutiveRejections: cfg.Sync.MaxConsecutiveRejections,
		},
		Notifier: notifier,
		Metrics:  m,
		Renderer: renderer,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	_, err = orch.Run(ctx, resync.RunOptions{Index: index, Force: opts.force})
	return err
}
