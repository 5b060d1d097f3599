package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claimsync/internal/config"
	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
	"github.com/Aman-CERP/claimsync/internal/searchindex"
	"github.com/Aman-CERP/claimsync/internal/ui"
)

func newStatusCmd(g *globals) *cobra.Command {
	var (
		jsonOutput bool
		noColor    bool
		index      string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the search index version and document count",
		Long: `Probe the search index without changing it.

Reports whether the index exists, its stored schema version against the
expected one, and how many documents it holds. The state column says what
'claimsync sync' would do: create a missing index, recreate an outdated one,
or skip a current one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			search := g.cfg.Search
			if index != "" {
				search.Index = index
			}
			info, err := probeStatus(cmd.Context(), search, g.cfg.Sync, g)
			r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
			if jsonOutput {
				if rerr := r.RenderJSON(info); rerr != nil {
					return rerr
				}
			} else if rerr := r.Render(info); rerr != nil {
				return rerr
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")
	cmd.Flags().StringVar(&index, "index", "", "Index to inspect (default: search.index)")

	return cmd
}

// probeStatus fills in as much of the status as the engine allows. The
// returned error is set when the engine could not be queried.
func probeStatus(ctx context.Context, search config.SearchConfig, sync config.SyncConfig, g *globals) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		Index:           search.Index,
		Backend:         search.Backend,
		Engine:          "unreachable",
		ExpectedVersion: search.Version,
	}

	connector, err := searchindex.NewConnector(search, sync, g.logger)
	if err != nil {
		return info, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, search.HealthTimeout)
	defer cancel()

	engine, err := connector.Connect(probeCtx)
	if err == nil {
		defer func() { _ = engine.Close() }()
		err = engine.Health(probeCtx)
	}
	if err != nil {
		info.Error = err.Error()
		return info, cserrors.New(cserrors.ErrCodeEngineUnavailable, "search engine is unreachable", err).
			WithDetail("backend", search.Backend)
	}
	info.Engine = "ready"

	version, exists, err := engine.ProbeVersion(probeCtx, search.Index)
	if err != nil {
		info.Error = err.Error()
		return info, cserrors.AdminError("probe search index "+search.Index, err)
	}
	info.Exists = exists
	info.StoredVersion = version
	if !exists {
		return info, nil
	}

	count, err := engine.Count(probeCtx, search.Index)
	if err != nil {
		info.Error = err.Error()
		return info, cserrors.AdminError("count search index "+search.Index, err)
	}
	info.Documents = count
	return info, nil
}
