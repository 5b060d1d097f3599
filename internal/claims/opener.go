package claims

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/claimsync/internal/config"
	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
)

// NewOpener returns an Opener for the configured backend. Stores are opened
// read-only; maxHeight caps the snapshot when positive.
func NewOpener(cfg config.StoreConfig, maxHeight int64) (Opener, error) {
	opts := Options{MaxHeight: maxHeight}

	var open func(ctx context.Context) (Store, error)
	switch cfg.Backend {
	case config.StorePebble:
		open = func(context.Context) (Store, error) {
			return OpenPebble(cfg.Path, true, opts)
		}
	case config.StoreSQLite:
		open = func(context.Context) (Store, error) {
			return OpenSQLite(cfg.Path, true, opts)
		}
	case config.StorePostgres:
		open = func(ctx context.Context) (Store, error) {
			return OpenPostgres(ctx, cfg.DSN, opts)
		}
	default:
		return nil, cserrors.ConfigError(fmt.Sprintf("unknown store backend %q", cfg.Backend), nil)
	}

	return OpenerFunc(func(ctx context.Context) (Store, error) {
		s, err := open(ctx)
		if err != nil {
			return nil, cserrors.New(cserrors.ErrCodeStoreOpen,
				fmt.Sprintf("failed to open %s claim store", cfg.Backend), err).
				WithDetail("backend", cfg.Backend)
		}
		return s, nil
	}), nil
}
