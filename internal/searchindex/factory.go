package searchindex

import (
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/claimsync/internal/config"
	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
)

// NewConnector returns a Connector for the configured backend. The memory
// backend shares one engine across connections so a dry run can be
// inspected afterwards.
func NewConnector(search config.SearchConfig, sync config.SyncConfig, logger *slog.Logger) (Connector, error) {
	switch search.Backend {
	case config.SearchBleve:
		return BleveConnector(search.Path, logger), nil
	case config.SearchTypesense:
		return TypesenseConnector(TypesenseOptions{
			URL:            search.URL,
			APIKey:         search.APIKey,
			HealthTimeout:  search.HealthTimeout,
			RequestTimeout: sync.RequestTimeout,
		}, logger), nil
	case config.SearchMemory:
		return NewMemoryEngine(), nil
	default:
		return nil, cserrors.ConfigError(fmt.Sprintf("unknown search backend %q", search.Backend), nil)
	}
}
