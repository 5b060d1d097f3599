// Package searchindex talks to the secondary search engine.
//
// Engine is the contract every backend satisfies; it lets the version
// guard and the bulk loader swap bleve for typesense, and makes the
// pipeline testable against an in-memory engine.
package searchindex

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/claimsync/internal/document"
)

// ItemFailure is one document the engine rejected.
type ItemFailure struct {
	ID     string
	Reason string
}

// Engine is an open connection to a search engine.
type Engine interface {
	// ProbeVersion reports whether the index exists and, if so, the schema
	// version it was created with.
	ProbeVersion(ctx context.Context, index string) (version int, exists bool, err error)

	// CreateIndex creates the index with the claim schema at version.
	CreateIndex(ctx context.Context, index string, version int) error

	// DeleteIndex removes the index and all its documents. Deleting a
	// missing index is not an error.
	DeleteIndex(ctx context.Context, index string) error

	// IndexBatch upserts docs. A non-nil error means the request as a whole
	// failed; otherwise the returned slice lists the documents the engine
	// rejected.
	IndexBatch(ctx context.Context, index string, docs []document.Document) ([]ItemFailure, error)

	// Refresh makes every accepted document visible to searches.
	Refresh(ctx context.Context, index string) error

	// Count returns the number of documents in the index.
	Count(ctx context.Context, index string) (int64, error)

	// Health returns nil when the engine can serve requests.
	Health(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// Connector opens Engines.
type Connector interface {
	Connect(ctx context.Context) (Engine, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Engine, error)

// Connect calls f(ctx).
func (f ConnectorFunc) Connect(ctx context.Context) (Engine, error) {
	return f(ctx)
}

// VersionMismatchError reports an index whose stored schema version differs
// from the expected one.
type VersionMismatchError struct {
	Index    string
	Got      int
	Expected int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("search index %s is at version %d, expected %d", e.Index, e.Got, e.Expected)
}
