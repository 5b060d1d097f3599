package searchindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"
	"github.com/typesense/typesense-go/typesense/api/pointer"

	"github.com/Aman-CERP/claimsync/internal/document"
)

// TypesenseEngine keeps each index as an alias pointing at a versioned
// collection: index "claims" at version 2 is alias "claims" ->
// collection "claims_v2". The schema version is read back from the
// collection name.
type TypesenseEngine struct {
	client        *typesense.Client
	healthTimeout time.Duration
	logger        *slog.Logger
}

// TypesenseOptions configure a TypesenseEngine.
type TypesenseOptions struct {
	URL           string
	APIKey        string
	HealthTimeout time.Duration
	// RequestTimeout bounds the HTTP client; per-request contexts may be
	// shorter.
	RequestTimeout time.Duration
}

// NewTypesenseEngine returns an engine talking to opts.URL.
func NewTypesenseEngine(opts TypesenseOptions, logger *slog.Logger) *TypesenseEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 5 * time.Second
	}
	clientOpts := []typesense.ClientOption{
		typesense.WithServer(opts.URL),
		typesense.WithAPIKey(opts.APIKey),
	}
	if opts.RequestTimeout > 0 {
		clientOpts = append(clientOpts, typesense.WithConnectionTimeout(opts.RequestTimeout))
	}
	return &TypesenseEngine{
		client:        typesense.NewClient(clientOpts...),
		healthTimeout: opts.HealthTimeout,
		logger:        logger,
	}
}

// TypesenseConnector opens a TypesenseEngine per connection.
func TypesenseConnector(opts TypesenseOptions, logger *slog.Logger) Connector {
	return ConnectorFunc(func(context.Context) (Engine, error) {
		return NewTypesenseEngine(opts, logger), nil
	})
}

func collectionName(index string, version int) string {
	return fmt.Sprintf("%s_v%d", index, version)
}

// versionFromCollection extracts N from "<index>_vN"; 0 when absent.
func versionFromCollection(index, collection string) int {
	suffix, ok := strings.CutPrefix(collection, index+"_v")
	if !ok {
		return 0
	}
	v, err := strconv.Atoi(suffix)
	if err != nil {
		return 0
	}
	return v
}

func isNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func isConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, status int) bool {
	var httpErr *typesense.HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == status
}

// ProbeVersion implements Engine.
func (t *TypesenseEngine) ProbeVersion(ctx context.Context, index string) (int, bool, error) {
	alias, err := t.client.Alias(index).Retrieve(ctx)
	if isNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("typesense alias %s: %w", index, err)
	}
	return versionFromCollection(index, alias.CollectionName), true, nil
}

// CreateIndex implements Engine. The index only becomes visible once the
// alias points at the new collection. A collection of the same name with no
// alias is left over from an interrupted create; it is dropped and built
// again. When the alias cannot be set, the new collection is dropped.
func (t *TypesenseEngine) CreateIndex(ctx context.Context, index string, version int) error {
	name := collectionName(index, version)
	schema := claimCollectionSchema(name)
	_, err := t.client.Collections().Create(ctx, schema)
	if isConflict(err) {
		t.logger.Warn("search_index_orphan_dropped",
			slog.String("index", index),
			slog.String("collection", name))
		if _, delErr := t.client.Collection(name).Delete(ctx); delErr != nil && !isNotFound(delErr) {
			return fmt.Errorf("typesense drop orphaned collection %s: %w", name, delErr)
		}
		_, err = t.client.Collections().Create(ctx, schema)
	}
	if err != nil {
		return fmt.Errorf("typesense create collection %s: %w", name, err)
	}

	if _, err := t.client.Aliases().Upsert(ctx, index, &api.CollectionAliasSchema{CollectionName: name}); err != nil {
		if _, delErr := t.client.Collection(name).Delete(ctx); delErr != nil && !isNotFound(delErr) {
			err = errors.Join(err, fmt.Errorf("drop collection %s: %w", name, delErr))
		}
		return fmt.Errorf("typesense alias %s -> %s: %w", index, name, err)
	}
	return nil
}

// DeleteIndex implements Engine. It drops the alias and the collection it
// points at.
func (t *TypesenseEngine) DeleteIndex(ctx context.Context, index string) error {
	alias, err := t.client.Alias(index).Retrieve(ctx)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("typesense alias %s: %w", index, err)
	}
	if _, err := t.client.Alias(index).Delete(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("typesense delete alias %s: %w", index, err)
	}
	if _, err := t.client.Collection(alias.CollectionName).Delete(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("typesense delete collection %s: %w", alias.CollectionName, err)
	}
	return nil
}

// IndexBatch implements Engine using the import endpoint in upsert mode.
func (t *TypesenseEngine) IndexBatch(ctx context.Context, index string, docs []document.Document) ([]ItemFailure, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	payload := make([]interface{}, len(docs))
	for i, doc := range docs {
		fields := make(map[string]any, len(doc.Fields)+1)
		for k, v := range doc.Fields {
			fields[k] = v
		}
		fields["id"] = doc.ID
		payload[i] = fields
	}

	results, err := t.client.Collection(index).Documents().Import(ctx, payload, &api.ImportDocumentsParams{
		Action:    pointer.String("upsert"),
		BatchSize: pointer.Int(len(docs)),
	})
	if err != nil {
		return nil, fmt.Errorf("typesense import into %s: %w", index, err)
	}

	var failures []ItemFailure
	for i, r := range results {
		if r == nil || r.Success {
			continue
		}
		id := ""
		if i < len(docs) {
			id = docs[i].ID
		}
		failures = append(failures, ItemFailure{ID: id, Reason: r.Error})
	}
	return failures, nil
}

// Refresh implements Engine. Typesense makes imports searchable on return.
func (t *TypesenseEngine) Refresh(context.Context, string) error {
	return nil
}

// Count implements Engine.
func (t *TypesenseEngine) Count(ctx context.Context, index string) (int64, error) {
	resp, err := t.client.Collection(index).Retrieve(ctx)
	if err != nil {
		return 0, fmt.Errorf("typesense count %s: %w", index, err)
	}
	if resp.NumDocuments == nil {
		return 0, nil
	}
	return *resp.NumDocuments, nil
}

// Health implements Engine.
func (t *TypesenseEngine) Health(ctx context.Context) error {
	ok, err := t.client.Health(ctx, t.healthTimeout)
	if err != nil {
		return fmt.Errorf("typesense health check failed: %w", err)
	}
	if !ok {
		return errors.New("typesense is unhealthy")
	}
	return nil
}

// Close implements Engine. The typesense client holds no resources.
func (t *TypesenseEngine) Close() error {
	return nil
}

// claimCollectionSchema maps the claim document schema onto a typesense
// collection.
func claimCollectionSchema(name string) *api.CollectionSchema {
	schema := document.Schema()
	fields := make([]api.Field, 0, len(schema))
	for _, f := range schema {
		field := api.Field{Name: f.Name, Type: string(f.Type)}
		if f.Facet {
			field.Facet = pointer.True()
		}
		if f.Optional {
			field.Optional = pointer.True()
		}
		fields = append(fields, field)
	}
	return &api.CollectionSchema{
		Name:                name,
		Fields:              fields,
		DefaultSortingField: pointer.String(document.DefaultSortField),
	}
}
