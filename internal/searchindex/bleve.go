package searchindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/claimsync/internal/document"
)

// schemaVersionKey is the bleve internal key holding the schema version.
var schemaVersionKey = []byte("_schema_version")

// BleveEngine stores each index as a bleve index under a root directory.
type BleveEngine struct {
	root   string
	logger *slog.Logger

	mu      sync.Mutex
	indexes map[string]bleve.Index
	closed  bool
}

// NewBleveEngine returns an engine rooted at root. The directory is created
// on first use.
func NewBleveEngine(root string, logger *slog.Logger) *BleveEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &BleveEngine{
		root:    root,
		logger:  logger,
		indexes: make(map[string]bleve.Index),
	}
}

// BleveConnector opens a BleveEngine per connection.
func BleveConnector(root string, logger *slog.Logger) Connector {
	return ConnectorFunc(func(context.Context) (Engine, error) {
		return NewBleveEngine(root, logger), nil
	})
}

func (b *BleveEngine) path(index string) string {
	return filepath.Join(b.root, index+".bleve")
}

// open returns the cached or newly opened index. ok is false when the index
// does not exist on disk. Callers hold b.mu.
func (b *BleveEngine) open(index string) (idx bleve.Index, ok bool, err error) {
	if b.closed {
		return nil, false, errors.New("bleve engine is closed")
	}
	if idx, ok := b.indexes[index]; ok {
		return idx, true, nil
	}
	idx, err = bleve.Open(b.path(index))
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open bleve index %s: %w", index, err)
	}
	b.indexes[index] = idx
	return idx, true, nil
}

// unreadableIndex reports whether err means the index directory exists but
// holds no usable index, as left behind by an interrupted create.
func unreadableIndex(err error) bool {
	if errors.Is(err, bleve.ErrorIndexMetaMissing) || errors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment")
}

// ProbeVersion implements Engine. An index without a stored version reports
// version 0, and so does a directory bleve cannot open as an index, which
// makes the caller rebuild it.
func (b *BleveEngine) ProbeVersion(_ context.Context, index string) (int, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, ok, err := b.open(index)
	if err != nil && unreadableIndex(err) {
		b.logger.Warn("search_index_unreadable",
			slog.String("index", index),
			slog.String("path", b.path(index)),
			slog.String("error", err.Error()))
		return 0, true, nil
	}
	if err != nil || !ok {
		return 0, false, err
	}
	raw, err := idx.GetInternal(schemaVersionKey)
	if err != nil {
		return 0, true, fmt.Errorf("read schema version of %s: %w", index, err)
	}
	if len(raw) == 0 {
		return 0, true, nil
	}
	v, err := strconv.Atoi(string(raw))
	if err != nil {
		b.logger.Warn("search_index_version_unreadable",
			slog.String("index", index),
			slog.String("raw", string(raw)))
		return 0, true, nil
	}
	return v, true, nil
}

// CreateIndex implements Engine.
func (b *BleveEngine) CreateIndex(_ context.Context, index string, version int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("bleve engine is closed")
	}
	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return fmt.Errorf("create bleve root %s: %w", b.root, err)
	}

	idx, err := bleve.New(b.path(index), claimIndexMapping())
	if err != nil {
		return fmt.Errorf("create bleve index %s: %w", index, err)
	}
	if err := idx.SetInternal(schemaVersionKey, []byte(strconv.Itoa(version))); err != nil {
		_ = idx.Close()
		_ = os.RemoveAll(b.path(index))
		return fmt.Errorf("store schema version of %s: %w", index, err)
	}
	b.indexes[index] = idx
	return nil
}

// DeleteIndex implements Engine.
func (b *BleveEngine) DeleteIndex(_ context.Context, index string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if idx, ok := b.indexes[index]; ok {
		delete(b.indexes, index)
		if err := idx.Close(); err != nil {
			return fmt.Errorf("close bleve index %s: %w", index, err)
		}
	}
	if err := os.RemoveAll(b.path(index)); err != nil {
		return fmt.Errorf("remove bleve index %s: %w", index, err)
	}
	return nil
}

// IndexBatch implements Engine. Documents bleve cannot analyze are reported
// as item failures; a failed batch commit fails the request.
func (b *BleveEngine) IndexBatch(ctx context.Context, index string, docs []document.Document) ([]ItemFailure, error) {
	b.mu.Lock()
	idx, ok, err := b.open(index)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("bleve index %s does not exist", index)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failures []ItemFailure
	batch := idx.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc.Fields); err != nil {
			failures = append(failures, ItemFailure{ID: doc.ID, Reason: err.Error()})
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return nil, fmt.Errorf("bleve batch on %s: %w", index, err)
		}
	}
	return failures, nil
}

// Refresh implements Engine. Bleve batches are searchable once committed.
func (b *BleveEngine) Refresh(context.Context, string) error {
	return nil
}

// Count implements Engine.
func (b *BleveEngine) Count(_ context.Context, index string) (int64, error) {
	b.mu.Lock()
	idx, ok, err := b.open(index)
	b.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("bleve index %s does not exist", index)
	}
	n, err := idx.DocCount()
	return int64(n), err
}

// Health implements Engine without touching the disk: the root must be a
// directory, or not exist yet under an existing parent directory.
func (b *BleveEngine) Health(context.Context) error {
	dir := b.root
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		dir = filepath.Dir(b.root)
		info, err = os.Stat(dir)
	}
	if err != nil {
		return fmt.Errorf("bleve root %s unusable: %w", b.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("bleve root %s unusable: %s is not a directory", b.root, dir)
	}
	return nil
}

// Close implements Engine.
func (b *BleveEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	var errs []error
	for name, idx := range b.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bleve index %s: %w", name, err))
		}
	}
	b.indexes = nil
	return errors.Join(errs...)
}

// claimIndexMapping maps the claim document schema onto bleve fields.
func claimIndexMapping() mapping.IndexMapping {
	dm := bleve.NewDocumentMapping()
	for _, f := range document.Schema() {
		var fm *mapping.FieldMapping
		switch f.Type {
		case document.TypeInt:
			fm = bleve.NewNumericFieldMapping()
		case document.TypeBool:
			fm = bleve.NewBooleanFieldMapping()
		default:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = keyword.Name
			if f.Text {
				fm.Analyzer = standard.Name
			}
		}
		fm.DocValues = f.Facet
		dm.AddFieldMappingsAt(f.Name, fm)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = dm
	im.DefaultAnalyzer = standard.Name
	return im
}
