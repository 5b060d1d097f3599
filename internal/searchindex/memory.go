package searchindex

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/Aman-CERP/claimsync/internal/document"
)

type memoryIndex struct {
	version int
	docs    map[string]map[string]any
}

// MemoryEngine keeps indexes in memory. It backs dry runs and tests, and
// records every call it receives.
//
// Connect returns the engine itself, so all connections share state; Close
// only counts.
type MemoryEngine struct {
	// RejectItem, when set, is asked about every document; a non-empty
	// reason rejects it.
	RejectItem func(doc document.Document) string
	// BatchErr, when set, is asked before every batch; an error fails the
	// whole request.
	BatchErr func(batch int) error
	// HealthErr, when set, is returned by Health.
	HealthErr error
	// AdminErr, when set, fails CreateIndex and DeleteIndex.
	AdminErr error

	mu      sync.Mutex
	indexes map[string]*memoryIndex
	calls   []string
	batches int
	closes  int
}

// NewMemoryEngine returns an empty engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{indexes: make(map[string]*memoryIndex)}
}

// Seed creates index at version without recording a call.
func (m *MemoryEngine) Seed(index string, version int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[index] = &memoryIndex{version: version, docs: make(map[string]map[string]any)}
}

// Connect implements Connector.
func (m *MemoryEngine) Connect(context.Context) (Engine, error) {
	m.record("connect", "")
	return m, nil
}

func (m *MemoryEngine) record(op, index string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked(op, index)
}

func (m *MemoryEngine) recordLocked(op, index string) {
	if index == "" {
		m.calls = append(m.calls, op)
		return
	}
	m.calls = append(m.calls, op+":"+index)
}

// ProbeVersion implements Engine.
func (m *MemoryEngine) ProbeVersion(_ context.Context, index string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked("probe", index)

	idx, ok := m.indexes[index]
	if !ok {
		return 0, false, nil
	}
	return idx.version, true, nil
}

// CreateIndex implements Engine.
func (m *MemoryEngine) CreateIndex(_ context.Context, index string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked("create", index)

	if m.AdminErr != nil {
		return m.AdminErr
	}
	if _, ok := m.indexes[index]; ok {
		return fmt.Errorf("index %s already exists", index)
	}
	m.indexes[index] = &memoryIndex{version: version, docs: make(map[string]map[string]any)}
	return nil
}

// DeleteIndex implements Engine.
func (m *MemoryEngine) DeleteIndex(_ context.Context, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked("delete", index)

	if m.AdminErr != nil {
		return m.AdminErr
	}
	delete(m.indexes, index)
	return nil
}

// IndexBatch implements Engine.
func (m *MemoryEngine) IndexBatch(ctx context.Context, index string, docs []document.Document) ([]ItemFailure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked("index_batch", index)

	batch := m.batches
	m.batches++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.BatchErr != nil {
		if err := m.BatchErr(batch); err != nil {
			return nil, err
		}
	}

	idx, ok := m.indexes[index]
	if !ok {
		return nil, fmt.Errorf("index %s does not exist", index)
	}

	var failures []ItemFailure
	for _, doc := range docs {
		if m.RejectItem != nil {
			if reason := m.RejectItem(doc); reason != "" {
				failures = append(failures, ItemFailure{ID: doc.ID, Reason: reason})
				continue
			}
		}
		idx.docs[doc.ID] = maps.Clone(doc.Fields)
	}
	return failures, nil
}

// Refresh implements Engine.
func (m *MemoryEngine) Refresh(_ context.Context, index string) error {
	m.record("refresh", index)
	return nil
}

// Count implements Engine.
func (m *MemoryEngine) Count(_ context.Context, index string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.indexes[index]
	if !ok {
		return 0, fmt.Errorf("index %s does not exist", index)
	}
	return int64(len(idx.docs)), nil
}

// Health implements Engine.
func (m *MemoryEngine) Health(context.Context) error {
	return m.HealthErr
}

// Close implements Engine.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.recordLocked("close", "")
	return nil
}

// --- Inspection helpers ---

// Calls returns the recorded calls as "op" or "op:index", in order.
func (m *MemoryEngine) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how many times op was called on any index.
func (m *MemoryEngine) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == op || len(c) > len(op) && c[:len(op)+1] == op+":" {
			n++
		}
	}
	return n
}

// Closes returns how many times Close was called.
func (m *MemoryEngine) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// Get returns a stored document's fields.
func (m *MemoryEngine) Get(index, id string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexes[index]
	if !ok {
		return nil, false
	}
	doc, ok := idx.docs[id]
	return doc, ok
}
