package searchindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/claimsync/internal/claims"
	"github.com/Aman-CERP/claimsync/internal/document"
)

func claimDocs(t *testing.T, n int) []document.Document {
	t.Helper()
	docs := make([]document.Document, n)
	for i := range docs {
		doc, err := document.NewClaimMapper().Map(&claims.Claim{
			ClaimID:   fmt.Sprintf("%040x", i),
			Name:      fmt.Sprintf("Lecture-%d", i),
			ClaimType: "stream",
			Title:     "Introduction to Go",
			Tags:      []string{"education"},
			Height:    int64(100 + i),
		}, "claims")
		require.NoError(t, err)
		docs[i] = doc
	}
	return docs
}

func TestBleveEngine_Lifecycle(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	engine := NewBleveEngine(root, quietLogger())
	defer engine.Close()

	// Given: nothing on disk
	_, exists, err := engine.ProbeVersion(ctx, "claims")
	require.NoError(t, err)
	assert.False(t, exists)

	// When: creating at version 3 and indexing
	require.NoError(t, engine.CreateIndex(ctx, "claims", 3))
	failures, err := engine.IndexBatch(ctx, "claims", claimDocs(t, 5))
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.NoError(t, engine.Refresh(ctx, "claims"))

	// Then: the version and documents are visible
	v, exists, err := engine.ProbeVersion(ctx, "claims")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 3, v)
	n, err := engine.Count(ctx, "claims")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// And: deleting removes it
	require.NoError(t, engine.DeleteIndex(ctx, "claims"))
	_, exists, err = engine.ProbeVersion(ctx, "claims")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBleveEngine_VersionSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	first := NewBleveEngine(root, quietLogger())
	require.NoError(t, first.CreateIndex(ctx, "claims", 7))
	_, err := first.IndexBatch(ctx, "claims", claimDocs(t, 2))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := NewBleveEngine(root, quietLogger())
	defer second.Close()
	v, exists, err := second.ProbeVersion(ctx, "claims")

	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 7, v)
}

func TestBleveEngine_UpsertKeepsOneDocumentPerClaim(t *testing.T) {
	ctx := context.Background()
	engine := NewBleveEngine(t.TempDir(), quietLogger())
	defer engine.Close()
	require.NoError(t, engine.CreateIndex(ctx, "claims", 1))

	docs := claimDocs(t, 3)
	_, err := engine.IndexBatch(ctx, "claims", docs)
	require.NoError(t, err)
	_, err = engine.IndexBatch(ctx, "claims", docs)
	require.NoError(t, err)

	n, err := engine.Count(ctx, "claims")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestBleveEngine_Searchable(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	engine := NewBleveEngine(root, quietLogger())
	require.NoError(t, engine.CreateIndex(ctx, "claims", 1))
	_, err := engine.IndexBatch(ctx, "claims", claimDocs(t, 4))
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	// Open the index directly, as a search service would.
	idx, err := bleve.Open(root + "/claims.bleve")
	require.NoError(t, err)
	defer idx.Close()

	q := bleve.NewMatchQuery("introduction")
	q.SetField(document.FieldTitle)
	res, err := idx.Search(bleve.NewSearchRequest(q))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), res.Total)

	tq := bleve.NewTermQuery("education")
	tq.SetField(document.FieldTags)
	res, err = idx.Search(bleve.NewSearchRequest(tq))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), res.Total)
}

func TestBleveEngine_UnreadableIndexReportsVersionZero(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "claims.bleve"), 0o755))
	engine := NewBleveEngine(root, quietLogger())
	defer engine.Close()

	// Given: an index directory without metadata
	v, exists, err := engine.ProbeVersion(ctx, "claims")

	// Then: it shows up as an index at version 0
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 0, v)

	// And: it can be dropped and created again
	require.NoError(t, engine.DeleteIndex(ctx, "claims"))
	require.NoError(t, engine.CreateIndex(ctx, "claims", 1))
	v, exists, err = engine.ProbeVersion(ctx, "claims")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, v)
}

func TestBleveEngine_HealthDoesNotCreateRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "search")
	engine := NewBleveEngine(root, quietLogger())
	defer engine.Close()

	require.NoError(t, engine.Health(context.Background()))
	_, err := os.Stat(root)
	assert.True(t, os.IsNotExist(err))

	missing := NewBleveEngine(filepath.Join(parent, "a", "b"), quietLogger())
	assert.Error(t, missing.Health(context.Background()))

	file := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.Error(t, NewBleveEngine(file, quietLogger()).Health(context.Background()))
}

func TestBleveEngine_MissingIndex(t *testing.T) {
	ctx := context.Background()
	engine := NewBleveEngine(t.TempDir(), quietLogger())
	defer engine.Close()

	_, err := engine.IndexBatch(ctx, "claims", claimDocs(t, 1))
	assert.Error(t, err)
	assert.NoError(t, engine.DeleteIndex(ctx, "claims"))
}

func TestBleveEngine_ClosedRejectsWork(t *testing.T) {
	engine := NewBleveEngine(t.TempDir(), quietLogger())
	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())

	assert.Error(t, engine.CreateIndex(context.Background(), "claims", 1))
}
