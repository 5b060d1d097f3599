package searchindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/claimsync/internal/document"
)

func TestMemoryEngine_RecordsCalls(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryEngine()

	_, _ = m.Connect(ctx)
	require.NoError(t, m.CreateIndex(ctx, "claims", 1))
	_, err := m.IndexBatch(ctx, "claims", []document.Document{{ID: "a"}})
	require.NoError(t, err)
	require.NoError(t, m.Refresh(ctx, "claims"))
	require.NoError(t, m.Close())

	assert.Equal(t, []string{"connect", "create:claims", "index_batch:claims", "refresh:claims", "close"}, m.Calls())
	assert.Equal(t, 1, m.CallCount("refresh"))
	_, ok := m.Get("claims", "a")
	assert.True(t, ok)
}

func TestMemoryEngine_Failures(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryEngine()
	m.Seed("claims", 1)
	m.RejectItem = func(doc document.Document) string {
		if doc.ID == "bad" {
			return "mapper_parsing_exception"
		}
		return ""
	}
	m.BatchErr = func(batch int) error {
		if batch == 1 {
			return errors.New("connection reset")
		}
		return nil
	}

	failures, err := m.IndexBatch(ctx, "claims", []document.Document{{ID: "ok"}, {ID: "bad"}})
	require.NoError(t, err)
	assert.Equal(t, []ItemFailure{{ID: "bad", Reason: "mapper_parsing_exception"}}, failures)

	_, err = m.IndexBatch(ctx, "claims", []document.Document{{ID: "x"}})
	assert.EqualError(t, err, "connection reset")

	n, _ := m.Count(ctx, "claims")
	assert.Equal(t, int64(1), n)
}
