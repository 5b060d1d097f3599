package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/claimsync/internal/claims"
	"github.com/Aman-CERP/claimsync/internal/claims/claimstest"
	"github.com/Aman-CERP/claimsync/internal/document"
	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
)

var identity = document.MapperFunc(func(c *claims.Claim, index string) (document.Document, error) {
	return document.Document{ID: c.ClaimID, Index: index}, nil
})

type recorder struct {
	mu     sync.Mutex
	counts []int
}

func (r *recorder) Progress(_ string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, count)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func drain(t *testing.T, seq func(func(document.Document, error) bool)) ([]document.Document, error) {
	t.Helper()
	var docs []document.Document
	for doc, err := range seq {
		if err != nil {
			return docs, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func TestDocuments_OneDocumentPerClaim(t *testing.T) {
	// Given: a store of 7 claims opened by the stream
	store := claimstest.Generate(7)
	opener := store.Opener()
	s := New(opener, identity, WithLogger(quietLogger()))

	// When: draining the stream
	docs, err := drain(t, s.Documents(context.Background(), "claims", nil))

	// Then: one document per claim, in order, and the owned store is closed
	require.NoError(t, err)
	require.Len(t, docs, 7)
	for i, doc := range docs {
		assert.Equal(t, "claims", doc.Index)
		if i > 0 {
			assert.Less(t, docs[i-1].ID, doc.ID)
		}
	}
	assert.Equal(t, 1, opener.Opens())
	assert.Equal(t, 1, store.Closed())
}

func TestDocuments_BorrowedStoreStaysOpen(t *testing.T) {
	store := claimstest.Generate(3)
	opener := store.Opener()
	s := New(opener, identity, WithLogger(quietLogger()))

	docs, err := drain(t, s.Documents(context.Background(), "claims", store))

	require.NoError(t, err)
	assert.Len(t, docs, 3)
	assert.Equal(t, 0, opener.Opens())
	assert.Equal(t, 0, store.Closed())
}

func TestDocuments_EarlyBreakClosesOwnedStore(t *testing.T) {
	// Given: an owned store of 10 claims
	store := claimstest.Generate(10)
	s := New(store.Opener(), identity, WithLogger(quietLogger()))

	// When: the consumer stops after 2 documents
	n := 0
	for range s.Documents(context.Background(), "claims", nil) {
		n++
		if n == 2 {
			break
		}
	}

	// Then: no more claims were read and the store was closed
	assert.Equal(t, 2, store.Reads())
	assert.Equal(t, 1, store.Closed())
}

func TestDocuments_StoreFailureAfterThree(t *testing.T) {
	// Given: a store that fails after 3 of 10 claims
	store := claimstest.Generate(10)
	store.FailAfter = 3
	store.Err = errors.New("disk read error")
	s := New(store.Opener(), identity, WithLogger(quietLogger()))

	// When: draining
	docs, err := drain(t, s.Documents(context.Background(), "claims", nil))

	// Then: three documents, then a store read error; the store is closed
	assert.Len(t, docs, 3)
	require.Error(t, err)
	assert.True(t, cserrors.HasCode(err, cserrors.ErrCodeStoreRead))
	assert.ErrorIs(t, err, store.Err)
	assert.Equal(t, 1, store.Closed())
}

func TestDocuments_MappingFailure(t *testing.T) {
	store := claimstest.Generate(5)
	failing := document.MapperFunc(func(c *claims.Claim, index string) (document.Document, error) {
		if c.Height == 2 {
			return document.Document{}, errors.New("bad metadata")
		}
		return identity(c, index)
	})
	s := New(store.Opener(), failing, WithLogger(quietLogger()))

	docs, err := drain(t, s.Documents(context.Background(), "claims", nil))

	assert.Len(t, docs, 2)
	require.Error(t, err)
	assert.True(t, cserrors.HasCode(err, cserrors.ErrCodeMapping))
	assert.Equal(t, 1, store.Closed())
}

func TestDocuments_EmptyIndexRejectedBeforeOpen(t *testing.T) {
	store := claimstest.Generate(1)
	opener := store.Opener()
	s := New(opener, identity, WithLogger(quietLogger()))

	_, err := drain(t, s.Documents(context.Background(), "", nil))

	assert.True(t, cserrors.HasCode(err, cserrors.ErrCodeInvalidIndex))
	assert.Equal(t, 0, opener.Opens())
}

func TestDocuments_OpenFailure(t *testing.T) {
	opener := claimstest.Generate(1).Opener()
	opener.Err = cserrors.New(cserrors.ErrCodeStoreOpen, "no store", nil)
	s := New(opener, identity, WithLogger(quietLogger()))

	docs, err := drain(t, s.Documents(context.Background(), "claims", nil))

	assert.Empty(t, docs)
	assert.True(t, cserrors.HasCode(err, cserrors.ErrCodeStoreOpen))
}

func TestDocuments_ProgressEveryTenThousand(t *testing.T) {
	// Given: 25,000 claims and the identity mapper
	store := claimstest.Generate(25000)
	rec := &recorder{}
	s := New(store.Opener(), identity, WithObserver(rec), WithLogger(quietLogger()))

	// When: draining
	docs, err := drain(t, s.Documents(context.Background(), "claims", nil))

	// Then: 25,000 documents and exactly two progress reports
	require.NoError(t, err)
	assert.Len(t, docs, 25000)
	assert.Equal(t, []int{10000, 20000}, rec.counts)
}

func TestDocuments_CustomInterval(t *testing.T) {
	rec := &recorder{}
	s := New(claimstest.Generate(10).Opener(), identity,
		WithObserver(rec), WithProgressEvery(4), WithLogger(quietLogger()))

	_, err := drain(t, s.Documents(context.Background(), "claims", nil))

	require.NoError(t, err)
	assert.Equal(t, []int{4, 8}, rec.counts)
}

func TestObservers_FanOutSkipsNil(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	obs := Observers(a, nil, b)

	obs.Progress("claims", 10)

	assert.Equal(t, []int{10}, a.counts)
	assert.Equal(t, []int{10}, b.counts)
}
