// Package stream turns a claim store into a lazy sequence of search
// documents.
package stream

import (
	"context"
	"iter"
	"log/slog"
	"strconv"

	"github.com/Aman-CERP/claimsync/internal/claims"
	"github.com/Aman-CERP/claimsync/internal/document"
	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
)

// DefaultProgressEvery is how many documents pass between progress reports.
const DefaultProgressEvery = 10000

// Ownership records whether the stream must close the store it reads.
type Ownership int

const (
	// Borrowed stores belong to the caller and are never closed here.
	Borrowed Ownership = iota
	// Owned stores were opened by the stream and close when it ends.
	Owned
)

func (o Ownership) String() string {
	if o == Owned {
		return "owned"
	}
	return "borrowed"
}

// Stream maps every claim of a store to a document.
type Stream struct {
	opener   claims.Opener
	mapper   document.Mapper
	observer Observer
	every    int
	logger   *slog.Logger
}

// Option configures a Stream.
type Option func(*Stream)

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(s *Stream) { s.observer = o }
}

// WithProgressEvery sets the progress interval. Zero or less disables
// progress reports.
func WithProgressEvery(n int) Option {
	return func(s *Stream) { s.every = n }
}

// WithLogger sets the logger used for debug events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Stream) { s.logger = l }
}

// New returns a Stream that opens stores with opener when none is supplied.
func New(opener claims.Opener, mapper document.Mapper, opts ...Option) *Stream {
	s := &Stream{
		opener:   opener,
		mapper:   mapper,
		observer: Observers(),
		every:    DefaultProgressEvery,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Documents returns one document per claim, in store order.
//
// A nil store is opened from the Stream's opener and closed when iteration
// ends, including when the consumer stops early. A non-nil store is
// borrowed and left open. The sequence yields at most one error and then
// ends; the error is a SyncError with code ERR_202_STORE_OPEN,
// ERR_201_STORE_READ, ERR_401_MAPPING or ERR_402_INVALID_INDEX.
func (s *Stream) Documents(ctx context.Context, index string, store claims.Store) iter.Seq2[document.Document, error] {
	return func(yield func(document.Document, error) bool) {
		if index == "" {
			yield(document.Document{}, cserrors.New(cserrors.ErrCodeInvalidIndex, "index name must not be empty", nil))
			return
		}

		ownership := Borrowed
		if store == nil {
			opened, err := s.opener.Open(ctx)
			if err != nil {
				yield(document.Document{}, err)
				return
			}
			store = opened
			ownership = Owned
		}
		if ownership == Owned {
			defer func() {
				if err := store.Close(); err != nil {
					s.logger.Warn("claim_store_close_failed", slog.String("error", err.Error()))
				}
			}()
		}
		s.logger.Debug("claim_stream_started",
			slog.String("index", index),
			slog.String("store", ownership.String()))

		count := 0
		for c, err := range store.Claims(ctx) {
			if err != nil {
				yield(document.Document{}, readError(err, count))
				return
			}

			doc, err := s.mapper.Map(c, index)
			if err != nil {
				yield(document.Document{}, mappingError(err, c))
				return
			}

			count++
			if !yield(doc, nil) {
				return
			}
			if s.every > 0 && count%s.every == 0 {
				s.observer.Progress(index, count)
			}
		}
		s.logger.Debug("claim_stream_finished",
			slog.String("index", index),
			slog.Int("documents", count))
	}
}

func readError(err error, count int) error {
	return cserrors.New(cserrors.ErrCodeStoreRead, "failed to read claims", err).
		WithDetail("claims_read", strconv.Itoa(count))
}

func mappingError(err error, c *claims.Claim) error {
	if cserrors.HasCode(err, cserrors.ErrCodeMapping) {
		return err
	}
	se := cserrors.New(cserrors.ErrCodeMapping, "failed to map claim", err)
	if c != nil {
		se.WithDetail("claim_id", c.ClaimID)
	}
	return se
}
