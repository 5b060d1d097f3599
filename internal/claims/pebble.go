package claims

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Pebble keys are "c/" followed by the claim id, so key order is claim id
// order.
var claimPrefix = []byte("c/")

func claimKey(id string) []byte {
	return append(append([]byte{}, claimPrefix...), id...)
}

// prefixEnd returns the first key after every key with the given prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// PebbleStore reads claims from a pebble database.
type PebbleStore struct {
	db   *pebble.DB
	opts Options

	closeOnce sync.Once
	closeErr  error
}

// OpenPebble opens the pebble database at dir. A read-only store fails when
// dir does not hold a database.
func OpenPebble(dir string, readOnly bool, opts Options) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		ReadOnly:         readOnly,
		ErrorIfNotExists: readOnly,
	})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db, opts: opts}, nil
}

// Put writes claims in one synced batch.
func (s *PebbleStore) Put(claims ...*Claim) error {
	b := s.db.NewBatch()
	defer b.Close()

	for _, c := range claims {
		data, err := Encode(c)
		if err != nil {
			return err
		}
		if err := b.Set(claimKey(c.ClaimID), data, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Claims implements Store.
func (s *PebbleStore) Claims(ctx context.Context) iter.Seq2[*Claim, error] {
	return func(yield func(*Claim, error) bool) {
		it, err := s.db.NewIter(&pebble.IterOptions{
			LowerBound: claimPrefix,
			UpperBound: prefixEnd(claimPrefix),
		})
		if err != nil {
			yield(nil, err)
			return
		}
		defer it.Close()

		for it.First(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			c, err := Decode(string(it.Key()), it.Value())
			if err != nil {
				yield(nil, err)
				return
			}
			if !s.opts.include(c) {
				continue
			}
			if !yield(c, nil) {
				return
			}
		}
		if err := it.Error(); err != nil {
			yield(nil, fmt.Errorf("pebble iterate: %w", err))
		}
	}
}

// Close implements Store.
func (s *PebbleStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
