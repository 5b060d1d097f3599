// Package claimstest provides an in-memory claims.Store for tests.
package claimstest

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/Aman-CERP/claimsync/internal/claims"
)

// Store yields a fixed slice of claims.
type Store struct {
	claims []*claims.Claim

	// FailAfter, when positive, makes iteration fail after that many claims.
	FailAfter int
	// Err is the failure returned by FailAfter.
	Err error

	mu     sync.Mutex
	closed int
	reads  int
}

// New returns a store holding cs.
func New(cs ...*claims.Claim) *Store {
	return &Store{claims: cs}
}

// Generate returns a store with n claims whose ids are the zero-padded
// index in hex.
func Generate(n int) *Store {
	cs := make([]*claims.Claim, n)
	for i := range cs {
		cs[i] = &claims.Claim{
			ClaimID:   fmt.Sprintf("%040x", i),
			Name:      fmt.Sprintf("claim-%d", i),
			Height:    int64(i),
			ClaimType: "stream",
		}
	}
	return New(cs...)
}

// Claims implements claims.Store.
func (s *Store) Claims(ctx context.Context) iter.Seq2[*claims.Claim, error] {
	return func(yield func(*claims.Claim, error) bool) {
		for i, c := range s.claims {
			if s.FailAfter > 0 && i == s.FailAfter {
				err := s.Err
				if err == nil {
					err = fmt.Errorf("read failed after %d claims", i)
				}
				yield(nil, err)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			s.mu.Lock()
			s.reads++
			s.mu.Unlock()
			if !yield(c, nil) {
				return
			}
		}
	}
}

// Close implements claims.Store and counts calls.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Closed returns how many times Close was called.
func (s *Store) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reads returns how many claims were yielded.
func (s *Store) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Opener returns an opener that hands out s and counts opens.
func (s *Store) Opener() *Opener {
	return &Opener{store: s}
}

// Opener opens a fixed Store.
type Opener struct {
	store *Store
	// Err, when set, is returned by Open instead of the store.
	Err error

	mu    sync.Mutex
	opens int
}

// Open implements claims.Opener.
func (o *Opener) Open(context.Context) (claims.Store, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return nil, o.Err
	}
	o.opens++
	return o.store, nil
}

// Opens returns how many times Open succeeded.
func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}
