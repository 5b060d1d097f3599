// Package guard makes sure a search index exists at the expected schema
// version before it is written to.
//
// The guard is a small state machine. It starts Unknown and ends Ready,
// through one of three edges (create, match, recreate), or Failed. A
// version mismatch is recovered by deleting the index and starting again,
// so it never reaches the caller.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
	"github.com/Aman-CERP/claimsync/internal/searchindex"
)

// Handle is the index connection the guard drives.
type Handle interface {
	Start(ctx context.Context) (created bool, err error)
	DeleteIndex(ctx context.Context) error
	Stop() error
}

// HandleFactory returns a stopped handle for the named index.
type HandleFactory func(index string) Handle

// State is the guard's view of the index.
type State int

const (
	StateUnknown State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is what starting the handle observed.
type Event int

const (
	EventCreated Event = iota
	EventMatched
	EventMismatch
	EventError
)

// Edge is the transition taken.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeCreate
	EdgeMatch
	EdgeRecreate
	EdgeFail
)

// Outcome reports how the index became ready.
type Outcome int

const (
	// OutcomeNone is returned with errors.
	OutcomeNone Outcome = iota
	// OutcomeCreated means the index was absent and is now empty at the
	// expected version.
	OutcomeCreated
	// OutcomeMatched means the index already had the expected version.
	OutcomeMatched
	// OutcomeRecreated means the index had another version and was
	// dropped and created empty at the expected version.
	OutcomeRecreated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeMatched:
		return "matched"
	case OutcomeRecreated:
		return "recreated"
	default:
		return "none"
	}
}

// Ready reports whether the index is at the expected version.
func (o Outcome) Ready() bool {
	return o != OutcomeNone
}

// NeedsSync reports whether the index is empty and must be loaded.
func (o Outcome) NeedsSync() bool {
	return o == OutcomeCreated || o == OutcomeRecreated
}

// transition is the guard's state table. Only Unknown has outgoing edges;
// every other pair is a programming error and fails.
func transition(s State, e Event) (State, Edge) {
	if s != StateUnknown {
		return StateFailed, EdgeFail
	}
	switch e {
	case EventCreated:
		return StateReady, EdgeCreate
	case EventMatched:
		return StateReady, EdgeMatch
	case EventMismatch:
		return StateReady, EdgeRecreate
	default:
		return StateFailed, EdgeFail
	}
}

func classify(created bool, err error) (Event, *searchindex.VersionMismatchError) {
	var mismatch *searchindex.VersionMismatchError
	switch {
	case errors.As(err, &mismatch):
		return EventMismatch, mismatch
	case err != nil:
		return EventError, nil
	case created:
		return EventCreated, nil
	default:
		return EventMatched, nil
	}
}

// Guard brings indexes to their expected version.
type Guard struct {
	handles HandleFactory
	logger  *slog.Logger
}

// New returns a guard using handles to reach each index.
func New(handles HandleFactory, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{handles: handles, logger: logger}
}

// EnsureReady makes index exist at the expected version. The handle is
// stopped before EnsureReady returns, whatever the result. Failures other
// than a version mismatch are returned as ERR_503_INDEX_ADMIN.
func (g *Guard) EnsureReady(ctx context.Context, index string) (outcome Outcome, err error) {
	if index == "" {
		return OutcomeNone, cserrors.New(cserrors.ErrCodeInvalidIndex, "index name must not be empty", nil)
	}
	h := g.handles(index)

	defer func() {
		if stopErr := h.Stop(); stopErr != nil {
			stopErr = adminError(index, "stop", stopErr)
			if err == nil {
				outcome = OutcomeNone
			}
			err = errors.Join(err, stopErr)
		}
	}()

	created, startErr := h.Start(ctx)
	event, mismatch := classify(created, startErr)
	state, edge := transition(StateUnknown, event)

	switch edge {
	case EdgeCreate:
		outcome = OutcomeCreated
	case EdgeMatch:
		outcome = OutcomeMatched
	case EdgeRecreate:
		if err := g.recreate(ctx, h, mismatch); err != nil {
			return OutcomeNone, err
		}
		outcome = OutcomeRecreated
	default:
		return OutcomeNone, adminError(index, "start", startErr)
	}

	g.logger.Debug("search_index_ready",
		slog.String("index", index),
		slog.String("state", state.String()),
		slog.String("outcome", outcome.String()))
	return outcome, nil
}

// recreate runs the side effects of the recreate edge: delete, stop, start.
func (g *Guard) recreate(ctx context.Context, h Handle, mismatch *searchindex.VersionMismatchError) error {
	g.logger.Info("dropping_search_index_for_upgrade",
		slog.String("index", mismatch.Index),
		slog.Int("got", mismatch.Got),
		slog.Int("expected", mismatch.Expected))

	if err := h.DeleteIndex(ctx); err != nil {
		return adminError(mismatch.Index, "delete", err)
	}
	if err := h.Stop(); err != nil {
		return adminError(mismatch.Index, "stop", err)
	}
	if _, err := h.Start(ctx); err != nil {
		return adminError(mismatch.Index, "recreate", err)
	}
	return nil
}

func adminError(index, op string, err error) error {
	if err == nil {
		err = errors.New("unexpected guard state")
	}
	return cserrors.New(cserrors.ErrCodeIndexAdmin,
		fmt.Sprintf("failed to %s search index %s", op, index), err).
		WithDetail("index", index).
		WithDetail("operation", op)
}
