// Package notify announces finished resync runs to other services.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Aman-CERP/claimsync/pkg/version"
)

// DefaultSubject is used when none is configured.
const DefaultSubject = "claimsync.completed"

// SyncCompleted is published once per successful run.
type SyncCompleted struct {
	RunID       string    `json:"run_id"`
	Index       string    `json:"index"`
	Outcome     string    `json:"outcome"`
	Submitted   int       `json:"submitted"`
	Indexed     int       `json:"indexed"`
	Failed      int       `json:"failed"`
	DurationMS  int64     `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// Notifier publishes run events.
type Notifier interface {
	SyncCompleted(ctx context.Context, ev SyncCompleted) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

// SyncCompleted implements Notifier.
func (Noop) SyncCompleted(context.Context, SyncCompleted) error { return nil }

// Close implements Notifier.
func (Noop) Close() error { return nil }

// publisher is the part of *nats.Conn used here.
type publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATS publishes events as JSON on a subject. Each message carries the run
// id as Nats-Msg-Id so a JetStream stream on the subject drops duplicates.
type NATS struct {
	conn    publisher
	subject string
	log     *slog.Logger
}

var _ Notifier = (*NATS)(nil)

// NewNATS connects to url.
func NewNATS(url, subject string, logger *slog.Logger) (*NATS, error) {
	opts := []nats.Option{
		nats.Name(version.Name()),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return newNATS(nc, subject, logger), nil
}

func newNATS(conn publisher, subject string, logger *slog.Logger) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATS{conn: conn, subject: subject, log: logger}
}

// SyncCompleted implements Notifier. It returns once the server has the
// message or ctx ends.
func (n *NATS) SyncCompleted(ctx context.Context, ev SyncCompleted) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode sync completed event: %w", err)
	}
	msg := nats.NewMsg(n.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, ev.RunID)

	n.log.Debug("publishing_event",
		slog.String("subject", n.subject),
		slog.Int("data_size", len(data)))
	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", n.subject, err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", n.subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

// New returns a NATS notifier when url is set, Noop otherwise.
func New(url, subject string, logger *slog.Logger) (Notifier, error) {
	if url == "" {
		return Noop{}, nil
	}
	return NewNATS(url, subject, logger)
}
