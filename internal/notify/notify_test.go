package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishMsg(msg *nats.Msg) error {
	return m.Called(msg).Error(0)
}

func (m *mockPublisher) FlushWithContext(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockPublisher) Drain() error {
	return m.Called().Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event() SyncCompleted {
	return SyncCompleted{
		RunID:       "8d7c2f0e-5a51-4f0b-9a53-1f4f2c1d9e10",
		Index:       "claims",
		Outcome:     "recreated",
		Submitted:   25000,
		Indexed:     25000,
		DurationMS:  4200,
		CompletedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNATS_PublishesJSONWithMsgID(t *testing.T) {
	// Given a notifier over a mocked connection
	pub := new(mockPublisher)
	var sent *nats.Msg
	pub.On("PublishMsg", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).(*nats.Msg)
	}).Return(nil).Once()
	pub.On("FlushWithContext", mock.Anything).Return(nil).Once()
	n := newNATS(pub, "", quietLogger())

	// When an event is published
	err := n.SyncCompleted(context.Background(), event())

	// Then it goes to the default subject as JSON, deduplicated by run id
	require.NoError(t, err)
	pub.AssertExpectations(t)
	require.NotNil(t, sent)
	assert.Equal(t, DefaultSubject, sent.Subject)
	assert.Equal(t, event().RunID, sent.Header.Get(nats.MsgIdHdr))

	var got SyncCompleted
	require.NoError(t, json.Unmarshal(sent.Data, &got))
	assert.Equal(t, event(), got)
}

func TestNATS_PublishFailure(t *testing.T) {
	// Given a connection refusing to publish
	pub := new(mockPublisher)
	pub.On("PublishMsg", mock.Anything).Return(nats.ErrConnectionClosed)
	n := newNATS(pub, "claims.done", quietLogger())

	// When an event is published
	err := n.SyncCompleted(context.Background(), event())

	// Then the error names the subject and no flush happens
	require.Error(t, err)
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
	assert.Contains(t, err.Error(), "claims.done")
	pub.AssertNotCalled(t, "FlushWithContext", mock.Anything)
}

func TestNATS_FlushFailure(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishMsg", mock.Anything).Return(nil)
	pub.On("FlushWithContext", mock.Anything).Return(context.DeadlineExceeded)
	n := newNATS(pub, "claims.done", quietLogger())

	err := n.SyncCompleted(context.Background(), event())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNATS_CloseDrains(t *testing.T) {
	pub := new(mockPublisher)
	drainErr := errors.New("drain timeout")
	pub.On("Drain").Return(drainErr).Once()

	err := newNATS(pub, "", quietLogger()).Close()

	assert.ErrorIs(t, err, drainErr)
	pub.AssertExpectations(t)
}

func TestNew_WithoutURLIsNoop(t *testing.T) {
	// Given no NATS url
	n, err := New("", "", quietLogger())

	// Then events are dropped silently
	require.NoError(t, err)
	assert.IsType(t, Noop{}, n)
	assert.NoError(t, n.SyncCompleted(context.Background(), event()))
	assert.NoError(t, n.Close())
}

func TestNew_UnreachableServer(t *testing.T) {
	// Given a url nothing listens on
	_, err := New("nats://127.0.0.1:1", "", quietLogger())

	// Then connecting fails
	assert.Error(t, err)
}
