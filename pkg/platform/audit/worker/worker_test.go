package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	audit "tokenledger/pkg/platform/audit"
	"tokenledger/pkg/platform/audit/worker/mocks"
)

type RelaySuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	outbox *mocks.MockOutbox
	sink   *mocks.MockSink
	relay  *Relay
	now    time.Time
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.outbox = mocks.NewMockOutbox(s.ctrl)
	s.sink = mocks.NewMockSink(s.ctrl)
	s.now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	s.relay = NewRelay(s.outbox, s.sink,
		WithBatchSize(2),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.relay.now = func() time.Time { return s.now }
}

func (s *RelaySuite) TearDownTest() {
	s.ctrl.Finish()
}

func entries(n int) []audit.OutboxEntry {
	out := make([]audit.OutboxEntry, n)
	for i := range out {
		out[i] = audit.OutboxEntry{ID: uuid.New(), AggregateID: "alice", EventType: "transfer"}
	}
	return out
}

// =============================================================================
// Drain
// =============================================================================

func (s *RelaySuite) TestDrainPublishesUntilShortBatch() {
	first := entries(2)
	second := entries(1)

	gomock.InOrder(
		s.outbox.EXPECT().FetchUnpublished(gomock.Any(), 2).Return(first, nil),
		s.sink.EXPECT().Publish(gomock.Any(), first).Return(nil),
		s.outbox.EXPECT().MarkPublished(gomock.Any(), []uuid.UUID{first[0].ID, first[1].ID}, s.now).Return(nil),
		s.outbox.EXPECT().FetchUnpublished(gomock.Any(), 2).Return(second, nil),
		s.sink.EXPECT().Publish(gomock.Any(), second).Return(nil),
		s.outbox.EXPECT().MarkPublished(gomock.Any(), []uuid.UUID{second[0].ID}, s.now).Return(nil),
	)

	n, err := s.relay.Drain(context.Background())
	s.Require().NoError(err)
	s.Equal(3, n)
}

func (s *RelaySuite) TestDrainEmptyOutbox() {
	s.outbox.EXPECT().FetchUnpublished(gomock.Any(), 2).Return(nil, nil)

	n, err := s.relay.Drain(context.Background())
	s.Require().NoError(err)
	s.Zero(n)
}

// Justification: entries must stay unpublished when the sink rejects the
// batch, otherwise they would never be retried.
func (s *RelaySuite) TestDrainSinkFailureLeavesEntriesPending() {
	batch := entries(1)
	s.outbox.EXPECT().FetchUnpublished(gomock.Any(), 2).Return(batch, nil)
	s.sink.EXPECT().Publish(gomock.Any(), batch).Return(errors.New("broker down"))
	s.outbox.EXPECT().MarkPublished(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	n, err := s.relay.Drain(context.Background())
	s.Require().Error(err)
	s.Zero(n)
}

func (s *RelaySuite) TestDrainFetchFailure() {
	s.outbox.EXPECT().FetchUnpublished(gomock.Any(), 2).Return(nil, errors.New("db down"))

	_, err := s.relay.Drain(context.Background())
	s.Require().Error(err)
}

// =============================================================================
// Run
// =============================================================================

func TestRelay_RunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	outbox := mocks.NewMockOutbox(ctrl)
	sink := mocks.NewMockSink(ctrl)
	outbox.EXPECT().FetchUnpublished(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	relay := NewRelay(outbox, sink, WithInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		assert.Fail(t, "relay did not stop")
	}
}
