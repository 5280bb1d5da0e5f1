package redelivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUseCase struct {
	mu         sync.Mutex
	pending    []*entity.RedeliveryEvent
	processed  int
	retried    int
	markFailed int
	cleanups   []time.Duration
	staleAfter []time.Duration
}

func (f *fakeUseCase) Schedule(context.Context, []*entity.RedeliveryEvent) error { return nil }

func (f *fakeUseCase) ClaimPendingEvents(context.Context, int, int) ([]*entity.RedeliveryEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := f.pending
	f.pending = nil

	return events, nil
}

func (f *fakeUseCase) MarkAsProcessedBatch(ctx context.Context, events []*entity.RedeliveryEvent) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed += len(events)

	return nil
}

func (f *fakeUseCase) IncrementRetryCountBatch(ctx context.Context, events []*entity.RedeliveryEvent) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried += len(events)

	return nil
}

func (f *fakeUseCase) MarkMaxRetriesAsFailed(context.Context, int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markFailed++

	return nil
}

func (f *fakeUseCase) ReleaseStale(_ context.Context, olderThan time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleAfter = append(f.staleAfter, olderThan)

	return nil
}

func (f *fakeUseCase) Cleanup(_ context.Context, olderThan time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups = append(f.cleanups, olderThan)

	return nil
}

// fakeSender fails with err, or with ctx.Err() once ctx is done when
// blockUntilDone is set.
type fakeSender struct {
	mu             sync.Mutex
	err            error
	blockUntilDone bool
	sent           int
	closed         bool
}

func (s *fakeSender) SendEvents(ctx context.Context, events []*entity.RedeliveryEvent) error {
	if s.blockUntilDone {
		<-ctx.Done()

		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent += len(events)

	return nil
}

func (s *fakeSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true

	return nil
}

var testConfig = Config{
	PollInterval:        5 * time.Millisecond,
	CleanupInterval:     5 * time.Millisecond,
	MarkFailedInterval:  5 * time.Millisecond,
	ProcessBatchTimeout: time.Second,
	RetentionPeriod:     time.Hour,
	StaleAfter:          time.Minute,
	BatchSize:           10,
	MaxRetries:          3,
}

func pendingEvents(n int) []*entity.RedeliveryEvent {
	events := make([]*entity.RedeliveryEvent, n)
	for i := range events {
		events[i] = &entity.RedeliveryEvent{Status: entity.Pending}
	}

	return events
}

func TestProcessEventsBatch_Sent(t *testing.T) {
	uc := &fakeUseCase{pending: pendingEvents(2)}
	es := &fakeSender{}
	r := New(uc, es, logger.New("error"), testConfig)

	r.processEventsBatch(context.Background())

	assert.Equal(t, 2, es.sent)
	assert.Equal(t, 2, uc.processed)
	assert.Zero(t, uc.retried)
}

func TestProcessEventsBatch_SendFailureRetries(t *testing.T) {
	uc := &fakeUseCase{pending: pendingEvents(3)}
	es := &fakeSender{err: errors.New("broker down")}
	r := New(uc, es, logger.New("error"), testConfig)

	r.processEventsBatch(context.Background())

	assert.Equal(t, 3, uc.retried)
	assert.Zero(t, uc.processed)
}

func TestProcessEventsBatch_SendTimeoutReturnsEventsToPending(t *testing.T) {
	uc := &fakeUseCase{pending: pendingEvents(3)}
	es := &fakeSender{blockUntilDone: true}
	r := New(uc, es, logger.New("error"), testConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r.processEventsBatch(ctx)

	assert.Equal(t, 3, uc.retried)
	assert.Zero(t, uc.processed)
}

func TestNew_StaleAfterExceedsBatchTimeout(t *testing.T) {
	cfg := testConfig
	cfg.StaleAfter = 0

	r := New(&fakeUseCase{}, &fakeSender{}, logger.New("error"), cfg)

	assert.Equal(t, 2*cfg.ProcessBatchTimeout, r.cfg.StaleAfter)
}

func TestStartShutdown(t *testing.T) {
	uc := &fakeUseCase{pending: pendingEvents(1)}
	es := &fakeSender{}
	r := New(uc, es, logger.New("error"), testConfig)

	require.NoError(t, r.Start(context.Background()))
	require.Error(t, r.Start(context.Background()))

	assert.Eventually(t, func() bool {
		uc.mu.Lock()
		defer uc.mu.Unlock()

		return uc.processed == 1 && uc.markFailed > 0 && len(uc.cleanups) > 0 && len(uc.staleAfter) > 0
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, r.Shutdown(context.Background()))

	uc.mu.Lock()
	assert.Equal(t, time.Hour, uc.cleanups[0])
	assert.Equal(t, time.Minute, uc.staleAfter[0])
	uc.mu.Unlock()

	es.mu.Lock()
	assert.True(t, es.closed)
	es.mu.Unlock()
}
