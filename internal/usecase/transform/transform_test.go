package transform

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/metrics"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/repo/persistent"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase/pseudonym"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase/record"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/logger"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = logger.New("error")

// resolverFunc adapts a function to usecase.PseudonymUseCase.
type resolverFunc func(ctx context.Context, rawID string) (string, error)

func (f resolverFunc) Resolve(ctx context.Context, rawID string) (string, error) {
	return f(ctx, rawID)
}

func newMemoryTransformer(workers int) (*TransformUseCase, *persistent.PseudonymMemoryRepo) {
	store := persistent.NewPseudonymMemoryRepo()

	return New(pseudonym.New(store, testLogger), testLogger, workers), store
}

func batchRecord(id, payload string) entity.BatchRecord {
	return entity.BatchRecord{RecordID: id, Data: []byte(payload)}
}

func TestTransform_SingleRecordEmptyStore(t *testing.T) {
	uc, store := newMemoryTransformer(4)

	out := uc.Transform(context.Background(), []entity.BatchRecord{
		batchRecord("r1", `{"user_id":"alice","x":1}`),
	})

	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].RecordID)
	assert.Equal(t, entity.ResultOk, out[0].Result)
	assert.JSONEq(t, fmt.Sprintf(`{"user_id":%q,"x":1}`, pseudonym.Digest("alice")), string(out[0].Data))

	stored, err := store.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, pseudonym.Digest("alice"), stored)
}

func TestTransform_RepeatedBatchIsIdentical(t *testing.T) {
	uc, store := newMemoryTransformer(4)
	batch := []entity.BatchRecord{batchRecord("r1", `{"user_id":"alice","x":1}`)}

	first := uc.Transform(context.Background(), batch)
	second := uc.Transform(context.Background(), batch)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Len())
}

func TestTransform_NotJSON(t *testing.T) {
	uc, store := newMemoryTransformer(4)

	out := uc.Transform(context.Background(), []entity.BatchRecord{batchRecord("r1", "not-json")})

	require.Len(t, out, 1)
	assert.Equal(t, entity.FailedRecord("r1"), out[0])
	assert.Nil(t, out[0].Data)
	assert.Zero(t, store.Len())
}

func TestTransform_EmptyBatch(t *testing.T) {
	uc, _ := newMemoryTransformer(4)

	out := uc.Transform(context.Background(), nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	out = uc.Transform(context.Background(), []entity.BatchRecord{})
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestTransform_OrderPreservation(t *testing.T) {
	// reversed latency: later records finish first
	const n = 50
	resolver := resolverFunc(func(ctx context.Context, rawID string) (string, error) {
		var i int
		_, _ = fmt.Sscanf(rawID, "user-%d", &i)
		time.Sleep(time.Duration(n-i) * 100 * time.Microsecond)

		return pseudonym.Digest(rawID), nil
	})
	uc := New(resolver, testLogger, 16)

	batch := make([]entity.BatchRecord, n)
	for i := range batch {
		batch[i] = batchRecord(fmt.Sprintf("rec-%d", i), fmt.Sprintf(`{"user_id":"user-%d","seq":%d}`, i, i))
	}

	out := uc.Transform(context.Background(), batch)

	require.Len(t, out, n)
	for i := range batch {
		assert.Equal(t, batch[i].RecordID, out[i].RecordID)
		require.Equal(t, entity.ResultOk, out[i].Result)

		event, err := record.Decode(out[i].Data)
		require.NoError(t, err)
		assert.Equal(t, pseudonym.Digest(fmt.Sprintf("user-%d", i)), event[entity.UserIDField])
		assert.Equal(t, fmt.Sprint(i), fmt.Sprint(event["seq"]))
	}
}

func TestTransform_Isolation(t *testing.T) {
	uc, _ := newMemoryTransformer(3)

	batch := []entity.BatchRecord{
		batchRecord("a", `{"user_id":"u1"}`),
		batchRecord("b", `{"user_id":"u2"}`),
		batchRecord("c", `{broken`),
		batchRecord("d", `{"user_id":"u3"}`),
		batchRecord("e", `{"user_id":"u4"}`),
	}

	out := uc.Transform(context.Background(), batch)

	require.Len(t, out, len(batch))
	failed := 0
	for i, r := range out {
		assert.Equal(t, batch[i].RecordID, r.RecordID)
		if r.Result == entity.ResultProcessingFailed {
			failed++
			assert.Equal(t, "c", r.RecordID)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestTransform_StoreFailureIsPerRecord(t *testing.T) {
	resolver := resolverFunc(func(ctx context.Context, rawID string) (string, error) {
		if rawID == "unlucky" {
			return "", fmt.Errorf("lookup: %w", errs.ErrStoreUnavailable)
		}

		return pseudonym.Digest(rawID), nil
	})
	uc := New(resolver, testLogger, 2)

	out := uc.Transform(context.Background(), []entity.BatchRecord{
		batchRecord("r1", `{"user_id":"alice"}`),
		batchRecord("r2", `{"user_id":"unlucky"}`),
		batchRecord("r3", `{"user_id":"bob"}`),
	})

	assert.Equal(t, entity.ResultOk, out[0].Result)
	assert.Equal(t, entity.FailedRecord("r2"), out[1])
	assert.Equal(t, entity.ResultOk, out[2].Result)
}

func TestTransform_PanicIsPerRecord(t *testing.T) {
	resolver := resolverFunc(func(ctx context.Context, rawID string) (string, error) {
		if rawID == "boom" {
			panic("resolver exploded")
		}

		return pseudonym.Digest(rawID), nil
	})
	uc := New(resolver, testLogger, 2)

	out := uc.Transform(context.Background(), []entity.BatchRecord{
		batchRecord("r1", `{"user_id":"boom"}`),
		batchRecord("r2", `{"user_id":"fine"}`),
	})

	assert.Equal(t, entity.FailedRecord("r1"), out[0])
	assert.Equal(t, entity.ResultOk, out[1].Result)
}

func TestTransform_PseudonymReplacesRawID(t *testing.T) {
	uc, _ := newMemoryTransformer(8)

	ids := []string{"alice", "bob", "carol", "dave"}
	batch := make([]entity.BatchRecord, len(ids))
	for i, id := range ids {
		batch[i] = batchRecord(id, fmt.Sprintf(`{"user_id":%q,"page":"/home"}`, id))
	}

	for i, r := range uc.Transform(context.Background(), batch) {
		require.True(t, r.IsOk())

		event, err := record.Decode(r.Data)
		require.NoError(t, err)

		got, ok := event.UserID()
		require.True(t, ok)
		assert.NotEqual(t, ids[i], got)
		assert.Equal(t, "/home", event["page"])
	}
}

func TestTransform_DeadlineReturnsPartialResults(t *testing.T) {
	var started atomic.Int64
	release := make(chan struct{})
	defer close(release)

	resolver := resolverFunc(func(ctx context.Context, rawID string) (string, error) {
		if rawID == "fast" {
			return pseudonym.Digest(rawID), nil
		}

		started.Add(1)
		// ignores ctx to model a hard platform timeout
		<-release

		return "", errors.New("too late")
	})
	uc := New(resolver, testLogger, 4)

	before := testutil.ToFloat64(metrics.TransformDeadlineExceeded)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	begin := time.Now()
	out := uc.Transform(ctx, []entity.BatchRecord{
		batchRecord("r1", `{"user_id":"fast"}`),
		batchRecord("r2", `{"user_id":"slow-1"}`),
		batchRecord("r3", `{"user_id":"slow-2"}`),
	})

	assert.Less(t, time.Since(begin), 2*time.Second)
	require.Len(t, out, 3)
	assert.Equal(t, entity.ResultOk, out[0].Result)
	assert.Equal(t, entity.FailedRecord("r2"), out[1])
	assert.Equal(t, entity.FailedRecord("r3"), out[2])
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.TransformDeadlineExceeded))
}

func TestTransform_ExpiredContext(t *testing.T) {
	uc, store := newMemoryTransformer(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := uc.Transform(ctx, []entity.BatchRecord{
		batchRecord("r1", `{"user_id":"alice"}`),
		batchRecord("r2", `{"user_id":"bob"}`),
	})

	require.Len(t, out, 2)
	for i, r := range out {
		assert.Equal(t, fmt.Sprintf("r%d", i+1), r.RecordID)
		assert.Equal(t, entity.ResultProcessingFailed, r.Result)
	}
	assert.Zero(t, store.Len())
}

func TestTransform_CountsResults(t *testing.T) {
	uc, _ := newMemoryTransformer(2)

	okBefore := testutil.ToFloat64(metrics.TransformedRecords.WithLabelValues(string(entity.ResultOk)))
	failedBefore := testutil.ToFloat64(metrics.TransformedRecords.WithLabelValues(string(entity.ResultProcessingFailed)))

	uc.Transform(context.Background(), []entity.BatchRecord{
		batchRecord("r1", `{"user_id":"alice"}`),
		batchRecord("r2", `nope`),
	})

	assert.Equal(t, okBefore+1, testutil.ToFloat64(metrics.TransformedRecords.WithLabelValues(string(entity.ResultOk))))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(metrics.TransformedRecords.WithLabelValues(string(entity.ResultProcessingFailed))))
}

// slowStore delays every call by latency unless the caller gives up first.
type slowStore struct {
	*persistent.PseudonymMemoryRepo
	latency  atomic.Int64
	inflight atomic.Int64
	calls    atomic.Int64
}

func (s *slowStore) wait(ctx context.Context) error {
	s.calls.Add(1)
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	select {
	case <-time.After(time.Duration(s.latency.Load())):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *slowStore) Get(ctx context.Context, rawID string) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}

	return s.PseudonymMemoryRepo.Get(ctx, rawID)
}

func (s *slowStore) Put(ctx context.Context, mapping entity.PseudonymMapping) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	return s.PseudonymMemoryRepo.Put(ctx, mapping)
}

func TestTransform_DeadlineDoesNotPoisonNextBatch(t *testing.T) {
	store := &slowStore{PseudonymMemoryRepo: persistent.NewPseudonymMemoryRepo()}
	store.latency.Store(int64(200 * time.Millisecond))
	breaker := persistent.NewBreakerPseudonymRepo(store, persistent.BreakerConfig{
		Name:             "pseudonym-store-test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 5,
	})
	uc := New(pseudonym.New(breaker, testLogger), testLogger, 16)

	batch := make([]entity.BatchRecord, 16)
	for i := range batch {
		batch[i] = batchRecord(fmt.Sprintf("r%d", i), fmt.Sprintf(`{"user_id":"user-%d"}`, i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	for _, r := range uc.Transform(ctx, batch) {
		assert.Equal(t, entity.ResultProcessingFailed, r.Result)
	}

	// in-flight lookups return once they observe the expired deadline
	require.Eventually(t, func() bool {
		return store.calls.Load() > 0 && store.inflight.Load() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, gobreaker.StateClosed, breaker.State())

	store.latency.Store(0)
	out := uc.Transform(context.Background(), []entity.BatchRecord{batchRecord("next", `{"user_id":"alice"}`)})
	assert.Equal(t, entity.ResultOk, out[0].Result)
}
