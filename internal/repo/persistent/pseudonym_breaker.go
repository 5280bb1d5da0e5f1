package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/repo"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
	gobreaker "github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	OnStateChange    func(name string, from, to gobreaker.State)
}

// BreakerPseudonymRepo fails fast while the wrapped store keeps erroring.
// A missing key is a normal answer and does not count as a failure.
type BreakerPseudonymRepo struct {
	next repo.PseudonymRepo
	cb   *gobreaker.CircuitBreaker[string]
}

var _ repo.PseudonymRepo = (*BreakerPseudonymRepo)(nil)

func NewBreakerPseudonymRepo(next repo.PseudonymRepo, cfg BreakerConfig) *BreakerPseudonymRepo {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, errs.ErrRecordNotFound) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: cfg.OnStateChange,
	}

	return &BreakerPseudonymRepo{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[string](settings),
	}
}

func (r *BreakerPseudonymRepo) State() gobreaker.State {
	return r.cb.State()
}

func (r *BreakerPseudonymRepo) Get(ctx context.Context, rawID string) (string, error) {
	pseudonym, err := r.cb.Execute(func() (string, error) {
		return callerAware(ctx)(r.next.Get(ctx, rawID))
	})
	if err != nil {
		return "", fmt.Errorf("BreakerPseudonymRepo - Get: %w", err)
	}

	return pseudonym, nil
}

func (r *BreakerPseudonymRepo) Put(ctx context.Context, mapping entity.PseudonymMapping) error {
	_, err := r.cb.Execute(func() (string, error) {
		return callerAware(ctx)("", r.next.Put(ctx, mapping))
	})
	if err != nil {
		return fmt.Errorf("BreakerPseudonymRepo - Put: %w", err)
	}

	return nil
}

// callerAware attaches the caller's context error to a failed call, so a
// request abandoned by its caller is not held against the store.
func callerAware(ctx context.Context) func(string, error) (string, error) {
	return func(v string, err error) (string, error) {
		if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			return v, fmt.Errorf("%w: %w", ctx.Err(), err)
		}

		return v, err
	}
}
