package pseudonym

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/metrics"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/repo"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/logger"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
)

type PseudonymUseCase struct {
	repo   repo.PseudonymRepo
	logger logger.Interface
}

func New(r repo.PseudonymRepo, l logger.Interface) *PseudonymUseCase {
	return &PseudonymUseCase{
		repo:   r,
		logger: l,
	}
}

// Resolve returns the stored pseudonym for rawID, creating it on first
// sight. Store failures are wrapped in errs.ErrStoreUnavailable.
func (uc *PseudonymUseCase) Resolve(ctx context.Context, rawID string) (string, error) {
	// 1. lookup
	pseudonym, err := uc.repo.Get(ctx, rawID)
	if err == nil {
		metrics.PseudonymResolutions.WithLabelValues("reused").Inc()

		return pseudonym, nil
	}
	if !errors.Is(err, errs.ErrRecordNotFound) {
		metrics.StoreErrors.WithLabelValues("get").Inc()

		return "", fmt.Errorf("PseudonymUseCase - Resolve - uc.repo.Get: %w: %w", errs.ErrStoreUnavailable, err)
	}

	// 2. first sight: derive and persist
	pseudonym = Digest(rawID)

	err = uc.repo.Put(ctx, entity.PseudonymMapping{
		RawID:     rawID,
		Pseudonym: pseudonym,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("put").Inc()

		return "", fmt.Errorf("PseudonymUseCase - Resolve - uc.repo.Put: %w: %w", errs.ErrStoreUnavailable, err)
	}

	metrics.PseudonymResolutions.WithLabelValues("created").Inc()
	uc.logger.Debug("PseudonymUseCase - Resolve - created pseudonym %s", pseudonym)

	return pseudonym, nil
}
