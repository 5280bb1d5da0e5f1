package persistent

import (
	"context"
	"fmt"
	"sync"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
)

// PseudonymMemoryRepo keeps mappings in process memory. Mappings are lost on
// restart, so it is meant for local runs and tests.
type PseudonymMemoryRepo struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewPseudonymMemoryRepo() *PseudonymMemoryRepo {
	return &PseudonymMemoryRepo{data: make(map[string]string)}
}

func (r *PseudonymMemoryRepo) Get(ctx context.Context, rawID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("PseudonymMemoryRepo - Get: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pseudonym, ok := r.data[rawID]
	if !ok {
		return "", fmt.Errorf("PseudonymMemoryRepo - Get: %w", errs.ErrRecordNotFound)
	}

	return pseudonym, nil
}

func (r *PseudonymMemoryRepo) Put(ctx context.Context, mapping entity.PseudonymMapping) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("PseudonymMemoryRepo - Put: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[mapping.RawID]; !ok {
		r.data[mapping.RawID] = mapping.Pseudonym
	}

	return nil
}

func (r *PseudonymMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.data)
}
