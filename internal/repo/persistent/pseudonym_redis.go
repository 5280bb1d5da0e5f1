package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/redisclient"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
	"github.com/redis/go-redis/v9"
)

type PseudonymRedisRepo struct {
	*redisclient.RedisClient
	prefix string
}

func NewPseudonymRedisRepo(rc *redisclient.RedisClient, prefix string) *PseudonymRedisRepo {
	return &PseudonymRedisRepo{rc, prefix}
}

func (r *PseudonymRedisRepo) key(rawID string) string {
	return r.prefix + rawID
}

func (r *PseudonymRedisRepo) Get(ctx context.Context, rawID string) (string, error) {
	pseudonym, err := r.Client.Get(ctx, r.key(rawID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("PseudonymRedisRepo - Get: %w", errs.ErrRecordNotFound)
		}
		return "", fmt.Errorf("PseudonymRedisRepo - Get - r.Client.Get: %w", err)
	}

	return pseudonym, nil
}

// Put uses SETNX so an existing mapping is kept.
func (r *PseudonymRedisRepo) Put(ctx context.Context, mapping entity.PseudonymMapping) error {
	err := r.Client.SetNX(ctx, r.key(mapping.RawID), mapping.Pseudonym, 0).Err()
	if err != nil {
		return fmt.Errorf("PseudonymRedisRepo - Put - r.Client.SetNX: %w", err)
	}

	return nil
}
