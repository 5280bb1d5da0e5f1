package redisclient

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	_defaultConnAttempts = 10
	_defaultConnTimeout  = time.Second
	_defaultPoolSize     = 10
	_defaultOpTimeout    = 3 * time.Second
)

type RedisClient struct {
	connAttempts int
	connTimeout  time.Duration

	addr      string
	password  string
	db        int
	poolSize  int
	opTimeout time.Duration

	Client *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*RedisClient, error) {
	rc := &RedisClient{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		addr:         addr,
		poolSize:     _defaultPoolSize,
		opTimeout:    _defaultOpTimeout,
	}

	for _, opt := range opts {
		opt(rc)
	}

	rc.Client = redis.NewClient(&redis.Options{
		Addr:         rc.addr,
		Password:     rc.password,
		DB:           rc.db,
		PoolSize:     rc.poolSize,
		ReadTimeout:  rc.opTimeout,
		WriteTimeout: rc.opTimeout,
	})

	var err error
	for rc.connAttempts > 0 {
		err = rc.Client.Ping(ctx).Err()
		if err == nil {
			break
		}

		log.Printf("Redis is trying to connect, attempts left: %d", rc.connAttempts)

		time.Sleep(rc.connTimeout)

		rc.connAttempts--
	}

	if err != nil {
		_ = rc.Client.Close()

		return nil, fmt.Errorf("RedisClient - New - connAttempts == 0: %w", err)
	}

	return rc, nil
}

func (rc *RedisClient) Close() error {
	if rc.Client != nil {
		return rc.Client.Close()
	}

	return nil
}
