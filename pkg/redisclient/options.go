package redisclient

import "time"

type Option func(*RedisClient)

func ConnAttempts(attempts int) Option {
	return func(rc *RedisClient) {
		rc.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(rc *RedisClient) {
		rc.connTimeout = timeout
	}
}

func Password(password string) Option {
	return func(rc *RedisClient) {
		rc.password = password
	}
}

func DB(db int) Option {
	return func(rc *RedisClient) {
		rc.db = db
	}
}

func PoolSize(size int) Option {
	return func(rc *RedisClient) {
		rc.poolSize = size
	}
}

func OpTimeout(timeout time.Duration) Option {
	return func(rc *RedisClient) {
		rc.opTimeout = timeout
	}
}
