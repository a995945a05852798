package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
)

// CustomerLocker serialises consolidations of one customer across instances.
// It only reduces contention; row locks and compare-and-set updates keep the data correct.
type CustomerLocker interface {
	Lock(ctx context.Context, customerId int) (release func(), err error)
}

type RedisCustomerLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisCustomerLocker(client *redislock.Client) *RedisCustomerLocker {
	return &RedisCustomerLocker{
		client: client,
		ttl:    30 * time.Second,
		wait:   5 * time.Second,
	}
}

func (l *RedisCustomerLocker) Lock(ctx context.Context, customerId int) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	backoff := redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), int(l.wait/(100*time.Millisecond)))
	lock, err := l.client.Obtain(ctx, fmt.Sprintf("lock:consolidate:%d", customerId), l.ttl, &redislock.Options{
		RetryStrategy: backoff,
	})
	if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
