// Package lock elects a single orchestrator instance per tick through a redis lease.
package lock

import (
	"context"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultTTL = 5 * time.Minute

type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// TTL bounds how long a crashed holder blocks other instances. It should exceed a tick.
	TTL time.Duration
}

type RedisLease struct {
	client *redis.Client
	rs     *redsync.Redsync
	key    string
	ttl    time.Duration
}

func NewRedisLease(cfg Config) *RedisLease {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisLease(client, cfg)
}

func newRedisLease(client *redis.Client, cfg Config) *RedisLease {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Key == "" {
		cfg.Key = "fund-transfer:orchestrator"
	}
	return &RedisLease{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		key:    cfg.Key,
		ttl:    cfg.TTL,
	}
}

// TryAcquire makes one attempt at the lease. ok is false when another instance holds it.
func (l *RedisLease) TryAcquire(ctx context.Context) (func(), bool, error) {
	mutex := l.rs.NewMutex(l.key, redsync.WithExpiry(l.ttl), redsync.WithTries(1))

	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "acquire lease %s", l.key)
	}

	release := func() {
		// the tick context may already be cancelled on shutdown
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := mutex.UnlockContext(unlockCtx); err != nil {
			logrus.WithError(err).WithField("lease", l.key).Warn("failed to release orchestrator lease")
		}
	}
	return release, true, nil
}

func (l *RedisLease) Close() error {
	return l.client.Close()
}

func isContention(err error) bool {
	var taken *redsync.ErrTaken
	if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock already taken") || strings.Contains(msg, "failed to acquire lock")
}
