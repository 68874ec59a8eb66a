// Package lease makes sure a single replica drives a given camera.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var ErrNotHeld = errors.New("lease not held")

// Lease runs fn while holding an exclusive claim. The context handed to fn is
// cancelled if the claim is lost.
type Lease interface {
	Hold(ctx context.Context, fn func(ctx context.Context) error) error
}

// Local is the single-replica lease; it always holds.
type Local struct{}

func (Local) Hold(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// RedisLease claims a key with redislock and keeps refreshing it at half the
// TTL.
type RedisLease struct {
	locker *redislock.Client
	key    string
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedisLease(client redis.UniversalClient, key string, ttl time.Duration, log zerolog.Logger) *RedisLease {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLease{
		locker: redislock.New(client),
		key:    key,
		ttl:    ttl,
		log:    log.With().Str("component", "lease").Str("key", key).Logger(),
	}
}

func (l *RedisLease) Hold(ctx context.Context, fn func(ctx context.Context) error) error {
	lock, err := l.locker.Obtain(ctx, l.key, l.ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return ErrNotHeld
		}
		return fmt.Errorf("obtain lease %s: %w", l.key, err)
	}
	l.log.Info().Dur("ttl", l.ttl).Msg("lease obtained")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(l.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := lock.Refresh(runCtx, l.ttl, nil); err != nil {
					if runCtx.Err() != nil {
						return
					}
					l.log.Warn().Err(err).Msg("lease lost")
					cancel()
					return
				}
			}
		}
	}()

	err = fn(runCtx)

	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer releaseCancel()
	if rerr := lock.Release(releaseCtx); rerr != nil && !errors.Is(rerr, redislock.ErrLockNotHeld) {
		l.log.Warn().Err(rerr).Msg("failed to release lease")
	}
	return err
}

// Keep retries Hold every interval while another holder owns the lease, and
// returns when fn finishes, Hold fails otherwise, or ctx ends.
func Keep(ctx context.Context, l Lease, interval time.Duration, fn func(ctx context.Context) error) error {
	for {
		err := l.Hold(ctx, fn)
		if !errors.Is(err, ErrNotHeld) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
