// Package lock serializes writers per bay. The local backend covers a single process;
// the redis backend extends the guarantee across replicas sharing one database.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker grants exclusive access to a key. The returned context is derived from ctx and
// is cancelled once the lock is released or, for leased backends, lost. Work done under
// the lock must run on that context.
type Locker interface {
	Lock(ctx context.Context, key string) (held context.Context, release func(), err error)
}

// Local is an in-process keyed mutex that honours context cancellation.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
	}

	held, cancel := context.WithCancel(ctx)
	var once sync.Once
	return held, func() {
		once.Do(func() {
			cancel()
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *Local) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// releaseScript deletes the key only if this holder still owns it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// renewScript pushes the lease out only if this holder still owns the key.
const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Redis holds a lease per key with SET NX PX and renews it every third of the lease
// while held. A holder that crashes loses the lock when the lease expires; a holder
// that fails to renew has its context cancelled.
type Redis struct {
	client *redis.Client
	prefix string
	lease  time.Duration
	retry  time.Duration
	log    *zap.Logger
}

// NewRedis builds a redis-backed locker. lease bounds how long a crashed holder can
// block others; retry is the polling interval while the key is held elsewhere.
func NewRedis(client *redis.Client, lease, retry time.Duration, log *zap.Logger) *Redis {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{
		client: client,
		prefix: "bayd:lock:",
		lease:  lease,
		retry:  retry,
		log:    log.With(zap.String("component", "lock")),
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	name := r.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, name, token, r.lease).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
			}
			return nil, nil, fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}

	held, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go r.renew(held, cancel, name, token, stopped)

	var once sync.Once
	return held, func() {
		once.Do(func() {
			cancel()
			<-stopped

			// The caller's context may already be done; release on a fresh one.
			rctx, rcancel := context.WithTimeout(context.Background(), r.lease)
			defer rcancel()
			if err := r.client.Eval(rctx, releaseScript, []string{name}, token).Err(); err != nil {
				r.log.Warn("failed to release lock, it is held until the lease expires",
					zap.String("key", name), zap.Duration("lease", r.lease), zap.Error(err))
			}
		})
	}, nil
}

// renew keeps the lease alive until held is done. Losing the key, or failing to reach
// redis before the lease runs out, cancels held.
func (r *Redis) renew(held context.Context, cancel context.CancelFunc, name, token string, stopped chan<- struct{}) {
	defer close(stopped)

	interval := r.lease / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	lastRenewed := time.Now()
	for {
		select {
		case <-held.Done():
			return
		case <-ticker.C:
		}

		n, err := r.client.Eval(held, renewScript, []string{name}, token, r.lease.Milliseconds()).Int64()
		switch {
		case held.Err() != nil:
			return
		case err != nil:
			if time.Since(lastRenewed)+interval < r.lease {
				r.log.Warn("failed to renew lock, retrying", zap.String("key", name), zap.Error(err))
				continue
			}
			r.log.Error("lock lease about to expire, abandoning", zap.String("key", name), zap.Error(err))
			cancel()
			return
		case n == 0:
			r.log.Error("lock lease lost to another holder", zap.String("key", name))
			cancel()
			return
		}
		lastRenewed = time.Now()
	}
}
