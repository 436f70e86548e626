package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var ErrLockTimeout = errors.New("timed out waiting for session lock")

// Locker serializes turns of the same session. The returned release function
// must be called once the turn's state has been saved.
type Locker interface {
	Lock(ctx context.Context, sessionID string) (release func(), err error)
}

// LocalLocker serializes sessions inside one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sessionLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	l.mu.Lock()
	sl, ok := l.locks[sessionID]
	if !ok {
		sl = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[sessionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	select {
	case sl.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(sessionID, sl)
		return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-sl.ch
			l.unref(sessionID, sl)
		})
	}, nil
}

func (l *LocalLocker) unref(sessionID string, sl *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.locks, sessionID)
	}
}

type RedisLockConfig struct {
	Addr         string        `envconfig:"ADDR" split_words:"true" required:"true"`
	Password     string        `envconfig:"PASSWORD" split_words:"true"`
	DB           int           `envconfig:"DB" split_words:"true" default:"0"`
	TTL          time.Duration `envconfig:"TTL" split_words:"true" default:"2m"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" split_words:"true" default:"50ms"`
}

// releaseScript deletes the lock only when it is still owned by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes sessions across processes with SET NX PX.
type RedisLocker struct {
	client       redis.UniversalClient
	keyPrefix    string
	ttl          time.Duration
	pollInterval time.Duration
}

func NewRedisLocker(cfg RedisLockConfig) *RedisLocker {
	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Addr),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisLockerWithClient(client, cfg.TTL, cfg.PollInterval)
}

func NewRedisLockerWithClient(client redis.UniversalClient, ttl, pollInterval time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	return &RedisLocker{
		client:       client,
		keyPrefix:    defaultStoreKeyPrefix,
		ttl:          ttl,
		pollInterval: pollInterval,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	key := l.keyPrefix + strings.TrimSpace(sessionID) + ":concierge:lock"
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The turn's context may already be done; release on a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.release(releaseCtx, key, token); err != nil {
				log.Warn().Err(err).Str("session_id", sessionID).Msg("session lock release failed, waiting for ttl")
			}
		})
	}, nil
}

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("release session lock: %w", err)
	}
	return nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
