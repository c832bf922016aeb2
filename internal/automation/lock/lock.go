// Package lock provides the named leases that keep automation jobs
// single-writer. Redis backs them across processes; InMemory serves a single
// process running without Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trustlane/pkg/platform/sentinel"
)

const keyPrefix = "trustlane:lease:"

// releaseScript deletes the key only while it still holds our token, so a
// lease that expired and was re-acquired elsewhere is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis implements leases with SET NX PX and a token-checked release.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (l *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, sentinel.ErrLockHeld
	}
	release := func(ctx context.Context) error {
		err := releaseScript.Run(ctx, l.client, []string{keyPrefix + key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("release lease %s: %w", key, err)
		}
		return nil
	}
	return release, nil
}

type lease struct {
	token     string
	expiresAt time.Time
}

// InMemory holds leases in a map. Expired leases can be taken over.
type InMemory struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

func (l *InMemory) Acquire(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expiresAt) {
		return nil, sentinel.ErrLockHeld
	}
	token := uuid.NewString()
	l.leases[key] = lease{token: token, expiresAt: now.Add(ttl)}
	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.leases[key]; ok && held.token == token {
			delete(l.leases, key)
		}
		return nil
	}
	return release, nil
}
