//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer backs the automation lease integration tests.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	rc := &RedisContainer{Container: container}
	if err := rc.connect(ctx, container); err != nil {
		if rc.Client != nil {
			_ = rc.Client.Close()
		}
		_ = container.Terminate(ctx)
		t.Fatalf("connect to redis container: %v", err)
	}
	return rc
}

func (r *RedisContainer) connect(ctx context.Context, c *tcredis.RedisContainer) error {
	url, err := c.ConnectionString(ctx)
	if err != nil {
		return err
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return err
	}
	r.URL = url
	r.Client = redis.NewClient(opts)
	return r.Client.Ping(ctx).Err()
}

// FlushAll drops every key so leases from one test never leak into the next.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
