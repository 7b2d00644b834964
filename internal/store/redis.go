package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis is the connection shared by the event queue and health checks.
type Redis struct {
	Client *redis.Client
	addr   string
}

// NewRedis configures a client for addr. Connections are dialed lazily, so
// an unreachable server surfaces in Ping rather than here.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     4,
	})
	return &Redis{Client: client, addr: addr}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis: not configured")
	}
	return errors.Wrapf(r.Client.Ping(ctx).Err(), "ping redis at %s", r.addr)
}

// Healthy adapts Ping for the health endpoint.
func (r *Redis) Healthy(ctx context.Context) bool {
	return r.Ping(ctx) == nil
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
