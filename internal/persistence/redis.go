package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/config"
)

const redisPingTimeout = 2 * time.Second

// Redis wraps the go-redis client. Client is a single node, cluster or
// sentinel client depending on the configured addresses.
type Redis struct {
	Client redis.UniversalClient
}

// NewRedis connects to Redis using the provided configuration. An unreachable
// server is logged, not fatal; the cache degrades to misses.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      redisAddrs(cfg.Addr),
		Password:   cfg.Password,
		DB:         cfg.DB,
		MasterName: cfg.MasterName,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.Strings("addrs", redisAddrs(cfg.Addr)))
	}

	return &Redis{Client: client}
}

func redisAddrs(raw string) []string {
	var addrs []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			addrs = append(addrs, part)
		}
	}
	return addrs
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
