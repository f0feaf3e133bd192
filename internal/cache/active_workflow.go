// Package cache keeps the active workflow of each deployment in Redis so the
// ticket hot path skips the workflow table.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
)

const keyPrefix = "workflow:active:"

// ActiveWorkflowCache stores the active workflow per deployment. Get reports
// a miss with ok=false; implementations never fail the caller on cache errors.
type ActiveWorkflowCache interface {
	Get(ctx context.Context, deploymentID string) (def *domain.WorkflowDefinition, ok bool)
	Set(ctx context.Context, def *domain.WorkflowDefinition)
	Invalidate(ctx context.Context, deploymentID string)
}

type redisActiveWorkflowCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisActiveWorkflowCache returns a cache backed by client. A nil client
// or a non-positive ttl disables caching.
func NewRedisActiveWorkflowCache(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) ActiveWorkflowCache {
	if client == nil || ttl <= 0 {
		return Noop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisActiveWorkflowCache{client: client, ttl: ttl, logger: logger}
}

func (c *redisActiveWorkflowCache) Get(ctx context.Context, deploymentID string) (*domain.WorkflowDefinition, bool) {
	data, err := c.client.Get(ctx, keyPrefix+deploymentID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("active workflow cache read failed", zap.String("deployment_id", deploymentID), zap.Error(err))
		}
		return nil, false
	}
	def, err := workflow.UnmarshalDefinition(data)
	if err != nil {
		c.logger.Warn("discarding unreadable cached workflow", zap.String("deployment_id", deploymentID), zap.Error(err))
		c.Invalidate(ctx, deploymentID)
		return nil, false
	}
	return def, true
}

func (c *redisActiveWorkflowCache) Set(ctx context.Context, def *domain.WorkflowDefinition) {
	if def == nil {
		return
	}
	data, err := workflow.MarshalDefinition(def)
	if err != nil {
		c.logger.Warn("encode workflow for cache", zap.String("workflow_id", def.ID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, keyPrefix+def.DeploymentID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("active workflow cache write failed", zap.String("deployment_id", def.DeploymentID), zap.Error(err))
	}
}

func (c *redisActiveWorkflowCache) Invalidate(ctx context.Context, deploymentID string) {
	if err := c.client.Del(ctx, keyPrefix+deploymentID).Err(); err != nil {
		c.logger.Warn("active workflow cache invalidation failed", zap.String("deployment_id", deploymentID), zap.Error(err))
	}
}

type noopCache struct{}

// Noop returns a cache that never hits.
func Noop() ActiveWorkflowCache {
	return noopCache{}
}

func (noopCache) Get(context.Context, string) (*domain.WorkflowDefinition, bool) { return nil, false }
func (noopCache) Set(context.Context, *domain.WorkflowDefinition)                {}
func (noopCache) Invalidate(context.Context, string)                             {}
