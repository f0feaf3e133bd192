package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/persistence"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    pinger
	redis       pinger
}

// NewHealthHandler returns a new handler instance. A nil dependency is
// reported as disabled; the service then runs on the in-memory store.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	h := &HealthHandler{serviceName: serviceName, version: version}
	if postgres != nil {
		h.postgres = postgres
	}
	if redis != nil {
		h.redis = redis
	}
	return h
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	checks := []struct {
		name string
		dep  pinger
	}{
		{"postgres", h.postgres},
		{"redis", h.redis},
	}
	for _, check := range checks {
		if check.dep == nil {
			depStatus[check.name] = "disabled"
			continue
		}
		if err := check.dep.Ping(ctx); err != nil {
			depStatus[check.name] = err.Error()
			ready = false
		} else {
			depStatus[check.name] = "ok"
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
