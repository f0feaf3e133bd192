package http

import (
	"bytes"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/api/http/handlers"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/auth"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Workflows      *handlers.WorkflowsHandler
	Tickets        *handlers.TicketsHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// AppConfig is the fiber configuration the service runs with. Responses skip
// HTML escaping so stored workflow documents come back as submitted.
func AppConfig() fiber.Config {
	return fiber.Config{JSONEncoder: marshalJSON}
}

func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authn := cfg.AuthMiddleware.Handle
	designers := auth.RequireRole(domain.RoleAdmin, domain.RoleSupportManager)

	workflows := app.Group("/workflows", authn)
	workflows.Get("/active", auth.RequireAnyRole(), cfg.Workflows.GetActiveWorkflow)
	workflows.Post("/evaluate", designers, cfg.Workflows.EvaluateTransition)
	workflows.Post("", designers, cfg.Workflows.CreateWorkflow)
	workflows.Get("", designers, cfg.Workflows.ListWorkflows)
	workflows.Get("/:id", designers, cfg.Workflows.GetWorkflow)
	workflows.Put("/:id", designers, cfg.Workflows.UpdateWorkflow)
	workflows.Delete("/:id", designers, cfg.Workflows.DeleteWorkflow)
	workflows.Post("/:id/activate", designers, cfg.Workflows.ActivateWorkflow)
	workflows.Post("/:id/deactivate", designers, cfg.Workflows.DeactivateWorkflow)

	tickets := app.Group("/tickets", authn, auth.RequireAnyRole())
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("/:id/transitions", cfg.Tickets.ListTransitions)
	tickets.Post("/:id/transitions", cfg.Tickets.TransitionTicket)

	reports := app.Group("/reports", authn, auth.RequireRole(domain.RoleAdmin, domain.RoleSupportManager, domain.RoleSupportStaff))
	reports.Get("/categorize", cfg.Reports.Categorize)
	reports.Get("/dashboard", cfg.Reports.Dashboard)
}
