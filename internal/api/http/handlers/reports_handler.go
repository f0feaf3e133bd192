package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/api/dto"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/service"
	apperrors "github.com/NTGClarityPK/ntg-tickets-sub002/pkg/util/errorutil"
)

// ReportsHandler serves status categorization reports.
type ReportsHandler struct {
	service *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService) *ReportsHandler {
	return &ReportsHandler{service: reportService}
}

// Categorize GET /reports/categorize?status=&workflow_id=.
func (h *ReportsHandler) Categorize(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	status := c.Query("status")
	var workflowID *string
	if raw := strings.TrimSpace(c.Query("workflow_id")); raw != "" {
		workflowID = &raw
	}
	bucket, err := h.service.Categorize(c.UserContext(), actor.DeploymentID, status, workflowID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CategorizeResponse{
		Status:     status,
		WorkflowID: workflowID,
		Bucket:     string(bucket),
	}})
}

// Dashboard GET /reports/dashboard?created_from=&created_to=.
func (h *ReportsHandler) Dashboard(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	filter := service.DashboardFilter{}
	if filter.CreatedFrom, err = parseTime(c.Query("created_from")); err != nil {
		return apperrors.NewValidationError("created_from must be RFC3339", nil)
	}
	if filter.CreatedTo, err = parseTime(c.Query("created_to")); err != nil {
		return apperrors.NewValidationError("created_to must be RFC3339", nil)
	}
	dash, err := h.service.Dashboard(c.UserContext(), actor.DeploymentID, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dashboardResponse(dash)})
}

func parseTime(val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func dashboardResponse(dash *service.Dashboard) dto.DashboardResponse {
	resp := dto.DashboardResponse{
		ActiveWorkflowID: dash.ActiveWorkflowID,
		Total:            dash.Total,
		Buckets:          make(map[string]int, len(dash.Buckets)),
		Statuses:         make(map[string]map[string]int, len(dash.Statuses)),
	}
	for _, b := range domain.Buckets() {
		resp.Buckets[string(b)] = dash.Buckets[b]
	}
	for status, counts := range dash.Statuses {
		row := make(map[string]int, len(counts))
		for b, n := range counts {
			row[string(b)] = n
		}
		resp.Statuses[status] = row
	}
	return resp
}
