package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/repository"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
)

// ReportService buckets ticket statuses for dashboards. It only reads.
type ReportService struct {
	tickets   repository.TicketRepository
	workflows *WorkflowService
	workers   int
	batchSize int
	logger    *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(tickets repository.TicketRepository, workflows *WorkflowService, workers, batchSize int, logger *zap.Logger) *ReportService {
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{tickets: tickets, workflows: workflows, workers: workers, batchSize: batchSize, logger: logger}
}

// Categorize resolves one status against the live active workflow and, when
// it differs, the live definition of workflowID.
func (s *ReportService) Categorize(ctx context.Context, deploymentID, status string, workflowID *string) (domain.Bucket, error) {
	active, err := s.workflows.ActiveWorkflow(ctx, deploymentID)
	if err != nil {
		return "", err
	}
	own, bound, err := s.ownWorkflow(ctx, deploymentID, active, workflowID)
	if err != nil {
		return "", err
	}
	return workflow.NewCategorizer(active, own).Categorize(status, bound), nil
}

// DashboardFilter narrows the tickets a dashboard counts.
type DashboardFilter struct {
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// Dashboard is the bucket breakdown of a deployment's tickets.
type Dashboard struct {
	ActiveWorkflowID string
	Total            int
	Buckets          map[domain.Bucket]int
	// Statuses is keyed by normalized status.
	Statuses map[string]map[domain.Bucket]int
}

// Dashboard counts every matching ticket per bucket and per status.
func (s *ReportService) Dashboard(ctx context.Context, deploymentID string, filter DashboardFilter) (*Dashboard, error) {
	active, err := s.workflows.ActiveWorkflow(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	var tickets []domain.Ticket
	for offset := 0; ; offset += s.batchSize {
		page, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
			DeploymentID: deploymentID,
			CreatedFrom:  filter.CreatedFrom,
			CreatedTo:    filter.CreatedTo,
			Limit:        s.batchSize,
			Offset:       offset,
		})
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, page...)
		if len(page) < s.batchSize {
			break
		}
	}

	// One rule set per workflow, built up front so workers only read.
	groups := map[string]ruleGroup{active.ID: {categorizer: workflow.NewCategorizer(active)}}
	for _, t := range tickets {
		key := groupKey(t.WorkflowID, active.ID)
		if _, ok := groups[key]; ok {
			continue
		}
		own, bound, err := s.ownWorkflow(ctx, deploymentID, active, t.WorkflowID)
		if err != nil {
			return nil, err
		}
		groups[key] = ruleGroup{categorizer: workflow.NewCategorizer(active, own), workflowID: bound}
	}

	tally := workflow.CountBuckets(tickets, func(t domain.Ticket) domain.Bucket {
		g := groups[groupKey(t.WorkflowID, active.ID)]
		return g.categorizer.Categorize(t.Status, g.workflowID)
	}, s.workers, s.batchSize)

	s.logger.Debug("dashboard computed",
		zap.String("deployment_id", deploymentID),
		zap.String("active_id", active.ID),
		zap.Int("tickets", tally.Total),
		zap.Int("workflows", len(groups)))
	return &Dashboard{
		ActiveWorkflowID: active.ID,
		Total:            tally.Total,
		Buckets:          tally.ByBucket,
		Statuses:         tally.ByStatus,
	}, nil
}

type ruleGroup struct {
	categorizer *workflow.Categorizer
	// workflowID is the binding tickets of the group categorize under. Nil
	// means the active workflow.
	workflowID *string
}

// ownWorkflow loads workflowID when it is not the active one and returns the
// binding to categorize under. A deleted workflow binds its tickets to the
// active rules, as if they were unbound.
func (s *ReportService) ownWorkflow(ctx context.Context, deploymentID string, active *domain.WorkflowDefinition, workflowID *string) (*domain.WorkflowDefinition, *string, error) {
	if workflowID == nil || *workflowID == "" || *workflowID == active.ID {
		return nil, nil, nil
	}
	def, err := s.workflows.GetWorkflow(ctx, deploymentID, *workflowID)
	if errors.Is(err, workflow.ErrWorkflowNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return def, workflowID, nil
}

func groupKey(workflowID *string, activeID string) string {
	if workflowID == nil || *workflowID == "" {
		return activeID
	}
	return *workflowID
}
