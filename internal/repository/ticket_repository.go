package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
)

// TicketFilter captures listing parameters inside one deployment.
type TicketFilter struct {
	DeploymentID string
	WorkflowID   *string
	// Unbound restricts the listing to tickets with no workflow.
	Unbound     bool
	Statuses    []string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates the ticket fields the workflow engine owns.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, deploymentID, id string) (*domain.Ticket, error)
	// UpdateStatus writes status and assignee only if the stored status still equals fromStatus.
	UpdateStatus(ctx context.Context, ticket *domain.Ticket, fromStatus string) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountByWorkflow(ctx context.Context, deploymentID, workflowID string) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, deployment_id, status, workflow_id, workflow_snapshot, workflow_version, assignee_id, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	snapshot, err := workflow.MarshalSnapshot(ticket.WorkflowSnapshot)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (id, deployment_id, status, workflow_id, workflow_snapshot, workflow_version, assignee_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.DeploymentID,
		ticket.Status,
		ticket.WorkflowID,
		snapshot,
		ticket.WorkflowVersion,
		ticket.AssigneeID,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return mapPgError(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, deploymentID, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE deployment_id=$1 AND id=$2`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, deploymentID, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket, fromStatus string) error {
	const query = `
        UPDATE tickets SET status=$1, assignee_id=$2, updated_at=$3
        WHERE deployment_id=$4 AND id=$5 AND status=$6`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.AssigneeID,
		ticket.UpdatedAt,
		ticket.DeploymentID,
		ticket.ID,
		fromStatus,
	)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE deployment_id=$1 AND id=$2)`,
		ticket.DeploymentID, ticket.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	args := []any{filter.DeploymentID}
	clauses := []string{"deployment_id=$1"}

	if filter.WorkflowID != nil {
		args = append(args, *filter.WorkflowID)
		clauses = append(clauses, fmt.Sprintf("workflow_id=$%d", len(args)))
	} else if filter.Unbound {
		clauses = append(clauses, "workflow_id IS NULL")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at ASC, id ASC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountByWorkflow(ctx context.Context, deploymentID, workflowID string) (int, error) {
	return countTickets(ctx, r.pool, deploymentID, workflowID)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func countTickets(ctx context.Context, q queryRower, deploymentID, workflowID string) (int, error) {
	var n int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE deployment_id=$1 AND workflow_id=$2`,
		deploymentID, workflowID).Scan(&n)
	return n, err
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		snapshot []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.DeploymentID,
		&ticket.Status,
		&ticket.WorkflowID,
		&snapshot,
		&ticket.WorkflowVersion,
		&ticket.AssigneeID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	snap, err := workflow.UnmarshalSnapshot(snapshot)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", ticket.ID, err)
	}
	ticket.WorkflowSnapshot = snap
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
