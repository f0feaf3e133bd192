package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
)

// WorkflowRepository persists the workflow definitions of each deployment.
type WorkflowRepository interface {
	// WithinTx runs fn in one atomic unit of work over a deployment's
	// workflow set. Concurrent units over the same deployment serialize;
	// fn may be invoked more than once when a conflict forces a retry.
	WithinTx(ctx context.Context, deploymentID string, fn func(ctx context.Context, tx WorkflowTx) error) error
	GetByID(ctx context.Context, deploymentID, id string) (*domain.WorkflowDefinition, error)
	List(ctx context.Context, deploymentID string) ([]*domain.WorkflowDefinition, error)
	GetActive(ctx context.Context, deploymentID string) (*domain.WorkflowDefinition, error)
}

// WorkflowTx is the view of a deployment's workflows inside WithinTx.
type WorkflowTx interface {
	List(ctx context.Context) ([]*domain.WorkflowDefinition, error)
	// Save upserts defs, writing demotions before promotions.
	Save(ctx context.Context, defs ...*domain.WorkflowDefinition) error
	Delete(ctx context.Context, ids ...string) error
	CountTicketsReferencing(ctx context.Context, workflowID string) (int, error)
}

type workflowRepository struct {
	pool       *pgxpool.Pool
	maxRetries int
	logger     *zap.Logger
}

// NewWorkflowRepository instantiates the Postgres workflow repository.
func NewWorkflowRepository(pool *pgxpool.Pool, maxRetries int, logger *zap.Logger) WorkflowRepository {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &workflowRepository{pool: pool, maxRetries: maxRetries, logger: logger}
}

const workflowColumns = `id, deployment_id, name, description, version, document, working_statuses, done_statuses, status, is_default, is_system_default, created_at, updated_at`

// WithinTx runs fn in a serializable transaction and finishes with a
// compare-and-swap on the deployment's set version.
func (r *workflowRepository) WithinTx(ctx context.Context, deploymentID string, fn func(ctx context.Context, tx WorkflowTx) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			version, err := readSetVersion(ctx, tx, deploymentID)
			if err != nil {
				return err
			}
			if err := fn(ctx, &workflowTx{tx: tx, deploymentID: deploymentID}); err != nil {
				return err
			}
			return bumpSetVersion(ctx, tx, deploymentID, version)
		})
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return mapPgError(err)
		}
		lastErr = err
		r.logger.Debug("retrying workflow transaction",
			zap.String("deployment_id", deploymentID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrConcurrentUpdate, r.maxRetries, lastErr)
}

func readSetVersion(ctx context.Context, tx pgx.Tx, deploymentID string) (int64, error) {
	if _, err := tx.Exec(ctx, `INSERT INTO workflow_deployments (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, deploymentID); err != nil {
		return 0, err
	}
	var version int64
	err := tx.QueryRow(ctx, `SELECT set_version FROM workflow_deployments WHERE id=$1`, deploymentID).Scan(&version)
	return version, err
}

func bumpSetVersion(ctx context.Context, tx pgx.Tx, deploymentID string, expected int64) error {
	cmd, err := tx.Exec(ctx, `
        UPDATE workflow_deployments SET set_version=set_version+1, updated_at=NOW()
        WHERE id=$1 AND set_version=$2`, deploymentID, expected)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errSetVersionMoved
	}
	return nil
}

func (r *workflowRepository) GetByID(ctx context.Context, deploymentID, id string) (*domain.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE deployment_id=$1 AND id=$2`
	def, err := scanWorkflow(r.pool.QueryRow(ctx, query, deploymentID, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return def, nil
}

func (r *workflowRepository) List(ctx context.Context, deploymentID string) ([]*domain.WorkflowDefinition, error) {
	return listWorkflows(ctx, r.pool, deploymentID)
}

func (r *workflowRepository) GetActive(ctx context.Context, deploymentID string) (*domain.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE deployment_id=$1 AND status='ACTIVE'`
	def, err := scanWorkflow(r.pool.QueryRow(ctx, query, deploymentID))
	if err != nil {
		return nil, mapPgError(err)
	}
	return def, nil
}

type workflowTx struct {
	tx           pgx.Tx
	deploymentID string
}

func (t *workflowTx) List(ctx context.Context) ([]*domain.WorkflowDefinition, error) {
	return listWorkflows(ctx, t.tx, t.deploymentID)
}

func (t *workflowTx) Save(ctx context.Context, defs ...*domain.WorkflowDefinition) error {
	const query = `
        INSERT INTO workflows (` + workflowColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        ON CONFLICT (id) DO UPDATE SET
            name=EXCLUDED.name,
            description=EXCLUDED.description,
            version=EXCLUDED.version,
            document=EXCLUDED.document,
            working_statuses=EXCLUDED.working_statuses,
            done_statuses=EXCLUDED.done_statuses,
            status=EXCLUDED.status,
            is_default=EXCLUDED.is_default,
            is_system_default=EXCLUDED.is_system_default,
            updated_at=EXCLUDED.updated_at
        WHERE workflows.deployment_id=EXCLUDED.deployment_id`
	for _, def := range persistOrder(defs) {
		if def.DeploymentID != t.deploymentID {
			return fmt.Errorf("workflow %s belongs to deployment %s, not %s", def.ID, def.DeploymentID, t.deploymentID)
		}
		doc, err := workflow.EncodeDocument(def.Graph, def.Layout)
		if err != nil {
			return err
		}
		working, err := json.Marshal(nonNilKeys(def.WorkingStatuses))
		if err != nil {
			return err
		}
		done, err := json.Marshal(nonNilKeys(def.DoneStatuses))
		if err != nil {
			return err
		}
		if _, err := t.tx.Exec(ctx, query,
			def.ID,
			def.DeploymentID,
			def.Name,
			def.Description,
			def.Version,
			doc,
			working,
			done,
			def.Status,
			def.IsDefault,
			def.IsSystemDefault,
			def.CreatedAt,
			def.UpdatedAt,
		); err != nil {
			return mapPgError(err)
		}
	}
	return nil
}

func (t *workflowTx) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		cmd, err := t.tx.Exec(ctx, `DELETE FROM workflows WHERE deployment_id=$1 AND id=$2`, t.deploymentID, id)
		if err != nil {
			return mapPgError(err)
		}
		if cmd.RowsAffected() == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (t *workflowTx) CountTicketsReferencing(ctx context.Context, workflowID string) (int, error) {
	return countTickets(ctx, t.tx, t.deploymentID, workflowID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listWorkflows(ctx context.Context, q querier, deploymentID string) ([]*domain.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE deployment_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := q.Query(ctx, query, deploymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.WorkflowDefinition
	for rows.Next() {
		def, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, def)
	}
	return result, rows.Err()
}

func scanWorkflow(row pgx.Row) (*domain.WorkflowDefinition, error) {
	var (
		def           domain.WorkflowDefinition
		doc           []byte
		working, done []byte
	)
	if err := row.Scan(
		&def.ID,
		&def.DeploymentID,
		&def.Name,
		&def.Description,
		&def.Version,
		&doc,
		&working,
		&done,
		&def.Status,
		&def.IsDefault,
		&def.IsSystemDefault,
		&def.CreatedAt,
		&def.UpdatedAt,
	); err != nil {
		return nil, err
	}
	graph, layout, err := workflow.DecodeDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", def.ID, err)
	}
	def.Graph, def.Layout = graph, layout
	if err := json.Unmarshal(working, &def.WorkingStatuses); err != nil {
		return nil, fmt.Errorf("workflow %s working statuses: %w", def.ID, err)
	}
	if err := json.Unmarshal(done, &def.DoneStatuses); err != nil {
		return nil, fmt.Errorf("workflow %s done statuses: %w", def.ID, err)
	}
	return &def, nil
}

// persistOrder sorts writes so no statement transiently holds two ACTIVE
// rows or two system defaults: rows that are neither go first, active rows
// last.
func persistOrder(defs []*domain.WorkflowDefinition) []*domain.WorkflowDefinition {
	out := make([]*domain.WorkflowDefinition, 0, len(defs))
	for _, d := range defs {
		if d != nil {
			out = append(out, d)
		}
	}
	rank := func(d *domain.WorkflowDefinition) int {
		r := 0
		if d.IsSystemDefault {
			r++
		}
		if d.Status == domain.WorkflowStatusActive {
			r += 2
		}
		return r
	}
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

func nonNilKeys(keys []domain.StatusKey) []domain.StatusKey {
	if keys == nil {
		return []domain.StatusKey{}
	}
	return keys
}
