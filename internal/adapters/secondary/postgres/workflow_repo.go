package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

type workflowRepo struct {
	pool *pgxpool.Pool
}

func NewWorkflowRepository(pool *pgxpool.Pool) ports.WorkflowRepository {
	return &workflowRepo{pool: pool}
}

func (r *workflowRepo) Create(ctx context.Context, wf *domain.Workflow) error {
	query := `
		INSERT INTO workflow (id, created_at, updated_at, name, slug, description, raw_spec)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := r.pool.Exec(ctx, query,
		wf.ID, wf.CreatedAt, wf.UpdatedAt, wf.Name, wf.Slug, wf.Description, wf.RawSpec,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrWorkflowNameConflict
		}
		return fmt.Errorf("create workflow: %w", err)
	}
	return nil
}

func (r *workflowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	query := `
		SELECT id, created_at, updated_at, name, slug, description, raw_spec
		FROM workflow
		WHERE id = $1
	`
	wf, err := scanWorkflow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("get workflow by id: %w", err)
	}
	return wf, nil
}

func (r *workflowRepo) GetByName(ctx context.Context, name string) (*domain.Workflow, error) {
	query := `
		SELECT id, created_at, updated_at, name, slug, description, raw_spec
		FROM workflow
		WHERE name = $1
	`
	wf, err := scanWorkflow(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("get workflow by name: %w", err)
	}
	return wf, nil
}

func (r *workflowRepo) Update(ctx context.Context, wf *domain.Workflow) error {
	query := `
		UPDATE workflow
		SET name=$1, slug=$2, description=$3, raw_spec=$4, updated_at=NOW()
		WHERE id=$5
	`
	result, err := r.pool.Exec(ctx, query, wf.Name, wf.Slug, wf.Description, wf.RawSpec, wf.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrWorkflowNameConflict
		}
		return fmt.Errorf("update workflow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrWorkflowNotFound
	}
	return nil
}

func (r *workflowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM workflow WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrWorkflowNotFound
	}
	return nil
}

func (r *workflowRepo) List(ctx context.Context, filter ports.WorkflowListFilter) ([]*domain.Workflow, int, error) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argPos))
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}

	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM workflow WHERE %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count workflows: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, created_at, updated_at, name, slug, description, raw_spec
		FROM workflow
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, whereClause, workflowOrderBy(filter.SortBy, filter.Order), argPos, argPos+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan workflow row: %w", err)
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate workflow rows: %w", err)
	}

	return workflows, total, nil
}

var workflowSortColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
	"slug":       true,
}

// workflowOrderBy builds the ORDER BY clause from client-supplied sort
// parameters. SortBy is interpolated into SQL and must stay on the column
// whitelist; anything else falls back to the default ordering.
func workflowOrderBy(sortBy, order string) string {
	if !workflowSortColumns[sortBy] {
		return "created_at DESC"
	}
	dir := "DESC"
	if order == "asc" {
		dir = "ASC"
	}
	return sortBy + " " + dir
}

// scanWorkflow re-parses the stored YAML so the returned workflow always
// carries a populated Spec. The raw spec was validated on write.
func scanWorkflow(row pgx.Row) (*domain.Workflow, error) {
	wf := &domain.Workflow{}
	err := row.Scan(
		&wf.ID, &wf.CreatedAt, &wf.UpdatedAt,
		&wf.Name, &wf.Slug, &wf.Description, &wf.RawSpec,
	)
	if err != nil {
		return nil, err
	}

	spec, err := domain.ParseWorkflowSpec([]byte(wf.RawSpec))
	if err != nil {
		return nil, fmt.Errorf("parse stored workflow spec: %w", err)
	}
	wf.Spec = *spec
	return wf, nil
}
