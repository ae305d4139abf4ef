package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/autoposter/internal/domain"
)

// WorkflowRepository is CRUD over reusable listing templates.
type WorkflowRepository interface {
	Create(ctx context.Context, wf domain.Workflow) (int64, error)
	Get(ctx context.Context, id int64) (domain.Workflow, error)
	List(ctx context.Context) ([]domain.Workflow, error)
	Update(ctx context.Context, wf domain.Workflow) error
	Delete(ctx context.Context, id int64) error
}

type workflowRepository struct {
	db *pgxpool.Pool
}

// NewWorkflowRepository wires a Postgres-backed workflow store.
func NewWorkflowRepository(db *pgxpool.Pool) WorkflowRepository {
	return &workflowRepository{db: db}
}

const workflowColumns = `id, name, title, descriptions, price, category, condition, location, delivery_method, groups, boost_listing, created_at, updated_at`

func (r *workflowRepository) Create(ctx context.Context, wf domain.Workflow) (int64, error) {
	descriptions, groups, err := marshalWorkflowJSON(wf)
	if err != nil {
		return 0, err
	}

	query := `
	INSERT INTO workflows (name, title, descriptions, price, category, condition, location, delivery_method, groups, boost_listing)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id`

	var id int64
	err = r.db.QueryRow(ctx, query,
		wf.Name, wf.Title, descriptions, wf.Price, wf.Category, string(wf.Condition),
		wf.Location, string(wf.DeliveryMethod), groups, wf.Boost,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create workflow %q: %w", wf.Name, err)
	}
	return id, nil
}

func (r *workflowRepository) Get(ctx context.Context, id int64) (domain.Workflow, error) {
	row := r.db.QueryRow(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)
	wf, err := scanWorkflow(row)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to load workflow %d: %w", id, err)
	}
	return wf, nil
}

func (r *workflowRepository) List(ctx context.Context) ([]domain.Workflow, error) {
	rows, err := r.db.Query(ctx, `SELECT `+workflowColumns+` FROM workflows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func (r *workflowRepository) Update(ctx context.Context, wf domain.Workflow) error {
	descriptions, groups, err := marshalWorkflowJSON(wf)
	if err != nil {
		return err
	}

	query := `
	UPDATE workflows
	SET name = $1, title = $2, descriptions = $3, price = $4, category = $5, condition = $6,
	    location = $7, delivery_method = $8, groups = $9, boost_listing = $10, updated_at = now()
	WHERE id = $11`

	tag, err := r.db.Exec(ctx, query,
		wf.Name, wf.Title, descriptions, wf.Price, wf.Category, string(wf.Condition),
		wf.Location, string(wf.DeliveryMethod), groups, wf.Boost, wf.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow %d: %w", wf.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workflow %d does not exist", wf.ID)
	}
	return nil
}

func (r *workflowRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete workflow %d: %w", id, err)
	}
	return nil
}

func marshalWorkflowJSON(wf domain.Workflow) (descriptions, groups []byte, err error) {
	descriptions, err = json.Marshal(wf.Descriptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode descriptions: %w", err)
	}
	if len(wf.Groups) > 0 {
		groups, err = json.Marshal(wf.Groups)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode groups: %w", err)
		}
	}
	return descriptions, groups, nil
}

func scanWorkflow(row pgx.Row) (domain.Workflow, error) {
	var (
		wf            domain.Workflow
		condition     string
		delivery      string
		descriptions  []byte
		groups        []byte
	)
	err := row.Scan(&wf.ID, &wf.Name, &wf.Title, &descriptions, &wf.Price, &wf.Category,
		&condition, &wf.Location, &delivery, &groups, &wf.Boost, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return domain.Workflow{}, err
	}

	wf.Condition = domain.ParseCondition(condition)
	wf.DeliveryMethod = domain.ParseDeliveryMethod(delivery)
	if len(descriptions) > 0 {
		if err := json.Unmarshal(descriptions, &wf.Descriptions); err != nil {
			return domain.Workflow{}, fmt.Errorf("corrupt descriptions: %w", err)
		}
	}
	if len(groups) > 0 {
		// Rows written before the groups column existed scan as nil.
		if err := json.Unmarshal(groups, &wf.Groups); err != nil {
			wf.Groups = nil
		}
	}
	return wf, nil
}
