package repository

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/autoposter/internal/domain"
)

// QueueRepository is CRUD over schedulable listing instances. The scheduler
// is the only caller of the Mark* transitions.
type QueueRepository interface {
	CreateQueueRecord(ctx context.Context, workflowID int64, payload domain.ListingPayload) (int64, error)
	List(ctx context.Context, status *domain.QueueStatus) ([]domain.QueueRecord, error)
	MarkPosting(ctx context.Context, id int64) error
	MarkPosted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errText string) error
	Delete(ctx context.Context, id int64) error
	ClearCompleted(ctx context.Context) (int64, error)
}

type queueRepository struct {
	db *pgxpool.Pool
}

// NewQueueRepository wires a Postgres-backed queue store.
func NewQueueRepository(db *pgxpool.Pool) QueueRepository {
	return &queueRepository{db: db}
}

var queueColumns = []string{
	"id", "workflow_id", "title", "description", "price", "category", "condition",
	"location", "images", "delivery_method", "groups", "boost_listing",
	"status", "created_at", "posted_at", "error_message",
}

func (r *queueRepository) CreateQueueRecord(ctx context.Context, workflowID int64, payload domain.ListingPayload) (int64, error) {
	images, err := json.Marshal(payload.Images)
	if err != nil {
		return 0, fmt.Errorf("failed to encode images: %w", err)
	}
	var groups []byte
	if len(payload.Groups) > 0 {
		if groups, err = json.Marshal(payload.Groups); err != nil {
			return 0, fmt.Errorf("failed to encode groups: %w", err)
		}
	}

	query := `
	INSERT INTO queue (workflow_id, title, description, price, category, condition, location, images, delivery_method, groups, boost_listing)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id`

	var id int64
	err = r.db.QueryRow(ctx, query,
		workflowID, payload.Title, payload.Description, payload.Price, payload.Category,
		string(payload.Condition), payload.Location, images, string(payload.DeliveryMethod),
		groups, payload.Boost,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue listing %q: %w", payload.Title, err)
	}
	return id, nil
}

// List returns queue records oldest-created first, optionally filtered by
// status. The scheduler relies on this order for its strict sequencing.
func (r *queueRepository) List(ctx context.Context, status *domain.QueueStatus) ([]domain.QueueRecord, error) {
	builder := sq.Select(queueColumns...).
		From("queue").
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(sq.Dollar)
	if status != nil {
		builder = builder.Where(sq.Eq{"status": string(*status)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build queue query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue records: %w", err)
	}
	defer rows.Close()

	var records []domain.QueueRecord
	for rows.Next() {
		rec, err := scanQueueRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *queueRepository) MarkPosting(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, `UPDATE queue SET status = 'posting' WHERE id = $1`)
}

// MarkPosted records the terminal success status and the completion time.
func (r *queueRepository) MarkPosted(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, `UPDATE queue SET status = 'posted', posted_at = now(), error_message = NULL WHERE id = $1`)
}

// MarkFailed records the terminal failure status with its error text.
func (r *queueRepository) MarkFailed(ctx context.Context, id int64, errText string) error {
	tag, err := r.db.Exec(ctx, `UPDATE queue SET status = 'failed', error_message = $2 WHERE id = $1`, id, errText)
	if err != nil {
		return fmt.Errorf("failed to update queue record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queue record %d does not exist", id)
	}
	return nil
}

func (r *queueRepository) setStatus(ctx context.Context, id int64, query string) error {
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update queue record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queue record %d does not exist", id)
	}
	return nil
}

func (r *queueRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM queue WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete queue record %d: %w", id, err)
	}
	return nil
}

// ClearCompleted removes all posted and failed records, returning how many
// rows went away.
func (r *queueRepository) ClearCompleted(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM queue WHERE status IN ('posted', 'failed')`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear completed queue records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanQueueRecord(row pgx.Row) (domain.QueueRecord, error) {
	var (
		rec       domain.QueueRecord
		condition string
		delivery  string
		images    []byte
		groups    []byte
		errText   *string
	)
	err := row.Scan(&rec.ID, &rec.WorkflowID, &rec.Payload.Title, &rec.Payload.Description,
		&rec.Payload.Price, &rec.Payload.Category, &condition, &rec.Payload.Location,
		&images, &delivery, &groups, &rec.Payload.Boost,
		&rec.Status, &rec.CreatedAt, &rec.PostedAt, &errText)
	if err != nil {
		return domain.QueueRecord{}, err
	}

	rec.Payload.Condition = domain.ParseCondition(condition)
	rec.Payload.DeliveryMethod = domain.ParseDeliveryMethod(delivery)
	if len(images) > 0 {
		if err := json.Unmarshal(images, &rec.Payload.Images); err != nil {
			return domain.QueueRecord{}, fmt.Errorf("corrupt images: %w", err)
		}
	}
	if len(groups) > 0 {
		if err := json.Unmarshal(groups, &rec.Payload.Groups); err != nil {
			rec.Payload.Groups = nil
		}
	}
	if errText != nil {
		rec.LastError = *errText
	}
	if rec.Status == "" {
		rec.Status = domain.StatusPending
	}
	return rec, nil
}
