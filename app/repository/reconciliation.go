package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-api-subscriptions/app/entity"
)

type ReconciliationRepository struct {
	db DBTX
}

func NewReconciliationRepository(db DBTX) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

func (r *ReconciliationRepository) Create(ctx context.Context, marker *entity.ReconciliationMarker) error {
	query := `
		INSERT INTO subscription_reconciliations (id, subscription_id, operation, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		marker.ID,
		marker.SubscriptionID,
		marker.Operation,
		marker.Detail,
		marker.CreatedAt,
	)
	return err
}

func (r *ReconciliationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscription_reconciliations WHERE id = ?`, id)
	return err
}

// ListUnreported returns markers created before cutoff that have not been
// raised yet, oldest first.
func (r *ReconciliationRepository) ListUnreported(ctx context.Context, cutoff time.Time, limit int) ([]*entity.ReconciliationMarker, error) {
	query := `
		SELECT id, subscription_id, operation, detail, created_at, reported_at
		FROM subscription_reconciliations
		WHERE reported_at IS NULL
		  AND created_at < ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.ReconciliationMarker, 0)
	for rows.Next() {
		item := &entity.ReconciliationMarker{}
		var reportedAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.SubscriptionID, &item.Operation, &item.Detail, &item.CreatedAt, &reportedAt); err != nil {
			return nil, err
		}
		if reportedAt.Valid {
			item.ReportedAt = &reportedAt.Time
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *ReconciliationRepository) MarkReported(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE subscription_reconciliations SET reported_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
