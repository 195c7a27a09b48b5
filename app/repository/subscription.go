package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-api-subscriptions/app/entity"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/lifecycle"
)

var (
	ErrSubscriptionNotFound      = errors.New("api subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("api subscription already exists")
)

const subscriptionColumns = `id, name, product_name, deployment_name, owner_id, status,
		       primary_key, secondary_key, gateway_etag, created_at, updated_at`

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, subscription *entity.APISubscription) error {
	query := `
		INSERT INTO api_subscriptions (
			id, name, product_name, deployment_name, owner_id, status,
			primary_key, secondary_key, gateway_etag, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		subscription.ID,
		subscription.Name,
		subscription.ProductName,
		subscription.DeploymentName,
		subscription.OwnerID,
		string(subscription.Status),
		subscription.PrimaryKey,
		subscription.SecondaryKey,
		subscription.GatewayETag,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSubscriptionAlreadyExists
		}
		return err
	}

	return nil
}

// Update writes every mutable column. Product and owner are never touched.
func (r *SubscriptionRepository) Update(ctx context.Context, subscription *entity.APISubscription) error {
	query := `
		UPDATE api_subscriptions
		SET name = ?, deployment_name = ?, status = ?, primary_key = ?, secondary_key = ?,
		    gateway_etag = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		subscription.Name,
		subscription.DeploymentName,
		string(subscription.Status),
		subscription.PrimaryKey,
		subscription.SecondaryKey,
		subscription.GatewayETag,
		subscription.UpdatedAt,
		subscription.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}

	return nil
}

// FindByID returns the record in any lifecycle state, or nil when absent.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*entity.APISubscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM api_subscriptions
		WHERE id = ?
	`

	item := &entity.APISubscription{}
	if err := scanSubscription(r.db.QueryRowContext(ctx, query, id), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

func (r *SubscriptionRepository) CountByID(ctx context.Context, id string, statuses []lifecycle.Status) (int, error) {
	query := `SELECT COUNT(*) FROM api_subscriptions WHERE id = ?`
	args := []interface{}{id}
	if len(statuses) > 0 {
		query += " AND status IN (" + placeholders(len(statuses)) + ")"
		args = append(args, statusArgs(statuses)...)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// List filters by owner (case-insensitive, empty means all) and status set.
func (r *SubscriptionRepository) List(ctx context.Context, ownerID string, statuses []lifecycle.Status) ([]*entity.APISubscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM api_subscriptions
	`

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, len(statuses)+1)
	if strings.TrimSpace(ownerID) != "" {
		conditions = append(conditions, "LOWER(owner_id) = LOWER(?)")
		args = append(args, strings.TrimSpace(ownerID))
	}
	if len(statuses) > 0 {
		conditions = append(conditions, "status IN ("+placeholders(len(statuses))+")")
		args = append(args, statusArgs(statuses)...)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.APISubscription, 0)
	for rows.Next() {
		item := &entity.APISubscription{}
		if err := scanSubscription(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(scanner rowScanner, item *entity.APISubscription) error {
	var status string
	err := scanner.Scan(
		&item.ID,
		&item.Name,
		&item.ProductName,
		&item.DeploymentName,
		&item.OwnerID,
		&status,
		&item.PrimaryKey,
		&item.SecondaryKey,
		&item.GatewayETag,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return err
	}
	item.Status = lifecycle.Status(status)
	return nil
}

func statusArgs(statuses []lifecycle.Status) []interface{} {
	args := make([]interface{}, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, string(status))
	}
	return args
}
