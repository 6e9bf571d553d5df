package repo

import (
	"context"
	"database/sql"

	"patient-portal-server/internal/domain"
)

type NotificationRepo interface {
	// Create inserts the notification, silently skipping a duplicate for the
	// same payment reference and type.
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	CountByPayment(ctx context.Context, paymentRef string) (int, error)
}

type notificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) NotificationRepo {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	query := `INSERT INTO notifications (user_id, type, title, message, payment_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (payment_ref, type) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query,
		n.UserID, n.Type, n.Title, n.Message, n.PaymentRef, n.CreatedAt)
	return err
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	query := `SELECT id, user_id, type, title, message, payment_ref, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.PaymentRef, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *notificationRepo) CountByPayment(ctx context.Context, paymentRef string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM notifications WHERE payment_ref = $1`, paymentRef).Scan(&n)
	return n, err
}
