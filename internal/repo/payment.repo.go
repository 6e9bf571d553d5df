package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"patient-portal-server/internal/domain"
)

type PaymentRepo interface {
	Create(ctx context.Context, p *domain.Payment) error
	FindByRef(ctx context.Context, ref string) (*domain.Payment, error)
	FindByRefAndUser(ctx context.Context, ref, userID string) (*domain.Payment, error)
	// CompleteTransition atomically moves a pending payment into a terminal
	// status. Returns false when the row was not pending anymore (or absent),
	// which callers treat as the idempotent no-op path.
	CompleteTransition(ctx context.Context, ref string, status domain.PaymentStatus, transactionID *string, at time.Time) (bool, error)
	FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Payment, error)
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

const paymentColumns = `id, user_id, amount, currency, provider, phone, status,
	checkout_uri, transaction_id, description, metadata, created_at, paid_at, updated_at`

func (r *paymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.Amount, p.Currency, p.Provider, p.Phone, p.Status,
		p.CheckoutURI, p.TransactionID, p.Description, meta, p.CreatedAt, p.PaidAt, p.UpdatedAt,
	)
	return err
}

func (r *paymentRepo) FindByRef(ctx context.Context, ref string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, ref)
	return scanPayment(row)
}

func (r *paymentRepo) FindByRefAndUser(ctx context.Context, ref, userID string) (*domain.Payment, error) {
	// Tenant isolation lives in the query itself, never as a post-hoc check.
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 AND user_id = $2`, ref, userID)
	return scanPayment(row)
}

func (r *paymentRepo) CompleteTransition(ctx context.Context, ref string, status domain.PaymentStatus, transactionID *string, at time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = $2,
		    transaction_id = COALESCE($3, transaction_id),
		    paid_at = CASE WHEN $2 = 'paid' THEN $4 ELSE paid_at END,
		    updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, ref, status, transactionID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *paymentRepo) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var meta []byte
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Amount,
		&p.Currency,
		&p.Provider,
		&p.Phone,
		&p.Status,
		&p.CheckoutURI,
		&p.TransactionID,
		&p.Description,
		&meta,
		&p.CreatedAt,
		&p.PaidAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err // system error
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
