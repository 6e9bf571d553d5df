package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"patient-portal-server/internal/config"
)

// NewPostgres opens the portal database using the pgx stdlib driver.
func NewPostgres(cfg config.Config) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBSchema,
	)

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Migrate creates the payment tables if they do not exist yet. The unique
// index on notifications is the storage-level backstop against a duplicate
// success notification slipping past the reconciler.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			id              text PRIMARY KEY,
			user_id         text NOT NULL,
			amount          numeric NOT NULL,
			currency        text NOT NULL,
			provider        text NOT NULL,
			phone           text NOT NULL,
			status          text NOT NULL,
			checkout_uri    text NOT NULL,
			transaction_id  text,
			description     text NOT NULL DEFAULT '',
			metadata        jsonb,
			created_at      timestamptz NOT NULL,
			paid_at         timestamptz,
			updated_at      timestamptz NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_user ON payments (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status_created ON payments (status, created_at)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id          bigserial PRIMARY KEY,
			user_id     text NOT NULL,
			type        text NOT NULL,
			title       text NOT NULL,
			message     text NOT NULL,
			payment_ref text NOT NULL,
			created_at  timestamptz NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_payment_type
			ON notifications (payment_ref, type)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Health checks the health of the database connection by pinging the
// database and returns a map with basic pool statistics.
func Health(db *sql.DB) map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	if dbStats.OpenConnections > 40 {
		stats["message"] = "The database is experiencing heavy load."
	}
	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}
