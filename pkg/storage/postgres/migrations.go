package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/subledger/pkg/observability"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the subledger schema, oldest first
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create plans table",
			SQL: `
				CREATE TABLE IF NOT EXISTS plans (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name VARCHAR(80) NOT NULL UNIQUE,
					price_cents INT NOT NULL,
					currency VARCHAR(3) NOT NULL,
					interval VARCHAR(20) NOT NULL DEFAULT 'MONTHLY',
					created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
					CONSTRAINT chk_price_cents_non_negative CHECK (price_cents >= 0),
					CONSTRAINT chk_interval_monthly CHECK (interval = 'MONTHLY')
				);
			`,
		},
		{
			Version:     2,
			Description: "Create fx_rates table",
			SQL: `
				CREATE TABLE IF NOT EXISTS fx_rates (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					base_currency VARCHAR(3) NOT NULL,
					quote_currency VARCHAR(3) NOT NULL,
					rate NUMERIC(20, 10) NOT NULL,
					as_of TIMESTAMPTZ NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX idx_fx_rates_lookup ON fx_rates (base_currency, quote_currency, as_of);
			`,
		},
		{
			Version:     3,
			Description: "Create subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscriptions (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					plan_id UUID NOT NULL,
					customer_id VARCHAR(64) NOT NULL,
					status VARCHAR(20) NOT NULL,
					start_date TIMESTAMPTZ NOT NULL,
					current_period_start TIMESTAMPTZ NOT NULL,
					current_period_end TIMESTAMPTZ NOT NULL,
					canceled_at TIMESTAMPTZ,
					reactivated_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
					CONSTRAINT chk_status_valid CHECK (status IN ('ACTIVE', 'CANCELED')),
					CONSTRAINT chk_period_end_after_start CHECK (current_period_end > current_period_start),
					CONSTRAINT fk_subscriptions_plan_id FOREIGN KEY (plan_id) REFERENCES plans (id) ON DELETE RESTRICT
				);

				CREATE INDEX idx_subscriptions_plan_id ON subscriptions (plan_id);
				CREATE INDEX idx_subscriptions_customer_id ON subscriptions (customer_id);
				CREATE INDEX idx_subscriptions_status ON subscriptions (status);
				CREATE UNIQUE INDEX idx_subscriptions_unique_active ON subscriptions (customer_id, plan_id) WHERE status = 'ACTIVE';
			`,
		},
		{
			Version:     4,
			Description: "Create billing_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS billing_events (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					subscription_id UUID NOT NULL,
					period_start TIMESTAMPTZ NOT NULL,
					period_end TIMESTAMPTZ NOT NULL,
					amount_cents INT NOT NULL,
					currency VARCHAR(3) NOT NULL,
					payment_status VARCHAR(20) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
					CONSTRAINT chk_period_end_after_start CHECK (period_end > period_start),
					CONSTRAINT chk_amount_non_negative CHECK (amount_cents >= 0),
					CONSTRAINT chk_payment_status_valid CHECK (payment_status IN ('PAID', 'UNPAID')),
					CONSTRAINT uq_billing_events_subscription_period UNIQUE (subscription_id, period_start, period_end),
					CONSTRAINT fk_billing_events_subscription_id FOREIGN KEY (subscription_id) REFERENCES subscriptions (id) ON DELETE RESTRICT
				);

				CREATE INDEX idx_billing_events_subscription_period_end ON billing_events (subscription_id, period_end);
			`,
		},
	}
}

// RunMigrations applies every pending migration, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		log := logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		})
		log.Info("applying migration")

		if err := applyMigration(ctx, db, migration); err != nil {
			return err
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		migration.Version, migration.Description,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}
	return nil
}
