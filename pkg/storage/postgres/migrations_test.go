package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMigrations(t *testing.T) {
	migrations := GetMigrations()
	require.Len(t, migrations, 4)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "migrations must be ordered and contiguous")
		assert.NotEmpty(t, m.Description)
	}

	all := ""
	for _, m := range migrations {
		all += m.SQL
	}

	for _, constraint := range []string{
		"chk_price_cents_non_negative",
		"chk_interval_monthly",
		"idx_fx_rates_lookup",
		"chk_status_valid",
		"fk_subscriptions_plan_id",
		"idx_subscriptions_unique_active ON subscriptions (customer_id, plan_id) WHERE status = 'ACTIVE'",
		"chk_amount_non_negative",
		"chk_payment_status_valid",
		"uq_billing_events_subscription_period UNIQUE (subscription_id, period_start, period_end)",
		"fk_billing_events_subscription_id",
		"idx_billing_events_subscription_period_end",
	} {
		assert.True(t, strings.Contains(all, constraint), "missing %s", constraint)
	}
	assert.Equal(t, 2, strings.Count(all, "ON DELETE RESTRICT"))
}

func TestRunMigrations(t *testing.T) {
	t.Run("applies only pending migrations", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1).AddRow(2))

		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS subscriptions").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO schema_migrations").
			WithArgs(3, "Create subscriptions table").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS billing_events").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO schema_migrations").
			WithArgs(4, "Create billing_events table").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, RunMigrations(context.Background(), db, testLogger()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed migration rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS plans").WillReturnError(errors.New("permission denied"))
		mock.ExpectRollback()

		err = RunMigrations(context.Background(), db, testLogger())
		assert.ErrorContains(t, err, "failed to execute migration 1")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
