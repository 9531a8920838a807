package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.DebugLevel, &bytes.Buffer{})
}

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"single URL", "postgres://localhost:5432/db", []string{"postgres://localhost:5432/db"}},
		{"whitespace and empty entries", " postgres://h1/db ,, postgres://h2/db ,", []string{"postgres://h1/db", "postgres://h2/db"}},
		{"only commas", " , , ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReplicaURLs(tt.input))
		})
	}
}

func TestConnectionConfigFrom(t *testing.T) {
	cfg := storage.DefaultConfig()
	cfg.PostgresReplicaURLs = "postgres://r1/db,postgres://r2/db"

	cc := ConnectionConfigFrom(cfg)
	assert.Equal(t, cfg.PostgresURL, cc.PrimaryURL)
	assert.Len(t, cc.ReplicaURLs, 2)
	assert.Equal(t, 20, cc.MaxConns)
	assert.Equal(t, 10*time.Second, cc.Timeout)
}

// stubOpen makes sqlOpen hand out the given pools keyed by DSN
func stubOpen(t *testing.T, pools map[string]*sql.DB) {
	t.Helper()
	prev := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		if db, ok := pools[dsn]; ok {
			return db, nil
		}
		return nil, errors.New("unknown dsn " + dsn)
	}
	t.Cleanup(func() { sqlOpen = prev })
}

func TestNewConnectionManager(t *testing.T) {
	t.Run("primary and replicas", func(t *testing.T) {
		primary, pMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		replica, rMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		badReplica, bMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)

		pMock.ExpectPing()
		rMock.ExpectPing()
		bMock.ExpectPing().WillReturnError(errors.New("replica down"))
		bMock.ExpectClose()

		stubOpen(t, map[string]*sql.DB{"primary": primary, "replica": replica, "bad": badReplica})

		cm, err := NewConnectionManager(context.Background(), ConnectionConfig{
			PrimaryURL:  "primary",
			ReplicaURLs: []string{"replica", "bad"},
			MaxConns:    4,
			MinConns:    2,
		}, testLogger())
		require.NoError(t, err)

		assert.Same(t, primary, cm.Primary())
		assert.Same(t, replica, cm.Replica())
		assert.Equal(t, 1, primary.Stats().Idle)
		assert.NoError(t, pMock.ExpectationsWereMet())
		assert.NoError(t, rMock.ExpectationsWereMet())
		assert.NoError(t, bMock.ExpectationsWereMet())
	})

	t.Run("unset min conns keeps the default idle pool", func(t *testing.T) {
		primary, pMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		pMock.ExpectPing()
		pMock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))

		stubOpen(t, map[string]*sql.DB{"primary": primary})

		cm, err := NewConnectionManager(context.Background(), ConnectionConfig{PrimaryURL: "primary", MaxConns: 4}, testLogger())
		require.NoError(t, err)

		// the pinged connection stays open and is reused
		assert.Equal(t, 1, cm.Primary().Stats().Idle)
		_, err = cm.Primary().ExecContext(context.Background(), "SELECT 1")
		require.NoError(t, err)
		assert.NoError(t, pMock.ExpectationsWereMet())
	})

	t.Run("unreachable primary", func(t *testing.T) {
		primary, pMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		pMock.ExpectPing().WillReturnError(errors.New("connection refused"))
		pMock.ExpectClose()

		stubOpen(t, map[string]*sql.DB{"primary": primary})

		cm, err := NewConnectionManager(context.Background(), ConnectionConfig{PrimaryURL: "primary"}, testLogger())
		assert.Error(t, err)
		assert.Nil(t, cm)
		assert.Contains(t, err.Error(), "failed to connect to primary")
	})
}

func TestConnectionManager_ReplicaRoundRobin(t *testing.T) {
	primary, r1, r2 := &sql.DB{}, &sql.DB{}, &sql.DB{}

	assert.Same(t, primary, NewConnectionManagerFromDB(primary, testLogger()).Replica())

	cm := NewConnectionManagerFromDB(primary, testLogger(), r1, r2)
	seen := map[*sql.DB]int{}
	for i := 0; i < 10; i++ {
		seen[cm.Replica()]++
	}
	assert.Equal(t, 5, seen[r1])
	assert.Equal(t, 5, seen[r2])
}

func TestConnectionManager_WithTx(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE subscriptions").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		cm := NewConnectionManagerFromDB(db, testLogger())
		err = cm.WithTx(context.Background(), func(ctx context.Context, tx storage.Querier) error {
			_, err := tx.ExecContext(ctx, "UPDATE subscriptions SET status = 'ACTIVE'")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		cm := NewConnectionManagerFromDB(db, testLogger())
		boom := errors.New("boom")
		err = cm.WithTx(context.Background(), func(ctx context.Context, tx storage.Querier) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on panic", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		cm := NewConnectionManagerFromDB(db, testLogger())
		assert.Panics(t, func() {
			_ = cm.WithTx(context.Background(), func(ctx context.Context, tx storage.Querier) error {
				panic("boom")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		cm := NewConnectionManagerFromDB(db, testLogger())
		err = cm.WithTx(context.Background(), func(ctx context.Context, tx storage.Querier) error { return nil })
		assert.ErrorContains(t, err, "failed to begin transaction")
	})
}

var _ observability.PoolChecker = (*ConnectionManager)(nil)

func TestConnectionManager_HealthCheckAndClose(t *testing.T) {
	primary, pMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	replica, rMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	pMock.ExpectPing()
	rMock.ExpectPing()
	pMock.ExpectPing()
	rMock.ExpectPing().WillReturnError(errors.New("down"))
	pMock.ExpectClose()
	rMock.ExpectClose()

	cm := NewConnectionManagerFromDB(primary, testLogger(), replica)
	assert.NoError(t, cm.HealthCheck(context.Background()))
	err = cm.HealthCheck(context.Background())
	assert.ErrorContains(t, err, "all replicas unhealthy")

	assert.NoError(t, cm.Close())
	assert.NoError(t, pMock.ExpectationsWereMet())
	assert.NoError(t, rMock.ExpectationsWereMet())
}

func TestConnectionManager_ReplicaQuerier(t *testing.T) {
	primary, _, err := sqlmock.New()
	require.NoError(t, err)
	defer primary.Close()
	r1, m1, err := sqlmock.New()
	require.NoError(t, err)
	defer r1.Close()
	r2, m2, err := sqlmock.New()
	require.NoError(t, err)
	defer r2.Close()

	m1.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	m2.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))

	q := NewConnectionManagerFromDB(primary, testLogger(), r1, r2).ReplicaQuerier()
	for i := 0; i < 2; i++ {
		_, err := q.ExecContext(context.Background(), "SELECT 1")
		require.NoError(t, err)
	}

	assert.NoError(t, m1.ExpectationsWereMet())
	assert.NoError(t, m2.ExpectationsWereMet())
}
