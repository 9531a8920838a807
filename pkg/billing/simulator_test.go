package billing

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/platinummonkey/subledger/pkg/errs"
	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/platinummonkey/subledger/pkg/storage/postgres"
	"github.com/platinummonkey/subledger/pkg/subscriptions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type simulatorFixture struct {
	sim     *Simulator
	mock    sqlmock.Sqlmock
	updater *recordingUpdater
	metrics *observability.Metrics
}

func newSimulatorFixture(t *testing.T, now time.Time) *simulatorFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClockAt(now)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	updater := &recordingUpdater{}
	engine := NewEngine(NewLedger(testLogger()), updater, clock, testLogger()).WithMetrics(metrics)
	sim := NewSimulator(
		NewSelector(db, clock),
		engine,
		postgres.NewConnectionManagerFromDB(db, testLogger()),
		clock,
		DefaultLimits(),
		testLogger(),
	).WithMetrics(metrics)

	return &simulatorFixture{sim: sim, mock: mock, updater: updater, metrics: metrics}
}

func TestSimulator_DryRun(t *testing.T) {
	f := newSimulatorFixture(t, testNow)

	rows := sqlmock.NewRows(candidateCols)
	addCandidate(rows, "sub-1", subscriptions.StatusActive, day(2024, 1, 1))
	f.mock.ExpectQuery("FROM subscriptions s JOIN plans p").
		WithArgs("ACTIVE", testNow, 100).
		WillReturnRows(rows)

	resp, err := f.sim.Simulate(context.Background(), &SimulateRequest{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.ProcessedSubscriptions)
	assert.Equal(t, 4, resp.AdvancedPeriods)
	assert.Equal(t, 4, resp.CreatedBillingRecords)
	require.Len(t, resp.Results, 1)

	r := resp.Results[0]
	assert.Equal(t, "sub-1", r.SubscriptionID)
	assert.Equal(t, day(2024, 1, 1), r.PeriodStartBefore)
	assert.Equal(t, day(2024, 2, 1), r.PeriodEndBefore)
	assert.Equal(t, day(2024, 5, 1), r.PeriodStartAfter)
	assert.Equal(t, day(2024, 6, 1), r.PeriodEndAfter)
	assert.Equal(t, subscriptions.StatusActive, r.StatusAfter)
	assert.Equal(t, subscriptions.ComputedActive, r.ComputedStatusAfter)
	assert.False(t, r.HitMaxPeriodsLimit)

	assert.Empty(t, f.updater.calls)
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.BillingRunsTotal.WithLabelValues("dry_run", "success")))
}

func TestSimulator_CommitsEachSubscription(t *testing.T) {
	now := day(2024, 3, 10)
	f := newSimulatorFixture(t, now)

	rows := sqlmock.NewRows(candidateCols)
	addCandidate(rows, "sub-a", subscriptions.StatusActive, day(2024, 1, 1))
	addCandidate(rows, "sub-b", subscriptions.StatusActive, day(2024, 2, 1))
	f.mock.ExpectQuery("FROM subscriptions s JOIN plans p").
		WithArgs("ACTIVE", now, 10).
		WillReturnRows(rows)

	f.mock.ExpectBegin()
	expectInsert(f.mock, "sub-a", day(2024, 1, 1), day(2024, 2, 1))
	expectInsert(f.mock, "sub-a", day(2024, 2, 1), day(2024, 3, 1))
	f.mock.ExpectCommit()

	f.mock.ExpectBegin()
	expectInsert(f.mock, "sub-b", day(2024, 2, 1), day(2024, 3, 1))
	f.mock.ExpectCommit()

	resp, err := f.sim.Simulate(context.Background(), &SimulateRequest{MaxSubscriptions: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.ProcessedSubscriptions)
	assert.Equal(t, 3, resp.CreatedBillingRecords)
	assert.Equal(t, 3, resp.AdvancedPeriods)
	assert.Equal(t, subscriptions.ComputedActive, resp.Results[0].ComputedStatusAfter)
	assert.Equal(t, []periodCall{
		{id: "sub-a", start: day(2024, 3, 1), end: day(2024, 4, 1)},
		{id: "sub-b", start: day(2024, 3, 1), end: day(2024, 4, 1)},
	}, f.updater.calls)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSimulator_FailureRollsBackOnlyThatSubscription(t *testing.T) {
	now := day(2024, 2, 10)
	f := newSimulatorFixture(t, now)

	rows := sqlmock.NewRows(candidateCols)
	addCandidate(rows, "sub-a", subscriptions.StatusActive, day(2024, 1, 1))
	addCandidate(rows, "sub-b", subscriptions.StatusActive, day(2024, 1, 1))
	addCandidate(rows, "sub-c", subscriptions.StatusActive, day(2024, 1, 1))
	f.mock.ExpectQuery("FROM subscriptions s JOIN plans p").WillReturnRows(rows)

	f.mock.ExpectBegin()
	expectInsert(f.mock, "sub-a", day(2024, 1, 1), day(2024, 2, 1))
	f.mock.ExpectCommit()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO billing_events").WillReturnError(errors.New("connection reset"))
	f.mock.ExpectRollback()

	_, err := f.sim.Simulate(context.Background(), &SimulateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to simulate billing for subscription sub-b")
	assert.False(t, errs.IsExpected(err))

	// sub-a stays committed, sub-c never starts
	assert.Len(t, f.updater.calls, 1)
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.BillingSubscriptionFails))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.BillingRunsTotal.WithLabelValues("commit", "error")))
}

func TestSimulator_SingleSubscription(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		f := newSimulatorFixture(t, testNow)
		f.mock.ExpectQuery("WHERE s.id = \\$1").WithArgs("missing").WillReturnRows(sqlmock.NewRows(candidateCols))

		_, err := f.sim.Simulate(context.Background(), &SimulateRequest{SubscriptionID: "missing"})
		assert.True(t, errs.IsNotFound(err))
	})

	t.Run("canceled is a no-op", func(t *testing.T) {
		f := newSimulatorFixture(t, testNow)
		rows := addCandidate(sqlmock.NewRows(candidateCols), "sub-1", subscriptions.StatusCanceled, day(2023, 1, 1))
		f.mock.ExpectQuery("WHERE s.id = \\$1").WithArgs("sub-1").WillReturnRows(rows)

		resp, err := f.sim.Simulate(context.Background(), &SimulateRequest{SubscriptionID: "sub-1"})
		require.NoError(t, err)
		assert.Zero(t, resp.ProcessedSubscriptions)
		assert.NotNil(t, resp.Results)
		assert.Empty(t, resp.Results)
	})

	t.Run("limit hit", func(t *testing.T) {
		f := newSimulatorFixture(t, testNow)
		rows := addCandidate(sqlmock.NewRows(candidateCols), "sub-1", subscriptions.StatusActive, day(2023, 1, 1))
		f.mock.ExpectQuery("WHERE s.id = \\$1").WithArgs("sub-1").WillReturnRows(rows)

		resp, err := f.sim.Simulate(context.Background(), &SimulateRequest{
			SubscriptionID:            "sub-1",
			MaxPeriodsPerSubscription: 2,
			DryRun:                    true,
		})
		require.NoError(t, err)
		r := resp.Results[0]
		assert.Equal(t, 2, r.PeriodsProcessed)
		assert.True(t, r.HitMaxPeriodsLimit)
		assert.Equal(t, subscriptions.ComputedOverdue, r.ComputedStatusAfter)
	})
}

func TestSimulator_Limits(t *testing.T) {
	f := newSimulatorFixture(t, testNow)

	tests := []struct {
		name string
		req  SimulateRequest
	}{
		{"too many subscriptions", SimulateRequest{MaxSubscriptions: 1001}},
		{"negative subscriptions", SimulateRequest{MaxSubscriptions: -1}},
		{"too many periods", SimulateRequest{MaxPeriodsPerSubscription: 61}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sim.Simulate(context.Background(), &tt.req)
			assert.True(t, errs.IsValidation(err))
		})
	}
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSimulator_CanceledContext(t *testing.T) {
	f := newSimulatorFixture(t, testNow)
	rows := addCandidate(sqlmock.NewRows(candidateCols), "sub-1", subscriptions.StatusActive, day(2024, 1, 1))
	f.mock.ExpectQuery("FROM subscriptions s JOIN plans p").WillReturnRows(rows)

	ctx, cancel := context.WithCancel(context.Background())
	// the query already ran against the mock; cancel before any subscription starts
	f.sim.selector = NewSelector(&cancelingQuerier{Querier: f.sim.selector.db, cancel: cancel}, f.sim.clock)

	_, err := f.sim.Simulate(ctx, &SimulateRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

// cancelingQuerier cancels the run's context once the selection query returns
type cancelingQuerier struct {
	storage.Querier
	cancel context.CancelFunc
}

func (c *cancelingQuerier) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := c.Querier.QueryContext(ctx, query, args...)
	c.cancel()
	return rows, err
}
