package billing

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/platinummonkey/subledger/pkg/plans"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/platinummonkey/subledger/pkg/subscriptions"
)

var testNow = time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.DebugLevel, &bytes.Buffer{})
}

func testPlan() *plans.Plan {
	return &plans.Plan{ID: "plan-1", Name: "Pro", PriceCents: 1000, Currency: "USD", Interval: plans.IntervalMonthly}
}

func activeSub(id string, start time.Time) *subscriptions.Subscription {
	return &subscriptions.Subscription{
		ID:                 id,
		PlanID:             "plan-1",
		CustomerID:         "cust-1",
		Status:             subscriptions.StatusActive,
		StartDate:          start,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   subscriptions.AddOneMonth(start),
	}
}

// periodCall is one UpdatePeriod invocation
type periodCall struct {
	id         string
	start, end time.Time
}

// recordingUpdater remembers the windows it was asked to persist
type recordingUpdater struct {
	mu    sync.Mutex
	calls []periodCall
	err   error
}

func (r *recordingUpdater) UpdatePeriod(_ context.Context, _ storage.Querier, id string, start, end time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, periodCall{id: id, start: start, end: end})
	return nil
}
