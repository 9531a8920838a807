package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/platinummonkey/subledger/pkg/billing"
	"github.com/platinummonkey/subledger/pkg/errs"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/platinummonkey/subledger/pkg/subscriptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeSubscription() *subscriptions.Subscription {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return &subscriptions.Subscription{
		ID:                 subID,
		PlanID:             planID,
		CustomerID:         "cus_123",
		Status:             subscriptions.StatusActive,
		StartDate:          start,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   subscriptions.AddOneMonth(start),
		CreatedAt:          start,
		UpdatedAt:          start,
	}
}

func overdueSubscription() *subscriptions.Subscription {
	sub := activeSubscription()
	sub.CurrentPeriodStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sub.CurrentPeriodEnd = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	return sub
}

func TestCreateSubscription(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.createFunc = func(ctx context.Context, req *subscriptions.CreateRequest) (*subscriptions.Subscription, error) {
			assert.Equal(t, planID, req.PlanID)
			assert.Equal(t, "cus_123", req.CustomerID)
			require.NotNil(t, req.StartDate)
			assert.True(t, req.StartDate.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
			return activeSubscription(), nil
		}

		w := do(t, server, http.MethodPost, "/subscriptions",
			`{"planId":"`+planID+`","customerId":" cus_123 ","startDate":"2024-05-01T00:00:00Z"}`)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var view subscriptions.View
		decode(t, w, &view)
		assert.Equal(t, subscriptions.ComputedActive, view.ComputedStatus)
		assert.Nil(t, view.CanceledAt)
	})

	t.Run("canceledAt serialized as null", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.createFunc = func(ctx context.Context, req *subscriptions.CreateRequest) (*subscriptions.Subscription, error) {
			assert.Nil(t, req.StartDate)
			return activeSubscription(), nil
		}

		w := do(t, server, http.MethodPost, "/subscriptions", `{"planId":"`+planID+`","customerId":"cus_123"}`)

		assert.Contains(t, w.Body.String(), `"canceledAt":null`)
	})

	t.Run("validation", func(t *testing.T) {
		server, _ := newTestServer(t)

		w := do(t, server, http.MethodPost, "/subscriptions", `{"planId":"nope"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body errorBody
		decode(t, w, &body)
		assert.Equal(t, "must be a UUID", body.Details["planId"])
		assert.Equal(t, "is required", body.Details["customerId"])
	})

	t.Run("unknown plan", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.createFunc = func(ctx context.Context, req *subscriptions.CreateRequest) (*subscriptions.Subscription, error) {
			return nil, errs.NotFoundf("Plan with id %s not found", req.PlanID)
		}

		w := do(t, server, http.MethodPost, "/subscriptions", `{"planId":"`+planID+`","customerId":"cus_123"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("duplicate active", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.createFunc = func(ctx context.Context, req *subscriptions.CreateRequest) (*subscriptions.Subscription, error) {
			return nil, errs.Conflictf("Customer already has an active subscription for this plan")
		}

		w := do(t, server, http.MethodPost, "/subscriptions", `{"planId":"`+planID+`","customerId":"cus_123"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestGetSubscription(t *testing.T) {
	t.Run("overdue is computed at read time", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.getFunc = func(ctx context.Context, id string) (*subscriptions.Subscription, error) {
			return overdueSubscription(), nil
		}

		w := do(t, server, http.MethodGet, "/subscriptions/"+subID, "")

		require.Equal(t, http.StatusOK, w.Code)
		var view subscriptions.View
		decode(t, w, &view)
		assert.Equal(t, subscriptions.StatusActive, view.Status)
		assert.Equal(t, subscriptions.ComputedOverdue, view.ComputedStatus)
	})

	t.Run("uppercase id normalized", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.getFunc = func(ctx context.Context, id string) (*subscriptions.Subscription, error) {
			assert.Equal(t, subID, id)
			return activeSubscription(), nil
		}

		w := do(t, server, http.MethodGet, "/subscriptions/3B9F8E27-1C4D-4E5F-8A6B-7C8D9E0F1A2B", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.getFunc = func(ctx context.Context, id string) (*subscriptions.Subscription, error) {
			return nil, errs.NotFoundf("Subscription with id %s not found", id)
		}

		w := do(t, server, http.MethodGet, "/subscriptions/"+subID, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Subscription with id `+subID+` not found"}`, w.Body.String())
	})
}

func TestListSubscriptions(t *testing.T) {
	server, deps := newTestServer(t)
	deps.subs.listFunc = func(ctx context.Context, query subscriptions.ListQuery) (*storage.Page[*subscriptions.Subscription], error) {
		assert.Equal(t, "cus_123", query.CustomerID)
		assert.Equal(t, 2, query.Page)
		assert.Equal(t, 10, query.PageSize)
		return &storage.Page[*subscriptions.Subscription]{
			Items:    []*subscriptions.Subscription{activeSubscription(), overdueSubscription()},
			Page:     2,
			PageSize: 10,
			Total:    12,
		}, nil
	}

	w := do(t, server, http.MethodGet, "/subscriptions?customerId=cus_123&page=2&pageSize=10", "")

	require.Equal(t, http.StatusOK, w.Code)
	var page storage.Page[subscriptions.View]
	decode(t, w, &page)
	assert.Equal(t, 12, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, subscriptions.ComputedActive, page.Items[0].ComputedStatus)
	assert.Equal(t, subscriptions.ComputedOverdue, page.Items[1].ComputedStatus)
}

func TestCancelSubscription(t *testing.T) {
	t.Run("canceled", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.cancelFunc = func(ctx context.Context, id string) (*subscriptions.Subscription, error) {
			sub := activeSubscription()
			sub.Status = subscriptions.StatusCanceled
			canceledAt := testNow
			sub.CanceledAt = &canceledAt
			return sub, nil
		}

		w := do(t, server, http.MethodPost, "/subscriptions/"+subID+"/cancel", "")

		require.Equal(t, http.StatusOK, w.Code)
		var view subscriptions.View
		decode(t, w, &view)
		assert.Equal(t, subscriptions.ComputedCanceled, view.ComputedStatus)
		require.NotNil(t, view.CanceledAt)
		assert.True(t, view.CanceledAt.Equal(testNow))
	})

	t.Run("already canceled", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.cancelFunc = func(ctx context.Context, id string) (*subscriptions.Subscription, error) {
			return nil, errs.Conflictf("Subscription is already canceled")
		}

		w := do(t, server, http.MethodPost, "/subscriptions/"+subID+"/cancel", "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestReactivateSubscription(t *testing.T) {
	t.Run("reactivated", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.reactivateFunc = func(ctx context.Context, id string) (*subscriptions.Subscription, error) {
			sub := activeSubscription()
			sub.CurrentPeriodStart = testNow
			sub.CurrentPeriodEnd = subscriptions.AddOneMonth(testNow)
			sub.ReactivatedAt = &testNow
			return sub, nil
		}

		w := do(t, server, http.MethodPost, "/subscriptions/"+subID+"/reactivate", "")

		require.Equal(t, http.StatusOK, w.Code)
		var view subscriptions.View
		decode(t, w, &view)
		assert.Equal(t, subscriptions.ComputedActive, view.ComputedStatus)
		assert.True(t, view.CurrentPeriodEnd.Equal(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)))
	})

	t.Run("already active", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.reactivateFunc = func(ctx context.Context, id string) (*subscriptions.Subscription, error) {
			return nil, errs.Conflictf("Subscription is already active")
		}

		w := do(t, server, http.MethodPost, "/subscriptions/"+subID+"/reactivate", "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestListBillingEvents(t *testing.T) {
	t.Run("listed", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.getFunc = func(ctx context.Context, id string) (*subscriptions.Subscription, error) {
			return activeSubscription(), nil
		}
		deps.events.listFunc = func(ctx context.Context, id string) ([]*billing.Entry, error) {
			return []*billing.Entry{{
				ID:             "e1",
				SubscriptionID: id,
				PeriodStart:    time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
				PeriodEnd:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
				AmountCents:    10000,
				Currency:       "USD",
				PaymentStatus:  billing.PaymentStatusPaid,
			}}, nil
		}

		w := do(t, server, http.MethodGet, "/subscriptions/"+subID+"/billing-events", "")

		require.Equal(t, http.StatusOK, w.Code)
		var entries []billing.Entry
		decode(t, w, &entries)
		require.Len(t, entries, 1)
		assert.Equal(t, billing.PaymentStatusPaid, entries[0].PaymentStatus)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.subs.getFunc = func(ctx context.Context, id string) (*subscriptions.Subscription, error) {
			return nil, errs.NotFoundf("Subscription with id %s not found", id)
		}

		w := do(t, server, http.MethodGet, "/subscriptions/"+subID+"/billing-events", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
