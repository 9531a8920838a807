package api

import (
	"strings"
	"time"

	"github.com/platinummonkey/subledger/pkg/billing"
	"github.com/platinummonkey/subledger/pkg/fx"
	"github.com/platinummonkey/subledger/pkg/plans"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/platinummonkey/subledger/pkg/subscriptions"
	"github.com/shopspring/decimal"
)

// SimulateBillingRequest is the body of POST /billing/simulate. Upper bounds
// on the limits are configuration, enforced by the simulator.
type SimulateBillingRequest struct {
	SubscriptionID            *string `json:"subscriptionId" validate:"omitnil,uuid"`
	MaxSubscriptions          *int    `json:"maxSubscriptions" validate:"omitnil,min=1"`
	MaxPeriodsPerSubscription *int    `json:"maxPeriodsPerSubscription" validate:"omitnil,min=1"`
	DryRun                    bool    `json:"dryRun"`
}

func (r *SimulateBillingRequest) toDomain() *billing.SimulateRequest {
	req := &billing.SimulateRequest{DryRun: r.DryRun}
	if r.SubscriptionID != nil {
		req.SubscriptionID = strings.ToLower(*r.SubscriptionID)
	}
	if r.MaxSubscriptions != nil {
		req.MaxSubscriptions = *r.MaxSubscriptions
	}
	if r.MaxPeriodsPerSubscription != nil {
		req.MaxPeriodsPerSubscription = *r.MaxPeriodsPerSubscription
	}
	return req
}

// CreatePlanRequest is the body of POST /plans
type CreatePlanRequest struct {
	Name       string `json:"name" validate:"required,min=3,max=80"`
	PriceCents *int64 `json:"priceCents" validate:"required,min=0"`
	Currency   string `json:"currency" validate:"required,oneof=USD BRL"`
	Interval   string `json:"interval" validate:"omitempty,oneof=MONTHLY"`
}

func (r *CreatePlanRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
}

func (r *CreatePlanRequest) toDomain() *plans.CreateRequest {
	return &plans.CreateRequest{
		Name:       r.Name,
		PriceCents: *r.PriceCents,
		Currency:   r.Currency,
		Interval:   plans.Interval(r.Interval),
	}
}

// ListPlansQuery is the query string of GET /plans
type ListPlansQuery struct {
	Page     int    `query:"page" validate:"min=1"`
	PageSize int    `query:"pageSize" validate:"min=1,max=100"`
	Currency string `query:"currency" validate:"omitempty,oneof=USD BRL"`
}

func (q *ListPlansQuery) normalize() {
	q.Currency = strings.ToUpper(q.Currency)
}

// GetPlanQuery is the query string of GET /plans/{id}
type GetPlanQuery struct {
	Currency string `query:"currency" validate:"omitempty,oneof=USD BRL"`
}

func (q *GetPlanQuery) normalize() {
	q.Currency = strings.ToUpper(q.Currency)
}

// CreateSubscriptionRequest is the body of POST /subscriptions
type CreateSubscriptionRequest struct {
	PlanID     string     `json:"planId" validate:"required,uuid"`
	CustomerID string     `json:"customerId" validate:"required,max=64"`
	StartDate  *time.Time `json:"startDate"`
}

func (r *CreateSubscriptionRequest) normalize() {
	r.PlanID = strings.ToLower(strings.TrimSpace(r.PlanID))
	r.CustomerID = strings.TrimSpace(r.CustomerID)
}

func (r *CreateSubscriptionRequest) toDomain() *subscriptions.CreateRequest {
	return &subscriptions.CreateRequest{
		PlanID:     r.PlanID,
		CustomerID: r.CustomerID,
		StartDate:  r.StartDate,
	}
}

// ListSubscriptionsQuery is the query string of GET /subscriptions
type ListSubscriptionsQuery struct {
	Page       int    `query:"page" validate:"min=1"`
	PageSize   int    `query:"pageSize" validate:"min=1,max=100"`
	CustomerID string `query:"customerId" validate:"max=64"`
}

func (q *ListSubscriptionsQuery) toDomain() subscriptions.ListQuery {
	return subscriptions.ListQuery{
		PageRequest: storage.PageRequest{Page: q.Page, PageSize: q.PageSize},
		CustomerID:  q.CustomerID,
	}
}

// CreateFXRateRequest is the body of POST /fx-rates. A missing asOf means now.
type CreateFXRateRequest struct {
	BaseCurrency  string          `json:"baseCurrency" validate:"required,oneof=USD BRL"`
	QuoteCurrency string          `json:"quoteCurrency" validate:"required,oneof=USD BRL"`
	Rate          decimal.Decimal `json:"rate"`
	AsOf          *time.Time      `json:"asOf"`
}

func (r *CreateFXRateRequest) normalize() {
	r.BaseCurrency = strings.ToUpper(strings.TrimSpace(r.BaseCurrency))
	r.QuoteCurrency = strings.ToUpper(strings.TrimSpace(r.QuoteCurrency))
}

func (r *CreateFXRateRequest) toDomain(now time.Time) *fx.CreateRateRequest {
	asOf := now
	if r.AsOf != nil {
		asOf = *r.AsOf
	}
	return &fx.CreateRateRequest{
		BaseCurrency:  r.BaseCurrency,
		QuoteCurrency: r.QuoteCurrency,
		Rate:          r.Rate,
		AsOf:          asOf.UTC(),
	}
}

// FXRateResponse is the API representation of a stored rate
type FXRateResponse struct {
	ID            string    `json:"id"`
	BaseCurrency  string    `json:"baseCurrency"`
	QuoteCurrency string    `json:"quoteCurrency"`
	Rate          string    `json:"rate"`
	AsOf          time.Time `json:"asOf"`
	CreatedAt     time.Time `json:"createdAt"`
}

func newFXRateResponse(rate *fx.Rate) FXRateResponse {
	return FXRateResponse{
		ID:            rate.ID,
		BaseCurrency:  rate.BaseCurrency,
		QuoteCurrency: rate.QuoteCurrency,
		Rate:          rate.Raw,
		AsOf:          rate.AsOf,
		CreatedAt:     rate.CreatedAt,
	}
}
