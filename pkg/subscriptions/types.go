package subscriptions

import (
	"time"

	"github.com/platinummonkey/subledger/pkg/storage"
)

// Subscription is a customer's enrollment in a plan
type Subscription struct {
	ID                 string
	PlanID             string
	CustomerID         string
	Status             Status
	StartDate          time.Time
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CanceledAt         *time.Time
	ReactivatedAt      *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ComputedStatus derives the read-time status as of now
func (s *Subscription) ComputedStatus(now time.Time) ComputedStatus {
	return DeriveStatus(s.Status, s.CurrentPeriodEnd, now)
}

// View is the API representation of a subscription
type View struct {
	ID                 string         `json:"id" yaml:"id"`
	PlanID             string         `json:"planId" yaml:"planId"`
	CustomerID         string         `json:"customerId" yaml:"customerId"`
	Status             Status         `json:"status" yaml:"status"`
	ComputedStatus     ComputedStatus `json:"computedStatus" yaml:"computedStatus"`
	StartDate          time.Time      `json:"startDate" yaml:"startDate"`
	CurrentPeriodStart time.Time      `json:"currentPeriodStart" yaml:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time      `json:"currentPeriodEnd" yaml:"currentPeriodEnd"`
	CanceledAt         *time.Time     `json:"canceledAt" yaml:"canceledAt"`
	ReactivatedAt      *time.Time     `json:"reactivatedAt" yaml:"reactivatedAt"`
	CreatedAt          time.Time      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt" yaml:"updatedAt"`
}

// ToView renders the subscription with its status computed as of now
func (s *Subscription) ToView(now time.Time) View {
	return View{
		ID:                 s.ID,
		PlanID:             s.PlanID,
		CustomerID:         s.CustomerID,
		Status:             s.Status,
		ComputedStatus:     s.ComputedStatus(now),
		StartDate:          s.StartDate,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CanceledAt:         s.CanceledAt,
		ReactivatedAt:      s.ReactivatedAt,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

// CreateRequest opens a new subscription. A nil StartDate means now.
type CreateRequest struct {
	PlanID     string
	CustomerID string
	StartDate  *time.Time
}

// ListQuery filters and pages a subscription listing
type ListQuery struct {
	storage.PageRequest
	CustomerID string
}
