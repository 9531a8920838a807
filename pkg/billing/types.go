package billing

import (
	"time"

	"github.com/platinummonkey/subledger/pkg/subscriptions"
)

// SimulateRequest asks for one billing run. Zero limits take the configured
// defaults.
type SimulateRequest struct {
	SubscriptionID            string
	MaxSubscriptions          int
	MaxPeriodsPerSubscription int
	DryRun                    bool
}

// SimulateResponse summarizes a billing run
type SimulateResponse struct {
	ProcessedSubscriptions int                  `json:"processedSubscriptions" yaml:"processedSubscriptions"`
	CreatedBillingRecords  int                  `json:"createdBillingRecords" yaml:"createdBillingRecords"`
	AdvancedPeriods        int                  `json:"advancedPeriods" yaml:"advancedPeriods"`
	Results                []SubscriptionResult `json:"results" yaml:"results"`
}

// SubscriptionResult is the run outcome for one subscription
type SubscriptionResult struct {
	SubscriptionID        string                       `json:"subscriptionId" yaml:"subscriptionId"`
	PeriodsProcessed      int                          `json:"periodsProcessed" yaml:"periodsProcessed"`
	BillingRecordsCreated int                          `json:"billingRecordsCreated" yaml:"billingRecordsCreated"`
	PeriodStartBefore     time.Time                    `json:"periodStartBefore" yaml:"periodStartBefore"`
	PeriodEndBefore       time.Time                    `json:"periodEndBefore" yaml:"periodEndBefore"`
	PeriodStartAfter      time.Time                    `json:"periodStartAfter" yaml:"periodStartAfter"`
	PeriodEndAfter        time.Time                    `json:"periodEndAfter" yaml:"periodEndAfter"`
	StatusAfter           subscriptions.Status         `json:"statusAfter" yaml:"statusAfter"`
	ComputedStatusAfter   subscriptions.ComputedStatus `json:"computedStatusAfter" yaml:"computedStatusAfter"`
	HitMaxPeriodsLimit    bool                         `json:"hitMaxPeriodsLimit" yaml:"hitMaxPeriodsLimit"`
}

// Limits bound a billing run
type Limits struct {
	DefaultMaxSubscriptions int
	DefaultMaxPeriods       int
	MaxSubscriptions        int
	MaxPeriods              int
}

// DefaultLimits returns the stock run bounds
func DefaultLimits() Limits {
	return Limits{
		DefaultMaxSubscriptions: 100,
		DefaultMaxPeriods:       12,
		MaxSubscriptions:        1000,
		MaxPeriods:              60,
	}
}
