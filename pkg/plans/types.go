package plans

import (
	"time"

	"github.com/platinummonkey/subledger/pkg/fx"
)

// Interval is the billing cadence of a plan
type Interval string

// IntervalMonthly is the only supported cadence
const IntervalMonthly Interval = "MONTHLY"

// Plan is a priced catalog entry
type Plan struct {
	ID         string
	Name       string
	PriceCents int64
	Currency   string
	Interval   Interval
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// View is the API representation of a plan, optionally converted
type View struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	PriceCents int64        `json:"priceCents" yaml:"priceCents"`
	Currency   string       `json:"currency" yaml:"currency"`
	Interval   Interval     `json:"interval" yaml:"interval"`
	CreatedAt  time.Time    `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt" yaml:"updatedAt"`
	FX         *fx.Metadata `json:"fx,omitempty" yaml:"fx,omitempty"`
}

// CreateRequest adds a plan to the catalog
type CreateRequest struct {
	Name       string
	PriceCents int64
	Currency   string
	Interval   Interval
}
