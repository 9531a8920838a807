package fx

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currencies accepted on the API surface
const (
	USD = "USD"
	BRL = "BRL"
)

// SupportedCurrencies lists every currency a plan may be priced or shown in
var SupportedCurrencies = []string{BRL, USD}

// Rate converts one unit of BaseCurrency into QuoteCurrency, effective from AsOf
type Rate struct {
	ID            string          `json:"id"`
	BaseCurrency  string          `json:"baseCurrency"`
	QuoteCurrency string          `json:"quoteCurrency"`
	Value         decimal.Decimal `json:"value"`
	Raw           string          `json:"raw"` // as stored, e.g. "5.2500000000"
	AsOf          time.Time       `json:"asOf"`
	CreatedAt     time.Time       `json:"createdAt"`
	// ValidUntil is the as_of of the next scheduled rate for the pair, if any
	ValidUntil *time.Time `json:"validUntil,omitempty"`
}

// EffectiveAt reports whether r is still the latest rate for its pair at t
func (r *Rate) EffectiveAt(t time.Time) bool {
	return r.ValidUntil == nil || t.Before(*r.ValidUntil)
}

// cacheTTL is how long r may be cached from now: ttl, cut short when the
// next scheduled rate takes effect sooner
func (r *Rate) cacheTTL(now time.Time, ttl time.Duration) time.Duration {
	if r.ValidUntil != nil {
		if until := r.ValidUntil.Sub(now); until < ttl {
			return until
		}
	}
	return ttl
}

// Metadata describes a conversion that was applied
type Metadata struct {
	BaseCurrency       string    `json:"baseCurrency" yaml:"baseCurrency"`
	QuoteCurrency      string    `json:"quoteCurrency" yaml:"quoteCurrency"`
	Rate               string    `json:"rate" yaml:"rate"`
	AsOf               time.Time `json:"asOf" yaml:"asOf"`
	OriginalPriceCents int64     `json:"originalPriceCents" yaml:"originalPriceCents"`
}

// Conversion is a converted amount. Metadata is nil when nothing was converted.
type Conversion struct {
	Amount   int64
	Currency string
	Metadata *Metadata
}

// CreateRateRequest loads a new exchange rate
type CreateRateRequest struct {
	BaseCurrency  string
	QuoteCurrency string
	Rate          decimal.Decimal
	AsOf          time.Time
}
