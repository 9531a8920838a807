package fx

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/platinummonkey/subledger/pkg/errs"
	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/shopspring/decimal"
)

// Converter turns amounts in minor units into another currency using the
// latest effective rate
type Converter struct {
	store   Store
	cache   Cache
	clock   clockwork.Clock
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewConverter creates a Converter. cache may be nil.
func NewConverter(store Store, cache Cache, clock clockwork.Clock, logger *observability.Logger) *Converter {
	return &Converter{store: store, cache: cache, clock: clock, logger: logger}
}

// WithMetrics enables lookup metrics
func (c *Converter) WithMetrics(m *observability.Metrics) *Converter {
	c.metrics = m
	return c
}

// Convert converts amount from one currency to another. An empty target or
// the same currency returns the amount unchanged with no metadata. A missing
// rate is Unprocessable.
func (c *Converter) Convert(ctx context.Context, amount int64, from, to string) (*Conversion, error) {
	if to == "" || to == from {
		return &Conversion{Amount: amount, Currency: from}, nil
	}

	rate, err := c.lookup(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &Conversion{
		Amount:   Apply(amount, rate.Value),
		Currency: to,
		Metadata: &Metadata{
			BaseCurrency:       from,
			QuoteCurrency:      to,
			Rate:               rate.Raw,
			AsOf:               rate.AsOf,
			OriginalPriceCents: amount,
		},
	}, nil
}

// Apply multiplies amount by rate and rounds half away from zero
func Apply(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}

func (c *Converter) lookup(ctx context.Context, base, quote string) (*Rate, error) {
	if c.cache != nil {
		if rate, ok := c.cache.Get(ctx, base, quote); ok {
			c.metrics.ObserveFXLookup(base, quote, "cached")
			return rate, nil
		}
	}

	rate, err := c.store.LatestRate(ctx, base, quote, c.clock.Now())
	if errs.IsNotFound(err) {
		c.metrics.ObserveFXLookup(base, quote, "missing")
		return nil, errs.Unprocessablef("No exchange rate found for %s to %s", base, quote)
	}
	if err != nil {
		c.metrics.ObserveFXLookup(base, quote, "error")
		return nil, err
	}

	c.metrics.ObserveFXLookup(base, quote, "found")
	if c.cache != nil {
		c.cache.Set(ctx, rate)
	}
	return rate, nil
}

// CreateRate stores a new rate and drops the cached one for its pair
func (c *Converter) CreateRate(ctx context.Context, req *CreateRateRequest) (*Rate, error) {
	if req.BaseCurrency == req.QuoteCurrency {
		return nil, errs.Validationf("base and quote currency must differ")
	}
	if !req.Rate.IsPositive() {
		return nil, errs.Validationf("rate must be positive")
	}

	rate, err := c.store.CreateRate(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, rate.BaseCurrency, rate.QuoteCurrency); err != nil {
			c.logger.WithError(err).Warn("failed to invalidate fx cache")
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"base":  rate.BaseCurrency,
		"quote": rate.QuoteCurrency,
		"rate":  rate.Raw,
		"as_of": rate.AsOf,
	}).Info("exchange rate created")
	return rate, nil
}
