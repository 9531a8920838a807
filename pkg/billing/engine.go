package billing

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/platinummonkey/subledger/pkg/plans"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/platinummonkey/subledger/pkg/subscriptions"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PeriodUpdater persists an advanced period window
type PeriodUpdater interface {
	UpdatePeriod(ctx context.Context, q storage.Querier, id string, start, end time.Time) error
}

// Advancement is what one Advance call did (or would do, on a dry run)
type Advancement struct {
	PeriodsProcessed int
	RecordsCreated   int
	PeriodStart      time.Time
	PeriodEnd        time.Time
	HitLimit         bool
}

// Engine catches a subscription up on its elapsed billing periods
type Engine struct {
	ledger  *Ledger
	periods PeriodUpdater
	clock   clockwork.Clock
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewEngine creates an Engine
func NewEngine(ledger *Ledger, periods PeriodUpdater, clock clockwork.Clock, logger *observability.Logger) *Engine {
	return &Engine{ledger: ledger, periods: periods, clock: clock, logger: logger}
}

// WithMetrics enables billing metrics
func (e *Engine) WithMetrics(m *observability.Metrics) *Engine {
	e.metrics = m
	return e
}

// Advance bills every elapsed period of sub, oldest first, up to maxPeriods,
// and moves its window past them. A period whose end equals now counts as
// elapsed. Ledger writes and the window update go through q, so callers wrap
// one subscription in one transaction.
//
// A dry run writes nothing and reports every processed period as created,
// without checking which ones were billed before.
func (e *Engine) Advance(ctx context.Context, q storage.Querier, sub *subscriptions.Subscription, plan *plans.Plan, maxPeriods int, dryRun bool) (adv *Advancement, err error) {
	ctx, span := observability.StartSpan(ctx, "billing.Advance", trace.WithAttributes(
		attribute.String("subscription.id", sub.ID),
		attribute.Int("billing.max_periods", maxPeriods),
		attribute.Bool("billing.dry_run", dryRun),
	))
	defer func() { observability.EndSpan(span, err) }()

	now := e.clock.Now()
	log := e.logger.WithContext(ctx).WithField("subscription_id", sub.ID)

	adv = &Advancement{PeriodStart: sub.CurrentPeriodStart, PeriodEnd: sub.CurrentPeriodEnd}
	for !now.Before(adv.PeriodEnd) && adv.PeriodsProcessed < maxPeriods {
		if !dryRun {
			result, err := e.ledger.Record(ctx, q, &Entry{
				SubscriptionID: sub.ID,
				PeriodStart:    adv.PeriodStart,
				PeriodEnd:      adv.PeriodEnd,
				AmountCents:    plan.PriceCents,
				Currency:       plan.Currency,
				PaymentStatus:  DefaultPaymentStatus,
			})
			if err != nil {
				return nil, err
			}
			switch result.Outcome {
			case OutcomeCreated:
				adv.RecordsCreated++
			case OutcomeAlreadyExists:
				e.metrics.IncRecordDuplicate()
				log.WithFields(map[string]interface{}{
					"period_start": adv.PeriodStart,
					"period_end":   adv.PeriodEnd,
				}).Debug("billing event already exists, skipping")
			default:
				return nil, errors.Wrapf(result.Err(), "period %s to %s",
					adv.PeriodStart.Format(time.RFC3339), adv.PeriodEnd.Format(time.RFC3339))
			}
		}

		adv.PeriodStart = adv.PeriodEnd
		adv.PeriodEnd = subscriptions.AddOneMonth(adv.PeriodEnd)
		adv.PeriodsProcessed++
	}

	adv.HitLimit = adv.PeriodsProcessed >= maxPeriods && !now.Before(adv.PeriodEnd)
	if adv.HitLimit {
		log.WithField("periods_processed", adv.PeriodsProcessed).Warn("hit max periods per subscription limit")
	}

	if dryRun {
		adv.RecordsCreated = adv.PeriodsProcessed
		return adv, nil
	}

	if adv.PeriodsProcessed > 0 {
		if err := e.periods.UpdatePeriod(ctx, q, sub.ID, adv.PeriodStart, adv.PeriodEnd); err != nil {
			return nil, err
		}
	}
	e.metrics.ObserveAdvancement(adv.PeriodsProcessed, adv.RecordsCreated, adv.HitLimit)

	span.SetAttributes(
		attribute.Int("billing.periods_processed", adv.PeriodsProcessed),
		attribute.Int("billing.records_created", adv.RecordsCreated),
	)
	return adv, nil
}
