package billing

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/platinummonkey/subledger/pkg/errs"
	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/platinummonkey/subledger/pkg/subscriptions"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Simulator runs billing over a batch of subscriptions
type Simulator struct {
	selector *Selector
	engine   *Engine
	tx       storage.TxRunner
	clock    clockwork.Clock
	limits   Limits
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewSimulator creates a Simulator
func NewSimulator(selector *Selector, engine *Engine, tx storage.TxRunner, clock clockwork.Clock, limits Limits, logger *observability.Logger) *Simulator {
	return &Simulator{
		selector: selector,
		engine:   engine,
		tx:       tx,
		clock:    clock,
		limits:   limits,
		logger:   logger,
	}
}

// WithMetrics enables run metrics
func (s *Simulator) WithMetrics(m *observability.Metrics) *Simulator {
	s.metrics = m
	return s
}

// Simulate advances every selected subscription in its own transaction.
// A failing subscription is rolled back and ends the run with an error;
// subscriptions already committed by the run stay committed.
func (s *Simulator) Simulate(ctx context.Context, req *SimulateRequest) (resp *SimulateResponse, err error) {
	started := s.clock.Now()
	ctx, span := observability.StartSpan(ctx, "billing.Simulate", trace.WithAttributes(
		attribute.String("subscription.id", req.SubscriptionID),
		attribute.Bool("billing.dry_run", req.DryRun),
	))
	defer func() {
		observability.EndSpan(span, err)
		s.metrics.ObserveBillingRun(req.DryRun, err, s.clock.Since(started))
	}()

	maxSubscriptions, maxPeriods, err := s.limits.resolve(req)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithContext(ctx)
	log.WithFields(map[string]interface{}{
		"subscription_id":   lo.Ternary(req.SubscriptionID == "", "ALL", req.SubscriptionID),
		"max_subscriptions": maxSubscriptions,
		"max_periods":       maxPeriods,
		"dry_run":           req.DryRun,
	}).Info("starting billing simulation")

	candidates, err := s.selector.Select(ctx, req.SubscriptionID, maxSubscriptions)
	if err != nil {
		return nil, err
	}

	results := make([]SubscriptionResult, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "billing simulation interrupted")
		}
		result, err := s.simulateOne(ctx, c, maxPeriods, req.DryRun)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}

	resp = &SimulateResponse{
		ProcessedSubscriptions: len(results),
		CreatedBillingRecords:  lo.SumBy(results, func(r SubscriptionResult) int { return r.BillingRecordsCreated }),
		AdvancedPeriods:        lo.SumBy(results, func(r SubscriptionResult) int { return r.PeriodsProcessed }),
		Results:                results,
	}

	log.WithFields(map[string]interface{}{
		"processed_subscriptions": resp.ProcessedSubscriptions,
		"created_billing_records": resp.CreatedBillingRecords,
		"advanced_periods":        resp.AdvancedPeriods,
	}).Info("billing simulation completed")

	return resp, nil
}

func (s *Simulator) simulateOne(ctx context.Context, c Candidate, maxPeriods int, dryRun bool) (*SubscriptionResult, error) {
	sub := c.Subscription

	var adv *Advancement
	var err error
	if dryRun {
		adv, err = s.engine.Advance(ctx, nil, sub, c.Plan, maxPeriods, true)
	} else {
		err = s.tx.WithTx(ctx, func(ctx context.Context, tx storage.Querier) error {
			var txErr error
			adv, txErr = s.engine.Advance(ctx, tx, sub, c.Plan, maxPeriods, false)
			return txErr
		})
	}
	if err != nil {
		s.metrics.IncSubscriptionFailure()
		log := s.logger.WithContext(ctx).WithField("subscription_id", sub.ID).WithError(err)
		if errs.IsExpected(err) {
			log.Warn("billing simulation rejected for subscription")
		} else {
			log.Error("failed to simulate billing for subscription")
		}
		return nil, errors.Wrapf(err, "failed to simulate billing for subscription %s", sub.ID)
	}

	if !dryRun {
		s.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"subscription_id":   sub.ID,
			"periods_processed": adv.PeriodsProcessed,
			"records_created":   adv.RecordsCreated,
			"period_start":      adv.PeriodStart,
			"period_end":        adv.PeriodEnd,
		}).Info("subscription advanced")
	}

	return &SubscriptionResult{
		SubscriptionID:        sub.ID,
		PeriodsProcessed:      adv.PeriodsProcessed,
		BillingRecordsCreated: adv.RecordsCreated,
		PeriodStartBefore:     sub.CurrentPeriodStart,
		PeriodEndBefore:       sub.CurrentPeriodEnd,
		PeriodStartAfter:      adv.PeriodStart,
		PeriodEndAfter:        adv.PeriodEnd,
		StatusAfter:           sub.Status,
		ComputedStatusAfter:   subscriptions.DeriveStatus(sub.Status, adv.PeriodEnd, s.clock.Now()),
		HitMaxPeriodsLimit:    adv.HitLimit,
	}, nil
}

func (l Limits) resolve(req *SimulateRequest) (int, int, error) {
	maxSubscriptions := lo.Ternary(req.MaxSubscriptions == 0, l.DefaultMaxSubscriptions, req.MaxSubscriptions)
	maxPeriods := lo.Ternary(req.MaxPeriodsPerSubscription == 0, l.DefaultMaxPeriods, req.MaxPeriodsPerSubscription)

	if maxSubscriptions < 1 || maxSubscriptions > l.MaxSubscriptions {
		return 0, 0, errs.Validationf("maxSubscriptions must be between 1 and %d", l.MaxSubscriptions)
	}
	if maxPeriods < 1 || maxPeriods > l.MaxPeriods {
		return 0, 0, errs.Validationf("maxPeriodsPerSubscription must be between 1 and %d", l.MaxPeriods)
	}
	return maxSubscriptions, maxPeriods, nil
}
