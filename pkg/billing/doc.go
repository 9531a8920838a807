// Package billing advances subscriptions through their monthly billing
// periods and records one ledger entry per period.
//
// # Overview
//
// A billing run has three parts:
//
//   - Selector picks ACTIVE subscriptions whose period has ended, most
//     overdue first, or one subscription by id.
//   - Engine walks a subscription forward period by period, writing a
//     billing_events row for each and moving the period window.
//   - Simulator drives the Engine over the selection, one transaction per
//     subscription.
//
// # Idempotence
//
// A ledger entry is keyed by (subscription_id, period_start, period_end).
// Re-running billing over a period that was already billed leaves the
// existing row alone and only advances the window, so two overlapping runs
// never double charge.
//
// # Dry runs
//
// A dry run computes the same trajectory without writing. It reports every
// processed period as a created record, even if a previous run billed it.
//
//	resp, err := simulator.Simulate(ctx, &billing.SimulateRequest{DryRun: true})
//	fmt.Printf("would advance %d periods\n", resp.AdvancedPeriods)
package billing
