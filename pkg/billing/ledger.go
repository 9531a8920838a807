package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/platinummonkey/subledger/pkg/errs"
	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/platinummonkey/subledger/pkg/storage/postgres"
)

// PaymentStatus is the payment outcome recorded with a ledger entry
type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "PAID"
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
)

// DefaultPaymentStatus is what every period is recorded with. There is no
// payment collection yet, so every charge counts as paid.
const DefaultPaymentStatus = PaymentStatusPaid

// Entry is one billed period of one subscription
type Entry struct {
	ID             string        `json:"id" yaml:"id"`
	SubscriptionID string        `json:"subscriptionId" yaml:"subscriptionId"`
	PeriodStart    time.Time     `json:"periodStart" yaml:"periodStart"`
	PeriodEnd      time.Time     `json:"periodEnd" yaml:"periodEnd"`
	AmountCents    int64         `json:"amountCents" yaml:"amountCents"`
	Currency       string        `json:"currency" yaml:"currency"`
	PaymentStatus  PaymentStatus `json:"paymentStatus" yaml:"paymentStatus"`
	CreatedAt      time.Time     `json:"createdAt" yaml:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt" yaml:"updatedAt"`
}

// Outcome of a ledger write
type Outcome int

const (
	// OutcomeCreated means a new row was inserted
	OutcomeCreated Outcome = iota
	// OutcomeAlreadyExists means the period was billed before
	OutcomeAlreadyExists
	// OutcomeRejected means the entry violates a ledger constraint
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyExists:
		return "already_exists"
	case OutcomeRejected:
		return "rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RecordResult is the result of Ledger.Record
type RecordResult struct {
	Outcome Outcome
	Entry   *Entry
	Reason  string
}

// Err reports a non-created outcome as a Conflict error
func (r RecordResult) Err() error {
	switch r.Outcome {
	case OutcomeCreated:
		return nil
	case OutcomeAlreadyExists:
		return errs.Conflictf("Billing event already exists for this subscription and period")
	default:
		return errs.Conflictf("Billing event rejected: %s", r.Reason)
	}
}

// Ledger writes and reads billing_events. Entries are never updated or deleted.
type Ledger struct {
	logger *observability.Logger
}

// NewLedger creates a Ledger
func NewLedger(logger *observability.Logger) *Ledger {
	return &Ledger{logger: logger}
}

// Validate applies the ledger's row constraints before touching storage
func (e *Entry) Validate() error {
	if !e.PeriodEnd.After(e.PeriodStart) {
		return errors.New("period end must be after period start")
	}
	if e.AmountCents < 0 {
		return errors.New("amount must not be negative")
	}
	return nil
}

// Record inserts entry through q. A period already billed for the
// subscription is reported as OutcomeAlreadyExists and leaves the
// surrounding transaction usable. Only storage failures are returned as errors.
func (l *Ledger) Record(ctx context.Context, q storage.Querier, entry *Entry) (RecordResult, error) {
	if err := entry.Validate(); err != nil {
		return l.rejected(entry, err.Error()), nil
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.PaymentStatus == "" {
		entry.PaymentStatus = DefaultPaymentStatus
	}

	query := `
		INSERT INTO billing_events (id, subscription_id, period_start, period_end, amount_cents, currency, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (subscription_id, period_start, period_end) DO NOTHING
		RETURNING created_at, updated_at
	`
	err := q.QueryRowContext(ctx, query, entry.ID, entry.SubscriptionID, entry.PeriodStart, entry.PeriodEnd,
		entry.AmountCents, entry.Currency, entry.PaymentStatus).
		Scan(&entry.CreatedAt, &entry.UpdatedAt)
	switch {
	case err == sql.ErrNoRows:
		return RecordResult{Outcome: OutcomeAlreadyExists, Entry: entry}, nil
	case postgres.IsUniqueViolation(err):
		return RecordResult{Outcome: OutcomeAlreadyExists, Entry: entry}, nil
	case postgres.IsCheckViolation(err):
		return l.rejected(entry, postgres.Constraint(err)), nil
	case err != nil:
		return RecordResult{}, errors.Wrapf(err, "failed to record billing event for subscription %s", entry.SubscriptionID)
	}

	return RecordResult{Outcome: OutcomeCreated, Entry: entry}, nil
}

func (l *Ledger) rejected(entry *Entry, reason string) RecordResult {
	l.logger.WithFields(map[string]interface{}{
		"subscription_id": entry.SubscriptionID,
		"period_start":    entry.PeriodStart,
		"period_end":      entry.PeriodEnd,
		"reason":          reason,
	}).Warn("billing event rejected")
	return RecordResult{Outcome: OutcomeRejected, Entry: entry, Reason: reason}
}

// ListBySubscription returns a subscription's entries, latest period first
func (l *Ledger) ListBySubscription(ctx context.Context, q storage.Querier, subscriptionID string) ([]*Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, subscription_id, period_start, period_end, amount_cents, currency, payment_status, created_at, updated_at
		FROM billing_events
		WHERE subscription_id = $1
		ORDER BY period_end DESC
	`, subscriptionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list billing events")
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.SubscriptionID, &e.PeriodStart, &e.PeriodEnd, &e.AmountCents,
			&e.Currency, &e.PaymentStatus, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan billing event")
		}
		e.PeriodStart = e.PeriodStart.UTC()
		e.PeriodEnd = e.PeriodEnd.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate billing events")
	}
	return entries, nil
}
