package billing

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/platinummonkey/subledger/pkg/errs"
	"github.com/platinummonkey/subledger/pkg/plans"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/platinummonkey/subledger/pkg/subscriptions"
)

// Candidate is a subscription picked for advancement, with its plan
type Candidate struct {
	Subscription *subscriptions.Subscription
	Plan         *plans.Plan
}

// Selector picks the subscriptions a billing run works on
type Selector struct {
	db    storage.Querier
	clock clockwork.Clock
}

// NewSelector creates a Selector
func NewSelector(db storage.Querier, clock clockwork.Clock) *Selector {
	return &Selector{db: db, clock: clock}
}

var selectColumns = subscriptions.Columns("s") + ", " + plans.QualifiedColumns("p")

// Select returns the run's candidates. With a subscriptionID it returns that
// subscription if ACTIVE, nothing if CANCELED, and NotFound if it does not
// exist. Otherwise it returns up to max ACTIVE subscriptions whose period has
// ended, the most overdue first.
func (s *Selector) Select(ctx context.Context, subscriptionID string, max int) ([]Candidate, error) {
	if subscriptionID != "" {
		return s.selectOne(ctx, subscriptionID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.status = $1 AND s.current_period_end <= $2
		ORDER BY s.current_period_end ASC
		LIMIT $3
	`, subscriptions.StatusActive, s.clock.Now(), max)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select eligible subscriptions")
	}
	defer rows.Close()

	candidates := []Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan eligible subscription")
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate eligible subscriptions")
	}
	return candidates, nil
}

func (s *Selector) selectOne(ctx context.Context, id string) ([]Candidate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.id = $1
	`, id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("Subscription with id %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get subscription")
	}

	if c.Subscription.Status != subscriptions.StatusActive {
		return []Candidate{}, nil
	}
	return []Candidate{c}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (Candidate, error) {
	plan := &plans.Plan{}
	sub, err := subscriptions.ScanJoined(row, plan.Dest()...)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Subscription: sub, Plan: plan}, nil
}
