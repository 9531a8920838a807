package subscriptions

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/platinummonkey/subledger/pkg/errs"
	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/platinummonkey/subledger/pkg/storage/postgres"
)

const columns = `id, plan_id, customer_id, status, start_date, current_period_start,
	current_period_end, canceled_at, reactivated_at, created_at, updated_at`

const duplicateActiveMessage = "An active subscription for this customer and plan already exists"

// Service manages the subscription lifecycle
type Service interface {
	Create(ctx context.Context, req *CreateRequest) (*Subscription, error)
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context, query ListQuery) (*storage.Page[*Subscription], error)
	Cancel(ctx context.Context, id string) (*Subscription, error)
	Reactivate(ctx context.Context, id string) (*Subscription, error)
	UpdatePeriod(ctx context.Context, q storage.Querier, id string, start, end time.Time) error
}

// PostgresService implements Service on PostgreSQL
type PostgresService struct {
	db     storage.Querier
	clock  clockwork.Clock
	logger *observability.Logger
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db storage.Querier, clock clockwork.Clock, logger *observability.Logger) *PostgresService {
	return &PostgresService{db: db, clock: clock, logger: logger}
}

// Create opens an ACTIVE subscription whose first period starts at
// req.StartDate (or now).
func (s *PostgresService) Create(ctx context.Context, req *CreateRequest) (*Subscription, error) {
	start := s.clock.Now().UTC()
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}
	periodStart, periodEnd := FirstPeriod(start)

	sub := &Subscription{
		ID:                 uuid.New().String(),
		PlanID:             req.PlanID,
		CustomerID:         req.CustomerID,
		Status:             StatusActive,
		StartDate:          start,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
	}

	query := `
		INSERT INTO subscriptions (id, plan_id, customer_id, status, start_date, current_period_start, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, sub.ID, sub.PlanID, sub.CustomerID, sub.Status,
		sub.StartDate, sub.CurrentPeriodStart, sub.CurrentPeriodEnd).
		Scan(&sub.CreatedAt, &sub.UpdatedAt)
	switch {
	case postgres.IsUniqueViolation(err):
		return nil, errs.Conflictf(duplicateActiveMessage)
	case postgres.IsForeignKeyViolation(err):
		return nil, errs.NotFoundf("Plan with id %s not found", req.PlanID)
	case err != nil:
		return nil, errors.Wrap(err, "failed to create subscription")
	}

	s.logger.WithFields(map[string]interface{}{
		"subscription_id": sub.ID,
		"plan_id":         sub.PlanID,
		"customer_id":     sub.CustomerID,
	}).Info("subscription created")

	return sub, nil
}

// Get retrieves a subscription by id
func (s *PostgresService) Get(ctx context.Context, id string) (*Subscription, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM subscriptions WHERE id = $1", id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("Subscription with id %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get subscription")
	}
	return sub, nil
}

// List returns one page of subscriptions, newest first
func (s *PostgresService) List(ctx context.Context, query ListQuery) (*storage.Page[*Subscription], error) {
	page := query.PageRequest.Normalize()

	where := ""
	args := []interface{}{}
	if query.CustomerID != "" {
		where = " WHERE customer_id = $1"
		args = append(args, query.CustomerID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscriptions"+where, args...).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "failed to count subscriptions")
	}

	n := len(args)
	listQuery := "SELECT " + columns + " FROM subscriptions" + where +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
	args = append(args, page.PageSize, page.Offset())

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list subscriptions")
	}
	defer rows.Close()

	items := []*Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan subscription")
		}
		items = append(items, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate subscriptions")
	}

	return &storage.Page[*Subscription]{
		Items:    items,
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    total,
	}, nil
}

// Cancel moves an ACTIVE subscription to CANCELED. The period window is kept.
func (s *PostgresService) Cancel(ctx context.Context, id string) (*Subscription, error) {
	now := s.clock.Now().UTC()
	query := `
		UPDATE subscriptions
		SET status = $2, canceled_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING ` + columns

	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, id, StatusCanceled, now, StatusActive))
	if err == sql.ErrNoRows {
		return nil, s.transitionError(ctx, id, "Subscription is already canceled")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to cancel subscription")
	}

	s.logger.WithField("subscription_id", id).Info("subscription canceled")
	return sub, nil
}

// Reactivate moves a CANCELED subscription back to ACTIVE with a fresh
// one-month window starting now. canceled_at is kept as history.
func (s *PostgresService) Reactivate(ctx context.Context, id string) (*Subscription, error) {
	now := s.clock.Now().UTC()
	start, end := FirstPeriod(now)
	query := `
		UPDATE subscriptions
		SET status = $2, reactivated_at = $3, current_period_start = $3, current_period_end = $4, updated_at = $3
		WHERE id = $1 AND status = $5
		RETURNING ` + columns

	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, id, StatusActive, start, end, StatusCanceled))
	switch {
	case err == sql.ErrNoRows:
		return nil, s.transitionError(ctx, id, "Subscription is already active")
	case postgres.IsUniqueViolation(err):
		return nil, errs.Conflictf(duplicateActiveMessage)
	case err != nil:
		return nil, errors.Wrap(err, "failed to reactivate subscription")
	}

	s.logger.WithField("subscription_id", id).Info("subscription reactivated")
	return sub, nil
}

// transitionError tells a missing subscription apart from one that is
// already in the target state
func (s *PostgresService) transitionError(ctx context.Context, id, conflict string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return errs.Conflictf("%s", conflict)
}

// UpdatePeriod persists an advanced period window through q, normally the
// caller's transaction. Status is never touched.
func (s *PostgresService) UpdatePeriod(ctx context.Context, q storage.Querier, id string, start, end time.Time) error {
	result, err := q.ExecContext(ctx, `
		UPDATE subscriptions
		SET current_period_start = $2, current_period_end = $3, updated_at = $4
		WHERE id = $1
	`, id, start, end, s.clock.Now().UTC())
	if err != nil {
		return errors.Wrapf(err, "failed to update period for subscription %s", id)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errs.NotFoundf("Subscription with id %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	return ScanJoined(row)
}

// ScanJoined reads the subscription columns from a row that carries them
// first, for callers joining other tables.
func ScanJoined(row rowScanner, extra ...interface{}) (*Subscription, error) {
	sub := &Subscription{}
	var canceledAt, reactivatedAt sql.NullTime
	dest := []interface{}{
		&sub.ID, &sub.PlanID, &sub.CustomerID, &sub.Status, &sub.StartDate,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &canceledAt, &reactivatedAt,
		&sub.CreatedAt, &sub.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	sub.StartDate = sub.StartDate.UTC()
	sub.CurrentPeriodStart = sub.CurrentPeriodStart.UTC()
	sub.CurrentPeriodEnd = sub.CurrentPeriodEnd.UTC()
	sub.CanceledAt = nullTime(canceledAt)
	sub.ReactivatedAt = nullTime(reactivatedAt)
	return sub, nil
}

// Columns returns the subscription column list qualified with alias
func Columns(alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
