package fx

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/platinummonkey/subledger/pkg/errs"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/shopspring/decimal"
)

// Store reads and writes exchange rates
type Store interface {
	// LatestRate returns the newest rate with as_of <= at, or a NotFound error.
	// ValidUntil is set when a later rate for the pair is already scheduled.
	LatestRate(ctx context.Context, base, quote string, at time.Time) (*Rate, error)
	CreateRate(ctx context.Context, req *CreateRateRequest) (*Rate, error)
}

// PostgresStore implements Store over the fx_rates table
type PostgresStore struct {
	db storage.Querier
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db storage.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// LatestRate implements Store
func (s *PostgresStore) LatestRate(ctx context.Context, base, quote string, at time.Time) (*Rate, error) {
	query := `
		SELECT r.id, r.base_currency, r.quote_currency, r.rate, r.as_of, r.created_at,
			(SELECT MIN(n.as_of) FROM fx_rates n
			 WHERE n.base_currency = $1 AND n.quote_currency = $2 AND n.as_of > $3) AS next_as_of
		FROM fx_rates r
		WHERE r.base_currency = $1 AND r.quote_currency = $2 AND r.as_of <= $3
		ORDER BY r.as_of DESC
		LIMIT 1
	`
	rate := &Rate{}
	var next sql.NullTime
	err := s.db.QueryRowContext(ctx, query, base, quote, at).Scan(
		&rate.ID, &rate.BaseCurrency, &rate.QuoteCurrency, &rate.Raw, &rate.AsOf, &rate.CreatedAt, &next,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("No exchange rate found for %s to %s", base, quote)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get exchange rate")
	}

	rate.Value, err = decimal.NewFromString(rate.Raw)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid stored rate %q", rate.Raw)
	}
	rate.AsOf = rate.AsOf.UTC()
	if next.Valid {
		until := next.Time.UTC()
		rate.ValidUntil = &until
	}
	return rate, nil
}

// CreateRate implements Store
func (s *PostgresStore) CreateRate(ctx context.Context, req *CreateRateRequest) (*Rate, error) {
	rate := &Rate{
		ID:            uuid.New().String(),
		BaseCurrency:  req.BaseCurrency,
		QuoteCurrency: req.QuoteCurrency,
		Value:         req.Rate,
		AsOf:          req.AsOf.UTC(),
	}

	query := `
		INSERT INTO fx_rates (id, base_currency, quote_currency, rate, as_of)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING rate, created_at
	`
	err := s.db.QueryRowContext(ctx, query, rate.ID, rate.BaseCurrency, rate.QuoteCurrency,
		rate.Value.String(), rate.AsOf).Scan(&rate.Raw, &rate.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create exchange rate")
	}
	return rate, nil
}
