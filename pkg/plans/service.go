package plans

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/platinummonkey/subledger/pkg/errs"
	"github.com/platinummonkey/subledger/pkg/fx"
	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/platinummonkey/subledger/pkg/storage/postgres"
)

// Columns is the plan column list, also used by joins
const Columns = "id, name, price_cents, currency, interval, created_at, updated_at"

// Converter converts a price into another currency
type Converter interface {
	Convert(ctx context.Context, amount int64, from, to string) (*fx.Conversion, error)
}

// Service manages the plan catalog
type Service interface {
	Create(ctx context.Context, req *CreateRequest) (*Plan, error)
	Get(ctx context.Context, id string) (*Plan, error)
	List(ctx context.Context, page storage.PageRequest) (*storage.Page[*Plan], error)
	View(ctx context.Context, plan *Plan, currency string) (*View, error)
	ViewPage(ctx context.Context, page *storage.Page[*Plan], currency string) (*storage.Page[*View], error)
}

// PostgresService implements Service. Writes go to primary, catalog reads
// may be served by a replica.
type PostgresService struct {
	primary   storage.Querier
	replica   storage.Querier
	converter Converter
	logger    *observability.Logger
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(primary, replica storage.Querier, converter Converter, logger *observability.Logger) *PostgresService {
	if replica == nil {
		replica = primary
	}
	return &PostgresService{primary: primary, replica: replica, converter: converter, logger: logger}
}

// Create adds a plan. Names are trimmed and must be unique.
func (s *PostgresService) Create(ctx context.Context, req *CreateRequest) (*Plan, error) {
	plan := &Plan{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(req.Name),
		PriceCents: req.PriceCents,
		Currency:   req.Currency,
		Interval:   req.Interval,
	}
	if plan.Interval == "" {
		plan.Interval = IntervalMonthly
	}

	query := `
		INSERT INTO plans (id, name, price_cents, currency, interval)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := s.primary.QueryRowContext(ctx, query, plan.ID, plan.Name, plan.PriceCents, plan.Currency, plan.Interval).
		Scan(&plan.CreatedAt, &plan.UpdatedAt)
	switch {
	case postgres.IsUniqueViolation(err):
		return nil, errs.Conflictf("A plan with this name already exists")
	case postgres.IsCheckViolation(err):
		return nil, errs.Validationf("plan violates %s", postgres.Constraint(err))
	case err != nil:
		return nil, errors.Wrap(err, "failed to create plan")
	}

	s.logger.WithFields(map[string]interface{}{
		"plan_id": plan.ID,
		"name":    plan.Name,
	}).Info("plan created")
	return plan, nil
}

// Get retrieves a plan by id
func (s *PostgresService) Get(ctx context.Context, id string) (*Plan, error) {
	plan, err := ScanPlan(s.replica.QueryRowContext(ctx, "SELECT "+Columns+" FROM plans WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("Plan with id %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get plan")
	}
	return plan, nil
}

// List returns one page of plans, newest first
func (s *PostgresService) List(ctx context.Context, page storage.PageRequest) (*storage.Page[*Plan], error) {
	page = page.Normalize()

	var total int
	if err := s.replica.QueryRowContext(ctx, "SELECT COUNT(*) FROM plans").Scan(&total); err != nil {
		return nil, errors.Wrap(err, "failed to count plans")
	}

	rows, err := s.replica.QueryContext(ctx,
		"SELECT "+Columns+" FROM plans ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		page.PageSize, page.Offset())
	if err != nil {
		return nil, errors.Wrap(err, "failed to list plans")
	}
	defer rows.Close()

	items := []*Plan{}
	for rows.Next() {
		plan, err := ScanPlan(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan plan")
		}
		items = append(items, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate plans")
	}

	return &storage.Page[*Plan]{Items: items, Page: page.Page, PageSize: page.PageSize, Total: total}, nil
}

// View renders plan, converted into currency when it differs from the
// plan's own
func (s *PostgresService) View(ctx context.Context, plan *Plan, currency string) (*View, error) {
	conv, err := s.converter.Convert(ctx, plan.PriceCents, plan.Currency, currency)
	if err != nil {
		return nil, err
	}
	return &View{
		ID:         plan.ID,
		Name:       plan.Name,
		PriceCents: conv.Amount,
		Currency:   conv.Currency,
		Interval:   plan.Interval,
		CreatedAt:  plan.CreatedAt,
		UpdatedAt:  plan.UpdatedAt,
		FX:         conv.Metadata,
	}, nil
}

// ViewPage renders every plan on a page in currency
func (s *PostgresService) ViewPage(ctx context.Context, page *storage.Page[*Plan], currency string) (*storage.Page[*View], error) {
	views := make([]*View, 0, len(page.Items))
	for _, plan := range page.Items {
		v, err := s.View(ctx, plan, currency)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return &storage.Page[*View]{Items: views, Page: page.Page, PageSize: page.PageSize, Total: page.Total}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// ScanPlan reads the Columns list, followed by any extra destinations
func ScanPlan(row rowScanner, extra ...interface{}) (*Plan, error) {
	plan := &Plan{}
	if err := row.Scan(append(plan.Dest(), extra...)...); err != nil {
		return nil, err
	}
	return plan, nil
}

// Dest returns scan destinations matching Columns
func (p *Plan) Dest() []interface{} {
	return []interface{}{
		&p.ID, &p.Name, &p.PriceCents, &p.Currency, &p.Interval, &p.CreatedAt, &p.UpdatedAt,
	}
}

// QualifiedColumns returns Columns prefixed with a table alias
func QualifiedColumns(alias string) string {
	parts := strings.Split(Columns, ", ")
	for i, c := range parts {
		parts[i] = alias + "." + c
	}
	return strings.Join(parts, ", ")
}
