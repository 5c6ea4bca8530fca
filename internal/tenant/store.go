package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/saasboard/internal/plan"
)

// ErrNotFound is returned when a tenant id does not exist.
var ErrNotFound = errors.New("tenant not found")

// Store provides database operations for tenants.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new tenant store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a new tenant.
func (s *Store) Create(ctx context.Context, in CreateTenantInput) (*Tenant, error) {
	t := &Tenant{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, slug) VALUES ($1, $2)
		 RETURNING id, name, slug, created_at`,
		in.Name, in.Slug,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating tenant: %w", err)
	}
	return t, nil
}

// GetByID retrieves a tenant by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Tenant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	t := &Tenant{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, created_at FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting tenant by id: %w", err)
	}
	return t, nil
}

// GetBySlug retrieves a tenant by its unique slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	t := &Tenant{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, created_at FROM tenants WHERE slug = $1`, slug,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting tenant by slug: %w", err)
	}
	return t, nil
}

// TenantExists reports whether id names an existing tenant. It satisfies
// auth.TenantChecker.
func (s *Store) TenantExists(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking tenant: %w", err)
	}
	return exists, nil
}

// ListTenants returns every tenant with its record counts, ordered by
// created_at DESC.
func (s *Store) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.id, t.name, t.slug, t.created_at,
		        (SELECT COUNT(*) FROM users u WHERE u.tenant_id = t.id),
		        (SELECT COUNT(*) FROM products p WHERE p.tenant_id = t.id),
		        (SELECT COUNT(*) FROM sales s WHERE s.tenant_id = t.id)
		 FROM tenants t
		 ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt,
			&t.Counts.Users, &t.Counts.Products, &t.Counts.Sales); err != nil {
			return nil, fmt.Errorf("scanning tenant row: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// ListLiveSubscriptions returns all active or trialing subscriptions with
// their plans, newest first.
func (s *Store) ListLiveSubscriptions(ctx context.Context) ([]plan.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.id, s.tenant_id, s.plan_id, s.status, s.trial_ends_at, s.current_period_end, s.created_at,
		        p.id, p.code, p.name, `+plan.FeatureKeysSQL+`
		 FROM subscriptions s JOIN plans p ON p.id = s.plan_id
		 WHERE s.status IN ('active', 'trialing')
		 ORDER BY s.created_at DESC, s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []plan.Subscription
	for rows.Next() {
		sub := plan.Subscription{Plan: &plan.Plan{}}
		if err := rows.Scan(
			&sub.ID, &sub.TenantID, &sub.PlanID, &sub.Status,
			&sub.TrialEndsAt, &sub.CurrentPeriodEnd, &sub.CreatedAt,
			&sub.Plan.ID, &sub.Plan.Code, &sub.Plan.Name, &sub.Plan.Features,
		); err != nil {
			return nil, fmt.Errorf("scanning subscription row: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListTrialOverrides returns every trial override with its plan, newest first.
func (s *Store) ListTrialOverrides(ctx context.Context) ([]plan.TrialOverride, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT o.id, o.tenant_id, o.plan_id, o.reason, o.expires_at, o.created_at,
		        p.id, p.code, p.name, `+plan.FeatureKeysSQL+`
		 FROM trial_overrides o JOIN plans p ON p.id = o.plan_id
		 ORDER BY o.created_at DESC, o.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing trial overrides: %w", err)
	}
	defer rows.Close()

	var overrides []plan.TrialOverride
	for rows.Next() {
		ov := plan.TrialOverride{Plan: &plan.Plan{}}
		if err := rows.Scan(
			&ov.ID, &ov.TenantID, &ov.PlanID, &ov.Reason, &ov.ExpiresAt, &ov.CreatedAt,
			&ov.Plan.ID, &ov.Plan.Code, &ov.Plan.Name, &ov.Plan.Features,
		); err != nil {
			return nil, fmt.Errorf("scanning trial override row: %w", err)
		}
		overrides = append(overrides, ov)
	}
	return overrides, rows.Err()
}
