package plan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPlanNotFound is returned when no plan has the requested code.
var ErrPlanNotFound = errors.New("plan not found")

// Store provides database operations for plans, subscriptions and trial
// overrides.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// FeatureKeysSQL selects the feature keys of the plan aliased p as a sorted
// text array.
const FeatureKeysSQL = `COALESCE((SELECT array_agg(pf.feature_key ORDER BY pf.feature_key)
	FROM plan_features pf WHERE pf.plan_id = p.id), '{}')`

// Entitlement loads the tenant's most recent live subscription and its most
// recent unexpired trial override. A tenant with neither still yields an
// Entitlement, with nil fields.
func (s *Store) Entitlement(ctx context.Context, tenantID string) (*Entitlement, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, ErrTenantNotFound
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, tenantID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking tenant: %w", err)
	}
	if !exists {
		return nil, ErrTenantNotFound
	}

	now := s.now()
	subs, err := s.tenantSubscriptions(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.tenantOverrides(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	ent := &Entitlement{
		TenantID:     tenantID,
		Subscription: LatestLive(subs, now),
		Override:     LatestActive(overrides, now),
	}
	return ent, nil
}

// tenantSubscriptions returns every active or trialing subscription of the
// tenant. Trial expiry is applied by LatestLive, since no job rewrites the
// status of an ended trial.
func (s *Store) tenantSubscriptions(ctx context.Context, tenantID string) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.id, s.tenant_id, s.plan_id, s.status, s.trial_ends_at, s.current_period_end, s.created_at,
		        p.id, p.code, p.name, `+FeatureKeysSQL+`
		 FROM subscriptions s JOIN plans p ON p.id = s.plan_id
		 WHERE s.tenant_id = $1 AND s.status IN ('active', 'trialing')
		 ORDER BY s.created_at DESC, s.id DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("getting subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription row: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// tenantOverrides returns the tenant's trial overrides that are still
// running at now.
func (s *Store) tenantOverrides(ctx context.Context, tenantID string, now time.Time) ([]TrialOverride, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT o.id, o.tenant_id, o.plan_id, o.reason, o.expires_at, o.created_at,
		        p.id, p.code, p.name, `+FeatureKeysSQL+`
		 FROM trial_overrides o JOIN plans p ON p.id = o.plan_id
		 WHERE o.tenant_id = $1 AND o.expires_at > $2
		 ORDER BY o.created_at DESC, o.id DESC`, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("getting trial overrides: %w", err)
	}
	defer rows.Close()

	var overrides []TrialOverride
	for rows.Next() {
		ov, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trial override row: %w", err)
		}
		overrides = append(overrides, *ov)
	}
	return overrides, rows.Err()
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	sub := &Subscription{Plan: &Plan{}}
	err := row.Scan(
		&sub.ID, &sub.TenantID, &sub.PlanID, &sub.Status,
		&sub.TrialEndsAt, &sub.CurrentPeriodEnd, &sub.CreatedAt,
		&sub.Plan.ID, &sub.Plan.Code, &sub.Plan.Name, &sub.Plan.Features,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func scanOverride(row pgx.Row) (*TrialOverride, error) {
	ov := &TrialOverride{Plan: &Plan{}}
	err := row.Scan(
		&ov.ID, &ov.TenantID, &ov.PlanID, &ov.Reason, &ov.ExpiresAt, &ov.CreatedAt,
		&ov.Plan.ID, &ov.Plan.Code, &ov.Plan.Name, &ov.Plan.Features,
	)
	if err != nil {
		return nil, err
	}
	return ov, nil
}

// UpsertPlan creates or replaces a plan by code, including its feature set.
func (s *Store) UpsertPlan(ctx context.Context, code, name string, features []string) (*Plan, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	p := &Plan{Code: code, Name: name}
	err = tx.QueryRow(ctx,
		`INSERT INTO plans (code, name) VALUES ($1, $2)
		 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`, code, name,
	).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("upserting plan: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM plan_features WHERE plan_id = $1`, p.ID); err != nil {
		return nil, fmt.Errorf("clearing plan features: %w", err)
	}
	for _, f := range features {
		if !KnownFeature(f) {
			return nil, fmt.Errorf("unknown feature %q", f)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO plan_features (plan_id, feature_key) VALUES ($1, $2)`, p.ID, f,
		); err != nil {
			return nil, fmt.Errorf("inserting plan feature: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing plan: %w", err)
	}
	p.Features = append([]string(nil), features...)
	return p, nil
}

// GetByCode retrieves a plan by its tier code.
func (s *Store) GetByCode(ctx context.Context, code string) (*Plan, error) {
	p := &Plan{}
	err := s.pool.QueryRow(ctx,
		`SELECT p.id, p.code, p.name, `+FeatureKeysSQL+` FROM plans p WHERE p.code = $1`, code,
	).Scan(&p.ID, &p.Code, &p.Name, &p.Features)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting plan by code: %w", err)
	}
	return p, nil
}

// CreateSubscription inserts a subscription row.
func (s *Store) CreateSubscription(ctx context.Context, tenantID, planID, status string, trialEndsAt *time.Time) (*Subscription, error) {
	sub := &Subscription{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO subscriptions (tenant_id, plan_id, status, trial_ends_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, tenant_id, plan_id, status, trial_ends_at, current_period_end, created_at`,
		tenantID, planID, status, trialEndsAt,
	).Scan(&sub.ID, &sub.TenantID, &sub.PlanID, &sub.Status, &sub.TrialEndsAt, &sub.CurrentPeriodEnd, &sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating subscription: %w", err)
	}
	return sub, nil
}

// CreateTrialOverride grants planID's features to tenantID until expiresAt.
func (s *Store) CreateTrialOverride(ctx context.Context, tenantID, planID, reason string, expiresAt time.Time) (*TrialOverride, error) {
	ov := &TrialOverride{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO trial_overrides (tenant_id, plan_id, reason, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, tenant_id, plan_id, reason, expires_at, created_at`,
		tenantID, planID, reason, expiresAt,
	).Scan(&ov.ID, &ov.TenantID, &ov.PlanID, &ov.Reason, &ov.ExpiresAt, &ov.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating trial override: %w", err)
	}
	return ov, nil
}
