package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Product is a stock item owned by one tenant. Prices are in minor units.
type Product struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}

// LowStock reports whether the product is at or below threshold.
func (p Product) LowStock(threshold int) bool {
	return p.Quantity <= threshold
}

// CreateProductInput holds the fields required to add a product.
type CreateProductInput struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Validate checks the input before it reaches the database.
func (in CreateProductInput) Validate() error {
	var errs []error
	if strings.TrimSpace(in.SKU) == "" {
		errs = append(errs, errors.New("sku is required"))
	}
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if in.Quantity < 0 {
		errs = append(errs, errors.New("quantity must not be negative"))
	}
	if in.UnitPrice < 0 {
		errs = append(errs, errors.New("unit_price must not be negative"))
	}
	return errors.Join(errs...)
}

// Store provides tenant-scoped product queries. Every method takes the
// tenant id from the resolved request context, never from user input.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new product store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create adds a product to the tenant's catalogue.
func (s *Store) Create(ctx context.Context, tenantID string, in CreateProductInput) (*Product, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid product: %w", err)
	}
	p := &Product{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO products (tenant_id, sku, name, quantity, unit_price)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, tenant_id, sku, name, quantity, unit_price, created_at`,
		tenantID, in.SKU, in.Name, in.Quantity, in.UnitPrice,
	).Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Quantity, &p.UnitPrice, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	return p, nil
}

// List returns the tenant's products ordered by name.
func (s *Store) List(ctx context.Context, tenantID string) ([]Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, sku, name, quantity, unit_price, created_at
		 FROM products WHERE tenant_id = $1 ORDER BY name, id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Quantity, &p.UnitPrice, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Valuation sums quantity times unit price over the tenant's stock.
func (s *Store) Valuation(ctx context.Context, tenantID string) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity::bigint * unit_price), 0) FROM products WHERE tenant_id = $1`,
		tenantID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("computing stock valuation: %w", err)
	}
	return total, nil
}
