package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrProductNotFound is returned when the product is not in the tenant's catalogue.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when a sale exceeds the quantity on hand.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Sale is one recorded sale. Amounts are in minor units.
type Sale struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Total       int64     `json:"total"`
	SoldAt      time.Time `json:"sold_at"`
}

// Store provides tenant-scoped sales and accounting queries.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new sales store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record books a sale and decrements stock in one transaction.
func (s *Store) Record(ctx context.Context, tenantID, productID string, qty int) (*Sale, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("recording sale: quantity must be positive")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var (
		name      string
		onHand    int
		unitPrice int64
	)
	err = tx.QueryRow(ctx,
		`SELECT name, quantity, unit_price FROM products
		 WHERE id = $1 AND tenant_id = $2 FOR UPDATE`,
		productID, tenantID,
	).Scan(&name, &onHand, &unitPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking product: %w", err)
	}
	if onHand < qty {
		return nil, ErrInsufficientStock
	}

	if _, err := tx.Exec(ctx,
		`UPDATE products SET quantity = quantity - $1 WHERE id = $2`, qty, productID,
	); err != nil {
		return nil, fmt.Errorf("decrementing stock: %w", err)
	}

	sale := &Sale{ProductName: name}
	err = tx.QueryRow(ctx,
		`INSERT INTO sales (tenant_id, product_id, quantity, total)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, tenant_id, product_id, quantity, total, sold_at`,
		tenantID, productID, qty, int64(qty)*unitPrice,
	).Scan(&sale.ID, &sale.TenantID, &sale.ProductID, &sale.Quantity, &sale.Total, &sale.SoldAt)
	if err != nil {
		return nil, fmt.Errorf("inserting sale: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing sale: %w", err)
	}
	return sale, nil
}

// List returns the tenant's most recent sales, newest first.
func (s *Store) List(ctx context.Context, tenantID string, limit int) ([]Sale, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT s.id, s.tenant_id, s.product_id, p.name, s.quantity, s.total, s.sold_at
		 FROM sales s JOIN products p ON p.id = s.product_id
		 WHERE s.tenant_id = $1
		 ORDER BY s.sold_at DESC, s.id DESC
		 LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		var sl Sale
		if err := rows.Scan(&sl.ID, &sl.TenantID, &sl.ProductID, &sl.ProductName, &sl.Quantity, &sl.Total, &sl.SoldAt); err != nil {
			return nil, fmt.Errorf("scanning sale row: %w", err)
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}
