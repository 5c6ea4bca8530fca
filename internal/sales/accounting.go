package sales

import (
	"context"
	"fmt"
	"time"
)

// Summary is the basic accounting view over a period.
type Summary struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Revenue   int64     `json:"revenue"`
	SaleCount int64     `json:"sale_count"`
	UnitsSold int64     `json:"units_sold"`
}

// AverageSale returns revenue per sale, or zero with no sales.
func (s Summary) AverageSale() int64 {
	if s.SaleCount == 0 {
		return 0
	}
	return s.Revenue / s.SaleCount
}

// MonthRevenue is one row of the advanced accounting breakdown.
type MonthRevenue struct {
	Month   time.Time `json:"month"`
	Revenue int64     `json:"revenue"`
	Sales   int64     `json:"sales"`
}

// ProductRevenue ranks products by revenue.
type ProductRevenue struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Revenue   int64  `json:"revenue"`
	Units     int64  `json:"units"`
}

// Summarize aggregates the tenant's sales in [from, to).
func (s *Store) Summarize(ctx context.Context, tenantID string, from, to time.Time) (*Summary, error) {
	sum := &Summary{From: from, To: to}
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total), 0), COUNT(*), COALESCE(SUM(quantity), 0)
		 FROM sales WHERE tenant_id = $1 AND sold_at >= $2 AND sold_at < $3`,
		tenantID, from, to,
	).Scan(&sum.Revenue, &sum.SaleCount, &sum.UnitsSold)
	if err != nil {
		return nil, fmt.Errorf("summarizing sales: %w", err)
	}
	return sum, nil
}

// MonthlyRevenue returns revenue per calendar month in [from, to), with
// empty months filled in.
func (s *Store) MonthlyRevenue(ctx context.Context, tenantID string, from, to time.Time) ([]MonthRevenue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date_trunc('month', sold_at) AS m, SUM(total), COUNT(*)
		 FROM sales WHERE tenant_id = $1 AND sold_at >= $2 AND sold_at < $3
		 GROUP BY m ORDER BY m`,
		tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying monthly revenue: %w", err)
	}
	defer rows.Close()

	var months []MonthRevenue
	for rows.Next() {
		var m MonthRevenue
		if err := rows.Scan(&m.Month, &m.Revenue, &m.Sales); err != nil {
			return nil, fmt.Errorf("scanning monthly revenue: %w", err)
		}
		months = append(months, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fillMonths(months, from, to), nil
}

// TopProducts returns the tenant's best sellers by revenue in [from, to).
func (s *Store) TopProducts(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]ProductRevenue, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.name, SUM(s.total) AS revenue, SUM(s.quantity)
		 FROM sales s JOIN products p ON p.id = s.product_id
		 WHERE s.tenant_id = $1 AND s.sold_at >= $2 AND s.sold_at < $3
		 GROUP BY p.id, p.name
		 ORDER BY revenue DESC, p.id
		 LIMIT $4`,
		tenantID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top products: %w", err)
	}
	defer rows.Close()

	var out []ProductRevenue
	for rows.Next() {
		var pr ProductRevenue
		if err := rows.Scan(&pr.ProductID, &pr.Name, &pr.Revenue, &pr.Units); err != nil {
			return nil, fmt.Errorf("scanning top product: %w", err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// MonthStart truncates t to the first instant of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// fillMonths returns one row per month from from's month up to (excluding)
// to, taking values from rows where present.
func fillMonths(rows []MonthRevenue, from, to time.Time) []MonthRevenue {
	byMonth := make(map[time.Time]MonthRevenue, len(rows))
	for _, r := range rows {
		byMonth[MonthStart(r.Month)] = r
	}

	var out []MonthRevenue
	for m := MonthStart(from); m.Before(to); m = m.AddDate(0, 1, 0) {
		if r, ok := byMonth[m]; ok {
			r.Month = m
			out = append(out, r)
			continue
		}
		out = append(out, MonthRevenue{Month: m})
	}
	return out
}
