package activity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvalidCursor is returned by List for a malformed page cursor.
var ErrInvalidCursor = errors.New("invalid cursor")

// Store provides database operations for the activity log.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// insertColumns is the number of bind parameters each event takes.
const insertColumns = 6

// MaxBatchSize is the most events one INSERT can carry. Postgres allows at
// most 65535 bind parameters per statement.
const MaxBatchSize = 65535 / insertColumns

// BatchInsert writes a slice of events in a single multi-row INSERT
// statement. It is a no-op when events is empty.
func (s *Store) BatchInsert(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	if len(events) > MaxBatchSize {
		return fmt.Errorf("batch inserting activity: %d events exceeds %d", len(events), MaxBatchSize)
	}

	const cols = insertColumns
	args := make([]any, 0, len(events)*cols)
	rows := make([]string, 0, len(events))

	for i, e := range events {
		base := i * cols
		rows = append(rows, fmt.Sprintf(
			"($%d, $%d, NULLIF($%d, '')::uuid, NULLIF($%d, '')::uuid, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", e.Event, err)
		}
		args = append(args, e.ID, e.Event, uuidOrEmpty(e.TenantID), uuidOrEmpty(e.UserID), meta, e.CreatedAt)
	}

	query := `INSERT INTO activity_log
		(id, event, tenant_id, user_id, metadata, created_at)
		VALUES ` + strings.Join(rows, ", ")

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("batch inserting activity: %w", err)
	}
	return nil
}

// List returns a page of events matching the query, ordered by created_at
// DESC, id DESC, plus the cursor for the next page (empty when done).
func (s *Store) List(ctx context.Context, q Query) ([]*Event, string, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	// Only uuids reach the tenant_id column, so anything else matches nothing.
	if q.TenantID != "" && uuidOrEmpty(q.TenantID) == "" {
		return nil, "", nil
	}

	where, args := buildWhereClause(q)

	// The cursor encodes "created_at|id".
	if q.Cursor != "" {
		ts, id, err := decodeCursor(q.Cursor)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		n := len(args)
		if where == "" {
			where = " WHERE"
		} else {
			where += " AND"
		}
		where += fmt.Sprintf(" (created_at, id) < ($%d, $%d)", n+1, n+2)
		args = append(args, ts, id)
	}

	query := `SELECT id, event, COALESCE(tenant_id::text, ''), COALESCE(user_id::text, ''), metadata, created_at
	FROM activity_log` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("listing activity: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var meta []byte
		if err := rows.Scan(&e.ID, &e.Event, &e.TenantID, &e.UserID, &meta, &e.CreatedAt); err != nil {
			return nil, "", fmt.Errorf("scanning activity row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, "", fmt.Errorf("decoding activity metadata: %w", err)
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterating activity rows: %w", err)
	}

	var next string
	if len(events) > limit {
		last := events[limit-1]
		next = encodeCursor(last.CreatedAt, last.ID)
		events = events[:limit]
	}
	return events, next, nil
}

// uuidOrEmpty keeps non-uuid identifiers (such as "platform") out of the
// uuid columns; they remain visible in metadata.
func uuidOrEmpty(s string) string {
	if _, err := uuid.Parse(s); err != nil {
		return ""
	}
	return s
}

// buildWhereClause constructs a WHERE clause and positional arguments from a
// Query. The returned string starts with " WHERE" or is empty.
func buildWhereClause(q Query) (string, []any) {
	var conditions []string
	var args []any

	if q.TenantID != "" {
		args = append(args, q.TenantID)
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if q.Event != "" {
		args = append(args, q.Event)
		conditions = append(conditions, fmt.Sprintf("event = $%d", len(args)))
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func encodeCursor(ts time.Time, id string) string {
	raw := ts.Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("decoding cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("malformed cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parsing cursor timestamp: %w", err)
	}
	return ts, parts[1], nil
}
