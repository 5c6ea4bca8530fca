//go:build integration

package activity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alecgard/saasboard/internal/activity"
	"github.com/alecgard/saasboard/internal/pgtest"
)

func TestStoreBatchInsertAndList(t *testing.T) {
	pool := pgtest.Start(t)
	ctx := context.Background()
	store := activity.NewStore(pool)

	tenantID := uuid.NewString()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	events := []activity.Event{
		{ID: uuid.NewString(), Event: "auth.login", TenantID: tenantID, UserID: uuid.NewString(), CreatedAt: base},
		{ID: uuid.NewString(), Event: "gate.plan_denied", TenantID: tenantID, Metadata: map[string]any{"feature": "accounting"}, CreatedAt: base.Add(time.Minute)},
		{ID: uuid.NewString(), Event: "tenants.listed", TenantID: "platform", CreatedAt: base.Add(2 * time.Minute)},
	}
	if err := store.BatchInsert(ctx, events); err != nil {
		t.Fatalf("BatchInsert() error: %v", err)
	}

	page, next, err := store.List(ctx, activity.Query{Limit: 2})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(page) != 2 || next == "" {
		t.Fatalf("first page = %d events, next %q", len(page), next)
	}
	if page[0].Event != "tenants.listed" || page[0].TenantID != "" {
		t.Errorf("newest event = %+v, want tenants.listed with no tenant column", page[0])
	}

	rest, next, err := store.List(ctx, activity.Query{Limit: 2, Cursor: next})
	if err != nil {
		t.Fatalf("List(cursor) error: %v", err)
	}
	if len(rest) != 1 || next != "" || rest[0].Event != "auth.login" {
		t.Errorf("second page = %+v, next %q", rest, next)
	}

	denied, _, err := store.List(ctx, activity.Query{TenantID: tenantID, Event: "gate.plan_denied"})
	if err != nil {
		t.Fatal(err)
	}
	if len(denied) != 1 || denied[0].Metadata["feature"] != "accounting" {
		t.Errorf("filtered = %+v", denied)
	}

	if _, _, err := store.List(ctx, activity.Query{Cursor: "%%%"}); !errors.Is(err, activity.ErrInvalidCursor) {
		t.Errorf("bad cursor error = %v, want ErrInvalidCursor", err)
	}
}
