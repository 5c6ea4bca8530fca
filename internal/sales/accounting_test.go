package sales

import (
	"testing"
	"time"
)

func TestSummary_AverageSale(t *testing.T) {
	if got := (Summary{}).AverageSale(); got != 0 {
		t.Errorf("empty summary average = %d", got)
	}
	if got := (Summary{Revenue: 1000, SaleCount: 4}).AverageSale(); got != 250 {
		t.Errorf("average = %d, want 250", got)
	}
}

func TestMonthStart(t *testing.T) {
	in := time.Date(2026, 3, 17, 15, 4, 5, 0, time.FixedZone("x", 3*3600))
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := MonthStart(in); !got.Equal(want) {
		t.Errorf("MonthStart() = %v, want %v", got, want)
	}
}

func TestFillMonths(t *testing.T) {
	from := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	rows := []MonthRevenue{
		{Month: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), Revenue: 500, Sales: 2},
	}

	got := fillMonths(rows, from, to)
	if len(got) != 3 {
		t.Fatalf("expected 3 months, got %d: %+v", len(got), got)
	}
	wantRevenue := []int64{0, 500, 0}
	for i, m := range got {
		if m.Revenue != wantRevenue[i] {
			t.Errorf("month %d revenue = %d, want %d", i, m.Revenue, wantRevenue[i])
		}
		if m.Month.Day() != 1 {
			t.Errorf("month %d not truncated: %v", i, m.Month)
		}
	}
}

func TestFillMonths_EmptyRange(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := fillMonths(nil, at, at); len(got) != 0 {
		t.Errorf("expected no months, got %v", got)
	}
}
