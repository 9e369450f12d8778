package booking

import (
	"testing"
	"time"
)

func TestUpcomingDatesWindow(t *testing.T) {
	t.Parallel()
	// 23:30 UTC is already the next day in Singapore (UTC+8).
	now := time.Date(2026, 8, 28, 23, 30, 0, 0, time.UTC)

	dates := UpcomingDates(now)
	if len(dates) != DateWindowDays {
		t.Fatalf("got %d dates, want %d", len(dates), DateWindowDays)
	}
	if got := FormatISODate(dates[0]); got != "2026-08-29" {
		t.Fatalf("first date = %s, want 2026-08-29 (SGT today)", got)
	}
	if got := FormatISODate(dates[len(dates)-1]); got != "2026-09-06" {
		t.Fatalf("last date = %s, want 2026-09-06 (today+8)", got)
	}
	// A date ten days out must never be offered.
	for _, d := range dates {
		if FormatISODate(d) == "2026-09-07" {
			t.Fatal("date beyond the 9-day window was offered")
		}
	}
}

func TestValidISODate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want bool
	}{
		{"2026-08-28", true},
		{"2026-8-28", false}, // not zero-padded
		{"28-08-2026", false},
		{"2026-02-30", false},
		{"garbage", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidISODate(tt.in); got != tt.want {
			t.Errorf("ValidISODate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCompleteDate(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, Timezone())

	got, err := CompleteDate("08-28", now)
	if err != nil {
		t.Fatalf("CompleteDate error: %v", err)
	}
	if got != "2026-08-28" {
		t.Fatalf("CompleteDate = %s, want 2026-08-28", got)
	}

	if _, err := CompleteDate("13-45", now); err == nil {
		t.Fatal("expected error for impossible month-day")
	}
}

func TestLocations(t *testing.T) {
	t.Parallel()
	locs := Locations()
	if len(locs) != 6 {
		t.Fatalf("got %d locations, want 6", len(locs))
	}
	for _, l := range locs {
		if !l.Valid() {
			t.Errorf("location %q should be valid", l)
		}
		if l.DisplayName() == string(l) {
			t.Errorf("location %q is missing a display name", l)
		}
	}
	if Location("XXX").Valid() {
		t.Fatal("unknown code must not validate")
	}
	if got := LocHollandVillage.DisplayName(); got != "Holland Village" {
		t.Fatalf("DisplayName = %q", got)
	}
}
