package watch

import (
	"testing"

	"classwatch/internal/booking"
)

func session(id int64, spaces int) booking.ClassSession {
	return booking.ClassSession{BookingID: id, Time: "07:30 AM", Name: "Yoga", Spaces: spaces}
}

func TestStoreAddAndListByUser(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Add(1, "2026-08-28", booking.LocRafflesPlace, session(42, 5))
	s.Add(2, "2026-08-28", booking.LocRafflesPlace, session(42, 5))
	s.Add(1, "2026-08-29", booking.LocMarinaOne, session(43, 2))

	got := s.ListByUser(1)
	if len(got) != 2 {
		t.Fatalf("ListByUser(1) = %d entries, want 2", len(got))
	}
	for _, e := range got {
		if e.ChatID != 1 {
			t.Fatalf("ListByUser(1) returned entry for chat %d", e.ChatID)
		}
	}
	if got[0].Session.BookingID != 42 || got[1].Session.BookingID != 43 {
		t.Fatal("ListByUser should preserve insertion order")
	}
	if len(s.ListByUser(99)) != 0 {
		t.Fatal("unknown user should have no entries")
	}
}

func TestStoreRemoveByUserAndBookingIsSelective(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Add(1, "2026-08-28", booking.LocRafflesPlace, session(42, 5)) // userA, 42
	s.Add(2, "2026-08-28", booking.LocRafflesPlace, session(42, 5)) // userB, 42
	s.Add(1, "2026-08-29", booking.LocMarinaOne, session(43, 2))    // userA, 43

	if removed := s.RemoveByUserAndBooking(1, 42); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if n := len(s.ListByUser(2)); n != 1 {
		t.Fatalf("userB should be untouched, has %d entries", n)
	}
	left := s.ListByUser(1)
	if len(left) != 1 || left[0].Session.BookingID != 43 {
		t.Fatalf("userA should keep only booking 43, got %+v", left)
	}
}

func TestStoreRemoveAllDuplicates(t *testing.T) {
	t.Parallel()
	s := NewStore()
	// No dedup on Add: the same watch twice is legal.
	s.Add(1, "2026-08-28", booking.LocRafflesPlace, session(42, 5))
	s.Add(1, "2026-08-28", booking.LocRafflesPlace, session(42, 5))

	if removed := s.RemoveByUserAndBooking(1, 42); removed != 2 {
		t.Fatalf("removed = %d, want both duplicates", removed)
	}
	if s.Len() != 0 {
		t.Fatalf("store should be empty, has %d", s.Len())
	}
}

func TestStoreStaleLifecycle(t *testing.T) {
	t.Parallel()
	s := NewStore()
	a := s.Add(1, "2026-08-28", booking.LocRafflesPlace, session(42, 5))
	b := s.Add(1, "2026-08-29", booking.LocMarinaOne, session(43, 2))

	if !s.MarkStale(a.ID) {
		t.Fatal("MarkStale should find the entry")
	}
	// Stale entries drop out of the snapshot immediately.
	ids := s.Snapshot()
	if len(ids) != 1 || ids[0] != b.ID {
		t.Fatalf("Snapshot = %v, want only %d", ids, b.ID)
	}
	// ...but are still present until the purge.
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2 before purge", s.Len())
	}
	if purged := s.PurgeStale(); purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
	if _, ok := s.Get(a.ID); ok {
		t.Fatal("purged entry should be gone")
	}
	if _, ok := s.Get(b.ID); !ok {
		t.Fatal("non-stale entry should survive the purge")
	}
}

func TestStoreSetSpaces(t *testing.T) {
	t.Parallel()
	s := NewStore()
	e := s.Add(1, "2026-08-28", booking.LocRafflesPlace, session(42, 5))
	if !s.SetSpaces(e.ID, 3) {
		t.Fatal("SetSpaces should find the entry")
	}
	got, _ := s.Get(e.ID)
	if got.Session.Spaces != 3 {
		t.Fatalf("Spaces = %d, want 3", got.Session.Spaces)
	}
	if s.SetSpaces(999, 1) {
		t.Fatal("SetSpaces on unknown id should report false")
	}
}

func TestStoreUsersDistinct(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Add(7, "2026-08-28", booking.LocRafflesPlace, session(42, 5))
	s.Add(9, "2026-08-28", booking.LocRafflesPlace, session(42, 5))
	s.Add(7, "2026-08-29", booking.LocMarinaOne, session(43, 2))

	users := s.Users()
	if len(users) != 2 || users[0] != 7 || users[1] != 9 {
		t.Fatalf("Users = %v, want [7 9]", users)
	}
}
