package watch

import (
	"fmt"
	"sync"

	"classwatch/internal/booking"
)

// Entry is one watched class: the last successfully observed session
// state plus the owning chat and the (location, date) it was found at.
//
// ID is a stable internal identifier assigned at insertion. The
// reconciler snapshots IDs at tick start and applies results back by
// ID, so concurrent adds and cancels never shift its view mid-pass.
type Entry struct {
	ID       int64
	ChatID   int64
	Date     string // YYYY-MM-DD
	Location booking.Location
	Session  booking.ClassSession
	Stale    bool
}

// Summary renders the multi-line class description shared by list
// replies and change notifications. Markdown parse mode is assumed.
func (e Entry) Summary() string {
	return fmt.Sprintf("Class: %s\nDate: %s\nLocation: %s\nSpaces Available: *%d*",
		e.Session.Label(), e.Date, e.Location.DisplayName(), e.Session.Spaces)
}

// Store is the in-memory registry of watched classes. Entries keep
// insertion order. Each operation is atomic with respect to a single
// logical step; no cross-entry atomicity is guaranteed across a whole
// reconciliation tick.
//
// Lifetime is the process lifetime: nothing is persisted.
type Store struct {
	mu      sync.Mutex
	nextID  int64
	entries []*Entry
}

func NewStore() *Store {
	return &Store{nextID: 1}
}

// Add appends a new watched class and returns it (with its assigned
// ID). No dedup is enforced: a user may watch the same class twice and
// will then receive duplicate notifications.
func (s *Store) Add(chatID int64, date string, loc booking.Location, sess booking.ClassSession) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Entry{
		ID:       s.nextID,
		ChatID:   chatID,
		Date:     date,
		Location: loc,
		Session:  sess,
	}
	s.nextID++
	s.entries = append(s.entries, e)
	return *e
}

// Get returns a copy of the entry with the given ID.
func (s *Store) Get(id int64) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return *e, true
		}
	}
	return Entry{}, false
}

// Snapshot returns the IDs of all non-stale entries in insertion
// order. The reconciler works off this fixed set for one tick.
func (s *Store) Snapshot() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.Stale {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// ListByUser returns copies of the user's entries in insertion order.
func (s *Store) ListByUser(chatID int64) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.ChatID == chatID {
			out = append(out, *e)
		}
	}
	return out
}

// ListAll returns copies of every entry in insertion order.
func (s *Store) ListAll() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out
}

// Users returns the distinct owning chat IDs in first-seen order.
// Used for the best-effort shutdown broadcast.
func (s *Store) Users() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int64]struct{}, len(s.entries))
	var out []int64
	for _, e := range s.entries {
		if _, ok := seen[e.ChatID]; ok {
			continue
		}
		seen[e.ChatID] = struct{}{}
		out = append(out, e.ChatID)
	}
	return out
}

// SetSpaces records a freshly observed seat count.
func (s *Store) SetSpaces(id int64, spaces int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			e.Session.Spaces = spaces
			return true
		}
	}
	return false
}

// MarkStale flags an entry for removal by the end-of-tick purge. A
// stale entry is never queried again.
func (s *Store) MarkStale(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			e.Stale = true
			return true
		}
	}
	return false
}

// RemoveByUserAndBooking removes every entry matching (chatID,
// bookingID) and reports how many were removed. Matching all entries
// covers accidental duplicate watches without leaving orphans.
func (s *Store) RemoveByUserAndBooking(chatID, bookingID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.ChatID == chatID && e.Session.BookingID == bookingID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept
	return removed
}

// PurgeStale removes all stale entries in one pass. Called exactly
// once per reconciliation tick, after all per-entry updates.
func (s *Store) PurgeStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.Stale {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept
	return removed
}

// Len reports the number of entries, stale included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
