package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"classwatch/internal/booking"
	"classwatch/internal/transport"
	"classwatch/pkg/logx"
)

type fakeQuerier struct {
	mu sync.Mutex
	// keyed by "<loc>/<date>"
	sessions map[string][]booking.ClassSession
	errs     map[string]error
	calls    int
}

func (f *fakeQuerier) Query(ctx context.Context, loc booking.Location, date string) ([]booking.ClassSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	key := string(loc) + "/" + date
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.sessions[key], nil
}

type sentMsg struct {
	to   transport.ChatTarget
	text string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (f *fakeNotifier) Send(to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{to: to, text: text})
	return nil
}

func (f *fakeNotifier) messages() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...)
}

func newTestReconciler(q *fakeQuerier, n *fakeNotifier) (*Reconciler, *Store) {
	store := NewStore()
	r := NewReconciler(store, q, n, time.Minute, logx.Nop())
	return r, store
}

func TestTickUnchangedSpacesIsSilent(t *testing.T) {
	t.Parallel()
	q := &fakeQuerier{sessions: map[string][]booking.ClassSession{
		"SRP/2026-08-28": {{BookingID: 42, Time: "07:30 AM", Name: "Yoga", Spaces: 5}},
	}}
	n := &fakeNotifier{}
	r, store := newTestReconciler(q, n)
	e := store.Add(1, "2026-08-28", booking.LocRafflesPlace, booking.ClassSession{BookingID: 42, Time: "07:30 AM", Name: "Yoga", Spaces: 5})

	r.Tick(context.Background())

	if msgs := n.messages(); len(msgs) != 0 {
		t.Fatalf("no notification expected, got %d: %+v", len(msgs), msgs)
	}
	got, ok := store.Get(e.ID)
	if !ok || got.Session.Spaces != 5 {
		t.Fatalf("stored spaces should be unchanged, got %+v (ok=%v)", got, ok)
	}
}

func TestTickSpacesChangedNotifiesSignedDelta(t *testing.T) {
	t.Parallel()
	q := &fakeQuerier{sessions: map[string][]booking.ClassSession{
		"SRP/2026-08-28": {{BookingID: 42, Time: "07:30 AM", Name: "Yoga", Spaces: 3}},
	}}
	n := &fakeNotifier{}
	r, store := newTestReconciler(q, n)
	e := store.Add(1, "2026-08-28", booking.LocRafflesPlace, booking.ClassSession{BookingID: 42, Time: "07:30 AM", Name: "Yoga", Spaces: 5})

	r.Tick(context.Background())

	msgs := n.messages()
	if len(msgs) != 1 {
		t.Fatalf("want exactly one notification, got %d", len(msgs))
	}
	if msgs[0].to.ChatID != 1 {
		t.Fatalf("notified chat %d, want 1", msgs[0].to.ChatID)
	}
	if !strings.Contains(msgs[0].text, "-2") {
		t.Fatalf("notification should carry the signed delta -2, got %q", msgs[0].text)
	}
	got, _ := store.Get(e.ID)
	if got.Session.Spaces != 3 {
		t.Fatalf("stored spaces = %d, want 3", got.Session.Spaces)
	}

	// Positive deltas are signed too.
	q.mu.Lock()
	q.sessions["SRP/2026-08-28"][0].Spaces = 7
	q.mu.Unlock()
	r.Tick(context.Background())
	msgs = n.messages()
	if len(msgs) != 2 || !strings.Contains(msgs[1].text, "+4") {
		t.Fatalf("want second notification with +4, got %+v", msgs)
	}
}

func TestTickMissingBookingExpiresEntry(t *testing.T) {
	t.Parallel()
	// Remote answers successfully with an empty day.
	q := &fakeQuerier{sessions: map[string][]booking.ClassSession{
		"SMO/2026-08-29": {},
	}}
	n := &fakeNotifier{}
	r, store := newTestReconciler(q, n)
	store.Add(1, "2026-08-29", booking.LocMarinaOne, booking.ClassSession{BookingID: 43, Time: "09:00 AM", Name: "Spin", Spaces: 2})

	r.Tick(context.Background())

	msgs := n.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].text, "expired") {
		t.Fatalf("want one expired notification, got %+v", msgs)
	}
	if store.Len() != 0 {
		t.Fatalf("entry should be purged by end of tick, store has %d", store.Len())
	}
}

func TestTickQueryFailureMarksStaleAndNotifies(t *testing.T) {
	t.Parallel()
	q := &fakeQuerier{errs: map[string]error{
		"SPL/2026-08-29": &booking.StatusError{Code: 502},
	}}
	n := &fakeNotifier{}
	r, store := newTestReconciler(q, n)
	store.Add(5, "2026-08-29", booking.LocPayaLebar, booking.ClassSession{BookingID: 7, Time: "06:00 PM", Name: "Pump", Spaces: 1})

	r.Tick(context.Background())

	msgs := n.messages()
	if len(msgs) != 1 {
		t.Fatalf("want exactly one error notification, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].text, "HTTP 502") {
		t.Fatalf("notification should carry the failure classification, got %q", msgs[0].text)
	}
	if store.Len() != 0 {
		t.Fatalf("failed entry should be purged, store has %d", store.Len())
	}
}

func TestTickFailureIsolation(t *testing.T) {
	t.Parallel()
	// One entry errors, one changes, one is unchanged; one tick must
	// handle all three independently.
	q := &fakeQuerier{
		sessions: map[string][]booking.ClassSession{
			"SRP/2026-08-28": {{BookingID: 1, Time: "07:30 AM", Name: "Yoga", Spaces: 4}},
			"SMO/2026-08-28": {{BookingID: 2, Time: "08:00 AM", Name: "Spin", Spaces: 9}},
		},
		errs: map[string]error{
			"SPL/2026-08-28": booking.ErrUnreachable,
		},
	}
	n := &fakeNotifier{}
	r, store := newTestReconciler(q, n)
	changed := store.Add(1, "2026-08-28", booking.LocRafflesPlace, booking.ClassSession{BookingID: 1, Time: "07:30 AM", Name: "Yoga", Spaces: 5})
	same := store.Add(2, "2026-08-28", booking.LocMarinaOne, booking.ClassSession{BookingID: 2, Time: "08:00 AM", Name: "Spin", Spaces: 9})
	store.Add(3, "2026-08-28", booking.LocPayaLebar, booking.ClassSession{BookingID: 3, Time: "06:00 PM", Name: "Pump", Spaces: 2})

	r.Tick(context.Background())

	msgs := n.messages()
	if len(msgs) != 2 {
		t.Fatalf("want 2 notifications (change + error), got %d: %+v", len(msgs), msgs)
	}
	if got, _ := store.Get(changed.ID); got.Session.Spaces != 4 {
		t.Fatalf("changed entry spaces = %d, want 4", got.Session.Spaces)
	}
	if _, ok := store.Get(same.ID); !ok {
		t.Fatal("unchanged entry must survive")
	}
	if store.Len() != 2 {
		t.Fatalf("only the failed entry should be purged, store has %d", store.Len())
	}
}

func TestTickSkipsEntriesCancelledMidFlight(t *testing.T) {
	t.Parallel()
	q := &fakeQuerier{sessions: map[string][]booking.ClassSession{}}
	n := &fakeNotifier{}
	r, store := newTestReconciler(q, n)
	e := store.Add(1, "2026-08-28", booking.LocRafflesPlace, booking.ClassSession{BookingID: 42, Spaces: 5})

	// Simulate a cancel landing between snapshot and apply.
	store.RemoveByUserAndBooking(1, 42)
	r.apply(tickResult{id: e.ID, entry: e, err: errors.New("whatever")})

	if msgs := n.messages(); len(msgs) != 0 {
		t.Fatalf("cancelled entry must not be notified, got %+v", msgs)
	}
}

func TestReconcilerDefaultInterval(t *testing.T) {
	t.Parallel()
	r := NewReconciler(NewStore(), &fakeQuerier{}, &fakeNotifier{}, 0, logx.Nop())
	if r.interval != DefaultInterval {
		t.Fatalf("interval = %v, want %v", r.interval, DefaultInterval)
	}
}
