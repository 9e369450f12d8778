package watch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"classwatch/internal/booking"
	"classwatch/internal/transport"
	"classwatch/pkg/logx"
)

// Querier is the booking source contract the reconciler needs.
type Querier interface {
	Query(ctx context.Context, loc booking.Location, isoDate string) ([]booking.ClassSession, error)
}

// Notifier delivers a message to one chat. Sends are queued; a
// delivery failure is the notifier's problem, not the reconciler's.
type Notifier interface {
	Send(to transport.ChatTarget, text string, opt *transport.SendOptions) error
}

const DefaultInterval = time.Minute

// Reconciler is the periodic engine: every tick it re-queries the
// booking source for each non-stale watched class, diffs the result
// against stored state, updates the store and notifies owners.
//
// Ticks never overlap; a tick that is still running when the next one
// fires causes the new tick to be skipped (and logged).
type Reconciler struct {
	store  *Store
	client Querier
	notify Notifier
	log    logx.Logger

	mu       sync.Mutex
	interval time.Duration
	cron     *cron.Cron
	entryID  cron.EntryID
	runCtx   context.Context

	running atomic.Bool
}

func NewReconciler(store *Store, client Querier, notify Notifier, interval time.Duration, log logx.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		store:    store,
		client:   client,
		notify:   notify,
		log:      log,
		interval: interval,
	}
}

// Start schedules the periodic tick. The first tick fires one interval
// after start, not immediately.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}
	c := cron.New(cron.WithLocation(booking.Timezone()))
	id, err := c.AddFunc(fmt.Sprintf("@every %s", r.interval), func() { r.Tick(ctx) })
	if err != nil {
		return err
	}
	r.cron = c
	r.entryID = id
	r.runCtx = ctx
	c.Start()
	r.log.Info("reconciler started", logx.Duration("interval", r.interval))
	return nil
}

// Apply updates the tick interval at runtime (config hot reload).
func (r *Reconciler) Apply(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if interval == r.interval {
		return
	}
	old := r.interval
	r.interval = interval
	if r.cron == nil {
		return
	}
	r.cron.Remove(r.entryID)
	ctx := r.runCtx
	id, err := r.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() { r.Tick(ctx) })
	if err != nil {
		r.log.Error("failed rescheduling reconciler tick", logx.Err(err), logx.Duration("interval", interval))
		return
	}
	r.entryID = id
	r.log.Info("reconciler interval updated", logx.Duration("old", old), logx.Duration("new", interval))
}

// Stop halts the tick schedule and waits for a running tick, bounded
// by ctx.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return nil
	}
	done := c.Stop()
	select {
	case <-done.Done():
		r.log.Info("reconciler stopped")
		return nil
	case <-ctx.Done():
		r.log.Warn("reconciler stop cancelled with tick still running")
		return ctx.Err()
	}
}

type tickResult struct {
	id       int64
	entry    Entry
	sessions []booking.ClassSession
	err      error
}

// Tick runs one reconciliation pass. Exported so tests (and a future
// manual trigger) can drive passes without the cron schedule.
func (r *Reconciler) Tick(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Warn("previous reconciliation still running; skipping tick")
		return
	}
	defer r.running.Store(false)

	start := time.Now()
	ids := r.store.Snapshot()
	if len(ids) == 0 {
		return
	}

	// Dispatch all queries for this tick concurrently, keyed by entry
	// ID. A slow or failed response for one entry never blocks the
	// others. Entries cancelled while a query is in flight are simply
	// skipped at apply time.
	results := make([]tickResult, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		entry, ok := r.store.Get(id)
		if !ok {
			results[i] = tickResult{id: id}
			continue
		}
		results[i] = tickResult{id: id, entry: entry}
		wg.Add(1)
		go func(i int, e Entry) {
			defer wg.Done()
			sessions, err := r.client.Query(ctx, e.Location, e.Date)
			results[i].sessions = sessions
			results[i].err = err
		}(i, entry)
	}
	wg.Wait()

	for _, res := range results {
		r.apply(res)
	}

	purged := r.store.PurgeStale()
	r.log.Debug("reconciliation pass completed",
		logx.Int("checked", len(ids)),
		logx.Int("purged", purged),
		logx.Duration("dur", time.Since(start)),
	)
}

// apply folds one query result back into the store and emits at most
// one notification for the entry.
func (r *Reconciler) apply(res tickResult) {
	// Re-read: the entry may have been cancelled while the query was
	// in flight.
	entry, ok := r.store.Get(res.id)
	if !ok {
		return
	}
	to := transport.ChatTarget{ChatID: entry.ChatID}
	md := &transport.SendOptions{ParseMode: "Markdown"}

	if res.err != nil {
		r.store.MarkStale(res.id)
		r.log.Warn("query failed for watched class",
			logx.Int64("booking_id", entry.Session.BookingID),
			logx.String("site", string(entry.Location)),
			logx.String("date", entry.Date),
			logx.Err(res.err),
		)
		text := fmt.Sprintf("An error occurred while checking this class:\n\n%s\n\n%s\nIt is no longer being watched.",
			entry.Summary(), booking.Describe(res.err))
		r.send(to, text, md)
		return
	}

	var fresh *booking.ClassSession
	for i := range res.sessions {
		if res.sessions[i].BookingID == entry.Session.BookingID {
			fresh = &res.sessions[i]
			break
		}
	}

	if fresh == nil {
		r.store.MarkStale(res.id)
		text := fmt.Sprintf("This class appears to have expired and is no longer being watched:\n\n%s", entry.Summary())
		r.send(to, text, md)
		return
	}

	if fresh.Spaces == entry.Session.Spaces {
		r.log.Debug("no change",
			logx.Int64("booking_id", entry.Session.BookingID),
			logx.Int("spaces", fresh.Spaces),
		)
		return
	}

	delta := fresh.Spaces - entry.Session.Spaces
	r.store.SetSpaces(res.id, fresh.Spaces)
	entry.Session.Spaces = fresh.Spaces
	text := fmt.Sprintf("Spaces changed (*%+d*)\n\n%s", delta, entry.Summary())
	r.send(to, text, md)
}

func (r *Reconciler) send(to transport.ChatTarget, text string, opt *transport.SendOptions) {
	if err := r.notify.Send(to, text, opt); err != nil {
		r.log.Warn("notification enqueue failed", logx.Int64("chat_id", to.ChatID), logx.Err(err))
	}
}
