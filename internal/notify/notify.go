// Package notify delivers outbound chat messages through a bounded
// worker pool. Every enqueued send is an explicitly tracked task: a
// failing send is logged individually and never takes the rest of the
// queue down with it.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"classwatch/internal/transport"
	"classwatch/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

type Config struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

type job struct {
	to   transport.ChatTarget
	text string
	opt  *transport.SendOptions
}

type Service struct {
	cfg     Config
	adapter transport.Adapter
	log     logx.Logger

	mu        sync.Mutex
	accepting bool
	queue     chan job

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg Config, adapter transport.Adapter, log logx.Logger) *Service {
	return &Service{
		cfg:     cfg.withDefaults(),
		adapter: adapter,
		log:     log,
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return
	}
	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	s.runCtx, s.runCancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < s.cfg.Workers; i++ {
		s.workerWG.Add(1)
		go s.worker(s.queue)
	}
	s.log.Info("notifier started", logx.Int("workers", s.cfg.Workers), logx.Int("queue", s.cfg.QueueSize))
}

// Send enqueues a message for delivery. It never blocks: a full queue
// is reported to the caller instead of stalling a reconciliation pass.
// The enqueue happens under the mutex so Stop cannot close the queue
// between the accepting check and the channel send (a late Send from a
// still-running reconciliation pass must get ErrStopped, not a panic).
func (s *Service) Send(to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil || !s.accepting {
		return ErrStopped
	}
	select {
	case s.queue <- job{to: to, text: text, opt: opt}:
		return nil
	default:
		s.log.Warn("notification dropped (queue full)", logx.Int64("chat_id", to.ChatID))
		return ErrQueueFull
	}
}

func (s *Service) worker(queue <-chan job) {
	defer s.workerWG.Done()
	for j := range queue {
		s.execOne(j)
	}
}

func (s *Service) execOne(j job) {
	ctx, cancel := context.WithTimeout(s.runCtx, s.cfg.SendTimeout)
	defer cancel()
	if _, err := s.adapter.SendText(ctx, j.to, j.text, j.opt); err != nil {
		s.log.Warn("notification send failed", logx.Int64("chat_id", j.to.ChatID), logx.Err(err))
	}
}

// Stop drains the queue best-effort: no new sends are accepted, queued
// sends are attempted until ctx expires, then in-flight sends are cut.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.queue == nil {
		s.mu.Unlock()
		return nil
	}
	s.accepting = false
	q := s.queue
	s.queue = nil
	cancel := s.runCancel
	// Closed under the mutex: every Send holds it across its enqueue,
	// so no producer can be mid-send here.
	close(q)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("notifier stopped")
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		s.log.Warn("notifier stopped before queue drained")
		return ctx.Err()
	}
}
