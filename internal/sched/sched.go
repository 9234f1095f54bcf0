// Package sched runs the engine's deferred work: one-shot deadline timers
// (scheduled deliveries, batch flushes) and periodic jobs (attention tick,
// expiration sweep). Callbacks re-validate entity state themselves; a timer
// firing late for an entity that already moved on must be a harmless no-op.
package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"notifyd/pkg/logx"
)

type intervalDef struct {
	name  string
	every time.Duration
	job   func(ctx context.Context)
}

// Service owns a cron runner for periodic jobs and a named one-shot timer
// map. It is safe for concurrent use.
type Service struct {
	mu  sync.Mutex
	log logx.Logger

	c    *cron.Cron
	defs []intervalDef

	runCtx    context.Context
	runCancel context.CancelFunc

	// One-shot timers. Versions make cancellation race-free: a fired timer
	// whose version is stale does nothing.
	tmu    sync.Mutex
	timers map[string]*time.Timer
	vers   map[string]uint64
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log,
		timers: map[string]*time.Timer{},
		vers:   map[string]uint64{},
	}
}

// Start begins periodic jobs. Idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	s.c = cron.New(cron.WithSeconds())
	for _, d := range s.defs {
		s.addIntervalLocked(d)
	}
	s.c.Start()
	s.log.Debug("sched started", logx.Int("intervals", len(s.defs)))
}

// Stop cancels periodic jobs and all pending one-shot timers.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}

	s.tmu.Lock()
	for id, t := range s.timers {
		_ = t.Stop()
		delete(s.timers, id)
		s.vers[id]++
	}
	s.tmu.Unlock()

	s.log.Debug("sched stopped")
}

// AddInterval registers a periodic job. Registration before Start is
// allowed; the job begins with Start.
func (s *Service) AddInterval(name string, every time.Duration, job func(ctx context.Context)) error {
	if every <= 0 {
		return errors.New("sched: interval must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d := intervalDef{name: name, every: every, job: job}
	s.defs = append(s.defs, d)
	if s.c != nil {
		s.addIntervalLocked(d)
	}
	return nil
}

func (s *Service) addIntervalLocked(d intervalDef) {
	ctx := s.runCtx
	s.c.Schedule(cron.Every(d.every), cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		d.job(ctx)
	}))
}

// OnceAt arms (or re-arms) the named one-shot timer to fire fn at the given
// time. Re-arming replaces the previous deadline.
func (s *Service) OnceAt(id string, at time.Time, fn func()) {
	s.tmu.Lock()
	defer s.tmu.Unlock()

	if prev, ok := s.timers[id]; ok {
		_ = prev.Stop()
	}
	s.vers[id]++
	ver := s.vers[id]

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		s.tmu.Lock()
		stale := s.vers[id] != ver
		if !stale {
			delete(s.timers, id)
		}
		s.tmu.Unlock()
		if stale {
			return
		}
		fn()
	})
}

// Cancel stops the named one-shot timer if still pending.
func (s *Service) Cancel(id string) {
	s.tmu.Lock()
	defer s.tmu.Unlock()

	if t, ok := s.timers[id]; ok {
		_ = t.Stop()
		delete(s.timers, id)
	}
	s.vers[id]++
}

// PendingTimers returns the number of armed one-shot timers.
func (s *Service) PendingTimers() int {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	return len(s.timers)
}
