// Package engine orchestrates the notification lifecycle: scoring, attention
// tracking, timing prediction, grouping, batching, delivery.
//
// All mutable state (notification list, groups, component internals) is
// serialized behind one mutex; timer callbacks re-validate entity status
// before acting, so a late timer for an entity that already moved on is a
// harmless no-op.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"notifyd/internal/engine/attention"
	"notifyd/internal/engine/batching"
	"notifyd/internal/engine/grouping"
	"notifyd/internal/engine/timing"
	"notifyd/internal/engine/urgency"
	"notifyd/internal/eventbus"
	"notifyd/internal/model"
	"notifyd/internal/sched"
	"notifyd/internal/sink"
	"notifyd/internal/storage"
	"notifyd/pkg/logx"
)

// ErrStopped is returned by mutating operations after Stop.
var ErrStopped = errors.New("engine stopped")

const (
	attentionTickInterval = time.Second
	sweepInterval         = time.Minute
	presentTimeout        = 30 * time.Second
)

// EventData is the payload attached to lifecycle events on the bus.
type EventData struct {
	NotificationID string `json:"notification_id,omitempty"`
	GroupID        string `json:"group_id,omitempty"`
	BatchID        string `json:"batch_id,omitempty"`
	Count          int    `json:"count,omitempty"`
}

// Engine is an explicit session object: configuration and collaborators are
// constructor-injected, there is no shared global instance.
type Engine struct {
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store
	snk   sink.Sink

	timers *sched.Service

	scorer    *urgency.Scorer
	tracker   *attention.Tracker
	predictor *timing.Predictor
	grouper   *grouping.Grouper
	batcher   *batching.Batcher

	mu      sync.Mutex
	cfg     Config
	notifs  []*model.Notification
	index   map[string]*model.Notification
	groups  map[string]*model.Group
	started bool
	stopped bool

	now   func() time.Time
	newID func() string
}

// New builds an engine. bus may be nil (a private bus is created); store and
// snk may be nil (persistence and presentation disabled).
func New(cfg Config, log logx.Logger, bus eventbus.Bus, store storage.Store, snk sink.Sink) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.New()
	}
	return &Engine{
		log:   log,
		bus:   bus,
		store: store,
		snk:   snk,

		timers: sched.New(log.With(logx.String("svc", "sched"))),

		scorer:    urgency.New(),
		tracker:   attention.New(cfg.IdleThreshold),
		predictor: timing.New(),
		grouper:   grouping.New(),
		batcher:   batching.New(cfg.BatchInterval, cfg.MaxBatchSize),

		cfg:    cfg,
		index:  map[string]*model.Notification{},
		groups: map[string]*model.Group{},

		now:   time.Now,
		newID: uuid.NewString,
	}
}

// SetClock injects a clock into the engine and every sub-component. Test
// hook; not safe after Start.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.scorer.SetClock(now)
	e.tracker.SetClock(now)
	e.predictor.SetClock(now)
	e.grouper.SetClock(now)
	e.batcher.SetClock(now)
}

// Start loads persisted state (tolerating malformed snapshots), re-arms
// timers for restored scheduled/batched notifications, and begins the
// attention tick and expiration sweep. Idempotent.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.loadLocked(ctx)
	e.rearmLocked()
	restored := len(e.notifs)
	e.mu.Unlock()

	_ = e.timers.AddInterval("attention-tick", attentionTickInterval, func(ctx context.Context) {
		e.tracker.Tick()
	})
	_ = e.timers.AddInterval("sweep", sweepInterval, func(ctx context.Context) {
		e.Sweep()
	})
	e.timers.Start(ctx)

	e.log.Info("engine started", logx.Int("restored", restored))
	return nil
}

// Stop persists final state and cancels all timers and periodic jobs. Timers
// are cancelled even when the engine was never Started; Notify arms them
// regardless.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	e.started = false
	e.stopped = true
	e.persistLocked()
	e.mu.Unlock()

	e.timers.Stop(ctx)
	e.log.Info("engine stopped")
}

// Apply swaps the runtime configuration. Feature flags take effect for
// subsequent notifications; group assignment is never revisited
// retroactively.
func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()

	e.tracker.SetIdleThreshold(cfg.IdleThreshold)
	e.batcher.Apply(cfg.BatchInterval, cfg.MaxBatchSize)
	e.log.Info("engine config applied",
		logx.Bool("ai", cfg.AIScoring),
		logx.Bool("grouping", cfg.Grouping),
		logx.Bool("batching", cfg.Batching),
		logx.Bool("attention", cfg.Attention),
		logx.Bool("optimal_timing", cfg.OptimalTiming),
	)
}

// OnActivity feeds one user-activity signal to the attention tracker. The
// signal source (UI runtime, test harness, synthetic load) is external.
func (e *Engine) OnActivity(sig attention.Signal) {
	e.tracker.OnSignal(sig)
}

// SetDoNotDisturb toggles DND. A zero until means indefinite.
func (e *Engine) SetDoNotDisturb(on bool, until time.Time) {
	e.tracker.SetDoNotDisturb(on, until)
}

// Attention returns the current attention snapshot.
func (e *Engine) Attention() attention.Snapshot {
	return e.tracker.Snapshot()
}

// Train feeds an observed urgency outcome for a known notification back into
// the scorer. Returns false for unknown ids.
func (e *Engine) Train(id string, actualUrgency float64) bool {
	e.mu.Lock()
	n, ok := e.index[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	snap := n.Clone()
	e.mu.Unlock()

	e.scorer.Train(snap, actualUrgency)
	return true
}

func (e *Engine) emit(typ string, data EventData) {
	e.bus.Publish(eventbus.Event{Type: typ, Time: e.now(), Data: data})
}

// present hands a delivered notification to the sink without holding the
// engine lock. Failures are logged, never propagated.
func (e *Engine) present(n model.Notification) {
	if e.snk == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), presentTimeout)
		defer cancel()
		if err := e.snk.Deliver(ctx, n); err != nil {
			e.log.Warn("presentation failed", logx.String("id", n.ID), logx.Err(err))
		}
	}()
}

func (e *Engine) snapshotLocked() storage.Snapshot {
	snap := storage.Snapshot{
		Schema:          storage.SchemaVersion,
		SavedAt:         e.now(),
		Timing:          e.predictor.Export(),
		LearnedKeywords: e.scorer.LearnedKeywords(),
	}
	for _, n := range e.notifs {
		snap.Notifications = append(snap.Notifications, n.Clone())
	}
	for _, g := range e.groups {
		snap.Groups = append(snap.Groups, g.Clone())
	}
	return snap
}

func (e *Engine) restoreLocked(snap storage.Snapshot) {
	e.notifs = nil
	e.index = map[string]*model.Notification{}
	e.groups = map[string]*model.Group{}
	e.batcher.FlushAll()

	for i := range snap.Notifications {
		n := snap.Notifications[i].Clone()
		e.notifs = append(e.notifs, &n)
		e.index[n.ID] = &n
	}
	for i := range snap.Groups {
		g := snap.Groups[i].Clone()
		e.groups[g.ID] = &g
	}
	e.predictor.Import(snap.Timing)
	e.scorer.SetLearnedKeywords(snap.LearnedKeywords)
}

func (e *Engine) loadLocked(ctx context.Context) {
	if !e.cfg.Persist || e.store == nil {
		return
	}
	snap, ok, err := e.store.LoadSnapshot(ctx)
	if err != nil {
		// Malformed persisted state is never fatal; start empty.
		e.log.Warn("state load failed; starting empty", logx.Err(err))
		return
	}
	if !ok {
		return
	}
	e.restoreLocked(snap)
}

// rearmLocked re-arms deferred work for restored state: delivery timers for
// scheduled notifications and fresh batches for batched ones.
func (e *Engine) rearmLocked() {
	for _, n := range e.notifs {
		switch n.Status {
		case model.StatusScheduled:
			if n.Scheduled != nil {
				e.armDeliveryTimer(n.ID, *n.Scheduled)
			}
		case model.StatusBatched:
			res := e.batcher.Add(n.Clone())
			if res.Full {
				e.deliverBatchLocked(res.Batch)
			} else if res.Created {
				e.armBatchTimer(res.Batch)
			}
		}
	}
}

func (e *Engine) persistLocked() {
	if !e.cfg.Persist || e.store == nil {
		return
	}
	if err := e.store.SaveSnapshot(context.Background(), e.snapshotLocked()); err != nil {
		e.log.Warn("state persist failed", logx.Err(err))
	}
}

func deliverTimer(id string) string { return "deliver:" + id }
func batchTimer(id string) string   { return "batch:" + id }
