// Package batching accumulates low-priority notifications into per-key
// digests delivered together, either when a deadline passes or when a batch
// fills up. The batcher owns membership only; delivery timers and status
// transitions belong to the orchestrator.
package batching

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"notifyd/internal/model"
)

// Key identifies one accumulating batch.
type Key struct {
	Category model.Category
	Priority model.Priority
}

// Batch is a transient holding area for deferred notifications.
type Batch struct {
	ID          string
	Key         Key
	MemberIDs   []string
	ScheduledAt time.Time
	Priority    Priority
	Reason      string
	CreatedAt   time.Time
}

// Priority aliases the model type; the batch aggregate priority rises to the
// highest member priority.
type Priority = model.Priority

// AddResult describes what happened on Add.
type AddResult struct {
	Batch Batch
	// Created is true when this Add opened a new batch; the caller must arm
	// a timer for Batch.ScheduledAt.
	Created bool
	// Full is true when the batch hit its size bound; it has been removed
	// and the caller must deliver it now (and cancel the timer).
	Full bool
}

// Batcher is safe for concurrent use.
type Batcher struct {
	mu  sync.Mutex
	now func() time.Time

	interval time.Duration
	maxSize  int

	batches map[Key]*Batch
}

func New(interval time.Duration, maxSize int) *Batcher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 10
	}
	return &Batcher{
		now:      time.Now,
		interval: interval,
		maxSize:  maxSize,
		batches:  map[Key]*Batch{},
	}
}

// SetClock overrides the time source (tests).
func (b *Batcher) SetClock(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}

// Apply updates interval and size bound (hot reload). Open batches keep
// their original deadline.
func (b *Batcher) Apply(interval time.Duration, maxSize int) {
	b.mu.Lock()
	if interval > 0 {
		b.interval = interval
	}
	if maxSize > 0 {
		b.maxSize = maxSize
	}
	b.mu.Unlock()
}

// ShouldBatch reports whether the notification is eligible for batching.
// Only low priority batches; anything expiring before the batch would flush
// is delivered directly.
func (b *Batcher) ShouldBatch(n model.Notification) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n.Priority != model.PriorityLow {
		return false
	}
	if n.ExpiresAt != nil && n.ExpiresAt.Before(b.now().Add(b.interval)) {
		return false
	}
	return true
}

// Add places the notification into its (category, priority) batch, opening
// one if needed. A full batch is removed and returned for immediate
// delivery.
func (b *Batcher) Add(n model.Notification) AddResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := Key{Category: n.Category, Priority: n.Priority}
	batch, ok := b.batches[key]
	created := false
	if !ok {
		now := b.now()
		batch = &Batch{
			ID:          uuid.NewString(),
			Key:         key,
			ScheduledAt: now.Add(b.interval),
			Priority:    n.Priority,
			Reason:      "low-priority digest",
			CreatedAt:   now,
		}
		b.batches[key] = batch
		created = true
	}

	batch.MemberIDs = append(batch.MemberIDs, n.ID)
	if n.Priority.Rank() > batch.Priority.Rank() {
		batch.Priority = n.Priority
	}

	if len(batch.MemberIDs) >= b.maxSize {
		delete(b.batches, key)
		return AddResult{Batch: snapshot(batch), Created: created, Full: true}
	}
	return AddResult{Batch: snapshot(batch), Created: created}
}

// Flush removes and returns the batch with the given id, if still pending.
// Timer callbacks use this; a batch already delivered by size returns false.
func (b *Batcher) Flush(id string) (Batch, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, batch := range b.batches {
		if batch.ID == id {
			delete(b.batches, key)
			return snapshot(batch), true
		}
	}
	return Batch{}, false
}

// FlushAll removes and returns every pending batch (shutdown path).
func (b *Batcher) FlushAll() []Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Batch, 0, len(b.batches))
	for key, batch := range b.batches {
		out = append(out, snapshot(batch))
		delete(b.batches, key)
	}
	return out
}

// RemoveMember drops a notification from its pending batch (explicit
// removal). Empty batches stay armed; their timer fires into a no-op flush.
func (b *Batcher) RemoveMember(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, batch := range b.batches {
		for i, m := range batch.MemberIDs {
			if m == id {
				batch.MemberIDs = append(batch.MemberIDs[:i], batch.MemberIDs[i+1:]...)
				return
			}
		}
	}
}

// Pending returns the number of open batches.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}

func snapshot(batch *Batch) Batch {
	cp := *batch
	cp.MemberIDs = append([]string(nil), batch.MemberIDs...)
	return cp
}
