package engine

import (
	"time"

	"notifyd/internal/eventbus"
	"notifyd/internal/model"
)

// MarkAsRead transitions a notification to read and, when learning is on,
// records the interaction with the timing predictor. Unknown ids and
// disallowed transitions are no-ops returning false.
func (e *Engine) MarkAsRead(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.markReadLocked(id) {
		return false
	}
	e.persistLocked()
	e.cleanupLocked()
	return true
}

func (e *Engine) markReadLocked(id string) bool {
	n, ok := e.index[id]
	if !ok || !n.Status.CanTransition(model.StatusRead) {
		return false
	}
	was := n.Status
	now := e.now()
	n.Status = model.StatusRead
	n.ReadAt = &now
	e.detachDeferredLocked(id, was)
	e.emit(eventbus.EventRead, EventData{NotificationID: n.ID})
	if e.cfg.Learning {
		e.predictor.RecordInteraction(n.Clone(), now, true)
	}
	return true
}

// Dismiss transitions a notification to dismissed. A dismissed scheduled
// notification must never be redelivered; its timer callback sees the status
// change and gives up.
func (e *Engine) Dismiss(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.index[id]
	if !ok || !n.Status.CanTransition(model.StatusDismissed) {
		return false
	}
	was := n.Status
	now := e.now()
	n.Status = model.StatusDismissed
	n.DismissedAt = &now
	e.detachDeferredLocked(id, was)
	e.emit(eventbus.EventDismissed, EventData{NotificationID: n.ID})
	if e.cfg.Learning {
		e.predictor.RecordInteraction(n.Clone(), now, false)
	}
	e.persistLocked()
	e.cleanupLocked()
	return true
}

// detachDeferredLocked cancels deferred work tied to a notification leaving
// the scheduled or batched state.
func (e *Engine) detachDeferredLocked(id string, was model.Status) {
	switch was {
	case model.StatusScheduled:
		e.timers.Cancel(deliverTimer(id))
	case model.StatusBatched:
		e.batcher.RemoveMember(id)
	}
}

// Remove deletes a notification outright. Removal is destructive, not a
// lifecycle state; it also detaches the entry from its group and batch.
func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.index[id]
	if !ok {
		return false
	}
	e.dropLocked(n, eventbus.EventRemoved)
	for i, o := range e.notifs {
		if o.ID == id {
			e.notifs = append(e.notifs[:i], e.notifs[i+1:]...)
			break
		}
	}
	e.persistLocked()
	return true
}

// dropLocked detaches a notification from every structure except the ordered
// list, which the caller owns.
func (e *Engine) dropLocked(n *model.Notification, eventType string) {
	delete(e.index, n.ID)
	e.timers.Cancel(deliverTimer(n.ID))
	e.batcher.RemoveMember(n.ID)
	e.removeFromGroupLocked(n)
	e.emit(eventType, EventData{NotificationID: n.ID})
}

func (e *Engine) removeFromGroupLocked(n *model.Notification) {
	if n.GroupID == "" {
		return
	}
	g, ok := e.groups[n.GroupID]
	n.GroupID = ""
	if !ok {
		return
	}
	for i, id := range g.MemberIDs {
		if id == n.ID {
			g.MemberIDs = append(g.MemberIDs[:i], g.MemberIDs[i+1:]...)
			break
		}
	}
	if len(g.MemberIDs) == 0 {
		delete(e.groups, g.ID)
		return
	}
	e.refreshGroupLocked(g)
	e.emit(eventbus.EventGroupUpdated, EventData{GroupID: g.ID, Count: len(g.MemberIDs)})
}

// MarkAllAsRead marks every readable notification read and returns how many
// changed.
func (e *Engine) MarkAllAsRead() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, n := range e.notifs {
		if e.markReadLocked(n.ID) {
			count++
		}
	}
	if count > 0 {
		e.persistLocked()
		e.cleanupLocked()
	}
	return count
}

// ClearAll drops every notification and group.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := len(e.notifs)
	for _, n := range e.notifs {
		delete(e.index, n.ID)
		e.timers.Cancel(deliverTimer(n.ID))
	}
	e.notifs = nil
	e.groups = map[string]*model.Group{}
	e.batcher.FlushAll()
	e.emit(eventbus.EventRemoved, EventData{Count: count})
	e.persistLocked()
}

// Snooze pushes a pending or scheduled notification d into the future.
// Delivered and terminal notifications cannot be snoozed.
func (e *Engine) Snooze(id string, d time.Duration) bool {
	if d <= 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.index[id]
	if !ok || (n.Status != model.StatusPending && n.Status != model.StatusScheduled) {
		return false
	}
	e.scheduleLocked(n, e.now().Add(d))
	e.persistLocked()
	return true
}
