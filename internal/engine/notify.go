package engine

import (
	"fmt"
	"strings"
	"time"

	"notifyd/internal/engine/attention"
	"notifyd/internal/engine/batching"
	"notifyd/internal/eventbus"
	"notifyd/internal/model"
	"notifyd/pkg/logx"
)

// Draft is the caller-supplied input to Notify. Everything except Title is
// optional; unset fields are filled by the pipeline.
type Draft struct {
	Title     string
	Message   string
	Category  model.Category
	Priority  model.Priority
	Urgency   *float64
	ExpiresAt *time.Time
	Tags      []string
	Source    string
	Actions   []model.Action
}

// Notify runs the full intake pipeline: id assignment, urgency scoring,
// batching or attention-aware scheduling, immediate delivery otherwise, then
// grouping, persistence and cleanup. It never blocks on delivery.
func (e *Engine) Notify(d Draft) (model.Notification, error) {
	if strings.TrimSpace(d.Title) == "" {
		return model.Notification{}, fmt.Errorf("notify: title is required")
	}
	if d.Priority != "" && !d.Priority.Valid() {
		return model.Notification{}, fmt.Errorf("notify: unknown priority %q", d.Priority)
	}
	if d.Urgency != nil && (*d.Urgency < 0 || *d.Urgency > 1) {
		return model.Notification{}, fmt.Errorf("notify: urgency must be within [0,1]")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return model.Notification{}, ErrStopped
	}

	n := &model.Notification{
		ID:        e.newID(),
		Title:     d.Title,
		Message:   d.Message,
		Category:  d.Category,
		Priority:  d.Priority,
		Status:    model.StatusPending,
		Timestamp: e.now(),
		Source:    d.Source,
		Tags:      append([]string(nil), d.Tags...),
		Actions:   append([]model.Action(nil), d.Actions...),
	}
	if !n.Category.Valid() {
		n.Category = model.CategoryCustom
	}
	if d.Urgency != nil {
		u := *d.Urgency
		n.Urgency = &u
	}
	if d.ExpiresAt != nil {
		t := *d.ExpiresAt
		n.ExpiresAt = &t
	}

	if e.cfg.AIScoring && n.Urgency == nil {
		res := e.scorer.Analyze(*n)
		score := res.Score
		n.Urgency = &score
		if n.Priority == "" {
			n.Priority = res.SuggestedPriority
		}
	}
	if n.Priority == "" {
		n.Priority = e.cfg.DefaultPriority
	}

	e.notifs = append(e.notifs, n)
	e.index[n.ID] = n
	e.emit(eventbus.EventCreated, EventData{NotificationID: n.ID})

	switch {
	case e.cfg.Batching && e.batcher.ShouldBatch(*n):
		n.Status = model.StatusBatched
		e.emit(eventbus.EventBatched, EventData{NotificationID: n.ID})
		res := e.batcher.Add(*n)
		if res.Full {
			e.timers.Cancel(batchTimer(res.Batch.ID))
			e.deliverBatchLocked(res.Batch)
		} else if res.Created {
			e.armBatchTimer(res.Batch)
		}

	case e.cfg.Attention && e.cfg.OptimalTiming:
		att := e.tracker.Snapshot()
		if !e.cfg.RespectDND {
			att.DoNotDisturb = false
			att.DNDUntil = time.Time{}
		}
		if attention.ShouldDelay(*n, att) {
			pred := e.predictor.Predict(*n, att)
			e.scheduleLocked(n, pred.RecommendedAt)
			e.log.Debug("notification scheduled",
				logx.String("id", n.ID),
				logx.Time("at", pred.RecommendedAt),
				logx.String("reason", pred.Reason),
			)
		} else {
			e.deliverLocked(n)
		}

	default:
		e.deliverLocked(n)
	}

	if e.cfg.Grouping {
		e.assignGroupLocked(n)
	}
	e.persistLocked()
	e.cleanupLocked()

	return n.Clone(), nil
}

// scheduleLocked moves n to status scheduled and arms its delivery timer.
func (e *Engine) scheduleLocked(n *model.Notification, at time.Time) {
	n.Status = model.StatusScheduled
	n.Scheduled = &at
	e.emit(eventbus.EventScheduled, EventData{NotificationID: n.ID})
	e.armDeliveryTimer(n.ID, at)
}

// deliverLocked transitions n to delivered and hands it to the sink. A no-op
// when the status already moved on; timer callbacks rely on that.
func (e *Engine) deliverLocked(n *model.Notification) {
	if !n.Status.CanTransition(model.StatusDelivered) {
		return
	}
	n.Status = model.StatusDelivered
	e.emit(eventbus.EventDelivered, EventData{NotificationID: n.ID})
	e.present(n.Clone())
}

func (e *Engine) armDeliveryTimer(id string, at time.Time) {
	e.timers.OnceAt(deliverTimer(id), at, func() { e.fireScheduled(id) })
}

func (e *Engine) armBatchTimer(b batching.Batch) {
	e.timers.OnceAt(batchTimer(b.ID), b.ScheduledAt, func() { e.fireBatch(b.ID) })
}

// fireScheduled is the delivery-timer callback. Status is the single source
// of truth: anything other than scheduled means the entity moved on and the
// timer is void. A callback that raced Stop past its timer cancellation bails
// out here.
func (e *Engine) fireScheduled(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	n, ok := e.index[id]
	if !ok || n.Status != model.StatusScheduled {
		return
	}
	e.deliverLocked(n)
	e.persistLocked()
}

// fireBatch is the batch-timer callback. Flush returns false when the batch
// was already delivered via the size threshold, keeping delivery
// exactly-once.
func (e *Engine) fireBatch(batchID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	b, ok := e.batcher.Flush(batchID)
	if !ok {
		return
	}
	e.deliverBatchLocked(b)
	e.persistLocked()
}

// deliverBatchLocked delivers every member still batched and, when grouping
// is on, folds the flushed batch into a notification group.
func (e *Engine) deliverBatchLocked(b batching.Batch) {
	delivered := make([]*model.Notification, 0, len(b.MemberIDs))
	for _, id := range b.MemberIDs {
		n, ok := e.index[id]
		if !ok || n.Status != model.StatusBatched {
			continue
		}
		e.deliverLocked(n)
		delivered = append(delivered, n)
	}
	e.emit(eventbus.EventBatchFlushed, EventData{BatchID: b.ID, Count: len(delivered)})

	if !e.cfg.Grouping {
		return
	}
	ungrouped := make([]model.Notification, 0, len(delivered))
	for _, n := range delivered {
		if n.GroupID == "" {
			ungrouped = append(ungrouped, n.Clone())
		}
	}
	if len(ungrouped) < 2 {
		return
	}
	g := e.grouper.CreateGroup(ungrouped)
	e.groups[g.ID] = &g
	for _, m := range ungrouped {
		if n, ok := e.index[m.ID]; ok {
			n.GroupID = g.ID
		}
	}
	e.emit(eventbus.EventGroupCreated, EventData{GroupID: g.ID, Count: len(g.MemberIDs)})
}

// assignGroupLocked runs the one-shot grouping policy for a new notification:
// join the group of a related member if one exists, otherwise open a new
// group once at least two related notifications are found. A notification
// already grouped (a full batch folds its members into a group before this
// runs) is left alone.
func (e *Engine) assignGroupLocked(n *model.Notification) {
	if n.GroupID != "" || n.Priority == model.PriorityCritical {
		return
	}

	existing := make([]model.Notification, 0, len(e.notifs))
	for _, o := range e.notifs {
		if o.ID == n.ID || o.Status.Terminal() {
			continue
		}
		existing = append(existing, o.Clone())
	}
	related := e.grouper.FindRelated(*n, existing)
	if len(related) == 0 {
		return
	}

	for _, r := range related {
		if r.GroupID == "" {
			continue
		}
		g, ok := e.groups[r.GroupID]
		if !ok {
			continue
		}
		n.GroupID = g.ID
		g.MemberIDs = append(g.MemberIDs, n.ID)
		e.refreshGroupLocked(g)
		e.emit(eventbus.EventGroupUpdated, EventData{GroupID: g.ID, Count: len(g.MemberIDs)})
		return
	}

	if len(related) < 2 {
		return
	}
	members := append([]model.Notification{n.Clone()}, related...)
	g := e.grouper.CreateGroup(members)
	e.groups[g.ID] = &g
	n.GroupID = g.ID
	for _, r := range related {
		if m, ok := e.index[r.ID]; ok {
			m.GroupID = g.ID
		}
	}
	e.emit(eventbus.EventGroupCreated, EventData{GroupID: g.ID, Count: len(g.MemberIDs)})
}

// refreshGroupLocked recomputes a group's derived fields from the members
// still present.
func (e *Engine) refreshGroupLocked(g *model.Group) {
	members := make([]model.Notification, 0, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		if n, ok := e.index[id]; ok {
			members = append(members, n.Clone())
		}
	}
	if len(members) == 0 {
		delete(e.groups, g.ID)
		return
	}
	*g = e.grouper.UpdateGroup(*g, members)
}
