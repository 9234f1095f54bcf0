package engine

import (
	"sort"

	"notifyd/internal/model"
)

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Status   model.Status
	Category model.Category
	Priority model.Priority
	GroupID  string
	// Unread keeps only notifications not yet read or dismissed.
	Unread bool
	// Limit caps the result count; 0 means unlimited.
	Limit int
}

func (f Filter) matches(n model.Notification) bool {
	if f.Status != "" && n.Status != f.Status {
		return false
	}
	if f.Category != "" && n.Category != f.Category {
		return false
	}
	if f.Priority != "" && n.Priority != f.Priority {
		return false
	}
	if f.GroupID != "" && n.GroupID != f.GroupID {
		return false
	}
	if f.Unread && n.Status.Terminal() {
		return false
	}
	return true
}

// Get returns a snapshot of one notification.
func (e *Engine) Get(id string) (model.Notification, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.index[id]
	if !ok {
		return model.Notification{}, false
	}
	return n.Clone(), true
}

// List returns matching notification snapshots, newest first.
func (e *Engine) List(f Filter) []model.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Notification, 0, len(e.notifs))
	for i := len(e.notifs) - 1; i >= 0; i-- {
		n := e.notifs[i]
		if !f.matches(*n) {
			continue
		}
		out = append(out, n.Clone())
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// Group returns a snapshot of one group.
func (e *Engine) Group(id string) (model.Group, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.groups[id]
	if !ok {
		return model.Group{}, false
	}
	return g.Clone(), true
}

// Groups returns all group snapshots, most recently updated first.
func (e *Engine) Groups() []model.Group {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Group, 0, len(e.groups))
	for _, g := range e.groups {
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Stats summarizes current engine state.
type Stats struct {
	Total          int                    `json:"total"`
	Unread         int                    `json:"unread"`
	Groups         int                    `json:"groups"`
	PendingBatches int                    `json:"pending_batches"`
	ByCategory     map[model.Category]int `json:"by_category"`
	ByPriority     map[model.Priority]int `json:"by_priority"`
	ByStatus       map[model.Status]int   `json:"by_status"`
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Total:          len(e.notifs),
		Groups:         len(e.groups),
		PendingBatches: e.batcher.Pending(),
		ByCategory:     map[model.Category]int{},
		ByPriority:     map[model.Priority]int{},
		ByStatus:       map[model.Status]int{},
	}
	for _, n := range e.notifs {
		s.ByCategory[n.Category]++
		s.ByPriority[n.Priority]++
		s.ByStatus[n.Status]++
		if !n.Status.Terminal() {
			s.Unread++
		}
	}
	return s
}
