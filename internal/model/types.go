package model

import "time"

// Category classifies what kind of notification this is.
type Category string

const (
	CategoryMessage  Category = "message"
	CategoryAlert    Category = "alert"
	CategoryReminder Category = "reminder"
	CategoryUpdate   Category = "update"
	CategorySocial   Category = "social"
	CategorySystem   Category = "system"
	CategoryCustom   Category = "custom"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryMessage, CategoryAlert, CategoryReminder, CategoryUpdate,
		CategorySocial, CategorySystem, CategoryCustom:
		return true
	default:
		return false
	}
}

// Priority is the caller- or scorer-assigned importance, distinct from the
// [0,1] urgency score.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities for comparison: critical=3 .. low=0.
// Unknown priorities rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 0
	default:
		return -1
	}
}

func (p Priority) Valid() bool { return p.Rank() >= 0 }

// Status is a notification's lifecycle state.
//
// Transitions follow a DAG and never move backward:
//
//	pending -> {scheduled, batched, delivered} -> {read, dismissed}
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusBatched   Status = "batched"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusDismissed Status = "dismissed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool { return s == StatusRead || s == StatusDismissed }

// CanTransition reports whether moving from s to next is allowed by the
// lifecycle DAG.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusScheduled || next == StatusBatched || next == StatusDelivered ||
			next == StatusRead || next == StatusDismissed
	case StatusScheduled, StatusBatched:
		return next == StatusDelivered || next == StatusRead || next == StatusDismissed
	case StatusDelivered:
		return next == StatusRead || next == StatusDismissed
	default:
		return false
	}
}

// Action is a user-actionable button attached to a notification.
// The ActionID is opaque to the engine.
type Action struct {
	Label    string `json:"label"`
	ActionID string `json:"action_id"`
}

// Notification is the central entity. The engine owns all mutation; callers
// must treat returned values as snapshots.
type Notification struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`

	Category Category `json:"category"`
	Priority Priority `json:"priority"`
	// Urgency is set by the urgency scorer when AI is enabled; nil otherwise.
	Urgency *float64 `json:"urgency,omitempty"`

	Status      Status     `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
	Scheduled   *time.Time `json:"scheduled,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`

	GroupID string   `json:"group_id,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Source  string   `json:"source,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Clone returns a deep copy so engine-internal state never escapes by alias.
func (n Notification) Clone() Notification {
	cp := n
	if n.Urgency != nil {
		u := *n.Urgency
		cp.Urgency = &u
	}
	if n.Scheduled != nil {
		t := *n.Scheduled
		cp.Scheduled = &t
	}
	if n.ExpiresAt != nil {
		t := *n.ExpiresAt
		cp.ExpiresAt = &t
	}
	if n.ReadAt != nil {
		t := *n.ReadAt
		cp.ReadAt = &t
	}
	if n.DismissedAt != nil {
		t := *n.DismissedAt
		cp.DismissedAt = &t
	}
	if n.Tags != nil {
		cp.Tags = append([]string(nil), n.Tags...)
	}
	if n.Actions != nil {
		cp.Actions = append([]Action(nil), n.Actions...)
	}
	return cp
}

// Group aggregates thematically related notifications for collapsed
// presentation. The group owns membership; members keep independent identity.
type Group struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	MemberIDs []string  `json:"member_ids"`
	Category  Category  `json:"category"`
	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Collapsed bool      `json:"collapsed"`
}

func (g Group) Clone() Group {
	cp := g
	cp.MemberIDs = append([]string(nil), g.MemberIDs...)
	return cp
}
