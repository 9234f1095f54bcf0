// Package attention keeps the engine's best estimate of whether the user can
// notice a delivered notification right now. It consumes discrete activity
// signals from any event source and is re-evaluated on a periodic tick.
package attention

import (
	"sync"
	"time"

	"notifyd/internal/model"
)

// State classifies the user's current attention.
type State string

const (
	StateActive  State = "active"
	StateFocused State = "focused"
	StateIdle    State = "idle"
	StateAway    State = "away"
)

type SignalKind string

const (
	SignalMouseMove  SignalKind = "mouse_move"
	SignalKeyDown    SignalKind = "key_down"
	SignalKeyUp      SignalKind = "key_up"
	SignalVisibility SignalKind = "visibility"
	SignalFocus      SignalKind = "focus"
	SignalBlur       SignalKind = "blur"
)

// Signal is one discrete activity event. Visible is only meaningful for
// SignalVisibility.
type Signal struct {
	Kind    SignalKind
	Visible bool
}

// Snapshot is a point-in-time view of user attention. It is read-only to
// every component except the Tracker.
type Snapshot struct {
	State        State
	LastActivity time.Time
	IdleFor      time.Duration
	PageVisible  bool
	Typing       bool
	MouseActive  bool
	FocusedSince time.Time

	DoNotDisturb bool
	DNDUntil     time.Time
}

const (
	// typingDebounce clears the typing flag this long after the last key press.
	typingDebounce = time.Second
	// mouseWindow is how long mouse movement counts as recent activity.
	mouseWindow = 3 * time.Second
	// awayFactor scales the idle threshold into the away threshold.
	awayFactor = 5
)

// Tracker is safe for concurrent use. Signal handlers, the periodic tick and
// delivery-path queries all serialize on one mutex.
type Tracker struct {
	mu  sync.Mutex
	now func() time.Time

	idleThreshold time.Duration

	state        State
	lastActivity time.Time
	lastKeyAt    time.Time
	lastMouseAt  time.Time
	pageVisible  bool
	focusedSince time.Time

	dnd      bool
	dndUntil time.Time
}

func New(idleThreshold time.Duration) *Tracker {
	if idleThreshold <= 0 {
		idleThreshold = time.Minute
	}
	t := &Tracker{
		now:           time.Now,
		idleThreshold: idleThreshold,
		state:         StateActive,
		pageVisible:   true,
	}
	t.lastActivity = t.now()
	return t
}

// SetClock overrides the time source (tests).
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.lastActivity = now()
	t.mu.Unlock()
}

// SetIdleThreshold applies a new idle threshold (hot reload).
func (t *Tracker) SetIdleThreshold(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	t.idleThreshold = d
	t.reevaluateLocked()
	t.mu.Unlock()
}

// OnSignal consumes one activity signal and re-evaluates the state machine.
func (t *Tracker) OnSignal(sig Signal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	switch sig.Kind {
	case SignalMouseMove:
		t.lastMouseAt = now
		t.lastActivity = now
	case SignalKeyDown, SignalKeyUp:
		t.lastKeyAt = now
		t.lastActivity = now
	case SignalVisibility:
		t.pageVisible = sig.Visible
		if sig.Visible {
			t.lastActivity = now
		}
	case SignalFocus:
		t.pageVisible = true
		t.lastActivity = now
	case SignalBlur:
		t.pageVisible = false
	}
	t.reevaluateLocked()
}

// Tick re-evaluates time-driven transitions (idle decay, typing debounce).
// Call it periodically, default every second.
func (t *Tracker) Tick() {
	t.mu.Lock()
	t.reevaluateLocked()
	t.mu.Unlock()
}

// SetDoNotDisturb sets or clears the orthogonal DND flag. A zero until means
// DND holds until explicitly cleared.
func (t *Tracker) SetDoNotDisturb(on bool, until time.Time) {
	t.mu.Lock()
	t.dnd = on
	if on {
		t.dndUntil = until
	} else {
		t.dndUntil = time.Time{}
	}
	t.mu.Unlock()
}

// Snapshot returns the current attention state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reevaluateLocked()
	now := t.now()
	return Snapshot{
		State:        t.state,
		LastActivity: t.lastActivity,
		IdleFor:      now.Sub(t.lastActivity),
		PageVisible:  t.pageVisible,
		Typing:       t.typingLocked(now),
		MouseActive:  t.mouseActiveLocked(now),
		FocusedSince: t.focusedSince,
		DoNotDisturb: t.dndLocked(now),
		DNDUntil:     t.dndUntil,
	}
}

func (t *Tracker) typingLocked(now time.Time) bool {
	return !t.lastKeyAt.IsZero() && now.Sub(t.lastKeyAt) < typingDebounce
}

func (t *Tracker) mouseActiveLocked(now time.Time) bool {
	return !t.lastMouseAt.IsZero() && now.Sub(t.lastMouseAt) < mouseWindow
}

func (t *Tracker) dndLocked(now time.Time) bool {
	if !t.dnd {
		return false
	}
	if !t.dndUntil.IsZero() && now.After(t.dndUntil) {
		// Expired; clear lazily.
		t.dnd = false
		t.dndUntil = time.Time{}
		return false
	}
	return true
}

// reevaluateLocked runs the four-state classification. First match wins:
// away, idle, focused, active.
func (t *Tracker) reevaluateLocked() {
	now := t.now()
	idle := now.Sub(t.lastActivity)

	var next State
	switch {
	case !t.pageVisible || idle > awayFactor*t.idleThreshold:
		next = StateAway
	case idle > t.idleThreshold:
		next = StateIdle
	case t.typingLocked(now) || t.mouseActiveLocked(now):
		next = StateFocused
	default:
		next = StateActive
	}

	if next == StateFocused && t.state != StateFocused {
		t.focusedSince = now
	}
	if next == StateActive {
		t.focusedSince = time.Time{}
	}
	t.state = next
}

// ShouldDelay is the delivery-delay decision table, evaluated in order with
// first match winning.
func ShouldDelay(n model.Notification, att Snapshot) bool {
	switch {
	case n.Priority == model.PriorityCritical:
		return false
	case att.DoNotDisturb:
		return true
	case att.Typing:
		return true
	case att.State == StateFocused && n.Priority == model.PriorityLow:
		return true
	case !att.PageVisible:
		return true
	case att.State == StateAway:
		return true
	default:
		return false
	}
}
