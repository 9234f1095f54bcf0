package engine

import (
	"notifyd/internal/eventbus"
	"notifyd/internal/model"
)

// cleanupLocked runs after mutations: expire notifications past their
// deadline, drop dismissed ones older than the expiration window, then trim
// the list to the configured bound (oldest first).
func (e *Engine) cleanupLocked() {
	now := e.now()

	if e.cfg.AutoExpire {
		keep := make([]*model.Notification, 0, len(e.notifs))
		for _, n := range e.notifs {
			if n.ExpiresAt != nil && n.ExpiresAt.Before(now) {
				e.dropLocked(n, eventbus.EventExpired)
				continue
			}
			if n.Status == model.StatusDismissed {
				ref := n.Timestamp
				if n.DismissedAt != nil {
					ref = *n.DismissedAt
				}
				if now.Sub(ref) > e.cfg.ExpirationTime {
					e.dropLocked(n, eventbus.EventExpired)
					continue
				}
			}
			keep = append(keep, n)
		}
		e.notifs = keep
	}

	if max := e.cfg.MaxNotifications; max > 0 && len(e.notifs) > max {
		over := len(e.notifs) - max
		for _, n := range e.notifs[:over] {
			e.dropLocked(n, eventbus.EventRemoved)
		}
		e.notifs = append([]*model.Notification(nil), e.notifs[over:]...)
	}
}

// Sweep is the periodic expiration pass; it persists only when something was
// dropped.
func (e *Engine) Sweep() {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := len(e.notifs)
	e.cleanupLocked()
	if len(e.notifs) != before {
		e.persistLocked()
	}
}
