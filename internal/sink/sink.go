// Package sink abstracts what happens after a notification reaches status
// delivered: rendering, sound, forwarding. Sinks are invoked fire-and-forget
// by the engine; a failing sink never blocks lifecycle progress.
package sink

import (
	"context"

	"golang.org/x/time/rate"

	"notifyd/internal/model"
	"notifyd/pkg/logx"
)

// Sink receives delivered notifications.
type Sink interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// Func adapts a function to the Sink interface.
type Func func(ctx context.Context, n model.Notification) error

func (f Func) Deliver(ctx context.Context, n model.Notification) error { return f(ctx, n) }

// NewLog returns a sink that just logs deliveries. Useful as a default and
// in tests.
func NewLog(log logx.Logger) Sink {
	return Func(func(ctx context.Context, n model.Notification) error {
		_ = ctx
		log.Info("notification delivered",
			logx.String("id", n.ID),
			logx.String("title", n.Title),
			logx.String("priority", string(n.Priority)),
			logx.String("category", string(n.Category)),
		)
		return nil
	})
}

// Multi fans a delivery out to several sinks; the first error wins but all
// sinks are attempted.
func Multi(sinks ...Sink) Sink {
	return Func(func(ctx context.Context, n model.Notification) error {
		var first error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Deliver(ctx, n); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}

// RateLimited wraps a sink with a token bucket so batch flushes cannot flood
// the presentation channel. Waits respect the delivery context.
func RateLimited(s Sink, perSec int) Sink {
	if perSec <= 0 {
		perSec = 5
	}
	limiter := rate.NewLimiter(rate.Limit(perSec), perSec)
	return Func(func(ctx context.Context, n model.Notification) error {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		return s.Deliver(ctx, n)
	})
}
