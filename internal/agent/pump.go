package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Sink receives batches of session events. Implementations used with RunAll
// must be safe for concurrent use.
type Sink interface {
	Deliver(ctx context.Context, events ...Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, events ...Event) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, events ...Event) error { return f(ctx, events...) }

// Pump consumes s and delivers every event to sink, one per batch. It returns
// the session's terminal event. A sink error abandons the session.
func Pump(ctx context.Context, s *Session, sink Sink) (Event, error) {
	var last Event
	for ev := range s.Events(ctx) {
		if err := sink.Deliver(ctx, ev); err != nil {
			return last, fmt.Errorf("deliver %s event for session %s: %w", ev.Kind, s.ID(), err)
		}
		last = ev
	}
	if !last.Terminal() {
		return last, fmt.Errorf("session %s ended without a terminal event", s.ID())
	}
	return last, nil
}

// RunAll pumps sessions concurrently, at most limit at a time (no limit when
// limit < 1). Terminal events are returned in session order. Failed sessions
// are not errors; only sink failures and cancellation are.
func RunAll(ctx context.Context, sessions []*Session, sink Sink, limit int) ([]Event, error) {
	results := make([]Event, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, s := range sessions {
		g.Go(func() error {
			ev, err := Pump(gctx, s, sink)
			results[i] = ev
			return err
		})
	}
	err := g.Wait()
	return results, err
}
