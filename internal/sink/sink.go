// Package sink collects session events: MessageLog merges the fragments of a
// session into one logical message, WriterSink echoes display text live.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"sageflow/internal/agent"
	"sageflow/internal/logging"
)

// Message is every event of one correlation id merged together.
type Message struct {
	ID      string     `json:"id"`
	Role    string     `json:"role"`
	Type    string     `json:"type"`
	Content string     `json:"content"`
	Display string     `json:"display"`
	Kind    agent.Kind `json:"kind"` // kind of the latest merged event
	Chunks  int        `json:"chunks"`
}

// Stats summarises a MessageLog.
type Stats struct {
	Messages int            `json:"messages"`
	Chunks   int            `json:"chunks"`
	ByRole   map[string]int `json:"by_role"`
}

// MessageLog is an in-memory conversation. Safe for concurrent use.
type MessageLog struct {
	mu     sync.Mutex
	order  []*Message
	byID   map[string]*Message
	logger *zap.Logger
}

var _ agent.Sink = (*MessageLog)(nil)

// NewMessageLog returns an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{byID: make(map[string]*Message), logger: logging.Get(logging.CategorySession)}
}

// Deliver appends events. Content and display text of events sharing a
// correlation id are concatenated onto one message in arrival order.
func (l *MessageLog) Deliver(ctx context.Context, events ...agent.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range events {
		if ev.CorrelationID == "" {
			return fmt.Errorf("event from %s has no correlation id", ev.Role)
		}
		m, ok := l.byID[ev.CorrelationID]
		if !ok {
			m = &Message{ID: ev.CorrelationID, Role: ev.Role, Type: ev.Type}
			l.byID[ev.CorrelationID] = m
			l.order = append(l.order, m)
			l.logger.Debug("message created", zap.String("id", ev.CorrelationID), zap.String("role", ev.Role))
		}
		m.Content += ev.Content
		m.Display += ev.Display
		m.Kind = ev.Kind
		m.Chunks++
	}
	return nil
}

// Messages returns a snapshot of every message in creation order.
func (l *MessageLog) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.order))
	for i, m := range l.order {
		out[i] = *m
	}
	return out
}

// Get returns one message by correlation id.
func (l *MessageLog) Get(id string) (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.byID[id]
	if !ok {
		return Message{}, false
	}
	return *m, true
}

// ForRole returns the messages produced by role, oldest first.
func (l *MessageLog) ForRole(role string) []Message {
	var out []Message
	for _, m := range l.Messages() {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// Stats counts messages and merged chunks.
func (l *MessageLog) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Stats{Messages: len(l.order), ByRole: make(map[string]int)}
	for _, m := range l.order {
		s.Chunks += m.Chunks
		s.ByRole[m.Role]++
	}
	return s
}

// Clear drops all but the keepLatest newest messages and returns how many
// were removed.
func (l *MessageLog) Clear(keepLatest int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if keepLatest < 0 {
		keepLatest = 0
	}
	drop := len(l.order) - keepLatest
	if drop <= 0 {
		return 0
	}
	for _, m := range l.order[:drop] {
		delete(l.byID, m.ID)
	}
	l.order = append([]*Message(nil), l.order[drop:]...)
	return drop
}

// WriterSink writes the display text of every event to w as it arrives.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

var _ agent.Sink = (*WriterSink)(nil)

// NewWriterSink echoes to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Deliver implements agent.Sink.
func (s *WriterSink) Deliver(_ context.Context, events ...agent.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if ev.Display == "" {
			continue
		}
		if _, err := io.WriteString(s.w, ev.Display); err != nil {
			return fmt.Errorf("echo %s event: %w", ev.Kind, err)
		}
	}
	return nil
}

// Tee delivers every batch to each sink in order. All sinks are attempted;
// their errors are joined.
func Tee(sinks ...agent.Sink) agent.Sink {
	return agent.SinkFunc(func(ctx context.Context, events ...agent.Event) error {
		var errs []error
		for _, s := range sinks {
			if err := s.Deliver(ctx, events...); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
