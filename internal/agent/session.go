package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sageflow/internal/articulation"
	"sageflow/internal/logging"
	"sageflow/internal/perception"
	"sageflow/internal/tagstream"
	"sageflow/internal/tasks"
)

// State represents the lifecycle state of a session.
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateFinalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the session has emitted its final event.
func (s State) IsTerminal() bool { return s == StateDone || s == StateFailed }

// Kind classifies an event.
type Kind string

const (
	KindDisplay   Kind = "display"   // live echo of displayable content
	KindSeparator Kind = "separator" // a displayable region is starting
	KindResult    Kind = "result"    // terminal, carries the decoded record
	KindError     Kind = "error"     // terminal, carries the raw text
)

// ErrorKind says why a session failed.
type ErrorKind string

const (
	ErrorUpstream   ErrorKind = "upstream"
	ErrorExtraction ErrorKind = "extraction"
	ErrorRender     ErrorKind = "render"
	ErrorCanceled   ErrorKind = "canceled"
)

// Event is one message fragment produced by a session. Every event of a
// session shares its CorrelationID so a sink can merge them into one message.
type Event struct {
	Role          string
	Content       string // machine-readable content
	Display       string // user-facing content
	Kind          Kind
	Type          string
	CorrelationID string

	Region string // displayable tag, for display events

	// Terminal result fields.
	Record *articulation.Record
	Value  any
	Report *Report

	// Terminal error fields.
	ErrorKind ErrorKind
	Err       error
	Raw       string
}

// Terminal reports whether e is the last event of its session.
func (e Event) Terminal() bool { return e.Kind == KindResult || e.Kind == KindError }

// Session is one end-to-end analysis of a single upstream generation.
type Session struct {
	policy Policy
	source perception.TokenSource
	engine *tasks.Engine
	id     string
	logger *zap.Logger

	state   atomic.Int32
	started atomic.Bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithEngine applies the policy's effect to engine on success.
func WithEngine(e *tasks.Engine) SessionOption {
	return func(s *Session) { s.engine = e }
}

// WithCorrelationID fixes the correlation id instead of generating one.
func WithCorrelationID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithSessionLogger overrides the session category logger.
func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession prepares a session over src. Nothing is read until the event
// sequence is consumed.
func NewSession(policy Policy, src perception.TokenSource, opts ...SessionOption) (*Session, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("session %s: token source is required", policy.Agent)
	}
	s := &Session{policy: policy, source: src}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.logger == nil {
		s.logger = logging.Get(logging.CategorySession)
	}
	s.logger = s.logger.With(zap.String("agent", policy.Agent), zap.String("correlation_id", s.id))
	return s, nil
}

// ID returns the correlation id shared by the session's events.
func (s *Session) ID() string { return s.id }

// Policy returns the session's policy.
func (s *Session) Policy() Policy { return s.policy }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(to State) {
	from := State(s.state.Swap(int32(to)))
	if from != to {
		s.logger.Debug("session state", zap.Stringer("from", from), zap.Stringer("to", to))
	}
}

// Events returns the session's event sequence. It can be consumed once; a
// second call yields nothing. Stopping the range loop early abandons the
// session and closes the token source if it is an io.Closer.
//
// Display and separator events follow input order. A consumed sequence always
// ends with exactly one result or error event.
func (s *Session) Events(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if !s.started.CompareAndSwap(false, true) {
			s.logger.Warn("session event sequence already consumed")
			return
		}
		if c, ok := s.source.(io.Closer); ok {
			defer c.Close()
		}
		s.run(ctx, yield)
	}
}

// run drives the state machine. It returns as soon as yield reports that the
// consumer has stopped.
func (s *Session) run(ctx context.Context, yield func(Event) bool) {
	start := time.Now()
	stream := tagstream.NewStream(s.policy.Vocabulary)
	var (
		shown string // region of the last display event, reset by any other class
		runes int
	)

	emit := func(ch tagstream.Chunk) bool {
		switch {
		case ch.Class == tagstream.ClassUnknown:
			return true
		case !s.policy.Displayable[ch.Class]:
			shown = ""
			return true
		case ch.Content == "":
			return true
		}
		if shown != ch.Class {
			shown = ch.Class
			if s.policy.Separator != "" && !yield(s.event(KindSeparator, "", s.policy.Separator, ch.Class)) {
				return false
			}
		}
		return yield(s.event(KindDisplay, "", ch.Content, ch.Class))
	}

	for {
		fragment, err := s.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			kind := ErrorUpstream
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				kind = ErrorCanceled
			}
			s.fail(yield, kind, err, stream.Text())
			return
		}
		for _, r := range fragment {
			if runes == 0 {
				s.setState(StateStreaming)
			}
			runes++
			if !emit(stream.Feed(r)) {
				s.logger.Debug("session abandoned by consumer", zap.Int("runes", runes))
				return
			}
		}
	}

	s.setState(StateFinalizing)
	if !emit(stream.Flush()) {
		return
	}
	raw := stream.Text()
	s.logger.Debug("stream complete", zap.Int("runes", runes), zap.Duration("elapsed", time.Since(start)))

	rec, err := articulation.Extract(raw, s.policy.Schema)
	if err != nil {
		s.fail(yield, ErrorExtraction, err, raw)
		return
	}
	value, report := s.policy.Effect(s.engine, rec)
	content, err := s.policy.Render(value)
	if err != nil {
		s.fail(yield, ErrorRender, err, raw)
		return
	}
	for _, w := range report.Warnings {
		s.logger.Warn("session warning", zap.String("warning", w))
	}

	s.setState(StateDone)
	s.logger.Info("session done",
		zap.Int("transitions", len(report.Transitions)),
		zap.Int("added", len(report.AddedIDs)),
		zap.Duration("elapsed", time.Since(start)))

	ev := s.event(KindResult, content, "\n", "")
	ev.Record, ev.Value, ev.Report, ev.Raw = rec, value, &report, raw
	yield(ev)
}

func (s *Session) fail(yield func(Event) bool, kind ErrorKind, err error, raw string) {
	s.setState(StateFailed)
	s.logger.Error("session failed", zap.String("kind", string(kind)), zap.Int("raw_len", len(raw)), zap.Error(err))

	msg := fmt.Sprintf("%s failed (%s): %v", s.policy.Agent, kind, err)
	ev := s.event(KindError, msg, msg+"\n", "")
	ev.ErrorKind, ev.Err, ev.Raw = kind, err, raw
	yield(ev)
}

func (s *Session) event(kind Kind, content, display, region string) Event {
	return Event{
		Role:          s.policy.Agent,
		Content:       content,
		Display:       display,
		Kind:          kind,
		Type:          s.policy.MessageType,
		CorrelationID: s.id,
		Region:        region,
	}
}
