package tasks

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sageflow/internal/logging"
)

// IDStyle selects how task ids are minted.
type IDStyle string

const (
	IDSequential IDStyle = "sequential" // "1", "2", ... (what generators echo back best)
	IDUUID       IDStyle = "uuid"
)

// DefaultExecutor is assigned to tasks that name no executor.
const DefaultExecutor = "ExecutorAgent"

// Engine is the task graph of one job. All methods are safe for concurrent
// use; each call is a short critical section.
type Engine struct {
	mu      sync.Mutex
	order   []*Task
	byID    map[string]*Task
	seq     int
	history []HistoryEntry

	jobID    string
	executor string
	idStyle  IDStyle
	journal  Journal
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultExecutor sets AssignedTo for tasks that do not name one.
func WithDefaultExecutor(name string) Option {
	return func(e *Engine) { e.executor = name }
}

// WithIDStyle selects the id minting scheme.
func WithIDStyle(style IDStyle) Option {
	return func(e *Engine) { e.idStyle = style }
}

// WithJournal mirrors every history entry to j.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithLogger overrides the tasks category logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithJobID fixes the job id instead of generating one.
func WithJobID(id string) Option {
	return func(e *Engine) { e.jobID = id }
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an empty task graph.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		byID:     make(map[string]*Task),
		executor: DefaultExecutor,
		idStyle:  IDSequential,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.jobID == "" {
		e.jobID = uuid.NewString()
	}
	if e.logger == nil {
		e.logger = logging.Get(logging.CategoryTasks)
	}
	e.logger = e.logger.With(zap.String("job", e.jobID))
	return e
}

// JobID identifies this task graph.
func (e *Engine) JobID() string { return e.jobID }

// AddTasksBatch creates one pending task per description, in input order,
// with priority equal to the input index. The returned ids line up with
// descriptions; ids of one batch are never interleaved with another call.
func (e *Engine) AddTasksBatch(descriptions []string) []string {
	ids := make([]string, len(descriptions))
	entries := make([]HistoryEntry, len(descriptions))

	e.mu.Lock()
	for i, d := range descriptions {
		t := e.addLocked(Spec{Description: d, Priority: i})
		ids[i] = t.ID
		entries[i] = e.recordLocked(t.ID, ActionAdded, "", StatusPending, d)
	}
	e.mu.Unlock()

	e.logger.Info("tasks added", zap.Int("count", len(ids)), zap.Strings("ids", ids))
	e.appendJournal(entries)
	return ids
}

// AddTask creates a single pending task and returns its id.
func (e *Engine) AddTask(spec Spec) string {
	e.mu.Lock()
	t := e.addLocked(spec)
	entry := e.recordLocked(t.ID, ActionAdded, "", StatusPending, t.Description)
	e.mu.Unlock()

	e.logger.Debug("task added", zap.String("id", t.ID), zap.Int("priority", t.Priority))
	e.appendJournal([]HistoryEntry{entry})
	return t.ID
}

func (e *Engine) addLocked(spec Spec) *Task {
	e.seq++
	id := strconv.Itoa(e.seq)
	if e.idStyle == IDUUID {
		id = uuid.NewString()
	}
	assigned := spec.AssignedTo
	if assigned == "" {
		assigned = e.executor
	}
	now := e.now()
	t := &Task{
		ID:           id,
		Description:  spec.Description,
		Status:       StatusPending,
		Priority:     spec.Priority,
		Dependencies: dedupe(spec.Dependencies),
		AssignedTo:   assigned,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	e.order = append(e.order, t)
	e.byID[id] = t
	return t
}

func (e *Engine) recordLocked(id string, action Action, from, to Status, desc string) HistoryEntry {
	entry := HistoryEntry{
		Seq:         int64(len(e.history) + 1),
		JobID:       e.jobID,
		TaskID:      id,
		Action:      action,
		From:        from,
		To:          to,
		Description: desc,
		At:          e.now(),
	}
	e.history = append(e.history, entry)
	return entry
}

func (e *Engine) appendJournal(entries []HistoryEntry) {
	if e.journal == nil || len(entries) == 0 {
		return
	}
	if err := e.journal.Append(entries...); err != nil {
		e.logger.Warn("journal append failed", zap.Int("entries", len(entries)), zap.Error(err))
	}
}

// GetAllTasks returns a snapshot of every task in creation order.
func (e *Engine) GetAllTasks() []Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Task, len(e.order))
	for i, t := range e.order {
		out[i] = snapshot(t)
	}
	return out
}

// GetTask returns a snapshot of one task.
func (e *Engine) GetTask(id string) (Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.byID[strings.TrimSpace(id)]
	if !ok {
		return Task{}, false
	}
	return snapshot(t), true
}

// UpdateStatus moves a task to status to.
//
// A terminal task is left untouched and the call reports OutcomeTerminal; an
// unknown id is logged as a warning and reports OutcomeUnknown. Neither is an
// error. The only error is a target status that is not in_progress,
// completed or failed.
func (e *Engine) UpdateStatus(id string, to Status) (Transition, error) {
	id = strings.TrimSpace(id)
	tr := Transition{ID: id, To: to}
	if !to.isTarget() {
		return tr, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}

	e.mu.Lock()
	t, ok := e.byID[id]
	if !ok {
		e.mu.Unlock()
		tr.Outcome = OutcomeUnknown
		e.logger.Warn("status update for unknown task id", zap.String("id", id), zap.String("to", string(to)))
		return tr, nil
	}
	tr.From = t.Status
	if t.Status.IsTerminal() {
		e.mu.Unlock()
		tr.Outcome = OutcomeTerminal
		e.logger.Debug("status update ignored on terminal task",
			zap.String("id", id), zap.String("status", string(tr.From)), zap.String("to", string(to)))
		return tr, nil
	}
	t.Status = to
	t.UpdatedAt = e.now()
	entry := e.recordLocked(id, ActionUpdated, tr.From, to, "")
	e.mu.Unlock()

	tr.Outcome = OutcomeApplied
	e.logger.Info("task status updated",
		zap.String("id", id), zap.String("from", string(tr.From)), zap.String("to", string(to)))
	e.appendJournal([]HistoryEntry{entry})
	return tr, nil
}

// UpdateStatuses applies UpdateStatus to every id, in order. Unknown or
// terminal ids never stop the batch.
func (e *Engine) UpdateStatuses(ids []string, to Status) ([]Transition, error) {
	if !to.isTarget() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	out := make([]Transition, 0, len(ids))
	for _, id := range ids {
		tr, _ := e.UpdateStatus(id, to)
		out = append(out, tr)
	}
	return out, nil
}

// History returns every change recorded so far, oldest first.
func (e *Engine) History() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]HistoryEntry(nil), e.history...)
}

// StatusText renders the current task list; see Render.
func (e *Engine) StatusText() string {
	return Render(e.GetAllTasks())
}

// Warnings describes the transitions that referenced unknown ids.
func Warnings(trs []Transition) []string {
	var out []string
	for _, tr := range trs {
		if tr.Outcome == OutcomeUnknown {
			out = append(out, fmt.Sprintf("unknown task id %q (wanted %s)", tr.ID, tr.To))
		}
	}
	return out
}

func snapshot(t *Task) Task {
	c := *t
	if t.Dependencies != nil {
		c.Dependencies = append([]string(nil), t.Dependencies...)
	}
	return c
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
