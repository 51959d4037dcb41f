// Package tasks owns the task graph of one job: task records, their status
// transitions and the history of every change.
package tasks

import (
	"errors"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// isTarget reports whether s may be requested by UpdateStatus.
func (s Status) isTarget() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// ErrInvalidStatus is returned when an update asks for a status that is not a
// legal transition target.
var ErrInvalidStatus = errors.New("invalid target status")

// Task is one record of the task graph. Values handed out by the engine are
// snapshots; mutating them has no effect on the engine.
type Task struct {
	ID           string    `json:"id"`
	Description  string    `json:"description"`
	Status       Status    `json:"status"`
	Priority     int       `json:"priority"` // lower runs earlier
	Dependencies []string  `json:"dependencies,omitempty"`
	AssignedTo   string    `json:"assigned_to"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Spec describes a single task to add.
type Spec struct {
	Description  string
	Priority     int
	Dependencies []string
	AssignedTo   string // engine default when empty
}

// Outcome classifies what an UpdateStatus call did.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"  // status changed
	OutcomeTerminal Outcome = "terminal" // task already completed/failed; no-op
	OutcomeUnknown  Outcome = "unknown"  // no task with that id; no-op
)

// Transition reports the result of one status update.
type Transition struct {
	ID      string  `json:"id"`
	From    Status  `json:"from,omitempty"`
	To      Status  `json:"to"`
	Outcome Outcome `json:"outcome"`
}

// Action names a history entry kind.
type Action string

const (
	ActionAdded   Action = "added"
	ActionUpdated Action = "updated"
)

// HistoryEntry is one change to the task graph.
type HistoryEntry struct {
	Seq         int64     `json:"seq"`
	JobID       string    `json:"job_id"`
	TaskID      string    `json:"task_id"`
	Action      Action    `json:"action"`
	From        Status    `json:"from,omitempty"`
	To          Status    `json:"to"`
	Description string    `json:"description,omitempty"`
	At          time.Time `json:"at"`
}

// Journal persists history entries. Append is called outside the engine
// lock, in sequence order per call.
type Journal interface {
	Append(entries ...HistoryEntry) error
}
