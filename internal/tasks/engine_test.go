package tasks

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

func fixedClock() func() time.Time {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var n int
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestAddTasksBatchOrderAndPriority(t *testing.T) {
	e := NewEngine(WithClock(fixedClock()))

	ids := e.AddTasksBatch([]string{"A", "B", "C"})
	require.Len(t, ids, 3)

	all := e.GetAllTasks()
	require.Len(t, all, 3)
	for i, desc := range []string{"A", "B", "C"} {
		assert.Equal(t, ids[i], all[i].ID)
		assert.Equal(t, desc, all[i].Description)
		assert.Equal(t, i, all[i].Priority)
		assert.Equal(t, StatusPending, all[i].Status)
		assert.Equal(t, DefaultExecutor, all[i].AssignedTo)
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}

func TestAddTasksBatchEmpty(t *testing.T) {
	e := NewEngine()
	assert.Empty(t, e.AddTasksBatch(nil))
	assert.Empty(t, e.GetAllTasks())
	assert.Empty(t, e.History())
}

func TestAddTaskOptions(t *testing.T) {
	e := NewEngine(WithDefaultExecutor("Runner"), WithIDStyle(IDUUID))

	id := e.AddTask(Spec{Description: "ship", Priority: 4, Dependencies: []string{"x", " x", "", "y"}})
	task, ok := e.GetTask(id)
	require.True(t, ok)
	assert.Len(t, id, 36)
	assert.Equal(t, "Runner", task.AssignedTo)
	assert.Equal(t, 4, task.Priority)
	assert.Equal(t, []string{"x", "y"}, task.Dependencies)

	other := e.AddTask(Spec{Description: "named", AssignedTo: "Reviewer"})
	task, _ = e.GetTask(other)
	assert.Equal(t, "Reviewer", task.AssignedTo)
}

func TestUpdateStatusTerminalIsIdempotent(t *testing.T) {
	e := NewEngine(WithClock(fixedClock()))
	id := e.AddTasksBatch([]string{"A"})[0]

	tr, err := e.UpdateStatus(id, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, Transition{ID: id, From: StatusPending, To: StatusCompleted, Outcome: OutcomeApplied}, tr)
	first := e.GetAllTasks()

	tr, err = e.UpdateStatus(id, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTerminal, tr.Outcome)
	if diff := cmp.Diff(first, e.GetAllTasks()); diff != "" {
		t.Errorf("second update mutated state (-first +second):\n%s", diff)
	}

	tr, err = e.UpdateStatus(id, StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTerminal, tr.Outcome)
	task, _ := e.GetTask(id)
	assert.Equal(t, StatusCompleted, task.Status)
}

func TestUpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		name  string
		steps []Status
		want  Status
	}{
		{"pending_to_in_progress", []Status{StatusInProgress}, StatusInProgress},
		{"in_progress_to_failed", []Status{StatusInProgress, StatusFailed}, StatusFailed},
		{"in_progress_repeat", []Status{StatusInProgress, StatusInProgress}, StatusInProgress},
		{"failed_is_sticky", []Status{StatusFailed, StatusInProgress, StatusCompleted}, StatusFailed},
		{"direct_complete", []Status{StatusCompleted}, StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine()
			id := e.AddTask(Spec{Description: tt.name})
			for _, s := range tt.steps {
				_, err := e.UpdateStatus(id, s)
				require.NoError(t, err)
			}
			task, _ := e.GetTask(id)
			assert.Equal(t, tt.want, task.Status)
		})
	}
}

func TestUpdateStatusRejectsInvalidTarget(t *testing.T) {
	e := NewEngine()
	id := e.AddTask(Spec{Description: "A"})

	for _, to := range []Status{StatusPending, "done", ""} {
		_, err := e.UpdateStatus(id, to)
		assert.True(t, errors.Is(err, ErrInvalidStatus), "target %q", to)
	}
	_, err := e.UpdateStatuses([]string{id}, StatusPending)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	task, _ := e.GetTask(id)
	assert.Equal(t, StatusPending, task.Status)
}

func TestUpdateStatusUnknownIDWarns(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := NewEngine(WithLogger(zap.New(core)), WithClock(fixedClock()))
	e.AddTasksBatch([]string{"A", "B"})
	before := e.GetAllTasks()

	tr, err := e.UpdateStatus("does-not-exist", StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, tr.Outcome)
	assert.Empty(t, cmp.Diff(before, e.GetAllTasks()))

	warns := logs.FilterLevelExact(zapcore.WarnLevel).FilterField(zap.String("id", "does-not-exist"))
	assert.Equal(t, 1, warns.Len())
}

func TestUpdateStatusesAttemptsEveryID(t *testing.T) {
	e := NewEngine()
	ids := e.AddTasksBatch([]string{"A", "B", "C"})
	_, err := e.UpdateStatus(ids[1], StatusFailed)
	require.NoError(t, err)

	trs, err := e.UpdateStatuses([]string{"ghost", ids[0], ids[1], " " + ids[2] + " "}, StatusCompleted)
	require.NoError(t, err)

	got := make([]Outcome, len(trs))
	for i, tr := range trs {
		got[i] = tr.Outcome
	}
	assert.Equal(t, []Outcome{OutcomeUnknown, OutcomeApplied, OutcomeTerminal, OutcomeApplied}, got)
	assert.Equal(t, []string{`unknown task id "ghost" (wanted completed)`}, Warnings(trs))

	statuses := map[string]Status{}
	for _, task := range e.GetAllTasks() {
		statuses[task.Description] = task.Status
	}
	assert.Equal(t, map[string]Status{"A": StatusCompleted, "B": StatusFailed, "C": StatusCompleted}, statuses)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	e := NewEngine()
	id := e.AddTask(Spec{Description: "A", Dependencies: []string{"x"}})

	all := e.GetAllTasks()
	all[0].Status = StatusFailed
	all[0].Dependencies[0] = "mutated"

	task, _ := e.GetTask(id)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, []string{"x"}, task.Dependencies)
}

type recordingJournal struct {
	mu      sync.Mutex
	entries []HistoryEntry
	fail    error
}

func (j *recordingJournal) Append(entries ...HistoryEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entries...)
	return j.fail
}

func TestHistoryMirroredToJournal(t *testing.T) {
	j := &recordingJournal{}
	e := NewEngine(WithJournal(j), WithJobID("job-1"), WithClock(fixedClock()))

	ids := e.AddTasksBatch([]string{"A", "B"})
	_, _ = e.UpdateStatus(ids[0], StatusInProgress)
	_, _ = e.UpdateStatus(ids[0], StatusCompleted)
	_, _ = e.UpdateStatus(ids[0], StatusFailed) // terminal: not recorded
	_, _ = e.UpdateStatus("nope", StatusFailed)  // unknown: not recorded

	history := e.History()
	assert.Equal(t, history, j.entries)

	want := []HistoryEntry{
		{Seq: 1, JobID: "job-1", TaskID: "1", Action: ActionAdded, To: StatusPending, Description: "A"},
		{Seq: 2, JobID: "job-1", TaskID: "2", Action: ActionAdded, To: StatusPending, Description: "B"},
		{Seq: 3, JobID: "job-1", TaskID: "1", Action: ActionUpdated, From: StatusPending, To: StatusInProgress},
		{Seq: 4, JobID: "job-1", TaskID: "1", Action: ActionUpdated, From: StatusInProgress, To: StatusCompleted},
	}
	if diff := cmp.Diff(want, history, cmpopts.IgnoreFields(HistoryEntry{}, "At")); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestJournalFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	j := &recordingJournal{fail: errors.New("disk full")}
	e := NewEngine(WithJournal(j), WithLogger(zap.New(core)))

	ids := e.AddTasksBatch([]string{"A"})
	require.Len(t, ids, 1)
	assert.Len(t, e.History(), 1, "in-memory history survives journal failures")
	assert.Equal(t, 1, logs.FilterMessage("journal append failed").Len())
}

func TestConcurrentBatchesDoNotInterleave(t *testing.T) {
	e := NewEngine()
	const batches, size = 16, 8

	results := make([][]string, batches)
	var g errgroup.Group
	for b := 0; b < batches; b++ {
		g.Go(func() error {
			descs := make([]string, size)
			for i := range descs {
				descs[i] = fmt.Sprintf("b%d-%d", b, i)
			}
			results[b] = e.AddTasksBatch(descs)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for b, ids := range results {
		require.Len(t, ids, size)
		first, err := strconv.Atoi(ids[0])
		require.NoError(t, err)
		for i, id := range ids {
			assert.Equal(t, strconv.Itoa(first+i), id, "batch %d is contiguous", b)
			task, ok := e.GetTask(id)
			require.True(t, ok)
			assert.Equal(t, fmt.Sprintf("b%d-%d", b, i), task.Description)
		}
	}
	assert.Len(t, e.GetAllTasks(), batches*size)
}

func TestConcurrentUpdatesSameID(t *testing.T) {
	e := NewEngine()
	id := e.AddTask(Spec{Description: "contended"})

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		to := StatusCompleted
		if i%2 == 1 {
			to = StatusFailed
		}
		g.Go(func() error {
			_, err := e.UpdateStatus(id, to)
			return err
		})
	}
	require.NoError(t, g.Wait())

	task, _ := e.GetTask(id)
	assert.True(t, task.Status.IsTerminal())

	applied := 0
	for _, h := range e.History() {
		if h.Action == ActionUpdated {
			applied++
		}
	}
	assert.Equal(t, 1, applied, "exactly one update lands on a contended task")
}

func TestRender(t *testing.T) {
	assert.Equal(t, "no tasks", Render(nil))

	e := NewEngine()
	ids := e.AddTasksBatch([]string{"Fetch data", "Summarise"})
	e.AddTask(Spec{Description: "Publish", Priority: 2, Dependencies: []string{ids[0], ids[1]}})
	_, _ = e.UpdateStatus(ids[0], StatusCompleted)

	want := "- id: 1, description: Fetch data, status: completed, priority: 0\n" +
		"- id: 2, description: Summarise, status: pending, priority: 1\n" +
		"- id: 3, description: Publish, status: pending, priority: 2, dependencies: 1, 2"
	assert.Equal(t, want, e.StatusText())
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}
