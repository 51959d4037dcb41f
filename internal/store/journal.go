// Package store persists the task history of sageflow jobs in SQLite so a
// finished job can be inspected after the process exits.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"sageflow/internal/logging"
	"sageflow/internal/tasks"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS task_history (
	job_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	task_id TEXT NOT NULL,
	action TEXT NOT NULL,
	from_status TEXT NOT NULL DEFAULT '',
	to_status TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	at TEXT NOT NULL,
	PRIMARY KEY (job_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_task_history_task ON task_history(job_id, task_id);
`

// timestampLayout is fixed width so that text order in SQL is time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Journal is a tasks.Journal backed by a SQLite file.
type Journal struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
	logger *zap.Logger
}

var _ tasks.Journal = (*Journal)(nil)

// OpenJournal creates or opens the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps SQLITE_BUSY out of concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create task_history: %w", err)
	}

	j := &Journal{db: db, dbPath: path, logger: logging.Get(logging.CategoryStore)}
	j.logger.Debug("journal opened", zap.String("path", path))
	return j, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.dbPath }

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append writes entries in one transaction. Re-appending an entry with the
// same job and sequence number is ignored.
func (j *Journal) Append(entries ...tasks.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO task_history
		(job_id, seq, task_id, action, from_status, to_status, description, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.JobID, e.Seq, e.TaskID, string(e.Action),
			string(e.From), string(e.To), e.Description, e.At.UTC().Format(timestampLayout)); err != nil {
			return fmt.Errorf("failed to insert history entry %s/%d: %w", e.JobID, e.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	j.logger.Debug("history appended", zap.String("job", entries[0].JobID), zap.Int("entries", len(entries)))
	return nil
}

// Entries returns the recorded history of one job ordered by sequence.
func (j *Journal) Entries(jobID string) ([]tasks.HistoryEntry, error) {
	rows, err := j.db.Query(`SELECT job_id, seq, task_id, action, from_status, to_status, description, at
		FROM task_history WHERE job_id = ? ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []tasks.HistoryEntry
	for rows.Next() {
		var (
			e                    tasks.HistoryEntry
			action, from, to, at string
		)
		if err := rows.Scan(&e.JobID, &e.Seq, &e.TaskID, &action, &from, &to, &e.Description, &at); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Action = tasks.Action(action)
		e.From = tasks.Status(from)
		e.To = tasks.Status(to)
		if e.At, err = time.Parse(timestampLayout, at); err != nil {
			return nil, fmt.Errorf("bad timestamp %q for %s/%d: %w", at, e.JobID, e.Seq, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Jobs lists every job id in the journal, most recently active first.
func (j *Journal) Jobs() ([]string, error) {
	rows, err := j.db.Query(`SELECT job_id FROM task_history GROUP BY job_id ORDER BY MAX(at) DESC, job_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		jobs = append(jobs, id)
	}
	return jobs, rows.Err()
}
