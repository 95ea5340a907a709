// Package store provides the persistent task store backing the
// scheduler. The SQLite store is the durable default; the memory store
// serves tests and throwaway runs.
package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Gameaday/ia-helper-sub003/pkg/ialib"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL DEFAULT '',
	file_name TEXT NOT NULL,
	url TEXT NOT NULL,
	total_bytes INTEGER NOT NULL DEFAULT -1,
	partial_bytes INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	priority TEXT NOT NULL DEFAULT 'normal',
	retry_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	checksum TEXT NOT NULL DEFAULT '',
	scheduled_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
`

// SQLiteStore persists task records in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the task database under
// dataDir. WAL mode and a busy timeout keep concurrent daemon access
// from tripping over locks.
func OpenSQLite(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return openSQLite(filepath.Join(dataDir, "tasks.db"))
}

// OpenSQLiteDSN opens the store with a raw DSN, e.g. ":memory:" in
// tests.
func OpenSQLiteDSN(dsn string) (*SQLiteStore, error) {
	return openSQLite(dsn)
}

func openSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Not critical if the pragmas fail; defaults still work.
	db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
	`)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save atomically creates or updates one task record.
func (s *SQLiteStore) Save(t *ialib.Task) error {
	query := `INSERT INTO tasks (
		id, source, file_name, url, total_bytes, partial_bytes, status,
		priority, retry_count, error_message, checksum, scheduled_at,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		source = excluded.source,
		file_name = excluded.file_name,
		url = excluded.url,
		total_bytes = excluded.total_bytes,
		partial_bytes = excluded.partial_bytes,
		status = excluded.status,
		priority = excluded.priority,
		retry_count = excluded.retry_count,
		error_message = excluded.error_message,
		checksum = excluded.checksum,
		scheduled_at = excluded.scheduled_at,
		updated_at = excluded.updated_at`
	_, err := s.db.Exec(query,
		t.ID, t.Source, t.FileName, t.URL, t.TotalBytes, t.PartialBytes,
		string(t.Status), t.Priority.String(), t.RetryCount, t.ErrorMessage,
		t.Checksum, nullTime(t.ScheduledAt), t.CreatedAt, t.UpdatedAt)
	return err
}

const selectCols = `id, source, file_name, url, total_bytes,
	partial_bytes, status, priority, retry_count, error_message,
	checksum, scheduled_at, created_at, updated_at`

// All returns every persisted task ordered by creation time.
func (s *SQLiteStore) All() ([]*ialib.Task, error) {
	rows, err := s.db.Query(`SELECT ` + selectCols + ` FROM tasks ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*ialib.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Get returns the task with the given id, or ialib.ErrTaskNotFound.
func (s *SQLiteStore) Get(id string) (*ialib.Task, error) {
	row := s.db.QueryRow(`SELECT `+selectCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ialib.ErrTaskNotFound
	}
	return t, err
}

// Delete removes the record with the given id.
func (s *SQLiteStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// DeleteCompletedBefore removes completed records last updated before
// the cutoff and returns how many were removed.
func (s *SQLiteStore) DeleteCompletedBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(
		`DELETE FROM tasks WHERE status = ? AND updated_at < ?`,
		string(ialib.StatusCompleted), cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*ialib.Task, error) {
	var (
		t         ialib.Task
		status    string
		priority  string
		scheduled sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Source, &t.FileName, &t.URL, &t.TotalBytes,
		&t.PartialBytes, &status, &priority, &t.RetryCount, &t.ErrorMessage,
		&t.Checksum, &scheduled, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = ialib.Status(status)
	t.Priority = ialib.ParsePriority(priority)
	if scheduled.Valid {
		t.ScheduledAt = scheduled.Time
	}
	return &t, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ ialib.TaskStore = (*SQLiteStore)(nil)
