/*
Package sqlite provides a SQLite-backed task catalog and settings store.

PURPOSE:
  Implements the persistence interfaces the booking engine consumes using
  SQLite. In production the catalog usually lives in PostgreSQL (see
  store/postgres); SQLite is the single-node and development default.

INTERFACES IMPLEMENTED:
  catalog.TaskSource:     Active task rows
  catalog.TaskWriter:     Task upsert and soft delete
  generic.KeyValueStore:  Settings blobs (pricing override, surge rules)

KEY TABLES:
  tasks:    Billable task definitions. Deleting a task clears its active
            flag so historical bookings can still resolve the row.
  settings: Opaque JSON blobs by key, last write wins.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. An in-memory database is pinned to a
  single connection, since every new connection would open an empty one.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block the
  single writer.

USAGE:
  store, err := sqlite.New("./data/booking.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  tasks := catalog.New(store)
  policies := factory.NewPolicyRepository(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - catalog/catalog.go: TaskSource and TaskWriter
  - generic/store.go: KeyValueStore
  - generic/store/memory.go: In-memory KeyValueStore for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/carepoint/booking-engine/catalog"
	"github.com/carepoint/booking-engine/generic"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements the catalog and settings interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Billable task catalog
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		task_name TEXT NOT NULL,
		included_minutes INTEGER NOT NULL CHECK (included_minutes >= 0),
		base_cost TEXT NOT NULL,
		is_hospital_doctor INTEGER NOT NULL DEFAULT 0,
		service_category TEXT NOT NULL DEFAULT 'standard',
		requires_discharge_upload INTEGER NOT NULL DEFAULT 0,
		apply_hst INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_active
		ON tasks(active, task_name);

	-- Settings blobs (pricing policy override, surge schedule rules)
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TASK CATALOG
// =============================================================================

const taskColumns = `id, task_name, included_minutes, base_cost, is_hospital_doctor,
	service_category, requires_discharge_upload, apply_hst`

// ListActiveTasks returns active tasks ordered by name.
func (s *Store) ListActiveTasks(ctx context.Context) ([]catalog.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE active = 1 ORDER BY task_name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []catalog.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask retrieves an active task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*catalog.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND active = 1", id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveTask inserts or replaces a task and marks it active.
func (s *Store) SaveTask(ctx context.Context, t catalog.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveTask(ctx, s.db, t)
}

// SeedTasks saves tasks in one transaction, e.g. to load the defaults.
func (s *Store) SeedTasks(ctx context.Context, tasks []catalog.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if err := saveTask(ctx, tx, t); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// DeleteTask deactivates a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET active = 0, updated_at = ? WHERE id = ? AND active = 1",
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrTaskNotFound, id)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveTask(ctx context.Context, db execer, t catalog.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task_name = excluded.task_name,
			included_minutes = excluded.included_minutes,
			base_cost = excluded.base_cost,
			is_hospital_doctor = excluded.is_hospital_doctor,
			service_category = excluded.service_category,
			requires_discharge_upload = excluded.requires_discharge_upload,
			apply_hst = excluded.apply_hst,
			active = 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, query,
		t.ID, t.Name, t.IncludedMinutes, t.BaseCost.String(), t.IsHospitalDoctor,
		string(t.Category), t.RequiresDischargeUpload, t.ApplyHST,
		now, now,
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (catalog.Task, error) {
	var t catalog.Task
	var baseCost, category string
	if err := row.Scan(&t.ID, &t.Name, &t.IncludedMinutes, &baseCost, &t.IsHospitalDoctor,
		&category, &t.RequiresDischargeUpload, &t.ApplyHST); err != nil {
		return catalog.Task{}, err
	}
	t.BaseCost = generic.MustParseDecimal(baseCost)
	t.Category = parseCategory(category)
	return t, nil
}

// parseCategory maps unknown stored categories to standard rather than
// dropping the row.
func parseCategory(s string) catalog.ServiceCategory {
	c, err := catalog.ParseServiceCategory(s)
	if err != nil {
		return catalog.CategoryStandard
	}
	return c
}

// =============================================================================
// SETTINGS (KeyValueStore)
// =============================================================================

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(value), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"tasks", "settings"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// CountTasks returns the number of active tasks.
func (s *Store) CountTasks(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE active = 1").Scan(&n)
	return n, err
}
