/*
Package postgres provides a PostgreSQL-backed task catalog and settings store.

PURPOSE:
  The production home of the task catalog. The booking engine only ever
  reads active rows; admin writes go through catalog.Catalog so the cache
  is invalidated afterwards.

INTERFACES IMPLEMENTED:
  catalog.TaskSource, catalog.TaskWriter, generic.KeyValueStore

QUERY BUILDING:
  Statements are built with goqu's postgres dialect in prepared mode, so
  values travel as $n arguments and never as literals. Execution goes
  through a pgx connection pool.

USAGE:
  store, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  if err := store.Migrate(ctx); err != nil {
      log.Fatal(err)
  }

SEE ALSO:
  - store/sqlite: Same contract for single-node deployments
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carepoint/booking-engine/catalog"
	"github.com/carepoint/booking-engine/generic"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	tasksTable    = "tasks"
	settingsTable = "settings"
)

var dialect = goqu.Dialect("postgres")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		task_name TEXT NOT NULL,
		included_minutes INTEGER NOT NULL CHECK (included_minutes >= 0),
		base_cost NUMERIC NOT NULL,
		is_hospital_doctor BOOLEAN NOT NULL DEFAULT FALSE,
		service_category TEXT NOT NULL DEFAULT 'standard',
		requires_discharge_upload BOOLEAN NOT NULL DEFAULT FALSE,
		apply_hst BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_active ON tasks (active, task_name)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Store implements the catalog and settings interfaces on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New connects to dsn and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return nil
}

// =============================================================================
// TASK CATALOG
// =============================================================================

func (s *Store) ListActiveTasks(ctx context.Context) ([]catalog.Task, error) {
	query, args, err := listActiveTasksQuery()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
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

// GetTask returns an active task, or nil when there is none.
func (s *Store) GetTask(ctx context.Context, id string) (*catalog.Task, error) {
	query, args, err := getTaskQuery(id)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	t, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CountTasks returns the number of active tasks.
func (s *Store) CountTasks(ctx context.Context) (int, error) {
	query, args, err := countActiveTasksQuery()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) SaveTask(ctx context.Context, t catalog.Task) error {
	query, args, err := upsertTaskQuery(t, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}
	_, err = s.pool.Exec(ctx, query, args...)
	return err
}

// SeedTasks upserts tasks in one transaction.
func (s *Store) SeedTasks(ctx context.Context, tasks []catalog.Task) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		now := s.now().UTC()
		for _, t := range tasks {
			query, args, err := upsertTaskQuery(t, now)
			if err != nil {
				return fmt.Errorf("failed to build upsert: %w", err)
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteTask deactivates a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	query, args, err := deactivateTaskQuery(id, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", generic.ErrTaskNotFound, id)
	}
	return nil
}

// =============================================================================
// SETTINGS (KeyValueStore)
// =============================================================================

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query, args, err := getSettingQuery(key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build query: %w", err)
	}

	var value string
	err = s.pool.QueryRow(ctx, query, args...).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	query, args, err := putSettingQuery(key, value, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}
	_, err = s.pool.Exec(ctx, query, args...)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	query, args, err := dialect.Delete(settingsTable).Prepared(true).
		Where(goqu.Ex{"key": key}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	_, err = s.pool.Exec(ctx, query, args...)
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, table := range []string{tasksTable, settingsTable} {
			query, args, err := dialect.Delete(table).Prepared(true).ToSQL()
			if err != nil {
				return fmt.Errorf("failed to build delete: %w", err)
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// QUERY BUILDERS
// =============================================================================

func taskColumns() []any {
	return []any{
		"id", "task_name", "included_minutes", goqu.L("base_cost::text"),
		"is_hospital_doctor", "service_category", "requires_discharge_upload", "apply_hst",
	}
}

func listActiveTasksQuery() (string, []any, error) {
	return dialect.From(tasksTable).Prepared(true).
		Select(taskColumns()...).
		Where(goqu.Ex{"active": true}).
		Order(goqu.I("task_name").Asc(), goqu.I("id").Asc()).
		ToSQL()
}

func countActiveTasksQuery() (string, []any, error) {
	return dialect.From(tasksTable).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.Ex{"active": true}).
		ToSQL()
}

func getTaskQuery(id string) (string, []any, error) {
	return dialect.From(tasksTable).Prepared(true).
		Select(taskColumns()...).
		Where(goqu.Ex{"id": id, "active": true}).
		ToSQL()
}

func upsertTaskQuery(t catalog.Task, now time.Time) (string, []any, error) {
	record := goqu.Record{
		"id":                        t.ID,
		"task_name":                 t.Name,
		"included_minutes":          t.IncludedMinutes,
		"base_cost":                 t.BaseCost.String(),
		"is_hospital_doctor":        t.IsHospitalDoctor,
		"service_category":          string(t.Category),
		"requires_discharge_upload": t.RequiresDischargeUpload,
		"apply_hst":                 t.ApplyHST,
		"active":                    true,
		"created_at":                now,
		"updated_at":                now,
	}
	update := goqu.Record{
		"task_name":                 goqu.L("EXCLUDED.task_name"),
		"included_minutes":          goqu.L("EXCLUDED.included_minutes"),
		"base_cost":                 goqu.L("EXCLUDED.base_cost"),
		"is_hospital_doctor":        goqu.L("EXCLUDED.is_hospital_doctor"),
		"service_category":          goqu.L("EXCLUDED.service_category"),
		"requires_discharge_upload": goqu.L("EXCLUDED.requires_discharge_upload"),
		"apply_hst":                 goqu.L("EXCLUDED.apply_hst"),
		"active":                    true,
		"updated_at":                goqu.L("EXCLUDED.updated_at"),
	}
	return dialect.Insert(tasksTable).Prepared(true).
		Rows(record).
		OnConflict(goqu.DoUpdate("id", update)).
		ToSQL()
}

func deactivateTaskQuery(id string, now time.Time) (string, []any, error) {
	return dialect.Update(tasksTable).Prepared(true).
		Set(goqu.Record{"active": false, "updated_at": now}).
		Where(goqu.Ex{"id": id, "active": true}).
		ToSQL()
}

func getSettingQuery(key string) (string, []any, error) {
	return dialect.From(settingsTable).Prepared(true).
		Select(goqu.L("value::text")).
		Where(goqu.Ex{"key": key}).
		ToSQL()
}

func putSettingQuery(key string, value []byte, now time.Time) (string, []any, error) {
	return dialect.Insert(settingsTable).Prepared(true).
		Rows(goqu.Record{"key": key, "value": string(value), "updated_at": now}).
		OnConflict(goqu.DoUpdate("key", goqu.Record{
			"value":      goqu.L("EXCLUDED.value"),
			"updated_at": goqu.L("EXCLUDED.updated_at"),
		})).
		ToSQL()
}

func scanTask(row pgx.Row) (catalog.Task, error) {
	var t catalog.Task
	var baseCost, category string
	if err := row.Scan(&t.ID, &t.Name, &t.IncludedMinutes, &baseCost, &t.IsHospitalDoctor,
		&category, &t.RequiresDischargeUpload, &t.ApplyHST); err != nil {
		return catalog.Task{}, err
	}
	t.BaseCost = generic.MustParseDecimal(baseCost)
	c, err := catalog.ParseServiceCategory(category)
	if err != nil {
		c = catalog.CategoryStandard
	}
	t.Category = c
	return t, nil
}
