package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carepoint/booking-engine/generic"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is how long a successful source read is served from memory.
const DefaultTTL = 5 * time.Minute

// =============================================================================
// COLLABORATORS
// =============================================================================

// TaskSource reads active tasks from a backing store.
type TaskSource interface {
	ListActiveTasks(ctx context.Context) ([]Task, error)
}

// TaskWriter is implemented by sources that accept writes.
type TaskWriter interface {
	SaveTask(ctx context.Context, t Task) error
	DeleteTask(ctx context.Context, id string) error
}

// TaskSeeder writes a batch of tasks in one transaction.
type TaskSeeder interface {
	SeedTasks(ctx context.Context, tasks []Task) error
}

// TaskGetter looks up one active task. A missing task is (nil, nil).
type TaskGetter interface {
	GetTask(ctx context.Context, id string) (*Task, error)
}

// TaskCounter counts active tasks.
type TaskCounter interface {
	CountTasks(ctx context.Context) (int, error)
}

// SharedCache is an optional second cache tier shared between processes.
// A miss is (nil, false, nil).
type SharedCache interface {
	GetTasks(ctx context.Context) ([]Task, bool, error)
	SetTasks(ctx context.Context, tasks []Task, ttl time.Duration) error
	InvalidateTasks(ctx context.Context) error
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is the task repository. It owns its cache; construct one per
// process and pass it by reference.
type Catalog struct {
	source TaskSource
	shared SharedCache
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu        sync.Mutex
	tasks     []Task
	fetchedAt time.Time
	gen       uint64

	// writeMu serializes commands so seeding an empty source cannot
	// interleave with another write.
	writeMu sync.Mutex
}

type Option func(*Catalog)

func WithTTL(ttl time.Duration) Option {
	return func(c *Catalog) { c.ttl = ttl }
}

func WithSharedCache(s SharedCache) Option {
	return func(c *Catalog) { c.shared = s }
}

// WithClock injects the time source used for TTL expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// New creates a Catalog. A nil source serves the built-in defaults only.
func New(source TaskSource, opts ...Option) *Catalog {
	c := &Catalog{
		source: source,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetTasks returns the current catalog. It never fails: when the source
// errors or returns nothing, the built-in defaults are returned. Source and
// shared-cache round trips run without holding the cache lock.
func (c *Catalog) GetTasks(ctx context.Context) []Task {
	c.mu.Lock()
	if c.tasks != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		tasks := cloneTasks(c.tasks)
		c.mu.Unlock()
		return tasks
	}
	gen := c.gen
	c.mu.Unlock()

	if tasks := c.readShared(ctx); len(tasks) > 0 {
		c.keep(gen, tasks)
		return cloneTasks(tasks)
	}

	tasks, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("task catalog unavailable, using built-in defaults")
		return DefaultTasks()
	}
	if len(tasks) == 0 {
		c.logger.Info().Msg("task catalog is empty, using built-in defaults")
		return DefaultTasks()
	}

	if c.keep(gen, tasks) {
		c.publish(ctx, gen, tasks)
	}
	return cloneTasks(tasks)
}

// Refresh reloads from the source, bypassing both cache tiers. On failure the
// previous cache is kept and the error returned.
func (c *Catalog) Refresh(ctx context.Context) error {
	tasks, err := c.fetch(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	if len(tasks) == 0 {
		c.tasks = nil
		c.fetchedAt = time.Time{}
	} else {
		c.store(tasks)
	}
	c.mu.Unlock()

	if len(tasks) == 0 {
		c.invalidateShared(ctx)
		return nil
	}
	c.publish(ctx, gen, tasks)
	return nil
}

// Invalidate drops both cache tiers so the next read goes to the source.
// Reads already in flight will not repopulate the cache.
func (c *Catalog) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	c.tasks = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()

	c.invalidateShared(ctx)
}

// =============================================================================
// QUERIES
// =============================================================================

func (c *Catalog) GetTaskByID(ctx context.Context, id string) (Task, error) {
	for _, t := range c.GetTasks(ctx) {
		if t.ID == id {
			return t, nil
		}
	}
	return Task{}, fmt.Errorf("%w: %s", generic.ErrTaskNotFound, id)
}

// Select resolves ids against the current catalog. See the package-level Select.
func (c *Catalog) Select(ctx context.Context, ids []string) ([]Task, int) {
	return Select(c.GetTasks(ctx), ids)
}

// RequiresDischargeUpload is true if any selected task demands it.
func (c *Catalog) RequiresDischargeUpload(ctx context.Context, ids []string) bool {
	selected, _ := c.Select(ctx, ids)
	return AnyRequiresDischargeUpload(selected)
}

// GetServiceCategoryForTasks returns the booking's category with priority
// hospital-discharge > doctor-appointment > standard.
func (c *Catalog) GetServiceCategoryForTasks(ctx context.Context, ids []string) ServiceCategory {
	selected, _ := c.Select(ctx, ids)
	return CategoryOf(selected)
}

// =============================================================================
// COMMANDS - Write through to the source, then invalidate
// =============================================================================

// AddTask validates t, assigns an id if it has none and saves it.
func (c *Catalog) AddTask(ctx context.Context, t Task) (Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Category == "" {
		t.Category = CategoryStandard
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	w, err := c.prepareWrite(ctx)
	if err != nil {
		return Task{}, err
	}
	if err := c.save(ctx, w, t); err != nil {
		return Task{}, err
	}
	return t, nil
}

// UpdateTask replaces an existing task.
func (c *Catalog) UpdateTask(ctx context.Context, t Task) (Task, error) {
	if t.Category == "" {
		t.Category = CategoryStandard
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	w, err := c.prepareWrite(ctx)
	if err != nil {
		return Task{}, err
	}
	if err := c.exists(ctx, t.ID); err != nil {
		return Task{}, err
	}
	if err := c.save(ctx, w, t); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (c *Catalog) DeleteTask(ctx context.Context, id string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	w, err := c.prepareWrite(ctx)
	if err != nil {
		return err
	}
	if err := w.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.Invalidate(ctx)
	return nil
}

func (c *Catalog) save(ctx context.Context, w TaskWriter, t Task) error {
	if err := w.SaveTask(ctx, t); err != nil {
		return err
	}
	c.Invalidate(ctx)
	return nil
}

// prepareWrite returns the source's writer. An empty source is first seeded
// with the built-in defaults it has been serving, so a write edits that
// catalog instead of replacing it. Callers hold c.writeMu.
func (c *Catalog) prepareWrite(ctx context.Context) (TaskWriter, error) {
	w, err := c.writer()
	if err != nil {
		return nil, err
	}
	n, err := c.countActive(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return w, nil
	}

	defaults := DefaultTasks()
	if seeder, ok := c.source.(TaskSeeder); ok {
		err = seeder.SeedTasks(ctx, defaults)
	} else {
		for _, t := range defaults {
			if err = w.SaveTask(ctx, t); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("seed built-in tasks: %w", err)
	}
	c.logger.Info().Int("tasks", len(defaults)).Msg("seeded empty task catalog with built-in defaults")
	c.Invalidate(ctx)
	return w, nil
}

func (c *Catalog) countActive(ctx context.Context) (int, error) {
	if counter, ok := c.source.(TaskCounter); ok {
		n, err := counter.CountTasks(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", generic.ErrSourceUnavailable, err)
		}
		return n, nil
	}
	tasks, err := c.fetch(ctx)
	return len(tasks), err
}

// exists asks the source directly when it can, bypassing the cache.
func (c *Catalog) exists(ctx context.Context, id string) error {
	getter, ok := c.source.(TaskGetter)
	if !ok {
		_, err := c.GetTaskByID(ctx, id)
		return err
	}
	t, err := getter.GetTask(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", generic.ErrSourceUnavailable, err)
	}
	if t == nil {
		return fmt.Errorf("%w: %s", generic.ErrTaskNotFound, id)
	}
	return nil
}

func (c *Catalog) writer() (TaskWriter, error) {
	w, ok := c.source.(TaskWriter)
	if !ok {
		return nil, generic.ErrReadOnlySource
	}
	return w, nil
}

// =============================================================================
// CACHE INTERNALS
// =============================================================================

func (c *Catalog) fetch(ctx context.Context) ([]Task, error) {
	if c.source == nil {
		return nil, nil
	}
	tasks, err := c.source.ListActiveTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", generic.ErrSourceUnavailable, err)
	}
	return tasks, nil
}

// store replaces the in-memory tier. Callers hold c.mu.
func (c *Catalog) store(tasks []Task) {
	c.tasks = cloneTasks(tasks)
	c.fetchedAt = c.now()
}

// keep stores tasks read under generation gen, unless an invalidation or
// refresh happened since.
func (c *Catalog) keep(gen uint64, tasks []Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.store(tasks)
	return true
}

// publish writes tasks to the shared tier, and takes them back out if an
// invalidation raced the write.
func (c *Catalog) publish(ctx context.Context, gen uint64, tasks []Task) {
	c.writeShared(ctx, tasks)

	c.mu.Lock()
	stale := c.gen != gen
	c.mu.Unlock()
	if stale {
		c.invalidateShared(ctx)
	}
}

func (c *Catalog) readShared(ctx context.Context) []Task {
	if c.shared == nil {
		return nil
	}
	tasks, found, err := c.shared.GetTasks(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("shared catalog cache read failed")
		return nil
	}
	if !found {
		return nil
	}
	return tasks
}

func (c *Catalog) writeShared(ctx context.Context, tasks []Task) {
	if c.shared == nil {
		return
	}
	if err := c.shared.SetTasks(ctx, tasks, c.ttl); err != nil {
		c.logger.Warn().Err(err).Msg("shared catalog cache write failed")
	}
}

func (c *Catalog) invalidateShared(ctx context.Context) {
	if c.shared == nil {
		return
	}
	if err := c.shared.InvalidateTasks(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("shared catalog cache invalidate failed")
	}
}
