package catalog_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carepoint/booking-engine/catalog"
	"github.com/carepoint/booking-engine/generic"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeSource is an in-memory TaskSource + TaskWriter that counts reads.
type fakeSource struct {
	mu    sync.Mutex
	tasks map[string]catalog.Task
	order []string
	err   error
	reads int
}

func newFakeSource(tasks ...catalog.Task) *fakeSource {
	s := &fakeSource{tasks: map[string]catalog.Task{}}
	for _, t := range tasks {
		s.tasks[t.ID] = t
		s.order = append(s.order, t.ID)
	}
	return s
}

func (s *fakeSource) ListActiveTasks(context.Context) ([]catalog.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	var out []catalog.Task
	for _, id := range s.order {
		if t, ok := s.tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeSource) SaveTask(_ context.Context, t catalog.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *fakeSource) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return generic.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// seedingSource adds the optional batch, count and lookup methods.
type seedingSource struct {
	*fakeSource
	seeds int
}

func (s *seedingSource) SeedTasks(ctx context.Context, tasks []catalog.Task) error {
	s.seeds++
	for _, t := range tasks {
		if err := s.SaveTask(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *seedingSource) CountTasks(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks), nil
}

func (s *seedingSource) GetTask(_ context.Context, id string) (*catalog.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// readOnlySource only implements TaskSource.
type readOnlySource struct{ tasks []catalog.Task }

func (s readOnlySource) ListActiveTasks(context.Context) ([]catalog.Task, error) {
	return s.tasks, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func task(id string, minutes int, cost int64) catalog.Task {
	return catalog.Task{
		ID:              id,
		Name:            "Task " + id,
		IncludedMinutes: minutes,
		BaseCost:        decimal.NewFromInt(cost),
		Category:        catalog.CategoryStandard,
	}
}

// =============================================================================
// CACHE AND FALLBACK
// =============================================================================

func TestGetTasks_CachesForTTL(t *testing.T) {
	// GIVEN: A source with one task and a controllable clock
	src := newFakeSource(task("bath", 30, 35))
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := catalog.New(src, catalog.WithClock(clock.Now))
	ctx := context.Background()

	// WHEN: Reading twice within the TTL
	c.GetTasks(ctx)
	c.GetTasks(ctx)

	// THEN: The source was read once
	assert.Equal(t, 1, src.reads)

	// WHEN: The TTL passes
	clock.Advance(catalog.DefaultTTL)
	c.GetTasks(ctx)

	// THEN: The source is read again
	assert.Equal(t, 2, src.reads)
}

func TestGetTasks_FallsBackOnError(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("connection refused")
	c := catalog.New(src)

	tasks := c.GetTasks(context.Background())

	assert.Len(t, tasks, 9)
	assert.Equal(t, catalog.DefaultTasks(), tasks)
}

func TestGetTasks_FallsBackOnEmpty_AndDoesNotCacheDefaults(t *testing.T) {
	// GIVEN: An empty source
	src := newFakeSource()
	c := catalog.New(src)
	ctx := context.Background()

	// WHEN: Reading
	tasks := c.GetTasks(ctx)

	// THEN: Built-in defaults
	assert.Len(t, tasks, 9)

	// WHEN: A task appears in the source
	require.NoError(t, src.SaveTask(ctx, task("new", 30, 40)))

	// THEN: The next read sees it, because the defaults were never cached
	tasks = c.GetTasks(ctx)
	require.Len(t, tasks, 1)
	assert.Equal(t, "new", tasks[0].ID)
}

func TestGetTasks_NilSourceServesDefaults(t *testing.T) {
	c := catalog.New(nil)
	assert.Len(t, c.GetTasks(context.Background()), 9)
}

func TestGetTasks_ReturnsCopies(t *testing.T) {
	c := catalog.New(newFakeSource(task("bath", 30, 35)))
	ctx := context.Background()

	tasks := c.GetTasks(ctx)
	tasks[0].Name = "mutated"

	assert.Equal(t, "Task bath", c.GetTasks(ctx)[0].Name)
}

func TestRefresh_KeepsCacheOnFailure(t *testing.T) {
	src := newFakeSource(task("bath", 30, 35))
	c := catalog.New(src)
	ctx := context.Background()
	c.GetTasks(ctx)

	src.err = errors.New("timeout")
	err := c.Refresh(ctx)

	assert.ErrorIs(t, err, generic.ErrSourceUnavailable)
	assert.Equal(t, "bath", c.GetTasks(ctx)[0].ID)
}

// =============================================================================
// SHARED CACHE TIER
// =============================================================================

type fakeShared struct {
	tasks       []catalog.Task
	sets        int
	invalidated int
}

func (f *fakeShared) GetTasks(context.Context) ([]catalog.Task, bool, error) {
	return f.tasks, f.tasks != nil, nil
}

func (f *fakeShared) SetTasks(_ context.Context, tasks []catalog.Task, _ time.Duration) error {
	f.tasks = tasks
	f.sets++
	return nil
}

func (f *fakeShared) InvalidateTasks(context.Context) error {
	f.tasks = nil
	f.invalidated++
	return nil
}

func TestSharedCache_ReadThrough(t *testing.T) {
	ctx := context.Background()
	shared := &fakeShared{}
	src := newFakeSource(task("bath", 30, 35))

	// GIVEN: Process A populates the shared tier
	a := catalog.New(src, catalog.WithSharedCache(shared))
	a.GetTasks(ctx)
	assert.Equal(t, 1, shared.sets)

	// WHEN: Process B reads
	b := catalog.New(src, catalog.WithSharedCache(shared))
	tasks := b.GetTasks(ctx)

	// THEN: It is served from the shared tier without touching the source
	assert.Equal(t, 1, src.reads)
	assert.Equal(t, "bath", tasks[0].ID)
}

func TestSharedCache_InvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	shared := &fakeShared{}
	c := catalog.New(newFakeSource(task("bath", 30, 35)), catalog.WithSharedCache(shared))
	c.GetTasks(ctx)

	_, err := c.AddTask(ctx, task("walk", 60, 30))
	require.NoError(t, err)

	assert.Equal(t, 1, shared.invalidated)
	assert.Len(t, c.GetTasks(ctx), 2)
}

// =============================================================================
// CRUD
// =============================================================================

func TestAddTask_AssignsIDAndInvalidates(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(task("bath", 30, 35))
	c := catalog.New(src)
	c.GetTasks(ctx)

	added, err := c.AddTask(ctx, catalog.Task{Name: "Laundry", IncludedMinutes: 45, BaseCost: decimal.NewFromInt(33)})
	require.NoError(t, err)

	assert.NotEmpty(t, added.ID)
	assert.Equal(t, catalog.CategoryStandard, added.Category)
	got, err := c.GetTaskByID(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "Laundry", got.Name)
}

func TestAddTask_Validation(t *testing.T) {
	c := catalog.New(newFakeSource())
	ctx := context.Background()

	tests := []struct {
		name string
		task catalog.Task
	}{
		{"missing name", catalog.Task{IncludedMinutes: 30, BaseCost: decimal.NewFromInt(30)}},
		{"negative minutes", catalog.Task{Name: "x", IncludedMinutes: -1, BaseCost: decimal.NewFromInt(30)}},
		{"negative cost", catalog.Task{Name: "x", IncludedMinutes: 30, BaseCost: decimal.NewFromInt(-5)}},
		{"unknown category", catalog.Task{Name: "x", Category: "spa-day"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.AddTask(ctx, tt.task)
			assert.ErrorIs(t, err, generic.ErrInvalidTask)
			assert.True(t, generic.IsClientError(err))
		})
	}
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	c := catalog.New(newFakeSource(task("bath", 30, 35)))

	updated := task("bath", 45, 38)
	_, err := c.UpdateTask(ctx, updated)
	require.NoError(t, err)

	got, err := c.GetTaskByID(ctx, "bath")
	require.NoError(t, err)
	assert.Equal(t, 45, got.IncludedMinutes)
	assert.True(t, decimal.NewFromInt(38).Equal(got.BaseCost))

	_, err = c.UpdateTask(ctx, task("missing", 30, 30))
	assert.ErrorIs(t, err, generic.ErrTaskNotFound)
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()
	c := catalog.New(newFakeSource(task("bath", 30, 35), task("walk", 60, 30)))

	require.NoError(t, c.DeleteTask(ctx, "bath"))

	_, err := c.GetTaskByID(ctx, "bath")
	assert.ErrorIs(t, err, generic.ErrTaskNotFound)
	assert.ErrorIs(t, c.DeleteTask(ctx, "bath"), generic.ErrTaskNotFound)
}

func TestWrites_ReadOnlySource(t *testing.T) {
	c := catalog.New(readOnlySource{tasks: []catalog.Task{task("bath", 30, 35)}})

	_, err := c.AddTask(context.Background(), task("walk", 60, 30))
	assert.ErrorIs(t, err, generic.ErrReadOnlySource)
}

func TestUpdateTask_EmptySourceKeepsBuiltInCatalog(t *testing.T) {
	// GIVEN: An empty source, so reads serve the built-in defaults
	ctx := context.Background()
	src := newFakeSource()
	c := catalog.New(src)
	require.Len(t, c.GetTasks(ctx), 9)

	// WHEN: One default is edited
	edited, err := c.GetTaskByID(ctx, catalog.DefaultPersonalCareID)
	require.NoError(t, err)
	edited.BaseCost = decimal.NewFromInt(38)
	_, err = c.UpdateTask(ctx, edited)
	require.NoError(t, err)

	// THEN: All nine are still listed and the edit sticks
	tasks := c.GetTasks(ctx)
	assert.Len(t, tasks, 9)
	got, err := c.GetTaskByID(ctx, catalog.DefaultPersonalCareID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(38).Equal(got.BaseCost))
	assert.True(t, c.RequiresDischargeUpload(ctx, []string{catalog.DefaultHospitalDischargeID}))
}

func TestAddTask_EmptySourceSeedsOnce(t *testing.T) {
	ctx := context.Background()
	src := &seedingSource{fakeSource: newFakeSource()}
	c := catalog.New(src)

	_, err := c.AddTask(ctx, task("foot", 45, 40))
	require.NoError(t, err)
	_, err = c.AddTask(ctx, task("nails", 30, 30))
	require.NoError(t, err)

	assert.Equal(t, 1, src.seeds)
	assert.Len(t, c.GetTasks(ctx), 11)
}

func TestDeleteTask_BuiltInOnEmptySource(t *testing.T) {
	// GIVEN: An empty source listing the defaults
	ctx := context.Background()
	src := &seedingSource{fakeSource: newFakeSource()}
	c := catalog.New(src)

	// WHEN: A listed default is deleted
	require.NoError(t, c.DeleteTask(ctx, catalog.DefaultCompanionshipID))

	// THEN: Only that one is gone
	tasks := c.GetTasks(ctx)
	assert.Len(t, tasks, 8)
	_, err := c.GetTaskByID(ctx, catalog.DefaultCompanionshipID)
	assert.ErrorIs(t, err, generic.ErrTaskNotFound)
}

func TestUpdateTask_ChecksSourceDirectly(t *testing.T) {
	// GIVEN: A cached catalog, then a row removed behind its back
	ctx := context.Background()
	src := &seedingSource{fakeSource: newFakeSource(task("bath", 30, 35), task("walk", 60, 30))}
	c := catalog.New(src)
	c.GetTasks(ctx)
	require.NoError(t, src.fakeSource.DeleteTask(ctx, "bath"))

	// WHEN / THEN: The update is rejected even though the cache still lists it
	_, err := c.UpdateTask(ctx, task("bath", 45, 38))
	assert.ErrorIs(t, err, generic.ErrTaskNotFound)
}

// =============================================================================
// LOCKING
// =============================================================================

// blockingSource holds every read until release is closed.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	reads   atomic.Int32
	tasks   []catalog.Task
}

func (s *blockingSource) ListActiveTasks(context.Context) ([]catalog.Task, error) {
	s.reads.Add(1)
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.tasks, nil
}

func TestGetTasks_SlowSourceDoesNotHoldCacheLock(t *testing.T) {
	// GIVEN: A read stuck in the source
	ctx := context.Background()
	src := &blockingSource{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		tasks:   []catalog.Task{task("bath", 30, 35)},
	}
	c := catalog.New(src)

	read := make(chan []catalog.Task)
	go func() { read <- c.GetTasks(ctx) }()
	<-src.entered

	// WHEN: Another caller invalidates meanwhile
	done := make(chan struct{})
	go func() {
		c.Invalidate(ctx)
		close(done)
	}()

	// THEN: It does not wait for the source
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Invalidate blocked behind a source read")
	}

	close(src.release)
	assert.Len(t, <-read, 1)

	// AND: The read that started before the invalidation was not cached
	c.GetTasks(ctx)
	assert.Equal(t, int32(2), src.reads.Load())
}

// =============================================================================
// DERIVED HELPERS
// =============================================================================

func TestGetServiceCategoryForTasks_Priority(t *testing.T) {
	c := catalog.New(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		ids  []string
		want catalog.ServiceCategory
	}{
		{"none", nil, catalog.CategoryStandard},
		{"standard only", []string{catalog.DefaultPersonalCareID}, catalog.CategoryStandard},
		{"doctor", []string{catalog.DefaultPersonalCareID, catalog.DefaultDoctorEscortID}, catalog.CategoryDoctorAppointment},
		{"discharge beats doctor", []string{catalog.DefaultDoctorEscortID, catalog.DefaultHospitalDischargeID}, catalog.CategoryHospitalDischarge},
		{"unknown ids ignored", []string{"nope"}, catalog.CategoryStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.GetServiceCategoryForTasks(ctx, tt.ids))
		})
	}
}

func TestRequiresDischargeUpload(t *testing.T) {
	c := catalog.New(nil)
	ctx := context.Background()

	assert.False(t, c.RequiresDischargeUpload(ctx, []string{catalog.DefaultPersonalCareID}))
	assert.True(t, c.RequiresDischargeUpload(ctx, []string{catalog.DefaultPersonalCareID, catalog.DefaultHospitalDischargeID}))
}

func TestSelect_CountsUnmatched(t *testing.T) {
	tasks := []catalog.Task{task("a", 30, 30), task("b", 30, 40)}

	selected, unmatched := catalog.Select(tasks, []string{"a", "x", "b", "y"})

	assert.Len(t, selected, 2)
	assert.Equal(t, 2, unmatched)
}

func TestAnyApplyHST(t *testing.T) {
	taxed := task("a", 30, 30)
	taxed.ApplyHST = true

	assert.False(t, catalog.AnyApplyHST([]catalog.Task{task("b", 30, 30)}))
	assert.True(t, catalog.AnyApplyHST([]catalog.Task{task("b", 30, 30), taxed}))
}

func TestParseServiceCategory(t *testing.T) {
	c, err := catalog.ParseServiceCategory("")
	require.NoError(t, err)
	assert.Equal(t, catalog.CategoryStandard, c)

	c, err = catalog.ParseServiceCategory("Hospital-Discharge")
	require.NoError(t, err)
	assert.Equal(t, catalog.CategoryHospitalDischarge, c)

	_, err = catalog.ParseServiceCategory("spa-day")
	assert.True(t, generic.IsClientError(err))
}
