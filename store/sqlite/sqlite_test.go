package sqlite_test

import (
	"context"
	"testing"

	"github.com/carepoint/booking-engine/catalog"
	"github.com/carepoint/booking-engine/factory"
	"github.com/carepoint/booking-engine/generic"
	"github.com/carepoint/booking-engine/pricing"
	"github.com/carepoint/booking-engine/store/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SeedAndList(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SeedTasks(ctx, catalog.DefaultTasks()))

	tasks, err := s.ListActiveTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, len(catalog.DefaultTasks()))

	byID := make(map[string]catalog.Task)
	for _, task := range tasks {
		byID[task.ID] = task
	}
	discharge := byID[catalog.DefaultHospitalDischargeID]
	assert.Equal(t, catalog.CategoryHospitalDischarge, discharge.Category)
	assert.True(t, discharge.RequiresDischargeUpload)
	assert.True(t, discharge.BaseCost.Equal(decimal.NewFromInt(55)))
	assert.Equal(t, 180, discharge.IncludedMinutes)
}

func TestStore_SaveTaskUpserts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	task := catalog.Task{ID: "t1", Name: "Bathing", IncludedMinutes: 30, BaseCost: decimal.NewFromInt(35), Category: catalog.CategoryStandard}
	require.NoError(t, s.SaveTask(ctx, task))

	task.BaseCost = decimal.RequireFromString("37.50")
	task.ApplyHST = true
	require.NoError(t, s.SaveTask(ctx, task))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.BaseCost.Equal(decimal.RequireFromString("37.5")))
	assert.True(t, got.ApplyHST)

	n, err := s.CountTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_DeleteTaskDeactivates(t *testing.T) {
	// GIVEN: One saved task
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveTask(ctx, catalog.Task{ID: "t1", Name: "Bathing", IncludedMinutes: 30, BaseCost: decimal.NewFromInt(35)}))

	// WHEN: It is deleted
	require.NoError(t, s.DeleteTask(ctx, "t1"))

	// THEN: It no longer lists, and a second delete reports not found
	tasks, err := s.ListActiveTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, s.DeleteTask(ctx, "t1"), generic.ErrTaskNotFound)

	// Saving again reactivates it
	require.NoError(t, s.SaveTask(ctx, catalog.Task{ID: "t1", Name: "Bathing", IncludedMinutes: 30, BaseCost: decimal.NewFromInt(35)}))
	got, err = s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestStore_Settings(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, "k", []byte(`{"a":1}`)))
	require.NoError(t, s.Put(ctx, "k", []byte(`{"a":2}`)))

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"a":2}`, string(v))

	require.NoError(t, s.Delete(ctx, "k"))
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_BacksCatalogAndPolicy(t *testing.T) {
	// GIVEN: A catalog and policy repository over the same database
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SeedTasks(ctx, catalog.DefaultTasks()))

	tasks := catalog.New(s)
	policies := factory.NewPolicyRepository(s)
	fee := decimal.NewFromInt(30)
	require.NoError(t, policies.SavePolicy(ctx, pricing.PolicyOverride{MinimumBookingFee: &fee}))

	// WHEN: A task is added through the catalog
	added, err := tasks.AddTask(ctx, catalog.Task{Name: "Foot Care", IncludedMinutes: 30, BaseCost: decimal.NewFromInt(40)})
	require.NoError(t, err)

	// THEN: The row is persisted and the override survives
	got, err := s.GetTask(ctx, added.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Foot Care", got.Name)

	o, err := policies.LoadPolicy(ctx)
	require.NoError(t, err)
	require.NotNil(t, o.MinimumBookingFee)
	assert.True(t, o.MinimumBookingFee.Equal(fee))
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SeedTasks(ctx, catalog.DefaultTasks()))
	require.NoError(t, s.Put(ctx, generic.KeySurgeRules, []byte(`[]`)))

	require.NoError(t, s.Reset(ctx))

	n, err := s.CountTasks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, found, err := s.Get(ctx, generic.KeySurgeRules)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_BaseCostStoredExactly(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveTask(ctx, catalog.Task{ID: "t1", Name: "Bathing", IncludedMinutes: 30, BaseCost: decimal.RequireFromString("35.125")}))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "35.125", got.BaseCost.String())
}

func TestStore_CatalogEditOnEmptyStoreKeepsDefaults(t *testing.T) {
	// GIVEN: An empty database serving the built-in catalog
	ctx := context.Background()
	s := newStore(t)
	c := catalog.New(s)
	require.Len(t, c.GetTasks(ctx), len(catalog.DefaultTasks()))

	// WHEN: One built-in task is edited
	edited, err := c.GetTaskByID(ctx, catalog.DefaultPersonalCareID)
	require.NoError(t, err)
	edited.BaseCost = decimal.NewFromInt(38)
	_, err = c.UpdateTask(ctx, edited)
	require.NoError(t, err)

	// THEN: Every built-in task is persisted, with the edit applied
	n, err := s.CountTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(catalog.DefaultTasks()), n)

	got, err := s.GetTask(ctx, catalog.DefaultPersonalCareID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.BaseCost.Equal(decimal.NewFromInt(38)))

	discharge, err := c.GetTaskByID(ctx, catalog.DefaultHospitalDischargeID)
	require.NoError(t, err)
	assert.True(t, discharge.RequiresDischargeUpload)
}
