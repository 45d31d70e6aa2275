/*
handlers_test.go - HTTP tests for the booking engine API

Tests run the full router against an in-memory SQLite store with a fixed
clock (Wednesday 2025-03-12 10:00 UTC), so surge rules and scenarios are
deterministic.
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carepoint/booking-engine/catalog"
	"github.com/carepoint/booking-engine/factory"
	"github.com/carepoint/booking-engine/store/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	return newTestServerAt(t, testNow)
}

func newTestServerAt(t *testing.T, now time.Time) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store,
		WithClock(func() time.Time { return now }),
		WithLocation(time.UTC),
		WithLogger(zerolog.Nop()),
		WithLocateTimeout(50*time.Millisecond),
	)
	return h, NewRouter(h, nil)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// QUOTES
// =============================================================================

func TestCreateQuote_SingleTask(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/quotes", QuoteRequest{
		TaskIDs: []string{catalog.DefaultPersonalCareID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[PriceResultDTO](t, rec)
	assert.Equal(t, 35.0, got.Subtotal)
	assert.Equal(t, 0.0, got.SurgeAmount)
	assert.Equal(t, 35.0, got.Total)
	assert.Equal(t, 30, got.TotalMinutes)
	assert.False(t, got.MinimumFeeApplied)
	assert.Equal(t, "standard", got.ServiceCategory)
	assert.Empty(t, got.ScheduledSurgeRules)
}

func TestCreateQuote_ASAP(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/quotes", QuoteRequest{
		TaskIDs: []string{catalog.DefaultPersonalCareID},
		IsASAP:  true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[PriceResultDTO](t, rec)
	assert.Equal(t, 8.75, got.SurgeAmount)
	assert.Equal(t, 43.75, got.Total)
	assert.Equal(t, 1.25, got.EffectiveMultiplier)
}

func TestCreateQuote_ASAPDuringActiveTimeWindow(t *testing.T) {
	// GIVEN: It is 19:00 and a non-stackable 1.5x evening rule is active
	_, router := newTestServerAt(t, time.Date(2025, 3, 12, 19, 0, 0, 0, time.UTC))
	rec := do(t, router, http.MethodPut, "/api/surge/rules", `[
		{"id": "evening", "name": "Evening", "enabled": true, "multiplier": 1.5,
		 "start_time": "18:00", "end_time": "23:59"}
	]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/surge/active", nil)
	require.Equal(t, 1.5, decode[SurgeResultDTO](t, rec).Multiplier)

	// WHEN: An ASAP booking is quoted
	rec = do(t, router, http.MethodPost, "/api/quotes", QuoteRequest{
		TaskIDs: []string{catalog.DefaultPersonalCareID},
		IsASAP:  true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The active rule beats the ASAP multiplier
	got := decode[PriceResultDTO](t, rec)
	assert.Equal(t, 1.5, got.EffectiveMultiplier)
	assert.Equal(t, 52.5, got.Total)
	assert.Equal(t, []string{"Evening"}, got.ScheduledSurgeRules)
}

func TestCreateQuote_Validation(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/quotes", QuoteRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/quotes", `{"task_ids": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/quotes", QuoteRequest{
		TaskIDs: []string{catalog.DefaultPersonalCareID},
		Date:    "2025-12-25",
		Time:    "25:00",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode[ErrorResponse](t, rec).Code)
}

func TestCreateQuote_PolicyOverrideApplies(t *testing.T) {
	// GIVEN: A minimum booking fee of $50
	_, router := newTestServer(t)
	rec := do(t, router, http.MethodPut, "/api/policy", `{"minimum_booking_fee": 50}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 50.0, decode[factory.PolicyJSON](t, rec).MinimumBookingFee)

	// WHEN: A $35 booking is quoted
	rec = do(t, router, http.MethodPost, "/api/quotes", QuoteRequest{
		TaskIDs: []string{catalog.DefaultPersonalCareID},
	})

	// THEN: The fee floor applies
	got := decode[PriceResultDTO](t, rec)
	assert.Equal(t, 50.0, got.Total)
	assert.True(t, got.MinimumFeeApplied)

	// AND: Resetting the policy restores the default floor
	rec = do(t, router, http.MethodDelete, "/api/policy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 25.0, decode[factory.PolicyJSON](t, rec).MinimumBookingFee)
}

func TestUpdatePolicy_Invalid(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPut, "/api/policy", `{"overtime_block_minutes": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SHIFT COMPLETION
// =============================================================================

func TestCalculateOvertime(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/overtime", OvertimeRequest{
		ScheduledEnd: "14:00", ActualSignOut: "14:20", HourlyRate: 35,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[OvertimeDTO](t, rec)
	assert.Equal(t, 20, got.OvertimeMinutes)
	assert.False(t, got.WithinGracePeriod)
	assert.Equal(t, 1, got.Blocks)
	assert.InDelta(t, 4.375, got.Charge, 0.0001)
}

func TestCalculateOvertime_WithinGrace(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/overtime", OvertimeRequest{
		ScheduledEnd: "14:00", ActualSignOut: "14:14", HourlyRate: 35,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[OvertimeDTO](t, rec)
	assert.True(t, got.WithinGracePeriod)
	assert.Equal(t, 0.0, got.Charge)
}

func TestCalculateOvertime_Invalid(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/overtime", OvertimeRequest{
		ScheduledEnd: "2pm", ActualSignOut: "14:20", HourlyRate: 35,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/overtime", OvertimeRequest{
		ScheduledEnd: "14:00", ActualSignOut: "14:20",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculateFinalCharge_TaxesWhenAnyTaskTaxable(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/final-charge", FinalChargeRequestDTO{
		TaskIDs:       []string{catalog.DefaultErrandsID},
		BaseTotal:     40,
		ScheduledEnd:  "14:00",
		ActualSignOut: "14:20",
		HourlyRate:    40,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[FinalChargeDTO](t, rec)
	assert.InDelta(t, 5.0, got.Overtime.Charge, 0.0001)
	assert.InDelta(t, 45.0, got.Subtotal, 0.0001)
	assert.True(t, got.HSTApplied)
	assert.InDelta(t, 5.85, got.HST, 0.0001)
	assert.InDelta(t, 50.85, got.Total, 0.0001)
}

func TestCalculateFinalCharge_AcrossMidnight(t *testing.T) {
	_, router := newTestServer(t)

	end := time.Date(2025, 3, 12, 23, 50, 0, 0, time.UTC)
	out := time.Date(2025, 3, 13, 0, 20, 0, 0, time.UTC)
	rec := do(t, router, http.MethodPost, "/api/final-charge", FinalChargeRequestDTO{
		TaskIDs:         []string{catalog.DefaultPersonalCareID},
		BaseTotal:       35,
		ScheduledEndAt:  &end,
		ActualSignOutAt: &out,
		HourlyRate:      40,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[FinalChargeDTO](t, rec)
	assert.Equal(t, 30, got.Overtime.OvertimeMinutes)
	assert.Equal(t, 2, got.Overtime.Blocks)
	assert.False(t, got.HSTApplied)
	assert.InDelta(t, 45.0, got.Total, 0.0001)
}

// =============================================================================
// TASKS
// =============================================================================

func TestListTasks_DefaultsWhenStoreEmpty(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]factory.TaskJSON](t, rec), len(catalog.DefaultTasks()))
}

func TestTaskCRUD(t *testing.T) {
	_, router := newTestServer(t)

	// Create
	rec := do(t, router, http.MethodPost, "/api/tasks", `{
		"task_name": "Foot Care",
		"included_minutes": 45,
		"base_cost": 40,
		"apply_hst": true
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[factory.TaskJSON](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "standard", created.ServiceCategory)

	// Read
	rec = do(t, router, http.MethodGet, "/api/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Foot Care", decode[factory.TaskJSON](t, rec).TaskName)

	// Update
	rec = do(t, router, http.MethodPut, "/api/tasks/"+created.ID, `{
		"task_name": "Foot Care",
		"included_minutes": 60,
		"base_cost": 42
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 60, decode[factory.TaskJSON](t, rec).IncludedMinutes)

	// The new price is used at once
	rec = do(t, router, http.MethodPost, "/api/quotes", QuoteRequest{TaskIDs: []string{created.ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 42.0, decode[PriceResultDTO](t, rec).Total)

	// Delete
	rec = do(t, router, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTask_BuiltInOnEmptyStore(t *testing.T) {
	// GIVEN: A fresh store serving the built-in catalog
	_, router := newTestServer(t)

	// WHEN: One built-in task is edited
	rec := do(t, router, http.MethodPut, "/api/tasks/"+catalog.DefaultPersonalCareID, `{
		"task_name": "Personal Care",
		"included_minutes": 45,
		"base_cost": 38
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: All built-in tasks are still listed
	rec = do(t, router, http.MethodGet, "/api/tasks", nil)
	assert.Len(t, decode[[]factory.TaskJSON](t, rec), len(catalog.DefaultTasks()))

	// AND: Hospital discharge still prices at its own rate
	rec = do(t, router, http.MethodPost, "/api/quotes", QuoteRequest{
		TaskIDs: []string{catalog.DefaultHospitalDischargeID},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[PriceResultDTO](t, rec)
	assert.Equal(t, 0, got.UnmatchedTasks)
	assert.Equal(t, "hospital-discharge", got.ServiceCategory)
	assert.Equal(t, 55.0, got.Subtotal)
}

func TestDeleteTask_BuiltInOnEmptyStore(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodDelete, "/api/tasks/"+catalog.DefaultCompanionshipID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/tasks", nil)
	assert.Len(t, decode[[]factory.TaskJSON](t, rec), len(catalog.DefaultTasks())-1)
}

func TestCreateTask_Invalid(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/tasks", `{"task_name": "", "included_minutes": 30, "base_cost": 10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/tasks", `{"task_name": "Spa", "service_category": "luxury"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateTask_NotFound(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPut, "/api/tasks/nope", `{"task_name": "x", "included_minutes": 30, "base_cost": 10}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTaskCategory(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet,
		"/api/tasks/category?ids="+catalog.DefaultPersonalCareID+","+catalog.DefaultHospitalDischargeID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[TaskCategoryDTO](t, rec)
	assert.Equal(t, "hospital-discharge", got.ServiceCategory)
	assert.True(t, got.RequiresDischargeUpload)

	rec = do(t, router, http.MethodGet, "/api/tasks/category", nil)
	assert.Equal(t, "standard", decode[TaskCategoryDTO](t, rec).ServiceCategory)
}

// =============================================================================
// SURGE
// =============================================================================

func TestSurgeRules_DriveQuotes(t *testing.T) {
	// GIVEN: A Christmas Day rule
	_, router := newTestServer(t)
	rec := do(t, router, http.MethodPut, "/api/surge/rules", `[
		{"id": "xmas", "name": "Christmas Day", "enabled": true, "multiplier": 1.5,
		 "start_date": "2025-12-25", "end_date": "2025-12-25"}
	]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: The slot is checked and quoted
	rec = do(t, router, http.MethodGet, "/api/surge/active?date=2025-12-25&time=10:00", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := decode[SurgeResultDTO](t, rec)

	rec = do(t, router, http.MethodPost, "/api/quotes", QuoteRequest{
		TaskIDs: []string{catalog.DefaultPersonalCareID},
		Date:    "2025-12-25",
		Time:    "10:00",
	})
	quote := decode[PriceResultDTO](t, rec)

	// THEN: Both see 1.5x
	assert.Equal(t, 1.5, active.Multiplier)
	assert.Equal(t, 50.0, active.SurgeAmountPercent)
	assert.Equal(t, []string{"Christmas Day"}, active.ActiveRules)

	assert.Equal(t, 17.5, quote.SurgeAmount)
	assert.Equal(t, 52.5, quote.Total)
	assert.Equal(t, []string{"Christmas Day"}, quote.ScheduledSurgeRules)

	// AND: Today is not Christmas
	rec = do(t, router, http.MethodGet, "/api/surge/active", nil)
	assert.Equal(t, 1.0, decode[SurgeResultDTO](t, rec).Multiplier)
}

func TestSurgeRules_CRUD(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/surge/rules", `{"name": "Storm", "enabled": true, "multiplier": 1.3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[factory.SurgeRuleJSON](t, rec)
	require.NotEmpty(t, saved.ID)

	rec = do(t, router, http.MethodGet, "/api/surge/rules", nil)
	assert.Len(t, decode[[]factory.SurgeRuleJSON](t, rec), 1)

	rec = do(t, router, http.MethodDelete, "/api/surge/rules/"+saved.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodDelete, "/api/surge/rules/"+saved.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/surge/rules", `{"name": "Bad", "enabled": true, "multiplier": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetActiveSurge_InvalidDate(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/surge/active?date=12/25/2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// GEO
// =============================================================================

func TestGetPostalCode(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/geo/postal/m5h2n2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[PostalCodeDTO](t, rec)
	assert.Equal(t, "M5H2N2", got.PostalCode)
	assert.Equal(t, "M5H", got.FSA)
	assert.InDelta(t, 43.65, got.Lat, 0.1)

	rec = do(t, router, http.MethodGet, "/api/geo/postal/12345", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/geo/postal/D1A1A1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckServiceArea(t *testing.T) {
	_, router := newTestServer(t)

	tests := []struct {
		name     string
		code     string
		verified bool
		within   bool
	}{
		{"office", "M5H 2N2", true, true},
		{"vancouver", "V6B 1A1", true, false},
		{"unresolvable", "D1A 1A1", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/geo/service-area", ServiceAreaRequest{PostalCode: tt.code})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			got := decode[ServiceAreaDTO](t, rec)
			assert.Equal(t, tt.verified, got.Verified)
			assert.Equal(t, tt.within, got.WithinRadius)
			assert.Equal(t, 75.0, got.RadiusKm)
			assert.NotEmpty(t, got.Message)
		})
	}

	rec := do(t, router, http.MethodPost, "/api/geo/service-area", ServiceAreaRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckIn(t *testing.T) {
	_, router := newTestServer(t)
	target := &CoordinateDTO{Lat: 43.6532, Lng: -79.3832}

	// At the door
	rec := do(t, router, http.MethodPost, "/api/geo/check-in", CheckInRequest{
		PSWLocation: &CoordinateDTO{Lat: 43.6532, Lng: -79.3832},
		Target:      target,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[CheckInDTO](t, rec)
	assert.True(t, got.WithinProximity)
	assert.Equal(t, 200.0, got.ThresholdMeters)

	// ~334 m away: too far for a visit, close enough for a transport pickup
	away := &CoordinateDTO{Lat: 43.6562, Lng: -79.3832}
	rec = do(t, router, http.MethodPost, "/api/geo/check-in", CheckInRequest{PSWLocation: away, Target: target})
	assert.False(t, decode[CheckInDTO](t, rec).WithinProximity)

	rec = do(t, router, http.MethodPost, "/api/geo/check-in", CheckInRequest{PSWLocation: away, Target: target, Transport: true})
	got = decode[CheckInDTO](t, rec)
	assert.True(t, got.WithinProximity)
	assert.Equal(t, 500.0, got.ThresholdMeters)

	// Explicit threshold
	rec = do(t, router, http.MethodPost, "/api/geo/check-in", CheckInRequest{PSWLocation: away, Target: target, ThresholdMeters: 400})
	assert.True(t, decode[CheckInDTO](t, rec).WithinProximity)
}

func TestCheckIn_NoReadingIsBlocked(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/geo/check-in", CheckInRequest{
		Target: &CoordinateDTO{Lat: 43.6532, Lng: -79.3832},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "location_unavailable", decode[ErrorResponse](t, rec).Code)
}

func TestCheckIn_PostalCodeTarget(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/geo/postal/M5H2N2", nil)
	office := decode[PostalCodeDTO](t, rec)

	rec = do(t, router, http.MethodPost, "/api/geo/check-in", CheckInRequest{
		PSWLocation: &CoordinateDTO{Lat: office.Lat, Lng: office.Lng},
		PostalCode:  "M5H 2N2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[CheckInDTO](t, rec).WithinProximity)

	rec = do(t, router, http.MethodPost, "/api/geo/check-in", CheckInRequest{
		PSWLocation: &CoordinateDTO{Lat: office.Lat, Lng: office.Lng},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}
