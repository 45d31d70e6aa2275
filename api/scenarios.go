/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	pricing configuration for demos and manual testing. Each scenario seeds
	the task catalog and optionally a policy override and surge rules.

AVAILABLE SCENARIOS:

	default-catalog:  Built-in task catalog, default policy, no surge
	holiday-surge:    Holiday, evening and weekend surge rules
	regional-zones:   Regional surcharges for Toronto core, York and Ottawa
	custom-policy:    Higher minimum fee, shorter grace, steeper overtime

HOW SCENARIOS WORK:
 1. Reset store (clear tasks and settings)
 2. Seed the default task catalog
 3. Store overrides and rules via factory JSON
 4. Invalidate the catalog cache

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "holiday-surge"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler wiring
  - factory/: Policy override and surge rule JSON
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/carepoint/booking-engine/catalog"
	"github.com/carepoint/booking-engine/factory"
	"github.com/carepoint/booking-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "default-catalog",
		Name:        "Default Catalog",
		Description: "Built-in task catalog with the default pricing policy and no surge",
	},
	{
		ID:          "holiday-surge",
		Name:        "Holiday Surge",
		Description: "Christmas and New Year's Day at 1.5x, evening and weekend surges that stack",
	},
	{
		ID:          "regional-zones",
		Name:        "Regional Zones",
		Description: "Client surcharges and PSW bonuses for downtown Toronto, York Region and Ottawa",
	},
	{
		ID:          "custom-policy",
		Name:        "Custom Policy",
		Description: "$30 minimum fee, 10 minute grace, 75% overtime in 30 minute blocks",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "default-catalog":
		load = func(context.Context) error { return nil }
	case "holiday-surge":
		load = h.loadHolidaySurgeScenario
	case "regional-zones":
		load = h.loadRegionalZonesScenario
	case "custom-policy":
		load = h.loadCustomPolicyScenario
	default:
		writeServiceError(w, generic.NewValidationError("scenario_id", fmt.Sprintf("unknown scenario %q", req.ScenarioID)))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.resetWithDefaults(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to reset store", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	h.logger.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetStore clears tasks, overrides and rules. Pricing falls back to the
// built-in defaults until something is configured again.
// POST /api/scenarios/reset
func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to reset store", err)
		return
	}
	h.Catalog.Invalidate(r.Context())
	h.currentScenario = ""

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) resetWithDefaults(ctx context.Context) error {
	defer h.Catalog.Invalidate(ctx)

	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	return h.Store.SeedTasks(ctx, catalog.DefaultTasks())
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadHolidaySurgeScenario(ctx context.Context) error {
	year := h.now().Year()
	rulesJSON := fmt.Sprintf(`[
		{
			"id": "christmas-day",
			"name": "Christmas Day",
			"enabled": true,
			"multiplier": 1.5,
			"start_date": "%[1]d-12-25",
			"end_date": "%[1]d-12-25",
			"stackable": false
		},
		{
			"id": "new-years-day",
			"name": "New Year's Day",
			"enabled": true,
			"multiplier": 1.5,
			"start_date": "%[2]d-01-01",
			"end_date": "%[2]d-01-01",
			"stackable": false
		},
		{
			"id": "evening",
			"name": "Evening",
			"enabled": true,
			"multiplier": 1.2,
			"start_time": "18:00",
			"end_time": "23:59",
			"stackable": true
		},
		{
			"id": "weekend",
			"name": "Weekend",
			"enabled": true,
			"multiplier": 1.1,
			"days_of_week": [0, 6],
			"stackable": true
		}
	]`, year, year+1)

	rules, err := factory.ParseSurgeRules([]byte(rulesJSON))
	if err != nil {
		return err
	}
	_, err = h.Surge.ReplaceRules(ctx, rules)
	return err
}

func (h *Handler) loadRegionalZonesScenario(ctx context.Context) error {
	override, err := factory.ParsePolicyOverride([]byte(`{
		"regional_surge_enabled": true,
		"surge_zones": [
			{
				"id": "toronto-core",
				"name": "Downtown Toronto",
				"enabled": true,
				"priority": 1,
				"client_surcharge": 5,
				"psw_bonus": 2,
				"psw_flat_bonus": 0,
				"postal_code_prefixes": ["M5"],
				"cities": ["Toronto"]
			},
			{
				"id": "york-region",
				"name": "York Region",
				"enabled": true,
				"priority": 2,
				"client_surcharge": 8,
				"psw_bonus": 3,
				"psw_flat_bonus": 10,
				"postal_code_prefixes": ["L3", "L4", "L6"],
				"cities": ["Markham", "Richmond Hill", "Vaughan", "Newmarket"]
			},
			{
				"id": "ottawa",
				"name": "Ottawa",
				"enabled": true,
				"priority": 3,
				"client_surcharge": 12,
				"psw_bonus": 4,
				"psw_flat_bonus": 15,
				"postal_code_prefixes": ["K1", "K2"],
				"cities": ["Ottawa"]
			}
		]
	}`))
	if err != nil {
		return err
	}
	return h.Policies.SavePolicy(ctx, override)
}

func (h *Handler) loadCustomPolicyScenario(ctx context.Context) error {
	override, err := factory.ParsePolicyOverride([]byte(`{
		"minimum_booking_fee": 30,
		"overtime_grace_minutes": 10,
		"overtime_rate_percentage": 75,
		"overtime_block_minutes": 30,
		"surge_multiplier": 1.35
	}`))
	if err != nil {
		return err
	}
	return h.Policies.SavePolicy(ctx, override)
}
