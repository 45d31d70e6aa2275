/*
Package factory provides JSON to Go conversion for pricing configuration.

PURPOSE:
  Converts stored and posted JSON into catalog.Task, pricing.PolicyOverride,
  pricing.SurgeZone and surge.Rule values, and back. Domain types carry no
  JSON tags; this package owns the wire schema.

WHY JSON?
  - Administrators edit pricing from the dashboard without a deploy
  - Overrides live in a key-value store as a single blob
  - The same schema is served by the HTTP API

JSON SCHEMA (pricing policy override, every field optional):
  {
    "minimum_hours": 1,
    "doctor_escort_minimum_hours": 2,
    "overtime_rate_percentage": 50,
    "overtime_grace_minutes": 14,
    "overtime_block_minutes": 15,
    "minimum_booking_fee": 25,
    "regional_surge_enabled": true,
    "surge_multiplier": 1.25,
    "hospital_discharge_rate": 55,
    "doctor_appointment_rate": 45,
    "surge_zones": [
      {
        "id": "york",
        "name": "York Region",
        "enabled": true,
        "priority": 1,
        "client_surcharge": 5,
        "psw_bonus": 2,
        "psw_flat_bonus": 10,
        "postal_code_prefixes": ["L3", "L4"],
        "cities": ["Markham", "Richmond Hill"]
      }
    ]
  }

  A field that is absent stays unset, so it never clears the catalog-derived
  default underneath it.

KEY FEATURES:
  - Malformed stored JSON degrades to "no override" and is logged
  - Saving merges into the stored override field by field
  - Zones without an id get one

USAGE:
  repo := factory.NewPolicyRepository(kvStore)
  calc := pricing.NewCalculator(catalog, repo, surgeEngine)

  o, err := factory.ParsePolicyOverride(body)
  err = repo.SavePolicy(ctx, o)

SEE ALSO:
  - pricing/policy.go: Policy and PolicyOverride
  - factory/surge.go: Surge rule schema and repository
  - factory/task.go: Task schema
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/carepoint/booking-engine/generic"
	"github.com/carepoint/booking-engine/pricing"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyOverrideJSON is the stored and posted override. Nil means unset.
type PolicyOverrideJSON struct {
	MinimumHours             *float64         `json:"minimum_hours,omitempty"`
	DoctorEscortMinimumHours *float64         `json:"doctor_escort_minimum_hours,omitempty"`
	OvertimeRatePercentage   *float64         `json:"overtime_rate_percentage,omitempty"`
	OvertimeGraceMinutes     *int             `json:"overtime_grace_minutes,omitempty"`
	OvertimeBlockMinutes     *int             `json:"overtime_block_minutes,omitempty"`
	MinimumBookingFee        *float64         `json:"minimum_booking_fee,omitempty"`
	RegionalSurgeEnabled     *bool            `json:"regional_surge_enabled,omitempty"`
	SurgeZones               *[]SurgeZoneJSON `json:"surge_zones,omitempty"`
	SurgeMultiplier          *float64         `json:"surge_multiplier,omitempty"`
	HospitalDischargeRate    *float64         `json:"hospital_discharge_rate,omitempty"`
	DoctorAppointmentRate    *float64         `json:"doctor_appointment_rate,omitempty"`
}

// PolicyJSON is the full effective policy, as served to the dashboard.
type PolicyJSON struct {
	MinimumHours             float64         `json:"minimum_hours"`
	DoctorEscortMinimumHours float64         `json:"doctor_escort_minimum_hours"`
	OvertimeRatePercentage   float64         `json:"overtime_rate_percentage"`
	OvertimeGraceMinutes     int             `json:"overtime_grace_minutes"`
	OvertimeBlockMinutes     int             `json:"overtime_block_minutes"`
	MinimumBookingFee        float64         `json:"minimum_booking_fee"`
	RegionalSurgeEnabled     bool            `json:"regional_surge_enabled"`
	SurgeZones               []SurgeZoneJSON `json:"surge_zones"`
	SurgeMultiplier          float64         `json:"surge_multiplier"`
	HospitalDischargeRate    float64         `json:"hospital_discharge_rate"`
	DoctorAppointmentRate    float64         `json:"doctor_appointment_rate"`
	FallbackHourlyRate       float64         `json:"fallback_hourly_rate"`
	HSTRate                  float64         `json:"hst_rate"`
}

// SurgeZoneJSON represents a regional surge zone.
type SurgeZoneJSON struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Enabled            bool     `json:"enabled"`
	Priority           int      `json:"priority,omitempty"`
	ClientSurcharge    float64  `json:"client_surcharge"`
	PSWBonus           float64  `json:"psw_bonus"`
	PSWFlatBonus       float64  `json:"psw_flat_bonus"`
	PostalCodePrefixes []string `json:"postal_code_prefixes,omitempty"`
	Cities             []string `json:"cities,omitempty"`
}

// =============================================================================
// CONVERSION
// =============================================================================

// ParsePolicyOverride parses and validates a posted override.
func ParsePolicyOverride(data []byte) (pricing.PolicyOverride, error) {
	var oj PolicyOverrideJSON
	if err := json.Unmarshal(data, &oj); err != nil {
		return pricing.PolicyOverride{}, generic.NewValidationError("policy", fmt.Sprintf("failed to parse JSON: %v", err))
	}
	o := PolicyOverrideFromJSON(oj)
	if err := o.Apply(pricing.DefaultPolicy()).Validate(); err != nil {
		return pricing.PolicyOverride{}, err
	}
	return o, nil
}

// PolicyOverrideFromJSON converts the schema type. Zones without an id get one.
func PolicyOverrideFromJSON(oj PolicyOverrideJSON) pricing.PolicyOverride {
	o := pricing.PolicyOverride{
		MinimumHours:             decimalPtr(oj.MinimumHours),
		DoctorEscortMinimumHours: decimalPtr(oj.DoctorEscortMinimumHours),
		OvertimeRatePercentage:   decimalPtr(oj.OvertimeRatePercentage),
		OvertimeGraceMinutes:     oj.OvertimeGraceMinutes,
		OvertimeBlockMinutes:     oj.OvertimeBlockMinutes,
		MinimumBookingFee:        decimalPtr(oj.MinimumBookingFee),
		RegionalSurgeEnabled:     oj.RegionalSurgeEnabled,
		SurgeMultiplier:          decimalPtr(oj.SurgeMultiplier),
		HospitalDischargeRate:    decimalPtr(oj.HospitalDischargeRate),
		DoctorAppointmentRate:    decimalPtr(oj.DoctorAppointmentRate),
	}
	if oj.SurgeZones != nil {
		zones := make([]pricing.SurgeZone, 0, len(*oj.SurgeZones))
		for _, zj := range *oj.SurgeZones {
			zones = append(zones, SurgeZoneFromJSON(zj))
		}
		o.SurgeZones = &zones
	}
	return o
}

// PolicyOverrideToJSON converts back to the schema type.
func PolicyOverrideToJSON(o pricing.PolicyOverride) PolicyOverrideJSON {
	oj := PolicyOverrideJSON{
		MinimumHours:             floatPtr(o.MinimumHours),
		DoctorEscortMinimumHours: floatPtr(o.DoctorEscortMinimumHours),
		OvertimeRatePercentage:   floatPtr(o.OvertimeRatePercentage),
		OvertimeGraceMinutes:     o.OvertimeGraceMinutes,
		OvertimeBlockMinutes:     o.OvertimeBlockMinutes,
		MinimumBookingFee:        floatPtr(o.MinimumBookingFee),
		RegionalSurgeEnabled:     o.RegionalSurgeEnabled,
		SurgeMultiplier:          floatPtr(o.SurgeMultiplier),
		HospitalDischargeRate:    floatPtr(o.HospitalDischargeRate),
		DoctorAppointmentRate:    floatPtr(o.DoctorAppointmentRate),
	}
	if o.SurgeZones != nil {
		zones := make([]SurgeZoneJSON, 0, len(*o.SurgeZones))
		for _, z := range *o.SurgeZones {
			zones = append(zones, SurgeZoneToJSON(z))
		}
		oj.SurgeZones = &zones
	}
	return oj
}

// PolicyToJSON renders the effective policy.
func PolicyToJSON(p pricing.Policy) PolicyJSON {
	zones := make([]SurgeZoneJSON, 0, len(p.SurgeZones))
	for _, z := range p.SurgeZones {
		zones = append(zones, SurgeZoneToJSON(z))
	}
	return PolicyJSON{
		MinimumHours:             toFloat(p.MinimumHours),
		DoctorEscortMinimumHours: toFloat(p.DoctorEscortMinimumHours),
		OvertimeRatePercentage:   toFloat(p.OvertimeRatePercentage),
		OvertimeGraceMinutes:     p.OvertimeGraceMinutes,
		OvertimeBlockMinutes:     p.OvertimeBlockMinutes,
		MinimumBookingFee:        toFloat(p.MinimumBookingFee),
		RegionalSurgeEnabled:     p.RegionalSurgeEnabled,
		SurgeZones:               zones,
		SurgeMultiplier:          toFloat(p.SurgeMultiplier),
		HospitalDischargeRate:    toFloat(p.HospitalDischargeRate),
		DoctorAppointmentRate:    toFloat(p.DoctorAppointmentRate),
		FallbackHourlyRate:       toFloat(p.FallbackHourlyRate),
		HSTRate:                  toFloat(p.HSTRate),
	}
}

func SurgeZoneFromJSON(zj SurgeZoneJSON) pricing.SurgeZone {
	id := zj.ID
	if id == "" {
		id = uuid.NewString()
	}
	return pricing.SurgeZone{
		ID:                 id,
		Name:               zj.Name,
		Enabled:            zj.Enabled,
		Priority:           zj.Priority,
		ClientSurcharge:    decimal.NewFromFloat(zj.ClientSurcharge),
		PSWBonus:           decimal.NewFromFloat(zj.PSWBonus),
		PSWFlatBonus:       decimal.NewFromFloat(zj.PSWFlatBonus),
		PostalCodePrefixes: zj.PostalCodePrefixes,
		Cities:             zj.Cities,
	}
}

func SurgeZoneToJSON(z pricing.SurgeZone) SurgeZoneJSON {
	return SurgeZoneJSON{
		ID:                 z.ID,
		Name:               z.Name,
		Enabled:            z.Enabled,
		Priority:           z.Priority,
		ClientSurcharge:    toFloat(z.ClientSurcharge),
		PSWBonus:           toFloat(z.PSWBonus),
		PSWFlatBonus:       toFloat(z.PSWFlatBonus),
		PostalCodePrefixes: z.PostalCodePrefixes,
		Cities:             z.Cities,
	}
}

// =============================================================================
// POLICY REPOSITORY - Override blob in a key-value store
// =============================================================================

// PolicyRepository implements pricing.PolicyLoader and pricing.PolicySaver.
type PolicyRepository struct {
	store  generic.KeyValueStore
	logger zerolog.Logger

	// mu serializes read-merge-write within this process. Across processes
	// the last write wins.
	mu sync.Mutex
}

func NewPolicyRepository(store generic.KeyValueStore) *PolicyRepository {
	return &PolicyRepository{store: store, logger: log.Logger}
}

// WithLogger replaces the repository's logger.
func (r *PolicyRepository) WithLogger(l zerolog.Logger) *PolicyRepository {
	r.logger = l
	return r
}

// LoadPolicy returns the stored override. A missing or malformed blob is no
// override; only store failures are errors.
func (r *PolicyRepository) LoadPolicy(ctx context.Context) (pricing.PolicyOverride, error) {
	data, found, err := r.store.Get(ctx, generic.KeyPricingPolicy)
	if err != nil {
		return pricing.PolicyOverride{}, fmt.Errorf("%w: %w", generic.ErrSourceUnavailable, err)
	}
	if !found || len(data) == 0 {
		return pricing.PolicyOverride{}, nil
	}
	var oj PolicyOverrideJSON
	if err := json.Unmarshal(data, &oj); err != nil {
		r.logger.Warn().Err(err).Str("key", generic.KeyPricingPolicy).Msg("stored pricing policy is malformed, ignoring")
		return pricing.PolicyOverride{}, nil
	}
	return PolicyOverrideFromJSON(oj), nil
}

// SavePolicy merges o into the stored override.
func (r *PolicyRepository) SavePolicy(ctx context.Context, o pricing.PolicyOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.LoadPolicy(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(PolicyOverrideToJSON(stored.Merge(o)))
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}
	return r.store.Put(ctx, generic.KeyPricingPolicy, data)
}

// ResetPolicy removes every override.
func (r *PolicyRepository) ResetPolicy(ctx context.Context) error {
	return r.store.Delete(ctx, generic.KeyPricingPolicy)
}

// =============================================================================
// HELPERS
// =============================================================================

func decimalPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := toFloat(*d)
	return &f
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
