/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types carry
  decimals and typed enums; the API speaks plain numbers and strings in
  snake_case so the booking app and the admin dashboard can consume it
  directly.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Quotes:
    QuoteRequest, PriceResultDTO

  Shift completion:
    OvertimeRequest, OvertimeDTO, FinalChargeRequestDTO, FinalChargeDTO

  Surge:
    SurgeResultDTO (rule bodies reuse factory.SurgeRuleJSON)

  Geo:
    PostalCodeDTO, ServiceAreaRequest, ServiceAreaDTO,
    CheckInRequest, CheckInDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers and domain packages, not in DTOs. DTOs
  are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/: Task, policy and surge rule JSON types
*/
package api

import (
	"time"

	"github.com/carepoint/booking-engine/generic"
	"github.com/carepoint/booking-engine/geo"
	"github.com/carepoint/booking-engine/pricing"
	"github.com/carepoint/booking-engine/surge"
	"github.com/shopspring/decimal"
)

// =============================================================================
// QUOTES
// =============================================================================

// QuoteRequest is the body of POST /api/quotes.
type QuoteRequest struct {
	TaskIDs    []string `json:"task_ids"`
	IsASAP     bool     `json:"is_asap"`
	City       string   `json:"city,omitempty"`
	PostalCode string   `json:"postal_code,omitempty"`
	Date       string   `json:"date,omitempty"` // YYYY-MM-DD
	Time       string   `json:"time,omitempty"` // HH:MM
}

func (q QuoteRequest) toQuote() pricing.Quote {
	return pricing.Quote{
		TaskIDs:    q.TaskIDs,
		IsASAP:     q.IsASAP,
		City:       q.City,
		PostalCode: q.PostalCode,
		Date:       q.Date,
		Time:       q.Time,
	}
}

// PriceResultDTO is a price estimate with every intermediate value.
type PriceResultDTO struct {
	Subtotal          float64 `json:"subtotal"`
	SurgeAmount       float64 `json:"surge_amount"`
	RegionalSurcharge float64 `json:"regional_surcharge"`
	Total             float64 `json:"total"`

	TotalMinutes      int  `json:"total_minutes"`
	ExceedsBaseHour   bool `json:"exceeds_base_hour"`
	MinimumFeeApplied bool `json:"minimum_fee_applied"`

	PSWBonus     float64 `json:"psw_bonus"`
	PSWFlatBonus float64 `json:"psw_flat_bonus"`
	SurgeZone    string  `json:"surge_zone,omitempty"`

	ScheduledSurgePercentage float64  `json:"scheduled_surge_percentage"`
	ScheduledSurgeRules      []string `json:"scheduled_surge_rules"`
	EffectiveMultiplier      float64  `json:"effective_multiplier"`

	HourlyRate     float64 `json:"hourly_rate"`
	BillableHours  float64 `json:"billable_hours"`
	BaseHourTotal  float64 `json:"base_hour_total"`
	UnmatchedTasks int     `json:"unmatched_tasks"`

	ServiceCategory         string `json:"service_category"`
	RequiresDischargeUpload bool   `json:"requires_discharge_upload"`
	ApplyHST                bool   `json:"apply_hst"`
}

func toPriceResultDTO(r pricing.PriceResult) PriceResultDTO {
	rules := r.ScheduledSurgeRules
	if rules == nil {
		rules = []string{}
	}
	return PriceResultDTO{
		Subtotal:                 r.Subtotal.Float64(),
		SurgeAmount:              r.SurgeAmount.Float64(),
		RegionalSurcharge:        r.RegionalSurcharge.Float64(),
		Total:                    r.Total.Float64(),
		TotalMinutes:             r.TotalMinutes,
		ExceedsBaseHour:          r.ExceedsBaseHour,
		MinimumFeeApplied:        r.MinimumFeeApplied,
		PSWBonus:                 r.PSWBonus.Float64(),
		PSWFlatBonus:             r.PSWFlatBonus.Float64(),
		SurgeZone:                r.SurgeZone,
		ScheduledSurgePercentage: toFloat(r.ScheduledSurgePercentage),
		ScheduledSurgeRules:      rules,
		EffectiveMultiplier:      toFloat(r.EffectiveMultiplier),
		HourlyRate:               r.HourlyRate.Float64(),
		BillableHours:            toFloat(r.BillableHours),
		BaseHourTotal:            r.BaseHourTotal.Float64(),
		UnmatchedTasks:           r.UnmatchedTasks,
		ServiceCategory:          string(r.ServiceCategory),
		RequiresDischargeUpload:  r.RequiresDischargeUpload,
		ApplyHST:                 r.ApplyHST,
	}
}

// =============================================================================
// SHIFT COMPLETION
// =============================================================================

// OvertimeRequest is the body of POST /api/overtime.
type OvertimeRequest struct {
	ScheduledEnd  string  `json:"scheduled_end"`   // HH:MM
	ActualSignOut string  `json:"actual_sign_out"` // HH:MM
	HourlyRate    float64 `json:"hourly_rate"`
}

// OvertimeDTO is the overtime billed for one shift.
type OvertimeDTO struct {
	OvertimeMinutes   int     `json:"overtime_minutes"`
	WithinGracePeriod bool    `json:"within_grace_period"`
	Blocks            int     `json:"blocks"`
	RatePerBlock      float64 `json:"rate_per_block"`
	Charge            float64 `json:"charge"`
}

func toOvertimeDTO(r pricing.OvertimeResult) OvertimeDTO {
	return OvertimeDTO{
		OvertimeMinutes:   r.OvertimeMinutes,
		WithinGracePeriod: r.WithinGracePeriod,
		Blocks:            r.Blocks,
		RatePerBlock:      r.RatePerBlock.Float64(),
		Charge:            r.Charge.Float64(),
	}
}

// FinalChargeRequestDTO is the body of POST /api/final-charge. Either the
// clock pair or the timestamp pair is used; timestamps win when both are set.
// A zero hourly_rate means the quoted rate for task_ids.
type FinalChargeRequestDTO struct {
	TaskIDs         []string   `json:"task_ids"`
	BaseTotal       float64    `json:"base_total"`
	ScheduledEnd    string     `json:"scheduled_end,omitempty"`
	ActualSignOut   string     `json:"actual_sign_out,omitempty"`
	ScheduledEndAt  *time.Time `json:"scheduled_end_at,omitempty"`
	ActualSignOutAt *time.Time `json:"actual_sign_out_at,omitempty"`
	HourlyRate      float64    `json:"hourly_rate,omitempty"`
}

func (r FinalChargeRequestDTO) toRequest() pricing.FinalChargeRequest {
	req := pricing.FinalChargeRequest{
		TaskIDs:       r.TaskIDs,
		BaseTotal:     generic.NewMoney(r.BaseTotal),
		ScheduledEnd:  r.ScheduledEnd,
		ActualSignOut: r.ActualSignOut,
		HourlyRate:    generic.NewMoney(r.HourlyRate),
	}
	if r.ScheduledEndAt != nil {
		req.ScheduledEndAt = *r.ScheduledEndAt
	}
	if r.ActualSignOutAt != nil {
		req.ActualSignOutAt = *r.ActualSignOutAt
	}
	return req
}

// FinalChargeDTO is the amount billed for a completed shift.
type FinalChargeDTO struct {
	BaseTotal  float64     `json:"base_total"`
	Overtime   OvertimeDTO `json:"overtime"`
	Subtotal   float64     `json:"subtotal"`
	HSTApplied bool        `json:"hst_applied"`
	HST        float64     `json:"hst"`
	Total      float64     `json:"total"`
}

func toFinalChargeDTO(f pricing.FinalCharge) FinalChargeDTO {
	return FinalChargeDTO{
		BaseTotal:  f.BaseTotal.Float64(),
		Overtime:   toOvertimeDTO(f.Overtime),
		Subtotal:   f.Subtotal.Float64(),
		HSTApplied: f.HSTApplied,
		HST:        f.HST.Float64(),
		Total:      f.Total.Float64(),
	}
}

// =============================================================================
// TASKS
// =============================================================================

// TaskCategoryDTO answers GET /api/tasks/category.
type TaskCategoryDTO struct {
	ServiceCategory         string `json:"service_category"`
	RequiresDischargeUpload bool   `json:"requires_discharge_upload"`
}

// =============================================================================
// SURGE
// =============================================================================

// SurgeResultDTO is the combined multiplier of the active rules.
type SurgeResultDTO struct {
	Multiplier         float64  `json:"multiplier"`
	SurgeAmountPercent float64  `json:"surge_amount_percent"`
	ActiveRules        []string `json:"active_rules"`
}

func toSurgeResultDTO(r surge.Result) SurgeResultDTO {
	return SurgeResultDTO{
		Multiplier:         toFloat(r.Multiplier),
		SurgeAmountPercent: toFloat(r.SurgeAmountPercent),
		ActiveRules:        r.RuleNames(),
	}
}

// =============================================================================
// GEO
// =============================================================================

// CoordinateDTO is a latitude/longitude pair.
type CoordinateDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c CoordinateDTO) toCoordinate() geo.Coordinate {
	return geo.Coordinate{Lat: c.Lat, Lng: c.Lng}
}

// PostalCodeDTO is an approximate location for a postal code.
type PostalCodeDTO struct {
	PostalCode string  `json:"postal_code"`
	FSA        string  `json:"fsa"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// ServiceAreaRequest is the body of POST /api/geo/service-area. A zero
// radius uses the configured service radius.
type ServiceAreaRequest struct {
	PostalCode string  `json:"postal_code"`
	RadiusKm   float64 `json:"radius_km,omitempty"`
}

type ServiceAreaDTO struct {
	Verified     bool    `json:"verified"`
	WithinRadius bool    `json:"within_radius"`
	DistanceKm   float64 `json:"distance_km"`
	RadiusKm     float64 `json:"radius_km"`
	Message      string  `json:"message"`
}

func toServiceAreaDTO(r geo.ServiceAreaResult) ServiceAreaDTO {
	return ServiceAreaDTO{
		Verified:     r.Verified,
		WithinRadius: r.WithinRadius,
		DistanceKm:   r.DistanceKm,
		RadiusKm:     r.RadiusKm,
		Message:      r.Message,
	}
}

// CheckInRequest is the body of POST /api/geo/check-in. The target is either
// explicit coordinates or a client postal code. A missing psw_location means
// the device could not produce a reading.
type CheckInRequest struct {
	PSWLocation     *CoordinateDTO `json:"psw_location"`
	Target          *CoordinateDTO `json:"target,omitempty"`
	PostalCode      string         `json:"postal_code,omitempty"`
	Transport       bool           `json:"transport"`
	ThresholdMeters float64        `json:"threshold_meters,omitempty"`
}

type CheckInDTO struct {
	WithinProximity bool    `json:"within_proximity"`
	DistanceMeters  float64 `json:"distance_meters"`
	ThresholdMeters float64 `json:"threshold_meters"`
	Message         string  `json:"message"`
}

func toCheckInDTO(r geo.CheckInResult) CheckInDTO {
	return CheckInDTO{
		WithinProximity: r.WithinProximity,
		DistanceMeters:  r.DistanceMeters,
		ThresholdMeters: r.ThresholdMeters,
		Message:         r.Message,
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func toFloat(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
