/*
Package pricing computes booking prices, overtime and the final charge.

PURPOSE:
  Turns a list of task ids plus booking context (ASAP or scheduled, city,
  postal code, date and time) into a chargeable total, exposing every
  intermediate so the booking UI and the accounting views can show their
  work.

KEY CONCEPTS:
  - Policy: The effective configuration. Built in three layers:
      1. Constants (DefaultPolicy)
      2. Catalog-derived rates (hospital discharge and doctor appointment
         floors come from the catalog's tasks of those categories)
      3. Administrator overrides, field by field
    An override never discards a catalog-derived rate it doesn't set.
  - SurgeZone: A regional flat surcharge matched by city or postal prefix.
  - Calculator: The orchestrator over catalog, policy, surge schedule.
  - OvertimeCalculator: Grace period plus block billing after the shift.

PRICE ALGORITHM (CalculateMultiServicePrice):
  1. hourlyRate = mean baseCost of the selected tasks (fallback rate for
     each id that matches nothing)
  2. baseHourTotal = hourlyRate x minimumHours (doctor escort minimum if any
     selected task is a doctor appointment)
  3. exceedsBaseHour = taskMinutes > 60, advisory only
  4. Category floor: discharge rate, else doctor-appointment rate
  5. surgeAmount = subtotal x (max(asap, scheduled) - 1); scheduled is
     evaluated at the current instant for ASAP or slotless quotes, else at
     the booking slot
  6. Regional: + zone client surcharge (flat)
  7. total = subtotal + surgeAmount + regionalSurcharge
  8. total = max(total, minimumBookingFee)

SEE ALSO:
  - zones.go: Regional zone matching
  - calculator.go: The algorithm
  - overtime.go: Overtime blocks
  - tax.go: HST and final charge
  - factory/policy.go: JSON schema and repository
*/
package pricing

import (
	"context"

	"github.com/carepoint/booking-engine/catalog"
	"github.com/carepoint/booking-engine/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// POLICY
// =============================================================================

// Policy is the effective pricing configuration.
type Policy struct {
	MinimumHours             decimal.Decimal
	DoctorEscortMinimumHours decimal.Decimal

	OvertimeRatePercentage decimal.Decimal // 50 means +50% of the hourly rate
	OvertimeGraceMinutes   int
	OvertimeBlockMinutes   int

	MinimumBookingFee decimal.Decimal

	RegionalSurgeEnabled bool
	SurgeZones           []SurgeZone

	// SurgeMultiplier applies to ASAP bookings.
	SurgeMultiplier decimal.Decimal

	// Category fee floors. Derived from the catalog unless overridden.
	HospitalDischargeRate decimal.Decimal
	DoctorAppointmentRate decimal.Decimal

	// FallbackHourlyRate stands in for task ids that match nothing.
	FallbackHourlyRate decimal.Decimal

	HSTRate decimal.Decimal
}

// DefaultPolicy returns the built-in constants.
func DefaultPolicy() Policy {
	return Policy{
		MinimumHours:             decimal.NewFromInt(1),
		DoctorEscortMinimumHours: decimal.NewFromInt(2),
		OvertimeRatePercentage:   decimal.NewFromInt(50),
		OvertimeGraceMinutes:     14,
		OvertimeBlockMinutes:     15,
		MinimumBookingFee:        decimal.NewFromInt(25),
		RegionalSurgeEnabled:     false,
		SurgeMultiplier:          decimal.RequireFromString("1.25"),
		HospitalDischargeRate:    catalog.FallbackHospitalDischargeRate,
		DoctorAppointmentRate:    catalog.FallbackDoctorAppointmentRate,
		FallbackHourlyRate:       decimal.NewFromInt(35),
		HSTRate:                  decimal.RequireFromString("0.13"),
	}
}

// DerivePolicy layers catalog-derived category rates over DefaultPolicy. The
// first task of each special category supplies its rate.
func DerivePolicy(tasks []catalog.Task) Policy {
	p := DefaultPolicy()
	var haveDischarge, haveDoctor bool
	for _, t := range tasks {
		switch {
		case t.Category == catalog.CategoryHospitalDischarge && !haveDischarge:
			p.HospitalDischargeRate = t.BaseCost
			haveDischarge = true
		case t.Category == catalog.CategoryDoctorAppointment && !haveDoctor:
			p.DoctorAppointmentRate = t.BaseCost
			haveDoctor = true
		}
	}
	return p
}

// Validate rejects configurations the calculators can't work with.
func (p Policy) Validate() error {
	switch {
	case p.MinimumHours.IsNegative():
		return generic.NewValidationError("minimum_hours", "must be >= 0")
	case p.DoctorEscortMinimumHours.IsNegative():
		return generic.NewValidationError("doctor_escort_minimum_hours", "must be >= 0")
	case p.OvertimeRatePercentage.IsNegative():
		return generic.NewValidationError("overtime_rate_percentage", "must be >= 0")
	case p.OvertimeGraceMinutes < 0:
		return generic.NewValidationError("overtime_grace_minutes", "must be >= 0")
	case p.OvertimeBlockMinutes <= 0:
		return generic.NewValidationError("overtime_block_minutes", "must be > 0")
	case p.MinimumBookingFee.IsNegative():
		return generic.NewValidationError("minimum_booking_fee", "must be >= 0")
	case p.SurgeMultiplier.LessThan(decimal.NewFromInt(1)):
		return generic.NewValidationError("surge_multiplier", "must be >= 1")
	case p.HSTRate.IsNegative():
		return generic.NewValidationError("hst_rate", "must be >= 0")
	}
	for _, z := range p.SurgeZones {
		if err := z.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// OVERRIDES - Nil fields leave the underlying value alone
// =============================================================================

// PolicyOverride is what an administrator has explicitly set.
type PolicyOverride struct {
	MinimumHours             *decimal.Decimal
	DoctorEscortMinimumHours *decimal.Decimal
	OvertimeRatePercentage   *decimal.Decimal
	OvertimeGraceMinutes     *int
	OvertimeBlockMinutes     *int
	MinimumBookingFee        *decimal.Decimal
	RegionalSurgeEnabled     *bool
	SurgeZones               *[]SurgeZone
	SurgeMultiplier          *decimal.Decimal
	HospitalDischargeRate    *decimal.Decimal
	DoctorAppointmentRate    *decimal.Decimal
}

// Apply returns base with every set field replaced.
func (o PolicyOverride) Apply(base Policy) Policy {
	p := base
	setDecimal(&p.MinimumHours, o.MinimumHours)
	setDecimal(&p.DoctorEscortMinimumHours, o.DoctorEscortMinimumHours)
	setDecimal(&p.OvertimeRatePercentage, o.OvertimeRatePercentage)
	setInt(&p.OvertimeGraceMinutes, o.OvertimeGraceMinutes)
	setInt(&p.OvertimeBlockMinutes, o.OvertimeBlockMinutes)
	setDecimal(&p.MinimumBookingFee, o.MinimumBookingFee)
	if o.RegionalSurgeEnabled != nil {
		p.RegionalSurgeEnabled = *o.RegionalSurgeEnabled
	}
	if o.SurgeZones != nil {
		p.SurgeZones = append([]SurgeZone(nil), (*o.SurgeZones)...)
	}
	setDecimal(&p.SurgeMultiplier, o.SurgeMultiplier)
	setDecimal(&p.HospitalDischargeRate, o.HospitalDischargeRate)
	setDecimal(&p.DoctorAppointmentRate, o.DoctorAppointmentRate)
	return p
}

// Merge layers newer over o: fields newer sets win, the rest keep o's value.
func (o PolicyOverride) Merge(newer PolicyOverride) PolicyOverride {
	m := o
	if newer.MinimumHours != nil {
		m.MinimumHours = newer.MinimumHours
	}
	if newer.DoctorEscortMinimumHours != nil {
		m.DoctorEscortMinimumHours = newer.DoctorEscortMinimumHours
	}
	if newer.OvertimeRatePercentage != nil {
		m.OvertimeRatePercentage = newer.OvertimeRatePercentage
	}
	if newer.OvertimeGraceMinutes != nil {
		m.OvertimeGraceMinutes = newer.OvertimeGraceMinutes
	}
	if newer.OvertimeBlockMinutes != nil {
		m.OvertimeBlockMinutes = newer.OvertimeBlockMinutes
	}
	if newer.MinimumBookingFee != nil {
		m.MinimumBookingFee = newer.MinimumBookingFee
	}
	if newer.RegionalSurgeEnabled != nil {
		m.RegionalSurgeEnabled = newer.RegionalSurgeEnabled
	}
	if newer.SurgeZones != nil {
		m.SurgeZones = newer.SurgeZones
	}
	if newer.SurgeMultiplier != nil {
		m.SurgeMultiplier = newer.SurgeMultiplier
	}
	if newer.HospitalDischargeRate != nil {
		m.HospitalDischargeRate = newer.HospitalDischargeRate
	}
	if newer.DoctorAppointmentRate != nil {
		m.DoctorAppointmentRate = newer.DoctorAppointmentRate
	}
	return m
}

func setDecimal(dst *decimal.Decimal, v *decimal.Decimal) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// =============================================================================
// PERSISTENCE CONTRACT
// =============================================================================

// PolicyLoader reads the stored override. No stored override is a zero
// PolicyOverride and a nil error.
type PolicyLoader interface {
	LoadPolicy(ctx context.Context) (PolicyOverride, error)
}

// PolicySaver stores an override. Implementations merge it into what is
// already stored.
type PolicySaver interface {
	SavePolicy(ctx context.Context, o PolicyOverride) error
}
