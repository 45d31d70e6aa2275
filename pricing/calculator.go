package pricing

import (
	"context"

	"github.com/carepoint/booking-engine/catalog"
	"github.com/carepoint/booking-engine/generic"
	"github.com/carepoint/booking-engine/surge"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// baseHourMinutes is the duration a booking's minimum hours are quoted for.
// Task time beyond it is flagged, not charged.
const baseHourMinutes = 60

// =============================================================================
// INPUTS AND OUTPUTS
// =============================================================================

// Quote describes a prospective booking.
type Quote struct {
	TaskIDs    []string
	IsASAP     bool
	City       string
	PostalCode string
	Date       string // YYYY-MM-DD, empty for today
	Time       string // HH:MM, empty if not yet chosen
}

// PriceResult exposes every intermediate of the calculation.
type PriceResult struct {
	Subtotal          generic.Money
	SurgeAmount       generic.Money
	RegionalSurcharge generic.Money
	Total             generic.Money

	TotalMinutes      int
	ExceedsBaseHour   bool
	MinimumFeeApplied bool

	PSWBonus     generic.Money
	PSWFlatBonus generic.Money
	SurgeZone    string // name of the matched zone, empty if none

	ScheduledSurgePercentage decimal.Decimal
	ScheduledSurgeRules      []string
	EffectiveMultiplier      decimal.Decimal

	HourlyRate     generic.Money
	BillableHours  decimal.Decimal
	BaseHourTotal  generic.Money
	UnmatchedTasks int

	ServiceCategory         catalog.ServiceCategory
	RequiresDischargeUpload bool
	ApplyHST                bool
}

// =============================================================================
// PURE CALCULATION
// =============================================================================

// Price runs the algorithm over already-resolved inputs. all is the full
// catalog; scheduled is the surge schedule's result for the booking.
func Price(all []catalog.Task, policy Policy, q Quote, scheduled surge.Result) PriceResult {
	selected, unmatched := catalog.Select(all, q.TaskIDs)
	category := catalog.CategoryOf(selected)

	// Duration and hourly rate
	minutes := 0
	sum := decimal.Zero
	for _, t := range selected {
		minutes += t.IncludedMinutes
		sum = sum.Add(t.BaseCost)
	}
	sum = sum.Add(policy.FallbackHourlyRate.Mul(decimal.NewFromInt(int64(unmatched))))
	count := len(selected) + unmatched
	rate := policy.FallbackHourlyRate
	if count > 0 {
		rate = sum.Div(decimal.NewFromInt(int64(count)))
	}
	hourlyRate := generic.NewMoneyFromDecimal(rate).Round()

	// Base hours
	hours := policy.MinimumHours
	if catalog.HasCategory(selected, catalog.CategoryDoctorAppointment) {
		hours = policy.DoctorEscortMinimumHours
	}
	baseHourTotal := hourlyRate.Mul(hours).Round()

	// Category floor
	subtotal := baseHourTotal
	switch {
	case catalog.HasCategory(selected, catalog.CategoryHospitalDischarge):
		subtotal = subtotal.Max(generic.NewMoneyFromDecimal(policy.HospitalDischargeRate))
	case catalog.HasCategory(selected, catalog.CategoryDoctorAppointment):
		subtotal = subtotal.Max(generic.NewMoneyFromDecimal(policy.DoctorAppointmentRate))
	}

	// Time-based surge
	asap := decimal.NewFromInt(1)
	if q.IsASAP {
		asap = policy.SurgeMultiplier
	}
	scheduledMultiplier := scheduled.Multiplier
	if scheduledMultiplier.IsZero() {
		scheduledMultiplier = decimal.NewFromInt(1)
	}
	effective := generic.MaxDecimal(asap, scheduledMultiplier)
	surgeAmount := subtotal.Mul(effective.Sub(decimal.NewFromInt(1))).Round()

	// Regional surge, flat per booking
	regional, pswBonus, pswFlat := generic.ZeroMoney(), generic.ZeroMoney(), generic.ZeroMoney()
	zoneName := ""
	if policy.RegionalSurgeEnabled {
		if z, ok := MatchZone(policy.SurgeZones, q.City, q.PostalCode); ok {
			regional = generic.NewMoneyFromDecimal(z.ClientSurcharge)
			pswBonus = generic.NewMoneyFromDecimal(z.PSWBonus)
			pswFlat = generic.NewMoneyFromDecimal(z.PSWFlatBonus)
			zoneName = z.Name
		}
	}

	// Total and minimum fee floor
	total := subtotal.Add(surgeAmount).Add(regional)
	fee := generic.NewMoneyFromDecimal(policy.MinimumBookingFee)
	minimumApplied := false
	if total.LessThan(fee) {
		total = fee
		minimumApplied = true
	}

	return PriceResult{
		Subtotal:                 subtotal,
		SurgeAmount:              surgeAmount,
		RegionalSurcharge:        regional,
		Total:                    total,
		TotalMinutes:             minutes,
		ExceedsBaseHour:          minutes > baseHourMinutes,
		MinimumFeeApplied:        minimumApplied,
		PSWBonus:                 pswBonus,
		PSWFlatBonus:             pswFlat,
		SurgeZone:                zoneName,
		ScheduledSurgePercentage: generic.MultiplierToPercent(scheduledMultiplier),
		ScheduledSurgeRules:      scheduled.RuleNames(),
		EffectiveMultiplier:      effective,
		HourlyRate:               hourlyRate,
		BillableHours:            hours,
		BaseHourTotal:            baseHourTotal,
		UnmatchedTasks:           unmatched,
		ServiceCategory:          category,
		RequiresDischargeUpload:  catalog.AnyRequiresDischargeUpload(selected),
		ApplyHST:                 catalog.AnyApplyHST(selected),
	}
}

// =============================================================================
// CALCULATOR - Resolves collaborators, then calls Price
// =============================================================================

// TaskProvider supplies the task catalog. *catalog.Catalog implements it.
type TaskProvider interface {
	GetTasks(ctx context.Context) []catalog.Task
}

// SurgeSchedule evaluates scheduled surge. Empty date and clock mean the
// current instant. *surge.Engine implements it.
type SurgeSchedule interface {
	CalculateActiveSurgeMultiplier(ctx context.Context, date, clock string) (surge.Result, error)
}

// Calculator is the booking price orchestrator.
type Calculator struct {
	tasks    TaskProvider
	policies PolicyLoader
	surge    SurgeSchedule
	logger   zerolog.Logger
}

type CalculatorOption func(*Calculator)

func WithLogger(l zerolog.Logger) CalculatorOption {
	return func(c *Calculator) { c.logger = l }
}

// NewCalculator wires the collaborators. policies and schedule may be nil,
// meaning no overrides and no scheduled surge.
func NewCalculator(tasks TaskProvider, policies PolicyLoader, schedule SurgeSchedule, opts ...CalculatorOption) *Calculator {
	c := &Calculator{tasks: tasks, policies: policies, surge: schedule, logger: log.Logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the effective policy: defaults, then catalog-derived rates,
// then stored overrides. An unreadable override store means no overrides.
func (c *Calculator) Policy(ctx context.Context) Policy {
	return c.policyFor(ctx, c.tasks.GetTasks(ctx))
}

func (c *Calculator) policyFor(ctx context.Context, tasks []catalog.Task) Policy {
	p := DerivePolicy(tasks)
	if c.policies == nil {
		return p
	}
	o, err := c.policies.LoadPolicy(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("pricing policy override unavailable, using defaults")
		return p
	}
	effective := o.Apply(p)
	if err := effective.Validate(); err != nil {
		c.logger.Warn().Err(err).Msg("stored pricing policy override is invalid, using defaults")
		return p
	}
	return effective
}

// CalculateMultiServicePrice prices a prospective booking. The only errors
// are malformed booking date or time strings.
func (c *Calculator) CalculateMultiServicePrice(ctx context.Context, q Quote) (PriceResult, error) {
	tasks := c.tasks.GetTasks(ctx)
	policy := c.policyFor(ctx, tasks)

	scheduled := surge.Combine(nil)
	if c.surge != nil {
		date, clock := q.Date, q.Time
		if q.IsASAP {
			// An ASAP booking starts now, whatever slot was sent along.
			date, clock = "", ""
		}
		r, err := c.surge.CalculateActiveSurgeMultiplier(ctx, date, clock)
		if err != nil {
			return PriceResult{}, err
		}
		scheduled = r
	}

	result := Price(tasks, policy, q, scheduled)
	c.logger.Debug().
		Strs("task_ids", q.TaskIDs).
		Bool("asap", q.IsASAP).
		Str("total", result.Total.String()).
		Bool("minimum_fee_applied", result.MinimumFeeApplied).
		Msg("booking priced")
	return result, nil
}

// Overtime returns an OvertimeCalculator for the effective policy.
func (c *Calculator) Overtime(ctx context.Context) OvertimeCalculator {
	return NewOvertimeCalculator(c.Policy(ctx))
}
