package pricing

import (
	"context"
	"time"

	"github.com/carepoint/booking-engine/catalog"
	"github.com/carepoint/booking-engine/generic"
	"github.com/carepoint/booking-engine/surge"
	"github.com/shopspring/decimal"
)

// ApplyHST returns the tax owed on amount. If any task is taxable the whole
// amount is taxed; if none is, the tax is zero.
func ApplyHST(amount generic.Money, tasks []catalog.Task, rate decimal.Decimal) generic.Money {
	if !catalog.AnyApplyHST(tasks) {
		return generic.ZeroMoney()
	}
	return amount.Mul(rate).Round()
}

// =============================================================================
// FINAL CHARGE - Re-derived at shift completion
// =============================================================================

// FinalChargeRequest describes a completed shift. Either the clock-time pair
// or the instant pair is used: instants win when both are set. A zero
// HourlyRate means the booking's quoted hourly rate.
type FinalChargeRequest struct {
	TaskIDs   []string
	BaseTotal generic.Money

	ScheduledEnd  string // HH:MM
	ActualSignOut string // HH:MM

	ScheduledEndAt  time.Time
	ActualSignOutAt time.Time

	HourlyRate generic.Money
}

type FinalCharge struct {
	BaseTotal  generic.Money
	Overtime   OvertimeResult
	Subtotal   generic.Money // base + overtime
	HSTApplied bool
	HST        generic.Money
	Total      generic.Money
}

// ComputeFinalCharge combines base and overtime and taxes the sum when any
// selected task is taxable.
func ComputeFinalCharge(tasks []catalog.Task, base generic.Money, overtime OvertimeResult, hstRate decimal.Decimal) FinalCharge {
	subtotal := base.Add(overtime.Charge)
	tax := ApplyHST(subtotal, tasks, hstRate)
	return FinalCharge{
		BaseTotal:  base,
		Overtime:   overtime,
		Subtotal:   subtotal,
		HSTApplied: catalog.AnyApplyHST(tasks),
		HST:        tax,
		Total:      subtotal.Add(tax).Round(),
	}
}

// CalculateFinalCharge bills a completed shift under the effective policy.
func (c *Calculator) CalculateFinalCharge(ctx context.Context, req FinalChargeRequest) (FinalCharge, error) {
	tasks := c.tasks.GetTasks(ctx)
	policy := c.policyFor(ctx, tasks)
	selected, _ := catalog.Select(tasks, req.TaskIDs)

	rate := req.HourlyRate
	if rate.IsZero() {
		rate = Price(tasks, policy, Quote{TaskIDs: req.TaskIDs}, surge.Combine(nil)).HourlyRate
	}

	ot := NewOvertimeCalculator(policy)
	var overtime OvertimeResult
	switch {
	case !req.ScheduledEndAt.IsZero() && !req.ActualSignOutAt.IsZero():
		overtime = ot.CalculateOvertimeBetween(req.ScheduledEndAt, req.ActualSignOutAt, rate)
	case req.ScheduledEnd != "" || req.ActualSignOut != "":
		var err error
		overtime, err = ot.CalculateOvertimeCharges(req.ScheduledEnd, req.ActualSignOut, rate)
		if err != nil {
			return FinalCharge{}, err
		}
	default:
		overtime = ot.ForMinutes(0, rate)
	}

	return ComputeFinalCharge(selected, req.BaseTotal, overtime, policy.HSTRate), nil
}
