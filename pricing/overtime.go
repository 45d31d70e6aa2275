package pricing

import (
	"time"

	"github.com/carepoint/booking-engine/generic"
	"github.com/shopspring/decimal"
)

// OvertimeResult is the overtime billed for one shift.
type OvertimeResult struct {
	OvertimeMinutes   int
	WithinGracePeriod bool
	Blocks            int
	RatePerBlock      generic.Money
	Charge            generic.Money
}

// OvertimeCalculator bills time past the scheduled end. Up to GraceMinutes
// is free; the minutes beyond the grace period are billed per started block
// at the overtime rate.
type OvertimeCalculator struct {
	GraceMinutes int
	BlockMinutes int
	RatePercent  decimal.Decimal
}

func NewOvertimeCalculator(p Policy) OvertimeCalculator {
	return OvertimeCalculator{
		GraceMinutes: p.OvertimeGraceMinutes,
		BlockMinutes: p.OvertimeBlockMinutes,
		RatePercent:  p.OvertimeRatePercentage,
	}
}

// CalculateOvertimeCharges works on same-day "HH:MM" strings. A sign-out
// earlier in the day than the scheduled end (including one past midnight)
// is zero overtime; use CalculateOvertimeBetween when the dates are known.
func (o OvertimeCalculator) CalculateOvertimeCharges(scheduledEnd, actualSignOut string, hourlyRate generic.Money) (OvertimeResult, error) {
	end, err := generic.ParseClockTime(scheduledEnd)
	if err != nil {
		return OvertimeResult{}, err
	}
	out, err := generic.ParseClockTime(actualSignOut)
	if err != nil {
		return OvertimeResult{}, err
	}
	return o.ForMinutes(out.MinutesOfDay()-end.MinutesOfDay(), hourlyRate), nil
}

// CalculateOvertimeBetween works on full instants, so a sign-out after
// midnight is billed correctly.
func (o OvertimeCalculator) CalculateOvertimeBetween(scheduledEnd, actualSignOut time.Time, hourlyRate generic.Money) OvertimeResult {
	return o.ForMinutes(generic.MinutesBetween(scheduledEnd, actualSignOut), hourlyRate)
}

// ForMinutes bills a raw overtime duration. Negative durations count as zero.
func (o OvertimeCalculator) ForMinutes(minutes int, hourlyRate generic.Money) OvertimeResult {
	if minutes < 0 {
		minutes = 0
	}
	ratePerBlock := o.ratePerBlock(hourlyRate)

	if minutes <= o.GraceMinutes || o.BlockMinutes <= 0 {
		return OvertimeResult{
			OvertimeMinutes:   minutes,
			WithinGracePeriod: minutes <= o.GraceMinutes,
			RatePerBlock:      ratePerBlock,
			Charge:            generic.ZeroMoney(),
		}
	}

	billable := minutes - o.GraceMinutes
	blocks := (billable + o.BlockMinutes - 1) / o.BlockMinutes
	return OvertimeResult{
		OvertimeMinutes: minutes,
		Blocks:          blocks,
		RatePerBlock:    ratePerBlock,
		Charge:          ratePerBlock.MulInt(blocks),
	}
}

// ratePerBlock = hourlyRate x (percent / 100) x (blockMinutes / 60), with a
// single division so a 15-minute block at $35 and 50% is exactly 4.375.
func (o OvertimeCalculator) ratePerBlock(hourlyRate generic.Money) generic.Money {
	return hourlyRate.
		Mul(o.RatePercent).
		MulInt(o.BlockMinutes).
		Div(decimal.NewFromInt(100 * 60))
}
