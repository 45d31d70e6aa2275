/*
Package surge evaluates scheduled surge rules.

PURPOSE:
  Administrators schedule price multipliers for busy periods: statutory
  holidays, weekend evenings, a storm week. Each rule carries an optional
  date range, an optional time-of-day window and an optional set of weekdays.
  Missing bounds are unconstrained.

KEY CONCEPTS:
  - Rule: One scheduled multiplier, stackable or not
  - Stacking: Active stackable rules multiply together. Non-stackable rules
    don't combine; the largest one acts as a floor. The final multiplier is
    max(product of stackables, max of non-stackables).
  - Two evaluation modes:
      Now (IsRuleActive): operational views and ASAP quotes, "is surge on
      right now?"
      Booking (IsRuleActiveForBooking): pricing a future slot, evaluated
      against the booking's date and time, not the current instant.

TIME COMPARISON:
  Dates ("YYYY-MM-DD") and times ("HH:MM") are compared as strings, both
  bounds inclusive. Zero-padded formats make string order equal time order.
  A window whose start is after its end (22:00-06:00) never matches; split
  overnight surges into two rules.

EXAMPLE:
  Holiday      x1.5  2025-12-25..2025-12-25       non-stackable
  Evenings     x1.2  18:00..23:59                 stackable
  Weekends     x1.1  days [0, 6]                  stackable

  Saturday 19:00:        1.2 x 1.1 = 1.32
  Christmas 19:00 (Thu): max(1.2, 1.5) = 1.5

SEE ALSO:
  - engine.go: Combination and evaluation
  - factory/surge.go: JSON schema and repository
*/
package surge

import (
	"fmt"
	"time"

	"github.com/carepoint/booking-engine/generic"
	"github.com/shopspring/decimal"
)

// Rule is one scheduled surge multiplier.
type Rule struct {
	ID         string
	Name       string
	Enabled    bool
	Multiplier decimal.Decimal

	// Inclusive bounds, empty means unbounded.
	StartDate string // YYYY-MM-DD
	EndDate   string
	StartTime string // HH:MM
	EndTime   string

	// Empty means every day.
	DaysOfWeek []time.Weekday

	Stackable bool
}

// HasTimeWindow reports whether the rule is limited to a time of day.
func (r Rule) HasTimeWindow() bool { return r.StartTime != "" || r.EndTime != "" }

// Validate checks a rule before it is saved.
func (r Rule) Validate() error {
	if !r.Multiplier.IsPositive() {
		return generic.NewValidationError("multiplier", "must be greater than 0")
	}
	for field, v := range map[string]string{"start_date": r.StartDate, "end_date": r.EndDate} {
		if v == "" {
			continue
		}
		if _, err := generic.ParseDate(v, time.UTC); err != nil {
			return generic.NewValidationError(field, fmt.Sprintf("%q is not YYYY-MM-DD", v))
		}
	}
	for field, v := range map[string]string{"start_time": r.StartTime, "end_time": r.EndTime} {
		if v == "" {
			continue
		}
		c, err := generic.ParseClockTime(v)
		if err != nil || c.String() != v {
			return generic.NewValidationError(field, fmt.Sprintf("%q is not HH:MM", v))
		}
	}
	for _, d := range r.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return generic.NewValidationError("days_of_week", fmt.Sprintf("%d is not in 0-6", d))
		}
	}
	return nil
}

// matches applies every bound to one evaluation point. When hasClock is false
// the evaluation has no time of day, and time-windowed rules do not match.
func (r Rule) matches(date, clock string, hasClock bool, weekday time.Weekday) bool {
	if !r.Enabled {
		return false
	}
	if r.StartDate != "" && date < r.StartDate {
		return false
	}
	if r.EndDate != "" && date > r.EndDate {
		return false
	}
	if r.HasTimeWindow() {
		if !hasClock {
			return false
		}
		if r.StartTime != "" && clock < r.StartTime {
			return false
		}
		if r.EndTime != "" && clock > r.EndTime {
			return false
		}
	}
	if len(r.DaysOfWeek) > 0 && !containsWeekday(r.DaysOfWeek, weekday) {
		return false
	}
	return true
}

func containsWeekday(days []time.Weekday, d time.Weekday) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}
