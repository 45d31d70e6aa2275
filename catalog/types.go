/*
Package catalog holds the billable task definitions the price calculator reads.

PURPOSE:
  A booking is a list of task ids. Each task contributes included minutes and
  a base hourly cost, and may change how the whole booking is priced: a
  doctor-appointment escort raises the minimum hours, a hospital discharge
  sets a fee floor and demands discharge paperwork, and a single taxable task
  taxes the entire booking.

KEY CONCEPTS:
  - Task: One billable unit of care (name, minutes, base cost, flags)
  - ServiceCategory: standard, doctor-appointment or hospital-discharge.
    When tasks are mixed, the booking takes the highest-priority category.
  - Catalog: The repository. Reads from a TaskSource, caches for a TTL, and
    falls back to the built-in defaults when the source fails or is empty.

FALLBACK:
  Pricing must never fail entirely because the catalog store is down. The
  built-in defaults are returned but never cached, so the next read after the
  TTL (or after Refresh) tries the source again.

SEE ALSO:
  - defaults.go: Built-in task set
  - catalog.go: Repository with TTL cache
  - store/sqlite, store/postgres: TaskSource implementations
  - store/redis: SharedCache implementation
*/
package catalog

import (
	"fmt"
	"strings"

	"github.com/carepoint/booking-engine/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SERVICE CATEGORY
// =============================================================================

type ServiceCategory string

const (
	CategoryStandard          ServiceCategory = "standard"
	CategoryDoctorAppointment ServiceCategory = "doctor-appointment"
	CategoryHospitalDischarge ServiceCategory = "hospital-discharge"
)

// ParseServiceCategory accepts the three category names. Empty means standard.
func ParseServiceCategory(s string) (ServiceCategory, error) {
	switch c := ServiceCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case "", CategoryStandard:
		return CategoryStandard, nil
	case CategoryDoctorAppointment, CategoryHospitalDischarge:
		return c, nil
	default:
		return "", generic.NewValidationError("service_category", fmt.Sprintf("unknown category %q", s))
	}
}

// rank orders categories for mixed bookings: discharge > doctor > standard.
func (c ServiceCategory) rank() int {
	switch c {
	case CategoryHospitalDischarge:
		return 2
	case CategoryDoctorAppointment:
		return 1
	default:
		return 0
	}
}

// =============================================================================
// TASK
// =============================================================================

type Task struct {
	ID                      string
	Name                    string
	IncludedMinutes         int
	BaseCost                decimal.Decimal // dollars per hour
	IsHospitalDoctor        bool
	Category                ServiceCategory
	RequiresDischargeUpload bool
	ApplyHST                bool
}

// Validate checks the invariants an administrator must not break.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: %w", generic.ErrInvalidTask, generic.NewValidationError("task_name", "required"))
	}
	if t.IncludedMinutes < 0 {
		return fmt.Errorf("%w: %w", generic.ErrInvalidTask, generic.NewValidationError("included_minutes", "must be >= 0"))
	}
	if t.BaseCost.IsNegative() {
		return fmt.Errorf("%w: %w", generic.ErrInvalidTask, generic.NewValidationError("base_cost", "must be >= 0"))
	}
	if _, err := ParseServiceCategory(string(t.Category)); err != nil {
		return fmt.Errorf("%w: %w", generic.ErrInvalidTask, err)
	}
	return nil
}

// =============================================================================
// DERIVED HELPERS - Operate on an already-resolved task list
// =============================================================================

// Select returns the tasks matching ids in the order given, and how many ids
// matched nothing. Duplicate ids select the task twice.
func Select(tasks []Task, ids []string) (selected []Task, unmatched int) {
	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			selected = append(selected, t)
		} else {
			unmatched++
		}
	}
	return selected, unmatched
}

// AnyRequiresDischargeUpload is true if any task demands discharge paperwork.
func AnyRequiresDischargeUpload(tasks []Task) bool {
	for _, t := range tasks {
		if t.RequiresDischargeUpload {
			return true
		}
	}
	return false
}

// CategoryOf returns the highest-priority category among tasks.
func CategoryOf(tasks []Task) ServiceCategory {
	best := CategoryStandard
	for _, t := range tasks {
		if t.Category.rank() > best.rank() {
			best = t.Category
		}
	}
	return best
}

// AnyApplyHST is true if at least one task is taxable. One taxable task taxes
// the whole booking.
func AnyApplyHST(tasks []Task) bool {
	for _, t := range tasks {
		if t.ApplyHST {
			return true
		}
	}
	return false
}

// HasCategory reports whether any task is in category c.
func HasCategory(tasks []Task, c ServiceCategory) bool {
	for _, t := range tasks {
		if t.Category == c {
			return true
		}
	}
	return false
}

func cloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}
