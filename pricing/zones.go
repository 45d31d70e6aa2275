package pricing

import (
	"sort"
	"strings"

	"github.com/carepoint/booking-engine/generic"
	"github.com/carepoint/booking-engine/geo"
	"github.com/shopspring/decimal"
)

// SurgeZone is a regional surcharge area.
type SurgeZone struct {
	ID      string
	Name    string
	Enabled bool

	// Priority decides between several matching zones: lower wins, ties go
	// to the smaller id. List order never matters.
	Priority int

	ClientSurcharge decimal.Decimal // $/hr added to the client total
	PSWBonus        decimal.Decimal // $/hr paid to the worker
	PSWFlatBonus    decimal.Decimal // $ per shift paid to the worker

	PostalCodePrefixes []string // two-character prefixes, e.g. "L4"
	Cities             []string
}

func (z SurgeZone) Validate() error {
	if z.ClientSurcharge.IsNegative() || z.PSWBonus.IsNegative() || z.PSWFlatBonus.IsNegative() {
		return generic.NewValidationError("surge_zones", "zone "+z.ID+" has a negative amount")
	}
	return nil
}

// Matches reports whether an enabled zone covers the city (case-insensitive)
// or the postal code's first two characters.
func (z SurgeZone) Matches(city, postalCode string) bool {
	if !z.Enabled {
		return false
	}
	if c := strings.TrimSpace(city); c != "" {
		for _, zc := range z.Cities {
			if strings.EqualFold(strings.TrimSpace(zc), c) {
				return true
			}
		}
	}
	if code := geo.NormalizePostalCode(postalCode); len(code) >= 2 {
		for _, p := range z.PostalCodePrefixes {
			if geo.NormalizePostalCode(p) == code[:2] {
				return true
			}
		}
	}
	return false
}

// MatchZone returns the single zone that applies to a booking. Zones never
// combine.
func MatchZone(zones []SurgeZone, city, postalCode string) (SurgeZone, bool) {
	var matched []SurgeZone
	for _, z := range zones {
		if z.Matches(city, postalCode) {
			matched = append(matched, z)
		}
	}
	if len(matched) == 0 {
		return SurgeZone{}, false
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].ID < matched[j].ID
	})
	return matched[0], true
}
