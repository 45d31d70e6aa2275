/*
Package geo approximates coordinates for Canadian postal codes and verifies proximity.

PURPOSE:
  Booking intake needs to know whether a client address is inside the service
  area, and shift start needs to know whether the worker is actually at the
  client's door. Neither needs street-level accuracy, so this package uses a
  static lookup table instead of a mapping API.

KEY CONCEPTS:
  - Coordinate: A latitude/longitude pair, always derived from a postal code
    or a live GPS reading. Never stored on its own.
  - FSA: Forward Sortation Area, the first three characters (M5V). Dense
    metro FSAs have curated coordinates.
  - Region: The first character (M = Toronto, K = Eastern Ontario). Used when
    the FSA is not in the table.
  - Jitter: A deterministic offset of at most 0.005 degrees derived from a
    hash of the normalized code. Distinct codes in one FSA land on distinct
    points, and the same code always lands on the same point.

THIS IS AN APPROXIMATION:
  Results are good to a few kilometres. Proximity checks built on top of it
  are soft gates, the office can always override. Swapping in a real
  geocoding provider means implementing Geocoder; callers don't change.

USAGE:
  c, err := geo.CoordinatesFromPostalCode("M5V 1J9")
  if errors.Is(err, generic.ErrPostalCodeUnresolved) {
      // "unable to verify address"
  }

SEE ALSO:
  - regions.go: FSA and region tables
  - distance.go: Haversine
  - proximity.go: Service radius and check-in checks
*/
package geo

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/carepoint/booking-engine/generic"
	"github.com/cespare/xxhash/v2"
)

// Coordinate is a point in decimal degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Geocoder resolves postal codes to coordinates.
type Geocoder interface {
	CoordinatesFromPostalCode(code string) (Coordinate, error)
}

// postalCodePattern is the Canadian grammar, A1A 1A1 with an optional space.
var postalCodePattern = regexp.MustCompile(`^[A-Z]\d[A-Z] ?\d[A-Z]\d$`)

// maxJitterDegrees bounds the per-code offset on each axis.
const maxJitterDegrees = 0.005

// NormalizePostalCode uppercases the code and strips all whitespace.
// It does not validate.
func NormalizePostalCode(code string) string {
	return strings.Join(strings.Fields(strings.ToUpper(code)), "")
}

// ValidPostalCode reports whether code matches the postal code grammar.
func ValidPostalCode(code string) bool {
	return postalCodePattern.MatchString(strings.ToUpper(strings.TrimSpace(code)))
}

// FSA returns the forward sortation area of a valid code, or "" if invalid.
func FSA(code string) string {
	if !ValidPostalCode(code) {
		return ""
	}
	return NormalizePostalCode(code)[:3]
}

// =============================================================================
// APPROXIMATOR - Table lookup plus deterministic jitter
// =============================================================================

// Approximator is the table-backed Geocoder.
type Approximator struct {
	fsas    map[string]Coordinate
	regions map[byte]Coordinate
}

// NewApproximator returns an Approximator over the built-in tables.
func NewApproximator() *Approximator {
	return &Approximator{fsas: fsaCoordinates, regions: regionCoordinates}
}

var defaultApproximator = NewApproximator()

// CoordinatesFromPostalCode resolves code with the built-in tables.
func CoordinatesFromPostalCode(code string) (Coordinate, error) {
	return defaultApproximator.CoordinatesFromPostalCode(code)
}

// CoordinatesFromPostalCode resolves code. Resolution order is the FSA table,
// then the region table. A malformed code returns ErrInvalidPostalCode; a
// well-formed code outside both tables returns ErrPostalCodeUnresolved.
func (a *Approximator) CoordinatesFromPostalCode(code string) (Coordinate, error) {
	if !ValidPostalCode(code) {
		return Coordinate{}, fmt.Errorf("%w: %q", generic.ErrInvalidPostalCode, code)
	}
	normalized := NormalizePostalCode(code)

	base, ok := a.fsas[normalized[:3]]
	if !ok {
		base, ok = a.regions[normalized[0]]
	}
	if !ok {
		return Coordinate{}, fmt.Errorf("%w: %s", generic.ErrPostalCodeUnresolved, normalized)
	}

	latOffset, lngOffset := jitter(normalized)
	return Coordinate{Lat: base.Lat + latOffset, Lng: base.Lng + lngOffset}, nil
}

// jitter derives two offsets in [-0.005, 0.005) from the hash of the
// normalized code. The latitude offset uses the low three decimal digits of
// the hash, the longitude offset the next three.
func jitter(normalized string) (lat, lng float64) {
	sum := xxhash.Sum64String(normalized)
	lat = (float64(sum%1000)/1000 - 0.5) * 2 * maxJitterDegrees
	lng = (float64((sum/1000)%1000)/1000 - 0.5) * 2 * maxJitterDegrees
	return lat, lng
}
