package geo

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// OFFICE REFERENCE POINT AND THRESHOLDS
// =============================================================================

// The office location is fixed. It is not configurable at runtime.
const (
	OfficePostalCode = "M5H 2N2"
	OfficeLat        = 43.6532
	OfficeLng        = -79.3832
)

// Office is the reference point for the service-radius check.
var Office = Coordinate{Lat: OfficeLat, Lng: OfficeLng}

const (
	// DefaultServiceRadiusKm is the service area around the office.
	DefaultServiceRadiusKm = 75.0

	// ClientVisitThresholdMeters applies to check-in at a client's address.
	ClientVisitThresholdMeters = 200.0

	// TransportPickupThresholdMeters applies to transport and escort shifts,
	// where the pickup point is often a building entrance or parking lot.
	TransportPickupThresholdMeters = 500.0
)

// CheckInThreshold returns the check-in threshold for a shift.
func CheckInThreshold(transport bool) float64 {
	if transport {
		return TransportPickupThresholdMeters
	}
	return ClientVisitThresholdMeters
}

// =============================================================================
// RESULTS - Negative outcomes are values, not errors
// =============================================================================

// ServiceAreaResult is the outcome of a postal-code service-radius check.
// Verified is false when the code could not be resolved; WithinRadius is
// then false too and DistanceKm is zero.
type ServiceAreaResult struct {
	Verified     bool
	WithinRadius bool
	DistanceKm   float64
	RadiusKm     float64
	Message      string
}

// CheckInResult is the outcome of a live check-in proximity check.
type CheckInResult struct {
	WithinProximity bool
	DistanceMeters  float64
	ThresholdMeters float64
	Message         string
}

// =============================================================================
// VERIFIER
// =============================================================================

// Verifier runs service-radius and check-in proximity checks.
type Verifier struct {
	geocoder        Geocoder
	serviceRadiusKm float64
	locateTimeout   time.Duration
	logger          zerolog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithGeocoder replaces the table-backed approximator.
func WithGeocoder(g Geocoder) VerifierOption {
	return func(v *Verifier) { v.geocoder = g }
}

// WithServiceRadius sets the radius used by IsWithinServiceRadius.
func WithServiceRadius(km float64) VerifierOption {
	return func(v *Verifier) { v.serviceRadiusKm = km }
}

// WithLocateTimeout bounds how long CheckIn waits for a reading.
func WithLocateTimeout(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.locateTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) VerifierOption {
	return func(v *Verifier) { v.logger = l }
}

func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		geocoder:        defaultApproximator,
		serviceRadiusKm: DefaultServiceRadiusKm,
		locateTimeout:   DefaultLocateTimeout,
		logger:          log.Logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Geocoder returns the geocoder the verifier resolves codes with.
func (v *Verifier) Geocoder() Geocoder { return v.geocoder }

// ServiceRadiusKm returns the configured service radius.
func (v *Verifier) ServiceRadiusKm() float64 { return v.serviceRadiusKm }

// IsWithinServiceRadius reports whether (lat, lng) is within the configured
// service radius of the office.
func (v *Verifier) IsWithinServiceRadius(lat, lng float64) bool {
	return v.IsWithinRadius(lat, lng, v.serviceRadiusKm)
}

// IsWithinRadius reports whether (lat, lng) is within radiusKm of the office.
// The boundary is inclusive.
func (v *Verifier) IsWithinRadius(lat, lng, radiusKm float64) bool {
	return DistanceKm(Office, Coordinate{Lat: lat, Lng: lng}) <= radiusKm
}

// IsPostalCodeWithinServiceRadius resolves code and compares it with the
// resolved office postal code. A radiusKm of zero or less uses the
// configured radius.
func (v *Verifier) IsPostalCodeWithinServiceRadius(code string, radiusKm float64) ServiceAreaResult {
	if radiusKm <= 0 {
		radiusKm = v.serviceRadiusKm
	}

	target, err := v.geocoder.CoordinatesFromPostalCode(code)
	if err != nil {
		v.logger.Info().Err(err).Str("postal_code", code).Msg("service area check could not resolve postal code")
		return ServiceAreaResult{
			RadiusKm: radiusKm,
			Message:  "Unable to verify address. Please check the postal code or contact the office.",
		}
	}
	office, err := v.geocoder.CoordinatesFromPostalCode(OfficePostalCode)
	if err != nil {
		// Only reachable with a custom geocoder that doesn't know the office.
		v.logger.Warn().Err(err).Msg("office postal code unresolved, using fixed office coordinate")
		office = Office
	}

	raw := DistanceKm(office, target)
	distance := roundTo(raw, 1)
	result := ServiceAreaResult{
		Verified:     true,
		WithinRadius: raw <= radiusKm,
		DistanceKm:   distance,
		RadiusKm:     radiusKm,
	}
	if result.WithinRadius {
		result.Message = fmt.Sprintf("Address is within our service area (%.1f km from office).", distance)
	} else {
		result.Message = fmt.Sprintf(
			"Address is %.1f km from our office, outside the %.0f km service area. Please contact the office to arrange service.",
			distance, radiusKm)
	}
	return result
}

// IsWithinCheckInProximity compares a live reading with a target location.
// A thresholdMeters of zero or less uses the client-visit threshold.
func (v *Verifier) IsWithinCheckInProximity(pswLat, pswLng, targetLat, targetLng, thresholdMeters float64) CheckInResult {
	if thresholdMeters <= 0 {
		thresholdMeters = ClientVisitThresholdMeters
	}
	raw := DistanceMeters(
		Coordinate{Lat: pswLat, Lng: pswLng},
		Coordinate{Lat: targetLat, Lng: targetLng},
	)
	distance := math.Round(raw)

	result := CheckInResult{
		WithinProximity: raw <= thresholdMeters,
		DistanceMeters:  distance,
		ThresholdMeters: thresholdMeters,
	}
	if result.WithinProximity {
		result.Message = fmt.Sprintf("Location verified (%.0f m from the visit location).", distance)
	} else {
		result.Message = fmt.Sprintf(
			"You are %.0f m from the visit location (limit %.0f m). Please move closer or contact the office to check in.",
			distance, thresholdMeters)
	}
	return result
}

// CheckInAtPostalCode resolves the client's postal code and checks the
// reading against it. Resolution failures are returned as errors since there
// is no target to measure against.
func (v *Verifier) CheckInAtPostalCode(psw Coordinate, code string, transport bool) (CheckInResult, error) {
	target, err := v.geocoder.CoordinatesFromPostalCode(code)
	if err != nil {
		return CheckInResult{}, err
	}
	return v.IsWithinCheckInProximity(psw.Lat, psw.Lng, target.Lat, target.Lng, CheckInThreshold(transport)), nil
}

func roundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
