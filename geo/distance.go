package geo

import "math"

const (
	earthRadiusKm     = 6371.0
	earthRadiusMeters = 6371000.0
)

// DistanceKm returns the great-circle distance between a and b in kilometres.
func DistanceKm(a, b Coordinate) float64 {
	return haversine(a, b, earthRadiusKm)
}

// DistanceMeters returns the great-circle distance between a and b in metres.
func DistanceMeters(a, b Coordinate) float64 {
	return haversine(a, b, earthRadiusMeters)
}

func haversine(a, b Coordinate, radius float64) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return radius * c
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
