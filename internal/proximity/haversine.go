package proximity

import "math"

// earthRadiusMeters is the mean Earth radius used for great-circle distance.
const earthRadiusMeters = 6_371_000.0

// Haversine returns the great-circle distance in meters between two points
// given in decimal degrees.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// DistanceMeters is Haversine rounded to whole meters.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) int {
	return int(math.Round(Haversine(lat1, lng1, lat2, lng2)))
}
