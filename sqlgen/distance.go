package sqlgen

import "math"

// EarthRadiusKm is the radius used by Distance.
const EarthRadiusKm = 6378.1

// Distance returns the great-circle distance in kilometres between two
// points given in degrees, using the spherical law of cosines.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	cos := math.Sin(phi1)*math.Sin(phi2) + math.Cos(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	// Rounding can push the cosine of identical points past 1.
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * EarthRadiusKm
}
