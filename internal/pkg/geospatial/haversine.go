package geospatial

import "math"

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// Round truncates a degree value to the given number of decimal places.
// Six places is roughly 11 cm, enough to key caches on a station position.
func Round(deg float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(deg*p) / p
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
