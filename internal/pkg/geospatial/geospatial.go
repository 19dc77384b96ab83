package geospatial

import "math"

// Around returns a bounding box around a point with the given radius in meters.
func Around(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// Ring returns the closed rectangle over a box as five lat/lon pairs:
// (min,min) -> (min,max) -> (max,max) -> (max,min) -> (min,min).
func Ring(minLat, minLon, maxLat, maxLon float64) [5][2]float64 {
	return [5][2]float64{
		{minLat, minLon},
		{minLat, maxLon},
		{maxLat, maxLon},
		{maxLat, minLon},
		{minLat, minLon},
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
