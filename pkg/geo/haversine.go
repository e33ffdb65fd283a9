// Package geo holds the spherical helpers used for edge lengths and snapping.
package geo

import "math"

const (
	earthRadiusMeters = 6_371_000.0
	degToRad          = math.Pi / 180

	// metersPerDegree is the length of one degree of latitude.
	metersPerDegree = degToRad * earthRadiusMeters
)

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad
	sLat, sLon := math.Sin(dLat/2), math.Sin(dLon/2)

	a := sLat*sLat + math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*sLon*sLon
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// EquirectangularDist approximates the distance in meters. Within a few
// kilometers it stays within 0.1% of Haversine; use it to rank candidates,
// not for edge lengths.
func EquirectangularDist(lat1, lon1, lat2, lon2 float64) float64 {
	x := (lon2 - lon1) * math.Cos((lat1+lat2)/2*degToRad)
	y := lat2 - lat1
	return math.Hypot(x, y) * metersPerDegree
}

// BoundingBox returns the box of half-width radiusMeters around a point.
// Longitude span grows with latitude and is clamped near the poles.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	dLat := radiusMeters / metersPerDegree
	cos := math.Max(math.Cos(lat*degToRad), 1e-6)
	dLon := math.Min(dLat/cos, 180)
	return lat - dLat, lon - dLon, lat + dLat, lon + dLon
}

// PointToSegmentDist returns the distance in meters from P to segment AB
// and where the closest point lies along AB, from 0 at A to 1 at B.
// It works in a local equirectangular projection, which is fine for the
// short distances snapping deals with.
func PointToSegmentDist(pLat, pLon, aLat, aLon, bLat, bLon float64) (dist, ratio float64) {
	cosLat := math.Cos((aLat + bLat) / 2 * degToRad)
	ax, ay := aLon*cosLat, aLat
	px, py := pLon*cosLat, pLat

	// Compare the raw coordinates: projecting identical points can leave
	// noise of ~1e-15 behind.
	if aLat == bLat && aLon == bLon {
		return math.Hypot(px-ax, py-ay) * metersPerDegree, 0
	}

	dx, dy := bLon*cosLat-ax, bLat-ay
	if lenSq := dx*dx + dy*dy; lenSq > 0 {
		ratio = min(max(((px-ax)*dx+(py-ay)*dy)/lenSq, 0), 1)
	}
	return math.Hypot(px-(ax+ratio*dx), py-(ay+ratio*dy)) * metersPerDegree, ratio
}
