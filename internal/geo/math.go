package geo

import (
	"math"
)

const (
	// EarthRadius is the sphere radius used by Web Mercator (EPSG:3857).
	EarthRadius = 6378137.0

	// OriginShift is half of the Web Mercator world width in meters.
	OriginShift = math.Pi * EarthRadius

	// MaxLatitude is the latitude at which Web Mercator becomes a square world.
	MaxLatitude = 85.05112878

	meanEarthRadius = 6371000.0
)

// LonLatToMercator converts WGS84 (Lon/Lat) to Web Mercator meters.
//
// Latitude beyond MaxLatitude is clamped, so the poles map to the
// top and bottom edges of the world instead of infinity.
func LonLatToMercator(lon, lat float64) (x, y float64, err error) {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return 0, 0, &ProjectionError{Index: -1, Lon: lon, Lat: lat, Reason: "coordinate is not finite"}
	}
	if lon < -180 || lon > 180 {
		return 0, 0, &ProjectionError{Index: -1, Lon: lon, Lat: lat, Reason: "longitude outside [-180, 180]"}
	}
	if lat < -90 || lat > 90 {
		return 0, 0, &ProjectionError{Index: -1, Lon: lon, Lat: lat, Reason: "latitude outside [-90, 90]"}
	}

	if lat > MaxLatitude {
		lat = MaxLatitude
	} else if lat < -MaxLatitude {
		lat = -MaxLatitude
	}

	x = lon * OriginShift / 180.0
	y = math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) * EarthRadius

	return x, y, nil
}

// MercatorToLonLat converts Web Mercator meters back to WGS84 (Lon/Lat).
func MercatorToLonLat(x, y float64) (lon, lat float64) {
	lon = x / OriginShift * 180.0
	lat = (2.0*math.Atan(math.Exp(y/EarthRadius)) - math.Pi*0.5) * (180.0 / math.Pi)

	return lon, lat
}

// Haversine returns the great-circle distance in meters between two WGS84 points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)

	return meanEarthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
