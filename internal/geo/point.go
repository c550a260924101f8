package geo

import (
	"errors"
	"fmt"
)

// CRS identifies the coordinate reference system of a Point.
type CRS string

const (
	WGS84       CRS = "EPSG:4326"
	WebMercator CRS = "EPSG:3857"
)

// ErrEmptyDataset is returned when there is nothing to place on the map.
var ErrEmptyDataset = errors.New("empty dataset: no charger records to render")

// Point is a 2D coordinate tagged with its CRS.
// For WGS84 X is longitude and Y is latitude.
type Point struct {
	CRS CRS
	X   float64
	Y   float64
}

// LonLat returns a geographic point.
func LonLat(lon, lat float64) Point {
	return Point{CRS: WGS84, X: lon, Y: lat}
}

// ProjectionError reports a coordinate outside the valid domain of the projection.
type ProjectionError struct {
	Reason string
	Index  int // position in the input, -1 for a single coordinate
	Lon    float64
	Lat    float64
}

func (e *ProjectionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("projection: (lon=%g, lat=%g): %s", e.Lon, e.Lat, e.Reason)
	}
	return fmt.Sprintf("projection: record %d (lon=%g, lat=%g): %s", e.Index, e.Lon, e.Lat, e.Reason)
}

// ToWebMercator reprojects the point. Points already in Web Mercator are returned as is.
func (p Point) ToWebMercator() (Point, error) {
	switch p.CRS {
	case WebMercator:
		return p, nil
	case WGS84:
		x, y, err := LonLatToMercator(p.X, p.Y)
		if err != nil {
			return Point{}, err
		}
		return Point{CRS: WebMercator, X: x, Y: y}, nil
	default:
		return Point{}, fmt.Errorf("projection: unsupported crs %q", p.CRS)
	}
}

// ProjectAll reprojects every point to Web Mercator.
// All invalid points are reported together.
func ProjectAll(points []Point) ([]Point, error) {
	out := make([]Point, len(points))
	var errs []error

	for i, p := range points {
		projected, err := p.ToWebMercator()
		if err != nil {
			var pe *ProjectionError
			if errors.As(err, &pe) {
				pe.Index = i
			}
			errs = append(errs, err)
			continue
		}
		out[i] = projected
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return out, nil
}
