package charger

import (
	"errors"

	"github.com/woozymasta/chargermap/internal/geo"
)

// Project returns the records as Web Mercator points.
// Projection errors carry the input index of the offending record.
func (c Collection) Project() ([]geo.Point, error) {
	points := make([]geo.Point, 0, len(c))
	source := make([]int, 0, len(c))
	for _, r := range c {
		if r.HasCoordinates() {
			points = append(points, r.Point())
			source = append(source, r.Index)
		}
	}

	projected, err := geo.ProjectAll(points)
	if err != nil {
		errs := []error{err}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			errs = joined.Unwrap()
		}

		for _, e := range errs {
			var pe *geo.ProjectionError
			if errors.As(e, &pe) && pe.Index >= 0 && pe.Index < len(source) {
				pe.Index = source[pe.Index]
			}
		}

		return nil, err
	}

	return projected, nil
}
