package output

import (
	"encoding/json"
	"os"

	"github.com/woozymasta/chargermap/internal/charger"
	"github.com/woozymasta/chargermap/internal/geo"

	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	mjson "github.com/tdewolff/minify/v2/json"
)

// ChargersToGeoJSON converts records to a FeatureCollection, keeping every attribute.
func ChargersToGeoJSON(c charger.Collection) geo.GeoJSONFeatureCollection {
	fc := geo.NewFeatureCollection(len(c))

	for _, r := range c {
		if !r.HasCoordinates() {
			continue
		}

		props := make(map[string]any, len(r.Attributes))
		for k, v := range r.Attributes {
			if k == "Longitude" || k == "Latitude" {
				continue
			}
			props[k] = v
		}

		fc.AddPoint(r.Point(), props)
	}

	if e, err := geo.ExtentOf(c.Points()); err == nil {
		fc.BBox = []float64{e.MinX, e.MinY, e.MaxX, e.MaxY}
	}

	return fc
}

// ExportGeoJSON writes the records as minified GeoJSON.
func ExportGeoJSON(path string, c charger.Collection) error {
	fc := ChargersToGeoJSON(c)

	raw, err := json.Marshal(fc)
	if err != nil {
		return &IOWriteError{Path: path, Err: err}
	}

	m := minify.New()
	// zero precision keeps every digit of IDs and attributes
	m.Add("application/geo+json", &mjson.Minifier{})

	data, err := m.Bytes("application/geo+json", raw)
	if err != nil {
		return &IOWriteError{Path: path, Err: err}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return &IOWriteError{Path: path, Err: err}
	}

	log.Info().
		Str("path", path).
		Int("features", len(fc.Features)).
		Msg("GeoJSON written")

	return nil
}
