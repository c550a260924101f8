// Package geo handles geographic data structures and coordinate conversions.
package geo

// GeoJSONFeatureCollection is a GeoJSON document of charger points.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	BBox     []float64        `json:"bbox,omitempty"`
	Features []GeoJSONFeature `json:"features"`
}

// GeoJSONFeature is one charger with its input attributes as properties.
type GeoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   GeoJSONGeometry `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// GeoJSONGeometry is a Point geometry, coordinates are [lon, lat].
type GeoJSONGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// NewFeatureCollection returns an empty collection with capacity for n features.
func NewFeatureCollection(n int) GeoJSONFeatureCollection {
	return GeoJSONFeatureCollection{Type: "FeatureCollection", Features: make([]GeoJSONFeature, 0, n)}
}

// AddPoint appends a Point feature. Geographic points only, GeoJSON is always WGS84.
func (fc *GeoJSONFeatureCollection) AddPoint(p Point, props map[string]any) {
	if props == nil {
		props = map[string]any{}
	}

	fc.Features = append(fc.Features, GeoJSONFeature{
		Type: "Feature",
		Geometry: GeoJSONGeometry{
			Type:        "Point",
			Coordinates: []float64{p.X, p.Y},
		},
		Properties: props,
	})
}
