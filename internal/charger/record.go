// Package charger loads, validates and filters charging station records.
package charger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/woozymasta/chargermap/internal/geo"
)

// Record is one charging station. Only the coordinates are required,
// everything else in the input is kept in Attributes.
type Record struct {
	Longitude   *float64       // nil if absent or not a number
	Latitude    *float64       // nil if absent or not a number
	Attributes  map[string]any // every input field, as read
	ID          string
	Title       string
	DateCreated string
	Index       int // position in the input file
}

// Collection is an ordered list of records in file order.
type Collection []Record

// Point returns the geographic point of a validated record.
func (r Record) Point() geo.Point {
	return geo.LonLat(*r.Longitude, *r.Latitude)
}

// HasCoordinates reports whether both coordinates are set.
func (r Record) HasCoordinates() bool {
	return r.Longitude != nil && r.Latitude != nil
}

// Points returns the geographic points of the collection.
// Call Validate first, records without coordinates are skipped.
func (c Collection) Points() []geo.Point {
	points := make([]geo.Point, 0, len(c))
	for _, r := range c {
		if r.HasCoordinates() {
			points = append(points, r.Point())
		}
	}

	return points
}

// recordFromMap builds a record from a decoded JSON object or a spreadsheet row.
// Coordinates are read from the top level first and from AddressInfo otherwise,
// which is where the OpenChargeMap POI format keeps them.
func recordFromMap(m map[string]any) Record {
	r := Record{Attributes: m}

	address, _ := m["AddressInfo"].(map[string]any)

	r.Longitude = lookupNumber(m, address, "Longitude")
	r.Latitude = lookupNumber(m, address, "Latitude")
	r.ID = lookupString(m, nil, "ID")
	r.Title = lookupString(m, address, "Title")
	if r.Title == "" {
		r.Title = lookupString(m, nil, "Name")
	}
	r.DateCreated = lookupString(m, nil, "DateCreated")

	return r
}

func lookupNumber(m, fallback map[string]any, key string) *float64 {
	if n := number(m[key]); n != nil {
		return n
	}

	return number(fallback[key])
}

func lookupString(m, fallback map[string]any, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return stringify(v)
	}
	if v, ok := fallback[key]; ok && v != nil {
		return stringify(v)
	}

	return ""
}

func number(v any) *float64 {
	var f float64

	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = n
	case int:
		f = float64(n)
	default:
		return nil
	}

	return &f
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}
