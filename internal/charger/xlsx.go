package charger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// loadXLSX reads the first sheet. Row 1 is the header and must name
// Longitude and Latitude columns, other columns become attributes.
func loadXLSX(path string) (Collection, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &DataFormatError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &DataFormatError{Path: path, Err: errors.New("workbook has no sheets")}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &DataFormatError{Path: path, Err: err}
	}
	if len(rows) == 0 {
		return nil, &DataFormatError{Path: path, Err: errors.New("sheet has no header row")}
	}

	header := make([]string, len(rows[0]))
	var hasLon, hasLat bool
	for i, name := range rows[0] {
		name = strings.TrimSpace(name)
		switch strings.ToLower(name) {
		case "longitude":
			name, hasLon = "Longitude", true
		case "latitude":
			name, hasLat = "Latitude", true
		}
		header[i] = name
	}
	if !hasLon || !hasLat {
		return nil, &DataFormatError{Path: path, Err: errors.New("header must contain Longitude and Latitude columns")}
	}

	c := make(Collection, 0, len(rows)-1)
	for rowIdx, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}

		m := make(map[string]any, len(header))
		for i, name := range header {
			if name == "" || i >= len(row) {
				continue
			}

			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}

			if name == "Longitude" || name == "Latitude" {
				v, err := parseCoord(cell)
				if err != nil {
					return nil, &DataFormatError{
						Path: path,
						Err:  fmt.Errorf("row %d column %s: %q is not a number", rowIdx+2, name, cell),
					}
				}
				m[name] = v
				continue
			}

			m[name] = cell
		}

		r := recordFromMap(m)
		r.Index = len(c)
		c = append(c, r)
	}

	return c, nil
}

func parseCoord(val string) (float64, error) {
	// decimal comma from localized spreadsheets
	val = strings.TrimSpace(strings.ReplaceAll(val, ",", "."))
	return strconv.ParseFloat(val, 64)
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}
