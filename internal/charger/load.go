package charger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Load reads charger records from path.
// Files ending in .xlsx are read as spreadsheets, everything else as a JSON array of objects.
func Load(path string) (Collection, error) {
	var (
		c   Collection
		err error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		c, err = loadXLSX(path)
	default:
		c, err = loadJSON(path)
	}
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("path", path).
		Int("records", len(c)).
		Msg("Charger records loaded")

	return c, nil
}

func loadJSON(path string) (Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DataFormatError{Path: path, Err: err}
	}

	return decodeJSON(path, data)
}

func decodeJSON(path string, data []byte) (Collection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &DataFormatError{Path: path, Err: errors.New("expected a JSON array of objects")}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, &DataFormatError{Path: path, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &DataFormatError{Path: path, Err: fmt.Errorf("unexpected data after the array at offset %d", dec.InputOffset())}
	}

	c := make(Collection, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &DataFormatError{Path: path, Err: fmt.Errorf("element %d is not an object", i)}
		}
		r := recordFromMap(m)
		r.Index = i
		c = append(c, r)
	}

	return c, nil
}
