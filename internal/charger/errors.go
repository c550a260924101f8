package charger

import (
	"fmt"

	"github.com/woozymasta/chargermap/internal/geo"
)

// ErrEmptyDataset is returned when no records are left to render.
var ErrEmptyDataset = geo.ErrEmptyDataset

// DataFormatError reports an input file that is missing, unreadable or malformed.
type DataFormatError struct {
	Err  error
	Path string
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("data format: %s: %v", e.Path, e.Err)
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// MissingFieldError reports a record without a usable coordinate field.
type MissingFieldError struct {
	Field string
	Index int
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("record %d: missing or non-numeric field %q", e.Index, e.Field)
}
