package charger

import "errors"

// Validate checks every record and reports all schema violations at once.
func Validate(c Collection) error {
	if len(c) == 0 {
		return ErrEmptyDataset
	}

	var errs []error
	for _, r := range c {
		if r.Longitude == nil {
			errs = append(errs, &MissingFieldError{Index: r.Index, Field: "Longitude"})
		}
		if r.Latitude == nil {
			errs = append(errs, &MissingFieldError{Index: r.Index, Field: "Latitude"})
		}
	}

	return errors.Join(errs...)
}
