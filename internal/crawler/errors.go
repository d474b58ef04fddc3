package crawler

import (
	"errors"
	"fmt"
)

// ErrEmptyEnumeration is returned when a source that always lists movies
// produced no candidates.
var ErrEmptyEnumeration = errors.New("enumeration returned no sites")

// ExtractError reports a required DOM anchor missing from a page.
type ExtractError struct {
	URL   string
	Field string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s from %s: required element not found", e.Field, e.URL)
}

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}
