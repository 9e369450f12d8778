package booking

import (
	"errors"
	"fmt"
)

// Query failures are classified so callers can distinguish "unable to
// determine state" from "class removed". None of these are retried
// here; retry policy belongs to the caller.
var (
	// ErrUnreachable: no response from the booking service at all.
	ErrUnreachable = errors.New("no response received from the booking service")

	// ErrMalformed: the service answered but the payload did not parse.
	ErrMalformed = errors.New("malformed booking service response")
)

// StatusError is a non-2xx answer from the booking service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("booking service responded with HTTP %d", e.Code)
}

// Describe renders the human-readable classification of a query
// failure, suitable for inclusion in a user notification.
func Describe(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnreachable):
		return "No response received from the booking service."
	case errors.As(err, &se):
		return fmt.Sprintf("The booking service responded with HTTP %d.", se.Code)
	case errors.Is(err, ErrMalformed):
		return "The booking service returned an unreadable response."
	default:
		return fmt.Sprintf("Error: %v.", err)
	}
}
