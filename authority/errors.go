package authority

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError reports a non-success HTTP status from the authority.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("authority returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("authority returned status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the status may succeed on retry.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTransient returns true if err is a StatusError that may succeed on retry.
func IsTransient(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Transient()
}
