package errorsx

import (
	"errors"
	"fmt"
)

// ReasonedError tags an error with a failure class so pipeline stages
// can branch on what went wrong (rate limit, device write, auth)
// without matching message strings.
type ReasonedError struct {
	Reason ReasonCode
	Err    error
}

func (e ReasonedError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Err)
}

func (e ReasonedError) Unwrap() error {
	return e.Err
}

// Wrap classifies err under reason. The classification closest to the
// failure wins: an error that already carries a reason passes through
// untouched, so outer layers cannot relabel what an adapter reported.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	var re ReasonedError
	if errors.As(err, &re) {
		return err
	}
	return ReasonedError{Reason: reason, Err: err}
}

// Reason reports the failure class of err, ReasonUnknown when it was
// never classified.
func Reason(err error) ReasonCode {
	var re ReasonedError
	if err != nil && errors.As(err, &re) {
		return re.Reason
	}
	return ReasonUnknown
}

// HasReason reports whether err is classified under reason.
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}
