package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrForbidden           = errors.New("forbidden")
	ErrFleetNotFound       = errors.New("the fleet of the device no longer exists")
	ErrTargetFleetNotFound = errors.New("the target fleet does not exist")
	ErrNotEnrolled         = errors.New("the device is not enrolled yet")
	ErrMqttAccountMissing  = errors.New("the device has no MQTT account")
	ErrQueryTimeout        = errors.New("timeout")
	ErrGPSUnavailable      = errors.New("GPS is turned off or is not ready")
	ErrInvitationConsumed  = errors.New("invitation is not pending")
	ErrNoDefaultFleet      = errors.New("no default fleet available for the device")
	ErrNoTransport         = errors.New("no active transport")
)

// QueryError is the failure of a synchronous query sent to an agent.
type QueryError struct {
	Query  string
	Reason string
	Err    error
}

func (e *QueryError) Error() string { return e.Reason }
func (e *QueryError) Unwrap() error { return e.Err }

// EnrollmentError is a rejected enrollment. Message is the real cause and is
// always written to the invitation log; Public is what the device is told.
type EnrollmentError struct {
	Message string
	Public  string
	Err     error
}

func (e *EnrollmentError) Error() string { return e.Message }
func (e *EnrollmentError) Unwrap() error { return e.Err }

func enrollFailure(debug bool, err error, format string, args ...any) *EnrollmentError {
	msg := fmt.Sprintf(format, args...)
	pub := "Enrollment failed"
	if debug {
		pub = msg
	}
	return &EnrollmentError{Message: msg, Public: pub, Err: err}
}
