package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"flyvemdm/backend/app/broker"
	"flyvemdm/backend/app/dto"
	"flyvemdm/backend/app/middleware"
	"flyvemdm/backend/app/services"
	"flyvemdm/backend/global"

	"gorm.io/gorm"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

// statusOf maps service failures to HTTP status codes.
func statusOf(err error) int {
	var ee *services.EnrollmentError
	var te *broker.TransportError
	switch {
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.As(err, &ee),
		errors.Is(err, services.ErrEmailRequired),
		errors.Is(err, services.ErrNameRequired),
		errors.Is(err, services.ErrInvalidLimit):
		return http.StatusBadRequest
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, services.ErrFleetNotFound),
		errors.Is(err, services.ErrTargetFleetNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotEnrolled),
		errors.Is(err, services.ErrInvitationConsumed),
		errors.Is(err, services.ErrDefaultFleetPolicy),
		errors.Is(err, services.ErrPolicyExists),
		errors.Is(err, services.ErrDefaultFleet),
		errors.Is(err, services.ErrFleetInUse),
		errors.Is(err, services.ErrGPSUnavailable):
		return http.StatusConflict
	case errors.Is(err, services.ErrQueryTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrNoTransport):
		return http.StatusServiceUnavailable
	case errors.As(err, &te):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	var ee *services.EnrollmentError
	switch {
	case errors.As(err, &ee):
		msg = ee.Public
	case errors.Is(err, gorm.ErrRecordNotFound):
		msg = "not found"
	case status == http.StatusInternalServerError:
		msg = "internal error"
	}
	if status >= http.StatusInternalServerError {
		global.Logger.Error().Err(err).Str("request_id", middleware.RequestID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
	}
	writeMessage(w, status, msg)
}

// actorOf builds the service actor from the token claims set by the auth middleware.
func actorOf(r *http.Request) services.Actor {
	c := middleware.GetClaims(r.Context())
	if c == nil {
		return services.Actor{}
	}
	return services.Actor{UserID: c.UserID, Username: c.Username, Role: c.Role}
}

func uintParam(r *http.Request, name string) (uint, bool) {
	v, err := strconv.ParseUint(r.URL.Query().Get(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// partialFailure reports a transport error that did not prevent the change
// itself, so the caller still gets the resulting object. Any other error
// mixed into a join makes the whole call a failure.
func partialFailure(err error) (string, bool) {
	if err == nil || !onlyTransportErrors(err) {
		return "", false
	}
	return err.Error(), true
}

func onlyTransportErrors(err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		if len(errs) == 0 {
			return false
		}
		for _, e := range errs {
			if e != nil && !onlyTransportErrors(e) {
				return false
			}
		}
		return true
	}
	if _, ok := err.(*broker.TransportError); ok {
		return true
	}
	if next := errors.Unwrap(err); next != nil {
		return onlyTransportErrors(next)
	}
	return false
}
