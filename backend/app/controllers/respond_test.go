package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"flyvemdm/backend/app/broker"
	"flyvemdm/backend/app/services"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("load: %w", gorm.ErrRecordNotFound), http.StatusNotFound},
		{services.ErrTargetFleetNotFound, http.StatusNotFound},
		{&services.EnrollmentError{Message: "Wrong email address", Public: "Enrollment failed"}, http.StatusBadRequest},
		{&services.QueryError{Reason: "Timeout querying the device", Err: services.ErrQueryTimeout}, http.StatusGatewayTimeout},
		{&services.QueryError{Reason: "GPS", Err: services.ErrGPSUnavailable}, http.StatusConflict},
		{&services.QueryError{Reason: "none", Err: services.ErrNoTransport}, http.StatusServiceUnavailable},
		{errors.Join(&broker.TransportError{Kind: broker.KindMQTT, Err: errors.New("down")}), http.StatusBadGateway},
		{services.ErrNotEnrolled, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("dsn password=hunter2"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodPost, "/enroll", nil),
		&services.EnrollmentError{Message: "Wrong email address", Public: "Enrollment failed"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Enrollment failed"}`, rec.Body.String())
}

func TestPartialFailureNeedsOnlyTransportErrors(t *testing.T) {
	mqttDown := &broker.TransportError{Kind: broker.KindMQTT, Err: errors.New("down")}
	fcmDown := &broker.TransportError{Kind: broker.KindFCM, Err: errors.New("quota")}

	_, ok := partialFailure(nil)
	require.False(t, ok)
	msg, ok := partialFailure(errors.Join(mqttDown, fcmDown))
	require.True(t, ok)
	require.Contains(t, msg, "down")
	_, ok = partialFailure(fmt.Errorf("notify: %w", errors.Join(mqttDown)))
	require.True(t, ok)

	_, ok = partialFailure(errors.Join(mqttDown, errors.New("database is locked")))
	require.False(t, ok)
	_, ok = partialFailure(fmt.Errorf("save: %w", errors.Join(mqttDown, errors.New("database is locked"))))
	require.False(t, ok)
	_, ok = partialFailure(errors.New("database is locked"))
	require.False(t, ok)
}
