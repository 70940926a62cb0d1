package controllers

import (
	"net/http"

	"flyvemdm/backend/app/dto"
	"flyvemdm/backend/app/services"
)

type EnrollController struct{ Enrollment *services.EnrollmentService }

func NewEnrollController(e *services.EnrollmentService) *EnrollController {
	return &EnrollController{Enrollment: e}
}

// Enroll is public: the invitation token in the body is the credential.
func (c *EnrollController) Enroll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req services.EnrollRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}
	res, err := c.Enrollment.Enroll(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.EnrollResponse{
		Agent:        agentResponse(res.Agent),
		APIToken:     res.APIToken,
		Topic:        res.Topic,
		MqttUser:     res.MqttUser,
		MqttPassword: res.MqttPassword,
		Broker:       res.Broker,
		Port:         res.Port,
		TLSPort:      res.TLSPort,
		TLS:          res.TLS,
		Certificate:  res.Certificate,
	})
}
