package controllers

import (
	"net/http"
	"strconv"

	"flyvemdm/backend/app/services"
)

type MqttLogController struct{ Logs *services.MqttLogService }

func NewMqttLogController(s *services.MqttLogService) *MqttLogController {
	return &MqttLogController{Logs: s}
}

// GetLatest lists the last messages of ?agent_id=, newest first.
func (c *MqttLogController) GetLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := uintParam(r, "agent_id")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := c.Logs.Latest(actorOf(r), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
