package controllers

import (
	"net/http"

	"flyvemdm/backend/app/services"
)

type DeviceController struct{ devices *services.DeviceService }

func NewDeviceController(devices *services.DeviceService) *DeviceController {
	return &DeviceController{devices: devices}
}

// Devices serves GET ?id= (one device with its last position and inventory),
// GET ?entity_id= (list), DELETE ?id=, which purges the device's agent, and
// DELETE ?entity_id=, which purges every agent of the entity.
func (c *DeviceController) Devices(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	id, hasID := uintParam(r, "id")
	switch r.Method {
	case http.MethodGet:
		if hasID {
			v, err := c.devices.Get(actor, id)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, v)
			return
		}
		entity, _ := uintParam(r, "entity_id")
		list, err := c.devices.List(actor, entity)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodDelete:
		var err error
		if entity, ok := uintParam(r, "entity_id"); ok && !hasID {
			err = c.devices.PurgeEntity(r.Context(), actor, entity)
		} else if hasID {
			err = c.devices.Delete(r.Context(), actor, id)
		} else {
			writeMessage(w, http.StatusBadRequest, "id or entity_id is required")
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
