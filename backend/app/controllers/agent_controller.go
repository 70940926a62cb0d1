package controllers

import (
	"net/http"

	"flyvemdm/backend/app/dto"
	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/services"
)

type AgentController struct {
	agents  *services.AgentService
	Queries *services.QueryService
	Status  *services.StatusService
}

func NewAgentController(agents *services.AgentService, queries *services.QueryService, status *services.StatusService) *AgentController {
	return &AgentController{agents: agents, Queries: queries, Status: status}
}

func agentResponse(a *models.Agent) dto.AgentResponse {
	out := dto.AgentResponse{
		ID:               a.ID,
		Name:             a.Name,
		EntityID:         a.EntityID,
		DeviceID:         a.DeviceID,
		FleetID:          a.FleetID,
		Topic:            a.Topic(),
		EnrollStatus:     a.EnrollStatus,
		Version:          a.Version,
		MdmType:          a.MdmType,
		NotificationType: a.NotificationType,
		IsOnline:         a.IsOnline,
		LastContact:      a.LastContact,
		Wipe:             a.Wipe,
		Lock:             a.Lock,
	}
	if a.Device != nil {
		out.Serial = a.Device.Serial
	}
	return out
}

// Agents serves GET (one agent with ?id=, else all), PUT ?id= and DELETE ?id=.
func (c *AgentController) Agents(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	id, hasID := uintParam(r, "id")
	switch r.Method {
	case http.MethodGet:
		if hasID {
			a, err := c.agents.Get(actor, id)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, agentResponse(a))
			return
		}
		list, err := c.agents.List(actor)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]dto.AgentResponse, 0, len(list))
		for i := range list {
			out = append(out, agentResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPut:
		if !hasID {
			writeMessage(w, http.StatusBadRequest, "id is required")
			return
		}
		var req dto.AgentUpdateRequest
		if err := decode(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid body")
			return
		}
		a, err := c.agents.Update(r.Context(), actor, id, services.AgentUpdate{
			Name: req.Name, FleetID: req.FleetID, Wipe: req.Wipe, Lock: req.Lock, Unenroll: req.Unenroll,
		})
		if a == nil {
			writeError(w, r, err)
			return
		}
		warning, partial := partialFailure(err)
		if err != nil && !partial {
			writeError(w, r, err)
			return
		}
		resp := agentResponse(a)
		resp.Warning = warning
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		if !hasID {
			writeMessage(w, http.StatusBadRequest, "id is required")
			return
		}
		if err := c.agents.Delete(r.Context(), actor, id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (c *AgentController) query(w http.ResponseWriter, r *http.Request) (uint, bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return 0, false
	}
	id, ok := uintParam(r, "id")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "id is required")
	}
	return id, ok
}

func (c *AgentController) Ping(w http.ResponseWriter, r *http.Request) {
	id, ok := c.query(w, r)
	if !ok {
		return
	}
	if err := c.Queries.Ping(r.Context(), actorOf(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.QueryResponse{Query: string(services.CommandPing), Status: "answered"})
}

func (c *AgentController) Reboot(w http.ResponseWriter, r *http.Request) {
	id, ok := c.query(w, r)
	if !ok {
		return
	}
	if err := c.Queries.Reboot(r.Context(), actorOf(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.QueryResponse{Query: string(services.CommandReboot), Status: "answered"})
}

func (c *AgentController) Geolocate(w http.ResponseWriter, r *http.Request) {
	id, ok := c.query(w, r)
	if !ok {
		return
	}
	g, err := c.Queries.Geolocate(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.GeolocationResponse{Latitude: g.Latitude, Longitude: g.Longitude, Accuracy: g.Accuracy, Date: g.Date})
}

func (c *AgentController) Inventory(w http.ResponseWriter, r *http.Request) {
	id, ok := c.query(w, r)
	if !ok {
		return
	}
	inv, err := c.Queries.Inventory(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.InventoryResponse{Checksum: inv.Checksum, Inventory: inv.Raw, Date: inv.CreatedAt})
}

// Self lets an agent report its own state (PUT /agent/self).
func (c *AgentController) Self(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req services.SelfReport
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}
	a, err := c.Status.ReportSelf(r.Context(), actorOf(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agentResponse(a))
}

// Geolocation stores a position sent by the calling agent.
func (c *AgentController) Geolocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req services.GeoReport
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := c.Status.AddGeolocation(r.Context(), actorOf(r), req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
