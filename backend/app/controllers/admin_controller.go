package controllers

import (
	"net/http"

	"flyvemdm/backend/app/dto"
	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/services"
)

// AdminController serves the administration resources that are not agents:
// users, invitations, entity quotas, fleets, policies and tasks.
type AdminController struct {
	Users       *services.UserService
	invitations *services.InvitationService
	fleets      *services.FleetService
	tasks       *services.TaskService
}

func NewAdminController(users *services.UserService, invitations *services.InvitationService, fleets *services.FleetService, tasks *services.TaskService) *AdminController {
	return &AdminController{Users: users, invitations: invitations, fleets: fleets, tasks: tasks}
}

func (c *AdminController) CreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req dto.CreateUserRequest
	_ = decode(r, &req)
	if req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}
	u, err := c.Users.CreateUser(actorOf(r), req.Username, req.Email, req.Password, req.Role, req.EntityID)
	if err != nil {
		if statusOf(err) == http.StatusInternalServerError {
			writeMessage(w, http.StatusConflict, "cannot create user")
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, EntityID: u.EntityID})
}

// Invitations creates an invitation on POST and lists its log on GET ?id=.
func (c *AdminController) Invitations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req dto.InvitationRequest
		_ = decode(r, &req)
		inv, err := c.invitations.Invite(actorOf(r), req.Email, req.EntityID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, dto.InvitationResponse{
			ID: inv.ID, Token: inv.Token, Status: inv.Status, ExpirationDate: inv.ExpirationDate, EntityID: inv.EntityID,
		})
	case http.MethodGet:
		id, ok := uintParam(r, "id")
		if !ok {
			writeMessage(w, http.StatusBadRequest, "id is required")
			return
		}
		logs, err := c.invitations.Logs(actorOf(r), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]dto.InvitationLogEntry, 0, len(logs))
		for _, l := range logs {
			out = append(out, dto.InvitationLogEntry{Event: l.Event, Date: l.CreatedAt})
		}
		writeJSON(w, http.StatusOK, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func fleetResponse(f *models.Fleet) dto.FleetResponse {
	return dto.FleetResponse{ID: f.ID, Name: f.Name, EntityID: f.EntityID, IsDefault: f.IsDefault, Topic: f.Topic()}
}

// Fleets lists the fleets of ?entity_id= on GET, creates one on POST and
// deletes an empty one on DELETE ?id=.
func (c *AdminController) Fleets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entity, _ := uintParam(r, "entity_id")
		fleets, err := c.fleets.List(actorOf(r), entity)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]dto.FleetResponse, 0, len(fleets))
		for i := range fleets {
			out = append(out, fleetResponse(&fleets[i]))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req dto.FleetRequest
		_ = decode(r, &req)
		f, err := c.fleets.Create(actorOf(r), req.EntityID, req.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, fleetResponse(f))
	case http.MethodDelete:
		id, ok := uintParam(r, "id")
		if !ok {
			writeMessage(w, http.StatusBadRequest, "id is required")
			return
		}
		if err := c.fleets.Delete(actorOf(r), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Entities reads (GET ?id=) or sets (PUT ?id=) the device quota of an entity.
func (c *AdminController) Entities(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "id is required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		limit, err := c.fleets.DeviceLimit(actorOf(r), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.EntityResponse{EntityID: id, DeviceLimit: limit})
	case http.MethodPut:
		var req dto.EntityRequest
		if err := decode(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid body")
			return
		}
		if err := c.fleets.SetDeviceLimit(actorOf(r), id, req.DeviceLimit); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.EntityResponse{EntityID: id, DeviceLimit: req.DeviceLimit})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (c *AdminController) Policies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := c.tasks.Policies(actorOf(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var req services.PolicyInput
		_ = decode(r, &req)
		p, err := c.tasks.CreatePolicy(actorOf(r), req)
		if err != nil {
			if statusOf(err) == http.StatusInternalServerError {
				writeMessage(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Tasks applies a policy to a fleet on POST, removes a task on DELETE ?id=
// and lists the task statuses of an agent on GET ?agent_id=.
func (c *AdminController) Tasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req services.ApplyInput
		_ = decode(r, &req)
		task, err := c.tasks.Apply(r.Context(), actorOf(r), req)
		if task == nil {
			writeError(w, r, err)
			return
		}
		warning, partial := partialFailure(err)
		if err != nil && !partial {
			writeError(w, r, err)
			return
		}
		resp := dto.TaskResponse{ID: task.ID, PolicyID: task.PolicyID, FleetID: task.ItemsIDApplied, Value: task.Value, Warning: warning}
		if task.Policy != nil {
			resp.Symbol = task.Policy.Symbol
		}
		writeJSON(w, http.StatusCreated, resp)
	case http.MethodDelete:
		id, ok := uintParam(r, "id")
		if !ok {
			writeMessage(w, http.StatusBadRequest, "id is required")
			return
		}
		err := c.tasks.Remove(r.Context(), actorOf(r), id)
		if _, partial := partialFailure(err); err != nil && !partial {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		id, ok := uintParam(r, "agent_id")
		if !ok {
			writeMessage(w, http.StatusBadRequest, "agent_id is required")
			return
		}
		statuses, err := c.tasks.Statuses(actorOf(r), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]dto.TaskStatusResponse, 0, len(statuses))
		for _, s := range statuses {
			out = append(out, dto.TaskStatusResponse{TaskID: s.TaskID, Status: s.Status})
		}
		writeJSON(w, http.StatusOK, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
