package services

import "flyvemdm/backend/app/models"

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID   uint
	Username string
	Role     string
}

// SystemActor is used for internal flows such as status messages and purges.
var SystemActor = Actor{Username: "system", Role: models.RoleAdmin}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// CanManage reports whether the actor may act on agent.
func (a Actor) CanManage(agent *models.Agent) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == models.RoleAgent && a.UserID != 0 && a.UserID == agent.UserID
}
