package router

import (
	"net/http"

	"flyvemdm/backend/app/controllers"
	"flyvemdm/backend/app/middleware"
)

type Controllers struct {
	HTTP      *controllers.HTTPController
	Auth      *controllers.AuthController
	Admin     *controllers.AdminController
	Agents    *controllers.AgentController
	Devices   *controllers.DeviceController
	Enroll    *controllers.EnrollController
	Mosquitto *controllers.MosquittoController
	MqttLog   *controllers.MqttLogController
}

func NewRouter(c Controllers, mw *middleware.Auth) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, middleware.WithRoute(pattern, h))
	}
	admin := func(f http.HandlerFunc) http.Handler { return mw.RequireAdmin(f) }
	agent := func(f http.HandlerFunc) http.Handler { return mw.RequireAgent(f) }

	// public
	handle("/ping", http.HandlerFunc(c.HTTP.Ping))
	handle("/login", http.HandlerFunc(c.Auth.Login))
	handle("/enroll", http.HandlerFunc(c.Enroll.Enroll))
	// called by the broker auth plugin, answered with a status code only
	handle("/mqtt/auth", http.HandlerFunc(c.Mosquitto.Handle))

	// admin
	handle("/admin/users", admin(c.Admin.CreateUser))
	handle("/admin/invitations", admin(c.Admin.Invitations))
	handle("/admin/entities", admin(c.Admin.Entities))
	handle("/admin/fleets", admin(c.Admin.Fleets))
	handle("/admin/policies", admin(c.Admin.Policies))
	handle("/admin/tasks", admin(c.Admin.Tasks))
	handle("/admin/devices", admin(c.Devices.Devices))
	handle("/admin/agents", admin(c.Agents.Agents))
	handle("/admin/agents/ping", admin(c.Agents.Ping))
	handle("/admin/agents/reboot", admin(c.Agents.Reboot))
	handle("/admin/agents/geolocate", admin(c.Agents.Geolocate))
	handle("/admin/agents/inventory", admin(c.Agents.Inventory))
	handle("/admin/mqttlog", admin(c.MqttLog.GetLatest))

	// agents, authenticated with the token returned by enrollment
	handle("/agent/self", agent(c.Agents.Self))
	handle("/agent/geolocation", agent(c.Agents.Geolocation))
	// an agent may only request its own unenrollment through this route
	handle("/agent/agents", agent(c.Agents.Agents))

	return mux
}
