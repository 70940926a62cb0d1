package services

import (
	"flyvemdm/backend/app/notify"
	"flyvemdm/backend/app/repo"

	"gorm.io/gorm"
)

// Repos bundles the repositories the services share.
type Repos struct {
	Agents      *repo.AgentRepository
	Devices     *repo.DeviceRepository
	Telemetry   *repo.TelemetryRepository
	Fleets      *repo.FleetRepository
	Policies    *repo.PolicyRepository
	Tasks       *repo.TaskRepository
	Statuses    *repo.TaskStatusRepository
	Invitations *repo.InvitationRepository
	Mqtt        *repo.MqttRepository
	Users       *repo.UserRepository
	Catalog     *repo.CatalogRepository
}

func NewRepos(db *gorm.DB) Repos {
	return Repos{
		Agents:      repo.NewAgentRepository(db),
		Devices:     repo.NewDeviceRepository(db),
		Telemetry:   repo.NewTelemetryRepository(db),
		Fleets:      repo.NewFleetRepository(db),
		Policies:    repo.NewPolicyRepository(db),
		Tasks:       repo.NewTaskRepository(db),
		Statuses:    repo.NewTaskStatusRepository(db),
		Invitations: repo.NewInvitationRepository(db),
		Mqtt:        repo.NewMqttRepository(db),
		Users:       repo.NewUserRepository(db),
		Catalog:     repo.NewCatalogRepository(db),
	}
}

func (r Repos) NotifyStore() notify.Store {
	return notify.Store{Agents: r.Agents, Fleets: r.Fleets, Tasks: r.Tasks, Catalog: r.Catalog}
}
