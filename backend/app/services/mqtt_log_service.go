package services

import (
	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/repo"
)

// MqttLogService reads the journal of messages exchanged with agents.
type MqttLogService struct {
	agents *repo.AgentRepository
	mqtt   *repo.MqttRepository
}

func NewMqttLogService(r Repos) *MqttLogService {
	return &MqttLogService{agents: r.Agents, mqtt: r.Mqtt}
}

// Latest returns the newest journal entries of one agent's topic tree.
func (s *MqttLogService) Latest(actor Actor, agentID uint, limit int) ([]models.MqttLog, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	a, err := s.agents.FindByID(agentID)
	if err != nil {
		return nil, err
	}
	if a.Topic() == "" {
		return nil, ErrNotEnrolled
	}
	return s.mqtt.Journal(a.Topic()+"/", limit)
}
