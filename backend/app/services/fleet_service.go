package services

import (
	"errors"
	"strings"

	"flyvemdm/backend/app/models"

	"github.com/rs/zerolog"
)

var (
	ErrNameRequired = errors.New("a name is required")
	ErrInvalidLimit = errors.New("device limit cannot be negative")
	ErrDefaultFleet = errors.New("the default fleet cannot be deleted")
	ErrFleetInUse   = errors.New("the fleet still has devices or policies")
)

type FleetService struct {
	r   Repos
	log zerolog.Logger
}

func NewFleetService(r Repos, log zerolog.Logger) *FleetService {
	return &FleetService{r: r, log: log}
}

func (s *FleetService) Create(actor Actor, entityID uint, name string) (*models.Fleet, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	f := &models.Fleet{EntityID: entityID, Name: name}
	if err := s.r.Fleets.Create(f); err != nil {
		return nil, err
	}
	s.log.Info().Uint("fleet", f.ID).Str("name", name).Msg("fleet created")
	return f, nil
}

// List returns the fleets of an entity, the default one included.
func (s *FleetService) List(actor Actor, entityID uint) ([]models.Fleet, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if _, err := s.r.Fleets.Default(entityID); err != nil {
		return nil, err
	}
	return s.r.Fleets.ListByEntity(entityID)
}

// Delete removes an empty fleet. Devices and applied policies must be moved
// or removed first.
func (s *FleetService) Delete(actor Actor, id uint) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	f, err := s.r.Fleets.FindByID(id)
	if err != nil {
		return err
	}
	if f.IsDefault {
		return ErrDefaultFleet
	}
	agents, err := s.r.Agents.ListByFleet(id)
	if err != nil {
		return err
	}
	tasks, err := s.r.Tasks.ListAppliedTo(models.AppliedToFleet, id)
	if err != nil {
		return err
	}
	if len(agents) > 0 || len(tasks) > 0 {
		return ErrFleetInUse
	}
	if err := s.r.Fleets.Delete(id); err != nil {
		return err
	}
	s.log.Info().Uint("fleet", id).Str("name", f.Name).Msg("fleet deleted")
	return nil
}

// DeviceLimit is the enrollment quota of an entity, 0 when unlimited.
func (s *FleetService) DeviceLimit(actor Actor, entityID uint) (int, error) {
	if !actor.IsAdmin() {
		return 0, ErrForbidden
	}
	return s.r.Catalog.DeviceLimit(entityID)
}

func (s *FleetService) SetDeviceLimit(actor Actor, entityID uint, limit int) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if limit < 0 {
		return ErrInvalidLimit
	}
	if err := s.r.Catalog.SetDeviceLimit(entityID, limit); err != nil {
		return err
	}
	s.log.Info().Uint("entity", entityID).Int("limit", limit).Msg("device limit changed")
	return nil
}
