package services

import (
	"context"
	"errors"

	"flyvemdm/backend/app/models"

	"gorm.io/gorm"
)

// DeviceView is a device with the last state its agent reported.
type DeviceView struct {
	Device      models.Device
	Geolocation *models.Geolocation
	Inventory   *models.InventorySnapshot
}

type DeviceService struct {
	r      Repos
	agents *AgentService
}

func NewDeviceService(r Repos, agents *AgentService) *DeviceService {
	return &DeviceService{r: r, agents: agents}
}

func (s *DeviceService) Get(actor Actor, id uint) (*DeviceView, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	d, err := s.r.Devices.FindByID(id)
	if err != nil {
		return nil, err
	}
	v := &DeviceView{Device: *d}
	if v.Geolocation, err = s.r.Telemetry.LatestGeolocation(d.ID); err != nil {
		return nil, err
	}
	if v.Inventory, err = s.r.Telemetry.LatestInventory(d.ID); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *DeviceService) List(actor Actor, entityID uint) ([]models.Device, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.r.Devices.ListByEntity(entityID)
}

// Delete purges the agent of the device before removing the device.
func (s *DeviceService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if _, err := s.r.Devices.FindByID(id); err != nil {
		return err
	}
	if err := s.agents.PurgeDevice(ctx, id); err != nil {
		return err
	}
	err := s.r.Devices.Delete(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// PurgeEntity removes every agent of an entity that is being deleted.
func (s *DeviceService) PurgeEntity(ctx context.Context, actor Actor, entityID uint) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return s.agents.PurgeEntity(ctx, entityID)
}
