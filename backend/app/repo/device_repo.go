package repo

import (
	"flyvemdm/backend/app/models"

	"gorm.io/gorm"
)

type DeviceRepository struct{ db *gorm.DB }

func NewDeviceRepository(db *gorm.DB) *DeviceRepository { return &DeviceRepository{db: db} }

func (r *DeviceRepository) FindByID(id uint) (*models.Device, error) {
	var d models.Device
	if err := r.db.First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DeviceRepository) FindBySerial(entityID uint, serial string) (*models.Device, error) {
	var d models.Device
	if err := r.db.Where("entity_id = ? AND serial = ?", entityID, serial).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// Upsert matches an existing device by entity and serial.
func (r *DeviceRepository) Upsert(d *models.Device) error {
	var existing models.Device
	if d.Serial != "" {
		if err := r.db.Where("entity_id = ? AND serial = ?", d.EntityID, d.Serial).First(&existing).Error; err == nil {
			d.ID = existing.ID
			d.CreatedAt = existing.CreatedAt
			return r.db.Save(d).Error
		}
	}
	return r.db.Create(d).Error
}

func (r *DeviceRepository) ListByEntity(entityID uint) ([]models.Device, error) {
	var out []models.Device
	return out, r.db.Where("entity_id = ?", entityID).Order("id ASC").Find(&out).Error
}

func (r *DeviceRepository) Delete(id uint) error {
	return r.db.Delete(&models.Device{}, id).Error
}

type TelemetryRepository struct{ db *gorm.DB }

func NewTelemetryRepository(db *gorm.DB) *TelemetryRepository { return &TelemetryRepository{db: db} }

func (r *TelemetryRepository) AddGeolocation(g *models.Geolocation) error {
	return r.db.Create(g).Error
}

// LatestGeolocation returns nil, nil when the device never reported a position.
func (r *TelemetryRepository) LatestGeolocation(deviceID uint) (*models.Geolocation, error) {
	var out []models.Geolocation
	err := r.db.Where("device_id = ?", deviceID).Order("date DESC").Order("id DESC").Limit(1).Find(&out).Error
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (r *TelemetryRepository) AddInventory(s *models.InventorySnapshot) error {
	return r.db.Create(s).Error
}

func (r *TelemetryRepository) LatestInventory(deviceID uint) (*models.InventorySnapshot, error) {
	var out []models.InventorySnapshot
	err := r.db.Where("device_id = ?", deviceID).Order("id DESC").Limit(1).Find(&out).Error
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}
