package repo

import (
	"errors"

	"flyvemdm/backend/app/models"

	"gorm.io/gorm"
)

type CatalogRepository struct{ db *gorm.DB }

func NewCatalogRepository(db *gorm.DB) *CatalogRepository { return &CatalogRepository{db: db} }

func (r *CatalogRepository) PackagesByIDs(ids []uint) ([]models.Package, error) {
	var out []models.Package
	if len(ids) == 0 {
		return out, nil
	}
	return out, r.db.Where("id IN ?", ids).Order("id ASC").Find(&out).Error
}

func (r *CatalogRepository) FilesByIDs(ids []uint) ([]models.File, error) {
	var out []models.File
	if len(ids) == 0 {
		return out, nil
	}
	return out, r.db.Where("id IN ?", ids).Order("id ASC").Find(&out).Error
}

func (r *CatalogRepository) AddDocument(d *models.Document) error { return r.db.Create(d).Error }

func (r *CatalogRepository) DeleteDocuments(agentID uint) error {
	return r.db.Where("agent_id = ?", agentID).Delete(&models.Document{}).Error
}

// DeviceLimit returns 0 (unlimited) when the entity has no configuration.
func (r *CatalogRepository) DeviceLimit(entityID uint) (int, error) {
	var c models.EntityConfig
	err := r.db.First(&c, "entity_id = ?", entityID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return c.DeviceLimit, err
}

func (r *CatalogRepository) SetDeviceLimit(entityID uint, limit int) error {
	return r.db.Save(&models.EntityConfig{EntityID: entityID, DeviceLimit: limit}).Error
}
