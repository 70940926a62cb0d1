package repo

import (
	"errors"

	"flyvemdm/backend/app/models"

	"gorm.io/gorm"
)

type FleetRepository struct{ db *gorm.DB }

func NewFleetRepository(db *gorm.DB) *FleetRepository { return &FleetRepository{db: db} }

func (r *FleetRepository) FindByID(id uint) (*models.Fleet, error) {
	var f models.Fleet
	if err := r.db.First(&f, id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FleetRepository) Create(f *models.Fleet) error { return r.db.Create(f).Error }

func (r *FleetRepository) ListByEntity(entityID uint) ([]models.Fleet, error) {
	var out []models.Fleet
	return out, r.db.Where("entity_id = ?", entityID).Order("id ASC").Find(&out).Error
}

// Default returns the default fleet of an entity, creating it on first use.
func (r *FleetRepository) Default(entityID uint) (*models.Fleet, error) {
	var f models.Fleet
	err := r.db.Where("entity_id = ? AND is_default = ?", entityID, true).First(&f).Error
	if err == nil {
		return &f, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	f = models.Fleet{EntityID: entityID, Name: "not managed fleet", IsDefault: true}
	if err := r.db.Create(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FleetRepository) Delete(id uint) error { return r.db.Delete(&models.Fleet{}, id).Error }
