package repo

import (
	"flyvemdm/backend/app/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AgentRepository struct{ db *gorm.DB }

func NewAgentRepository(db *gorm.DB) *AgentRepository { return &AgentRepository{db: db} }

func (r *AgentRepository) withRefs() *gorm.DB { return r.db.Preload("Device").Preload("Fleet") }

func (r *AgentRepository) FindByID(id uint) (*models.Agent, error) {
	var a models.Agent
	if err := r.withRefs().First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepository) FindByDeviceID(deviceID uint) (*models.Agent, error) {
	var a models.Agent
	if err := r.withRefs().Where("device_id = ?", deviceID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepository) FindByUserID(userID uint) (*models.Agent, error) {
	var a models.Agent
	if err := r.withRefs().Where("user_id = ?", userID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindBySerial resolves the agent behind "<entity>/agent/<serial>".
func (r *AgentRepository) FindBySerial(entityID uint, serial string) (*models.Agent, error) {
	var a models.Agent
	err := r.withRefs().
		Joins("JOIN devices ON devices.id = agents.device_id").
		Where("agents.entity_id = ? AND devices.serial = ?", entityID, serial).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepository) List() ([]models.Agent, error) {
	var out []models.Agent
	return out, r.withRefs().Order("id ASC").Find(&out).Error
}

func (r *AgentRepository) ListByFleet(fleetID uint) ([]models.Agent, error) {
	var out []models.Agent
	return out, r.withRefs().Where("fleet_id = ?", fleetID).Order("id ASC").Find(&out).Error
}

func (r *AgentRepository) ListByEntity(entityID uint) ([]models.Agent, error) {
	var out []models.Agent
	return out, r.withRefs().Where("entity_id = ?", entityID).Order("id ASC").Find(&out).Error
}

func (r *AgentRepository) CountByEntity(entityID uint) (int64, error) {
	var n int64
	return n, r.db.Model(&models.Agent{}).Where("entity_id = ?", entityID).Count(&n).Error
}

func (r *AgentRepository) Create(a *models.Agent) error {
	return r.db.Omit(clause.Associations).Create(a).Error
}

func (r *AgentRepository) Save(a *models.Agent) error {
	return r.db.Omit(clause.Associations).Save(a).Error
}

func (r *AgentRepository) UpdateFields(id uint, fields map[string]any) error {
	return r.db.Model(&models.Agent{}).Where("id = ?", id).Updates(fields).Error
}

func (r *AgentRepository) Delete(id uint) error {
	return r.db.Delete(&models.Agent{}, id).Error
}
