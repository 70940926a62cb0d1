package repo

import (
	"flyvemdm/backend/app/models"

	"gorm.io/gorm"
)

type PolicyRepository struct{ db *gorm.DB }

func NewPolicyRepository(db *gorm.DB) *PolicyRepository { return &PolicyRepository{db: db} }

func (r *PolicyRepository) Create(p *models.Policy) error { return r.db.Create(p).Error }

func (r *PolicyRepository) FindByID(id uint) (*models.Policy, error) {
	var p models.Policy
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PolicyRepository) List() ([]models.Policy, error) {
	var out []models.Policy
	return out, r.db.Order("id ASC").Find(&out).Error
}

// Symbols lists every known policy symbol.
func (r *PolicyRepository) Symbols() ([]string, error) {
	var out []string
	return out, r.db.Model(&models.Policy{}).Order("id ASC").Pluck("symbol", &out).Error
}

type TaskRepository struct{ db *gorm.DB }

func NewTaskRepository(db *gorm.DB) *TaskRepository { return &TaskRepository{db: db} }

func (r *TaskRepository) Create(t *models.Task) error { return r.db.Create(t).Error }

func (r *TaskRepository) FindByID(id uint) (*models.Task, error) {
	var t models.Task
	if err := r.db.Preload("Policy").First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) ListAppliedTo(itemtype string, id uint) ([]models.Task, error) {
	var out []models.Task
	err := r.db.Preload("Policy").
		Where("itemtype_applied = ? AND items_id_applied = ?", itemtype, id).
		Order("id ASC").Find(&out).Error
	return out, err
}

func (r *TaskRepository) Delete(id uint) error { return r.db.Delete(&models.Task{}, id).Error }

type TaskStatusRepository struct{ db *gorm.DB }

func NewTaskStatusRepository(db *gorm.DB) *TaskStatusRepository {
	return &TaskStatusRepository{db: db}
}

func (r *TaskStatusRepository) Create(s *models.TaskStatus) error { return r.db.Create(s).Error }

func (r *TaskStatusRepository) ListByAgent(agentID uint) ([]models.TaskStatus, error) {
	var out []models.TaskStatus
	return out, r.db.Where("agent_id = ?", agentID).Order("id ASC").Find(&out).Error
}

func (r *TaskStatusRepository) Find(agentID, taskID uint) (*models.TaskStatus, error) {
	var s models.TaskStatus
	if err := r.db.Where("agent_id = ? AND task_id = ?", agentID, taskID).Order("id DESC").First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Cancel marks the agent's statuses of the given tasks canceled.
func (r *TaskStatusRepository) Cancel(agentID uint, taskIDs []uint) error {
	if len(taskIDs) == 0 {
		return nil
	}
	return r.db.Model(&models.TaskStatus{}).
		Where("agent_id = ? AND task_id IN ?", agentID, taskIDs).
		Update("status", models.TaskStatusCanceled).Error
}

func (r *TaskStatusRepository) CancelTask(taskID uint) error {
	return r.db.Model(&models.TaskStatus{}).
		Where("task_id = ?", taskID).
		Update("status", models.TaskStatusCanceled).Error
}

func (r *TaskStatusRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.TaskStatus{}).Where("id = ?", id).Update("status", status).Error
}

func (r *TaskStatusRepository) DeleteByAgent(agentID uint) error {
	return r.db.Where("agent_id = ?", agentID).Delete(&models.TaskStatus{}).Error
}
