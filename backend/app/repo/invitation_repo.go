package repo

import (
	"flyvemdm/backend/app/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvitationRepository struct{ db *gorm.DB }

func NewInvitationRepository(db *gorm.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

func (r *InvitationRepository) Create(i *models.Invitation) error { return r.db.Create(i).Error }

func (r *InvitationRepository) FindByToken(token string) (*models.Invitation, error) {
	var i models.Invitation
	if err := r.db.Preload("User").Where("token = ?", token).First(&i).Error; err != nil {
		return nil, err
	}
	return &i, nil
}

// LockByToken re-reads the invitation with a row lock; only meaningful inside a transaction.
func (r *InvitationRepository) LockByToken(token string) (*models.Invitation, error) {
	var i models.Invitation
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("token = ?", token).First(&i).Error
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *InvitationRepository) MarkDone(id uint) error {
	return r.db.Model(&models.Invitation{}).Where("id = ?", id).Update("status", models.InvitationDone).Error
}

func (r *InvitationRepository) Log(invitationID uint, event string) error {
	return r.db.Create(&models.InvitationLog{InvitationID: invitationID, Event: event}).Error
}

func (r *InvitationRepository) Logs(invitationID uint) ([]models.InvitationLog, error) {
	var out []models.InvitationLog
	return out, r.db.Where("invitation_id = ?", invitationID).Order("id ASC").Find(&out).Error
}
