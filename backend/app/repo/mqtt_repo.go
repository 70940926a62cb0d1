package repo

import (
	"flyvemdm/backend/app/models"

	"gorm.io/gorm"
)

type MqttRepository struct{ db *gorm.DB }

func NewMqttRepository(db *gorm.DB) *MqttRepository { return &MqttRepository{db: db} }

func (r *MqttRepository) FindUser(name string) (*models.MqttUser, error) {
	var u models.MqttUser
	if err := r.db.Preload("Acls").Where(&models.MqttUser{User: name}).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveUser creates or updates the account. With resetACL the previous ACL
// rows are replaced by acls, otherwise acls are appended.
func (r *MqttRepository) SaveUser(u *models.MqttUser, acls []models.MqttAcl, resetACL bool) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.MqttUser
		err := tx.Where(&models.MqttUser{User: u.User}).First(&existing).Error
		switch {
		case err == nil:
			u.ID = existing.ID
			u.CreatedAt = existing.CreatedAt
			if err := tx.Omit("Acls").Save(u).Error; err != nil {
				return err
			}
		case err == gorm.ErrRecordNotFound:
			if err := tx.Omit("Acls").Create(u).Error; err != nil {
				return err
			}
		default:
			return err
		}
		if resetACL {
			if err := tx.Where("mqtt_user_id = ?", u.ID).Delete(&models.MqttAcl{}).Error; err != nil {
				return err
			}
		}
		for i := range acls {
			acls[i].ID = 0
			acls[i].MqttUserID = u.ID
		}
		if len(acls) > 0 {
			if err := tx.Create(&acls).Error; err != nil {
				return err
			}
		}
		u.Acls = acls
		return nil
	})
}

func (r *MqttRepository) DeleteUser(name string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var u models.MqttUser
		if err := tx.Where(&models.MqttUser{User: name}).First(&u).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		if err := tx.Where("mqtt_user_id = ?", u.ID).Delete(&models.MqttAcl{}).Error; err != nil {
			return err
		}
		return tx.Delete(&u).Error
	})
}

func (r *MqttRepository) FindACL(userID uint, topic string) (*models.MqttAcl, error) {
	var a models.MqttAcl
	if err := r.db.Where("mqtt_user_id = ? AND topic = ?", userID, topic).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *MqttRepository) AddACL(a *models.MqttAcl) error { return r.db.Create(a).Error }

func (r *MqttRepository) UpdateACL(a *models.MqttAcl) error { return r.db.Save(a).Error }

func (r *MqttRepository) DeleteACL(id uint) error { return r.db.Delete(&models.MqttAcl{}, id).Error }

func (r *MqttRepository) ACLs(userID uint) ([]models.MqttAcl, error) {
	var out []models.MqttAcl
	return out, r.db.Where("mqtt_user_id = ?", userID).Order("id ASC").Find(&out).Error
}

// Save implements the mqtt journal.
func (r *MqttRepository) Save(direction, topic string, payload []byte) error {
	return r.db.Create(&models.MqttLog{Direction: direction, Topic: topic, Message: string(payload)}).Error
}

func (r *MqttRepository) Journal(topicPrefix string, limit int) ([]models.MqttLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.MqttLog
	err := r.db.Where("topic LIKE ?", topicPrefix+"%").Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}
