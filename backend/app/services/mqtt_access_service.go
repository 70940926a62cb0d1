package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/repo"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MqttAccessService manages the broker account of every device. Mutations
// are serialised per serial so a fleet move cannot race an unenrollment.
type MqttAccessService struct {
	repo  *repo.MqttRepository
	locks keyedMutex
}

func NewMqttAccessService(r *repo.MqttRepository) *MqttAccessService {
	return &MqttAccessService{repo: r}
}

func generateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// agentACLs is the access set of a freshly enrolled device.
func agentACLs(topic string) []models.MqttAcl {
	return []models.MqttAcl{
		{Topic: topic + "/Status/#", AccessLevel: models.AccessWrite},
		{Topic: topic + "/Command/#", AccessLevel: models.AccessRead},
		{Topic: topic + "/Policy/#", AccessLevel: models.AccessRead},
		{Topic: topic + "/FlyvemdmManifest/#", AccessLevel: models.AccessWrite},
		{Topic: "FlyvemdmManifest/#", AccessLevel: models.AccessRead},
	}
}

// Setup creates or resets the account named after the serial and returns
// its new clear text password.
func (s *MqttAccessService) Setup(serial, topic string) (string, error) {
	if serial == "" || topic == "" {
		return "", ErrNotEnrolled
	}
	unlock := s.locks.Lock(serial)
	defer unlock()

	password, err := generateSecret(24)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	u := &models.MqttUser{User: serial, Password: string(hash), Enabled: true}
	if err := s.repo.SaveUser(u, agentACLs(topic), true); err != nil {
		return "", fmt.Errorf("save mqtt user: %w", err)
	}
	return password, nil
}

// ChangeFleet moves the read grant of the device from the old fleet topic to
// the new one. The default fleet has no topic, so moving from it adds a row
// and moving to it removes one.
func (s *MqttAccessService) ChangeFleet(serial string, from, to *models.Fleet) error {
	if serial == "" {
		return nil
	}
	unlock := s.locks.Lock(serial)
	defer unlock()

	u, err := s.repo.FindUser(serial)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMqttAccountMissing
		}
		return err
	}
	oldTopic, newTopic := from.Topic(), to.Topic()
	if oldTopic == newTopic {
		return nil
	}
	if oldTopic != "" {
		acl, err := s.repo.FindACL(u.ID, oldTopic+"/#")
		switch {
		case err == nil:
			if newTopic == "" {
				return s.repo.DeleteACL(acl.ID)
			}
			acl.Topic = newTopic + "/#"
			acl.AccessLevel = models.AccessRead
			return s.repo.UpdateACL(acl)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
	}
	if newTopic == "" {
		return nil
	}
	return s.repo.AddACL(&models.MqttAcl{MqttUserID: u.ID, Topic: newTopic + "/#", AccessLevel: models.AccessRead})
}

// Revoke deletes the account of the device.
func (s *MqttAccessService) Revoke(serial string) error {
	if serial == "" {
		return nil
	}
	unlock := s.locks.Lock(serial)
	defer unlock()
	return s.repo.DeleteUser(serial)
}
