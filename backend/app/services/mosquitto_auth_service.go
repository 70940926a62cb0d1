package services

import (
	"crypto/subtle"

	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/mqtt"
	"flyvemdm/backend/app/repo"

	"golang.org/x/crypto/bcrypt"
)

// Access values sent by the broker auth plugin.
const (
	AccRead      = 1
	AccWrite     = 2
	AccReadWrite = 3
	AccSubscribe = 4
)

// MosquittoAuthService answers the broker's authentication callbacks. The
// backend's own broker account is the only superuser.
type MosquittoAuthService struct {
	repo            *repo.MqttRepository
	backendUser     string
	backendPassword string
}

func NewMosquittoAuthService(r *repo.MqttRepository, backendUser, backendPassword string) *MosquittoAuthService {
	return &MosquittoAuthService{repo: r, backendUser: backendUser, backendPassword: backendPassword}
}

func (s *MosquittoAuthService) Authenticate(username, password string) bool {
	if username == "" {
		return false
	}
	if username == s.backendUser {
		return s.backendPassword != "" && subtle.ConstantTimeCompare([]byte(password), []byte(s.backendPassword)) == 1
	}
	u, err := s.repo.FindUser(username)
	if err != nil || !u.Enabled {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

func (s *MosquittoAuthService) Superuser(username string) bool {
	return username != "" && username == s.backendUser
}

func required(acc int) int {
	switch acc {
	case AccRead, AccSubscribe:
		return models.AccessRead
	case AccWrite:
		return models.AccessWrite
	case AccReadWrite:
		return models.AccessReadWrite
	}
	return 0
}

// Authorize checks topic against the ACL rows of username.
func (s *MosquittoAuthService) Authorize(username, topic string, acc int) bool {
	if s.Superuser(username) {
		return true
	}
	need := required(acc)
	if need == 0 || topic == "" {
		return false
	}
	u, err := s.repo.FindUser(username)
	if err != nil || !u.Enabled {
		return false
	}
	for _, a := range u.Acls {
		if a.AccessLevel&need == need && mqtt.Match(a.Topic, topic) {
			return true
		}
	}
	return false
}
