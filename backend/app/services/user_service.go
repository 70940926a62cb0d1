package services

import (
	"errors"

	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/repo"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct{ users *repo.UserRepository }

func NewUserService(users *repo.UserRepository) *UserService { return &UserService{users: users} }

func (s *UserService) EnsureAdmin(username, password string) error {
	count, err := s.users.CountByUsername(username)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.Create(&models.User{Username: username, PasswordHash: string(hash), Role: models.RoleAdmin})
}

func (s *UserService) CreateUser(actor Actor, username, email, password, role string, entityID uint) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if role == "" {
		role = models.RoleUser
	}
	if role == models.RoleAgent {
		// agent accounts only come from enrollment
		return nil, ErrForbidden
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{Username: username, Email: email, PasswordHash: string(hash), Role: role, EntityID: entityID}
	return u, s.users.Create(u)
}

func (s *UserService) ValidateCredentials(username, password string) (*models.User, error) {
	u, err := s.users.FindByUsername(username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.Role == models.RoleAgent || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
