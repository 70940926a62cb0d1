package services

import (
	"errors"
	"strings"
	"time"

	"flyvemdm/backend/app/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrEmailRequired = errors.New("an email address is required")

type InvitationService struct {
	db       *gorm.DB
	r        Repos
	lifetime time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewInvitationService(db *gorm.DB, r Repos, lifetime time.Duration, log zerolog.Logger) *InvitationService {
	if lifetime <= 0 {
		lifetime = 7 * 24 * time.Hour
	}
	return &InvitationService{db: db, r: r, lifetime: lifetime, log: log, now: time.Now}
}

// Invite issues a pending invitation for the owner of email, creating the
// owner account when nobody uses that address yet.
func (s *InvitationService) Invite(actor Actor, email string, entityID uint) (*models.Invitation, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	var inv *models.Invitation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		r := NewRepos(tx)
		owner, err := r.Users.FindByEmail(email)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			owner, err = newOwner(email, entityID)
			if err == nil {
				err = r.Users.Create(owner)
			}
		}
		if err != nil {
			return err
		}
		exp := s.now().Add(s.lifetime)
		inv = &models.Invitation{
			Token:          uuid.NewString(),
			Status:         models.InvitationPending,
			ExpirationDate: &exp,
			UserID:         owner.ID,
			EntityID:       entityID,
		}
		if err := r.Invitations.Create(inv); err != nil {
			return err
		}
		return r.Invitations.Log(inv.ID, "Invitation created")
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("invitation", inv.ID).Str("email", email).Str("actor", actor.Username).Msg("invitation issued")
	return inv, nil
}

// newOwner builds a device owner account. Owners never log in with a
// password, so a random one is hashed.
func newOwner(email string, entityID uint) (*models.User, error) {
	secret, err := generateSecret(24)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Username:     email,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		EntityID:     entityID,
	}, nil
}

func (s *InvitationService) Logs(actor Actor, invitationID uint) ([]models.InvitationLog, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.r.Invitations.Logs(invitationID)
}
