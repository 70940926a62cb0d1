package services

import (
	"testing"
	"time"

	"flyvemdm/backend/app/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestInviteCreatesOwnerOnce(t *testing.T) {
	h := newHarness(t)
	svc := NewInvitationService(h.db, h.r, 0, zerolog.Nop())

	first, err := svc.Invite(admin, " owner@example.com ", 12)
	require.NoError(t, err)
	require.Equal(t, models.InvitationPending, first.Status)
	require.WithinDuration(t, time.Now().Add(7*24*time.Hour), *first.ExpirationDate, time.Minute)

	second, err := svc.Invite(admin, "owner@example.com", 12)
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)
	require.Equal(t, first.UserID, second.UserID)

	owner, err := h.r.Users.FindByID(first.UserID)
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, owner.Role)

	logs, err := svc.Logs(admin, first.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "Invitation created", logs[0].Event)
}

func TestInviteRequiresAdminAndEmail(t *testing.T) {
	h := newHarness(t)
	svc := NewInvitationService(h.db, h.r, time.Hour, zerolog.Nop())

	_, err := svc.Invite(Actor{Role: models.RoleUser}, "owner@example.com", 12)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Invite(admin, "  ", 12)
	require.ErrorIs(t, err, ErrEmailRequired)
	_, err = svc.Logs(Actor{Role: models.RoleAgent}, 1)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestFleetsIncludeDefault(t *testing.T) {
	h := newHarness(t)
	svc := NewFleetService(h.r, zerolog.Nop())

	_, err := svc.Create(admin, 12, " ")
	require.ErrorIs(t, err, ErrNameRequired)
	_, err = svc.Create(admin, 12, "field")
	require.NoError(t, err)

	list, err := svc.List(admin, 12)
	require.NoError(t, err)
	require.Len(t, list, 2)
	defaults := 0
	for _, f := range list {
		if f.IsDefault {
			defaults++
		}
	}
	require.Equal(t, 1, defaults)
}

func TestUserCredentials(t *testing.T) {
	h := newHarness(t)
	svc := NewUserService(h.r.Users)
	require.NoError(t, svc.EnsureAdmin("root", "s3cret"))
	require.NoError(t, svc.EnsureAdmin("root", "other"))

	u, err := svc.ValidateCredentials("root", "s3cret")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, u.Role)
	_, err = svc.ValidateCredentials("root", "other")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.ValidateCredentials("nobody", "x")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.CreateUser(admin, "robot", "", "pw", models.RoleAgent, 12)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.CreateUser(Actor{Role: models.RoleUser}, "bob", "", "pw", "", 12)
	require.ErrorIs(t, err, ErrForbidden)
	bob, err := svc.CreateUser(admin, "bob", "bob@example.com", "pw", "", 12)
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, bob.Role)
}
