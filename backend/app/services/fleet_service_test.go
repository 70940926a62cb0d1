package services

import (
	"context"
	"testing"

	"flyvemdm/backend/app/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDeleteFleet(t *testing.T) {
	h := newHarness(t)
	fleets := NewFleetService(h.r, zerolog.Nop())
	def, err := h.r.Fleets.Default(12)
	require.NoError(t, err)

	require.ErrorIs(t, fleets.Delete(admin, def.ID), ErrDefaultFleet)
	require.ErrorIs(t, fleets.Delete(Actor{Role: models.RoleUser}, def.ID), ErrForbidden)
	require.ErrorIs(t, fleets.Delete(admin, 999), gorm.ErrRecordNotFound)

	field, err := fleets.Create(admin, 12, "field")
	require.NoError(t, err)
	a := h.agent(t, 12, "SN1", field)
	require.ErrorIs(t, fleets.Delete(admin, field.ID), ErrFleetInUse)

	_, err = h.agents.Update(context.Background(), admin, a.ID, AgentUpdate{FleetID: uintp(def.ID)})
	require.NoError(t, err)
	task := h.task(t, h.policy(t, "disableCamera"), field)
	require.ErrorIs(t, fleets.Delete(admin, field.ID), ErrFleetInUse)

	require.NoError(t, h.r.Tasks.Delete(task.ID))
	require.NoError(t, fleets.Delete(admin, field.ID))
	_, err = h.r.Fleets.FindByID(field.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
