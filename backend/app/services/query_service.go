package services

import (
	"context"
	"errors"
	"time"

	"flyvemdm/backend/app/broker"
	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/notify"

	"github.com/rs/zerolog"
)

// QueryService sends request/acknowledge commands and waits for the agent's
// answer to show up in the database.
type QueryService struct {
	r        Repos
	notifier *notify.Notifier
	poller   Poller
	log      zerolog.Logger
}

func NewQueryService(r Repos, n *notify.Notifier, p Poller, log zerolog.Logger) *QueryService {
	return &QueryService{r: r, notifier: n, poller: p, log: log}
}

func (s *QueryService) load(actor Actor, id uint) (*models.Agent, error) {
	a, err := s.r.Agents.FindByID(id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if a.Topic() == "" {
		return nil, ErrNotEnrolled
	}
	return a, nil
}

// send dispatches the query. It only fails when no transport took the message.
func (s *QueryService) send(ctx context.Context, a *models.Agent, cmd Command) error {
	env, err := commandEnvelope(a, cmd)
	if err != nil {
		return err
	}
	active := s.notifier.Active(env)
	if len(active) == 0 {
		return &QueryError{Query: string(cmd), Reason: "No notification transport is available", Err: ErrNoTransport}
	}
	err = s.notifier.ForAgent(a).Notify(ctx, env)
	if err != nil && len(broker.FailedKinds(err)) >= len(active) {
		return err
	}
	if err != nil {
		s.log.Warn().Err(err).Uint("agent", a.ID).Str("query", string(cmd)).Msg("query partially delivered")
	}
	return nil
}

func (s *QueryService) waitContact(ctx context.Context, actor Actor, id uint, cmd Command) error {
	a, err := s.load(actor, id)
	if err != nil {
		return err
	}
	before := a.LastContact
	if err := s.send(ctx, a, cmd); err != nil {
		return err
	}
	err = s.poller.Wait(ctx, agentKey(a.ID), func() (bool, error) {
		cur, err := s.r.Agents.FindByID(a.ID)
		if err != nil {
			return false, err
		}
		return changed(before, cur.LastContact), nil
	})
	if errors.Is(err, ErrQueryTimeout) {
		return &QueryError{Query: string(cmd), Reason: "Timeout querying the device", Err: err}
	}
	return err
}

func changed(before, after *time.Time) bool {
	if after == nil {
		return false
	}
	return before == nil || !after.Equal(*before)
}

// Ping waits for the agent to update its last contact.
func (s *QueryService) Ping(ctx context.Context, actor Actor, id uint) error {
	return s.waitContact(ctx, actor, id, CommandPing)
}

// Reboot asks the device to reboot and waits for it to come back.
func (s *QueryService) Reboot(ctx context.Context, actor Actor, id uint) error {
	return s.waitContact(ctx, actor, id, CommandReboot)
}

// Geolocate waits for a new position row of the device.
func (s *QueryService) Geolocate(ctx context.Context, actor Actor, id uint) (*models.Geolocation, error) {
	a, err := s.load(actor, id)
	if err != nil {
		return nil, err
	}
	var beforeID uint
	if g, err := s.r.Telemetry.LatestGeolocation(a.DeviceID); err != nil {
		return nil, err
	} else if g != nil {
		beforeID = g.ID
	}
	if err := s.send(ctx, a, CommandGeolocate); err != nil {
		return nil, err
	}
	var found *models.Geolocation
	err = s.poller.Wait(ctx, agentKey(a.ID), func() (bool, error) {
		g, err := s.r.Telemetry.LatestGeolocation(a.DeviceID)
		if err != nil || g == nil || g.ID == beforeID {
			return false, err
		}
		found = g
		return true, nil
	})
	switch {
	case errors.Is(err, ErrQueryTimeout):
		return nil, &QueryError{Query: string(CommandGeolocate), Reason: "Timeout requesting position", Err: err}
	case err != nil:
		return nil, err
	case found.Unavailable():
		return nil, &QueryError{Query: string(CommandGeolocate), Reason: ErrGPSUnavailable.Error(), Err: ErrGPSUnavailable}
	}
	return found, nil
}

// Inventory waits for a new inventory snapshot of the device.
func (s *QueryService) Inventory(ctx context.Context, actor Actor, id uint) (*models.InventorySnapshot, error) {
	a, err := s.load(actor, id)
	if err != nil {
		return nil, err
	}
	var beforeID uint
	if inv, err := s.r.Telemetry.LatestInventory(a.DeviceID); err != nil {
		return nil, err
	} else if inv != nil {
		beforeID = inv.ID
	}
	if err := s.send(ctx, a, CommandInventory); err != nil {
		return nil, err
	}
	var found *models.InventorySnapshot
	err = s.poller.Wait(ctx, agentKey(a.ID), func() (bool, error) {
		inv, err := s.r.Telemetry.LatestInventory(a.DeviceID)
		if err != nil || inv == nil || inv.ID == beforeID {
			return false, err
		}
		found = inv
		return true, nil
	})
	if errors.Is(err, ErrQueryTimeout) {
		return nil, &QueryError{Query: string(CommandInventory), Reason: "Timeout querying the device inventory", Err: err}
	}
	return found, err
}
