package notify

import (
	"context"

	"flyvemdm/backend/app/broker"
	"flyvemdm/backend/app/models"
)

type agentTarget struct {
	n     *Notifier
	agent *models.Agent
}

func (t *agentTarget) Topic() string { return t.agent.Topic() }

func (t *agentTarget) Notify(ctx context.Context, env *broker.Envelope) error {
	return t.n.Dispatch(ctx, env)
}

func (t *agentTarget) Agents() ([]models.Agent, error) { return []models.Agent{*t.agent}, nil }

func (t *agentTarget) Fleet() (*models.Fleet, error) {
	if t.agent.Fleet != nil {
		return t.agent.Fleet, nil
	}
	return t.n.store.Fleets.FindByID(t.agent.FleetID)
}

func (t *agentTarget) Packages() ([]models.Package, error) {
	ids, _, err := t.n.appliedItems(t.agent.FleetID)
	if err != nil {
		return nil, err
	}
	return t.n.store.Catalog.PackagesByIDs(ids)
}

func (t *agentTarget) Files() ([]models.File, error) {
	_, ids, err := t.n.appliedItems(t.agent.FleetID)
	if err != nil {
		return nil, err
	}
	return t.n.store.Catalog.FilesByIDs(ids)
}

type fleetTarget struct {
	n     *Notifier
	fleet *models.Fleet
}

func (t *fleetTarget) Topic() string { return t.fleet.Topic() }

func (t *fleetTarget) Notify(ctx context.Context, env *broker.Envelope) error {
	return t.n.Dispatch(ctx, env)
}

func (t *fleetTarget) Agents() ([]models.Agent, error) {
	return t.n.store.Agents.ListByFleet(t.fleet.ID)
}

func (t *fleetTarget) Fleet() (*models.Fleet, error) { return t.fleet, nil }

func (t *fleetTarget) Packages() ([]models.Package, error) {
	ids, _, err := t.n.appliedItems(t.fleet.ID)
	if err != nil {
		return nil, err
	}
	return t.n.store.Catalog.PackagesByIDs(ids)
}

func (t *fleetTarget) Files() ([]models.File, error) {
	_, ids, err := t.n.appliedItems(t.fleet.ID)
	if err != nil {
		return nil, err
	}
	return t.n.store.Catalog.FilesByIDs(ids)
}

// PushScopes lists the push addresses of a set of agents.
func PushScopes(agents []models.Agent) []broker.PushScope {
	out := make([]broker.PushScope, 0, len(agents))
	for _, a := range agents {
		out = append(out, broker.PushScope{Type: a.PushScopeType(), Token: a.NotificationToken})
	}
	return out
}
