package notify

import (
	"context"

	"flyvemdm/backend/app/broker"
	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/repo"

	"github.com/rs/zerolog"
)

// Transports reports which transports are enabled right now.
type Transports interface {
	MQTT() bool
	FCM() bool
}

// Notifiable is anything notifications can be addressed to.
type Notifiable interface {
	Topic() string
	Notify(ctx context.Context, env *broker.Envelope) error
	Agents() ([]models.Agent, error)
	Fleet() (*models.Fleet, error)
	Packages() ([]models.Package, error)
	Files() ([]models.File, error)
}

type Store struct {
	Agents  *repo.AgentRepository
	Fleets  *repo.FleetRepository
	Tasks   *repo.TaskRepository
	Catalog *repo.CatalogRepository
}

// Notifier owns the transport middlewares and picks, per envelope, the ones
// that are both enabled and addressed by the envelope.
type Notifier struct {
	transports  Transports
	middlewares []broker.Middleware
	store       Store
	log         zerolog.Logger
}

func NewNotifier(t Transports, store Store, log zerolog.Logger, middlewares ...broker.Middleware) *Notifier {
	return &Notifier{transports: t, middlewares: middlewares, store: store, log: log}
}

func (n *Notifier) enabled(k broker.Kind) bool {
	switch k {
	case broker.KindMQTT:
		return n.transports.MQTT()
	case broker.KindFCM:
		return n.transports.FCM()
	}
	return false
}

// Active lists the kinds an envelope would actually be sent on.
func (n *Notifier) Active(env *broker.Envelope) []broker.Kind {
	var out []broker.Kind
	for _, mw := range n.middlewares {
		if n.enabled(mw.Kind()) && env.Has(mw.Kind()) {
			out = append(out, mw.Kind())
		}
	}
	return out
}

func (n *Notifier) Dispatch(ctx context.Context, env *broker.Envelope) error {
	var chain []broker.Middleware
	for _, mw := range n.middlewares {
		if n.enabled(mw.Kind()) && env.Has(mw.Kind()) {
			chain = append(chain, mw)
		}
	}
	if len(chain) == 0 {
		return nil
	}
	return broker.NewBus(n.log, chain...).Dispatch(ctx, env)
}

func (n *Notifier) ForAgent(a *models.Agent) Notifiable { return &agentTarget{n: n, agent: a} }

func (n *Notifier) ForFleet(f *models.Fleet) Notifiable { return &fleetTarget{n: n, fleet: f} }

// appliedItems collects the package and file ids deployed to a fleet.
func (n *Notifier) appliedItems(fleetID uint) (packages, files []uint, err error) {
	tasks, err := n.store.Tasks.ListAppliedTo(models.AppliedToFleet, fleetID)
	if err != nil {
		return nil, nil, err
	}
	for _, t := range tasks {
		switch t.Itemtype {
		case "package":
			packages = append(packages, t.ItemsID)
		case "file":
			files = append(files, t.ItemsID)
		}
	}
	return packages, files, nil
}
