package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"flyvemdm/backend/app/broker"
	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/mqtt"
	"flyvemdm/backend/app/notify"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// AgentUpdate lists the fields an update may change; nil means unchanged.
type AgentUpdate struct {
	Name     *string
	FleetID  *uint
	Wipe     *bool
	Lock     *bool
	Unenroll bool
}

type AgentService struct {
	db       *gorm.DB
	r        Repos
	access   *MqttAccessService
	notifier *notify.Notifier
	log      zerolog.Logger
}

func NewAgentService(db *gorm.DB, r Repos, access *MqttAccessService, n *notify.Notifier, log zerolog.Logger) *AgentService {
	return &AgentService{db: db, r: r, access: access, notifier: n, log: log}
}

func (s *AgentService) Get(actor Actor, id uint) (*models.Agent, error) {
	a, err := s.r.Agents.FindByID(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(a) {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *AgentService) List(actor Actor) ([]models.Agent, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.r.Agents.List()
}

// GetByTopic resolves "<entity>/agent/<serial>[/...]".
func (s *AgentService) GetByTopic(topic string) (*models.Agent, error) {
	entity, serial, _, ok := mqtt.AgentTopicParts(topic)
	if !ok {
		return nil, fmt.Errorf("not an agent topic: %q", topic)
	}
	id, err := strconv.ParseUint(entity, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad entity in topic %q: %w", topic, err)
	}
	return s.r.Agents.FindBySerial(uint(id), serial)
}

// Update applies an administrator (or self) change to an agent and emits the
// commands the change implies. The change is persisted even when a transport
// fails; transport failures are returned alongside the updated agent.
func (s *AgentService) Update(ctx context.Context, actor Actor, id uint, in AgentUpdate) (*models.Agent, error) {
	agent, err := s.r.Agents.FindByID(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(agent) {
		return nil, ErrForbidden
	}
	if !actor.IsAdmin() && (in.Name != nil || in.FleetID != nil || in.Wipe != nil || in.Lock != nil) {
		return nil, ErrForbidden
	}
	oldFleet := agent.Fleet
	var newFleet *models.Fleet
	if in.FleetID != nil && *in.FleetID != agent.FleetID {
		if oldFleet == nil {
			return nil, ErrFleetNotFound
		}
		nf, err := s.r.Fleets.FindByID(*in.FleetID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && nf.EntityID != agent.EntityID) {
			return nil, ErrTargetFleetNotFound
		}
		if err != nil {
			return nil, err
		}
		if err := s.access.ChangeFleet(serialOf(agent), oldFleet, nf); err != nil {
			return nil, fmt.Errorf("update mqtt acl: %w", err)
		}
		newFleet = nf
		agent.FleetID, agent.Fleet = nf.ID, nf
	}
	if in.Name != nil {
		agent.Name = *in.Name
	}

	before := latchesOf(agent)
	after := before
	if in.Wipe != nil {
		after.Wipe = *in.Wipe
	}
	if in.Lock != nil {
		after.Lock = *in.Lock
	}
	if in.Unenroll {
		after.Status = models.EnrollStatusUnenrolling
	}
	after = after.normalize()
	agent.Wipe, agent.Lock, agent.EnrollStatus = after.Wipe, after.Lock, after.Status

	if err := s.r.Agents.Save(agent); err != nil {
		return nil, err
	}
	s.log.Info().Uint("agent", agent.ID).Str("actor", actor.Username).
		Bool("wipe", agent.Wipe).Bool("lock", agent.Lock).Str("status", agent.EnrollStatus).
		Uint("fleet", agent.FleetID).Msg("agent updated")

	var errs []error
	if newFleet != nil {
		errs = append(errs, s.onFleetChange(ctx, agent, oldFleet, newFleet))
	}
	for _, cmd := range commandsFor(before, after) {
		errs = append(errs, s.Send(ctx, agent, cmd))
	}
	return agent, errors.Join(errs...)
}

func serialOf(a *models.Agent) string {
	if a.Device == nil {
		return ""
	}
	return a.Device.Serial
}

// Send emits one command envelope to the agent.
func (s *AgentService) Send(ctx context.Context, agent *models.Agent, cmd Command) error {
	env, err := commandEnvelope(agent, cmd)
	if err != nil {
		return err
	}
	if err := s.notifier.ForAgent(agent).Notify(ctx, env); err != nil {
		s.log.Warn().Err(err).Uint("agent", agent.ID).Str("command", string(cmd)).Msg("command not delivered")
		return err
	}
	return nil
}

// Subscribe points the agent at the topic of its current fleet.
func (s *AgentService) Subscribe(ctx context.Context, agent *models.Agent) error {
	target := s.notifier.ForAgent(agent)
	fleet, err := target.Fleet()
	if err != nil {
		return err
	}
	env, err := subscribeEnvelope(agent, fleet)
	if err != nil {
		return err
	}
	return target.Notify(ctx, env)
}

func (s *AgentService) onFleetChange(ctx context.Context, agent *models.Agent, from, to *models.Fleet) error {
	var errs []error
	errs = append(errs, s.Subscribe(ctx, agent))
	errs = append(errs, s.pushFleetPolicies(ctx, agent, to))

	applied, err := s.r.Tasks.ListAppliedTo(models.AppliedToFleet, to.ID)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	for _, t := range applied {
		st := &models.TaskStatus{AgentID: agent.ID, TaskID: t.ID, Status: models.TaskStatusPending}
		if err := s.r.Statuses.Create(st); err != nil {
			errs = append(errs, err)
		}
	}

	previous, err := s.r.Tasks.ListAppliedTo(models.AppliedToFleet, from.ID)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	ids := make([]uint, 0, len(previous))
	for _, t := range previous {
		ids = append(ids, t.ID)
	}
	errs = append(errs, s.r.Statuses.Cancel(agent.ID, ids))
	return errors.Join(errs...)
}

// pushFleetPolicies sends the fleet's policies to a push-only agent joining
// it. MQTT agents receive them through their fleet subscription.
func (s *AgentService) pushFleetPolicies(ctx context.Context, agent *models.Agent, fleet *models.Fleet) error {
	tasks, err := s.r.Tasks.ListAppliedTo(models.AppliedToFleet, fleet.ID)
	if err != nil {
		return err
	}
	var errs []error
	for _, t := range tasks {
		if t.Policy == nil {
			continue
		}
		msg, err := policyMessage(t.Policy.Symbol, t.Value, t.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		env := broker.NewEnvelope(msg, broker.FcmEnvelope{
			Topic: fmt.Sprintf("%s/Policy/%s/Task/%d", agent.Topic(), t.Policy.Symbol, t.ID),
			Scope: notify.PushScopes([]models.Agent{*agent}),
		})
		errs = append(errs, s.notifier.ForAgent(agent).Notify(ctx, env))
	}
	return errors.Join(errs...)
}

// RefreshPersistedNotifications re-emits the commands still latched on the agent.
func (s *AgentService) RefreshPersistedNotifications(ctx context.Context, agent *models.Agent) error {
	var errs []error
	if agent.Wipe {
		errs = append(errs, s.Send(ctx, agent, CommandWipe))
	} else if agent.Lock {
		errs = append(errs, s.Send(ctx, agent, CommandLock))
	}
	if agent.EnrollStatus == models.EnrollStatusUnenrolling {
		errs = append(errs, s.Send(ctx, agent, CommandUnenroll))
	}
	return errors.Join(errs...)
}

// TopicsToCleanup lists the subtopics that may hold retained messages.
func (s *AgentService) TopicsToCleanup() ([]string, error) {
	symbols, err := s.r.Policies.Symbols()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(symbols)+len(cleanupCommands))
	for _, sym := range symbols {
		out = append(out, "Policy/"+sym)
	}
	for _, c := range cleanupCommands {
		out = append(out, c.Subtopic())
	}
	return out, nil
}

// CleanupTopics publishes an empty retained message on every subtopic of the agent.
func (s *AgentService) CleanupTopics(ctx context.Context, agent *models.Agent) error {
	topic := agent.Topic()
	if topic == "" {
		return nil
	}
	subtopics, err := s.TopicsToCleanup()
	if err != nil {
		return err
	}
	target := s.notifier.ForAgent(agent)
	var errs []error
	for _, sub := range subtopics {
		env := broker.NewEnvelope(broker.NewMessage(nil), broker.MqttEnvelope{Topic: topic + "/" + sub, Retain: true})
		errs = append(errs, target.Notify(ctx, env))
	}
	return errors.Join(errs...)
}

// Delete purges the agent: it is told to unenroll, loses its broker account
// and retained messages, and its dependent records are removed. An agent
// whose device is already gone is simply removed.
func (s *AgentService) Delete(ctx context.Context, actor Actor, id uint) error {
	agent, err := s.r.Agents.FindByID(id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if agent.Device != nil {
		if agent.Enrolled() {
			// Send logs delivery failures; the purge goes on regardless
			s.Send(ctx, agent, CommandUnenroll)
		}
		if err := s.access.Revoke(agent.Device.Serial); err != nil {
			return fmt.Errorf("revoke mqtt account: %w", err)
		}
		if err := s.CleanupTopics(ctx, agent); err != nil {
			s.log.Warn().Err(err).Uint("agent", agent.ID).Msg("topic cleanup incomplete")
		}
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		r := NewRepos(tx)
		if err := r.Statuses.DeleteByAgent(agent.ID); err != nil {
			return err
		}
		if err := r.Catalog.DeleteDocuments(agent.ID); err != nil {
			return err
		}
		if agent.UserID != 0 {
			if err := r.Users.Delete(agent.UserID); err != nil {
				return err
			}
		}
		return r.Agents.Delete(agent.ID)
	})
	if err != nil {
		return err
	}
	s.log.Info().Uint("agent", agent.ID).Str("actor", actor.Username).Msg("agent deleted")
	return nil
}

// PurgeDevice removes the agent of a device that is being deleted.
func (s *AgentService) PurgeDevice(ctx context.Context, deviceID uint) error {
	agent, err := s.r.Agents.FindByDeviceID(deviceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.Delete(ctx, SystemActor, agent.ID)
}

// PurgeEntity removes every agent of an entity.
func (s *AgentService) PurgeEntity(ctx context.Context, entityID uint) error {
	agents, err := s.r.Agents.ListByEntity(entityID)
	if err != nil {
		return err
	}
	var errs []error
	for _, a := range agents {
		errs = append(errs, s.Delete(ctx, SystemActor, a.ID))
	}
	return errors.Join(errs...)
}
