package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flyvemdm/backend/app/broker"
	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/notify"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	ErrDefaultFleetPolicy = errors.New("policies cannot be applied to the default fleet")
	ErrPolicyExists       = errors.New("a policy with this symbol already exists")
)

type PolicyInput struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Unicity  bool   `json:"unicity"`
	Default  string `json:"default"`
	Itemtype string `json:"itemtype"`
}

type ApplyInput struct {
	PolicyID uint   `json:"policy_id"`
	FleetID  uint   `json:"fleet_id"`
	Value    string `json:"value"`
	Itemtype string `json:"itemtype"`
	ItemsID  uint   `json:"items_id"`
}

// TaskService applies policies to fleets and tracks their delivery per agent.
type TaskService struct {
	db       *gorm.DB
	r        Repos
	notifier *notify.Notifier
	log      zerolog.Logger
}

func NewTaskService(db *gorm.DB, r Repos, n *notify.Notifier, log zerolog.Logger) *TaskService {
	return &TaskService{db: db, r: r, notifier: n, log: log}
}

func (s *TaskService) CreatePolicy(actor Actor, in PolicyInput) (*models.Policy, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	in.Symbol = strings.TrimSpace(in.Symbol)
	if in.Symbol == "" || strings.ContainsAny(in.Symbol, "/+#") {
		return nil, fmt.Errorf("invalid policy symbol %q", in.Symbol)
	}
	symbols, err := s.r.Policies.Symbols()
	if err != nil {
		return nil, err
	}
	for _, sym := range symbols {
		if sym == in.Symbol {
			return nil, ErrPolicyExists
		}
	}
	p := &models.Policy{Symbol: in.Symbol, Name: in.Name, Type: in.Type, Unicity: in.Unicity, Default: in.Default, Itemtype: in.Itemtype}
	if err := s.r.Policies.Create(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *TaskService) Policies(actor Actor) ([]models.Policy, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.r.Policies.List()
}

func taskSubtopic(t *models.Task) string {
	return fmt.Sprintf("Policy/%s/Task/%d", t.Policy.Symbol, t.ID)
}

// Apply creates a task for the fleet, publishes it on the fleet topic and
// marks it pending for every agent of the fleet. Delivery failures are
// returned with the created task.
func (s *TaskService) Apply(ctx context.Context, actor Actor, in ApplyInput) (*models.Task, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	policy, err := s.r.Policies.FindByID(in.PolicyID)
	if err != nil {
		return nil, err
	}
	fleet, err := s.r.Fleets.FindByID(in.FleetID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTargetFleetNotFound
	}
	if err != nil {
		return nil, err
	}
	if fleet.IsDefault {
		return nil, ErrDefaultFleetPolicy
	}
	value := in.Value
	if value == "" {
		value = policy.Default
	}
	target := s.notifier.ForFleet(fleet)
	agents, err := target.Agents()
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		PolicyID:        policy.ID,
		ItemtypeApplied: models.AppliedToFleet,
		ItemsIDApplied:  fleet.ID,
		Value:           value,
		Itemtype:        in.Itemtype,
		ItemsID:         in.ItemsID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		r := NewRepos(tx)
		if err := r.Tasks.Create(task); err != nil {
			return err
		}
		for _, a := range agents {
			st := &models.TaskStatus{AgentID: a.ID, TaskID: task.ID, Status: models.TaskStatusPending}
			if err := r.Statuses.Create(st); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	task.Policy = policy

	msg, err := policyMessage(policy.Symbol, value, task.ID)
	if err != nil {
		return task, err
	}
	topic := target.Topic() + "/" + taskSubtopic(task)
	env := broker.NewEnvelope(msg,
		broker.MqttEnvelope{Topic: topic, Retain: true},
		broker.FcmEnvelope{Topic: topic, Scope: notify.PushScopes(agents)},
	)
	s.log.Info().Uint("task", task.ID).Str("policy", policy.Symbol).Uint("fleet", fleet.ID).Int("agents", len(agents)).Msg("policy applied")
	return task, target.Notify(ctx, env)
}

// Remove clears the retained policy message of a task and cancels it.
func (s *TaskService) Remove(ctx context.Context, actor Actor, taskID uint) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	task, err := s.r.Tasks.FindByID(taskID)
	if err != nil {
		return err
	}
	var notifyErr error
	if task.ItemtypeApplied == models.AppliedToFleet && task.Policy != nil {
		fleet, err := s.r.Fleets.FindByID(task.ItemsIDApplied)
		if err == nil && fleet.Topic() != "" {
			env := broker.NewEnvelope(broker.NewMessage(nil),
				broker.MqttEnvelope{Topic: fleet.Topic() + "/" + taskSubtopic(task), Retain: true})
			notifyErr = s.notifier.ForFleet(fleet).Notify(ctx, env)
		}
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		r := NewRepos(tx)
		if err := r.Statuses.CancelTask(task.ID); err != nil {
			return err
		}
		return r.Tasks.Delete(task.ID)
	})
	if err != nil {
		return err
	}
	s.log.Info().Uint("task", task.ID).Msg("policy removed")
	return notifyErr
}

// Statuses lists the delivery state of every task of an agent.
func (s *TaskService) Statuses(actor Actor, agentID uint) ([]models.TaskStatus, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.r.Statuses.ListByAgent(agentID)
}
