package command

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"flyvemdm/agent/internal/state"
	"flyvemdm/backend/app/mqtt"

	"github.com/rs/zerolog"
)

// Dispatcher routes broker messages to handlers by command name.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	state    *state.State
	log      zerolog.Logger
}

func NewDispatcher(st *state.State, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{handlers: map[string]Handler{}, state: st, log: log}
}

func (d *Dispatcher) Register(name string, h Handler) {
	d.mu.Lock()
	d.handlers[name] = h
	d.mu.Unlock()
}

// route names the handler of topic. Messages of a fleet the agent left no
// longer match.
func (d *Dispatcher) route(topic string) (string, bool) {
	if base := d.state.Topic(); base != "" {
		if name, ok := strings.CutPrefix(topic, base+"/Command/"); ok && name != "" && !strings.Contains(name, "/") {
			return name, true
		}
	}
	if fleet := d.state.FleetTopic(); fleet != "" && mqtt.Match(fleet+"/Policy/+/Task/+", topic) {
		return Policy, true
	}
	return "", false
}

// Dispatch runs the handler of one message. Empty command payloads are the
// broker clearing a retained message and are skipped; for policies they mean
// the policy was removed.
func (d *Dispatcher) Dispatch(ctx context.Context, topic string, payload []byte) error {
	name, ok := d.route(topic)
	if !ok {
		return fmt.Errorf("unexpected topic %s", topic)
	}
	if len(payload) == 0 && name != Policy {
		return nil
	}
	d.mu.RLock()
	h, ok := d.handlers[name]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown command %s", name)
	}
	d.log.Info().Str("command", name).Str("topic", topic).Msg("command received")
	if err := h.Handle(ctx, Message{Topic: topic, Payload: payload}); err != nil {
		d.log.Error().Err(err).Str("command", name).Msg("command failed")
		return err
	}
	return nil
}
