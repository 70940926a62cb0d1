package fcm

import (
	"context"
	"errors"
	"fmt"

	"flyvemdm/backend/app/broker"
)

var ErrEnvelopeType = errors.New("fcm: unexpected envelope type")

// ScopeType is the notification type of devices reachable through FCM.
const ScopeType = "fcm"

type Pusher interface {
	Push(ctx context.Context, token, topic string, body []byte) error
}

type Middleware struct {
	pusher Pusher
}

func NewMiddleware(p Pusher) *Middleware { return &Middleware{pusher: p} }

func (m *Middleware) Kind() broker.Kind { return broker.KindFCM }

// Handle pushes to every fcm entry of the scope. An entry failing does not
// stop the remaining ones; all entry failures are returned together.
func (m *Middleware) Handle(ctx context.Context, msg broker.Message, env broker.TransportEnvelope) error {
	fe, ok := env.(broker.FcmEnvelope)
	if !ok {
		return fmt.Errorf("%w: %T", ErrEnvelopeType, env)
	}
	body := msg.Body()
	var errs []error
	for i, s := range fe.Scope {
		if s.Type != ScopeType {
			continue
		}
		if err := m.pusher.Push(ctx, s.Token, fe.Topic, body); err != nil {
			errs = append(errs, fmt.Errorf("scope %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
