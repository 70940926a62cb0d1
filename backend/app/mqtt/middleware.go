package mqtt

import (
	"context"
	"errors"
	"fmt"

	"flyvemdm/backend/app/broker"

	"github.com/rs/zerolog"
)

var (
	ErrEmptyTopic   = errors.New("mqtt: empty topic")
	ErrEnvelopeType = errors.New("mqtt: unexpected envelope type")
)

const (
	DirectionOut = "O"
	DirectionIn  = "I"
)

// Journal records published and received messages.
type Journal interface {
	Save(direction, topic string, payload []byte) error
}

type Middleware struct {
	pub     Publisher
	qos     byte
	journal Journal
	log     zerolog.Logger
}

// NewMiddleware returns the MQTT transport of the broker bus. journal may be nil.
func NewMiddleware(pub Publisher, qos byte, journal Journal, log zerolog.Logger) *Middleware {
	return &Middleware{pub: pub, qos: qos, journal: journal, log: log}
}

func (m *Middleware) Kind() broker.Kind { return broker.KindMQTT }

func (m *Middleware) Handle(ctx context.Context, msg broker.Message, env broker.TransportEnvelope) error {
	me, ok := env.(broker.MqttEnvelope)
	if !ok {
		return fmt.Errorf("%w: %T", ErrEnvelopeType, env)
	}
	if me.Topic == "" {
		return ErrEmptyTopic
	}
	body := msg.Body()
	if err := m.pub.Publish(ctx, me.Topic, m.qos, me.Retain, body); err != nil {
		return err
	}
	if m.journal != nil {
		// the message is already out; a journal failure does not fail the send
		if err := m.journal.Save(DirectionOut, me.Topic, body); err != nil {
			m.log.Warn().Err(err).Str("topic", me.Topic).Msg("mqtt journal write failed")
		}
	}
	return nil
}
