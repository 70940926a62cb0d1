package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StatusFilter matches every topic agents are allowed to write status to.
const StatusFilter = "+/agent/+/Status/#"

type StatusHandler interface {
	HandleStatus(ctx context.Context, topic string, payload []byte) error
}

// ListenStatus subscribes to agent status topics and forwards each message to h.
func ListenStatus(ctx context.Context, sub Subscriber, qos byte, h StatusHandler, journal Journal, log zerolog.Logger) error {
	return sub.Subscribe(ctx, StatusFilter, qos, func(topic string, payload []byte) {
		if journal != nil {
			if err := journal.Save(DirectionIn, topic, payload); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("mqtt journal write failed")
			}
		}
		if err := h.HandleStatus(ctx, topic, payload); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("status message rejected")
		}
	})
}

// StatusListener owns the status subscription of the backend. It may be
// started at boot or later, when MQTT is switched on in the configuration.
type StatusListener struct {
	Sub     Subscriber
	QoS     byte
	Handler StatusHandler
	Journal Journal
	Log     zerolog.Logger
	Retry   time.Duration // 5s when zero

	once sync.Once
}

// Start subscribes in the background, retrying until the broker accepts the
// subscription or ctx ends. Only the first call has an effect.
func (l *StatusListener) Start(ctx context.Context) {
	l.once.Do(func() { go l.run(ctx) })
}

func (l *StatusListener) run(ctx context.Context) {
	retry := l.Retry
	if retry <= 0 {
		retry = 5 * time.Second
	}
	for {
		err := ListenStatus(ctx, l.Sub, l.QoS, l.Handler, l.Journal, l.Log)
		if err == nil {
			l.Log.Info().Str("filter", StatusFilter).Msg("listening to agent status")
			return
		}
		l.Log.Warn().Err(err).Msg("mqtt status listener not connected, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}
