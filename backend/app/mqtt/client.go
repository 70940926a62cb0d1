package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flyvemdm/backend/config"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

var ErrTimeout = errors.New("mqtt: operation timed out")

// Publisher is the publish half of a broker client.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error
}

// Subscriber is the subscribe half of a broker client.
type Subscriber interface {
	Subscribe(ctx context.Context, filter string, qos byte, h Handler) error
}

type Handler func(topic string, payload []byte)

type subscription struct {
	qos byte
	h   Handler
}

// Client is a lazily connected paho client. The first Publish or Subscribe
// opens the connection; it is reused afterwards and paho reconnects on loss.
type Client struct {
	opts    *paho.ClientOptions
	timeout time.Duration
	log     zerolog.Logger

	mu   sync.Mutex
	c    paho.Client
	subs map[string]subscription
}

func NewClient(cfg config.MQTT, log zerolog.Logger) *Client {
	c := &Client{timeout: cfg.Timeout, log: log, subs: map[string]subscription{}}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectTimeout(c.timeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		c.log.Warn().Err(err).Str("broker", cfg.Broker).Msg("mqtt connection lost")
	}
	c.opts = opts
	return c
}

func (c *Client) onConnect(pc paho.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for k, v := range c.subs {
		subs[k] = v
	}
	c.mu.Unlock()
	for filter, s := range subs {
		if token := pc.Subscribe(filter, s.qos, wrap(s.h)); token.Wait() && token.Error() != nil {
			c.log.Error().Err(token.Error()).Str("filter", filter).Msg("mqtt subscribe failed")
			continue
		}
		c.log.Info().Str("filter", filter).Uint8("qos", s.qos).Msg("mqtt subscribed")
	}
}

func wrap(h Handler) paho.MessageHandler {
	return func(_ paho.Client, m paho.Message) { h(m.Topic(), m.Payload()) }
}

func (c *Client) conn(ctx context.Context) (paho.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.c != nil && c.c.IsConnectionOpen() {
		return c.c, nil
	}
	if c.c == nil {
		c.c = paho.NewClient(c.opts)
	}
	if c.c.IsConnected() {
		// reconnecting in the background
		return c.c, nil
	}
	if err := c.wait(ctx, c.c.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return c.c, nil
}

func (c *Client) wait(ctx context.Context, token paho.Token) error {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}

func (c *Client) Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error {
	pc, err := c.conn(ctx)
	if err != nil {
		return err
	}
	if err := c.wait(ctx, pc.Publish(topic, qos, retain, payload)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers h for filter. The subscription survives reconnects.
func (c *Client) Subscribe(ctx context.Context, filter string, qos byte, h Handler) error {
	c.mu.Lock()
	c.subs[filter] = subscription{qos: qos, h: h}
	open := c.c != nil && c.c.IsConnectionOpen()
	pc := c.c
	c.mu.Unlock()
	if !open {
		// onConnect subscribes everything registered so far
		_, err := c.conn(ctx)
		return err
	}
	return c.wait(ctx, pc.Subscribe(filter, qos, wrap(h)))
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.c != nil && c.c.IsConnected() {
		c.c.Disconnect(250)
	}
}
