package fcm

import (
	"context"
	"errors"
	"fmt"

	"flyvemdm/backend/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

var (
	ErrInvalidToken       = errors.New("fcm: invalid or missing device token")
	ErrInvalidCredentials = errors.New("fcm: invalid server credentials")
)

// Sender is implemented by *messaging.Client.
type Sender interface {
	Send(ctx context.Context, m *messaging.Message) (string, error)
	SendDryRun(ctx context.Context, m *messaging.Message) (string, error)
}

type Connection struct {
	sender Sender
}

// NewConnection authenticates against Firebase with the service account file.
func NewConnection(ctx context.Context, cfg config.FCM) (*Connection, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	var fc *firebase.Config
	if cfg.ProjectID != "" {
		fc = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	app, err := firebase.NewApp(ctx, fc, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return &Connection{sender: client}, nil
}

func NewConnectionWithSender(s Sender) *Connection { return &Connection{sender: s} }

func buildMessage(token, topic string, body []byte) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Data: map[string]string{
			"topic":   topic,
			"message": string(body),
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
	}
}

// Push sends one data message to a single device token.
func (c *Connection) Push(ctx context.Context, token, topic string, body []byte) error {
	if token == "" {
		return ErrInvalidToken
	}
	if _, err := c.sender.Send(ctx, buildMessage(token, topic, body)); err != nil {
		return classify(err)
	}
	return nil
}

// TestConnection validates both the server credentials and the device token
// without delivering anything.
func (c *Connection) TestConnection(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	if _, err := c.sender.SendDryRun(ctx, buildMessage(token, "", nil)); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	switch {
	case messaging.IsUnregistered(err), errorutils.IsInvalidArgument(err), errorutils.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case messaging.IsSenderIDMismatch(err), messaging.IsThirdPartyAuthError(err),
		errorutils.IsUnauthenticated(err), errorutils.IsPermissionDenied(err):
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	default:
		return fmt.Errorf("fcm: %w", err)
	}
}
