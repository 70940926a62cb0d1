package command

import "context"

// Message is one broker message addressed to the agent.
type Message struct {
	Topic   string
	Payload []byte
}

type Handler interface {
	Handle(ctx context.Context, m Message) error
}

type HandlerFunc func(ctx context.Context, m Message) error

func (f HandlerFunc) Handle(ctx context.Context, m Message) error { return f(ctx, m) }

// Policy is the handler name of policy messages published on the fleet topic.
const Policy = "Policy"
